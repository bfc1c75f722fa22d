package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hims-api/internal/models"
)

// Handlers groups the HTTP handlers mounted under the API prefix.
type Handlers struct {
	Auth        *AuthHandler
	Clients     *ClientHandler
	Programs    *ProgramHandler
	Enrollments *EnrollmentHandler
	Analytics   *AnalyticsHandler
	Audit       *AuditHandler
	Metrics     *MetricsHandler
}

// RouteGuards carries the middleware applied per route group. Nil guards are
// skipped.
type RouteGuards struct {
	Authenticate gin.HandlerFunc
	AdminOnly    gin.HandlerFunc
	AuthLimit    gin.HandlerFunc
	APILimit     gin.HandlerFunc
	Audit        func(entity models.AuditEntityType) gin.HandlerFunc
}

func (g RouteGuards) chain(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

func (g RouteGuards) audit(entity models.AuditEntityType) gin.HandlerFunc {
	if g.Audit == nil {
		return nil
	}
	return g.Audit(entity)
}

// RegisterRoutes mounts operational endpoints at the root and the API under prefix.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers, g RouteGuards) {
	if h.Metrics != nil {
		r.GET("/health", h.Metrics.Health)
		r.GET("/ready", h.Metrics.Ready)
		r.GET("/metrics", h.Metrics.Prometheus)
	}

	api := r.Group(prefix)

	auth := api.Group("/auth", g.chain(g.AuthLimit)...)
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.GET("/me", g.chain(g.Authenticate, h.Auth.Me)...)

	protected := api.Group("", g.chain(g.APILimit, g.Authenticate)...)

	clients := protected.Group("/clients", g.chain(g.audit(models.AuditEntityClient))...)
	clients.GET("", h.Clients.List)
	clients.GET("/search", h.Clients.Search)
	clients.POST("", h.Clients.Create)
	clients.GET("/:id", h.Clients.Get)
	clients.PUT("/:id", h.Clients.Update)
	clients.DELETE("/:id", h.Clients.Delete)
	clients.GET("/:id/enrollments", h.Clients.Enrollments)

	programs := protected.Group("/health-programs", g.chain(g.audit(models.AuditEntityProgram))...)
	programs.GET("", h.Programs.List)
	programs.GET("/:id", h.Programs.Get)
	programs.POST("", g.chain(g.AdminOnly, h.Programs.Create)...)
	programs.PUT("/:id", g.chain(g.AdminOnly, h.Programs.Update)...)
	programs.DELETE("/:id", g.chain(g.AdminOnly, h.Programs.Delete)...)

	enrollments := protected.Group("/enrollments", g.chain(g.audit(models.AuditEntityEnrollment))...)
	enrollments.GET("", h.Enrollments.List)
	enrollments.POST("", h.Enrollments.Create)
	enrollments.GET("/:id", h.Enrollments.Get)
	enrollments.PUT("/:id", h.Enrollments.Update)
	enrollments.DELETE("/:id", h.Enrollments.Delete)

	protected.GET("/analytics/dashboard", h.Analytics.Dashboard)
	if h.Metrics != nil {
		protected.GET("/analytics/system", g.chain(g.AdminOnly, h.Metrics.Snapshot)...)
	}

	auditLogs := protected.Group("/audit-logs")
	auditLogs.GET("", h.Audit.List)
	auditLogs.GET("/export", g.chain(g.AdminOnly, h.Audit.Export)...)
}
