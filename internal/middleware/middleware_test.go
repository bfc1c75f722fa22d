package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hims-api/internal/models"
	"github.com/noah-isme/hims-api/internal/service"
	appErrors "github.com/noah-isme/hims-api/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
}

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (r *recordingAudit) Record(ctx context.Context, entry models.AuditLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

type fakeCounter struct {
	enabled bool
	counts  map[string]int64
	err     error
}

func (f *fakeCounter) Enabled() bool { return f.enabled }

func (f *fakeCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	if f.counts == nil {
		f.counts = make(map[string]int64)
	}
	f.counts[key]++
	return f.counts[key], 30 * time.Second, nil
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	return body.Error.Code
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestJWT(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleStaff, Email: "staff@example.com"}
	router := newRouter()
	router.GET("/me", JWT(stubValidator{claims: claims}), func(c *gin.Context) {
		user, ok := CurrentUser(c)
		require.True(t, ok)
		c.String(http.StatusOK, user.UserID)
	})

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"bad token", "Bearer bad", http.StatusUnauthorized},
		{"ok", "Bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "u1", rec.Body.String())
			} else {
				assert.Equal(t, appErrors.ErrUnauthorized.Code, errorCode(t, rec))
			}
		})
	}
}

func TestRequireRoles(t *testing.T) {
	router := newRouter()
	withRole := func(role models.UserRole) gin.HandlerFunc {
		return func(c *gin.Context) {
			if role != "" {
				c.Set(ContextUserKey, &models.JWTClaims{UserID: "u1", Role: role})
			}
		}
	}
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }
	router.GET("/admin", withRole(models.RoleAdmin), RequireRoles(models.RoleAdmin), ok)
	router.GET("/staff", withRole(models.RoleStaff), RequireRoles(models.RoleAdmin), ok)
	router.GET("/anon", withRole(""), RequireRoles(models.RoleAdmin), ok)

	for path, want := range map[string]int{"/admin": http.StatusNoContent, "/staff": http.StatusForbidden, "/anon": http.StatusUnauthorized} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Code, path)
	}
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	recorder := &recordingAudit{}
	router := newRouter()
	router.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "u1", Email: "staff@example.com"})
	})
	group := router.Group("/api/enrollments", Audit(recorder, models.AuditEntityEnrollment))
	group.POST("", func(c *gin.Context) {
		c.Set(ContextEntityIDKey, "e-new")
		c.Status(http.StatusCreated)
	})
	group.GET("", func(c *gin.Context) { c.Status(http.StatusOK) })
	group.DELETE("/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	group.PUT("/:id", func(c *gin.Context) { c.Status(http.StatusConflict) })

	do := func(method, path string) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	}
	do(http.MethodPost, "/api/enrollments")
	do(http.MethodGet, "/api/enrollments?status=active")
	do(http.MethodDelete, "/api/enrollments/e1")
	do(http.MethodPut, "/api/enrollments/e1")

	require.Len(t, recorder.entries, 3)
	assert.Equal(t, models.AuditActionCreate, recorder.entries[0].Action)
	assert.Equal(t, "e-new", recorder.entries[0].EntityID)
	assert.Equal(t, "staff@example.com", recorder.entries[0].UserEmail)
	assert.Equal(t, models.AuditActionView, recorder.entries[1].Action)
	assert.Equal(t, "unknown", recorder.entries[1].EntityID)
	assert.Equal(t, "GET /api/enrollments?status=active", recorder.entries[1].Details)
	assert.Equal(t, models.AuditActionDelete, recorder.entries[2].Action)
	assert.Equal(t, "e1", recorder.entries[2].EntityID)
	assert.Equal(t, models.AuditEntityEnrollment, recorder.entries[2].EntityType)
}

func TestRateLimit(t *testing.T) {
	counter := &fakeCounter{enabled: true}
	metrics := service.NewMetricsService()
	router := newRouter()
	router.POST("/login", RateLimit(counter, RateLimitRule{Scope: "auth", Limit: 2, Window: time.Hour}, metrics, nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		router.ServeHTTP(last, httptest.NewRequest(http.MethodPost, "/login", nil))
		if i < 2 {
			assert.Equal(t, http.StatusOK, last.Code)
		}
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "30", last.Header().Get("Retry-After"))
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, appErrors.ErrRateLimited.Code, errorCode(t, last))
	assert.Equal(t, uint64(1), metrics.Snapshot().RateLimited)
}

func TestRateLimitFailsOpen(t *testing.T) {
	for name, counter := range map[string]*fakeCounter{
		"disabled": {enabled: false},
		"error":    {enabled: true, err: errors.New("redis down")},
	} {
		t.Run(name, func(t *testing.T) {
			router := newRouter()
			router.GET("/", RateLimit(counter, RateLimitRule{Scope: "api", Limit: 1, Window: time.Minute}, nil, nil), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})
			for i := 0; i < 3; i++ {
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
				assert.Equal(t, http.StatusOK, rec.Code)
			}
		})
	}
}

func TestMetricsMiddleware(t *testing.T) {
	metrics := service.NewMetricsService()
	router := newRouter()
	router.Use(Metrics(metrics))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, uint64(2), metrics.Snapshot().RequestsTotal)
}
