package middleware

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hims-api/internal/models"
	"github.com/noah-isme/hims-api/internal/service"
)

// ContextEntityIDKey lets a handler report the id of an entity it created so
// the audit entry can reference it.
const ContextEntityIDKey = "auditEntityID"

const unknownEntityID = "unknown"

type auditRecorder interface {
	Record(ctx context.Context, entry models.AuditLog)
}

// Audit records one entry per successful request against entity. Failed
// requests are not audited.
func Audit(recorder auditRecorder, entity models.AuditEntityType) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if recorder == nil || c.Writer.Status() >= 400 {
			return
		}
		action, ok := service.ActionFromMethod(c.Request.Method)
		if !ok {
			return
		}

		entry := models.AuditLog{
			Action:     action,
			EntityType: entity,
			EntityID:   auditEntityID(c),
			Details:    fmt.Sprintf("%s %s", c.Request.Method, c.Request.URL.RequestURI()),
		}
		if claims, ok := CurrentUser(c); ok {
			entry.UserID = claims.UserID
			entry.UserEmail = claims.Email
		}
		recorder.Record(c.Request.Context(), entry)
	}
}

func auditEntityID(c *gin.Context) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	if id := c.GetString(ContextEntityIDKey); id != "" {
		return id
	}
	return unknownEntityID
}
