package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hims-api/internal/middleware"
	"github.com/noah-isme/hims-api/internal/models"
	appErrors "github.com/noah-isme/hims-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return nil
	}
	return claims
}

// pageParams reads page and limit; invalid values fall back to defaults.
func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(models.DefaultPageSize)))
	if err != nil {
		size = models.DefaultPageSize
	}
	return page, size
}

func invalidPayload(err error) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
}

// markCreated exposes a new entity id to the audit middleware.
func markCreated(c *gin.Context, id string) {
	c.Set(middleware.ContextEntityIDKey, id)
}
