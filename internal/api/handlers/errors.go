package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/ro-savage/nz-tech-events/internal/repositories"
	"github.com/ro-savage/nz-tech-events/internal/services"
)

// respondError maps the service error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	if verr, ok := services.AsValidationError(err); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": verr.Violations})
		return
	}
	if errors.Is(err, services.ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not authorized to perform this action"})
		return
	}
	if errors.Is(err, repositories.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
