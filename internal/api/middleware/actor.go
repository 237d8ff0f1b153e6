package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ro-savage/nz-tech-events/internal/models"
	"github.com/ro-savage/nz-tech-events/internal/repositories"
)

const actorContextKey = "currentActor"

// Actor resolves the authenticated user from the X-User-ID header set by the
// authentication layer in front of this service. Requests without a valid
// header proceed anonymously; authorization happens per operation.
func Actor(users *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("X-User-ID")
		if header == "" {
			c.Next()
			return
		}

		id, err := uuid.Parse(header)
		if err != nil {
			c.Next()
			return
		}

		user, err := users.GetByID(c.Request.Context(), id)
		if err != nil {
			if err != repositories.ErrNotFound {
				log.Warn().Err(err).Msg("Failed to resolve request actor")
			}
			c.Next()
			return
		}

		c.Set(actorContextKey, user)
		c.Next()
	}
}

// CurrentActor returns the resolved user for this request, or nil.
func CurrentActor(c *gin.Context) *models.User {
	v, ok := c.Get(actorContextKey)
	if !ok {
		return nil
	}
	user, ok := v.(*models.User)
	if !ok {
		return nil
	}
	return user
}
