package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/consulting-portal-api/models"
	"github.com/kendall-kelly/consulting-portal-api/services"
	"github.com/kendall-kelly/consulting-portal-api/utils"
)

// ContextActor holds the services.Actor resolved for the request
const ContextActor = "actor"

// UserLookup resolves an authenticated uid to a stored user
type UserLookup interface {
	Lookup(ctx context.Context, uid string) (*models.User, error)
}

// LoadActor resolves the authenticated user's role from persistence and stores the actor in the context.
// Users that have not registered yet get USER_NOT_FOUND.
func LoadActor(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := GetUserID(c)
		if err != nil {
			utils.AbortWithError(c, utils.Unauthorized("Could not extract user ID from token"))
			return
		}

		user, err := users.Lookup(c.Request.Context(), uid)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		c.Set(ContextActor, services.ActorFromUser(user))
		c.Next()
	}
}

// CurrentActor returns the actor LoadActor stored, or the zero Actor
func CurrentActor(c *gin.Context) services.Actor {
	if v, ok := c.Get(ContextActor); ok {
		if actor, ok := v.(services.Actor); ok {
			return actor
		}
	}
	return services.Actor{}
}

// RequireRole rejects actors whose role is not listed
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := CurrentActor(c)
		if actor.UID == "" {
			utils.AbortWithError(c, utils.Unauthorized("Authentication required"))
			return
		}
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		utils.AbortWithError(c, utils.Forbidden("Insufficient permissions to access this resource"))
	}
}
