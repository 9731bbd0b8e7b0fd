package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/practice-sem-2/chat-service/internal/auth"
)

const actorContextKey = "actor"

// AuthMiddleware resolves the calling actor from the bearer token. The
// token is issued by the platform's identity service; its claims are
// trusted as-is.
func AuthMiddleware(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"kind":  "authentication_required",
				"error": "missing bearer token",
			})
			return
		}

		actor, err := verifier.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"kind":  "authentication_required",
				"error": "invalid token",
			})
			return
		}

		c.Set(actorContextKey, actor)
		c.Next()
	}
}

func actorFrom(c *gin.Context) *auth.Actor {
	value, ok := c.Get(actorContextKey)
	if !ok {
		return nil
	}
	actor, _ := value.(*auth.Actor)
	return actor
}
