package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mentor-chat-service/internal/auth"
)

// ProfileIDKey is the gin context key holding the authenticated profile id.
const ProfileIDKey = "profileID"

// Auth validates the Authorization header against the session store.
func Auth(authenticator auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		profileID, err := authenticator.Resolve(c.Request.Context(), parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ProfileIDKey, profileID)
		c.Next()
	}
}
