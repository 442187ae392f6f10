package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"gatherly/internal/domain/user"
)

const principalContextKey = "gatherly.principal"

// Authenticator verifies a bearer token and resolves the identity behind it.
type Authenticator interface {
	Authenticate(token string) (user.ID, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// resolved identity for the handlers.
func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
			return
		}
		userID, err := auth.Authenticate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(principalContextKey, userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) (user.ID, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return "", false
	}
	id, ok := val.(user.ID)
	return id, ok
}

func requireUser(c *gin.Context) (user.ID, bool) {
	id, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return "", false
	}
	return id, true
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
