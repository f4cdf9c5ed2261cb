package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/steemit/blogd/internal/auth"
	"github.com/steemit/blogd/pkg/logging"
)

// UserIDKey is the gin context key holding the verified caller id
const UserIDKey = "user_id"

// Identity resolves the caller from a Bearer token or the access token
// cookie. Requests without a valid token continue as anonymous.
func Identity(verifier *auth.Verifier, cookieName string) gin.HandlerFunc {
	logger := logging.WithComponent("auth")

	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" && cookieName != "" {
			token, _ = c.Cookie(cookieName)
		}

		if token != "" {
			userID, err := verifier.Verify(token)
			if err != nil {
				logger.Debug("Ignoring invalid token",
					zap.String("path", c.Request.URL.Path),
					zap.Error(err))
			} else {
				c.Set(UserIDKey, userID)
			}
		}

		c.Next()
	}
}

// RequireIdentity rejects anonymous callers with 401
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CallerID(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication required"})
			return
		}
		c.Next()
	}
}

// CallerID returns the verified caller id, or nil for anonymous requests
func CallerID(c *gin.Context) *int64 {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return nil
	}
	id, ok := v.(int64)
	if !ok {
		return nil
	}
	return &id
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
