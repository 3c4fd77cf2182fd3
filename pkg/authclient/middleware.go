package authclient

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type Validator interface {
	Validate(ctx context.Context, token string) (*Identity, error)
}

const InternalTokenHeader = "X-Internal-Token"

func bearer(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// AuthMiddleware validates the bearer token and stores user_id, tenant_id,
// role and token on the gin context.
func AuthMiddleware(v Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed token"})
			return
		}

		id, err := v.Validate(c.Request.Context(), token)
		if err != nil {
			status := http.StatusUnauthorized
			if !errors.Is(err, ErrInvalidToken) {
				status = http.StatusBadGateway
			}
			c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
			return
		}

		c.Set("user_id", id.UserID)
		c.Set("tenant_id", id.TenantID)
		c.Set("role", id.Role)
		c.Set("token", token)
		c.Set("identity", *id)
		c.Next()
	}
}

// RequireRoles lets through only the listed roles.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("role")
		if role == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "role not found"})
			return
		}
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
	}
}

// RequireInternalToken guards service-to-service endpoints.
func RequireInternalToken(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(InternalTokenHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid internal token"})
			return
		}
		c.Next()
	}
}

// FromGin returns the identity stored by AuthMiddleware.
func FromGin(c *gin.Context) Identity {
	if v, ok := c.Get("identity"); ok {
		if id, ok := v.(Identity); ok {
			return id
		}
	}
	return Identity{UserID: c.GetString("user_id"), TenantID: c.GetString("tenant_id"), Role: c.GetString("role")}
}
