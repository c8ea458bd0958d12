package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ContextClaims = "claims"
	ContextUserID = "userId"
)

var (
	errMissingToken = errors.New("missing token")
	errTokenFormat  = errors.New("invalid token")
	errUnauthorized = errors.New("unauthorized")
)

// bearerClaims verifies the Authorization header. Tokens are only accepted
// when signed with HMAC.
func bearerClaims(c *gin.Context, secret string) (jwt.MapClaims, error) {
	raw := strings.TrimSpace(c.GetHeader("Authorization"))
	if raw == "" {
		return nil, errMissingToken
	}

	parts := strings.Split(raw, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, errTokenFormat
	}

	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil || !token.Valid {
		return nil, errUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errUnauthorized
	}
	return claims, nil
}

func AuthGuard(secret string, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := bearerClaims(c, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		role, _ := claims["role"].(string)
		if len(allowedRoles) > 0 {
			match := false
			for _, r := range allowedRoles {
				if role == r {
					match = true
					break
				}
			}
			if !match {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
				return
			}
		}

		c.Set(ContextClaims, claims)
		if id := subject(claims); id != "" {
			c.Set(ContextUserID, id)
		}
		c.Next()
	}
}

func AdminAuth(secret string) gin.HandlerFunc {
	return AuthGuard(secret, "admin")
}

// subject reads the caller id from the userId claim, falling back to sub.
func subject(claims jwt.MapClaims) string {
	if id, ok := claims["userId"].(string); ok && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}
	if sub, err := claims.GetSubject(); err == nil {
		return strings.TrimSpace(sub)
	}
	return ""
}

// UserID returns the authenticated caller id, empty for guests.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
