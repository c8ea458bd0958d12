package middleware

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// UserAuth validates user JWT tokens and injects the userId into the context.
func UserAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticateUser(c, secret) {
			return
		}
		c.Next()
	}
}

// OptionalUserAuth lets requests without an Authorization header through as
// guests. A header that is present must still carry a valid token.
func OptionalUserAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			log.Println("[AUTH] [INFO] guest request")
			c.Next()
			return
		}
		if !authenticateUser(c, secret) {
			return
		}
		c.Next()
	}
}

func authenticateUser(c *gin.Context, secret string) bool {
	claims, err := bearerClaims(c, secret)
	if err != nil {
		log.Println("[AUTH] [ERROR] token validation failed:", err)
		msg := errUnauthorized.Error()
		if errors.Is(err, errMissingToken) || errors.Is(err, errTokenFormat) {
			msg = err.Error()
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
		return false
	}

	userID := subject(claims)
	if userID == "" {
		log.Println("[AUTH] [ERROR] userId claim missing")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return false
	}

	log.Println("[AUTH] [INFO] user token validated")
	c.Set(ContextClaims, claims)
	c.Set(ContextUserID, userID)
	return true
}
