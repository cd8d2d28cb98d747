package mw

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"campus-queue-backend/internal/gate"
)

const identityKey = "identity"

// Auth verifies the Bearer token and stores the resolved identity on the
// request context. Handlers read it back with IdentityFrom and pass it on
// explicitly; nothing below the API layer touches gin.
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization token missing"})
			return
		}

		token, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "),
			func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return key, nil
			})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
			return
		}

		sub, _ := claims["sub"].(string)
		role, _ := claims["role"].(string)
		email, _ := claims["email"].(string)
		if sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
			return
		}

		c.Set(identityKey, gate.Identity{Subject: sub, Role: role, Email: email})
		c.Next()
	}
}

// IdentityFrom returns the identity stored by Auth, if any.
func IdentityFrom(c *gin.Context) (gate.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return gate.Identity{}, false
	}
	id, ok := v.(gate.Identity)
	return id, ok
}
