package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"streamcast/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ValidateToken checks an HMAC-signed JWT against the shared secret. Token
// issuance is external to this server.
func ValidateToken(secret, tokenString string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}

// NewAuthMiddleware returns Gin middleware that requires a valid JWT when
// auth is enabled. Browser WebSocket clients cannot set headers on the
// upgrade request, so a token query parameter is accepted as well.
func NewAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	if !cfg.Auth.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	secret := cfg.Auth.JWTSecret

	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			authHeader := c.GetHeader("Authorization")
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
				return
			}
			token = parts[1]
		}

		if err := ValidateToken(secret, token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Next()
	}
}
