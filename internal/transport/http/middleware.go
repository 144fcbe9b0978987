package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"

	"savrdv/internal/authz"
)

const (
	ctxKeySubject = "subject"
	ctxKeyRole    = "role"
)

type claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuth validates the bearer token and stores subject and role on the
// context for the capability check and ownership rules downstream.
func JWTAuth(secret string, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), &claims{}, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			log.Debug("token rejected", slog.Any("err", err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		cl, ok := token.Claims.(*claims)
		if !ok || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ctxKeySubject, cl.Sub)
		c.Set(ctxKeyRole, cl.Role)
		c.Next()
	}
}

// RequireCapability consults the central capability table for the operation.
func RequireCapability(op authz.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authz.Can(callerRole(c), op) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "operation not permitted for role"})
			return
		}
		c.Next()
	}
}

func callerRole(c *gin.Context) authz.Role {
	v, _ := c.Get(ctxKeyRole)
	role, _ := v.(string)
	return authz.Role(role)
}

func callerSubject(c *gin.Context) string {
	v, _ := c.Get(ctxKeySubject)
	sub, _ := v.(string)
	return sub
}
