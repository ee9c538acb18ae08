// auth_middleware.go
package middleware

import (
	"context"
	"net/http"
	"strings"

	"order-tracking-service/internal/service"

	"github.com/gin-gonic/gin"
)

const CallerKey = "caller"

// TokenValidator lo implementa service.AuthService.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*service.Caller, error)
}

// Middleware que valida el token y guarda la info del usuario en el contexto
func AuthMiddleware(auth TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			c.Abort()
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		token = strings.TrimSpace(token)
		caller, err := auth.ValidateToken(c.Request.Context(), token)

		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		// Los handlers leen al usuario solo con CallerFrom
		c.Set(CallerKey, caller)
		c.Next()
	}
}

// CallerFrom devuelve el usuario autenticado o nil si la ruta no pasó por AuthMiddleware.
func CallerFrom(c *gin.Context) *service.Caller {
	v, ok := c.Get(CallerKey)
	if !ok {
		return nil
	}
	caller, _ := v.(*service.Caller)
	return caller
}
