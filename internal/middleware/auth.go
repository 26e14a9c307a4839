package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/dentaheal-api/internal/apperrors"
	"github.com/harentsoaR/dentaheal-api/internal/models"
	"github.com/harentsoaR/dentaheal-api/internal/utils"
)

// Context keys set by AuthMiddleware.
const (
	UserIDKey   = "userID"
	UserRoleKey = "userRole"
)

// AuthMiddleware requires a valid Bearer token and stores its subject in the context.
func AuthMiddleware(tokens *utils.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			Abort(c, apperrors.NewUnauthorized("Authorization header required"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			Abort(c, apperrors.NewUnauthorized("Invalid authorization header"))
			return
		}

		claims, err := tokens.Validate(strings.TrimSpace(parts[1]))
		if err != nil {
			Abort(c, apperrors.NewUnauthorized("Invalid token"))
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserRoleKey, models.Role(claims.Role))
		c.Next()
	}
}

// RequireRole lets the request through only for the listed roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := UserRole(c)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		Abort(c, apperrors.NewForbidden("Access denied"))
	}
}

// UserID returns the authenticated account id, or "" outside AuthMiddleware.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// UserRole returns the authenticated role, or "" outside AuthMiddleware.
func UserRole(c *gin.Context) models.Role {
	role, _ := c.Get(UserRoleKey)
	r, _ := role.(models.Role)
	return r
}

// Abort writes err as the JSON error body and stops the chain.
func Abort(c *gin.Context, err error) {
	de := apperrors.ToDomainError(err)
	body := gin.H{"error": de.Message, "code": de.Code}
	if len(de.Details) > 0 {
		body["details"] = de.Details
	}
	c.AbortWithStatusJSON(de.HTTPStatus, body)
}
