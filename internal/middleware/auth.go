package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/blog/backend/internal/auth"
	"github.com/zfogg/blog/backend/internal/logger"
	"github.com/zfogg/blog/backend/internal/models"
	"github.com/zfogg/blog/backend/internal/util"
)

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// Auth requires a valid access token and stores the account on the context.
func Auth(authService auth.AuthServiceInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			util.RespondUnauthorized(c, "Authentication credentials were not provided.")
			return
		}

		user, err := authService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			logger.Log.Debug("Rejected access token", logger.WithIP(c.ClientIP()))
			util.RespondUnauthorized(c, "Given token not valid for any token type")
			return
		}

		util.SetUser(c, user)
		c.Next()
	}
}

// OptionalAuth stores the account when a valid token is present and lets
// anonymous requests through. An invalid token is treated as anonymous.
func OptionalAuth(authService auth.AuthServiceInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if user, err := authService.ValidateToken(c.Request.Context(), token); err == nil {
				util.SetUser(c, user)
			}
		}
		c.Next()
	}
}

// RequireRole allows accounts holding one of roles. Mount after Auth.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := util.GetUserFromContext(c)
		if !ok {
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		util.RespondForbidden(c, "You do not have permission to perform this action.")
	}
}

// RequireAuthor allows every role except customer.
func RequireAuthor() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := util.GetUserFromContext(c)
		if !ok {
			return
		}
		if !user.CanAuthor() {
			util.RespondForbidden(c, "You do not have permissions to edit this post")
			return
		}
		c.Next()
	}
}

// RequireAdmin allows admins and staff accounts.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := util.GetUserFromContext(c)
		if !ok {
			return
		}
		if !user.IsAdmin() {
			util.RespondForbidden(c, "admin access required")
			return
		}
		c.Next()
	}
}
