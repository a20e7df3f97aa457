package util

import (
	"github.com/gin-gonic/gin"
	"github.com/zfogg/blog/backend/internal/models"
)

// Context keys set by the auth middleware.
const (
	UserKey   = "user"
	UserIDKey = "user_id"
)

// GetUserFromContext extracts the authenticated user from the Gin context.
// Returns the user and true if found, or nil and false if not authenticated.
// If the user is not authenticated, it automatically responds with 401 Unauthorized.
func GetUserFromContext(c *gin.Context) (*models.User, bool) {
	user, ok := OptionalUser(c)
	if !ok {
		RespondUnauthorized(c)
		return nil, false
	}
	return user, true
}

// OptionalUser returns the authenticated user if the request carried one.
func OptionalUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(UserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok && user != nil
}

// OptionalUserID returns a pointer to the caller's id, or nil for anonymous
// requests.
func OptionalUserID(c *gin.Context) *string {
	if user, ok := OptionalUser(c); ok {
		id := user.ID
		return &id
	}
	return nil
}

// SetUser stores the authenticated user on the context.
func SetUser(c *gin.Context, user *models.User) {
	c.Set(UserKey, user)
	c.Set(UserIDKey, user.ID)
}
