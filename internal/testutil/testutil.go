// Package testutil builds migrated in-memory databases and fixtures for
// package tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/blog/backend/internal/database"
	"github.com/zfogg/blog/backend/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Password is the plaintext password of every fixture user.
const Password = "correct-horse-battery"

// NewDB returns a migrated in-memory SQLite database closed at test end.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts an account with a profile.
func CreateUser(t testing.TB, db *gorm.DB, username string, role models.Role) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		Email:        fmt.Sprintf("%s@example.com", username),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		Verified:     true,
		Profile:      &models.UserProfile{},
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateCategory inserts a category and its analytics row.
func CreateCategory(t testing.TB, db *gorm.DB, slug string, parent *models.Category) *models.Category {
	t.Helper()
	c := &models.Category{Name: slug, Title: slug, Slug: slug}
	if parent != nil {
		c.ParentID = &parent.ID
	}
	require.NoError(t, db.Create(c).Error)
	require.NoError(t, db.Create(&models.CategoryAnalytics{CategoryID: c.ID}).Error)
	return c
}

// CreatePost inserts a published post and its analytics row.
func CreatePost(t testing.TB, db *gorm.DB, author *models.User, category *models.Category, slug string) *models.Post {
	t.Helper()
	p := &models.Post{
		UserID:      author.ID,
		CategoryID:  category.ID,
		Title:       "Title " + slug,
		Description: "About " + slug,
		Content:     "<p>Body of " + slug + "</p>",
		Keywords:    slug,
		Slug:        slug,
		Status:      models.PostStatusPublished,
	}
	require.NoError(t, db.Create(p).Error)
	require.NoError(t, db.Create(&models.PostAnalytics{PostID: p.ID}).Error)
	return p
}

// CreateComment inserts an active comment, optionally as a reply.
func CreateComment(t testing.TB, db *gorm.DB, author *models.User, post *models.Post, parent *models.Comment, content string) *models.Comment {
	t.Helper()
	c := &models.Comment{UserID: author.ID, PostID: post.ID, Content: content}
	if parent != nil {
		c.ParentID = &parent.ID
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

// NewID returns a random UUID string.
func NewID() string {
	return uuid.New().String()
}
