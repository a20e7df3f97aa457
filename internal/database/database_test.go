package database_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/blog/backend/internal/database"
	"github.com/zfogg/blog/backend/internal/models"
	"github.com/zfogg/blog/backend/internal/testutil"
	"gorm.io/gorm/clause"
)

func TestMigrateCreatesTables(t *testing.T) {
	db := testutil.NewDB(t)
	for _, m := range database.Models() {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}
	// Migrating twice is a no-op.
	require.NoError(t, database.Migrate(db))
}

func TestMigrateNilDB(t *testing.T) {
	assert.Error(t, database.Migrate(nil))
}

func TestInteractionUniqueIndexTreatsNullCommentAsValue(t *testing.T) {
	db := testutil.NewDB(t)
	author := testutil.CreateUser(t, db, "editor", models.RoleEditor)
	category := testutil.CreateCategory(t, db, "news", nil)
	post := testutil.CreatePost(t, db, author, category, "first")
	comment := testutil.CreateComment(t, db, author, post, nil, "hello")

	like := func() *models.PostInteraction {
		return &models.PostInteraction{
			UserID:              &author.ID,
			PostID:              post.ID,
			InteractionType:     models.InteractionLike,
			InteractionCategory: models.InteractionActive,
			Weight:              1,
		}
	}
	require.NoError(t, db.Create(like()).Error)
	assert.Error(t, db.Create(like()).Error)

	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(like())
	require.NoError(t, res.Error)
	assert.Zero(t, res.RowsAffected)

	commentRow := func(id string) *models.PostInteraction {
		return &models.PostInteraction{
			UserID:              &author.ID,
			PostID:              post.ID,
			CommentID:           &id,
			InteractionType:     models.InteractionComment,
			InteractionCategory: models.InteractionActive,
			Weight:              2,
		}
	}
	require.NoError(t, db.Create(commentRow(comment.ID)).Error)
	other := testutil.CreateComment(t, db, author, post, nil, "again")
	require.NoError(t, db.Create(commentRow(other.ID)).Error)
	assert.Error(t, db.Create(commentRow(other.ID)).Error)
}

func TestPostViewIdentityIsUnique(t *testing.T) {
	db := testutil.NewDB(t)
	author := testutil.CreateUser(t, db, "editor", models.RoleEditor)
	category := testutil.CreateCategory(t, db, "news", nil)
	post := testutil.CreatePost(t, db, author, category, "first")

	require.NoError(t, db.Create(&models.PostView{PostID: post.ID, IPAddress: "1.1.1.1"}).Error)
	assert.Error(t, db.Create(&models.PostView{PostID: post.ID, IPAddress: "1.1.1.1"}).Error)
	require.NoError(t, db.Create(&models.PostView{PostID: post.ID, IPAddress: "1.1.1.1", UserID: author.ID}).Error)
}

func TestPublishedScope(t *testing.T) {
	db := testutil.NewDB(t)
	author := testutil.CreateUser(t, db, "editor", models.RoleEditor)
	category := testutil.CreateCategory(t, db, "news", nil)
	testutil.CreatePost(t, db, author, category, "live")
	draft := testutil.CreatePost(t, db, author, category, "draft")
	require.NoError(t, db.Model(draft).Update("status", models.PostStatusDraft).Error)

	var posts []models.Post
	require.NoError(t, db.Scopes(models.Published).Find(&posts).Error)
	require.Len(t, posts, 1)
	assert.Equal(t, "live", posts[0].Slug)
}
