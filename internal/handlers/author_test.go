package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/blog/backend/internal/dto"
	"github.com/zfogg/blog/backend/internal/models"
	"github.com/zfogg/blog/backend/internal/seed"
	"github.com/zfogg/blog/backend/internal/testutil"
)

func (suite *HandlersTestSuite) loadPost(slug string) *models.Post {
	var post models.Post
	suite.Require().NoError(suite.db.Preload("Headings").Where("slug = ?", slug).First(&post).Error)
	return &post
}

func (suite *HandlersTestSuite) TestCreatePost() {
	w := suite.request(http.MethodPost, "/api/v1/post/author", suite.editorToken, gin.H{
		"title":       "Go Tips",
		"description": "Small things",
		"content":     "<h2>Intro</h2><p>Use gofmt.</p><script>alert(1)</script>",
		"slug":        "Go Tips",
		"category":    "tech",
		"status":      "published",
	})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	suite.Equal("Post 'Go Tips' created successfully. It will be shown in a few minutes.", suite.message(w))

	post := suite.loadPost("go-tips")
	suite.Equal(suite.editor.ID, post.UserID)
	suite.Equal(models.PostStatusPublished, post.Status)
	suite.NotContains(post.Content, "<script>")
	suite.Require().Len(post.Headings, 1)
	suite.Equal("Intro", post.Headings[0].Title)
	suite.Equal(2, post.Headings[0].Level)

	suite.Equal(int64(0), suite.postAnalytics(post.ID).Views)
}

func (suite *HandlersTestSuite) TestCreatePostDefaultsToDraft() {
	w := suite.request(http.MethodPost, "/api/v1/post/author", suite.editorToken, gin.H{
		"title": "Later", "content": "<p>soon</p>", "slug": "later", "category": "tech",
		"headings": []gin.H{{"title": "Custom", "level": 3}},
	})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	post := suite.loadPost("later")
	suite.Equal(models.PostStatusDraft, post.Status)
	suite.Require().Len(post.Headings, 1)
	suite.Equal("custom", post.Headings[0].Slug)
	suite.Equal(1, post.Headings[0].Order)

	w = suite.request(http.MethodGet, "/api/v1/post?slug=later", "", nil)
	suite.Equal(http.StatusNotFound, w.Code)

	w = suite.request(http.MethodGet, "/api/v1/post/author", suite.editorToken, nil)
	var items []dto.PostListItem
	suite.Equal(int64(2), suite.page(w, &items).Count)
}

func (suite *HandlersTestSuite) TestCreatePostValidation() {
	w := suite.request(http.MethodPost, "/api/v1/post/author", suite.editorToken, gin.H{"title": "Only title"})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("Missing required fields: content, slug, category", suite.apiError(w).Message)

	w = suite.request(http.MethodPost, "/api/v1/post/author", suite.editorToken, gin.H{
		"title": "x", "content": "y", "slug": "x", "category": "nope",
	})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("Category 'nope' does not exist.", suite.apiError(w).Message)

	w = suite.request(http.MethodPost, "/api/v1/post/author", suite.editorToken, gin.H{
		"title": "x", "content": "y", "slug": "hello-world", "category": "tech",
	})
	suite.Equal(http.StatusConflict, w.Code)

	w = suite.request(http.MethodPost, "/api/v1/post/author", suite.editorToken, gin.H{
		"title": "x", "content": "y", "slug": "x", "category": "tech", "status": "archived",
	})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("Invalid status. Valid options are: draft, published", suite.apiError(w).Message)

	w = suite.request(http.MethodPost, "/api/v1/post/author", suite.editorToken, gin.H{
		"title": "x", "content": "y", "slug": "x", "category": "tech",
		"headings": []gin.H{{"title": "Deep", "level": 7}},
	})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.Equal("Heading level must be between 1 and 6.", suite.apiError(w).Message)
}

func (suite *HandlersTestSuite) TestCustomerCannotAuthor() {
	w := suite.request(http.MethodPost, "/api/v1/post/author", suite.aliceToken, gin.H{
		"title": "x", "content": "y", "slug": "x", "category": "tech",
	})
	suite.Equal(http.StatusForbidden, w.Code)
}

func (suite *HandlersTestSuite) TestUpdatePost() {
	music := testutil.CreateCategory(suite.T(), suite.db, "music", nil)

	w := suite.request(http.MethodPut, "/api/v1/post/author", suite.editorToken, gin.H{
		"post_slug": "hello-world",
		"title":     "Hello Again",
		"category":  "music",
		"headings":  []gin.H{{"title": "One", "level": 2}, {"title": "Two", "level": 2}},
	})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Equal("Post Hello Again successfully updated. Changes will be shown in a few minutes.", suite.message(w))

	post := suite.loadPost("hello-world")
	suite.Equal("Hello Again", post.Title)
	suite.Equal(music.ID, post.CategoryID)
	suite.Equal(models.PostStatusPublished, post.Status)
	suite.Len(post.Headings, 2)

	w = suite.request(http.MethodPut, "/api/v1/post/author", suite.editorToken, gin.H{
		"post_slug": "hello-world", "status": "draft",
	})
	suite.Require().Equal(http.StatusOK, w.Code)
	post = suite.loadPost("hello-world")
	suite.Equal(models.PostStatusDraft, post.Status)
	suite.Len(post.Headings, 2)
}

func (suite *HandlersTestSuite) TestUpdatePostRequiresOwnership() {
	other := testutil.CreateUser(suite.T(), suite.db, "other", models.RoleEditor)
	token := suite.auth.AddUser(other)

	w := suite.request(http.MethodPut, "/api/v1/post/author", token, gin.H{"post_slug": "hello-world", "title": "Mine"})
	suite.Equal(http.StatusForbidden, w.Code)
	suite.Equal("You do not have permissions to edit this post", suite.apiError(w).Message)

	w = suite.request(http.MethodPut, "/api/v1/post/author", suite.adminToken, gin.H{"post_slug": "hello-world", "title": "Moderated"})
	suite.Equal(http.StatusOK, w.Code)

	w = suite.request(http.MethodPut, "/api/v1/post/author", suite.editorToken, gin.H{"post_slug": "nope", "title": "x"})
	suite.Equal(http.StatusNotFound, w.Code)
	suite.Equal("Post nope does not exist.", suite.apiError(w).Message)
}

func (suite *HandlersTestSuite) TestDeletePostRemovesDependents() {
	suite.request(http.MethodPost, "/api/v1/post/like", suite.aliceToken, gin.H{"slug": "hello-world"})
	id := suite.createComment(suite.aliceToken, "Bye")
	w := suite.request(http.MethodPost, "/api/v1/post/comment/reply", suite.editorToken, gin.H{"comment_id": id, "content": "Ok"})
	suite.Require().Equal(http.StatusCreated, w.Code)

	w = suite.request(http.MethodDelete, "/api/v1/post/author?slug=hello-world", suite.editorToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Equal("Post Title hello-world successfully deleted.", suite.message(w))

	for _, model := range []interface{}{
		&models.Post{}, &models.Comment{}, &models.PostLike{}, &models.PostAnalytics{}, &models.PostInteraction{},
	} {
		var n int64
		suite.db.Model(model).Count(&n)
		suite.Zero(n)
	}

	w = suite.request(http.MethodGet, "/api/v1/post?slug=hello-world", "", nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestAdminGenerators() {
	w := suite.request(http.MethodPost, "/api/v1/admin/generate_posts", suite.editorToken, nil)
	suite.Equal(http.StatusForbidden, w.Code)

	w = suite.request(http.MethodPost, "/api/v1/admin/generate_posts?count=3", suite.adminToken, nil)
	suite.Equal(http.StatusNotFound, w.Code)
	suite.Equal("The testeditor account does not exist.", suite.apiError(w).Message)

	testutil.CreateUser(suite.T(), suite.db, seed.EditorUsername, models.RoleEditor)
	suite.handlers.SetSeeder(seed.NewSeederWithSeed(suite.db, 42))

	w = suite.request(http.MethodPost, "/api/v1/admin/generate_posts?count=3", suite.adminToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	suite.Equal("3 posts generated successfully.", suite.message(w))

	var posts int64
	suite.db.Model(&models.Post{}).Count(&posts)
	suite.Equal(int64(4), posts)

	w = suite.request(http.MethodPost, "/api/v1/admin/generate_analytics", suite.adminToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Equal("4 analytics generated successfully.", suite.message(w))

	row := suite.postAnalytics(suite.post.ID)
	suite.GreaterOrEqual(row.Views, int64(50))
	suite.Greater(row.Impressions, row.Views)

	w = suite.request(http.MethodGet, "/api/v1/admin/ctr?min_impressions=1&limit=2", suite.adminToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var report []struct {
		Slug string  `json:"slug"`
		CTR  float64 `json:"click_through_rate"`
	}
	suite.results(w, &report)
	suite.Require().Len(report, 2)
	suite.GreaterOrEqual(report[0].CTR, report[1].CTR)
}
