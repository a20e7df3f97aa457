package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"github.com/zfogg/blog/backend/internal/auth"
	"github.com/zfogg/blog/backend/internal/cache"
	"github.com/zfogg/blog/backend/internal/dto"
	"github.com/zfogg/blog/backend/internal/models"
	"github.com/zfogg/blog/backend/internal/otp"
	"github.com/zfogg/blog/backend/internal/repository"
	"github.com/zfogg/blog/backend/internal/search"
	"github.com/zfogg/blog/backend/internal/storage"
	"github.com/zfogg/blog/backend/internal/testutil"
	"gorm.io/gorm"
)

// HandlersTestSuite runs the API against an in-memory database, the memory
// cache store and the mock auth service.
type HandlersTestSuite struct {
	suite.Suite
	db       *gorm.DB
	store    *cache.MemoryStore
	auth     *auth.MockAuthService
	otp      *otp.Service
	handlers *Handlers
	router   *gin.Engine
	clock    time.Time

	editor   *models.User
	alice    *models.User
	admin    *models.User
	category *models.Category
	post     *models.Post

	editorToken string
	aliceToken  string
	adminToken  string
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}

func (suite *HandlersTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	suite.db = testutil.NewDB(suite.T())
	suite.store = cache.NewMemoryStore()
	suite.auth = auth.NewMockAuthService()
	suite.otp = otp.NewService(repository.NewUserRepository(suite.db), storage.NewMemoryUploader(), suite.auth)
	suite.clock = time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	suite.otp.SetClock(func() time.Time { return suite.clock })

	suite.handlers = NewHandlers(suite.db, cache.NewManager(suite.store, 5*time.Minute), suite.auth, suite.otp)
	suite.router = gin.New()
	suite.handlers.RegisterRoutes(suite.router, RouteConfig{})

	suite.editor = testutil.CreateUser(suite.T(), suite.db, "editor", models.RoleEditor)
	suite.alice = testutil.CreateUser(suite.T(), suite.db, "alice", models.RoleCustomer)
	suite.admin = testutil.CreateUser(suite.T(), suite.db, "boss", models.RoleAdmin)
	suite.editorToken = suite.auth.AddUser(suite.editor)
	suite.aliceToken = suite.auth.AddUser(suite.alice)
	suite.adminToken = suite.auth.AddUser(suite.admin)

	suite.category = testutil.CreateCategory(suite.T(), suite.db, "tech", nil)
	suite.post = testutil.CreatePost(suite.T(), suite.db, suite.editor, suite.category, "hello-world")
}

// request sends a JSON request through the router.
func (suite *HandlersTestSuite) request(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Status  int             `json:"status"`
	Results json.RawMessage `json:"results"`
}

type pageEnvelope struct {
	Count    int64           `json:"count"`
	Page     int             `json:"page"`
	Next     *int            `json:"next"`
	Previous *int            `json:"previous"`
	Results  json.RawMessage `json:"results"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"error"`
	Field   string `json:"field"`
}

// results decodes the results of a success envelope into dst.
func (suite *HandlersTestSuite) results(w *httptest.ResponseRecorder, dst interface{}) {
	var env envelope
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	suite.True(env.Success)
	suite.Equal(w.Code, env.Status)
	suite.Require().NoError(json.Unmarshal(env.Results, dst))
}

// message decodes a success envelope whose results is a plain string.
func (suite *HandlersTestSuite) message(w *httptest.ResponseRecorder) string {
	var msg string
	suite.results(w, &msg)
	return msg
}

// page decodes a paginated envelope, its items into items.
func (suite *HandlersTestSuite) page(w *httptest.ResponseRecorder, items interface{}) pageEnvelope {
	var p pageEnvelope
	suite.results(w, &p)
	suite.Require().NoError(json.Unmarshal(p.Results, items))
	return p
}

func (suite *HandlersTestSuite) apiError(w *httptest.ResponseRecorder) errorBody {
	var body errorBody
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func (suite *HandlersTestSuite) postAnalytics(postID string) models.PostAnalytics {
	var row models.PostAnalytics
	suite.Require().NoError(suite.db.Where("post_id = ?", postID).First(&row).Error)
	return row
}

func (suite *HandlersTestSuite) categoryAnalytics(categoryID string) models.CategoryAnalytics {
	var row models.CategoryAnalytics
	suite.Require().NoError(suite.db.Where("category_id = ?", categoryID).First(&row).Error)
	return row
}

func (suite *HandlersTestSuite) TestHealth() {
	w := suite.request(http.MethodGet, "/health", "", nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), `"database":"ok"`)
}

func (suite *HandlersTestSuite) TestListPostsPaginatesAndCountsImpressions() {
	for _, slug := range []string{"second", "third", "fourth"} {
		testutil.CreatePost(suite.T(), suite.db, suite.editor, suite.category, slug)
	}

	w := suite.request(http.MethodGet, "/api/v1/posts?page_size=3", "", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var items []dto.PostListItem
	p := suite.page(w, &items)
	suite.Equal(int64(4), p.Count)
	suite.Len(items, 3)
	suite.Require().NotNil(p.Next)
	suite.Equal(2, *p.Next)
	suite.Nil(p.Previous)

	for _, item := range items {
		count, err := suite.store.Get(context.Background(), cache.PostImpressionsKey(item.ID))
		suite.NoError(err)
		suite.Equal("1", count)
	}

	w = suite.request(http.MethodGet, "/api/v1/posts?page_size=3&p=2", "", nil)
	p = suite.page(w, &items)
	suite.Len(items, 1)
	suite.Nil(p.Next)
}

func (suite *HandlersTestSuite) TestListPostsExcludesDrafts() {
	draft := testutil.CreatePost(suite.T(), suite.db, suite.editor, suite.category, "draft-post")
	suite.Require().NoError(suite.db.Model(draft).Update("status", models.PostStatusDraft).Error)

	w := suite.request(http.MethodGet, "/api/v1/posts", "", nil)
	var items []dto.PostListItem
	p := suite.page(w, &items)
	suite.Equal(int64(1), p.Count)
	suite.Equal("hello-world", items[0].Slug)
}

func (suite *HandlersTestSuite) TestListPostsFilters() {
	music := testutil.CreateCategory(suite.T(), suite.db, "music", nil)
	testutil.CreatePost(suite.T(), suite.db, suite.alice, music, "jazz-notes")

	cases := []struct {
		query string
		slug  string
	}{
		{"category=music", "jazz-notes"},
		{"category=" + music.ID, "jazz-notes"},
		{"search=JAZZ", "jazz-notes"},
		{"author=editor", "hello-world"},
	}
	for _, tc := range cases {
		w := suite.request(http.MethodGet, "/api/v1/posts?"+tc.query, "", nil)
		var items []dto.PostListItem
		p := suite.page(w, &items)
		suite.Equal(int64(1), p.Count, tc.query)
		suite.Require().Len(items, 1, tc.query)
		suite.Equal(tc.slug, items[0].Slug, tc.query)
	}

	w := suite.request(http.MethodGet, "/api/v1/posts?category=unknown", "", nil)
	var items []dto.PostListItem
	p := suite.page(w, &items)
	suite.Equal(int64(0), p.Count)
	suite.Empty(items)
}

func (suite *HandlersTestSuite) TestListPostsSortsByViews() {
	popular := testutil.CreatePost(suite.T(), suite.db, suite.editor, suite.category, "popular")
	suite.Require().NoError(suite.db.Model(&models.PostAnalytics{}).Where("post_id = ?", popular.ID).Update("views", 500).Error)

	w := suite.request(http.MethodGet, "/api/v1/posts?sorting=most_viewed", "", nil)
	var items []dto.PostListItem
	suite.page(w, &items)
	suite.Require().Len(items, 2)
	suite.Equal("popular", items[0].Slug)
	suite.Equal(int64(500), items[0].ViewCount)
}

func (suite *HandlersTestSuite) TestGetPostRegistersViewOnce() {
	for i := 0; i < 2; i++ {
		w := suite.request(http.MethodGet, "/api/v1/post?slug=hello-world", "", nil)
		suite.Require().Equal(http.StatusOK, w.Code)
		var detail dto.PostDetail
		suite.results(w, &detail)
		suite.Equal("editor", detail.Author)
		suite.False(detail.HasLiked)
	}

	suite.Equal(int64(1), suite.postAnalytics(suite.post.ID).Views)

	var interactions int64
	suite.db.Model(&models.PostInteraction{}).
		Where("post_id = ? AND interaction_type = ?", suite.post.ID, models.InteractionView).
		Count(&interactions)
	suite.Equal(int64(1), interactions)
}

func (suite *HandlersTestSuite) TestGetPostViewIdentityIncludesUser() {
	suite.request(http.MethodGet, "/api/v1/post?slug=hello-world", "", nil)
	suite.request(http.MethodGet, "/api/v1/post?slug=hello-world", suite.aliceToken, nil)
	suite.Equal(int64(2), suite.postAnalytics(suite.post.ID).Views)
}

func (suite *HandlersTestSuite) TestGetPostErrors() {
	w := suite.request(http.MethodGet, "/api/v1/post", "", nil)
	suite.Equal(http.StatusNotFound, w.Code)
	suite.Equal("A valid slug must be provided.", suite.apiError(w).Message)

	w = suite.request(http.MethodGet, "/api/v1/post?slug=missing", "", nil)
	suite.Equal(http.StatusNotFound, w.Code)
	suite.Equal("Post missing does not exist.", suite.apiError(w).Message)
}

func (suite *HandlersTestSuite) TestGetPostHeadings() {
	suite.Require().NoError(suite.db.Create(&[]models.Heading{
		{PostID: suite.post.ID, Title: "Second", Slug: "second", Level: 2, Order: 2},
		{PostID: suite.post.ID, Title: "First", Slug: "first", Level: 2, Order: 1},
	}).Error)

	w := suite.request(http.MethodGet, "/api/v1/post/headings?slug=hello-world", "", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var headings []dto.HeadingResponse
	suite.results(w, &headings)
	suite.Require().Len(headings, 2)
	suite.Equal("first", headings[0].Slug)
	suite.Equal("second", headings[1].Slug)
}

func (suite *HandlersTestSuite) TestIncrementPostClickRecomputesCTR() {
	suite.Require().NoError(suite.db.Model(&models.PostAnalytics{}).
		Where("post_id = ?", suite.post.ID).Update("impressions", 10).Error)

	w := suite.request(http.MethodPost, "/api/v1/post/increment_click", "", gin.H{"slug": "hello-world"})
	suite.Require().Equal(http.StatusOK, w.Code)
	var resp dto.ClickResponse
	suite.results(w, &resp)
	suite.Equal("Click incremented successfully", resp.Message)
	suite.Equal(int64(1), resp.Clicks)

	row := suite.postAnalytics(suite.post.ID)
	suite.Equal(int64(1), row.Clicks)
	suite.InDelta(10.0, row.ClickThroughRate, 0.001)

	w = suite.request(http.MethodPost, "/api/v1/post/increment_click", "", gin.H{"slug": "nope"})
	suite.Equal(http.StatusNotFound, w.Code)
	suite.Equal("The requested post does not exist.", suite.apiError(w).Message)
}

func (suite *HandlersTestSuite) TestListCategoriesRootsAndChildren() {
	testutil.CreateCategory(suite.T(), suite.db, "golang", suite.category)
	testutil.CreateCategory(suite.T(), suite.db, "music", nil)

	w := suite.request(http.MethodGet, "/api/v1/categories?sorting=az", "", nil)
	var items []dto.CategoryListItem
	p := suite.page(w, &items)
	suite.Equal(int64(2), p.Count)
	suite.Equal("music", items[0].Slug)
	suite.Equal("tech", items[1].Slug)

	count, err := suite.store.Get(context.Background(), cache.CategoryImpressionsKey(suite.category.ID))
	suite.NoError(err)
	suite.Equal("1", count)

	w = suite.request(http.MethodGet, "/api/v1/categories?parent_slug=tech", "", nil)
	p = suite.page(w, &items)
	suite.Equal(int64(1), p.Count)
	suite.Equal("golang", items[0].Slug)

	w = suite.request(http.MethodGet, "/api/v1/categories?search=GOL", "", nil)
	p = suite.page(w, &items)
	suite.Equal(int64(1), p.Count)
	suite.Equal("golang", items[0].Slug)
}

func (suite *HandlersTestSuite) TestCategoryPostsIncludeDescendants() {
	child := testutil.CreateCategory(suite.T(), suite.db, "golang", suite.category)
	grandchild := testutil.CreateCategory(suite.T(), suite.db, "generics", child)
	testutil.CreatePost(suite.T(), suite.db, suite.editor, grandchild, "type-params")
	other := testutil.CreateCategory(suite.T(), suite.db, "music", nil)
	testutil.CreatePost(suite.T(), suite.db, suite.editor, other, "jazz")

	w := suite.request(http.MethodGet, "/api/v1/category/posts?slug=tech", "", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var items []dto.PostListItem
	p := suite.page(w, &items)
	suite.Equal(int64(2), p.Count)

	w = suite.request(http.MethodGet, "/api/v1/category/posts?slug=golang", "", nil)
	p = suite.page(w, &items)
	suite.Equal(int64(1), p.Count)
	suite.Equal("type-params", items[0].Slug)

	w = suite.request(http.MethodGet, "/api/v1/category/posts", "", nil)
	suite.Equal(http.StatusNotFound, w.Code)
	suite.Equal("Missing slug parameter", suite.apiError(w).Message)
}

func (suite *HandlersTestSuite) TestGetCategoryRegistersViewOncePerIP() {
	for i := 0; i < 2; i++ {
		w := suite.request(http.MethodGet, "/api/v1/category?slug=tech", "", nil)
		suite.Require().Equal(http.StatusOK, w.Code)
		var detail dto.CategoryDetail
		suite.results(w, &detail)
		suite.Equal("tech", detail.Slug)
		suite.Require().NotNil(detail.Analytics)
		suite.Equal(int64(1), detail.Analytics.Views)
	}
	suite.Equal(int64(1), suite.categoryAnalytics(suite.category.ID).Views)

	w := suite.request(http.MethodGet, "/api/v1/category?slug=nope", "", nil)
	suite.Equal(http.StatusNotFound, w.Code)
	suite.Equal("The requested category does not exist.", suite.apiError(w).Message)
}

func (suite *HandlersTestSuite) TestIncrementCategoryClick() {
	w := suite.request(http.MethodPost, "/api/v1/category/increment_click", "", gin.H{"slug": "tech"})
	suite.Require().Equal(http.StatusOK, w.Code)
	var resp dto.ClickResponse
	suite.results(w, &resp)
	suite.Equal(int64(1), resp.Clicks)
	suite.Equal(int64(1), suite.categoryAnalytics(suite.category.ID).Clicks)
}

func (suite *HandlersTestSuite) TestListCacheIsInvalidatedByNewPost() {
	w := suite.request(http.MethodGet, "/api/v1/posts", "", nil)
	var items []dto.PostListItem
	suite.Equal(int64(1), suite.page(w, &items).Count)

	w = suite.request(http.MethodPost, "/api/v1/post/author", suite.editorToken, gin.H{
		"title": "Fresh", "content": "<p>new</p>", "slug": "fresh", "category": "tech", "status": "published",
	})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = suite.request(http.MethodGet, "/api/v1/posts", "", nil)
	suite.Equal(int64(2), suite.page(w, &items).Count)
}

type stubSearcher struct {
	result *search.SearchPostsResult
	err    error
}

func (s stubSearcher) SearchPosts(context.Context, string, int, int) (*search.SearchPostsResult, error) {
	return s.result, s.err
}

func (suite *HandlersTestSuite) TestSearchUsesIndexOrder() {
	second := testutil.CreatePost(suite.T(), suite.db, suite.editor, suite.category, "second")
	suite.handlers.SetSearch(stubSearcher{result: &search.SearchPostsResult{
		IDs:   []string{second.ID, suite.post.ID},
		Total: 2,
	}}, nil)

	w := suite.request(http.MethodGet, "/api/v1/search/posts?q=title", "", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var items []dto.PostListItem
	p := suite.page(w, &items)
	suite.Equal(int64(2), p.Count)
	suite.Require().Len(items, 2)
	suite.Equal("second", items[0].Slug)
	suite.Equal("hello-world", items[1].Slug)
}

func (suite *HandlersTestSuite) TestSearchFallsBackToDatabase() {
	suite.handlers.SetSearch(stubSearcher{err: errors.New("connection refused")}, nil)

	w := suite.request(http.MethodGet, "/api/v1/search/posts?q=hello", "", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var items []dto.PostListItem
	p := suite.page(w, &items)
	suite.Equal(int64(1), p.Count)
	suite.Equal("hello-world", items[0].Slug)

	w = suite.request(http.MethodGet, "/api/v1/search/posts", "", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}
