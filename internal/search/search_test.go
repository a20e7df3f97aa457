package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/blog/backend/internal/models"
	"github.com/zfogg/blog/backend/internal/testutil"
)

type fakeIndex struct {
	mu      sync.Mutex
	indexed []PostDocument
	deleted []string
}

func (f *fakeIndex) IndexPost(_ context.Context, doc PostDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, doc)
	return nil
}

func (f *fakeIndex) DeletePost(_ context.Context, postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, postID)
	return nil
}

func TestPostToDocument(t *testing.T) {
	post := &models.Post{
		ID:       "p1",
		Title:    "Hello",
		Content:  "<h1>Hello</h1>\n<p>Go <strong>fast</strong></p>",
		Slug:     "hello",
		Status:   models.PostStatusPublished,
		Category: &models.Category{Slug: "golang"},
		User:     &models.User{Username: "alice"},
		Analytics: &models.PostAnalytics{
			Views: 42,
		},
	}

	doc := PostToDocument(post)
	assert.Equal(t, "Hello Go fast", doc.Content)
	assert.Equal(t, "golang", doc.Category)
	assert.Equal(t, "alice", doc.Author)
	assert.Equal(t, int64(42), doc.Views)
	assert.Equal(t, "published", doc.Status)

	bare := PostToDocument(&models.Post{ID: "p2"})
	assert.Empty(t, bare.Category)
	assert.Empty(t, bare.Author)
	assert.Zero(t, bare.Views)
}

func TestBuildPostQuery(t *testing.T) {
	q := buildPostQuery("golang tips", 10, 20)
	assert.Equal(t, 20, q["from"])
	assert.Equal(t, 10, q["size"])

	raw, err := json.Marshal(q)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"query":"golang tips"`)
	assert.Contains(t, string(raw), `"title^3"`)
	assert.Contains(t, string(raw), `"status":"published"`)
}

func TestIndexerProcessesQueue(t *testing.T) {
	db := testutil.NewDB(t)
	author := testutil.CreateUser(t, db, "alice", models.RoleEditor)
	cat := testutil.CreateCategory(t, db, "golang", nil)
	published := testutil.CreatePost(t, db, author, cat, "hello-world")
	draft := testutil.CreatePost(t, db, author, cat, "wip")
	require.NoError(t, db.Model(draft).Update("status", models.PostStatusDraft).Error)

	index := &fakeIndex{}
	ix := NewIndexer(db, index, 8)
	ix.Start()
	ix.EnqueueIndex(published.ID)
	ix.EnqueueIndex(draft.ID)
	ix.EnqueueIndex("missing")
	ix.EnqueueDelete(published.ID)
	ix.Stop()

	require.Len(t, index.indexed, 1)
	assert.Equal(t, "hello-world", index.indexed[0].Slug)
	assert.Equal(t, "alice", index.indexed[0].Author)
	assert.Equal(t, []string{draft.ID, "missing", published.ID}, index.deleted)

	// Jobs after Stop are ignored.
	ix.EnqueueIndex(published.ID)
	assert.Len(t, index.indexed, 1)
}

func TestNilIndexerIsSafe(t *testing.T) {
	var ix *Indexer
	assert.NotPanics(t, func() {
		ix.Start()
		ix.EnqueueIndex("a")
		ix.EnqueueDelete("a")
		ix.Stop()
	})
}

func TestReindexSkipsDrafts(t *testing.T) {
	db := testutil.NewDB(t)
	author := testutil.CreateUser(t, db, "alice", models.RoleEditor)
	cat := testutil.CreateCategory(t, db, "golang", nil)
	testutil.CreatePost(t, db, author, cat, "one")
	testutil.CreatePost(t, db, author, cat, "two")
	draft := testutil.CreatePost(t, db, author, cat, "three")
	require.NoError(t, db.Model(draft).Update("status", models.PostStatusDraft).Error)

	index := &fakeIndex{}
	n, err := Reindex(context.Background(), db, index)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, index.indexed, 2)
}

func TestReconcileOnlyRecentChanges(t *testing.T) {
	db := testutil.NewDB(t)
	author := testutil.CreateUser(t, db, "alice", models.RoleEditor)
	cat := testutil.CreateCategory(t, db, "golang", nil)
	testutil.CreatePost(t, db, author, cat, "one")
	two := testutil.CreatePost(t, db, author, cat, "two")

	index := &fakeIndex{}
	rs := NewReconciliationService(db, index, time.Hour)
	passStart := time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
	rs.now = func() time.Time { return passStart }

	assert.Equal(t, 2, rs.Reconcile(context.Background()))

	require.NoError(t, db.Model(two).UpdateColumn("updated_at", passStart.Add(time.Minute)).Error)
	assert.Equal(t, 1, rs.Reconcile(context.Background()))
	assert.Equal(t, "two", index.indexed[2].Slug)
}

func fakeCluster(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/" {
			w.Write([]byte(`{"version":{"number":"9.0.0"},"tagline":"You Know, for Search"}`))
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	return client
}

func TestSearchPostsParsesHits(t *testing.T) {
	client := fakeCluster(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/"+IndexPosts+"/_search", r.URL.Path)
		w.Write([]byte(`{"hits":{"total":{"value":2},"hits":[{"_id":"b"},{"_id":"a"}]}}`))
	})

	res, err := client.SearchPosts(context.Background(), "go", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Total)
	assert.Equal(t, []string{"b", "a"}, res.IDs)
}

func TestDeletePostToleratesMissing(t *testing.T) {
	client := fakeCluster(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"result":"not_found"}`))
	})

	assert.NoError(t, client.DeletePost(context.Background(), "gone"))
}

func TestIndexPostReportsClusterError(t *testing.T) {
	client := fakeCluster(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"mapper_parsing_exception"}}`))
	})

	err := client.IndexPost(context.Background(), PostDocument{ID: "p1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapper_parsing_exception")
}

func TestSearchErrorCarriesReason(t *testing.T) {
	client := fakeCluster(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"search_phase_execution_exception","reason":"all shards failed"}}`))
	})

	_, err := client.SearchPosts(context.Background(), "go", 10, 0)
	require.Error(t, err)
	assert.Equal(t, "search error: search_phase_execution_exception: all shards failed", err.Error())
}
