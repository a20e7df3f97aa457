package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/tidwall/gjson"
)

// IndexPosts is the only index the blog maintains.
const IndexPosts = "blog-posts"

// Client wraps the Elasticsearch client with the post index operations.
type Client struct {
	es *elasticsearch.Client
}

// NewClient connects to the cluster at url and verifies it answers.
func NewClient(url string) (*Client, error) {
	return newClient(elasticsearch.Config{Addresses: []string{url}})
}

func newClient(cfg elasticsearch.Config) (*Client, error) {
	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	res, err := es.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch info: %s", res.Status())
	}

	return &Client{es: es}, nil
}

// InitializeIndices creates the posts index when it is missing.
func (c *Client) InitializeIndices(ctx context.Context) error {
	if err := c.createPostsIndex(ctx); err != nil {
		return fmt.Errorf("failed to create posts index: %w", err)
	}
	return nil
}

func postsMapping() map[string]interface{} {
	text := map[string]interface{}{"type": "text"}
	keyword := map[string]interface{}{"type": "keyword"}
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id": keyword,
				"title": map[string]interface{}{
					"type": "text",
					"fields": map[string]interface{}{
						"keyword": keyword,
					},
				},
				"description": text,
				"content":     text,
				"keywords":    text,
				"slug":        keyword,
				"category":    keyword,
				"author":      keyword,
				"status":      keyword,
				"views":       map[string]interface{}{"type": "long"},
				"created_at":  map[string]interface{}{"type": "date"},
				"updated_at":  map[string]interface{}{"type": "date"},
			},
		},
	}
}

func (c *Client) createPostsIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{IndexPosts}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return err
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, err := json.Marshal(postsMapping())
	if err != nil {
		return err
	}

	res, err = c.es.Indices.Create(
		IndexPosts,
		c.es.Indices.Create.WithBody(bytes.NewReader(body)),
		c.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return decodeError(res.Body, "error creating index")
	}
	return nil
}

// DeleteIndex drops the posts index. A missing index is not an error.
func (c *Client) DeleteIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete([]string{IndexPosts}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return decodeError(res.Body, "error deleting index")
	}
	return nil
}

// IndexPost upserts a post document.
func (c *Client) IndexPost(ctx context.Context, doc PostDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	res, err := c.es.Index(
		IndexPosts,
		bytes.NewReader(body),
		c.es.Index.WithDocumentID(doc.ID),
		c.es.Index.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return decodeError(res.Body, "error indexing post")
	}
	return nil
}

// DeletePost removes a post document. A missing document is not an error.
func (c *Client) DeletePost(ctx context.Context, postID string) error {
	res, err := c.es.Delete(
		IndexPosts,
		postID,
		c.es.Delete.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("error deleting post: %s", res.Status())
	}
	return nil
}

// SearchPostsResult holds the matching post ids in score order.
type SearchPostsResult struct {
	IDs   []string
	Total int64
}

// buildPostQuery matches the query against the text fields of published posts,
// with title hits weighted highest and popular posts nudged up.
func buildPostQuery(query string, limit, offset int) map[string]interface{} {
	return map[string]interface{}{
		"from":    offset,
		"size":    limit,
		"_source": []string{"id"},
		"query": map[string]interface{}{
			"function_score": map[string]interface{}{
				"query": map[string]interface{}{
					"bool": map[string]interface{}{
						"must": []interface{}{
							map[string]interface{}{
								"multi_match": map[string]interface{}{
									"query":     query,
									"fields":    []string{"title^3", "description^2", "keywords^2", "content"},
									"fuzziness": "AUTO",
								},
							},
						},
						"filter": []interface{}{
							map[string]interface{}{
								"term": map[string]interface{}{"status": "published"},
							},
						},
					},
				},
				"functions": []interface{}{
					map[string]interface{}{
						"field_value_factor": map[string]interface{}{
							"field":    "views",
							"modifier": "log1p",
							"missing":  0,
						},
					},
				},
				"boost_mode": "sum",
			},
		},
	}
}

// SearchPosts runs a full-text search over published posts.
func (c *Client) SearchPosts(ctx context.Context, query string, limit, offset int) (*SearchPostsResult, error) {
	body, err := json.Marshal(buildPostQuery(query, limit, offset))
	if err != nil {
		return nil, err
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(IndexPosts),
		c.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, decodeError(res.Body, "search error")
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("failed to decode search response: invalid JSON")
	}

	hits := gjson.GetBytes(raw, "hits.hits.#._id").Array()
	result := &SearchPostsResult{
		IDs:   make([]string, 0, len(hits)),
		Total: gjson.GetBytes(raw, "hits.total.value").Int(),
	}
	for _, id := range hits {
		result.IDs = append(result.IDs, id.String())
	}
	return result, nil
}

// decodeError reports the type and reason of an Elasticsearch error body.
func decodeError(body io.Reader, prefix string) error {
	raw, err := io.ReadAll(body)
	if err != nil || !gjson.ValidBytes(raw) {
		return fmt.Errorf("%s: unreadable error body", prefix)
	}

	e := gjson.GetBytes(raw, "error")
	if typ := e.Get("type"); typ.Exists() {
		if reason := e.Get("reason").String(); reason != "" {
			return fmt.Errorf("%s: %s: %s", prefix, typ.String(), reason)
		}
		return fmt.Errorf("%s: %s", prefix, typ.String())
	}
	if e.Exists() {
		return fmt.Errorf("%s: %s", prefix, e.String())
	}
	return fmt.Errorf("%s: %s", prefix, raw)
}
