package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/blog/backend/internal/auth"
	"github.com/zfogg/blog/backend/internal/cache"
	"github.com/zfogg/blog/backend/internal/metrics"
	"github.com/zfogg/blog/backend/internal/models"
	"github.com/zfogg/blog/backend/internal/util"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRateLimit(t *testing.T) {
	store := cache.NewMemoryStore()
	router := gin.New()
	router.Use(RateLimit(store, RateLimitConfig{Scope: "test", Limit: 3, Window: time.Hour}))
	router.GET("/test", okHandler)

	request := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = ip + ":4000"
		return serve(router, req)
	}

	for i := 0; i < 3; i++ {
		w := request("10.0.0.1")
		assert.Equal(t, http.StatusOK, w.Code, "request %d should succeed", i+1)
	}
	assert.Equal(t, "0", request("10.0.0.1").Header().Get("X-RateLimit-Remaining"))

	w := request("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", decodeBody(t, w)["code"])

	assert.Equal(t, http.StatusOK, request("10.0.0.2").Code, "other clients keep their own window")
}

func TestRateLimitDisabled(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(cache.NewMemoryStore(), RateLimitConfig{Scope: "off", Limit: 0, Window: time.Minute}))
	router.GET("/test", okHandler)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/test", nil)).Code)
	}
}

func TestDefaultConfigs(t *testing.T) {
	def := DefaultRateLimitConfig(120)
	assert.Equal(t, 120, def.Limit)
	assert.Equal(t, time.Minute, def.Window)

	authConfig := AuthRateLimitConfig()
	assert.Equal(t, 10, authConfig.Limit)
	assert.NotEqual(t, def.Scope, authConfig.Scope)
}

func TestAPIKey(t *testing.T) {
	router := gin.New()
	router.Use(APIKey([]string{"k1", "k2"}))
	router.GET("/test", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := serve(router, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid or missing API key", decodeBody(t, w)["error"])

	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(APIKeyHeader, "nope")
	assert.Equal(t, http.StatusUnauthorized, serve(router, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(APIKeyHeader, "k2")
	assert.Equal(t, http.StatusOK, serve(router, req).Code)
}

func TestAPIKeyWithoutKeysIsOpen(t *testing.T) {
	router := gin.New()
	router.Use(APIKey(nil))
	router.GET("/test", okHandler)

	assert.Equal(t, http.StatusOK, serve(router, httptest.NewRequest(http.MethodGet, "/test", nil)).Code)
}

func newAuthRouter(mock *auth.MockAuthService, extra ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	handlers := append([]gin.HandlerFunc{Auth(mock)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		user, _ := util.OptionalUser(c)
		c.JSON(http.StatusOK, gin.H{"username": user.Username, "user_id": c.GetString(util.UserIDKey)})
	})
	router.GET("/me", handlers...)
	return router
}

func withToken(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestAuth(t *testing.T) {
	mock := auth.NewMockAuthService()
	user := &models.User{ID: "u1", Username: "alice", Role: models.RoleCustomer}
	token := mock.AddUser(user)
	router := newAuthRouter(mock)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(router, withToken(httptest.NewRequest(http.MethodGet, "/me", nil), "garbage"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(router, withToken(httptest.NewRequest(http.MethodGet, "/me", nil), token))
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "u1", body["user_id"])
}

func TestOptionalAuth(t *testing.T) {
	mock := auth.NewMockAuthService()
	token := mock.AddUser(&models.User{ID: "u1", Username: "alice"})

	router := gin.New()
	router.GET("/who", OptionalAuth(mock), func(c *gin.Context) {
		if user, ok := util.OptionalUser(c); ok {
			c.String(http.StatusOK, user.Username)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	assert.Equal(t, "anonymous", serve(router, httptest.NewRequest(http.MethodGet, "/who", nil)).Body.String())
	assert.Equal(t, "anonymous", serve(router, withToken(httptest.NewRequest(http.MethodGet, "/who", nil), "bad")).Body.String())
	assert.Equal(t, "alice", serve(router, withToken(httptest.NewRequest(http.MethodGet, "/who", nil), token)).Body.String())
}

func TestRoleGuards(t *testing.T) {
	mock := auth.NewMockAuthService()
	customer := mock.AddUser(&models.User{ID: "c1", Username: "carol", Role: models.RoleCustomer})
	editor := mock.AddUser(&models.User{ID: "e1", Username: "eve", Role: models.RoleEditor})
	admin := mock.AddUser(&models.User{ID: "a1", Username: "ann", Role: models.RoleAdmin})

	authorRouter := newAuthRouter(mock, RequireAuthor())
	w := serve(authorRouter, withToken(httptest.NewRequest(http.MethodGet, "/me", nil), customer))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "You do not have permissions to edit this post", decodeBody(t, w)["error"])
	assert.Equal(t, http.StatusOK, serve(authorRouter, withToken(httptest.NewRequest(http.MethodGet, "/me", nil), editor)).Code)

	adminRouter := newAuthRouter(mock, RequireAdmin())
	assert.Equal(t, http.StatusForbidden, serve(adminRouter, withToken(httptest.NewRequest(http.MethodGet, "/me", nil), editor)).Code)
	assert.Equal(t, http.StatusOK, serve(adminRouter, withToken(httptest.NewRequest(http.MethodGet, "/me", nil), admin)).Code)

	roleRouter := newAuthRouter(mock, RequireRole(models.RoleEditor, models.RoleModerator))
	assert.Equal(t, http.StatusOK, serve(roleRouter, withToken(httptest.NewRequest(http.MethodGet, "/me", nil), editor)).Code)
	assert.Equal(t, http.StatusForbidden, serve(roleRouter, withToken(httptest.NewRequest(http.MethodGet, "/me", nil), admin)).Code)
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestIDMiddleware(), GinLoggerMiddleware())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, RequestID(c))
	})

	w := serve(router, httptest.NewRequest(http.MethodGet, "/test", nil))
	generated := w.Header().Get("X-Request-ID")
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = serve(router, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestMetricsMiddlewareLabelsByRoute(t *testing.T) {
	m := metrics.Get()
	router := gin.New()
	router.Use(MetricsMiddleware())
	router.GET("/items/:id", okHandler)
	router.GET("/fail", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	})

	before := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/items/:id", "200"))
	serve(router, httptest.NewRequest(http.MethodGet, "/items/1", nil))
	serve(router, httptest.NewRequest(http.MethodGet, "/items/2", nil))
	assert.Equal(t, before+2, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/items/:id", "200")))

	beforeFail := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/fail", "500"))
	serve(router, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, beforeFail+1, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/fail", "500")))
}
