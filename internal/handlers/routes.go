package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/zfogg/blog/backend/internal/middleware"
)

// RouteConfig holds the request gates mounted in front of the API.
type RouteConfig struct {
	APIKeys            []string
	RateLimitPerMinute int
}

// RegisterRoutes mounts /health and the /api/v1 tree on r.
func (h *Handlers) RegisterRoutes(r gin.IRouter, cfg RouteConfig) {
	r.GET("/health", h.Health)

	store := h.cache.Store()
	requireAuth := middleware.Auth(h.auth)
	optionalAuth := middleware.OptionalAuth(h.auth)
	authLimit := middleware.RateLimit(store, middleware.AuthRateLimitConfig())

	api := r.Group("/api/v1")
	api.Use(
		middleware.APIKey(cfg.APIKeys),
		middleware.RateLimit(store, middleware.DefaultRateLimitConfig(cfg.RateLimitPerMinute)),
	)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", authLimit, h.Register)
		authGroup.POST("/login", authLimit, h.Login)
		authGroup.POST("/refresh", authLimit, h.Refresh)
		authGroup.GET("/me", requireAuth, h.Me)

		otpGroup := authGroup.Group("/otp")
		otpGroup.POST("/login", authLimit, h.OTPLogin)
		otpGroup.GET("/qr", requireAuth, h.GenerateQRCode)
		otpGroup.POST("/reset", requireAuth, h.ResetOTP)
		otpGroup.POST("/verify", authLimit, requireAuth, h.VerifyOTP)
		otpGroup.POST("/disable", authLimit, requireAuth, h.DisableOTP)
		otpGroup.POST("/2fa", requireAuth, h.Set2FA)
	}

	// Categories
	api.GET("/categories", h.ListCategories)
	api.GET("/category", h.GetCategory)
	api.GET("/category/posts", h.ListCategoryPosts)
	api.POST("/category/increment_click", h.IncrementCategoryClick)

	// Posts
	api.GET("/posts", h.ListPosts)
	api.GET("/post", optionalAuth, h.GetPost)
	api.GET("/post/headings", h.GetPostHeadings)
	api.POST("/post/increment_click", h.IncrementPostClick)
	api.GET("/post/analytics", requireAuth, h.GetPostAnalytics)

	author := api.Group("/post/author", requireAuth, middleware.RequireAuthor())
	{
		author.GET("", h.ListAuthorPosts)
		author.POST("", h.CreatePost)
		author.PUT("", h.UpdatePost)
		author.DELETE("", h.DeletePost)
	}

	// Engagement
	api.POST("/post/like", requireAuth, h.LikePost)
	api.DELETE("/post/like", requireAuth, h.UnlikePost)
	api.POST("/post/share", optionalAuth, h.SharePost)

	api.GET("/post/comments", h.ListPostComments)
	api.GET("/post/comment/replies", h.ListCommentReplies)
	comments := api.Group("/post/comment", requireAuth)
	{
		comments.POST("", h.CreateComment)
		comments.PUT("", h.UpdateComment)
		comments.DELETE("", h.DeleteComment)
		comments.POST("/reply", h.CreateCommentReply)
	}

	api.GET("/search/posts", h.SearchPosts)

	admin := api.Group("/admin", requireAuth, middleware.RequireAdmin())
	{
		admin.POST("/generate_posts", h.GeneratePosts)
		admin.POST("/generate_analytics", h.GenerateAnalytics)
		admin.GET("/ctr", h.TopCTR)
	}
}
