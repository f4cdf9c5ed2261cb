package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/steemit/blogd/internal/api/middleware"
	"github.com/steemit/blogd/internal/auth"
	"github.com/steemit/blogd/internal/cache"
	"github.com/steemit/blogd/internal/db"
	"github.com/steemit/blogd/pkg/config"
	"github.com/steemit/blogd/pkg/logging"
)

// Router sets up API routes
type Router struct {
	handler  *JSONRPCHandler
	blog     *BlogAPI
	db       *db.DB
	cache    *cache.Cache
	verifier *auth.Verifier
	cfg      *config.Config
	logger   *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(database *db.DB, redisCache *cache.Cache, verifier *auth.Verifier, cfg *config.Config) *Router {
	repo := db.NewRepository(database.DB)

	router := &Router{
		handler:  NewJSONRPCHandler(),
		blog:     NewBlogAPI(db.NewPostRepository(repo), db.NewTagRepository(repo), redisCache, cfg.Redis.ListTTL, cfg.Blog.DefaultPageSize),
		db:       database,
		cache:    redisCache,
		verifier: verifier,
		cfg:      cfg,
		logger:   logging.WithComponent("api-router"),
	}

	router.registerMethods()

	return router
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.Use(
		middleware.RequestLogger(),
		middleware.CORS(r.cfg.Server.CORSOrigins),
		middleware.Identity(r.verifier, r.cfg.Auth.CookieName),
	)

	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	// JSON-RPC endpoint
	engine.POST("/rpc", r.handler.Handle)

	blogs := engine.Group("/api/blogs")
	blogs.GET("", r.blog.ListPosts)
	blogs.GET("/:id", r.blog.GetPost)

	authed := blogs.Group("", middleware.RequireIdentity())
	authed.POST("", r.blog.CreatePost)
	authed.DELETE("/:id", r.blog.DeletePost)
	authed.PATCH("/:id", r.blog.SetPostStatus)

	engine.GET("/api/tags", r.blog.PopularTags)

	// Reading views
	engine.GET("/blogs", r.blog.RenderList)
	engine.GET("/blogs/:id", r.blog.RenderPost)
}

// registerMethods registers all API methods
func (r *Router) registerMethods() {
	r.handler.RegisterMethod("blog_api.get_post", r.blog.GetPostRPC)
	r.handler.RegisterMethod("blog_api.list_posts", r.blog.ListPostsRPC)
	r.handler.RegisterMethod("blog_api.get_tags", r.blog.PopularTagsRPC)
}

// healthHandler reports whether the database and, when enabled, Redis answer
func (r *Router) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"database": "OK"}
	healthy := true

	if err := r.db.Health(ctx); err != nil {
		r.logger.Error("Database health check failed", zap.Error(err))
		checks["database"] = "unavailable"
		healthy = false
	}

	switch err := r.cache.Health(ctx); {
	case errors.Is(err, cache.ErrCacheDisabled):
		checks["redis"] = "disabled"
	case err != nil:
		r.logger.Error("Redis health check failed", zap.Error(err))
		checks["redis"] = "unavailable"
		healthy = false
	default:
		checks["redis"] = "OK"
	}

	status, code := "OK", http.StatusOK
	if !healthy {
		status, code = "FAIL", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":  status,
		"service": r.cfg.Telemetry.ServiceName,
		"checks":  checks,
	})
}
