package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"github.com/steemit/blogd/internal/api/middleware"
	"github.com/steemit/blogd/internal/api/objects"
	"github.com/steemit/blogd/internal/cache"
	"github.com/steemit/blogd/internal/db"
	"github.com/steemit/blogd/internal/models"
	"github.com/steemit/blogd/pkg/logging"
)

const (
	listVersionKey = "posts:list_version"
	listKeyPrefix  = "posts:list:"
)

// BlogAPI serves the post endpoints over REST and JSON-RPC
type BlogAPI struct {
	posts           *db.PostRepository
	tags            *db.TagRepository
	cache           *cache.Cache
	listTTL         time.Duration
	defaultPageSize int
	logger          *zap.Logger
}

// NewBlogAPI creates a new blog API. redisCache may be nil.
func NewBlogAPI(posts *db.PostRepository, tags *db.TagRepository, redisCache *cache.Cache, listTTL time.Duration, defaultPageSize int) *BlogAPI {
	return &BlogAPI{
		posts:           posts,
		tags:            tags,
		cache:           redisCache,
		listTTL:         listTTL,
		defaultPageSize: defaultPageSize,
		logger:          logging.WithComponent("blog-api"),
	}
}

// listQuery holds the listing filters as they arrive on the wire
type listQuery struct {
	AuthorID *int64  `form:"author_id" json:"author_id"`
	Tag      *string `form:"tag" json:"tag"`
	Page     int     `form:"page" json:"page"`
	PageSize int     `form:"page_size" json:"page_size"`
}

func (a *BlogAPI) params(q listQuery) db.ListParams {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = a.defaultPageSize
	}
	return db.ListParams{
		AuthorID: q.AuthorID,
		Tag:      q.Tag,
		Page:     q.Page,
		PageSize: q.PageSize,
	}.Normalize()
}

// list returns a shaped listing page, read through the list cache when one
// is configured. Cached pages are keyed by a version counter that every
// successful mutation bumps.
func (a *BlogAPI) list(ctx context.Context, params db.ListParams) (*objects.PostListResponse, error) {
	var key string
	if a.cache != nil {
		version, err := a.cache.GetInt(ctx, listVersionKey)
		if err != nil {
			a.logger.Warn("List cache unavailable", zap.Error(err))
		} else {
			key = listKeyPrefix + cache.HashKey(
				strconv.FormatInt(version, 10),
				params.Describe(),
				strconv.Itoa(params.Page),
				strconv.Itoa(params.PageSize),
			)

			var cached objects.PostListResponse
			err := a.cache.GetJSON(ctx, key, &cached)
			if err == nil {
				a.logger.Info("Posts listed",
					zap.Int("page", params.Page),
					zap.Int("rows", len(cached.Posts)),
					zap.Int64("total_result", cached.TotalResult),
					zap.String("filters", params.Describe()),
					zap.Bool("cached", true))
				return &cached, nil
			}
			if !errors.Is(err, cache.ErrCacheMiss) {
				a.logger.Warn("List cache read failed", zap.Error(err))
			}
		}
	}

	list, err := a.posts.List(ctx, params)
	if err != nil {
		return nil, err
	}
	resp := objects.ShapeList(list)

	if key != "" {
		if err := a.cache.SetJSON(ctx, key, resp, a.listTTL); err != nil {
			a.logger.Warn("List cache write failed", zap.Error(err))
		}
	}
	return &resp, nil
}

// invalidateLists makes every cached listing page stale
func (a *BlogAPI) invalidateLists(ctx context.Context) {
	if a.cache == nil {
		return
	}
	if _, err := a.cache.Incr(ctx, listVersionKey); err != nil {
		a.logger.Warn("List cache invalidation failed", zap.Error(err))
	}
}

// CreatePost handles POST /api/blogs
func (a *BlogAPI) CreatePost(c *gin.Context) {
	var req objects.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err})
		return
	}

	ctx := c.Request.Context()
	post, err := a.posts.Create(ctx, *middleware.CallerID(c), req.ToNewPost())
	switch {
	case errors.Is(err, db.ErrDuplicateTitle):
		c.JSON(http.StatusConflict, gin.H{"detail": "Post with this title already exists"})
		return
	case errors.Is(err, db.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	case err != nil:
		a.serverError(c, err)
		return
	}

	a.invalidateLists(ctx)
	c.JSON(http.StatusCreated, gin.H{
		"status":  "success",
		"message": fmt.Sprintf("Post with id %d successfully added", post.ID),
		"id":      post.ID,
	})
}

// ListPosts handles GET /api/blogs
func (a *BlogAPI) ListPosts(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid query parameters"})
		return
	}

	resp, err := a.list(c.Request.Context(), a.params(q))
	if err != nil {
		a.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetPost handles GET /api/blogs/:id
func (a *BlogAPI) GetPost(c *gin.Context) {
	post, ok := a.loadPost(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, objects.ShapePost(post))
}

// RenderPost handles GET /blogs/:id, the reading view with HTML content
func (a *BlogAPI) RenderPost(c *gin.Context) {
	post, ok := a.loadPost(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"article":         objects.ShapeRenderedPost(post),
		"current_user_id": middleware.CallerID(c),
	})
}

// RenderList handles GET /blogs, the listing view with its active filters
func (a *BlogAPI) RenderList(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid query parameters"})
		return
	}

	resp, err := a.list(c.Request.Context(), a.params(q))
	if err != nil {
		a.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"article": resp,
		"filters": gin.H{
			"author_id": q.AuthorID,
			"tag":       q.Tag,
		},
	})
}

func (a *BlogAPI) loadPost(c *gin.Context) (*models.Post, bool) {
	postID, ok := postIDParam(c)
	if !ok {
		return nil, false
	}

	post, err := a.posts.Get(c.Request.Context(), postID, middleware.CallerID(c))
	if errors.Is(err, db.ErrPostNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"detail": fmt.Sprintf("Post %d does not exist or you do not have access to it", postID),
		})
		return nil, false
	}
	if err != nil {
		a.serverError(c, err)
		return nil, false
	}
	return post, true
}

// DeletePost handles DELETE /api/blogs/:id
func (a *BlogAPI) DeletePost(c *gin.Context) {
	postID, ok := postIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	outcome, err := a.posts.Delete(ctx, postID, *middleware.CallerID(c))
	if err != nil {
		a.serverError(c, err)
		return
	}
	a.respondOutcome(c, outcome)
}

// SetPostStatus handles PATCH /api/blogs/:id?new_status=
func (a *BlogAPI) SetPostStatus(c *gin.Context) {
	postID, ok := postIDParam(c)
	if !ok {
		return
	}

	status := models.PostStatus(c.Query("new_status"))
	if err := validation.Validate(string(status),
		validation.Required,
		validation.In(string(models.StatusDraft), string(models.StatusPublished)),
	); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "new_status must be draft or published"})
		return
	}

	outcome, err := a.posts.SetStatus(c.Request.Context(), postID, status, *middleware.CallerID(c))
	if err != nil {
		a.serverError(c, err)
		return
	}
	a.respondOutcome(c, outcome)
}

func (a *BlogAPI) respondOutcome(c *gin.Context, outcome *db.Outcome) {
	code := http.StatusOK
	switch outcome.Kind {
	case db.OutcomeSuccess:
		a.invalidateLists(c.Request.Context())
	case db.OutcomeForbidden:
		code = http.StatusForbidden
	case db.OutcomeNotFound:
		code = http.StatusNotFound
	}
	c.JSON(code, outcome)
}

func (a *BlogAPI) serverError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
}

func postIDParam(c *gin.Context) (int64, bool) {
	postID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || postID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid post id"})
		return 0, false
	}
	return postID, true
}

// PopularTags handles GET /api/tags
func (a *BlogAPI) PopularTags(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid limit"})
		return
	}

	counts, err := a.tags.Popular(c.Request.Context(), limit)
	if err != nil {
		a.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

// getPostParams are the params of blog_api.get_post
type getPostParams struct {
	ID int64 `json:"id"`
}

// GetPostRPC handles blog_api.get_post
func (a *BlogAPI) GetPostRPC(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p getPostParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.ID <= 0 {
		return nil, NewError(ErrInvalidParams, "missing required parameter: id")
	}

	post, err := a.posts.Get(c.Request.Context(), p.ID, middleware.CallerID(c))
	if err != nil {
		return nil, err
	}
	return objects.ShapePost(post), nil
}

// ListPostsRPC handles blog_api.list_posts
func (a *BlogAPI) ListPostsRPC(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var q listQuery
	if err := decodeParams(params, &q); err != nil {
		return nil, err
	}
	return a.list(c.Request.Context(), a.params(q))
}

// decodeParams accepts a params object; absent params decode to zero values
func decodeParams(params json.RawMessage, dest interface{}) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, dest); err != nil {
		return NewError(ErrInvalidParams, "invalid parameters format")
	}
	return nil
}

// getTagsParams are the params of blog_api.get_tags
type getTagsParams struct {
	Limit int `json:"limit"`
}

// PopularTagsRPC handles blog_api.get_tags
func (a *BlogAPI) PopularTagsRPC(c *gin.Context, params json.RawMessage) (interface{}, error) {
	p := getTagsParams{Limit: 20}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return a.tags.Popular(c.Request.Context(), p.Limit)
}
