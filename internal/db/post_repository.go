package db

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/steemit/blogd/internal/models"
	"github.com/steemit/blogd/pkg/logging"
	"github.com/steemit/blogd/pkg/telemetry"
)

// NewPost holds the fields of a post submission
type NewPost struct {
	Title            string
	Content          string
	ShortDescription string
	Status           models.PostStatus
	Tags             []string
}

// PostRepository provides post-related database operations
type PostRepository struct {
	*Repository
	tags   *TagRepository
	logger *zap.Logger

	listed   metric.Int64Counter
	mutated  metric.Int64Counter
	failures metric.Int64Counter
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	meter := telemetry.Meter()
	listed, _ := meter.Int64Counter("blog.posts.listed",
		metric.WithDescription("Posts returned by listings"))
	mutated, _ := meter.Int64Counter("blog.posts.mutations",
		metric.WithDescription("Post mutations by operation and outcome"))
	failures, _ := meter.Int64Counter("blog.store.failures",
		metric.WithDescription("Unexpected store errors by operation"))

	return &PostRepository{
		Repository: repo,
		tags:       NewTagRepository(repo),
		logger:     logging.WithComponent("posts"),
		listed:     listed,
		mutated:    mutated,
		failures:   failures,
	}
}

// Create inserts a post written by authorID and links its tags, all in one
// transaction. A title collision returns ErrDuplicateTitle.
func (r *PostRepository) Create(ctx context.Context, authorID int64, in NewPost) (*models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "posts.create")
	defer span.End()

	status := in.Status
	if status == "" {
		status = models.StatusPublished
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	post := &models.Post{
		Title:            in.Title,
		Content:          in.Content,
		ShortDescription: in.ShortDescription,
		Status:           status,
		AuthorID:         authorID,
	}

	err := r.Transaction(ctx, func(tx *gorm.DB) error {
		var tagIDs []int64
		if len(in.Tags) > 0 {
			var err error
			if tagIDs, err = r.tags.Resolve(ctx, tx, in.Tags); err != nil {
				return err
			}
		}

		if err := tx.Create(post).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateTitle
			}
			return fmt.Errorf("failed to create post: %w", err)
		}

		if len(tagIDs) == 0 {
			post.Tags = []models.Tag{}
			return nil
		}
		if err := linkTags(ctx, tx, post.ID, tagIDs); err != nil {
			return err
		}
		return loadTags(ctx, tx, []*models.Post{post})
	})
	if err != nil {
		if !errors.Is(err, ErrDuplicateTitle) {
			r.storeFailure(ctx, span, "create", err)
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int64("post.id", post.ID))
	r.mutated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", "create"),
		attribute.String("outcome", string(OutcomeSuccess)),
	))
	r.logger.Info("Post created",
		zap.Int64("post_id", post.ID),
		zap.Int64("author_id", authorID),
		zap.Int("tags", len(post.Tags)))

	return post, nil
}

func linkTags(ctx context.Context, tx *gorm.DB, postID int64, tagIDs []int64) error {
	links := make([]models.PostTag, len(tagIDs))
	for i, tagID := range tagIDs {
		links[i] = models.PostTag{PostID: postID, TagID: tagID}
	}
	if err := tx.WithContext(ctx).Create(&links).Error; err != nil {
		return fmt.Errorf("failed to link tags to post %d: %w", postID, err)
	}
	return nil
}

// Get returns the post with its author and tags. Missing posts and drafts
// the requestor does not own both return ErrPostNotFound.
func (r *PostRepository) Get(ctx context.Context, postID int64, requestorID *int64) (*models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "posts.get")
	defer span.End()
	span.SetAttributes(attribute.Int64("post.id", postID))

	var post models.Post
	err := r.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Preload("Author").First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPostNotFound
			}
			return fmt.Errorf("failed to load post %d: %w", postID, err)
		}
		if !post.VisibleTo(requestorID) {
			return ErrPostNotFound
		}
		return loadTags(ctx, tx, []*models.Post{&post})
	})
	if err != nil {
		if !errors.Is(err, ErrPostNotFound) {
			r.storeFailure(ctx, span, "get", err)
		}
		return nil, err
	}

	return &post, nil
}

// List returns one page of published posts. See ListParams for filters.
// The count and the page are separate reads, so a concurrent write between
// them can make TotalResult disagree with the page contents.
func (r *PostRepository) List(ctx context.Context, params ListParams) (*PostList, error) {
	ctx, span := telemetry.StartSpan(ctx, "posts.list")
	defer span.End()

	params = params.Normalize()
	result := &PostList{Page: params.Page, Posts: []*models.Post{}}

	err := r.Transaction(ctx, func(tx *gorm.DB) error {
		if err := r.published(tx, params).Distinct("posts.id").Count(&result.TotalResult).Error; err != nil {
			return fmt.Errorf("failed to count posts: %w", err)
		}
		if result.TotalResult == 0 {
			return nil
		}
		result.TotalPage = TotalPages(result.TotalResult, params.PageSize)
		if params.Page > result.TotalPage {
			return nil
		}

		var posts []*models.Post
		if err := r.published(tx, params).
			Preload("Author").
			Order("posts.created_at DESC").
			Order("posts.id DESC").
			Offset(params.Offset()).
			Limit(params.PageSize).
			Find(&posts).Error; err != nil {
			return fmt.Errorf("failed to list posts: %w", err)
		}

		result.Posts = dedupePosts(posts)
		return loadTags(ctx, tx, result.Posts)
	})
	if err != nil {
		r.storeFailure(ctx, span, "list", err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("list.page", result.Page),
		attribute.Int64("list.total", result.TotalResult),
	)
	r.listed.Add(ctx, int64(len(result.Posts)))
	r.logger.Info("Posts listed",
		zap.Int("page", result.Page),
		zap.Int("rows", len(result.Posts)),
		zap.Int64("total_result", result.TotalResult),
		zap.String("filters", params.Describe()))

	return result, nil
}

// published builds the listing predicate shared by the count and the page
// query. The tag match is a subquery so a post matching several tags is
// counted once.
func (r *PostRepository) published(tx *gorm.DB, params ListParams) *gorm.DB {
	query := tx.Model(&models.Post{}).Where("posts.status = ?", models.StatusPublished)

	if params.AuthorID != nil {
		query = query.Where("posts.author_id = ?", *params.AuthorID)
	}

	if params.Tag != nil {
		matching := tx.Table("post_tags").
			Select("post_tags.post_id").
			Joins("JOIN tags ON tags.id = post_tags.tag_id").
			Where(`LOWER(tags.name) LIKE ? ESCAPE '\'`, likePattern(*params.Tag))
		query = query.Where("posts.id IN (?)", matching)
	}

	return query
}

// Delete removes the post if requestorID wrote it. Tag links go with it;
// tags stay.
func (r *PostRepository) Delete(ctx context.Context, postID, requestorID int64) (*Outcome, error) {
	ctx, span := telemetry.StartSpan(ctx, "posts.delete")
	defer span.End()
	span.SetAttributes(attribute.Int64("post.id", postID))

	var outcome *Outcome
	err := r.Transaction(ctx, func(tx *gorm.DB) error {
		post, denied, err := lockOwned(tx, postID, requestorID)
		if err != nil || denied != nil {
			outcome = denied
			return err
		}

		if err := tx.Delete(&models.Post{}, post.ID).Error; err != nil {
			return fmt.Errorf("failed to delete post %d: %w", post.ID, err)
		}
		outcome = newOutcome(OutcomeSuccess, postID, "Post %d deleted", postID)
		return nil
	})
	if err != nil {
		r.storeFailure(ctx, span, "delete", err)
		return nil, err
	}

	r.recordMutation(ctx, "delete", outcome, requestorID)
	return outcome, nil
}

// SetStatus changes the status of a post written by requestorID. Setting
// the current status again yields OutcomeNoChange.
func (r *PostRepository) SetStatus(ctx context.Context, postID int64, status models.PostStatus, requestorID int64) (*Outcome, error) {
	ctx, span := telemetry.StartSpan(ctx, "posts.set_status")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("post.id", postID),
		attribute.String("post.status", string(status)),
	)

	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	var outcome *Outcome
	err := r.Transaction(ctx, func(tx *gorm.DB) error {
		post, denied, err := lockOwned(tx, postID, requestorID)
		if err != nil || denied != nil {
			outcome = denied
			return err
		}

		if post.Status == status {
			outcome = newOutcome(OutcomeNoChange, postID, "Post %d already has status %s", postID, status)
			return nil
		}

		if err := tx.Model(post).Update("status", status).Error; err != nil {
			return fmt.Errorf("failed to update status of post %d: %w", postID, err)
		}
		outcome = newOutcome(OutcomeSuccess, postID, "Post %d status changed to %s", postID, status)
		return nil
	})
	if err != nil {
		r.storeFailure(ctx, span, "set_status", err)
		return nil, err
	}

	r.recordMutation(ctx, "set_status", outcome, requestorID)
	return outcome, nil
}

// lockOwned reads the post for update and checks authorship. A non-nil
// outcome means the mutation must not run.
func lockOwned(tx *gorm.DB, postID, requestorID int64) (*models.Post, *Outcome, error) {
	var post models.Post
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&post, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newOutcome(OutcomeNotFound, postID, "Post %d not found", postID), nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load post %d: %w", postID, err)
	}
	if post.AuthorID != requestorID {
		return nil, newOutcome(OutcomeForbidden, postID, "Only the author can modify post %d", postID), nil
	}
	return &post, nil, nil
}

func (r *PostRepository) recordMutation(ctx context.Context, operation string, outcome *Outcome, requestorID int64) {
	r.mutated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", string(outcome.Kind)),
	))
	r.logger.Info("Post mutation",
		zap.String("operation", operation),
		zap.String("outcome", string(outcome.Kind)),
		zap.Int64("post_id", outcome.PostID),
		zap.Int64("requestor_id", requestorID))
}

func (r *PostRepository) storeFailure(ctx context.Context, span trace.Span, operation string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, operation+" failed")
	r.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
	r.logger.Error("Store failure", zap.String("operation", operation), zap.Error(err))
}
