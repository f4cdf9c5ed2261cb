package db

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/steemit/blogd/internal/models"
	"github.com/steemit/blogd/pkg/logging"
)

// TagRepository provides tag-related database operations
type TagRepository struct {
	*Repository
	logger *zap.Logger
}

// NewTagRepository creates a new tag repository
func NewTagRepository(repo *Repository) *TagRepository {
	return &TagRepository{
		Repository: repo,
		logger:     logging.WithComponent("tags"),
	}
}

// Resolve maps tag names to tag ids inside tx, creating the tags that do not
// exist yet. Names are lowercased; names that normalize to the same tag
// yield a single id at the position of their first occurrence.
//
// A failed insert (for example a concurrent transaction created the same
// tag first) aborts the call; the caller's transaction must be rolled back.
func (r *TagRepository) Resolve(ctx context.Context, tx *gorm.DB, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	seen := make(map[string]struct{}, len(names))

	for _, raw := range names {
		name := models.NormalizeTagName(raw)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		var tag models.Tag
		err := tx.WithContext(ctx).Where("name = ?", name).Take(&tag).Error
		switch {
		case err == nil:
		case errors.Is(err, gorm.ErrRecordNotFound):
			tag = models.Tag{Name: name}
			if err := tx.WithContext(ctx).Create(&tag).Error; err != nil {
				r.logger.Error("Failed to create tag", zap.String("tag", name), zap.Error(err))
				return nil, fmt.Errorf("failed to create tag %q: %w", name, err)
			}
			r.logger.Info("Tag created", zap.String("tag", name), zap.Int64("tag_id", tag.ID))
		default:
			return nil, fmt.Errorf("failed to look up tag %q: %w", name, err)
		}

		ids = append(ids, tag.ID)
	}

	return ids, nil
}

// loadTags attaches tags to posts with one flattened join query
func loadTags(ctx context.Context, tx *gorm.DB, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]int64, len(posts))
	byID := make(map[int64]*models.Post, len(posts))
	for i, post := range posts {
		ids[i] = post.ID
		byID[post.ID] = post
		post.Tags = []models.Tag{}
	}

	var rows []struct {
		PostID int64  `gorm:"column:post_id"`
		TagID  int64  `gorm:"column:tag_id"`
		Name   string `gorm:"column:name"`
	}
	if err := tx.WithContext(ctx).
		Table("post_tags").
		Select("post_tags.post_id, post_tags.tag_id, tags.name").
		Joins("JOIN tags ON tags.id = post_tags.tag_id").
		Where("post_tags.post_id IN ?", ids).
		Order("post_tags.id ASC").
		Scan(&rows).Error; err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}

	for _, row := range rows {
		if post, ok := byID[row.PostID]; ok {
			post.Tags = append(post.Tags, models.Tag{ID: row.TagID, Name: row.Name})
		}
	}
	return nil
}

// TagCount is a tag with the number of published posts carrying it
type TagCount struct {
	Name  string `gorm:"column:name" json:"name"`
	Posts int64  `gorm:"column:post_count" json:"posts"`
}

// Popular returns the tags used by the most published posts. limit is
// clamped to [1, MaxPageSize]; ties are ordered by name.
func (r *TagRepository) Popular(ctx context.Context, limit int) ([]TagCount, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	counts := []TagCount{}
	err := r.db.WithContext(ctx).
		Table("tags").
		Select("tags.name AS name, COUNT(DISTINCT posts.id) AS post_count").
		Joins("JOIN post_tags ON post_tags.tag_id = tags.id").
		Joins("JOIN posts ON posts.id = post_tags.post_id").
		Where("posts.status = ?", models.StatusPublished).
		Group("tags.id, tags.name").
		Order("post_count DESC, tags.name ASC").
		Limit(limit).
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count tags: %w", err)
	}
	return counts, nil
}
