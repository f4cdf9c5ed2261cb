package db

import (
	"fmt"
	"math"
	"strings"

	"github.com/steemit/blogd/internal/models"
)

// Page size bounds for listings
const (
	MinPageSize = 3
	MaxPageSize = 100

	// MaxPage keeps (page-1)*page size within int32
	MaxPage = math.MaxInt32 / MaxPageSize
)

// ListParams filters a published-post listing
type ListParams struct {
	AuthorID *int64
	Tag      *string
	Page     int
	PageSize int
}

// Normalize clamps page to [1, MaxPage] and page size to
// [MinPageSize, MaxPageSize]
func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.PageSize < MinPageSize {
		p.PageSize = MinPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	if p.Tag != nil && strings.TrimSpace(*p.Tag) == "" {
		p.Tag = nil
	}
	return p
}

// Offset returns the row offset of the page
func (p ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Describe renders the active filters for logs
func (p ListParams) Describe() string {
	var parts []string
	if p.AuthorID != nil {
		parts = append(parts, fmt.Sprintf("author_id=%d", *p.AuthorID))
	}
	if p.Tag != nil {
		parts = append(parts, fmt.Sprintf("tag=%q", *p.Tag))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// PostList is one page of a listing
type PostList struct {
	Page        int
	TotalPage   int
	TotalResult int64
	Posts       []*models.Post
}

// TotalPages returns ceil(total / pageSize)
func TotalPages(total int64, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	size := int64(pageSize)
	return int((total + size - 1) / size)
}

// dedupePosts drops repeated posts, keeping the first occurrence in order
func dedupePosts(posts []*models.Post) []*models.Post {
	seen := make(map[int64]struct{}, len(posts))
	out := make([]*models.Post, 0, len(posts))
	for _, post := range posts {
		if _, dup := seen[post.ID]; dup {
			continue
		}
		seen[post.ID] = struct{}{}
		out = append(out, post)
	}
	return out
}

// likePattern builds a case-insensitive substring pattern, escaping LIKE
// wildcards with a backslash.
func likePattern(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}
