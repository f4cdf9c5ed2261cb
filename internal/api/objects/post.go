// Package objects shapes stored posts into API responses and validates
// incoming post submissions.
package objects

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/steemit/blogd/internal/db"
	"github.com/steemit/blogd/internal/models"
	"github.com/steemit/blogd/internal/render"
)

// AuthorResponse identifies the writer of a post
type AuthorResponse struct {
	AuthorID   int64  `json:"author_id"`
	AuthorName string `json:"author_name"`
}

// PostResponse is the public representation of a post
type PostResponse struct {
	ID               int64          `json:"id"`
	Title            string         `json:"title"`
	Content          string         `json:"content"`
	ContentHTML      string         `json:"content_html,omitempty"`
	ShortDescription string         `json:"short_description"`
	Status           string         `json:"status"`
	Author           AuthorResponse `json:"author"`
	Tags             []string       `json:"tags"`
	CreatedAt        time.Time      `json:"created_at"`
}

// PostListResponse is one page of a listing
type PostListResponse struct {
	Page        int            `json:"page"`
	TotalPage   int            `json:"total_page"`
	TotalResult int64          `json:"total_result"`
	Posts       []PostResponse `json:"posts"`
}

// ShapePost converts a loaded post. Author and Tags must be loaded.
func ShapePost(post *models.Post) PostResponse {
	resp := PostResponse{
		ID:               post.ID,
		Title:            post.Title,
		Content:          post.Content,
		ShortDescription: post.ShortDescription,
		Status:           string(post.Status),
		Author:           AuthorResponse{AuthorID: post.AuthorID},
		Tags:             post.TagNames(),
		CreatedAt:        post.CreatedAt,
	}
	if post.Author != nil {
		resp.Author.AuthorName = post.Author.FullName()
	}
	return resp
}

// ShapeRenderedPost is ShapePost with the Markdown content rendered to HTML
func ShapeRenderedPost(post *models.Post) PostResponse {
	resp := ShapePost(post)
	resp.ContentHTML = render.Markdown(post.Content)
	return resp
}

// ShapeList converts a listing page, keeping the post order
func ShapeList(list *db.PostList) PostListResponse {
	posts := make([]PostResponse, len(list.Posts))
	for i, post := range list.Posts {
		posts[i] = ShapePost(post)
	}
	return PostListResponse{
		Page:        list.Page,
		TotalPage:   list.TotalPage,
		TotalResult: list.TotalResult,
		Posts:       posts,
	}
}

// CreatePostRequest is the body of a post submission
type CreatePostRequest struct {
	Title            string   `json:"title"`
	Content          string   `json:"content"`
	ShortDescription string   `json:"short_description"`
	Status           string   `json:"status,omitempty"`
	Tags             []string `json:"tags"`
}

// Validate checks the submission after trimming surrounding whitespace
func (r CreatePostRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	r.Content = strings.TrimSpace(r.Content)
	r.ShortDescription = strings.TrimSpace(r.ShortDescription)

	return validation.ValidateStruct(&r,
		validation.Field(&r.Title,
			validation.Required.Error("title is required"),
			validation.RuneLength(1, 255),
		),
		validation.Field(&r.Content,
			validation.Required.Error("content is required"),
		),
		validation.Field(&r.ShortDescription,
			validation.Required.Error("short description is required"),
		),
		validation.Field(&r.Status,
			validation.In(string(models.StatusDraft), string(models.StatusPublished)).
				Error("status must be draft or published"),
		),
		validation.Field(&r.Tags,
			validation.Length(0, 20),
			validation.Each(validation.RuneLength(0, 50).Error("tag must be at most 50 characters")),
		),
	)
}

// ToNewPost converts a validated request to repository input
func (r CreatePostRequest) ToNewPost() db.NewPost {
	return db.NewPost{
		Title:            strings.TrimSpace(r.Title),
		Content:          r.Content,
		ShortDescription: strings.TrimSpace(r.ShortDescription),
		Status:           models.PostStatus(r.Status),
		Tags:             r.Tags,
	}
}
