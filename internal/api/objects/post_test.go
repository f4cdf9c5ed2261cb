package objects

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steemit/blogd/internal/db"
	"github.com/steemit/blogd/internal/models"
)

func samplePost() *models.Post {
	return &models.Post{
		ID:               9,
		Title:            "Hello",
		Content:          "# Hi",
		ShortDescription: "greeting",
		Status:           models.StatusPublished,
		AuthorID:         4,
		CreatedAt:        time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Author:           &models.Author{ID: 4, FirstName: "Ada", LastName: "Lovelace"},
		Tags:             []models.Tag{{ID: 1, Name: "go"}, {ID: 2, Name: "web"}},
	}
}

func TestShapePost(t *testing.T) {
	resp := ShapePost(samplePost())

	assert.Equal(t, int64(9), resp.ID)
	assert.Equal(t, "published", resp.Status)
	assert.Equal(t, AuthorResponse{AuthorID: 4, AuthorName: "Ada Lovelace"}, resp.Author)
	assert.Equal(t, []string{"go", "web"}, resp.Tags)
	assert.Empty(t, resp.ContentHTML)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "content_html")
	assert.Contains(t, string(data), `"created_at":"2024-05-01T12:00:00Z"`)
}

func TestShapePostWithoutTags(t *testing.T) {
	post := samplePost()
	post.Tags = nil

	data, err := json.Marshal(ShapePost(post))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tags":[]`)
}

func TestShapeRenderedPost(t *testing.T) {
	resp := ShapeRenderedPost(samplePost())
	assert.Equal(t, "# Hi", resp.Content)
	assert.Contains(t, resp.ContentHTML, "<h1>Hi</h1>")
}

func TestShapeList(t *testing.T) {
	first := samplePost()
	second := samplePost()
	second.ID = 10

	resp := ShapeList(&db.PostList{
		Page:        2,
		TotalPage:   4,
		TotalResult: 11,
		Posts:       []*models.Post{first, second},
	})

	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 4, resp.TotalPage)
	assert.Equal(t, int64(11), resp.TotalResult)
	require.Len(t, resp.Posts, 2)
	assert.Equal(t, int64(9), resp.Posts[0].ID)
	assert.Equal(t, int64(10), resp.Posts[1].ID)

	empty := ShapeList(&db.PostList{Page: 1, Posts: []*models.Post{}})
	data, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.JSONEq(t, `{"page":1,"total_page":0,"total_result":0,"posts":[]}`, string(data))
}

func TestCreatePostRequest_Validate(t *testing.T) {
	valid := CreatePostRequest{
		Title:            "Title",
		Content:          "Body",
		ShortDescription: "Short",
		Tags:             []string{"go"},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(r *CreatePostRequest)
		field  string
	}{
		{"missing title", func(r *CreatePostRequest) { r.Title = "  " }, "title"},
		{"missing content", func(r *CreatePostRequest) { r.Content = "" }, "content"},
		{"missing description", func(r *CreatePostRequest) { r.ShortDescription = "" }, "short_description"},
		{"bad status", func(r *CreatePostRequest) { r.Status = "archived" }, "status"},
		{"long tag", func(r *CreatePostRequest) { r.Tags = []string{strings.Repeat("x", 51)} }, "tags"},
		{"long title", func(r *CreatePostRequest) { r.Title = strings.Repeat("t", 256) }, "title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			req.Tags = append([]string(nil), valid.Tags...)
			tt.mutate(&req)

			err := req.Validate()
			require.Error(t, err)
			var errs validation.Errors
			require.ErrorAs(t, err, &errs)
			assert.Contains(t, errs, tt.field)
		})
	}
}

func TestCreatePostRequest_ToNewPost(t *testing.T) {
	in := CreatePostRequest{
		Title:            "  Title ",
		Content:          "Body\n",
		ShortDescription: " Short ",
		Status:           "draft",
		Tags:             []string{"Go"},
	}

	got := in.ToNewPost()
	assert.Equal(t, "Title", got.Title)
	assert.Equal(t, "Body\n", got.Content)
	assert.Equal(t, "Short", got.ShortDescription)
	assert.Equal(t, models.StatusDraft, got.Status)
	assert.Equal(t, []string{"Go"}, got.Tags)
}
