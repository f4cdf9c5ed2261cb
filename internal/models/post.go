package models

import (
	"strings"
	"time"
)

// PostStatus is the publication state of a post
type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusPublished PostStatus = "published"
)

// Valid reports whether s is one of the known statuses
func (s PostStatus) Valid() bool {
	return s == StatusDraft || s == StatusPublished
}

// Post represents a blog post
type Post struct {
	ID               int64      `gorm:"primaryKey;autoIncrement;column:id"`
	Title            string     `gorm:"type:varchar(255);not null;uniqueIndex:uq_posts_title;column:title"`
	Content          string     `gorm:"type:text;not null;column:content"`
	ShortDescription string     `gorm:"type:text;not null;column:short_description"`
	Status           PostStatus `gorm:"type:varchar(16);not null;default:'published';column:status"`
	AuthorID         int64      `gorm:"not null;index;column:author_id"`
	CreatedAt        time.Time  `gorm:"not null;column:created_at"`
	UpdatedAt        time.Time  `gorm:"not null;column:updated_at"`

	// Relationships
	Author *Author `gorm:"foreignKey:AuthorID;references:ID"`

	// Tags is filled explicitly by the repository, never by gorm.
	Tags []Tag `gorm:"-"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "posts"
}

// VisibleTo reports whether the requestor may read the post. Drafts are
// only visible to their author.
func (p *Post) VisibleTo(requestorID *int64) bool {
	if p.Status != StatusDraft {
		return true
	}
	return requestorID != nil && *requestorID == p.AuthorID
}

// TagNames returns the names of the attached tags in load order
func (p *Post) TagNames() []string {
	names := make([]string, len(p.Tags))
	for i, tag := range p.Tags {
		names[i] = tag.Name
	}
	return names
}

// Tag is a lowercase label shared between posts
type Tag struct {
	ID   int64  `gorm:"primaryKey;autoIncrement;column:id"`
	Name string `gorm:"type:varchar(50);not null;uniqueIndex:uq_tags_name;column:name"`
}

// TableName specifies the table name for Tag
func (Tag) TableName() string {
	return "tags"
}

// NormalizeTagName returns the stored form of a tag name
func NormalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// PostTag links a post to a tag. Rows go away with their post.
type PostTag struct {
	ID     int64 `gorm:"primaryKey;autoIncrement;column:id"`
	PostID int64 `gorm:"not null;uniqueIndex:uq_post_tag,priority:1;column:post_id"`
	TagID  int64 `gorm:"not null;uniqueIndex:uq_post_tag,priority:2;index;column:tag_id"`

	// Relationships
	Post *Post `gorm:"foreignKey:PostID;references:ID;constraint:OnDelete:CASCADE"`
	Tag  *Tag  `gorm:"foreignKey:TagID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for PostTag
func (PostTag) TableName() string {
	return "post_tags"
}
