package models

import (
	"strings"
	"time"
)

// Author is a registered user. Rows are owned by the auth service; this
// service only reads them to attribute posts.
type Author struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	FirstName string    `gorm:"type:varchar(50);not null;column:first_name"`
	LastName  string    `gorm:"type:varchar(50);not null;column:last_name"`
	Email     string    `gorm:"type:varchar(255);not null;uniqueIndex:uq_users_email;column:email"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for Author
func (Author) TableName() string {
	return "users"
}

// FullName returns "first last"
func (a *Author) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// All lists every model in dependency order, for schema creation.
func All() []interface{} {
	return []interface{}{&Author{}, &Post{}, &Tag{}, &PostTag{}}
}
