package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrPostNotFound covers both missing posts and drafts the caller may not see
	ErrPostNotFound = errors.New("post not found")

	// ErrDuplicateTitle is returned when another post already uses the title
	ErrDuplicateTitle = errors.New("post with this title already exists")

	// ErrInvalidStatus is returned for a status other than draft or published
	ErrInvalidStatus = errors.New("invalid post status")
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
