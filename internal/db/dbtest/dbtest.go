// Package dbtest opens throwaway SQLite stores with the blog schema for tests.
package dbtest

import (
	"fmt"
	"regexp"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/steemit/blogd/internal/db"
	"github.com/steemit/blogd/internal/models"
)

var (
	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9]+`)
	counter     atomic.Int64
)

// New returns an empty, migrated in-memory store that is closed when the
// test ends. Foreign keys are enforced so cascades behave like PostgreSQL.
func New(t testing.TB) *db.DB {
	t.Helper()

	name := fmt.Sprintf("%s_%d", unsafeChars.ReplaceAllString(t.Name(), "_"), counter.Add(1))
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)

	database, err := db.Open(sqlite.Open(dsn), "ERROR")
	require.NoError(t, err)

	sqlDB, err := database.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.AutoMigrate())

	t.Cleanup(func() {
		_ = database.Close()
	})
	return database
}

// SeedAuthor inserts a user that posts can reference
func SeedAuthor(t testing.TB, database *db.DB, firstName, lastName string) *models.Author {
	t.Helper()

	author := &models.Author{
		FirstName: firstName,
		LastName:  lastName,
		Email:     fmt.Sprintf("%s.%s.%d@example.com", firstName, lastName, counter.Add(1)),
	}
	require.NoError(t, database.DB.Create(author).Error)
	return author
}
