package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/steemit/blogd/internal/api/objects"
	"github.com/steemit/blogd/internal/cache"
	"github.com/steemit/blogd/internal/models"
)

func newCachedServer(t *testing.T) (*testServer, *miniredis.Miniredis, *observer.ObservedLogs) {
	t.Helper()

	mr := miniredis.RunT(t)
	redisCache := cache.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = redisCache.Close() })

	s := newTestServerWithCache(t, redisCache)

	core, logs := observer.New(zap.InfoLevel)
	s.router.blog.logger = zap.New(core)
	return s, mr, logs
}

func (s *testServer) listIDs(t *testing.T, query string) []int64 {
	t.Helper()

	w := s.do(t, http.MethodGet, "/api/blogs"+query, nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var list objects.PostListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	ids := make([]int64, len(list.Posts))
	for i, post := range list.Posts {
		ids[i] = post.ID
	}
	return ids
}

func listKeys(mr *miniredis.Miniredis) []string {
	var keys []string
	for _, key := range mr.Keys() {
		if strings.HasPrefix(key, "blogd:"+listKeyPrefix) {
			keys = append(keys, key)
		}
	}
	return keys
}

func listVersion(t *testing.T, mr *miniredis.Miniredis) string {
	t.Helper()
	v, err := mr.Get("blogd:" + listVersionKey)
	require.NoError(t, err)
	return v
}

func TestListCacheServesRepeatedListing(t *testing.T) {
	s, mr, logs := newCachedServer(t)
	first := s.createPost(t, s.author, "First")
	second := s.createPost(t, s.author, "Second")

	assert.Equal(t, []int64{second, first}, s.listIDs(t, "?page_size=10"))
	assert.Len(t, listKeys(mr), 1)
	assert.Zero(t, logs.FilterField(zap.Bool("cached", true)).Len())

	// a row written behind the API's back stays invisible until the
	// cached page is invalidated or expires
	require.NoError(t, s.database.DB.Create(&models.Post{
		Title:            "Direct insert",
		Content:          "c",
		ShortDescription: "s",
		Status:           models.StatusPublished,
		AuthorID:         s.other.ID,
	}).Error)

	assert.Equal(t, []int64{second, first}, s.listIDs(t, "?page_size=10"))

	hits := logs.FilterField(zap.Bool("cached", true)).All()
	require.Len(t, hits, 1)
	fields := hits[0].ContextMap()
	assert.Equal(t, "Posts listed", hits[0].Message)
	assert.Equal(t, int64(1), fields["page"])
	assert.Equal(t, int64(2), fields["rows"])
	assert.Equal(t, "none", fields["filters"])

	// other filters are cached separately
	assert.Equal(t, []int64{second, first}, s.listIDs(t, fmt.Sprintf("?author_id=%d&page_size=10", s.author.ID)))
	assert.Len(t, listKeys(mr), 2)
}

func TestListCacheInvalidatedByMutations(t *testing.T) {
	s, mr, _ := newCachedServer(t)
	first := s.createPost(t, s.author, "First")
	second := s.createPost(t, s.author, "Second")
	assert.Equal(t, "2", listVersion(t, mr))

	assert.Equal(t, []int64{second, first}, s.listIDs(t, ""))

	w := s.do(t, http.MethodPatch, fmt.Sprintf("/api/blogs/%d?new_status=draft", second), s.author, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", listVersion(t, mr))
	assert.Equal(t, []int64{first}, s.listIDs(t, ""))

	// outcomes that change nothing keep the cached pages
	w = s.do(t, http.MethodPatch, fmt.Sprintf("/api/blogs/%d?new_status=published", first), s.author, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodDelete, fmt.Sprintf("/api/blogs/%d", first), s.other, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "3", listVersion(t, mr))

	w = s.do(t, http.MethodDelete, fmt.Sprintf("/api/blogs/%d", first), s.author, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "4", listVersion(t, mr))
	assert.Empty(t, s.listIDs(t, ""))

	third := s.createPost(t, s.other, "Third")
	assert.Equal(t, "5", listVersion(t, mr))
	assert.Equal(t, []int64{third}, s.listIDs(t, ""))
}

func TestListCacheFailureFallsBackToStore(t *testing.T) {
	s, mr, _ := newCachedServer(t)
	id := s.createPost(t, s.author, "Only")

	mr.Close()

	assert.Equal(t, []int64{id}, s.listIDs(t, ""))
}
