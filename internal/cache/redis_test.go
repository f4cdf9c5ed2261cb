package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/steemit/blogd/pkg/config"
)

func newLiveCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	c, err := New(&config.RedisConfig{Enabled: true, URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestHashKey(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
	}{
		{
			name:  "single part",
			parts: []string{"test"},
		},
		{
			name:  "multiple parts",
			parts: []string{"posts", "list", "author_id=1", "tag=go", "page=2"},
		},
		{
			name:  "empty parts",
			parts: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hashed1 := HashKey(tt.parts...)
			hashed2 := HashKey(tt.parts...)

			if hashed1 != hashed2 {
				t.Errorf("HashKey() should be consistent, got %s and %s", hashed1, hashed2)
			}

			if len(hashed1) != 32 {
				t.Errorf("HashKey() should return 32 character hex string, got length %d", len(hashed1))
			}
		})
	}

	if HashKey("ab", "c") == HashKey("a", "bc") {
		t.Error("HashKey() should keep part boundaries")
	}
}

func TestCache_NamespaceKey(t *testing.T) {
	cache := &Cache{}

	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{
			name:     "simple key",
			key:      "test",
			expected: "blogd:test",
		},
		{
			name:     "key with colon",
			key:      "posts:list_version",
			expected: "blogd:posts:list_version",
		},
		{
			name:     "empty key",
			key:      "",
			expected: "blogd:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := cache.namespaceKey(tt.key)
			if result != tt.expected {
				t.Errorf("namespaceKey() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestCache_Disabled(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheDisabled) {
		t.Errorf("Get() error = %v, want ErrCacheDisabled", err)
	}
	if err := c.SetJSON(ctx, "k", map[string]int{"a": 1}, time.Second); !errors.Is(err, ErrCacheDisabled) {
		t.Errorf("SetJSON() error = %v, want ErrCacheDisabled", err)
	}
	var dest map[string]int
	if err := c.GetJSON(ctx, "k", &dest); !errors.Is(err, ErrCacheDisabled) {
		t.Errorf("GetJSON() error = %v, want ErrCacheDisabled", err)
	}
	if _, err := c.Incr(ctx, "k"); !errors.Is(err, ErrCacheDisabled) {
		t.Errorf("Incr() error = %v, want ErrCacheDisabled", err)
	}
	if err := c.Health(ctx); !errors.Is(err, ErrCacheDisabled) {
		t.Errorf("Health() error = %v, want ErrCacheDisabled", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}

func TestCache_New(t *testing.T) {
	c, err := New(&config.RedisConfig{Enabled: false})
	if err != nil || c != nil {
		t.Errorf("New() disabled = %v, %v, want nil, nil", c, err)
	}

	if _, err := New(&config.RedisConfig{Enabled: true, URL: "not a url"}); err == nil {
		t.Error("New() should reject a malformed URL")
	}
}

func TestCache_JSON(t *testing.T) {
	c, mr := newLiveCache(t)
	ctx := context.Background()

	type page struct {
		Page  int      `json:"page"`
		Posts []string `json:"posts"`
	}

	var got page
	if err := c.GetJSON(ctx, "posts:list:abc", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("GetJSON() error = %v, want ErrCacheMiss", err)
	}

	want := page{Page: 2, Posts: []string{"a", "b"}}
	if err := c.SetJSON(ctx, "posts:list:abc", want, time.Minute); err != nil {
		t.Fatalf("SetJSON() error = %v", err)
	}
	if !mr.Exists("blogd:posts:list:abc") {
		t.Error("SetJSON() should store under the blogd namespace")
	}
	if ttl := mr.TTL("blogd:posts:list:abc"); ttl != time.Minute {
		t.Errorf("TTL = %v, want %v", ttl, time.Minute)
	}

	if err := c.GetJSON(ctx, "posts:list:abc", &got); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if got.Page != want.Page || len(got.Posts) != 2 || got.Posts[1] != "b" {
		t.Errorf("GetJSON() = %+v, want %+v", got, want)
	}

	mr.FastForward(2 * time.Minute)
	if err := c.GetJSON(ctx, "posts:list:abc", &got); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("GetJSON() after expiry error = %v, want ErrCacheMiss", err)
	}

	if err := mr.Set("blogd:broken", "{"); err != nil {
		t.Fatal(err)
	}
	if err := c.GetJSON(ctx, "broken", &got); err == nil || errors.Is(err, ErrCacheMiss) {
		t.Errorf("GetJSON() on corrupt value error = %v, want decode error", err)
	}
}

func TestCache_Counter(t *testing.T) {
	c, mr := newLiveCache(t)
	ctx := context.Background()

	n, err := c.GetInt(ctx, "posts:list_version")
	if err != nil || n != 0 {
		t.Fatalf("GetInt() missing = %d, %v, want 0, nil", n, err)
	}

	for want := int64(1); want <= 3; want++ {
		got, err := c.Incr(ctx, "posts:list_version")
		if err != nil || got != want {
			t.Fatalf("Incr() = %d, %v, want %d", got, err, want)
		}
	}

	n, err = c.GetInt(ctx, "posts:list_version")
	if err != nil || n != 3 {
		t.Errorf("GetInt() = %d, %v, want 3", n, err)
	}
	if v, _ := mr.Get("blogd:posts:list_version"); v != "3" {
		t.Errorf("stored counter = %q, want 3", v)
	}

	if err := mr.Set("blogd:words", "three"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetInt(ctx, "words"); err == nil {
		t.Error("GetInt() should fail on a non-numeric value")
	}
}

func TestCache_Health(t *testing.T) {
	c, mr := newLiveCache(t)
	ctx := context.Background()

	if err := c.Health(ctx); err != nil {
		t.Errorf("Health() error = %v", err)
	}

	mr.Close()
	if err := c.Health(ctx); err == nil {
		t.Error("Health() should fail once the server is gone")
	}
}
