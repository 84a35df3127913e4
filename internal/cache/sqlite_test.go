package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *SQLiteCache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "payloads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_MissThenHit(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	_, _, ok, err := c.Get(ctx, "https://example.org/2015/OH_2015.json")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "https://example.org/2015/OH_2015.json", `"v1"`, []byte(`[]`)))

	body, etag, ok, err := c.Get(ctx, "https://example.org/2015/OH_2015.json")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"v1"`, etag)
	assert.Equal(t, []byte(`[]`), body)
}

func TestCache_PutReplaces(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()
	url := "https://example.org/2015/OH_2015.json"

	require.NoError(t, c.Put(ctx, url, `"v1"`, []byte(`old`)))
	require.NoError(t, c.Put(ctx, url, `"v2"`, []byte(`new`)))

	body, etag, ok, err := c.Get(ctx, url)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"v2"`, etag)
	assert.Equal(t, []byte(`new`), body)
}

func TestCache_Prune(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "a", "", []byte(`1`)))
	require.NoError(t, c.Put(ctx, "b", "", []byte(`2`)))

	n, err := c.Prune(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, _, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}
