package localcache_test

import (
	"path/filepath"
	"testing"

	"github.com/Vrajp222/Donation-Tracker/internal/localcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) *localcache.Cache {
	t.Helper()
	cache, err := localcache.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestGetMissingKey(t *testing.T) {
	cache := newCache(t)

	_, err := cache.Get(localcache.BalanceKey)
	assert.ErrorIs(t, err, localcache.ErrNotFound)
}

func TestSetThenGet(t *testing.T) {
	cache := newCache(t)

	require.NoError(t, cache.Set(localcache.BalanceKey, "42.5"))

	value, err := cache.Get(localcache.BalanceKey)
	require.NoError(t, err)
	assert.Equal(t, "42.5", value)
}

func TestSetOverwrites(t *testing.T) {
	cache := newCache(t)

	require.NoError(t, cache.Set(localcache.BalanceKey, "10"))
	require.NoError(t, cache.Set(localcache.BalanceKey, "30"))

	value, err := cache.Get(localcache.BalanceKey)
	require.NoError(t, err)
	assert.Equal(t, "30", value)
}

func TestValueSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	cache, err := localcache.Open(path)
	require.NoError(t, err)
	require.NoError(t, cache.Set(localcache.BalanceKey, "12.34"))
	require.NoError(t, cache.Close())

	reopened, err := localcache.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	value, err := reopened.Get(localcache.BalanceKey)
	require.NoError(t, err)
	assert.Equal(t, "12.34", value)
}
