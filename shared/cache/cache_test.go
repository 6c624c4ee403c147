package cache_test

import (
	"path/filepath"
	"testing"
	"time"

	"subspace-client/shared/cache"

	"github.com/ChainSafe/log15"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tlog = log15.Root()

type entry struct {
	Names  []string
	Amount decimal.Decimal
}

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func newCache(store cache.Store) (*cache.Cache, *clock) {
	clk := &clock{t: time.Unix(1700000000, 0)}
	c := cache.New(store, tlog)
	c.SetClock(clk.now)
	return c, clk
}

func TestMaxAge(t *testing.T) {
	c, clk := newCache(cache.NewMemoryStore())
	maxAge := 60 * time.Second
	path := "archive/main.0/modules"

	require.NoError(t, c.Put(path, entry{Names: []string{"m1"}}))

	clk.t = clk.t.Add(maxAge - time.Second)
	var out entry
	assert.True(t, c.Get(path, maxAge, &out))
	assert.Equal(t, []string{"m1"}, out.Names)
	assert.False(t, c.NeedsRefresh(path))

	clk.t = clk.t.Add(2 * time.Second)
	assert.False(t, c.Get(path, maxAge, &out))
	assert.True(t, c.NeedsRefresh(path))

	require.NoError(t, c.Put(path, entry{Names: []string{"m2"}}))
	assert.False(t, c.NeedsRefresh(path))
	assert.True(t, c.Get(path, maxAge, &out))
	assert.Equal(t, []string{"m2"}, out.Names)
}

func TestNegativeMaxAgeDisables(t *testing.T) {
	c, _ := newCache(cache.NewMemoryStore())
	require.NoError(t, c.Put("p", entry{}))
	var out entry
	assert.False(t, c.Get("p", -1, &out))
	assert.True(t, c.Get("p", 0, &out))
}

func TestMissLeavesOutUntouched(t *testing.T) {
	c, _ := newCache(cache.NewMemoryStore())
	out := entry{Names: []string{"keep"}}
	assert.False(t, c.Get("absent", time.Hour, &out))
	assert.Equal(t, []string{"keep"}, out.Names)
}

func TestInvalidateAndClear(t *testing.T) {
	c, _ := newCache(cache.NewMemoryStore())
	for _, p := range []string{"archive/main/subnet_namespace", "archive/main.0/modules", "archive/test.0/modules"} {
		require.NoError(t, c.Put(p, entry{}))
	}

	require.NoError(t, c.Invalidate("archive/main.0/modules"))
	var out entry
	assert.False(t, c.Get("archive/main.0/modules", time.Hour, &out))

	n, err := c.Clear("archive/main/", "archive/main.")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	paths, err := c.Paths("archive/")
	require.NoError(t, err)
	assert.Equal(t, []string{"archive/test.0/modules"}, paths)
}

func TestClearKeepsNetworksSharingAPrefix(t *testing.T) {
	stores := map[string]func(t *testing.T) cache.Store{
		"memory": func(*testing.T) cache.Store { return cache.NewMemoryStore() },
		"sqlite": func(t *testing.T) cache.Store {
			store, err := cache.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
			require.NoError(t, err)
			return store
		},
	}
	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			c, _ := newCache(open(t))
			defer c.Close()
			for _, p := range []string{"archive/main/balances", "archive/main.0/modules", "archive/mainnet/balances", "archive/mainnet.0/modules"} {
				require.NoError(t, c.Put(p, entry{}))
			}

			n, err := c.Clear("archive/main/", "archive/main.")
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			paths, err := c.Paths("archive/")
			require.NoError(t, err)
			assert.Equal(t, []string{"archive/mainnet.0/modules", "archive/mainnet/balances"}, paths)
		})
	}
}

func TestSQLiteStoreNonASCIIPrefix(t *testing.T) {
	store, err := cache.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()
	c, _ := newCache(store)

	for _, p := range []string{"archive/ネット/balances", "archive/ネット.0/modules", "archive/ネットワーク/balances"} {
		require.NoError(t, c.Put(p, entry{}))
	}
	paths, err := c.Paths("archive/ネット/")
	require.NoError(t, err)
	assert.Equal(t, []string{"archive/ネット/balances"}, paths)

	n, err := c.Clear("archive/ネット/", "archive/ネット.")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	paths, err = c.Paths("archive/")
	require.NoError(t, err)
	assert.Equal(t, []string{"archive/ネットワーク/balances"}, paths)
}

func TestSQLiteStorePersists(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cache.db")
	store, err := cache.NewSQLiteStore(file)
	require.NoError(t, err)
	c, clk := newCache(store)
	require.NoError(t, c.Put("archive/main/balances", entry{Amount: decimal.RequireFromString("39.98")}))
	require.NoError(t, c.Close())

	store, err = cache.NewSQLiteStore(file)
	require.NoError(t, err)
	defer store.Close()
	reopened := cache.New(store, tlog)
	reopened.SetClock(clk.now)

	var out entry
	require.True(t, reopened.Get("archive/main/balances", time.Minute, &out))
	assert.True(t, decimal.RequireFromString("39.98").Equal(out.Amount))

	at, ok := reopened.UpdatedAt("archive/main/balances")
	assert.True(t, ok)
	assert.True(t, clk.t.Equal(at))

	removed, err := store.Delete("archive/main")
	require.NoError(t, err)
	assert.False(t, removed)
	removed, err = store.Delete("archive/main/balances")
	require.NoError(t, err)
	assert.True(t, removed)
}
