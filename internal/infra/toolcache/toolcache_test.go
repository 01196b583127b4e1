package toolcache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"mcpscout/internal/domain"
)

func schema(name string) domain.ToolSchema {
	return domain.ToolSchema{Name: name, Description: name, Parameters: map[string]any{"type": "object"}}
}

func TestAggregate_ScheduledOrderWithoutFailures(t *testing.T) {
	results := []domain.ProviderResult{
		{Provider: "filesystem", Tools: []domain.ToolSchema{schema("read_file"), schema("write_file")}},
		{Provider: "slowtool", Err: domain.NewConnectError("slowtool", domain.FailureTimeout, nil)},
		{Provider: "server-memory", Tools: []domain.ToolSchema{schema("create_entities")}},
		{Provider: "empty", Tools: []domain.ToolSchema{}},
	}

	cache := Aggregate(results)

	require.Equal(t, []string{"filesystem", "server-memory"}, cache.Providers())
	tools, ok := cache.Tools("filesystem")
	require.True(t, ok)
	require.Equal(t, "read_file", tools[0].Name)
	require.Equal(t, "write_file", tools[1].Name)
	require.Equal(t, 3, cache.ToolCount())
}

func TestAggregate_NoResults(t *testing.T) {
	require.True(t, Aggregate(nil).IsEmpty())
}

func TestFileStore_PersistAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp_tools_cache.json")
	store := NewFileStore(path, nil)

	cache := domain.NewToolCache()
	cache.Set("server-memory", []domain.ToolSchema{schema("create_entities")})
	cache.Set("filesystem", []domain.ToolSchema{schema("read_file")})

	require.NoError(t, store.Persist(cache))
	loaded, err := store.Load()
	require.NoError(t, err)

	if diff := cmp.Diff(cache.Entries(), loaded.Entries()); diff != "" {
		t.Fatalf("cache mismatch (-want +got):\n%s", diff)
	}
}

func TestFileStore_PersistEmptyOverwritesStaleCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	store := NewFileStore(path, nil)

	stale := domain.NewToolCache()
	stale.Set("filesystem", []domain.ToolSchema{schema("read_file")})
	require.NoError(t, store.Persist(stale))
	require.NoError(t, store.Persist(domain.NewToolCache()))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.True(t, loaded.IsEmpty())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(data))
}

func TestFileStore_LoadMissingIsEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"), nil)

	cache, err := store.Load()
	require.ErrorIs(t, err, domain.ErrCacheUnavailable)
	require.NotNil(t, cache)
	require.True(t, cache.IsEmpty())
}

func TestFileStore_LoadCorruptIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`["not", "a", "cache"]`), 0o644))

	cache, err := NewFileStore(path, nil).Load()
	require.ErrorIs(t, err, domain.ErrCacheUnavailable)
	require.True(t, cache.IsEmpty())
}

func TestFileStore_PersistFailureIsAggregationError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("file"), 0o644))

	store := NewFileStore(filepath.Join(blocker, "cache.json"), nil)
	err := store.Persist(domain.NewToolCache())

	require.ErrorIs(t, err, domain.ErrAggregation)
	var aggErr *domain.AggregationError
	require.True(t, errors.As(err, &aggErr))
	require.Equal(t, store.Path(), aggErr.Path)
}
