package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))
	c.Put("c", []byte("3"))

	_, ok := c.Get("a")
	require.False(t, ok)
	_, ok = c.Get("b")
	require.True(t, ok)
	_, ok = c.Get("c")
	require.True(t, ok)
}

func TestCache_GetPromotesToFront(t *testing.T) {
	c := New(2)
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))
	_, _ = c.Get("a")
	c.Put("c", []byte("3"))

	_, ok := c.Get("b")
	require.False(t, ok, "b should have been evicted as least-recently-used")
	_, ok = c.Get("a")
	require.True(t, ok)
}

func TestCache_PutExistingKeyUpdatesAndPromotes(t *testing.T) {
	c := New(2)
	c.Put("a", []byte("1"))
	c.Put("a", []byte("2"))
	require.Equal(t, 1, c.Len())

	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, []byte("2"), v)
}

func TestGetOrLoad_ReadsFromDiskOnMiss(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SNAPSHOT.bin"), []byte("bytes"), 0o644))

	c := New(DefaultCapacity)
	data, err := c.GetOrLoad(dir, "SNAPSHOT.bin")
	require.NoError(t, err)
	require.Equal(t, []byte("bytes"), data)

	require.Equal(t, 1, c.Len())
	data2, err := c.GetOrLoad(dir, "SNAPSHOT.bin")
	require.NoError(t, err)
	require.Equal(t, data, data2)
}

func TestGetOrLoad_MissingFileErrors(t *testing.T) {
	c := New(DefaultCapacity)
	_, err := c.GetOrLoad(t.TempDir(), "SNAPSHOT.bin")
	require.Error(t, err)
}
