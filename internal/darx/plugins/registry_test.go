package plugins

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := New()
	r.Register("schema", "owner_env")

	envID, ok := r.Resolve("schema")
	require.True(t, ok)
	require.Equal(t, "owner_env", envID)
}

func TestRegistry_UnknownNameMisses(t *testing.T) {
	r := New()
	_, ok := r.Resolve("ghost")
	require.False(t, ok)
}

func TestRegistry_ConcurrentRegisterAndResolve(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Register("p", "env")
			r.Resolve("p")
		}(i)
	}
	wg.Wait()
	require.Equal(t, 1, r.Len())
}
