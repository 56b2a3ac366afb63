package persist_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/illmade-knight/go-query/pkg/persist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runPersistorContract exercises the behaviour every backend must share.
func runPersistorContract(t *testing.T, p persist.Persistor) {
	t.Helper()
	ctx := context.Background()

	t.Run("Missing key is not an error", func(t *testing.T) {
		_, ok, err := p.GetItem(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Set, Get, overwrite and Remove cycle", func(t *testing.T) {
		// Act 1: Set a value
		require.NoError(t, p.SetItem(ctx, "k1", "v1"))

		// Assert 1
		value, ok, err := p.GetItem(ctx, "k1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "v1", value)

		// Act 2: Overwrite
		require.NoError(t, p.SetItem(ctx, "k1", "v2"))

		// Assert 2
		value, _, err = p.GetItem(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, "v2", value)

		// Act 3: Remove, twice
		require.NoError(t, p.RemoveItem(ctx, "k1"))
		require.NoError(t, p.RemoveItem(ctx, "k1"), "removing a missing key must succeed")

		// Assert 3
		_, ok, err = p.GetItem(ctx, "k1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Clear removes every entry", func(t *testing.T) {
		require.NoError(t, p.SetItem(ctx, "a", "1"))
		require.NoError(t, p.SetItem(ctx, "a_lastQueryTime", "2"))

		require.NoError(t, p.Clear(ctx))

		for _, key := range []string{"a", "a_lastQueryTime"} {
			_, ok, err := p.GetItem(ctx, key)
			require.NoError(t, err)
			assert.False(t, ok, "key %s should be gone", key)
		}
	})

	t.Run("Concurrent writers to independent keys do not interfere", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				key := fmt.Sprintf("concurrent-%d", n)
				assert.NoError(t, p.SetItem(ctx, key, key))
			}(i)
		}
		wg.Wait()

		for i := 0; i < 8; i++ {
			key := fmt.Sprintf("concurrent-%d", i)
			value, ok, err := p.GetItem(ctx, key)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, key, value)
		}
	})
}

func TestInMemoryPersistor(t *testing.T) {
	p := persist.NewInMemoryPersistor()
	runPersistorContract(t, p)
	require.NoError(t, p.Close())
}
