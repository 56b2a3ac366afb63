package observable_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/illmade-knight/go-query/pkg/observable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_GetSet(t *testing.T) {
	v := observable.New(1)
	assert.Equal(t, 1, v.Get())

	v.Set(2)
	assert.Equal(t, 2, v.Get())
}

func TestValue_SubscribeDeliversInOrder(t *testing.T) {
	// Arrange
	v := observable.New("")
	var mu sync.Mutex
	var first, second []string
	cancelFirst := v.Subscribe(func(s string) {
		mu.Lock()
		defer mu.Unlock()
		first = append(first, s)
	})
	v.Subscribe(func(s string) {
		mu.Lock()
		defer mu.Unlock()
		second = append(second, s)
	})

	// Act
	v.Set("a")
	v.Set("b")
	cancelFirst()
	v.Set("c")

	// Assert
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b"}, first)
	assert.Equal(t, []string{"a", "b", "c"}, second)
}

func TestValue_Wait(t *testing.T) {
	t.Run("Returns immediately when current value matches", func(t *testing.T) {
		v := observable.New(true)
		got, err := v.Wait(context.Background(), func(b bool) bool { return b })
		require.NoError(t, err)
		assert.True(t, got)
	})

	t.Run("Waits for a future value", func(t *testing.T) {
		// Arrange
		v := observable.New(0)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		// Act
		go func() {
			for i := 1; i <= 5; i++ {
				v.Set(i)
			}
		}()
		got, err := v.Wait(ctx, func(n int) bool { return n >= 3 })

		// Assert
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, 3)
	})

	t.Run("Honours context cancellation", func(t *testing.T) {
		v := observable.New(0)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := v.Wait(ctx, func(n int) bool { return n > 0 })
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
