package query_test

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"math"
	"testing"

	"github.com/illmade-knight/go-query/pkg/policy"
	"github.com/illmade-knight/go-query/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageKey(t *testing.T) {
	t.Run("Digest of the joined elements", func(t *testing.T) {
		sum := md5.Sum([]byte("users:42:true"))
		assert.Equal(t, hex.EncodeToString(sum[:]), query.StorageKey(query.Key{"users", 42, true}))
	})

	t.Run("Equal keys share a storage key", func(t *testing.T) {
		assert.Equal(t, query.StorageKey(query.Key{"users", 42}), query.StorageKey(query.Key{"users", "42"}))
	})

	t.Run("Order matters", func(t *testing.T) {
		assert.NotEqual(t, query.StorageKey(query.Key{"a", "b"}), query.StorageKey(query.Key{"b", "a"}))
	})

	t.Run("Nil and floats use their joined text forms", func(t *testing.T) {
		testCases := []struct {
			name   string
			key    query.Key
			joined string
		}{
			{name: "nil", key: query.Key{"user", nil}, joined: "user:null"},
			{name: "whole float", key: query.Key{1.0}, joined: "1.0"},
			{name: "fractional float", key: query.Key{2.5}, joined: "2.5"},
			{name: "negative zero", key: query.Key{math.Copysign(0, -1)}, joined: "-0.0"},
			{name: "large float", key: query.Key{1e7}, joined: "1.0E7"},
			{name: "small float", key: query.Key{1.5e-5}, joined: "1.5E-5"},
			{name: "float32", key: query.Key{float32(0.1)}, joined: "0.1"},
			{name: "infinity", key: query.Key{math.Inf(-1)}, joined: "-Infinity"},
			{name: "integer stays integral", key: query.Key{int64(7)}, joined: "7"},
		}
		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				sum := md5.Sum([]byte(tc.joined))
				assert.Equal(t, hex.EncodeToString(sum[:]), query.StorageKey(tc.key))
			})
		}
	})

	t.Run("Empty key", func(t *testing.T) {
		sum := md5.Sum(nil)
		assert.Equal(t, hex.EncodeToString(sum[:]), query.StorageKey(query.Key{}))
	})
}

func TestQueriesShareCacheByKey(t *testing.T) {
	// Arrange
	ctx := context.Background()
	c := newTestClient(t, query.DefaultConfig())
	opts := []query.Option{query.WithCacheMode(policy.CacheOnly)}
	writer, err := query.New(ctx, c, query.Key{"profile", 7}, newCountingFetcher(succeeds("alice")).Fetch, opts...)
	require.NoError(t, err)
	waitIdle(t, writer)

	// Act
	sameKey, err := query.New(ctx, c, query.Key{"profile", "7"}, newCountingFetcher(succeeds("unused")).Fetch,
		append(opts, query.WithRefetchOnLaunch(false))...)
	require.NoError(t, err)
	otherKey, err := query.New(ctx, c, query.Key{"profile", 8}, newCountingFetcher(succeeds("unused")).Fetch,
		append(opts, query.WithRefetchOnLaunch(false))...)
	require.NoError(t, err)

	// Assert
	value, found := sameKey.Value()
	require.True(t, found)
	assert.Equal(t, "alice", value)
	_, found = otherKey.Value()
	assert.False(t, found)
}
