// Package storagetest holds a backend-agnostic conformance suite run against
// every storage.NodeStore implementation: storage/memstore,
// storage/badgerstore, and storage/mysqlstore each call RunConformance from
// their own _test.go with a freshly constructed Store.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/commitree/commitree/merkle/hashers"
	"github.com/commitree/commitree/storage"
)

func h(b byte) hashers.Hash {
	var out hashers.Hash
	out[0] = b
	return out
}

// RunConformance exercises the full storage.NodeStore contract against s.
// The store must be empty when passed in.
func RunConformance(t *testing.T, s storage.NodeStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("leaves", func(t *testing.T) {
		_, found, err := s.GetLeaf(ctx, 0)
		require.NoError(t, err)
		require.False(t, found)

		require.NoError(t, s.StoreLeaf(ctx, 0, []byte("leaf-0")))
		require.NoError(t, s.StoreLeaf(ctx, 1, []byte("leaf-1")))

		got, found, err := s.GetLeaf(ctx, 0)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, []byte("leaf-0"), got)

		require.NoError(t, s.AppendLeaves(ctx, 2, [][]byte{[]byte("leaf-2"), []byte("leaf-3")}))

		all, err := s.GetAllLeaves(ctx)
		require.NoError(t, err)
		require.Equal(t, [][]byte{
			[]byte("leaf-0"), []byte("leaf-1"), []byte("leaf-2"), []byte("leaf-3"),
		}, all)

		require.NoError(t, s.StoreLeavesBatch(ctx, [][]byte{[]byte("new-0"), []byte("new-1")}))
		got, found, err = s.GetLeaf(ctx, 0)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, []byte("new-0"), got)
	})

	t.Run("imt cache levels", func(t *testing.T) {
		_, found, err := s.GetCacheLevel(ctx, 0)
		require.NoError(t, err)
		require.False(t, found)

		// Level 0 holds raw, variable-length leaf bytes (unhashed); higher
		// levels hold fixed 32-byte digests. Both shapes share one [][]byte
		// representation.
		level0 := [][]byte{[]byte("a"), []byte("bc"), []byte("def")}
		require.NoError(t, s.StoreCacheLevel(ctx, 0, level0))

		got, found, err := s.GetCacheLevel(ctx, 0)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, level0, got)

		level1 := [][]byte{h(4).Bytes()}
		require.NoError(t, s.StoreCacheBatch(ctx, [][][]byte{level0, level1}))

		all, err := s.GetAllCacheLevels(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		require.Equal(t, level0, all[0])
		require.Equal(t, level1, all[1])

		require.NoError(t, s.ClearCache(ctx))
		_, found, err = s.GetCacheLevel(ctx, 0)
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("smt path nodes", func(t *testing.T) {
		_, found, err := s.GetNode(ctx, 3, 7)
		require.NoError(t, err)
		require.False(t, found)

		require.NoError(t, s.StorePathBatch(ctx, []storage.PathUpdate{
			{Level: 3, Index: 7, Hash: h(9)},
			{Level: 2, Index: 3, Hash: h(10)},
		}))

		got, found, err := s.GetNode(ctx, 3, 7)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, h(9), got)

		got, found, err = s.GetNode(ctx, 2, 3)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, h(10), got)
	})

	t.Run("metadata and root", func(t *testing.T) {
		_, found, err := s.GetMetadata(ctx)
		require.NoError(t, err)
		require.False(t, found)

		md := storage.Metadata{NumLeaves: 4, MaxLeaves: 1 << 32}
		require.NoError(t, s.StoreMetadata(ctx, md))
		got, found, err := s.GetMetadata(ctx)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, md, got)

		_, found, err = s.GetRoot(ctx)
		require.NoError(t, err)
		require.False(t, found)

		root := h(0xAB).Bytes()
		require.NoError(t, s.StoreRoot(ctx, root))
		gotRoot, found, err := s.GetRoot(ctx)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, root, gotRoot)
	})

	t.Run("sync and clear all", func(t *testing.T) {
		require.NoError(t, s.Sync(ctx))
		require.NoError(t, s.ClearAll(ctx))

		_, found, err := s.GetLeaf(ctx, 0)
		require.NoError(t, err)
		require.False(t, found)
		_, found, err = s.GetRoot(ctx)
		require.NoError(t, err)
		require.False(t, found)
		_, found, err = s.GetMetadata(ctx)
		require.NoError(t, err)
		require.False(t, found)
	})
}
