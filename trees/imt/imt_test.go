package imt

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/commitree/commitree/apperr"
	"github.com/commitree/commitree/proof"
	"github.com/commitree/commitree/storage/memstore"
)

func TestInMemoryEmptyTreeHasNoRoot(t *testing.T) {
	ctx := context.Background()
	tr := NewInMemory()
	_, found, err := tr.Root(ctx)
	require.NoError(t, err)
	require.False(t, found)
	_, found, err = tr.GetProof(ctx, 0)
	require.NoError(t, err)
	require.False(t, found)
}

func TestInMemorySingleLeafRootEqualsLeaf(t *testing.T) {
	ctx := context.Background()
	tr := NewInMemory()
	l := []byte("a")
	require.NoError(t, tr.AddLeaf(ctx, l))

	root, found, err := tr.Root(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, bytes.Equal(l, root), "single-leaf root must equal the raw, unhashed leaf")

	p, found, err := tr.GetProof(ctx, 0)
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, p.Siblings)
	require.True(t, proof.VerifyIMT(l, p, root, 0))
}

// TestInMemoryBuildsFromSingleByteLeaves is the IMT-A seed scenario: leaves
// "a","b","c","d" (single-byte, raw, unhashed) must build and every proof
// must verify.
func TestInMemoryBuildsFromSingleByteLeaves(t *testing.T) {
	ctx := context.Background()
	tr := NewInMemory()
	leaves := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")}
	require.NoError(t, tr.AddLeaves(ctx, leaves))

	root, found, err := tr.Root(ctx)
	require.NoError(t, err)
	require.True(t, found)

	for i, l := range leaves {
		p, found, err := tr.GetProof(ctx, uint64(i))
		require.NoError(t, err)
		require.True(t, found)
		require.True(t, proof.VerifyIMT(l, p, root, uint64(i)), "leaf %d (%q) failed verification", i, l)
	}
}

// TestInMemoryOddLeafCountSelfPairs is the IMT-B seed scenario: an odd
// number of leaves self-pairs the last element at every level it's odd at.
func TestInMemoryOddLeafCountSelfPairs(t *testing.T) {
	ctx := context.Background()
	tr := NewInMemory()
	leaves := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	require.NoError(t, tr.AddLeaves(ctx, leaves))

	root, found, err := tr.Root(ctx)
	require.NoError(t, err)
	require.True(t, found)

	for i, l := range leaves {
		p, found, err := tr.GetProof(ctx, uint64(i))
		require.NoError(t, err)
		require.True(t, found)
		require.True(t, proof.VerifyIMT(l, p, root, uint64(i)), "leaf %d failed verification", i)
	}
}

// TestInMemoryDifferentLeavesProduceDifferentRoots is the IMT-C seed
// scenario: appending a leaf changes the root.
func TestInMemoryDifferentLeavesProduceDifferentRoots(t *testing.T) {
	ctx := context.Background()
	xy := NewInMemory()
	require.NoError(t, xy.AddLeaves(ctx, [][]byte{[]byte("x"), []byte("y")}))
	rootXY, found, err := xy.Root(ctx)
	require.NoError(t, err)
	require.True(t, found)

	xyz := NewInMemory()
	require.NoError(t, xyz.AddLeaves(ctx, [][]byte{[]byte("x"), []byte("y"), []byte("z")}))
	rootXYZ, found, err := xyz.Root(ctx)
	require.NoError(t, err)
	require.True(t, found)

	require.False(t, bytes.Equal(rootXY, rootXYZ), "roots for [x,y] and [x,y,z] must differ")
}

func TestInMemoryCapacityExceeded(t *testing.T) {
	ctx := context.Background()
	tr := NewInMemoryWithCapacity(2)
	require.NoError(t, tr.AddLeaf(ctx, []byte("a")))
	require.NoError(t, tr.AddLeaf(ctx, []byte("b")))
	err := tr.AddLeaf(ctx, []byte("c"))
	require.Error(t, err)
	require.Equal(t, apperr.CapacityExceeded, apperr.KindOf(err))
}

func TestInMemoryRejectsEmptyLeaf(t *testing.T) {
	ctx := context.Background()
	tr := NewInMemory()
	err := tr.AddLeaf(ctx, []byte(""))
	require.Error(t, err)
	require.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
}

func TestPersistentMatchesInMemoryRoot(t *testing.T) {
	ctx := context.Background()
	mem := NewInMemory()
	leaves := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d"), []byte("e")}
	require.NoError(t, mem.AddLeaves(ctx, leaves))
	wantRoot, found, err := mem.Root(ctx)
	require.NoError(t, err)
	require.True(t, found)

	store := memstore.New()
	persistent, err := NewPersistent(ctx, store)
	require.NoError(t, err)
	require.NoError(t, persistent.AddLeaves(ctx, leaves))

	gotRoot, found, err := persistent.Root(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, wantRoot, gotRoot)

	for i := uint64(0); i < uint64(len(leaves)); i++ {
		wantProof, found, err := mem.GetProof(ctx, i)
		require.NoError(t, err)
		require.True(t, found)
		gotProof, found, err := persistent.GetProof(ctx, i)
		require.NoError(t, err)
		require.True(t, found)
		if diff := cmp.Diff(wantProof, gotProof); diff != "" {
			t.Fatalf("proof for leaf %d diverged between in-memory and persistent trees (-want +got):\n%s", i, diff)
		}
	}
}

func TestPersistentResumesFromStore(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	tr, err := NewPersistent(ctx, store)
	require.NoError(t, err)
	require.NoError(t, tr.AddLeaves(ctx, [][]byte{[]byte("a"), []byte("b"), []byte("c")}))
	wantRoot, found, err := tr.Root(ctx)
	require.NoError(t, err)
	require.True(t, found)

	resumed, err := NewPersistent(ctx, store)
	require.NoError(t, err)
	gotRoot, found, err := resumed.Root(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, wantRoot, gotRoot)

	n, err := resumed.NumLeaves(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(3), n)
}
