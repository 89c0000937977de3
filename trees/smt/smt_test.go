package smt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/commitree/commitree/merkle/hashers"
	"github.com/commitree/commitree/storage/memstore"
)

func TestEmptyTreeRootIsEmptyAtDepth(t *testing.T) {
	ctx := context.Background()
	tr, err := Open(memstore.New(), 8)
	require.NoError(t, err)

	root, err := tr.Root(ctx)
	require.NoError(t, err)
	require.Equal(t, hashers.EmptyTable(8)[8], root)
}

func TestInsertThenVerifyMembership(t *testing.T) {
	ctx := context.Background()
	tr, err := Open(memstore.New(), 8)
	require.NoError(t, err)

	key, value := []byte("alice"), []byte("100")
	require.NoError(t, tr.Insert(ctx, key, value))

	root, err := tr.Root(ctx)
	require.NoError(t, err)

	p, err := tr.GetProof(ctx, key)
	require.NoError(t, err)
	require.Len(t, p.Siblings, 8)
	require.True(t, tr.VerifyMembership(key, value, p, root))
	require.False(t, tr.VerifyMembership(key, []byte("999"), p, root))
}

func TestNonMembershipForUnwrittenKey(t *testing.T) {
	ctx := context.Background()
	tr, err := Open(memstore.New(), 8)
	require.NoError(t, err)

	require.NoError(t, tr.Insert(ctx, []byte("alice"), []byte("100")))
	root, err := tr.Root(ctx)
	require.NoError(t, err)

	p, err := tr.GetProof(ctx, []byte("bob"))
	require.NoError(t, err)
	require.True(t, tr.VerifyNonMembership([]byte("bob"), p, root))
}

func TestRepeatedInsertSameValueIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tr, err := Open(memstore.New(), 8)
	require.NoError(t, err)

	require.NoError(t, tr.Insert(ctx, []byte("k"), []byte("v")))
	root1, err := tr.Root(ctx)
	require.NoError(t, err)

	require.NoError(t, tr.Insert(ctx, []byte("k"), []byte("v")))
	root2, err := tr.Root(ctx)
	require.NoError(t, err)

	require.Equal(t, root1, root2)
}

func TestUpdateChangesRoot(t *testing.T) {
	ctx := context.Background()
	tr, err := Open(memstore.New(), 8)
	require.NoError(t, err)

	require.NoError(t, tr.Insert(ctx, []byte("k"), []byte("v1")))
	root1, err := tr.Root(ctx)
	require.NoError(t, err)

	require.NoError(t, tr.Insert(ctx, []byte("k"), []byte("v2")))
	root2, err := tr.Root(ctx)
	require.NoError(t, err)

	require.NotEqual(t, root1, root2)

	p, err := tr.GetProof(ctx, []byte("k"))
	require.NoError(t, err)
	require.True(t, tr.VerifyMembership([]byte("k"), []byte("v2"), p, root2))
	require.False(t, tr.VerifyMembership([]byte("k"), []byte("v1"), p, root2))
}

func TestOpenRejectsInvalidDepth(t *testing.T) {
	_, err := Open(memstore.New(), 0)
	require.Error(t, err)
	_, err = Open(memstore.New(), 65)
	require.Error(t, err)
}
