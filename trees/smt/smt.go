// Package smt implements the sparse Merkle tree: a fixed-depth binary trie
// keyed by a hash digest, with per-level default empty hashes standing in
// for unmaterialized subtrees. Grounded on the teacher's
// merkle/sparse_merkle_tree.go SetLeaf/CalculateRoot/RootHash shape, adapted
// to the single-path-batch-write algorithm of the original Rust
// implementation this module replaces.
package smt

import (
	"context"
	"sync"

	"github.com/commitree/commitree/apperr"
	"github.com/commitree/commitree/merkle/hashers"
	"github.com/commitree/commitree/proof"
	"github.com/commitree/commitree/storage"
)

// DefaultDepth matches the original's DEFAULT_DEPTH: deep enough for
// real keyspaces, shallow enough that node indices fit in a uint64.
const DefaultDepth = 32

// MaxDepth is the hard ceiling: beyond 64 levels, node indices no longer
// fit in a uint64 and the storage key scheme must change.
const MaxDepth = 64

// Tree is a sparse Merkle tree over a single storage.NodeStore.
type Tree struct {
	mu    sync.RWMutex
	store storage.NodeStore
	empty []hashers.Hash // empty[0..depth]
	depth int
}

// Open creates (or resumes) a sparse Merkle tree of the given depth backed
// by store. depth must be in 1..=64.
func Open(store storage.NodeStore, depth int) (*Tree, error) {
	if depth <= 0 || depth > MaxDepth {
		return nil, apperr.Newf(apperr.InvalidInput, "smt depth must be in 1..=%d, got %d", MaxDepth, depth)
	}
	return &Tree{
		store: store,
		empty: hashers.EmptyTable(depth),
		depth: depth,
	}, nil
}

func leafIndexFromKeyHash(kh hashers.Hash, depth int) uint64 {
	var idx uint64
	for i := 0; i < depth; i++ {
		idx <<= 1
		idx |= uint64(bitAt(kh, i))
	}
	return idx
}

func bitAt(h hashers.Hash, i int) byte {
	b := h[i/8]
	off := uint(7 - (i % 8))
	return (b >> off) & 1
}

// Insert writes the full path from leaf to root for (key, value) in a
// single storage transaction. Repeating the same (key, value) yields the
// same root.
func (t *Tree) Insert(ctx context.Context, key, value []byte) error {
	kh := hashers.HashKey(key)
	leafHash := hashers.HashLeafSMT(kh, value)
	idx := leafIndexFromKeyHash(kh, t.depth)

	t.mu.Lock()
	defer t.mu.Unlock()

	updates := make([]storage.PathUpdate, 0, t.depth+1)
	updates = append(updates, storage.PathUpdate{Level: 0, Index: idx, Hash: leafHash})

	cur := leafHash
	curIdx := idx
	for level := 0; level < t.depth; level++ {
		sibIdx := curIdx ^ 1
		sib, found, err := t.store.GetNode(ctx, level, sibIdx)
		if err != nil {
			return err
		}
		if !found {
			sib = t.empty[level]
		}

		var parent hashers.Hash
		if curIdx&1 == 0 {
			parent = hashers.HashInternalSMT(cur, sib)
		} else {
			parent = hashers.HashInternalSMT(sib, cur)
		}

		curIdx >>= 1
		updates = append(updates, storage.PathUpdate{Level: level + 1, Index: curIdx, Hash: parent})
		cur = parent
	}

	if err := t.store.StorePathBatch(ctx, updates); err != nil {
		return err
	}
	return t.store.Sync(ctx)
}

// Root returns the current materialized root, or empty[depth] if the tree
// has never been written to.
func (t *Tree) Root(ctx context.Context) (hashers.Hash, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, found, err := t.store.GetNode(ctx, t.depth, 0)
	if err != nil {
		return hashers.Hash{}, err
	}
	if !found {
		return t.empty[t.depth], nil
	}
	return h, nil
}

// GetProof returns exactly depth siblings for key, defaulting unmaterialized
// siblings to the per-level empty hash.
func (t *Tree) GetProof(ctx context.Context, key []byte) (proof.Proof, error) {
	kh := hashers.HashKey(key)
	idx := leafIndexFromKeyHash(kh, t.depth)

	t.mu.RLock()
	defer t.mu.RUnlock()

	siblings := make([]hashers.Hash, t.depth)
	for level := 0; level < t.depth; level++ {
		sibIdx := idx ^ 1
		sib, found, err := t.store.GetNode(ctx, level, sibIdx)
		if err != nil {
			return proof.Proof{}, err
		}
		if !found {
			sib = t.empty[level]
		}
		siblings[level] = sib
		idx >>= 1
	}
	return proof.Proof{Siblings: proof.EncodeSiblings(siblings)}, nil
}

// VerifyMembership delegates to the pure verifier in package proof.
func (t *Tree) VerifyMembership(key, value []byte, p proof.Proof, root hashers.Hash) bool {
	return proof.VerifyMembershipSMT(key, value, p, root, t.depth)
}

// VerifyNonMembership delegates to the pure verifier in package proof.
func (t *Tree) VerifyNonMembership(key []byte, p proof.Proof, root hashers.Hash) bool {
	return proof.VerifyNonMembershipSMT(key, p, root, t.depth)
}

// Depth returns the tree's configured depth.
func (t *Tree) Depth() int { return t.depth }
