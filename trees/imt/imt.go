// Package imt implements the incremental (append-only) binary Merkle tree:
// an in-memory variant grounded on vocdoni-lean-imt-go's LeanIMT cache-levels
// shape, and a persistent variant that threads every mutation through a
// storage.NodeStore transaction. Both share the Tree interface and must
// produce identical roots for identical leaf sequences.
package imt

import (
	"context"

	"github.com/commitree/commitree/apperr"
	"github.com/commitree/commitree/merkle/hashers"
	"github.com/commitree/commitree/proof"
)

// DefaultInMemoryMaxLeaves is the in-memory variant's leaf ceiling (2^11).
const DefaultInMemoryMaxLeaves = 1 << 11

// DefaultPersistentMaxLeaves is the persistent variant's leaf ceiling (2^32).
const DefaultPersistentMaxLeaves = int64(1) << 32

// maxLevels bounds recompute depth; exceeding it during a build is an
// invariant violation, not a capacity error, since max_leaves is checked
// first and 2^32 leaves never requires more than 32 levels.
const maxLevels = 64

// Tree is the shared contract for both the in-memory and persistent
// incremental tree variants. Root is the raw tree root: for n >= 2 leaves it
// is always a 32-byte HashPair digest, but for a single-leaf tree it is the
// leaf's own bytes, unhashed and of whatever length the caller supplied.
type Tree interface {
	AddLeaf(ctx context.Context, leaf []byte) error
	AddLeaves(ctx context.Context, leaves [][]byte) error
	NumLeaves(ctx context.Context) (uint64, error)
	Root(ctx context.Context) ([]byte, bool, error)
	GetProof(ctx context.Context, index uint64) (proof.Proof, bool, error)
}

// buildLevels runs the recompute algorithm from a flat level 0 of raw leaf
// bytes: pair up left-to-right, duplicating the last element on an odd
// count, until exactly one element (the root) remains. Returns one slice per
// level, level 0 being the input itself (unhashed); every level above that
// holds 32-byte HashPair digests.
func buildLevels(level0 [][]byte) ([][][]byte, error) {
	if len(level0) == 0 {
		return nil, nil
	}
	levels := [][][]byte{level0}
	cur := level0
	for len(cur) > 1 {
		if len(levels) >= maxLevels {
			return nil, apperr.New(apperr.InvariantViolated, "exceeded max levels during recompute")
		}
		next := make([][]byte, 0, (len(cur)+1)/2)
		for i := 0; i < len(cur); i += 2 {
			left := cur[i]
			right := left
			if i+1 < len(cur) {
				right = cur[i+1]
			}
			next = append(next, hashers.HashPair(left, right).Bytes())
		}
		levels = append(levels, next)
		cur = next
	}
	return levels, nil
}

// proofFromLevels derives the inclusion proof for leaf index from a set of
// precomputed levels, per the "own hash when no sibling" duplication rule.
// A level-0 sibling is a raw leaf value of whatever length it was ingested
// with; every level above that is a fixed 32-byte digest.
func proofFromLevels(levels [][][]byte, index uint64) proof.Proof {
	var siblings [][]byte
	idx := index
	for level := 0; level < len(levels); level++ {
		levelSize := uint64(len(levels[level]))
		if levelSize <= 1 {
			break
		}
		var sibIdx uint64
		if idx%2 == 0 {
			sibIdx = idx + 1
		} else {
			sibIdx = idx - 1
		}
		if sibIdx < levelSize {
			siblings = append(siblings, levels[level][sibIdx])
		} else {
			siblings = append(siblings, levels[level][idx])
		}
		idx /= 2
	}
	return proof.Proof{Siblings: proof.EncodeSiblingBytes(siblings)}
}

// validateLeaf rejects only what an IMT leaf cannot be: empty. A leaf is
// otherwise an opaque byte sequence of any length, carried as-is into level
// 0 and never re-hashed on ingest — a single-leaf tree's root is the leaf
// itself, unhashed.
func validateLeaf(leaf []byte) error {
	if len(leaf) == 0 {
		return apperr.New(apperr.InvalidInput, "leaf must not be empty")
	}
	return nil
}
