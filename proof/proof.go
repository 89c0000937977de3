// Package proof implements the wire proof format and the pure, tree-instance
// -free verification functions for both tree kinds. No function in this
// package touches a NodeStore; verification only ever needs the claimed
// leaf, index/key, sibling list, and expected root.
package proof

import (
	"bytes"
	"encoding/hex"

	"github.com/commitree/commitree/merkle/hashers"
)

// Proof is the wire representation: an ordered list of hex-encoded
// siblings, one per tree level climbed. For the SMT every sibling is a
// fixed 32-byte digest and the length is exactly the tree depth. For the
// IMT the length is <= ceil(log2(n)), and a sibling drawn from level 0 is a
// raw, variable-length leaf value rather than a hash — only levels 1 and up
// are fixed 32-byte digests.
type Proof struct {
	Siblings []string `json:"siblings"`
}

// decodeSiblings decodes the SMT's fixed-depth sibling list, where every
// entry must be exactly a 32-byte digest.
func decodeSiblings(hexSiblings []string) ([]hashers.Hash, bool) {
	out := make([]hashers.Hash, len(hexSiblings))
	for i, s := range hexSiblings {
		b, err := hex.DecodeString(s)
		if err != nil || len(b) != hashers.HashSize {
			return nil, false
		}
		copy(out[i][:], b)
	}
	return out, true
}

// EncodeSiblings hex-encodes a sequence of raw hashes into wire form, for
// the SMT's fixed-depth proofs.
func EncodeSiblings(siblings []hashers.Hash) []string {
	out := make([]string, len(siblings))
	for i, s := range siblings {
		out[i] = hex.EncodeToString(s[:])
	}
	return out
}

// decodeSiblingsBytes decodes the IMT's mixed-length sibling list: any
// valid hex string is accepted regardless of decoded length, since a
// level-0 sibling is a raw leaf value, not a hash.
func decodeSiblingsBytes(hexSiblings []string) ([][]byte, bool) {
	out := make([][]byte, len(hexSiblings))
	for i, s := range hexSiblings {
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, false
		}
		out[i] = b
	}
	return out, true
}

// EncodeSiblingBytes hex-encodes a sequence of raw, possibly mixed-length
// sibling values into wire form, for the IMT's variable-depth proofs.
func EncodeSiblingBytes(siblings [][]byte) []string {
	out := make([]string, len(siblings))
	for i, s := range siblings {
		out[i] = hex.EncodeToString(s)
	}
	return out
}

// VerifyIMT verifies an incremental-tree inclusion proof. Starting from the
// claimed leaf bytes, it folds each sibling according to the parity of the
// (successively halved) leaf index, and accepts iff the final bytes equal
// root. Malformed hex in any sibling rejects.
func VerifyIMT(leaf []byte, p Proof, root []byte, index uint64) bool {
	siblings, ok := decodeSiblingsBytes(p.Siblings)
	if !ok {
		return false
	}
	cur := leaf
	idx := index
	for _, sib := range siblings {
		var h hashers.Hash
		if idx%2 == 0 {
			h = hashers.HashPair(cur, sib)
		} else {
			h = hashers.HashPair(sib, cur)
		}
		cur = h.Bytes()
		idx /= 2
	}
	return bytes.Equal(cur, root)
}

// foldSMT folds a starting hash up through an SMT proof, returning the
// resulting root candidate. depth is validated by the caller.
func foldSMT(start hashers.Hash, keyHash hashers.Hash, siblings []hashers.Hash) hashers.Hash {
	cur := start
	idx := leafIndexFromKeyHash(keyHash, len(siblings))
	for _, sib := range siblings {
		if idx&1 == 0 {
			cur = hashers.HashInternalSMT(cur, sib)
		} else {
			cur = hashers.HashInternalSMT(sib, cur)
		}
		idx >>= 1
	}
	return cur
}

// leafIndexFromKeyHash derives the depth-bit, MSB-first leaf index from a
// key hash. trees/smt keeps its own copy of this function; the two must
// stay bit-for-bit identical.
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

// VerifyMembershipSMT verifies that (key, value) is included under root,
// given an exactly-depth-length proof. Proof length not matching depth
// always rejects.
func VerifyMembershipSMT(key, value []byte, p Proof, root hashers.Hash, depth int) bool {
	if len(p.Siblings) != depth {
		return false
	}
	siblings, ok := decodeSiblings(p.Siblings)
	if !ok {
		return false
	}
	kh := hashers.HashKey(key)
	leaf := hashers.HashLeafSMT(kh, value)
	return foldSMT(leaf, kh, siblings) == root
}

// VerifyNonMembershipSMT verifies that key is absent under root: the proof
// folds starting from the canonical empty leaf (empty[0]) instead of a
// materialized leaf hash.
func VerifyNonMembershipSMT(key []byte, p Proof, root hashers.Hash, depth int) bool {
	if len(p.Siblings) != depth {
		return false
	}
	siblings, ok := decodeSiblings(p.Siblings)
	if !ok {
		return false
	}
	kh := hashers.HashKey(key)
	empty0 := hashers.EmptySeed()
	return foldSMT(empty0, kh, siblings) == root
}
