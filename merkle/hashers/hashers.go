// Package hashers implements the two Keccak-256 hash algebras used by the
// tree engines: the legacy, non-domain-separated pair
// hash used by the incremental tree, and the domain-tagged leaf/internal/
// empty hashes used by the sparse tree. The two algebras are not
// interchangeable; see the design notes in DESIGN.md before touching either.
package hashers

import (
	"golang.org/x/crypto/sha3"
)

// HashSize is the digest size of every hash produced by this package.
const HashSize = 32

// Hash is a 32-byte digest.
type Hash [HashSize]byte

// Bytes returns h as a byte slice.
func (h Hash) Bytes() []byte { return h[:] }

func keccak256(chunks ...[]byte) Hash {
	h := sha3.NewLegacyKeccak256()
	for _, c := range chunks {
		h.Write(c)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// HashPair is the IMT's internal-node hash: H(left || right). left and right
// are arbitrary-length — level 0 of an incremental tree is raw leaf bytes,
// not pre-hashed digests — but the result is always a fixed 32-byte digest.
// HashPair carries no domain-separation byte — this is a deliberate legacy
// choice preserved for proof compatibility with the original implementation;
// do not add a domain byte here without also invalidating every existing IMT
// root.
func HashPair(left, right []byte) Hash {
	return keccak256(left, right)
}

// domain tags for the SMT algebra.
const (
	domainLeaf     = 0x00
	domainInternal = 0x01
	domainEmpty    = 0x02
)

// HashLeafSMT computes the SMT leaf hash: H(0x00 || keyHash || H(value)).
func HashLeafSMT(keyHash Hash, value []byte) Hash {
	valueHash := keccak256(value)
	return keccak256([]byte{domainLeaf}, keyHash[:], valueHash[:])
}

// HashInternalSMT computes the SMT internal-node hash: H(0x01 || left || right).
func HashInternalSMT(left, right Hash) Hash {
	return keccak256([]byte{domainInternal}, left[:], right[:])
}

// EmptySeed is H(0x02), the seed for an entirely unmaterialized SMT leaf.
func EmptySeed() Hash {
	return keccak256([]byte{domainEmpty})
}

// HashKey hashes an arbitrary-length SMT key down to a fixed digest whose
// top bits determine leaf position.
func HashKey(key []byte) Hash {
	return keccak256(key)
}

// EmptyTable precomputes empty[0..depth] for an SMT of the given depth:
//
//	empty[0]   = H(0x02)
//	empty[l+1] = H(0x01 || empty[l] || empty[l])
func EmptyTable(depth int) []Hash {
	out := make([]Hash, depth+1)
	out[0] = EmptySeed()
	for l := 0; l < depth; l++ {
		out[l+1] = HashInternalSMT(out[l], out[l])
	}
	return out
}
