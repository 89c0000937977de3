package proof

import (
	"testing"

	"github.com/commitree/commitree/merkle/hashers"
)

func TestVerifyIMTAcceptsValidProof(t *testing.T) {
	l0 := []byte("a")
	l1 := []byte("b")
	root := hashers.HashPair(l0, l1).Bytes()

	p := Proof{Siblings: EncodeSiblingBytes([][]byte{l1})}
	if !VerifyIMT(l0, p, root, 0) {
		t.Fatalf("VerifyIMT rejected a valid proof for index 0")
	}

	p = Proof{Siblings: EncodeSiblingBytes([][]byte{l0})}
	if !VerifyIMT(l1, p, root, 1) {
		t.Fatalf("VerifyIMT rejected a valid proof for index 1")
	}
}

func TestVerifyIMTRejectsWrongRoot(t *testing.T) {
	l0 := []byte("a")
	l1 := []byte("b")
	wrongRoot := hashers.HashKey([]byte("not the root")).Bytes()

	p := Proof{Siblings: EncodeSiblingBytes([][]byte{l1})}
	if VerifyIMT(l0, p, wrongRoot, 0) {
		t.Fatalf("VerifyIMT accepted a proof against the wrong root")
	}
}

func TestVerifyIMTRejectsMalformedSiblingHex(t *testing.T) {
	l0 := []byte("a")
	root := hashers.HashKey([]byte("root")).Bytes()
	p := Proof{Siblings: []string{"not-hex"}}
	if VerifyIMT(l0, p, root, 0) {
		t.Fatalf("VerifyIMT accepted malformed sibling hex")
	}
}

func TestVerifyIMTAcceptsSingleByteLeavesPerSeedScenario(t *testing.T) {
	// Mirrors the literal seed scenario: leaves "a","b","c","d", where
	// H_leaf_ab = hash_pair("a","b") is computed directly on the raw,
	// unhashed, single-byte leaf bytes.
	a, b, c, d := []byte("a"), []byte("b"), []byte("c"), []byte("d")
	hAB := hashers.HashPair(a, b).Bytes()
	hCD := hashers.HashPair(c, d).Bytes()
	root := hashers.HashPair(hAB, hCD).Bytes()

	p := Proof{Siblings: EncodeSiblingBytes([][]byte{b, hCD})}
	if !VerifyIMT(a, p, root, 0) {
		t.Fatalf("VerifyIMT rejected single-byte leaf %q at index 0", a)
	}
}

func TestVerifyMembershipSMTRejectsWrongProofLength(t *testing.T) {
	root := hashers.Hash{}
	p := Proof{Siblings: EncodeSiblings(make([]hashers.Hash, 3))}
	if VerifyMembershipSMT([]byte("alice"), []byte("100"), p, root, 4) {
		t.Fatalf("VerifyMembershipSMT accepted a proof of the wrong length")
	}
}

func TestVerifyNonMembershipSMTAcceptsEmptyTreeRoot(t *testing.T) {
	depth := 4
	empty := hashers.EmptyTable(depth)
	root := empty[depth]
	p := Proof{Siblings: EncodeSiblings(empty[:depth])}
	if !VerifyNonMembershipSMT([]byte("nobody"), p, root, depth) {
		t.Fatalf("VerifyNonMembershipSMT rejected a key absent from an empty tree")
	}
}
