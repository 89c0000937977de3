package hashers

import "testing"

func TestHashPairIsOrderSensitive(t *testing.T) {
	a := []byte("a")
	b := []byte("b")
	if HashPair(a, b) == HashPair(b, a) {
		t.Fatalf("HashPair(a, b) == HashPair(b, a), want distinct")
	}
}

func TestHashPairAcceptsArbitraryLengthInputs(t *testing.T) {
	got := HashPair([]byte("a"), []byte("b"))
	want := keccak256([]byte("a"), []byte("b"))
	if got != want {
		t.Fatalf("HashPair did not reduce to a plain Keccak256(left||right) for non-32-byte inputs")
	}
}

func TestHashLeafSMTDependsOnKeyAndValue(t *testing.T) {
	kh := HashKey([]byte("alice"))
	h1 := HashLeafSMT(kh, []byte("100"))
	h2 := HashLeafSMT(kh, []byte("200"))
	if h1 == h2 {
		t.Fatalf("HashLeafSMT produced equal hashes for distinct values")
	}
}

func TestEmptyTableRecurrence(t *testing.T) {
	table := EmptyTable(4)
	if len(table) != 5 {
		t.Fatalf("len(table) = %d, want 5", len(table))
	}
	if table[0] != EmptySeed() {
		t.Fatalf("table[0] != EmptySeed()")
	}
	for l := 0; l < 4; l++ {
		want := HashInternalSMT(table[l], table[l])
		if table[l+1] != want {
			t.Fatalf("table[%d] = %x, want %x", l+1, table[l+1], want)
		}
	}
}

func TestEmptyTableIsDeterministic(t *testing.T) {
	a := EmptyTable(8)
	b := EmptyTable(8)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("EmptyTable not deterministic at index %d", i)
		}
	}
}
