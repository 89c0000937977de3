package imt

import (
	"context"
	"sync"

	"github.com/commitree/commitree/apperr"
	"github.com/commitree/commitree/proof"
)

// InMemory is the non-durable incremental tree variant: leaves live only in
// process memory, and the level set is recomputed lazily on the next read
// after a mutation marks it dirty.
type InMemory struct {
	mu         sync.RWMutex
	leaves     [][]byte
	maxLeaves  int
	levels     [][][]byte
	cacheValid bool
}

// NewInMemory creates an empty in-memory tree at the default leaf ceiling.
func NewInMemory() *InMemory { return NewInMemoryWithCapacity(DefaultInMemoryMaxLeaves) }

// NewInMemoryWithCapacity is NewInMemory with a custom leaf ceiling.
func NewInMemoryWithCapacity(maxLeaves int) *InMemory {
	return &InMemory{maxLeaves: maxLeaves, cacheValid: true}
}

func (t *InMemory) AddLeaf(_ context.Context, leaf []byte) error {
	if err := validateLeaf(leaf); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.leaves)+1 > t.maxLeaves {
		return apperr.New(apperr.CapacityExceeded, "exceeded max number of leaves in merkle tree")
	}
	t.leaves = append(t.leaves, leaf)
	t.cacheValid = false
	return nil
}

func (t *InMemory) AddLeaves(_ context.Context, leaves [][]byte) error {
	for _, l := range leaves {
		if err := validateLeaf(l); err != nil {
			return err
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.leaves)+len(leaves) > t.maxLeaves {
		return apperr.New(apperr.CapacityExceeded, "exceeded max number of leaves in merkle tree")
	}
	t.leaves = append(t.leaves, leaves...)
	t.cacheValid = false
	return nil
}

func (t *InMemory) NumLeaves(_ context.Context) (uint64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return uint64(len(t.leaves)), nil
}

func (t *InMemory) recompute() error {
	levels, err := buildLevels(t.leaves)
	if err != nil {
		return err
	}
	t.levels = levels
	t.cacheValid = true
	return nil
}

func (t *InMemory) Root(_ context.Context) ([]byte, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.leaves) == 0 {
		return nil, false, nil
	}
	if !t.cacheValid {
		if err := t.recompute(); err != nil {
			return nil, false, err
		}
	}
	top := t.levels[len(t.levels)-1]
	return top[0], true, nil
}

func (t *InMemory) GetProof(_ context.Context, index uint64) (proof.Proof, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index >= uint64(len(t.leaves)) {
		return proof.Proof{}, false, nil
	}
	if !t.cacheValid {
		if err := t.recompute(); err != nil {
			return proof.Proof{}, false, err
		}
	}
	return proofFromLevels(t.levels, index), true, nil
}

var _ Tree = (*InMemory)(nil)
