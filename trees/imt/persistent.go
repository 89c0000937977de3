package imt

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/commitree/commitree/apperr"
	"github.com/commitree/commitree/proof"
	"github.com/commitree/commitree/storage"
)

// Persistent is the storage-backed incremental tree variant. Every mutation
// recomputes the full level set inline and commits it alongside the leaves
// and metadata in one logical write, so disk and in-memory state are always
// coherent — there is no lazy cache-valid window like the in-memory variant.
type Persistent struct {
	mu        sync.RWMutex
	store     storage.NodeStore
	leaves    [][]byte
	maxLeaves int64
	levels    [][][]byte
	sf        singleflight.Group
}

// NewPersistent opens (or resumes) a persistent incremental tree against
// store, with the default 2^32-leaf ceiling.
func NewPersistent(ctx context.Context, store storage.NodeStore) (*Persistent, error) {
	return NewPersistentWithCapacity(ctx, store, DefaultPersistentMaxLeaves)
}

// NewPersistentWithCapacity is NewPersistent with a custom leaf ceiling.
func NewPersistentWithCapacity(ctx context.Context, store storage.NodeStore, maxLeaves int64) (*Persistent, error) {
	t := &Persistent{store: store, maxLeaves: maxLeaves}
	if err := t.load(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Persistent) load(ctx context.Context) error {
	md, found, err := t.store.GetMetadata(ctx)
	if err != nil {
		return err
	}
	if found {
		t.maxLeaves = md.MaxLeaves
	}

	rawLeaves, err := t.store.GetAllLeaves(ctx)
	if err != nil {
		return err
	}
	t.leaves = rawLeaves

	cached, err := t.store.GetAllCacheLevels(ctx)
	if err != nil {
		return err
	}
	t.levels = cached
	return nil
}

// persist writes leaves, cache levels, metadata, and root in one logical
// unit and forces a durability sync, matching the original's
// save_to_storage/persist split collapsed into a single path since every
// mutation here already runs the inline recompute.
func (t *Persistent) persist(ctx context.Context, startIndex uint64, newLeaves [][]byte) error {
	if len(newLeaves) > 0 {
		if err := t.store.AppendLeaves(ctx, startIndex, newLeaves); err != nil {
			return err
		}
	}
	if err := t.store.StoreCacheBatch(ctx, t.levels); err != nil {
		return err
	}
	if err := t.store.StoreMetadata(ctx, storage.Metadata{
		NumLeaves: int64(len(t.leaves)),
		MaxLeaves: t.maxLeaves,
	}); err != nil {
		return err
	}
	if len(t.levels) > 0 {
		top := t.levels[len(t.levels)-1]
		if err := t.store.StoreRoot(ctx, top[0]); err != nil {
			return err
		}
	}
	return t.store.Sync(ctx)
}

func (t *Persistent) AddLeaf(ctx context.Context, leaf []byte) error {
	return t.AddLeaves(ctx, [][]byte{leaf})
}

func (t *Persistent) AddLeaves(ctx context.Context, leaves [][]byte) error {
	for _, l := range leaves {
		if err := validateLeaf(l); err != nil {
			return err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if int64(len(t.leaves))+int64(len(leaves)) > t.maxLeaves {
		return apperr.New(apperr.CapacityExceeded, "exceeded max number of leaves in merkle tree")
	}

	startIndex := uint64(len(t.leaves))
	merged := append(append([][]byte(nil), t.leaves...), leaves...)
	levels, err := buildLevels(merged)
	if err != nil {
		return err
	}

	prevLevels := t.levels
	t.levels = levels
	if err := t.persist(ctx, startIndex, leaves); err != nil {
		t.levels = prevLevels
		return err
	}

	t.leaves = merged
	return nil
}

func (t *Persistent) NumLeaves(_ context.Context) (uint64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return uint64(len(t.leaves)), nil
}

func (t *Persistent) Root(_ context.Context) ([]byte, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.leaves) == 0 {
		return nil, false, nil
	}
	result, err, _ := t.sf.Do("root", func() (interface{}, error) {
		top := t.levels[len(t.levels)-1]
		return top[0], nil
	})
	if err != nil {
		return nil, false, err
	}
	return result.([]byte), true, nil
}

func (t *Persistent) GetProof(_ context.Context, index uint64) (proof.Proof, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index >= uint64(len(t.leaves)) {
		return proof.Proof{}, false, nil
	}
	return proofFromLevels(t.levels, index), true, nil
}

var _ Tree = (*Persistent)(nil)
