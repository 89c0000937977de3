// Package memstore implements an in-memory storage.NodeStore, used by
// storagetest's conformance suite and by tests of the tree engines that
// don't want real disk I/O. Leaves are kept in a github.com/google/btree
// ordered tree keyed by index rather than a bare map, so GetAllLeaves can
// iterate in order without a separate sort pass.
package memstore

import (
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/commitree/commitree/merkle/hashers"
	"github.com/commitree/commitree/storage"
)

type leafItem struct {
	index uint64
	data  []byte
}

func (a leafItem) Less(than btree.Item) bool {
	return a.index < than.(leafItem).index
}

type nodeKey struct {
	level int
	index uint64
}

// Store is a goroutine-safe in-memory NodeStore.
type Store struct {
	mu        sync.RWMutex
	leaves    *btree.BTree
	numLeaves uint64
	cache     map[int][][]byte // IMT whole-level cache
	nodes     map[nodeKey]hashers.Hash
	metadata  storage.Metadata
	hasMeta   bool
	root      []byte
	hasRoot   bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		leaves: btree.New(32),
		cache:  make(map[int][][]byte),
		nodes:  make(map[nodeKey]hashers.Hash),
	}
}

func (s *Store) StoreLeaf(_ context.Context, index uint64, leaf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := append([]byte(nil), leaf...)
	s.leaves.ReplaceOrInsert(leafItem{index: index, data: cp})
	if index+1 > s.numLeaves {
		s.numLeaves = index + 1
	}
	return nil
}

func (s *Store) GetLeaf(_ context.Context, index uint64) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item := s.leaves.Get(leafItem{index: index})
	if item == nil {
		return nil, false, nil
	}
	li := item.(leafItem)
	return append([]byte(nil), li.data...), true, nil
}

func (s *Store) GetAllLeaves(_ context.Context) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([][]byte, 0, s.leaves.Len())
	s.leaves.Ascend(func(i btree.Item) bool {
		li := i.(leafItem)
		out = append(out, append([]byte(nil), li.data...))
		return true
	})
	return out, nil
}

func (s *Store) StoreLeavesBatch(_ context.Context, leaves [][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, leaf := range leaves {
		cp := append([]byte(nil), leaf...)
		s.leaves.ReplaceOrInsert(leafItem{index: uint64(i), data: cp})
	}
	if uint64(len(leaves)) > s.numLeaves {
		s.numLeaves = uint64(len(leaves))
	}
	return nil
}

func (s *Store) AppendLeaves(_ context.Context, startIndex uint64, leaves [][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, leaf := range leaves {
		cp := append([]byte(nil), leaf...)
		idx := startIndex + uint64(i)
		s.leaves.ReplaceOrInsert(leafItem{index: idx, data: cp})
		if idx+1 > s.numLeaves {
			s.numLeaves = idx + 1
		}
	}
	return nil
}

func (s *Store) StoreCacheLevel(_ context.Context, level int, values [][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[level] = copyLevel(values)
	return nil
}

func (s *Store) GetCacheLevel(_ context.Context, level int) ([][]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.cache[level]
	if !ok {
		return nil, false, nil
	}
	return copyLevel(v), true, nil
}

func (s *Store) GetAllCacheLevels(_ context.Context) ([][][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([][][]byte, len(s.cache))
	for lvl, v := range s.cache {
		if lvl >= len(out) {
			grown := make([][][]byte, lvl+1)
			copy(grown, out)
			out = grown
		}
		out[lvl] = copyLevel(v)
	}
	return out, nil
}

func (s *Store) StoreCacheBatch(_ context.Context, levels [][][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[int][][]byte, len(levels))
	for lvl, v := range levels {
		s.cache[lvl] = copyLevel(v)
	}
	return nil
}

func (s *Store) ClearCache(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[int][][]byte)
	s.nodes = make(map[nodeKey]hashers.Hash)
	return nil
}

func copyLevel(values [][]byte) [][]byte {
	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = append([]byte(nil), v...)
	}
	return out
}

func (s *Store) GetNode(_ context.Context, level int, index uint64) (hashers.Hash, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.nodes[nodeKey{level: level, index: index}]
	return h, ok, nil
}

func (s *Store) StorePathBatch(_ context.Context, updates []storage.PathUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range updates {
		s.nodes[nodeKey{level: u.Level, index: u.Index}] = u.Hash
	}
	return nil
}

func (s *Store) StoreMetadata(_ context.Context, md storage.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata = md
	s.hasMeta = true
	return nil
}

func (s *Store) GetMetadata(_ context.Context) (storage.Metadata, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metadata, s.hasMeta, nil
}

func (s *Store) StoreRoot(_ context.Context, root []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = append([]byte(nil), root...)
	s.hasRoot = true
	return nil
}

func (s *Store) GetRoot(_ context.Context) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasRoot {
		return nil, false, nil
	}
	return append([]byte(nil), s.root...), true, nil
}

func (s *Store) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaves = btree.New(32)
	s.numLeaves = 0
	s.cache = make(map[int][][]byte)
	s.nodes = make(map[nodeKey]hashers.Hash)
	s.metadata = storage.Metadata{}
	s.hasMeta = false
	s.hasRoot = false
	return nil
}

func (s *Store) Sync(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }

var _ storage.NodeStore = (*Store)(nil)
