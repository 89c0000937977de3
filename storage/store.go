// Package storage defines the transactional node store contract shared by
// both tree engines: ordered leaf bytes, a tree-node hash cache, and small
// named metadata slots, with atomic multi-write batches and a durable sync.
//
// Three backends implement NodeStore: storage/badgerstore (the default,
// durable, single-file embedded store), storage/mysqlstore (a relational
// alternative), and storage/memstore (in-memory, behind treeserver's
// "memory" backend and used by tests). The in-memory IMT variant keeps its
// leaves in process memory and does not use a NodeStore.
package storage

import (
	"context"

	"github.com/commitree/commitree/merkle/hashers"
)

// Metadata is the small named-slot record tracked per tree.
type Metadata struct {
	NumLeaves int64
	MaxLeaves int64
}

// CacheKey addresses one entry of the node-hash cache. The two tree kinds
// use disjoint key shapes so they can share one logical cache space:
//   - IMT: Level set, Index == -1, meaning "the whole level ℓ sequence".
//   - SMT: Level and Index both set, meaning "the single node at (ℓ, i)".
type CacheKey struct {
	Level int
	Index int64 // -1 for an IMT whole-level key
}

// PathUpdate is one (level, index, hash) write produced while walking an SMT
// insertion path from leaf to root.
type PathUpdate struct {
	Level int
	Index uint64
	Hash  hashers.Hash
}

// NodeStore is the durable, transactional storage contract used by both
// tree engines. Every mutating method commits a single write transaction;
// every read method runs against a consistent read-only snapshot.
type NodeStore interface {
	// Leaves (IMT).
	StoreLeaf(ctx context.Context, index uint64, leaf []byte) error
	GetLeaf(ctx context.Context, index uint64) ([]byte, bool, error)
	GetAllLeaves(ctx context.Context) ([][]byte, error)
	StoreLeavesBatch(ctx context.Context, leaves [][]byte) error
	AppendLeaves(ctx context.Context, startIndex uint64, leaves [][]byte) error

	// Cache (IMT whole-level sequences). Entries are raw, variable-length
	// bytes: level 0 holds unhashed leaf values, every level above holds
	// 32-byte HashPair digests.
	StoreCacheLevel(ctx context.Context, level int, values [][]byte) error
	GetCacheLevel(ctx context.Context, level int) ([][]byte, bool, error)
	GetAllCacheLevels(ctx context.Context) ([][][]byte, error)
	StoreCacheBatch(ctx context.Context, levels [][][]byte) error
	ClearCache(ctx context.Context) error

	// Cache (SMT single nodes), and the SMT's one-transaction path write.
	GetNode(ctx context.Context, level int, index uint64) (hashers.Hash, bool, error)
	StorePathBatch(ctx context.Context, updates []PathUpdate) error

	// Metadata. Root is raw bytes rather than a fixed hash: an incremental
	// tree's root is the raw leaf itself when there's only one leaf.
	StoreMetadata(ctx context.Context, md Metadata) error
	GetMetadata(ctx context.Context) (Metadata, bool, error)
	StoreRoot(ctx context.Context, root []byte) error
	GetRoot(ctx context.Context) ([]byte, bool, error)

	// Utility.
	ClearAll(ctx context.Context) error
	Sync(ctx context.Context) error
	Close() error
}
