// Package mysqlstore implements storage.NodeStore on top of
// github.com/go-sql-driver/mysql, the relational alternative backend. It
// mirrors the leaf/cache/metadata shape of storage.NodeStore as three
// tables rather than one flat keyspace, and commits every batch operation
// inside a single *sql.Tx so a crash mid-path-write never leaves a partial
// root visible.
package mysqlstore

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql"

	"github.com/commitree/commitree/apperr"
	"github.com/commitree/commitree/merkle/hashers"
	"github.com/commitree/commitree/storage"
)

// Schema matches SPEC_FULL.md §6.3: one table for ordered leaves, one for
// the two distinct cache key shapes (IMT whole-level vs SMT single-node),
// keyed by the (cache_kind, level, node_index) triple so both shapes share
// one table without collision, and one single-row metadata table.
const schema = `
CREATE TABLE IF NOT EXISTS leaves (
	leaf_index BIGINT UNSIGNED NOT NULL PRIMARY KEY,
	leaf_data  LONGBLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS cache_nodes (
	cache_kind  TINYINT UNSIGNED NOT NULL,
	level       INT NOT NULL,
	node_index  BIGINT UNSIGNED NOT NULL,
	node_hash   LONGBLOB NOT NULL,
	PRIMARY KEY (cache_kind, level, node_index)
);

CREATE TABLE IF NOT EXISTS tree_metadata (
	id          TINYINT UNSIGNED NOT NULL PRIMARY KEY DEFAULT 1,
	num_leaves  BIGINT NOT NULL,
	max_leaves  BIGINT NOT NULL,
	root_hash   LONGBLOB NULL
);
`

// cache_kind discriminants.
const (
	cacheKindSMTNode   = 1
	cacheKindIMTLevels = 2 // one row per (level, position) in an IMT level's hash sequence
)

// Store is a MySQL-backed storage.NodeStore.
type Store struct {
	db *sql.DB
}

// Open opens a MySQL database via dsn and ensures the schema exists.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageError, err, "open mysql db")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.StorageError, err, "ping mysql db")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.StorageError, err, "apply schema")
	}
	return &Store{db: db}, nil
}

func (s *Store) StoreLeaf(ctx context.Context, index uint64, leaf []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leaves (leaf_index, leaf_data) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE leaf_data = VALUES(leaf_data)`,
		index, leaf)
	return apperr.Wrap(apperr.StorageError, err, "store leaf")
}

func (s *Store) GetLeaf(ctx context.Context, index uint64) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT leaf_data FROM leaves WHERE leaf_index = ?`, index).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperr.Wrap(apperr.StorageError, err, "get leaf")
	}
	return data, true, nil
}

func (s *Store) GetAllLeaves(ctx context.Context) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT leaf_data FROM leaves ORDER BY leaf_index ASC`)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageError, err, "get all leaves")
	}
	defer rows.Close()
	var out [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, apperr.Wrap(apperr.StorageError, err, "scan leaf")
		}
		out = append(out, data)
	}
	return out, apperr.Wrap(apperr.StorageError, rows.Err(), "iterate leaves")
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.StorageError, err, "begin tx")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.StorageError, err, "commit tx")
	}
	return nil
}

func (s *Store) StoreLeavesBatch(ctx context.Context, leaves [][]byte) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for i, leaf := range leaves {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO leaves (leaf_index, leaf_data) VALUES (?, ?)
				 ON DUPLICATE KEY UPDATE leaf_data = VALUES(leaf_data)`,
				uint64(i), leaf); err != nil {
				return apperr.Wrap(apperr.StorageError, err, "store leaves batch")
			}
		}
		return nil
	})
}

func (s *Store) AppendLeaves(ctx context.Context, startIndex uint64, leaves [][]byte) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for i, leaf := range leaves {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO leaves (leaf_index, leaf_data) VALUES (?, ?)
				 ON DUPLICATE KEY UPDATE leaf_data = VALUES(leaf_data)`,
				startIndex+uint64(i), leaf); err != nil {
				return apperr.Wrap(apperr.StorageError, err, "append leaves")
			}
		}
		return nil
	})
}

func (s *Store) StoreCacheLevel(ctx context.Context, level int, values [][]byte) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM cache_nodes WHERE cache_kind = ? AND level = ?`,
			cacheKindIMTLevels, level); err != nil {
			return apperr.Wrap(apperr.StorageError, err, "clear cache level")
		}
		for i, v := range values {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO cache_nodes (cache_kind, level, node_index, node_hash) VALUES (?, ?, ?, ?)`,
				cacheKindIMTLevels, level, i, v); err != nil {
				return apperr.Wrap(apperr.StorageError, err, "store cache level")
			}
		}
		return nil
	})
}

func (s *Store) GetCacheLevel(ctx context.Context, level int) ([][]byte, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT node_hash FROM cache_nodes WHERE cache_kind = ? AND level = ? ORDER BY node_index ASC`,
		cacheKindIMTLevels, level)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.StorageError, err, "get cache level")
	}
	defer rows.Close()
	var out [][]byte
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, false, apperr.Wrap(apperr.StorageError, err, "scan cache level")
		}
		out = append(out, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, false, apperr.Wrap(apperr.StorageError, err, "iterate cache level")
	}
	return out, len(out) > 0, nil
}

func (s *Store) GetAllCacheLevels(ctx context.Context) ([][][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT level, node_index, node_hash FROM cache_nodes WHERE cache_kind = ? ORDER BY level ASC, node_index ASC`,
		cacheKindIMTLevels)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageError, err, "get all cache levels")
	}
	defer rows.Close()
	var out [][][]byte
	for rows.Next() {
		var level int
		var index int
		var raw []byte
		if err := rows.Scan(&level, &index, &raw); err != nil {
			return nil, apperr.Wrap(apperr.StorageError, err, "scan cache levels")
		}
		for level >= len(out) {
			out = append(out, nil)
		}
		for index >= len(out[level]) {
			out[level] = append(out[level], nil)
		}
		out[level][index] = raw
	}
	return out, apperr.Wrap(apperr.StorageError, rows.Err(), "iterate cache levels")
}

func (s *Store) StoreCacheBatch(ctx context.Context, levels [][][]byte) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM cache_nodes WHERE cache_kind = ?`, cacheKindIMTLevels); err != nil {
			return apperr.Wrap(apperr.StorageError, err, "clear cache batch")
		}
		for level, values := range levels {
			for i, v := range values {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO cache_nodes (cache_kind, level, node_index, node_hash) VALUES (?, ?, ?, ?)`,
					cacheKindIMTLevels, level, i, v); err != nil {
					return apperr.Wrap(apperr.StorageError, err, "store cache batch")
				}
			}
		}
		return nil
	})
}

func (s *Store) ClearCache(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_nodes WHERE cache_kind IN (?, ?)`, cacheKindIMTLevels, cacheKindSMTNode)
	return apperr.Wrap(apperr.StorageError, err, "clear cache")
}

func (s *Store) GetNode(ctx context.Context, level int, index uint64) (hashers.Hash, bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT node_hash FROM cache_nodes WHERE cache_kind = ? AND level = ? AND node_index = ?`,
		cacheKindSMTNode, level, index).Scan(&raw)
	if err == sql.ErrNoRows {
		return hashers.Hash{}, false, nil
	}
	if err != nil {
		return hashers.Hash{}, false, apperr.Wrap(apperr.StorageError, err, "get node")
	}
	var h hashers.Hash
	copy(h[:], raw)
	return h, true, nil
}

func (s *Store) StorePathBatch(ctx context.Context, updates []storage.PathUpdate) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, u := range updates {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO cache_nodes (cache_kind, level, node_index, node_hash) VALUES (?, ?, ?, ?)
				 ON DUPLICATE KEY UPDATE node_hash = VALUES(node_hash)`,
				cacheKindSMTNode, u.Level, u.Index, u.Hash[:]); err != nil {
				return apperr.Wrap(apperr.StorageError, err, "store path batch")
			}
		}
		return nil
	})
}

func (s *Store) StoreMetadata(ctx context.Context, md storage.Metadata) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tree_metadata (id, num_leaves, max_leaves) VALUES (1, ?, ?)
		 ON DUPLICATE KEY UPDATE num_leaves = VALUES(num_leaves), max_leaves = VALUES(max_leaves)`,
		md.NumLeaves, md.MaxLeaves)
	return apperr.Wrap(apperr.StorageError, err, "store metadata")
}

func (s *Store) GetMetadata(ctx context.Context) (storage.Metadata, bool, error) {
	var md storage.Metadata
	err := s.db.QueryRowContext(ctx,
		`SELECT num_leaves, max_leaves FROM tree_metadata WHERE id = 1`).
		Scan(&md.NumLeaves, &md.MaxLeaves)
	if err == sql.ErrNoRows {
		return storage.Metadata{}, false, nil
	}
	if err != nil {
		return storage.Metadata{}, false, apperr.Wrap(apperr.StorageError, err, "get metadata")
	}
	return md, true, nil
}

func (s *Store) StoreRoot(ctx context.Context, root []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tree_metadata (id, num_leaves, max_leaves, root_hash) VALUES (1, 0, 0, ?)
		 ON DUPLICATE KEY UPDATE root_hash = VALUES(root_hash)`,
		root)
	return apperr.Wrap(apperr.StorageError, err, "store root")
}

func (s *Store) GetRoot(ctx context.Context) ([]byte, bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT root_hash FROM tree_metadata WHERE id = 1`).Scan(&raw)
	if err == sql.ErrNoRows || (err == nil && raw == nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperr.Wrap(apperr.StorageError, err, "get root")
	}
	return raw, true, nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM leaves`,
			`DELETE FROM cache_nodes`,
			`DELETE FROM tree_metadata`,
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return apperr.Wrap(apperr.StorageError, err, "clear all")
			}
		}
		return nil
	})
}

// Sync is a no-op: every mutation already commits inside its own
// transaction, and MySQL's InnoDB engine fsyncs on commit by default.
func (s *Store) Sync(_ context.Context) error { return nil }

func (s *Store) Close() error {
	return apperr.Wrap(apperr.StorageError, s.db.Close(), "close mysql db")
}

var _ storage.NodeStore = (*Store)(nil)
