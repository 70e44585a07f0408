// Package sqlite provides an embedded persistent store that snapshots the
// in-memory state to a single SQLite table as JSON blobs after every
// successful transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"kineticore/internal/infra/persistence/memory"
	"kineticore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Store persists the in-memory state to SQLite.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore constructs a snapshotting SQLite-backed persistent store and
// hydrates it from any existing snapshot at path.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = "kineticore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	mem := memory.NewStore(engine)
	s := &Store{Store: mem, db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

var sqliteBuckets = []string{"observations", "rate_groups", "ea_groups", "order_groups", "pooled_samples", "sim_params"}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snapshot := memory.Snapshot{}
	loaded := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		loaded = true
		switch bucket {
		case "observations":
			if err := json.Unmarshal(payload, &snapshot.Observations); err != nil {
				return fmt.Errorf("decode observations: %w", err)
			}
		case "rate_groups":
			if err := json.Unmarshal(payload, &snapshot.RateGroups); err != nil {
				return fmt.Errorf("decode rate groups: %w", err)
			}
		case "ea_groups":
			if err := json.Unmarshal(payload, &snapshot.EaGroups); err != nil {
				return fmt.Errorf("decode activation-energy groups: %w", err)
			}
		case "order_groups":
			if err := json.Unmarshal(payload, &snapshot.OrderGroups); err != nil {
				return fmt.Errorf("decode reaction-order groups: %w", err)
			}
		case "pooled_samples":
			if err := json.Unmarshal(payload, &snapshot.Pools); err != nil {
				return fmt.Errorf("decode pooled samples: %w", err)
			}
		case "sim_params":
			if err := json.Unmarshal(payload, &snapshot.SimParams); err != nil {
				return fmt.Errorf("decode sim params: %w", err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if !loaded {
		return nil
	}
	s.ImportState(snapshot)
	return nil
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range sqliteBuckets {
		var data []byte
		switch bucket {
		case "observations":
			data, err = json.Marshal(snapshot.Observations)
		case "rate_groups":
			data, err = json.Marshal(snapshot.RateGroups)
		case "ea_groups":
			data, err = json.Marshal(snapshot.EaGroups)
		case "order_groups":
			data, err = json.Marshal(snapshot.OrderGroups)
		case "pooled_samples":
			data, err = json.Marshal(snapshot.Pools)
		case "sim_params":
			data, err = json.Marshal(snapshot.SimParams)
		}
		if err != nil {
			retErr = err
			return retErr
		}
		if _, err = tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

// RunInTransaction applies fn within a transaction, then snapshots state to
// SQLite if successful.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if pErr := s.persist(); pErr != nil {
		return res, pErr
	}
	return res, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
