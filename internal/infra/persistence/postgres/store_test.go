package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"kineticore/pkg/domain"
	"kineticore/pkg/quantity"
)

// fakeBackend stores bucket payloads in memory and serves them through the
// database/sql driver interfaces, standing in for a real Postgres server.
type fakeBackend struct {
	mu      sync.Mutex
	buckets map[string][]byte
	pingErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{buckets: map[string][]byte{}}
}

func (b *fakeBackend) connector() driver.Connector { return fakeConnector{backend: b} }

type fakeConnector struct {
	backend *fakeBackend
}

func (c fakeConnector) Connect(context.Context) (driver.Conn, error) {
	return &fakeConn{backend: c.backend}, nil
}

func (c fakeConnector) Driver() driver.Driver { return fakeDriver{} }

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("use connector")
}

type fakeConn struct {
	backend *fakeBackend
}

func (c *fakeConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Begin() (driver.Tx, error) { return fakeTx{}, nil }

func (c *fakeConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return fakeTx{}, nil
}

func (c *fakeConn) Ping(context.Context) error {
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	return c.backend.pingErr
}

func (c *fakeConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	switch {
	case strings.HasPrefix(query, "CREATE TABLE"):
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(query, "INSERT INTO state"):
		bucket, ok := args[0].Value.(string)
		if !ok {
			return nil, errors.New("bucket must be a string")
		}
		payload, ok := args[1].Value.([]byte)
		if !ok {
			return nil, errors.New("payload must be bytes")
		}
		c.backend.buckets[bucket] = append([]byte(nil), payload...)
		return driver.RowsAffected(1), nil
	default:
		return nil, errors.New("unexpected exec: " + query)
	}
}

func (c *fakeConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if !strings.HasPrefix(query, "SELECT bucket, payload FROM state") {
		return nil, errors.New("unexpected query: " + query)
	}
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	rows := &fakeRows{}
	for bucket, payload := range c.backend.buckets {
		rows.rows = append(rows.rows, [2]any{bucket, append([]byte(nil), payload...)})
	}
	return rows, nil
}

type fakeTx struct{}

func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

type fakeRows struct {
	rows [][2]any
	pos  int
}

func (r *fakeRows) Columns() []string { return []string{"bucket", "payload"} }

func (r *fakeRows) Close() error { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	dest[0] = r.rows[r.pos][0]
	dest[1] = r.rows[r.pos][1]
	r.pos++
	return nil
}

func withFakeBackend(t *testing.T, backend *fakeBackend) {
	t.Helper()
	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		if driverName != defaultDriver {
			t.Fatalf("driver = %q, want %q", driverName, defaultDriver)
		}
		return sql.OpenDB(backend.connector()), nil
	})
	t.Cleanup(restore)
}

func TestStorePersistsAndRehydrates(t *testing.T) {
	backend := newFakeBackend()
	withFakeBackend(t, backend)

	store, err := NewStore("", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		obs := domain.Observation{
			Dataset:  "flow-a",
			IsActive: true,
			Raw: map[string]quantity.Quantity{
				"T_reactor": quantity.New(523.15, "K"),
			},
		}
		_, err := tx.CreateObservation(obs)
		return err
	}); err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	backend.mu.Lock()
	persisted := len(backend.buckets)
	backend.mu.Unlock()
	if persisted != len(postgresBuckets) {
		t.Fatalf("persisted buckets = %d, want %d", persisted, len(postgresBuckets))
	}

	// a second store against the same backend hydrates the snapshot
	rehydrated, err := NewStore("", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	obs := rehydrated.ListObservations()
	if len(obs) != 1 || obs[0].Dataset != "flow-a" {
		t.Fatalf("observations not hydrated: %+v", obs)
	}
}

func TestStorePingFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.pingErr = errors.New("connection refused")
	withFakeBackend(t, backend)

	if _, err := NewStore("", nil); err == nil {
		t.Fatal("expected ping failure")
	}
}
