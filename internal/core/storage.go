package core

import (
	"fmt"
	"os"

	"kineticore/internal/infra/persistence/memory"
	"kineticore/internal/infra/persistence/postgres"
	"kineticore/internal/infra/persistence/sqlite"
	"kineticore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
	RulesEngine     = domain.RulesEngine
	Result          = domain.Result
)

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	KINETICORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	KINETICORE_SQLITE_PATH: path to sqlite file (default ./kineticore.db)
//	KINETICORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(engine *RulesEngine) (PersistentStore, error) {
	driver := os.Getenv("KINETICORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		path := os.Getenv("KINETICORE_SQLITE_PATH")
		return sqlite.NewStore(path, engine)
	case StoragePostgres:
		dsn := os.Getenv("KINETICORE_POSTGRES_DSN")
		return postgres.NewStore(dsn, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
