package storage

import (
	"database/sql"
	"fmt"
)

// Drivers accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Backend bundles the repositories of one storage driver.
type Backend struct {
	Saves  SaveRepository
	Events EventRepository
	db     *sql.DB
}

// Open builds the repositories for a driver. dbPath is only used by sqlite.
func Open(driver, dbPath string) (*Backend, error) {
	switch driver {
	case DriverSQLite:
		db, err := InitSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Saves:  NewSQLiteSaveRepository(db),
			Events: NewSQLiteEventRepository(db),
			db:     db,
		}, nil
	case DriverMemory:
		return &Backend{
			Saves:  NewMemorySaveRepository(),
			Events: NewMemoryEventRepository(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// SetEventLimit caps the in-memory ledger. Durable drivers keep everything.
func (b *Backend) SetEventLimit(n int) {
	if repo, ok := b.Events.(*MemoryEventRepository); ok {
		repo.SetLimit(n)
	}
}

// Close releases the database, if any.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
