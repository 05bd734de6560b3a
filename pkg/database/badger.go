package database

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// InMemory selects a badger store without a data directory
const InMemory = ":memory:"

type BadgerDB struct {
	DB *badger.DB
}

// NewBadgerDB opens the embedded key-value store at dir
func NewBadgerDB(dir string) (*BadgerDB, error) {
	var opts badger.Options
	if dir == InMemory || dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	return &BadgerDB{DB: db}, nil
}

// Close flushes and closes the store
func (db *BadgerDB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}

// Health reports whether the store is still open
func (db *BadgerDB) Health() error {
	if db.DB == nil || db.DB.IsClosed() {
		return fmt.Errorf("badger store is closed")
	}
	return nil
}
