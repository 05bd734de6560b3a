package database

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBadgerDB_InMemory(t *testing.T) {
	db, err := NewBadgerDB(InMemory)
	require.NoError(t, err)

	require.NoError(t, db.DB.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	}))
	assert.NoError(t, db.Health())

	require.NoError(t, db.Close())
	assert.Error(t, db.Health())
}

func TestNewBadgerDB_Directory(t *testing.T) {
	dir := t.TempDir()

	db, err := NewBadgerDB(dir)
	require.NoError(t, err)
	require.NoError(t, db.DB.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("k"), []byte("v"))
	}))
	require.NoError(t, db.Close())

	reopened, err := NewBadgerDB(dir)
	require.NoError(t, err)
	defer reopened.Close()

	err = reopened.DB.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("k"))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			assert.Equal(t, "v", string(val))
			return nil
		})
	})
	assert.NoError(t, err)
}
