package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "response:"

// BadgerStore is a persistent cache backend on BadgerDB. Expiry uses
// Badger's native per-entry TTL, so expired entries vanish without any
// sweep logic of our own.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a Badger-backed cache at path
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(expandPath(path)).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Get implements Store
func (s *BadgerStore) Get(_ context.Context, key string) (string, bool, error) {
	var text string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			text = string(val)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

// Put implements Store
func (s *BadgerStore) Put(_ context.Context, key, text string, ttl time.Duration) error {
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(badgerKeyPrefix+key), []byte(text)).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
}

// Close closes the underlying BadgerDB instance
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
