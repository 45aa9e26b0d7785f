// Package store provides bbolt-based persistence for lexmerge.
// It keeps entries, merge/split operation records and the sense transfer
// ledger in a single embedded bbolt database file, so one operation's
// writes can share a transaction.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names used by the store.
var (
	bucketEntries        = []byte("entries")
	bucketOperations     = []byte("operations")
	bucketTransfers      = []byte("transfers")
	bucketTransfersSense = []byte("transfers_by_sense") // "<sense_id>\x00<transfer_id>" -> nil
	bucketTransfersEntry = []byte("transfers_by_entry") // "<entry_id>\x00<transfer_id>" -> nil
	bucketKV             = []byte("kv")
)

var allBuckets = [][]byte{
	bucketEntries,
	bucketOperations,
	bucketTransfers,
	bucketTransfersSense,
	bucketTransfersEntry,
	bucketKV,
}

const (
	keySchemaVersion = "schema_version"
	indexSeparator   = byte(0)
)

const currentSchemaVersion = 1

// Sentinel errors for expected conditions.
var (
	ErrOperationNotFound = errors.New("operation not found")
	ErrOperationExists   = errors.New("operation already recorded")
	ErrStatusFinal       = errors.New("operation status is already final")
	ErrTransferExists    = errors.New("transfer already recorded")
)

// Store represents the bbolt database store.
type Store struct {
	db *bolt.DB
}

// New opens or creates a bbolt database at the given path.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Initialize creates all required buckets and stamps the schema version.
func (s *Store) Initialize() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		kv := tx.Bucket(bucketKV)
		if kv.Get([]byte(keySchemaVersion)) == nil {
			return kv.Put([]byte(keySchemaVersion), []byte(strconv.Itoa(currentSchemaVersion)))
		}
		return nil
	})
}

// RunMigrations checks the on-disk schema version. Buckets added after
// the first release are created on the fly.
func (s *Store) RunMigrations() error {
	raw, err := s.GetValue(keySchemaVersion)
	if err != nil {
		return err
	}
	version := 0
	if raw != "" {
		if version, err = strconv.Atoi(raw); err != nil {
			return fmt.Errorf("invalid schema version %q: %w", raw, err)
		}
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema v%d is newer than supported v%d", version, currentSchemaVersion)
	}
	if version < currentSchemaVersion {
		if err := s.Initialize(); err != nil {
			return err
		}
		return s.SetValue(keySchemaVersion, strconv.Itoa(currentSchemaVersion))
	}
	return nil
}

// GetValue gets a value from the key-value bucket.
func (s *Store) GetValue(key string) (string, error) {
	var val string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKV)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(key))
		if v != nil {
			val = string(v)
		}
		return nil
	})
	return val, err
}

// SetValue sets a value in the key-value bucket.
func (s *Store) SetValue(key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKV)
		if b == nil {
			return fmt.Errorf("kv bucket not found")
		}
		return b.Put([]byte(key), []byte(value))
	})
}

// indexKey builds a secondary-index key.
func indexKey(prefix, id string) []byte {
	key := make([]byte, 0, len(prefix)+1+len(id))
	key = append(key, prefix...)
	key = append(key, indexSeparator)
	return append(key, id...)
}

// indexPrefix is the seek prefix for every index key under prefix.
func indexPrefix(prefix string) []byte {
	return append([]byte(prefix), indexSeparator)
}
