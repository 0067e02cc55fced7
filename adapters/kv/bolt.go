package kv

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/Ravi16329/English-Teacher/domain/repositories"
)

var bucketName = []byte("englishteacher")

// BoltStore implements the key-value capability over a local bbolt file.
// All operations are synchronous.
type BoltStore struct {
	db     *bolt.DB
	logger *zap.Logger
}

var _ repositories.KeyValue = (*BoltStore)(nil)

// NewBoltStore opens (or creates) the database file and its bucket
func NewBoltStore(path string, logger *zap.Logger) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open key-value store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db, logger: logger}, nil
}

// Get returns the stored value, or false when absent or unreadable
func (s *BoltStore) Get(key string) (string, bool) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketName).Get([]byte(key)); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Key-value read failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	if value == nil {
		return "", false
	}
	return string(value), true
}

// Set stores the value
func (s *BoltStore) Set(key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

// Delete removes the key; deleting an absent key is not an error
func (s *BoltStore) Delete(key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying database
func (s *BoltStore) Close() error {
	return s.db.Close()
}
