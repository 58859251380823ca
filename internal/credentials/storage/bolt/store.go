// Package bolt provides a BoltDB-backed credential storage file.
package bolt

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"meridian/internal/credentials/storage"
	"meridian/internal/sentinel"
)

const credentialsBucket = "credentials"

// Store persists credential keys in a single bucket. Every Write is one
// bbolt update transaction, so a batch lands completely or not at all.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the store at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open credential db: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureBucket(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.db == nil {
		return "", sentinel.ErrClosed
	}

	var value string
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(credentialsBucket))
		if bucket == nil {
			return fmt.Errorf("credentials bucket is missing")
		}
		payload := bucket.Get([]byte(key))
		if payload == nil {
			return sentinel.ErrNotFound
		}
		value = string(payload)
		return nil
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *Store) Write(ctx context.Context, batch storage.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return sentinel.ErrClosed
	}
	if batch.Empty() {
		return nil
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(credentialsBucket))
		if bucket == nil {
			return fmt.Errorf("credentials bucket is missing")
		}
		for _, k := range batch.Delete {
			if err := bucket.Delete([]byte(k)); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}
		for k, v := range batch.Put {
			if err := bucket.Put([]byte(k), []byte(v)); err != nil {
				return fmt.Errorf("put %s: %w", k, err)
			}
		}
		return nil
	})
}

func (s *Store) ensureBucket() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(credentialsBucket)); err != nil {
			return fmt.Errorf("create credentials bucket: %w", err)
		}
		return nil
	})
}

var _ storage.Storage = (*Store)(nil)
