package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	apperrors "github.com/Aman-CERP/dirpoll/internal/errors"
	"github.com/Aman-CERP/dirpoll/internal/poller"
)

var bucketSnapshots = []byte("snapshots")

// BoltStore keeps one JSON-encoded baseline per directory key in a bbolt
// bucket. Writes are transactional.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens or creates the database at path. It fails after one second
// if another process holds the file.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		code := apperrors.ErrCodeStateWrite
		if errors.Is(err, bolt.ErrTimeout) {
			code = apperrors.ErrCodeStateLocked
		}
		return nil, apperrors.New(code, "failed to open state database", err).
			WithDetail("path", path)
	}
	return &BoltStore{db: db}, nil
}

// HasData reports whether any directory was stored.
func (s *BoltStore) HasData(_ context.Context) (bool, error) {
	var has bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSnapshots)
		if b == nil {
			return nil
		}
		k, _ := b.Cursor().First()
		has = k != nil
		return nil
	})
	return has, err
}

// Read returns the stored baselines.
func (s *BoltStore) Read(_ context.Context) (map[string][]poller.CachedEntry, error) {
	state := make(map[string][]poller.CachedEntry)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSnapshots)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var entries []poller.CachedEntry
			if err := json.Unmarshal(v, &entries); err != nil {
				return apperrors.New(apperrors.ErrCodeStateCorrupt,
					fmt.Sprintf("cannot decode state of %s", k), err)
			}
			if entries == nil {
				entries = []poller.CachedEntry{}
			}
			state[string(k)] = entries
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Write replaces the stored baselines.
func (s *BoltStore) Write(_ context.Context, state map[string][]poller.CachedEntry) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketSnapshots) != nil {
			if err := tx.DeleteBucket(bucketSnapshots); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(bucketSnapshots)
		if err != nil {
			return err
		}
		for key, entries := range state {
			if entries == nil {
				entries = []poller.CachedEntry{}
			}
			data, err := json.Marshal(entries)
			if err != nil {
				return fmt.Errorf("marshal %s: %w", key, err)
			}
			if err := b.Put([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.New(apperrors.ErrCodeStateWrite, "failed to write state", err)
	}
	return nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
