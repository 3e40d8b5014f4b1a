package storage

import (
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const bucketRunIndex = "run_index"

var buckets = []string{
	CollZones,
	CollConfig,
	CollAWS,
	CollAzure,
	CollIPZones,
	CollDNS,
	CollJobs,
	CollResults,
	CollRuns,
	bucketRunIndex,
}

// Store wraps a bbolt database holding every collection as a bucket
type Store struct {
	db *bbolt.DB
}

// NewStore opens a bbolt database at the given path and initializes required buckets
func NewStore(path string) (*Store, error) {
	if err := EnsureParentDir(path); err != nil {
		return nil, err
	}

	// A running classifier keeps the file locked for the whole scan
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, fmt.Errorf("opening %s: %w", path, ErrStoreBusy)
		}
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the bbolt database
func (s *Store) Close() error {
	return s.db.Close()
}
