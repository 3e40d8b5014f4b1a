package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hakim/censysmatch/internal/models"
	"go.etcd.io/bbolt"
)

// ClearResults removes every stored result
func (s *Store) ClearResults(_ context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(CollResults)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket([]byte(CollResults))
		return err
	})
}

// UpsertResult stores res under its ip, replacing any previous record
func (s *Store) UpsertResult(_ context.Context, res *models.MatchResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding result %s: %w", res.IP, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(CollResults)).Put([]byte(res.IP), data)
	})
}

// ListResults returns every stored result ordered by ip key
func (s *Store) ListResults(_ context.Context) ([]*models.MatchResult, error) {
	var results []*models.MatchResult

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(CollResults)).ForEach(func(k, v []byte) error {
			var res models.MatchResult
			if err := json.Unmarshal(v, &res); err != nil {
				return fmt.Errorf("decoding result %s: %w", k, err)
			}
			results = append(results, &res)
			return nil
		})
	})

	return results, err
}

// CountResults returns the number of stored results
func (s *Store) CountResults(_ context.Context) (int64, error) {
	var n int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = int64(tx.Bucket([]byte(CollResults)).Stats().KeyN)
		return nil
	})
	return n, err
}

// GetJob returns the job record for name
func (s *Store) GetJob(_ context.Context, name string) (*models.JobRecord, error) {
	var job models.JobRecord
	found, err := s.getJSON(CollJobs, []byte(name), &job)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("job %q: %w", name, ErrNotFound)
	}
	return &job, nil
}

// SetJobStatus updates the status and timestamp of an existing job record
func (s *Store) SetJobStatus(_ context.Context, name string, status models.JobStatus, at time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(CollJobs))

		data := b.Get([]byte(name))
		if data == nil {
			return fmt.Errorf("job %q: %w", name, ErrNotFound)
		}

		var job models.JobRecord
		if err := json.Unmarshal(data, &job); err != nil {
			return err
		}

		job.Status = status
		job.Updated = at
		return putJSON(b, []byte(name), &job)
	})
}

// PutJob creates or replaces a job record
func (s *Store) PutJob(job *models.JobRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket([]byte(CollJobs)), []byte(job.Name), job)
	})
}
