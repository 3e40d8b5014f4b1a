package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hakim/censysmatch/internal/models"
	"go.etcd.io/bbolt"
)

// SaveRun persists a run record and indexes it under its job name
func (s *Store) SaveRun(_ context.Context, meta *models.RunMeta) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		// Marshal run metadata to JSON
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}

		// Store in runs bucket
		runs := tx.Bucket([]byte(CollRuns))
		if err := runs.Put([]byte(meta.ID), data); err != nil {
			return err
		}

		// Update run index (job name -> []run id mapping)
		index := tx.Bucket([]byte(bucketRunIndex))
		jobKey := []byte(meta.JobName)

		var runIDs []string
		if existing := index.Get(jobKey); existing != nil {
			if err := json.Unmarshal(existing, &runIDs); err != nil {
				return err
			}
		}

		// Re-saving a run only rewrites its record
		for _, id := range runIDs {
			if id == meta.ID {
				return nil
			}
		}
		runIDs = append(runIDs, meta.ID)

		// Save updated index
		indexData, err := json.Marshal(runIDs)
		if err != nil {
			return err
		}
		return index.Put(jobKey, indexData)
	})
}

// GetRun retrieves a run record by ID
func (s *Store) GetRun(_ context.Context, id string) (*models.RunMeta, error) {
	var meta models.RunMeta
	found, err := s.getJSON(CollRuns, []byte(id), &meta)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("run %q: %w", id, ErrNotFound)
	}
	return &meta, nil
}

// ListRuns retrieves all runs of a job, newest first
func (s *Store) ListRuns(_ context.Context, jobName string) ([]*models.RunMeta, error) {
	var runs []*models.RunMeta

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketRunIndex)).Get([]byte(jobName))
		if data == nil {
			return nil
		}

		var runIDs []string
		if err := json.Unmarshal(data, &runIDs); err != nil {
			return err
		}

		bucket := tx.Bucket([]byte(CollRuns))
		for _, id := range runIDs {
			runData := bucket.Get([]byte(id))
			if runData == nil {
				continue
			}
			var meta models.RunMeta
			if err := json.Unmarshal(runData, &meta); err != nil {
				return err
			}
			runs = append(runs, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	return runs, nil
}
