// Package pipeline runs one classification job end to end: guard, reference
// load, result reset, dataset scan and job completion.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hakim/censysmatch/internal/classify"
	"github.com/hakim/censysmatch/internal/enrich"
	"github.com/hakim/censysmatch/internal/guard"
	"github.com/hakim/censysmatch/internal/models"
	"github.com/hakim/censysmatch/internal/reference"
	"github.com/sirupsen/logrus"
)

// StoreInterface is the storage contract required by the orchestrator.
// Using an interface keeps the package testable without a real database.
type StoreInterface interface {
	reference.Source
	enrich.DNSInventory
	classify.ResultSink
	guard.JobStore
	ClearResults(ctx context.Context) error
	SaveRun(ctx context.Context, meta *models.RunMeta) error
	Close() error
}

// Opener connects to the backing store. It is called only after the process
// checks passed, since a running instance may hold an embedded store locked.
type Opener func(ctx context.Context) (StoreInterface, error)

// Status values reported in RunResult
const (
	StatusSkipped  = "skipped"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// RunConfig controls a single run
type RunConfig struct {
	// Guard holds the job name and the process names checked before the
	// run. The job name keys the shared job record and the run log. Required.
	Guard guard.Settings

	// PointerFile names the file whose first line is the dataset path. Required.
	PointerFile string

	// ProgressEvery is passed to the classifier
	ProgressEvery int64

	// Notify receives the completion summary. Nil disables it.
	Notify *NotifyConfig

	// Now is the clock used for createdAt and the job timestamp
	Now func() time.Time
}

// RunResult summarises what happened after Run returns
type RunResult struct {
	// RunID is empty when the run was skipped
	RunID string

	Dataset    string
	Status     string
	SkipReason string
	Stats      models.RunStats
	Elapsed    time.Duration
}

// Run executes one classification job.
//
// The process preconditions are checked first, then the store is opened
// and the job status is checked. A precondition that is not met, including
// a store held by another instance, ends the run with StatusSkipped and a
// nil error; nothing is written. Once the guard passes, a run record is kept
// in the store. Any failure after that marks the run failed and returns the
// error, and the job is left in its previous state so a later run retries.
// Dataset and pointer file failures are returned as *classify.FileError.
//
// Stored results are cleared only after the dataset has been opened: a
// file-level failure must leave the previous state for a future run, and
// clearing first would leave an empty result set behind a job that never
// completed.
func Run(ctx context.Context, cfg RunConfig, procs guard.ProcessChecker, open Opener, log logrus.FieldLogger) (*RunResult, error) {
	if cfg.Guard.JobName == "" {
		return nil, fmt.Errorf("pipeline: Guard.JobName is required")
	}
	if cfg.PointerFile == "" {
		return nil, fmt.Errorf("pipeline: PointerFile is required")
	}
	if procs == nil || open == nil {
		return nil, fmt.Errorf("pipeline: process checker and opener must not be nil")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	result := &RunResult{}
	start := cfg.Now()
	g := guard.New(procs, cfg.Guard)

	// ── 1. Process preconditions (no store needed) ────────────────────────────
	if err := g.CheckProcesses(ctx); err != nil {
		return skipOrFail(result, err, log)
	}

	// ── 2. Open the store and check the job record ────────────────────────────
	store, err := open(ctx)
	if err != nil {
		return skipOrFail(result, guard.StoreBusy(err), log)
	}
	defer store.Close()

	if err := g.CheckJob(ctx, store); err != nil {
		return skipOrFail(result, err, log)
	}

	// ── 3. Record the run ─────────────────────────────────────────────────────
	meta := models.NewRun(cfg.Guard.JobName)
	meta.StartedAt = start
	result.RunID = meta.ID
	log = log.WithField("run_id", meta.ID)

	if err := store.SaveRun(ctx, meta); err != nil {
		return nil, fmt.Errorf("pipeline: saving initial run record: %w", err)
	}
	log.Info("Run started")

	fail := func(err error) (*RunResult, error) {
		meta.Error = err.Error()
		meta.Finish(models.RunFailed, cfg.Now())
		if saveErr := store.SaveRun(context.WithoutCancel(ctx), meta); saveErr != nil {
			log.WithError(saveErr).Warn("Could not record failed run")
		}
		result.Status = StatusFailed
		result.Stats = meta.Stats
		result.Elapsed = cfg.Now().Sub(start)
		return result, err
	}

	// ── 4. Reference data and dataset ─────────────────────────────────────────
	ref, err := reference.Load(ctx, store, log)
	if err != nil {
		return fail(err)
	}

	dataset, err := classify.ReadPointerFile(cfg.PointerFile)
	if err != nil {
		return fail(err)
	}
	meta.Dataset = dataset
	result.Dataset = dataset

	f, err := os.Open(dataset)
	if err != nil {
		return fail(&classify.FileError{Op: "open", Path: dataset, Err: err})
	}
	defer f.Close()

	// ── 5. Replace the result set ─────────────────────────────────────────────
	if err := store.ClearResults(ctx); err != nil {
		return fail(fmt.Errorf("clearing previous results: %w", err))
	}
	log.WithField("dataset", dataset).Info("Cleared previous results, scanning dataset")

	c := classify.New(ref, enrich.NewResolver(ref, store), store, log, classify.Config{
		ProgressEvery: cfg.ProgressEvery,
		Now:           cfg.Now,
	})

	stats, err := c.Scan(ctx, f, dataset)
	meta.Stats = stats
	if err != nil {
		return fail(err)
	}

	// ── 6. Complete the job, then the run record ──────────────────────────────
	if err := g.MarkComplete(ctx, store, cfg.Now()); err != nil {
		return fail(err)
	}

	meta.Finish(models.RunComplete, cfg.Now())
	if err := store.SaveRun(ctx, meta); err != nil {
		log.WithError(err).Warn("Could not record completed run")
	}

	result.Status = StatusComplete
	result.Stats = stats
	result.Elapsed = cfg.Now().Sub(start)

	log.WithFields(logrus.Fields{
		"lines":          stats.Lines,
		"parse_errors":   stats.ParseErrors,
		"matched":        stats.Matched,
		"persisted":      stats.Persisted,
		"persist_errors": stats.PersistErrors,
		"elapsed":        result.Elapsed.Round(time.Millisecond).String(),
	}).Info("Run complete")

	if err := cfg.Notify.SendCompletion(ctx, cfg.Guard.JobName, result); err != nil {
		log.WithError(err).Warn("Completion notification failed")
	}

	return result, nil
}

// skipOrFail turns a SkipError into a skipped result. Any other error means
// the preconditions could not be evaluated.
func skipOrFail(result *RunResult, err error, log logrus.FieldLogger) (*RunResult, error) {
	var skip *guard.SkipError
	if errors.As(err, &skip) {
		result.Status = StatusSkipped
		result.SkipReason = skip.Reason
		log.WithField("reason", skip.Reason).Info("Preconditions not met, nothing to do")
		return result, nil
	}
	return nil, fmt.Errorf("pipeline: checking preconditions: %w", err)
}
