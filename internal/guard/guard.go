// Package guard decides whether a classification run may start and records
// the job completion state afterwards.
//
// The checks come in two phases. The process phase needs nothing but the
// host process table, so it runs before the store is opened; an embedded
// store is locked by a running instance for the whole scan. The job phase
// reads the shared job record from the store.
package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hakim/censysmatch/internal/models"
	"github.com/hakim/censysmatch/internal/storage"
)

// ErrSkipped is matched by every SkipError
var ErrSkipped = errors.New("run skipped")

// SkipError is returned when a precondition is not met. It is not a failure:
// the run ends quietly and the job state is left untouched.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string { return "skipped: " + e.Reason }

func (e *SkipError) Is(target error) bool { return target == ErrSkipped }

// StoreBusy converts a store that could not be opened because another
// process holds it into a SkipError. Other errors are returned unchanged.
func StoreBusy(err error) error {
	if errors.Is(err, storage.ErrStoreBusy) {
		return &SkipError{Reason: "store is held by another instance"}
	}
	return err
}

// JobStore reads and writes the shared job-status record. GetJob returns an
// error matching storage.ErrNotFound when the job has no record.
type JobStore interface {
	GetJob(ctx context.Context, name string) (*models.JobRecord, error)
	SetJobStatus(ctx context.Context, name string, status models.JobStatus, at time.Time) error
}

// Settings names the job and the processes the guard looks for
type Settings struct {
	JobName string

	// DownloadProcess is matched as a substring of every command line
	DownloadProcess string

	// SelfProcess is the executable name of this classifier
	SelfProcess string
}

// Condition is the outcome of a single precondition
type Condition struct {
	Name   string
	OK     bool
	Detail string
	Err    error
}

// Guard enforces the run preconditions
type Guard struct {
	procs    ProcessChecker
	settings Settings
}

// New creates a guard
func New(procs ProcessChecker, settings Settings) *Guard {
	return &Guard{procs: procs, settings: settings}
}

// Settings returns the guard configuration
func (g *Guard) Settings() Settings { return g.settings }

// CheckProcesses verifies that the download stage is not running and that
// no other classifier instance is running. The first unmet condition is
// returned as a *SkipError. Any other error means the process table could
// not be read.
func (g *Guard) CheckProcesses(ctx context.Context) error {
	return firstUnmet(g.InspectProcesses(ctx))
}

// CheckJob verifies that the job record is DOWNLOADED
func (g *Guard) CheckJob(ctx context.Context, jobs JobStore) error {
	return firstUnmet([]Condition{g.InspectJob(ctx, jobs)})
}

// Check runs both phases in order
func (g *Guard) Check(ctx context.Context, jobs JobStore) error {
	if err := g.CheckProcesses(ctx); err != nil {
		return err
	}
	return g.CheckJob(ctx, jobs)
}

func firstUnmet(conds []Condition) error {
	for _, cond := range conds {
		if cond.Err != nil {
			return fmt.Errorf("checking %s: %w", cond.Name, cond.Err)
		}
		if !cond.OK {
			return &SkipError{Reason: cond.Detail}
		}
	}
	return nil
}

// InspectProcesses evaluates both process conditions without stopping at the
// first failure
func (g *Guard) InspectProcesses(ctx context.Context) []Condition {
	return []Condition{g.downloadIdle(ctx), g.singleInstance(ctx)}
}

func (g *Guard) downloadIdle(ctx context.Context) Condition {
	cond := Condition{Name: "download process"}
	running, err := g.procs.IsProcessRunning(ctx, g.settings.DownloadProcess)
	switch {
	case err != nil:
		cond.Err = err
	case running:
		cond.Detail = fmt.Sprintf("%s is still running", g.settings.DownloadProcess)
	default:
		cond.OK = true
		cond.Detail = "idle"
	}
	return cond
}

func (g *Guard) singleInstance(ctx context.Context) Condition {
	cond := Condition{Name: "other instance"}
	running, err := g.procs.IsInstanceRunning(ctx, g.settings.SelfProcess)
	switch {
	case err != nil:
		cond.Err = err
	case running:
		cond.Detail = "another classifier instance is running"
	default:
		cond.OK = true
		cond.Detail = "none"
	}
	return cond
}

// InspectJob evaluates the job status condition
func (g *Guard) InspectJob(ctx context.Context, jobs JobStore) Condition {
	cond := Condition{Name: "job status"}
	job, err := jobs.GetJob(ctx, g.settings.JobName)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		cond.Detail = fmt.Sprintf("no job record for %q", g.settings.JobName)
	case err != nil:
		cond.Err = err
	case job.Status != models.JobDownloaded:
		cond.Detail = fmt.Sprintf("job %q is %s, waiting for %s", job.Name, job.Status, models.JobDownloaded)
	default:
		cond.OK = true
		cond.Detail = string(job.Status)
	}
	return cond
}

// MarkComplete records that the job finished at the given time
func (g *Guard) MarkComplete(ctx context.Context, jobs JobStore, at time.Time) error {
	if err := jobs.SetJobStatus(ctx, g.settings.JobName, models.JobComplete, at.UTC()); err != nil {
		return fmt.Errorf("marking job %q complete: %w", g.settings.JobName, err)
	}
	return nil
}
