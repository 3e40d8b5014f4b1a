package guard

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hakim/censysmatch/internal/models"
	"github.com/hakim/censysmatch/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcs struct {
	running  map[string]bool
	instance bool
	err      error
	asked    []string
}

func (f *fakeProcs) IsProcessRunning(_ context.Context, pattern string) (bool, error) {
	f.asked = append(f.asked, pattern)
	if f.err != nil {
		return false, f.err
	}
	return f.running[pattern], nil
}

func (f *fakeProcs) IsInstanceRunning(_ context.Context, name string) (bool, error) {
	f.asked = append(f.asked, name)
	if f.err != nil {
		return false, f.err
	}
	return f.instance, nil
}

type fakeJobs struct {
	jobs map[string]*models.JobRecord
	err  error
}

func (f *fakeJobs) GetJob(_ context.Context, name string) (*models.JobRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	job, ok := f.jobs[name]
	if !ok {
		return nil, fmt.Errorf("job %q: %w", name, storage.ErrNotFound)
	}
	return job, nil
}

func (f *fakeJobs) SetJobStatus(_ context.Context, name string, status models.JobStatus, at time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.jobs[name] = &models.JobRecord{Name: name, Status: status, Updated: at}
	return nil
}

var settings = Settings{
	JobName:         "censys",
	DownloadProcess: "get_censys_files",
	SelfProcess:     "censysmatch",
}

func downloadedJobs() *fakeJobs {
	return &fakeJobs{jobs: map[string]*models.JobRecord{
		"censys": {Name: "censys", Status: models.JobDownloaded},
	}}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		procs    *fakeProcs
		jobs     *fakeJobs
		wantSkip bool
		wantErr  bool
		reason   string
	}{
		{
			name:  "all conditions met",
			procs: &fakeProcs{},
			jobs:  downloadedJobs(),
		},
		{
			name:     "download still running",
			procs:    &fakeProcs{running: map[string]bool{"get_censys_files": true}},
			jobs:     downloadedJobs(),
			wantSkip: true,
			reason:   "get_censys_files is still running",
		},
		{
			name:     "other instance running",
			procs:    &fakeProcs{instance: true},
			jobs:     downloadedJobs(),
			wantSkip: true,
			reason:   "another classifier instance is running",
		},
		{
			name:  "job not downloaded",
			procs: &fakeProcs{},
			jobs: &fakeJobs{jobs: map[string]*models.JobRecord{
				"censys": {Name: "censys", Status: models.JobComplete},
			}},
			wantSkip: true,
		},
		{
			name:     "job record missing",
			procs:    &fakeProcs{},
			jobs:     &fakeJobs{jobs: map[string]*models.JobRecord{}},
			wantSkip: true,
			reason:   `no job record for "censys"`,
		},
		{
			name:    "process table unreadable",
			procs:   &fakeProcs{err: errors.New("permission denied")},
			jobs:    downloadedJobs(),
			wantErr: true,
		},
		{
			name:    "job store unreachable",
			procs:   &fakeProcs{},
			jobs:    &fakeJobs{err: errors.New("server selection timeout")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(tt.procs, settings)
			err := g.Check(context.Background(), tt.jobs)

			switch {
			case tt.wantSkip:
				require.ErrorIs(t, err, ErrSkipped)
				var skip *SkipError
				require.ErrorAs(t, err, &skip)
				if tt.reason != "" {
					assert.Equal(t, tt.reason, skip.Reason)
				}
			case tt.wantErr:
				require.Error(t, err)
				assert.NotErrorIs(t, err, ErrSkipped)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckProcesses_StopsAtFirstUnmetCondition(t *testing.T) {
	procs := &fakeProcs{running: map[string]bool{"get_censys_files": true}, instance: true}
	g := New(procs, settings)

	var skip *SkipError
	require.ErrorAs(t, g.CheckProcesses(context.Background()), &skip)
	assert.Equal(t, "get_censys_files is still running", skip.Reason)
}

func TestCheckProcesses_NeedsNoStore(t *testing.T) {
	g := New(&fakeProcs{instance: true}, settings)
	assert.ErrorIs(t, g.CheckProcesses(context.Background()), ErrSkipped)
}

func TestStoreBusy(t *testing.T) {
	busy := fmt.Errorf("opening store.db: %w", storage.ErrStoreBusy)
	assert.ErrorIs(t, StoreBusy(busy), ErrSkipped)

	other := errors.New("disk full")
	assert.Equal(t, other, StoreBusy(other))
	assert.NoError(t, StoreBusy(nil))
}

func TestInspect_ReportsEveryCondition(t *testing.T) {
	procs := &fakeProcs{running: map[string]bool{"get_censys_files": true}}
	g := New(procs, settings)

	conds := g.InspectProcesses(context.Background())
	require.Len(t, conds, 2)
	assert.Equal(t, "download process", conds[0].Name)
	assert.False(t, conds[0].OK)
	assert.True(t, conds[1].OK)

	job := g.InspectJob(context.Background(), &fakeJobs{jobs: map[string]*models.JobRecord{}})
	assert.False(t, job.OK)
	assert.NoError(t, job.Err)
}

func TestMarkComplete(t *testing.T) {
	jobs := downloadedJobs()
	g := New(&fakeProcs{}, settings)

	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	require.NoError(t, g.MarkComplete(context.Background(), jobs, at))

	job := jobs.jobs["censys"]
	assert.Equal(t, models.JobComplete, job.Status)
	assert.True(t, at.Equal(job.Updated))
	assert.Equal(t, time.UTC, job.Updated.Location())
}
