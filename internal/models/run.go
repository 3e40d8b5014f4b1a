package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStats are the counters collected while scanning one dataset file
type RunStats struct {
	Lines         int64 `json:"lines" bson:"lines"`
	Blank         int64 `json:"blank" bson:"blank"`
	ParseErrors   int64 `json:"parse_errors" bson:"parse_errors"`
	Matched       int64 `json:"matched" bson:"matched"`
	Persisted     int64 `json:"persisted" bson:"persisted"`
	PersistErrors int64 `json:"persist_errors" bson:"persist_errors"`
	LookupErrors  int64 `json:"lookup_errors" bson:"lookup_errors"`
}

// RunMeta contains metadata about a classification run
type RunMeta struct {
	ID          string     `json:"id" bson:"_id"`
	JobName     string     `json:"job_name" bson:"job_name"`
	Dataset     string     `json:"dataset,omitempty" bson:"dataset,omitempty"`
	StartedAt   time.Time  `json:"started_at" bson:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	Status      RunStatus  `json:"status" bson:"status"`
	Stats       RunStats   `json:"stats" bson:"stats"`
	Error       string     `json:"error,omitempty" bson:"error,omitempty"`
}

// NewRun creates a new run record in the running state
func NewRun(jobName string) *RunMeta {
	return &RunMeta{
		ID:        uuid.New().String(),
		JobName:   jobName,
		StartedAt: time.Now(),
		Status:    RunRunning,
	}
}

// Finish moves the run to a terminal status and stamps CompletedAt
func (r *RunMeta) Finish(status RunStatus, at time.Time) {
	r.Status = status
	if r.CompletedAt == nil {
		r.CompletedAt = &at
	}
}

// JobRecord is the shared job-status document written by the download stage
type JobRecord struct {
	Name    string    `json:"job_name" bson:"job_name"`
	Status  JobStatus `json:"status" bson:"status"`
	Updated time.Time `json:"updated" bson:"updated"`
}
