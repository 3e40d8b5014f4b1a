package models

// JobStatus is the state of the shared download/classify job record
type JobStatus string

const (
	JobDownloading JobStatus = "DOWNLOADING"
	JobDownloaded  JobStatus = "DOWNLOADED"
	JobComplete    JobStatus = "COMPLETE"
)

// RunStatus represents the current state of a classification run
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunComplete RunStatus = "complete"
	RunFailed   RunStatus = "failed"
)

// RangeStatusFalsePositive marks a known range or zone that was rejected
// during review. Such entries never take part in matching.
const RangeStatusFalsePositive = "false_positive"

// ZoneStatusExpired marks a zone the organization no longer owns.
const ZoneStatusExpired = "expired"
