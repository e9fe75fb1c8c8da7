package model

import "time"

// Priority is a job's scheduling lane (C14).
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// JobStatus is a Job's state-machine position: Queued -> Running ->
// Completed|Failed, with Failed -> Queued on retry while
// RetryCount < MaxRetries.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is a unit of scheduled analysis work.
type Job struct {
	ID                  string
	Submitter           string
	ArtifactRef         string
	Priority            Priority
	Status              JobStatus
	CreatedAt           time.Time
	StartedAt           *time.Time
	RetryCount          int
	EstimatedDurationMS *int64
}
