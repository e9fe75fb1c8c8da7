package model

import "context"

// ResultStore is the persistence interface the orchestrator hands a
// completed AnalysisResult to (spec §6). put is idempotent on AnalysisID.
type ResultStore interface {
	Put(ctx context.Context, result AnalysisResult) error
	Get(ctx context.Context, analysisID string) (*AnalysisResult, error)
	ListBySubmission(ctx context.Context, submissionID string) ([]AnalysisResult, error)
	ListRecent(ctx context.Context, limit, offset int) ([]AnalysisResult, error)
	ListByVerdict(ctx context.Context, verdict Verdict, limit int) ([]AnalysisResult, error)
}

// EventKind enumerates the event-bus message types in spec §6.
type EventKind string

const (
	EventJobQueued         EventKind = "job_queued"
	EventJobStarted        EventKind = "job_started"
	EventJobCompleted      EventKind = "job_completed"
	EventAnalysisCompleted EventKind = "analysis_completed"
)

// Event is the envelope published on the event bus.
type Event struct {
	Kind           EventKind
	JobID          string
	Priority       Priority
	Success        bool
	AnalysisID     string
	SHA256         string
	Verdict        Verdict
	Confidence     float64
	Timestamp      int64 // unix nanos, stamped by the caller
}

// EventBus is the publish(topic, event) external collaborator from §6.
type EventBus interface {
	Publish(ctx context.Context, topic string, event Event) error
}
