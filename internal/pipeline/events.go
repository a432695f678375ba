package pipeline

import "time"

// Phase names reported in progress events and critical-phase errors.
const (
	PhaseProbe         = "probe"
	PhaseUnderstanding = "understanding"
	PhaseStructuring   = "structuring"
	PhaseFactCheck     = "factcheck"
	PhaseSplice        = "splice"
	PhaseTimeline      = "timeline"
	PhaseAIJudgment    = "ai_judgment"
	PhaseFusion        = "fusion"
)

// Event statuses.
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Event is a progress notification for one phase of a running job.
type Event struct {
	JobID  string    `json:"job_id"`
	Phase  string    `json:"phase"`
	Status string    `json:"status"`
	At     time.Time `json:"at"`
	Err    string    `json:"error,omitempty"`
}

// ProgressFunc receives events as a job advances. It is called synchronously
// from pipeline goroutines and must not block.
type ProgressFunc func(Event)
