package status

import "time"

// Phase represents the current phase of a sync run
type Phase string

const (
	// PhaseIdle means no run has happened since startup
	PhaseIdle Phase = "Idle"

	// PhaseRunning means a run is in progress
	PhaseRunning Phase = "Running"

	// PhaseCompleted means the last run processed every person
	PhaseCompleted Phase = "Completed"

	// PhaseFailed means the last run could not enumerate people
	PhaseFailed Phase = "Failed"
)

// Outcome is the overall result of a finished run
type Outcome string

const (
	// OutcomeSuccess means every considered face was trained or skipped
	OutcomeSuccess Outcome = "Success"

	// OutcomePartialFailure means the run finished but some faces or people failed
	OutcomePartialFailure Outcome = "Partial Failure"

	// OutcomeFailure means the run aborted before processing any person
	OutcomeFailure Outcome = "Failure"
)

// RunSummary is the immutable result of one run.
type RunSummary struct {
	RunID        string    `json:"run_id"`
	Status       Outcome   `json:"status"`
	Message      string    `json:"message"`
	Trained      int       `json:"trained"`
	Skipped      int       `json:"skipped"`
	Failed       int       `json:"failed"`
	FailedPeople int       `json:"failed_people"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Considered returns trained + skipped + failed.
func (s RunSummary) Considered() int {
	return s.Trained + s.Skipped + s.Failed
}

// RunStatus is a point-in-time view of the tracker.
type RunStatus struct {
	InProgress     bool        `json:"in_progress"`
	Phase          Phase       `json:"phase"`
	RunID          string      `json:"run_id,omitempty"`
	StatusMessage  string      `json:"status_message"`
	CurrentPerson  string      `json:"current_person,omitempty"`
	ProcessedFaces int         `json:"processed_faces"`
	TotalFaces     int         `json:"total_faces"`
	Logs           []string    `json:"logs"`
	LastSummary    *RunSummary `json:"last_sync_summary,omitempty"`
}
