// Package status tracks the live state of the sync run and its last result.
package status

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kozaktomas/facesync/internal/constants"
)

// DefaultLogCapacity is the number of log lines kept per run.
const DefaultLogCapacity = constants.StatusLogCapacity

const neverSynced = "Idle. Last sync: Never"

// Tracker holds the run status. All methods are safe for concurrent use.
type Tracker struct {
	mu sync.Mutex

	inProgress     bool
	phase          Phase
	runID          string
	message        string
	currentPerson  string
	processedFaces int
	totalFaces     int
	logs           *ring
	lastSummary    *RunSummary

	store  SummaryStore
	logger zerolog.Logger
}

// NewTracker creates an idle tracker keeping at most logCapacity log lines.
// If store is non-nil the previous run's summary is restored from it and
// every new summary is saved to it.
func NewTracker(logCapacity int, store SummaryStore, logger zerolog.Logger) *Tracker {
	if logCapacity <= 0 {
		logCapacity = DefaultLogCapacity
	}
	t := &Tracker{
		phase:   PhaseIdle,
		message: neverSynced,
		logs:    newRing(logCapacity),
		store:   store,
		logger:  logger,
	}
	if store != nil {
		last, err := store.Load()
		if err != nil {
			logger.Warn().Err(err).Msg("could not load last sync summary")
		} else if last != nil {
			t.lastSummary = last
			t.message = idleMessage(last)
		}
	}
	return t
}

func idleMessage(s *RunSummary) string {
	return fmt.Sprintf("Idle. Last sync: %s (%s)", s.FinishedAt.Format(time.RFC3339), s.Status)
}

// Start begins a run. It returns false without changing anything if a run is
// already in progress.
func (t *Tracker) Start(runID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.inProgress {
		return false
	}
	t.inProgress = true
	t.phase = PhaseRunning
	t.runID = runID
	t.message = "Sync initiated..."
	t.currentPerson = ""
	t.processedFaces = 0
	t.totalFaces = 0
	t.logs.reset()
	return true
}

// UpdateStatus replaces the status message.
func (t *Tracker) UpdateStatus(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.message = msg
}

// UpdateProgress records per-person progress and derives the status message.
func (t *Tracker) UpdateProgress(person string, processed, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.currentPerson = person
	t.processedFaces = processed
	t.totalFaces = total
	t.message = ProgressMessage(person, processed, total)
}

// ProgressMessage formats "Processing <person>: <p>/<t> faces (<pct>%)".
func ProgressMessage(person string, processed, total int) string {
	pct := 0
	if total > 0 {
		pct = processed * 100 / total
	}
	return fmt.Sprintf("Processing %s: %d/%d faces (%d%%)", person, processed, total, pct)
}

// AddLog appends a line, dropping the oldest when the buffer is full.
func (t *Tracker) AddLog(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logs.push(line)
}

// End finishes the current run with summary. It is ignored when no run is in progress.
func (t *Tracker) End(summary RunSummary) {
	t.mu.Lock()
	if !t.inProgress {
		t.mu.Unlock()
		t.logger.Warn().Str("run_id", summary.RunID).Msg("end called without a running sync, ignoring")
		return
	}

	t.inProgress = false
	if summary.Status == OutcomeFailure {
		t.phase = PhaseFailed
	} else {
		t.phase = PhaseCompleted
	}
	t.message = summary.Message
	if t.message == "" {
		t.message = "Sync finished."
	}
	s := summary
	t.lastSummary = &s
	store := t.store
	t.mu.Unlock()

	if store != nil {
		if err := store.Save(&s); err != nil {
			t.logger.Error().Err(err).Msg("failed to persist sync summary")
		}
	}
}

// InProgress reports whether a run is active.
func (t *Tracker) InProgress() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inProgress
}

// Snapshot returns a copy of the current status.
func (t *Tracker) Snapshot() RunStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := RunStatus{
		InProgress:     t.inProgress,
		Phase:          t.phase,
		RunID:          t.runID,
		StatusMessage:  t.message,
		CurrentPerson:  t.currentPerson,
		ProcessedFaces: t.processedFaces,
		TotalFaces:     t.totalFaces,
		Logs:           t.logs.items(),
	}
	if t.lastSummary != nil {
		s := *t.lastSummary
		st.LastSummary = &s
	}
	return st
}
