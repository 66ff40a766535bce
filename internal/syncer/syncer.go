// Package syncer runs the single-flight face synchronization from the catalog to the trainer.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kozaktomas/facesync/internal/facecrop"
	"github.com/kozaktomas/facesync/internal/immich"
	"github.com/kozaktomas/facesync/internal/status"
	"github.com/kozaktomas/facesync/internal/trainer"
)

var (
	// ErrAlreadyRunning is returned when a run is requested while another is in progress.
	ErrAlreadyRunning = errors.New("sync already in progress")
	// ErrInvalidSelection is returned for a selection listing faces without a person.
	ErrInvalidSelection = errors.New("face_ids require person_id")
)

// Catalog is the subset of the Immich client the orchestrator reads from.
type Catalog interface {
	GetPeople(ctx context.Context) ([]immich.Person, error)
	GetPerson(ctx context.Context, personID string) (*immich.Person, error)
	GetPersonFaces(ctx context.Context, personID string) ([]immich.Face, error)
	GetAssetThumbnail(ctx context.Context, assetID string) ([]byte, error)
}

// Store records which faces were already trained.
type Store interface {
	IsSynced(faceID string) bool
	MarkSynced(faceID string) error
}

// Notifier is told once per run that new faces were written.
type Notifier interface {
	Notify(ctx context.Context, runID string, trained int) error
}

// Selection limits a run to explicit faces of one person. An empty FaceIDs
// list means every face of PersonID (subject to the per-person cap).
type Selection struct {
	PersonID string   `json:"person_id"`
	FaceIDs  []string `json:"face_ids,omitempty"`
}

// Validate checks the selection is well formed.
func (s *Selection) Validate() error {
	if s == nil {
		return nil
	}
	if s.PersonID == "" && len(s.FaceIDs) > 0 {
		return ErrInvalidSelection
	}
	return nil
}

// Options control which faces a run considers.
type Options struct {
	SkipExisting bool
	PerPersonCap int // 0 means no cap
}

// Deps are the collaborators of a Syncer.
type Deps struct {
	Catalog  Catalog
	Trainer  trainer.Trainer
	Store    Store
	Tracker  *status.Tracker
	Notifier Notifier // optional
	Sinks    []Sink
	Logger   zerolog.Logger

	// Crop defaults to facecrop.Crop.
	Crop func(thumbnail []byte, face immich.Face) ([]byte, error)
	// NewRunID defaults to a random UUID.
	NewRunID func() string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Syncer orchestrates sync runs. At most one run is active at a time,
// enforced by the status tracker.
type Syncer struct {
	deps   Deps
	opts   Options
	events *Broadcaster
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// New creates a Syncer.
func New(deps Deps, opts Options) *Syncer {
	if deps.Crop == nil {
		deps.Crop = facecrop.Crop
	}
	if deps.NewRunID == nil {
		deps.NewRunID = uuid.NewString
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Syncer{
		deps:   deps,
		opts:   opts,
		events: &Broadcaster{},
		logger: deps.Logger,
	}
}

// Events returns the broadcaster SSE subscribers attach to.
func (s *Syncer) Events() *Broadcaster {
	return s.events
}

// Tracker returns the status tracker.
func (s *Syncer) Tracker() *status.Tracker {
	return s.deps.Tracker
}

// Trigger starts a run in the background and returns its ID. The run is
// detached from ctx cancellation. It returns ErrAlreadyRunning if a run is active.
func (s *Syncer) Trigger(ctx context.Context, sel *Selection) (string, error) {
	if err := sel.Validate(); err != nil {
		return "", err
	}
	runID := s.deps.NewRunID()
	if !s.deps.Tracker.Start(runID) {
		return "", ErrAlreadyRunning
	}

	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(runCtx, runID, sel)
	}()
	return runID, nil
}

// Run performs a run synchronously and returns its summary.
func (s *Syncer) Run(ctx context.Context, sel *Selection) (status.RunSummary, error) {
	if err := sel.Validate(); err != nil {
		return status.RunSummary{}, err
	}
	runID := s.deps.NewRunID()
	if !s.deps.Tracker.Start(runID) {
		return status.RunSummary{}, ErrAlreadyRunning
	}
	return s.run(ctx, runID, sel), nil
}

// Wait blocks until the background run, if any, has finished.
func (s *Syncer) Wait() {
	s.wg.Wait()
}

// runState accumulates counters for one run.
type runState struct {
	runID        string
	startedAt    time.Time
	trained      int
	skipped      int
	failed       int
	failedPeople int
}

func (rs *runState) summary(outcome status.Outcome, msg string) status.RunSummary {
	return status.RunSummary{
		RunID:        rs.runID,
		Status:       outcome,
		Message:      msg,
		Trained:      rs.trained,
		Skipped:      rs.skipped,
		Failed:       rs.failed,
		FailedPeople: rs.failedPeople,
		StartedAt:    rs.startedAt,
	}
}

// run executes one run. The tracker's End is called exactly once, also on panic.
func (s *Syncer) run(ctx context.Context, runID string, sel *Selection) (summary status.RunSummary) {
	rs := &runState{runID: runID, startedAt: s.deps.Now()}
	log := s.logger.With().Str("run_id", runID).Logger()

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("An unexpected error occurred: %v", r)
			log.Error().Interface("panic", r).Msg("sync run panicked")
			s.addLog(runID, "CRITICAL: "+msg)
			summary = rs.summary(status.OutcomeFailure, msg)
		}
		summary.FinishedAt = s.deps.Now()
		s.deps.Tracker.End(summary)
		s.emit(Event{Type: EventRunFinished, RunID: runID, Message: summary.Message, Summary: &summary})
		log.Info().Str("status", string(summary.Status)).Int("trained", summary.Trained).
			Int("skipped", summary.Skipped).Int("failed", summary.Failed).
			Int("failed_people", summary.FailedPeople).Dur("duration", summary.FinishedAt.Sub(summary.StartedAt)).
			Msg("sync finished")
	}()

	s.emit(Event{Type: EventRunStarted, RunID: runID, Message: "Sync initiated..."})
	s.addLog(runID, "INFO: Starting sync process...")
	s.deps.Tracker.UpdateStatus("Fetching people from Immich...")

	people, err := s.resolvePeople(ctx, sel)
	if err != nil {
		msg := fmt.Sprintf("Sync Failed: Could not connect to Immich or Double Take. Please check URLs and API keys. Details: %v", err)
		s.addLog(runID, "ERROR: "+msg)
		return rs.summary(status.OutcomeFailure, msg)
	}
	s.addLog(runID, fmt.Sprintf("INFO: Found %d people in Immich.", len(people)))

	for i, person := range people {
		if person.Name == "" {
			s.addLog(runID, fmt.Sprintf("WARN: Skipping person with no name (ID: %s).", person.ID))
			continue
		}
		s.deps.Tracker.UpdateStatus(fmt.Sprintf("Processing %s (%d of %d)...", person.Name, i+1, len(people)))
		s.syncPerson(ctx, rs, person, sel)
	}

	msg := fmt.Sprintf("Sync complete! Trained: %d, Skipped: %d, Failed: %d.", rs.trained, rs.skipped, rs.failed)
	if rs.failedPeople > 0 {
		msg += fmt.Sprintf(" Failed people: %d.", rs.failedPeople)
	}
	outcome := status.OutcomeSuccess
	if rs.failed > 0 || rs.failedPeople > 0 {
		outcome = status.OutcomePartialFailure
	}
	s.addLog(runID, "INFO: "+msg)

	if s.deps.Notifier != nil && rs.trained > 0 {
		if err := s.deps.Notifier.Notify(ctx, runID, rs.trained); err != nil {
			s.addLog(runID, fmt.Sprintf("WARN: Reload notification failed: %v", err))
		}
	}

	return rs.summary(outcome, msg)
}

func (s *Syncer) resolvePeople(ctx context.Context, sel *Selection) ([]immich.Person, error) {
	if sel != nil && sel.PersonID != "" {
		p, err := s.deps.Catalog.GetPerson(ctx, sel.PersonID)
		if err != nil {
			return nil, err
		}
		return []immich.Person{*p}, nil
	}
	return s.deps.Catalog.GetPeople(ctx)
}

// faceJob is a face to process; a nil face is an explicitly requested ID
// the catalog does not know.
type faceJob struct {
	id   string
	face *immich.Face
}

func (s *Syncer) resolveFaces(ctx context.Context, person immich.Person, sel *Selection) ([]faceJob, error) {
	faces, err := s.deps.Catalog.GetPersonFaces(ctx, person.ID)
	if err != nil {
		return nil, err
	}

	if sel != nil && len(sel.FaceIDs) > 0 {
		byID := make(map[string]*immich.Face, len(faces))
		for i := range faces {
			byID[faces[i].ID] = &faces[i]
		}
		jobs := make([]faceJob, 0, len(sel.FaceIDs))
		seen := make(map[string]bool, len(sel.FaceIDs))
		for _, id := range sel.FaceIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			jobs = append(jobs, faceJob{id: id, face: byID[id]})
		}
		return jobs, nil
	}

	if s.opts.PerPersonCap > 0 && len(faces) > s.opts.PerPersonCap {
		faces = faces[:s.opts.PerPersonCap]
	}
	jobs := make([]faceJob, len(faces))
	for i := range faces {
		jobs[i] = faceJob{id: faces[i].ID, face: &faces[i]}
	}
	return jobs, nil
}

func (s *Syncer) syncPerson(ctx context.Context, rs *runState, person immich.Person, sel *Selection) {
	jobs, err := s.resolveFaces(ctx, person, sel)
	if err != nil {
		rs.failedPeople++
		s.addLog(rs.runID, fmt.Sprintf("ERROR: Could not list faces for %s: %v", person.Name, err))
		return
	}

	total := len(jobs)
	s.deps.Tracker.UpdateProgress(person.Name, 0, total)

	for i, job := range jobs {
		start := s.deps.Now()
		result, err := s.syncFace(ctx, rs, person, job)
		outcome := FaceOutcome{
			FaceID:   job.id,
			PersonID: person.ID,
			Person:   person.Name,
			Result:   result,
			Duration: s.deps.Now().Sub(start),
		}

		switch result {
		case FaceTrained:
			rs.trained++
			s.addLog(rs.runID, fmt.Sprintf("INFO: Successfully trained face %s for %s.", job.id, person.Name))
		case FaceSkipped:
			rs.skipped++
		case FaceFailed:
			rs.failed++
			outcome.Error = err.Error()
			s.addLog(rs.runID, fmt.Sprintf("ERROR: face %s for %s: %v", job.id, person.Name, err))
		}

		s.deps.Tracker.UpdateProgress(person.Name, i+1, total)
		s.emit(Event{
			Type:  EventProgress,
			RunID: rs.runID,
			Progress: &Progress{
				Person:    person.Name,
				Processed: i + 1,
				Total:     total,
				Message:   status.ProgressMessage(person.Name, i+1, total),
			},
		})
		s.emit(Event{Type: EventFace, RunID: rs.runID, Face: &outcome})
	}
}

// syncFace fetches, crops and trains one face. It returns FaceFailed with a
// non-nil error on any failure.
func (s *Syncer) syncFace(ctx context.Context, rs *runState, person immich.Person, job faceJob) (FaceResult, error) {
	if s.opts.SkipExisting && s.deps.Store.IsSynced(job.id) {
		return FaceSkipped, nil
	}
	if job.face == nil {
		return FaceFailed, errors.New("face not found in catalog")
	}

	thumb, err := s.deps.Catalog.GetAssetThumbnail(ctx, job.face.AssetID)
	if err != nil {
		return FaceFailed, err
	}
	crop, err := s.deps.Crop(thumb, *job.face)
	if err != nil {
		return FaceFailed, err
	}
	if err := s.deps.Trainer.Train(ctx, person.Name, job.id, crop); err != nil {
		return FaceFailed, err
	}
	if err := s.deps.Store.MarkSynced(job.id); err != nil {
		// The face reached the trainer; the in-memory state still has it.
		s.addLog(rs.runID, fmt.Sprintf("WARN: face %s trained but not persisted: %v", job.id, err))
	}
	return FaceTrained, nil
}

// addLog appends a prefixed line to the tracker, mirrors it to zerolog and
// broadcasts it to SSE listeners.
func (s *Syncer) addLog(runID, line string) {
	s.deps.Tracker.AddLog(line)

	ev := s.logger.Info()
	switch {
	case strings.HasPrefix(line, "ERROR:"), strings.HasPrefix(line, "CRITICAL:"):
		ev = s.logger.Error()
	case strings.HasPrefix(line, "WARN:"):
		ev = s.logger.Warn()
	}
	ev.Str("run_id", runID).Msg(line)

	s.emit(Event{Type: EventLog, RunID: runID, Message: line})
}

func (s *Syncer) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = s.deps.Now()
	}
	s.events.HandleEvent(ev)
	for _, sink := range s.deps.Sinks {
		sink.HandleEvent(ev)
	}
}
