package mqtt

import (
	"time"

	"github.com/kozaktomas/facesync/internal/status"
	"github.com/kozaktomas/facesync/internal/syncer"
)

// Payload field names are consumed by Home Assistant automations; keep them stable.

// ProgressDTO is published to <prefix>/sync_progress.
type ProgressDTO struct {
	RunID          string    `json:"run_id"`
	InProgress     bool      `json:"in_progress"`
	StatusMessage  string    `json:"status_message"`
	CurrentPerson  string    `json:"current_person,omitempty"`
	ProcessedFaces int       `json:"processed_faces"`
	TotalFaces     int       `json:"total_faces"`
	Timestamp      time.Time `json:"timestamp"`
}

// FaceDTO is published to <prefix>/sync_face.
type FaceDTO struct {
	RunID     string    `json:"run_id"`
	FaceID    string    `json:"face_id"`
	PersonID  string    `json:"person_id"`
	Person    string    `json:"person"`
	Result    string    `json:"result"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SummaryDTO is published to <prefix>/sync_summary.
type SummaryDTO struct {
	RunID        string    `json:"run_id"`
	Status       string    `json:"status"`
	Message      string    `json:"message"`
	Trained      int       `json:"trained"`
	Skipped      int       `json:"skipped"`
	Failed       int       `json:"failed"`
	FailedPeople int       `json:"failed_people"`
	DurationSec  float64   `json:"duration_seconds"`
	Timestamp    time.Time `json:"timestamp"`
}

func progressDTO(ev syncer.Event) ProgressDTO {
	dto := ProgressDTO{RunID: ev.RunID, InProgress: true, StatusMessage: ev.Message, Timestamp: ev.Time}
	if p := ev.Progress; p != nil {
		dto.StatusMessage = p.Message
		dto.CurrentPerson = p.Person
		dto.ProcessedFaces = p.Processed
		dto.TotalFaces = p.Total
	}
	return dto
}

func faceDTO(ev syncer.Event) FaceDTO {
	f := ev.Face
	return FaceDTO{
		RunID:     ev.RunID,
		FaceID:    f.FaceID,
		PersonID:  f.PersonID,
		Person:    f.Person,
		Result:    string(f.Result),
		Error:     f.Error,
		Timestamp: ev.Time,
	}
}

func summaryDTO(ev syncer.Event) SummaryDTO {
	s := ev.Summary
	if s == nil {
		s = &status.RunSummary{RunID: ev.RunID, Message: ev.Message}
	}
	return SummaryDTO{
		RunID:        s.RunID,
		Status:       string(s.Status),
		Message:      s.Message,
		Trained:      s.Trained,
		Skipped:      s.Skipped,
		Failed:       s.Failed,
		FailedPeople: s.FailedPeople,
		DurationSec:  s.FinishedAt.Sub(s.StartedAt).Seconds(),
		Timestamp:    ev.Time,
	}
}
