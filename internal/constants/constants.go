// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// File names below DATA_DIR
const (
	// StateFileName is the default name of the synced face IDs file
	StateFileName = "synced_faces_state.json"

	// SummaryFileName holds the summary of the last finished run
	SummaryFileName = "last_sync_summary.json"
)

// Event constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100

	// StatusLogCapacity is the number of log lines the status tracker keeps
	StatusLogCapacity = 100
)

// Image constants
const (
	// JPEGQuality is the quality of face crops sent to the trainer
	JPEGQuality = 90
)
