// Package trainer writes face crops into the downstream recognition trainer.
package trainer

import "context"

// Trainer accepts one face crop for a person.
type Trainer interface {
	Train(ctx context.Context, person, faceID string, jpeg []byte) error
	// Name identifies the destination in logs
	Name() string
}
