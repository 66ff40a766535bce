package immich

import (
	"context"
	"fmt"
)

// GetPersonFaces lists a person's faces in catalog order.
func (im *Immich) GetPersonFaces(ctx context.Context, personID string) ([]Face, error) {
	result, err := doGetJSON[[]Face](ctx, im, "api", "people", personID, "faces")
	if err != nil {
		return nil, fmt.Errorf("list faces for person %s: %w", personID, err)
	}
	faces := *result
	for i := range faces {
		if faces[i].PersonID == "" {
			faces[i].PersonID = personID
		}
	}
	return faces, nil
}
