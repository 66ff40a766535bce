package immich

import (
	"context"
	"fmt"
)

// GetPeople lists every person known to the catalog.
func (im *Immich) GetPeople(ctx context.Context) ([]Person, error) {
	result, err := doGetJSON[peopleList](ctx, im, "api", "people")
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	return *result, nil
}

// GetPerson returns a single person by ID.
func (im *Immich) GetPerson(ctx context.Context, personID string) (*Person, error) {
	result, err := doGetJSON[Person](ctx, im, "api", "people", personID)
	if err != nil {
		return nil, fmt.Errorf("get person %s: %w", personID, err)
	}
	if result.ID == "" {
		result.ID = personID
	}
	return result, nil
}
