package immich

import (
	"encoding/json"
	"fmt"
)

// Person represents an Immich person (a named face cluster).
type Person struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ThumbnailPath string `json:"thumbnailPath,omitempty"`
	IsHidden      bool   `json:"isHidden,omitempty"`
}

// BoundingBox is a face rectangle in source-image pixel coordinates.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width returns the box width (may be negative for malformed boxes).
func (b BoundingBox) Width() int { return b.X2 - b.X1 }

// Height returns the box height (may be negative for malformed boxes).
func (b BoundingBox) Height() int { return b.Y2 - b.Y1 }

// Face is one detected face of a person.
// ImageWidth and ImageHeight, when non-zero, are the dimensions BoundingBox refers to.
type Face struct {
	ID            string      `json:"id"`
	AssetID       string      `json:"assetId"`
	PersonID      string      `json:"personId,omitempty"`
	BoundingBox   BoundingBox `json:"boundingBox"`
	ImageWidth    int         `json:"imageWidth,omitempty"`
	ImageHeight   int         `json:"imageHeight,omitempty"`
	ThumbnailPath string      `json:"thumbnailUrl,omitempty"`
}

// UnmarshalJSON accepts both the nested boundingBox object and the flat
// boundingBoxX1..boundingBoxY2 fields newer Immich versions return.
func (f *Face) UnmarshalJSON(data []byte) error {
	type plain Face
	var raw struct {
		plain
		ThumbnailPathAlt string `json:"thumbnailPath"`
		X1               *int   `json:"boundingBoxX1"`
		Y1               *int   `json:"boundingBoxY1"`
		X2               *int   `json:"boundingBoxX2"`
		Y2               *int   `json:"boundingBoxY2"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal face: %w", err)
	}
	*f = Face(raw.plain)
	if raw.X1 != nil && raw.Y1 != nil && raw.X2 != nil && raw.Y2 != nil {
		f.BoundingBox = BoundingBox{X1: *raw.X1, Y1: *raw.Y1, X2: *raw.X2, Y2: *raw.Y2}
	}
	if f.ThumbnailPath == "" {
		f.ThumbnailPath = raw.ThumbnailPathAlt
	}
	return nil
}

// peopleList decodes both a bare array and the paginated {"people": [...]} envelope.
type peopleList []Person

func (p *peopleList) UnmarshalJSON(data []byte) error {
	var arr []Person
	if err := json.Unmarshal(data, &arr); err == nil {
		*p = arr
		return nil
	}
	var env struct {
		People []Person `json:"people"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("unmarshal people: %w", err)
	}
	*p = env.People
	return nil
}
