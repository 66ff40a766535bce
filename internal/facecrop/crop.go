// Package facecrop turns a catalog thumbnail plus a face bounding box into a JPEG face crop.
package facecrop

import (
	"bytes"
	"errors"
	"fmt"
	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/facesync/internal/constants"
	"github.com/kozaktomas/facesync/internal/immich"
)

// JPEGQuality is the quality used for encoded face crops.
const JPEGQuality = constants.JPEGQuality

// ErrEmptyCrop is returned when the bounding box does not overlap the image.
var ErrEmptyCrop = errors.New("bounding box does not overlap image")

// Crop decodes a thumbnail, crops face's bounding box out of it and returns the crop as JPEG.
func Crop(thumbnail []byte, face immich.Face) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(thumbnail), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode thumbnail: %w", err)
	}

	bounds := img.Bounds()
	rect := ScaleBox(face.BoundingBox, face.ImageWidth, face.ImageHeight, bounds.Dx(), bounds.Dy())
	rect = ClampBox(rect.Add(bounds.Min), bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("face %s box %+v on %dx%d image: %w",
			face.ID, face.BoundingBox, bounds.Dx(), bounds.Dy(), ErrEmptyCrop)
	}

	cropped := imaging.Crop(img, rect)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, cropped, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	return buf.Bytes(), nil
}
