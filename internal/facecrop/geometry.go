package facecrop

import (
	"image"
	"math"

	"github.com/kozaktomas/facesync/internal/immich"
)

// ScaleBox maps a bounding box from the reference image size (the size the
// catalog measured it on) onto an image of size dstW x dstH.
// A zero reference size means the box is already in destination pixels.
func ScaleBox(b immich.BoundingBox, refW, refH, dstW, dstH int) image.Rectangle {
	if refW <= 0 || refH <= 0 || (refW == dstW && refH == dstH) {
		return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
	}
	sx := float64(dstW) / float64(refW)
	sy := float64(dstH) / float64(refH)
	return image.Rect(
		int(math.Floor(float64(b.X1)*sx)),
		int(math.Floor(float64(b.Y1)*sy)),
		int(math.Ceil(float64(b.X2)*sx)),
		int(math.Ceil(float64(b.Y2)*sy)),
	)
}

// ClampBox intersects r with bounds. The result is empty when they do not overlap.
// image.Rect canonicalizes swapped corners, so inverted boxes are clamped as well.
func ClampBox(r, bounds image.Rectangle) image.Rectangle {
	return r.Intersect(bounds)
}
