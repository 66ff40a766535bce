// Package quality scores face crops on clarity, pose and lighting.
package quality

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Scores holds the per-face quality metrics.
// Clarity is an unnormalized Laplacian variance; Frontal and Lighting are in [0,1].
type Scores struct {
	Clarity  float64 `json:"clarity"`
	Frontal  float64 `json:"frontal"`
	Lighting float64 `json:"lighting"`
}

// Scorer computes Scores. The zero value is not usable; use NewScorer.
type Scorer struct {
	pose PoseEstimator
}

// NewScorer returns a Scorer using pose for the frontal metric.
// A nil pose falls back to TwoLevelPose.
func NewScorer(pose PoseEstimator) *Scorer {
	if pose == nil {
		pose = TwoLevelPose{}
	}
	return &Scorer{pose: pose}
}

// ScoreBytes decodes data and scores it. Undecodable input scores zero on every metric.
func (s *Scorer) ScoreBytes(data []byte, lm *Landmarks) Scores {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Scores{}
	}
	return s.Score(img, lm)
}

// Score computes all metrics for a decoded image.
func (s *Scorer) Score(img image.Image, lm *Landmarks) Scores {
	if img == nil || img.Bounds().Empty() {
		return Scores{}
	}
	gray, w, h := grayscale(img)
	return Scores{
		Clarity:  laplacianVariance(gray, w, h),
		Frontal:  s.pose.Frontal(img, lm),
		Lighting: mean(gray),
	}
}

// grayscale returns luminance values in [0,1], row-major.
func grayscale(img image.Image) ([]float64, int, int) {
	g := imaging.Grayscale(img)
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	out := make([]float64, w*h)
	for y := range h {
		row := g.Pix[y*g.Stride:]
		for x := range w {
			out[y*w+x] = float64(row[x*4]) / 255
		}
	}
	return out, w, h
}

// laplacianVariance returns the population variance of the 4-neighbour
// Laplacian over interior pixels. Images smaller than 3x3 score 0.
func laplacianVariance(gray []float64, w, h int) float64 {
	if w < 3 || h < 3 {
		return 0
	}
	n := (w - 2) * (h - 2)
	vals := make([]float64, 0, n)
	var sum float64
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			v := gray[i-w] + gray[i+w] + gray[i-1] + gray[i+1] - 4*gray[i]
			vals = append(vals, v)
			sum += v
		}
	}
	m := sum / float64(n)
	var ss float64
	for _, v := range vals {
		d := v - m
		ss += d * d
	}
	return ss / float64(n)
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
