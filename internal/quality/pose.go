package quality

import "image"

// Point is a landmark position in image pixels.
type Point struct {
	X, Y float64
}

// Landmarks are the facial keypoints used for pose estimation.
type Landmarks struct {
	LeftEye  Point
	RightEye Point
	Nose     Point
}

// PoseEstimator scores how frontal a face is, in [0,1].
type PoseEstimator interface {
	Frontal(img image.Image, lm *Landmarks) float64
}

// TwoLevelPose is a coarse frontal heuristic: a face with the nose tip
// strictly between the eyes horizontally scores 1, any other detected face
// scores 0.5 and no detection scores 0. It does not estimate yaw or pitch.
type TwoLevelPose struct{}

func (TwoLevelPose) Frontal(_ image.Image, lm *Landmarks) float64 {
	if lm == nil {
		return 0
	}
	left, right := lm.LeftEye.X, lm.RightEye.X
	if left > right {
		left, right = right, left
	}
	if left < lm.Nose.X && lm.Nose.X < right {
		return 1.0
	}
	return 0.5
}
