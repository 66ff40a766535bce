package fingerprint

// Point is a 2D landmark position in image pixels.
type Point [2]float64

// X returns the horizontal coordinate.
func (p Point) X() float64 { return p[0] }

// Y returns the vertical coordinate.
func (p Point) Y() float64 { return p[1] }

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
	// Landmarks holds the five keypoints in detector order:
	// left eye, right eye, nose tip, left mouth corner, right mouth corner.
	Landmarks []Point `json:"landmarks,omitempty"`
}

// Keypoints returns the eye and nose landmarks. ok is false when the detector
// returned fewer than three points.
func (d *FaceDetection) Keypoints() (leftEye, rightEye, nose Point, ok bool) {
	if len(d.Landmarks) < 3 {
		return Point{}, Point{}, Point{}, false
	}
	return d.Landmarks[0], d.Landmarks[1], d.Landmarks[2], true
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

type healthResponse struct {
	Status string `json:"status"`
}
