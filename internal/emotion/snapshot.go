package emotion

import "time"

// Snapshot is a session-level view of the facial emotion signal at one moment.
// When FacesDetected is zero the dominant label is Neutral with confidence 0,
// which lets callers tell "no face in frame" apart from a detected neutral
// expression.
type Snapshot struct {
	Scores        map[Label]float64 `json:"scores"`
	Dominant      Label             `json:"dominant"`
	Confidence    float64           `json:"confidence"`
	FacesDetected int               `json:"faces_detected"`
	Timestamp     time.Time         `json:"timestamp"`
}

// NoFace reports whether the snapshot came from a frame with no visible face.
func (s Snapshot) NoFace() bool {
	return s.FacesDetected == 0
}
