package emotion

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMalformedInput marks a per-face vector that violates the label-set or
// probability invariants. It is surfaced to the caller as a validation error,
// never silently repaired.
var ErrMalformedInput = errors.New("emotion: malformed input vector")

// Per-face probabilities must sum to 1.0 within this tolerance.
const sumTolerance = 0.05

// FaceScores is one detected face's probability distribution over the label set.
type FaceScores map[Label]float64

// Aggregate folds zero or more per-face emotion vectors into a single
// session-level Snapshot. An empty sequence is the normal no-face outcome, not
// an error. Multiple faces are combined by arithmetic mean per label; every
// face carries equal weight.
func Aggregate(faces []FaceScores) (Snapshot, error) {
	now := time.Now().UTC()

	if len(faces) == 0 {
		return Snapshot{
			Scores:        map[Label]float64{Neutral: 1.0},
			Dominant:      Neutral,
			Confidence:    0.0,
			FacesDetected: 0,
			Timestamp:     now,
		}, nil
	}

	for i, face := range faces {
		if err := validate(face); err != nil {
			return Snapshot{}, fmt.Errorf("face %d: %w", i, err)
		}
	}

	mean := make(map[Label]float64, len(Labels()))
	for _, label := range Labels() {
		var sum float64
		for _, face := range faces {
			sum += face[label]
		}
		mean[label] = sum / float64(len(faces))
	}

	dominant, confidence := argmax(mean)
	return Snapshot{
		Scores:        mean,
		Dominant:      dominant,
		Confidence:    confidence,
		FacesDetected: len(faces),
		Timestamp:     now,
	}, nil
}

func validate(face FaceScores) error {
	if len(face) == 0 {
		return fmt.Errorf("%w: empty vector", ErrMalformedInput)
	}
	var sum float64
	for label, p := range face {
		if !label.Valid() {
			return fmt.Errorf("%w: unknown label %q", ErrMalformedInput, label)
		}
		if p < 0 {
			return fmt.Errorf("%w: negative probability %f for %q", ErrMalformedInput, p, label)
		}
		sum += p
	}
	if math.Abs(sum-1.0) > sumTolerance {
		return fmt.Errorf("%w: probabilities sum to %f", ErrMalformedInput, sum)
	}
	return nil
}

// argmax ties break in the stable Labels() order so results are deterministic.
func argmax(scores map[Label]float64) (Label, float64) {
	best := Neutral
	bestScore := math.Inf(-1)
	for _, label := range Labels() {
		if p, ok := scores[label]; ok && p > bestScore {
			best = label
			bestScore = p
		}
	}
	if math.IsInf(bestScore, -1) {
		return Neutral, 0
	}
	return best, bestScore
}
