package emotion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateEmptySequence(t *testing.T) {
	snap, err := Aggregate(nil)
	require.NoError(t, err)

	assert.Equal(t, 0, snap.FacesDetected)
	assert.Equal(t, Neutral, snap.Dominant)
	assert.Equal(t, 0.0, snap.Confidence)
	assert.True(t, snap.NoFace())
	assert.False(t, snap.Timestamp.IsZero())
}

func TestAggregateSingleFace(t *testing.T) {
	face := FaceScores{
		Happy: 0.1, Sad: 0.55, Angry: 0.05, Fear: 0.1,
		Surprise: 0.05, Disgust: 0.05, Neutral: 0.1,
	}

	snap, err := Aggregate([]FaceScores{face})
	require.NoError(t, err)

	assert.Equal(t, 1, snap.FacesDetected)
	assert.Equal(t, Sad, snap.Dominant)
	// Exact equality: single-face snapshots carry the input verbatim.
	assert.Equal(t, 0.55, snap.Confidence)
	for label, p := range face {
		assert.Equal(t, p, snap.Scores[label])
	}
}

func TestAggregateMultiFaceMean(t *testing.T) {
	a := FaceScores{
		Happy: 0.8, Sad: 0.0, Angry: 0.0, Fear: 0.0,
		Surprise: 0.0, Disgust: 0.0, Neutral: 0.2,
	}
	b := FaceScores{
		Happy: 0.2, Sad: 0.4, Angry: 0.0, Fear: 0.0,
		Surprise: 0.0, Disgust: 0.0, Neutral: 0.4,
	}

	snap, err := Aggregate([]FaceScores{a, b})
	require.NoError(t, err)

	assert.Equal(t, 2, snap.FacesDetected)
	assert.InDelta(t, 0.5, snap.Scores[Happy], 1e-9)
	assert.InDelta(t, 0.2, snap.Scores[Sad], 1e-9)
	assert.InDelta(t, 0.3, snap.Scores[Neutral], 1e-9)
	assert.Equal(t, Happy, snap.Dominant)
	assert.InDelta(t, 0.5, snap.Confidence, 1e-9)
}

func TestAggregateRejectsUnknownLabel(t *testing.T) {
	face := FaceScores{Label("confused"): 1.0}

	_, err := Aggregate([]FaceScores{face})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestAggregateRejectsNegativeProbability(t *testing.T) {
	face := FaceScores{Happy: 1.2, Sad: -0.2}

	_, err := Aggregate([]FaceScores{face})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestAggregateRejectsBadSum(t *testing.T) {
	face := FaceScores{Happy: 0.3, Sad: 0.3}

	_, err := Aggregate([]FaceScores{face})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestAggregateToleratesRoundingNoise(t *testing.T) {
	face := FaceScores{Happy: 0.5, Sad: 0.49}

	snap, err := Aggregate([]FaceScores{face})
	require.NoError(t, err)
	assert.Equal(t, Happy, snap.Dominant)
}

func TestParseLabel(t *testing.T) {
	l, err := ParseLabel("sad")
	require.NoError(t, err)
	assert.Equal(t, Sad, l)

	_, err = ParseLabel("melancholy")
	assert.Error(t, err)
}
