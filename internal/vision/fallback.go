package vision

import (
	"context"

	"github.com/attunehealth/attune/internal/emotion"
	"github.com/attunehealth/attune/pkg/logging"
)

// StaticDetector is the degraded estimator used when no model service is
// reachable: a single neutral-skewed low-confidence vector, so downstream
// fusion treats the signal as weak rather than absent.
type StaticDetector struct{}

func (StaticDetector) DetectFaces(ctx context.Context, image []byte) ([]emotion.FaceScores, error) {
	return []emotion.FaceScores{{
		emotion.Angry:    0.10,
		emotion.Disgust:  0.05,
		emotion.Fear:     0.10,
		emotion.Happy:    0.20,
		emotion.Sad:      0.15,
		emotion.Surprise: 0.10,
		emotion.Neutral:  0.30,
	}}, nil
}

// FallbackDetector wraps a primary detector with the degraded estimator.
// The engine always gets a usable vector; model outages degrade quality, not
// availability.
type FallbackDetector struct {
	primary  Detector
	fallback Detector
	logger   *logging.Logger
}

// NewFallbackDetector creates a fallback-enabled detector. If primary is nil
// the fallback serves every request.
func NewFallbackDetector(primary Detector, logger *logging.Logger) *FallbackDetector {
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackDetector{
		primary:  primary,
		fallback: StaticDetector{},
		logger:   logger,
	}
}

func (d *FallbackDetector) DetectFaces(ctx context.Context, image []byte) ([]emotion.FaceScores, error) {
	if d.primary == nil {
		return d.fallback.DetectFaces(ctx, image)
	}
	faces, err := d.primary.DetectFaces(ctx, image)
	if err == nil {
		return faces, nil
	}
	d.logger.Warn("face model failed, using degraded estimate", "error", err.Error())
	return d.fallback.DetectFaces(ctx, image)
}
