// Package vision is the boundary to the external face/emotion model. The
// engine itself never touches pixels; it consumes per-face probability
// vectors produced here.
package vision

import (
	"context"

	"github.com/attunehealth/attune/internal/emotion"
)

// Detector produces zero or more per-face emotion probability vectors for an
// encoded image. An empty result means no visible face, which is a normal
// outcome.
type Detector interface {
	DetectFaces(ctx context.Context, image []byte) ([]emotion.FaceScores, error)
}
