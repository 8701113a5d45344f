package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/attunehealth/attune/internal/emotion"
)

// RemoteDetector calls an HTTP face/emotion model service.
type RemoteDetector struct {
	baseURL string
	client  *http.Client
}

// NewRemoteDetector creates a detector against the model service at baseURL.
func NewRemoteDetector(baseURL string, timeout time.Duration) (*RemoteDetector, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("vision: model service URL is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteDetector{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type detectRequest struct {
	Image string `json:"image"`
}

type detectResponse struct {
	Faces []map[string]float64 `json:"faces"`
}

// DetectFaces sends the encoded image to the model service and parses the
// per-face vectors. Labels outside the closed set are rejected here so the
// aggregator never sees them.
func (d *RemoteDetector) DetectFaces(ctx context.Context, image []byte) ([]emotion.FaceScores, error) {
	body, err := json.Marshal(detectRequest{Image: base64.StdEncoding.EncodeToString(image)})
	if err != nil {
		return nil, fmt.Errorf("vision: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/detect", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("vision: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision: model request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vision: model returned status %d", resp.StatusCode)
	}

	var parsed detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("vision: decode response: %w", err)
	}

	faces := make([]emotion.FaceScores, 0, len(parsed.Faces))
	for i, raw := range parsed.Faces {
		face := make(emotion.FaceScores, len(raw))
		for name, p := range raw {
			label, err := emotion.ParseLabel(name)
			if err != nil {
				return nil, fmt.Errorf("vision: face %d: %w", i, err)
			}
			face[label] = p
		}
		faces = append(faces, face)
	}
	return faces, nil
}
