package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

const providerDetector = "face-detector"

// FaceDetector counts faces in camera frames through an HTTP vision service.
type FaceDetector struct {
	client *http.Client
	url    string
	logger *zap.Logger
}

func NewFaceDetector(cfg *DetectorConfig, logger *zap.Logger) *FaceDetector {
	return &FaceDetector{
		client: &http.Client{Timeout: cfg.Timeout},
		url:    cfg.URL,
		logger: logger,
	}
}

type detectRequest struct {
	Image     string `json:"image"`
	Timestamp int64  `json:"timestamp"`
}

type detectResponse struct {
	Faces int    `json:"faces"`
	Error string `json:"error,omitempty"`
}

// CountFaces posts one JPEG frame and returns the number of faces found.
func (d *FaceDetector) CountFaces(ctx context.Context, frame []byte, ts int64) (int, error) {
	if d.url == "" {
		return 0, &ProviderError{Provider: providerDetector, Code: ErrCodeServiceDown, Message: "Detector URL is not configured"}
	}

	payload, err := json.Marshal(detectRequest{Image: base64.StdEncoding.EncodeToString(frame), Timestamp: ts})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return 0, &ProviderError{Provider: providerDetector, Code: ErrCodeServiceDown, Message: "Failed to send HTTP request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, &ProviderError{Provider: providerDetector, Code: ErrCodeBadResponse, Message: "Failed to read response body", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return 0, &ProviderError{
			Provider: providerDetector,
			Code:     ErrCodeServiceDown,
			Message:  fmt.Sprintf("non-200 status: %d, body: %s", resp.StatusCode, string(body)),
		}
	}

	var out detectResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, &ProviderError{Provider: providerDetector, Code: ErrCodeBadResponse, Message: "Failed to unmarshal response JSON", Err: err}
	}
	if out.Error != "" || out.Faces < 0 {
		return 0, &ProviderError{Provider: providerDetector, Code: ErrCodeBadResponse, Message: "Detector rejected frame: " + out.Error}
	}
	return out.Faces, nil
}
