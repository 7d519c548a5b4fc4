package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFaceDetectorCountsFaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req detectRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		data, err := base64.StdEncoding.DecodeString(req.Image)
		require.NoError(t, err)
		assert.Equal(t, "jpeg", string(data))
		assert.Equal(t, int64(42), req.Timestamp)
		json.NewEncoder(w).Encode(detectResponse{Faces: 2})
	}))
	defer server.Close()

	d := NewFaceDetector(&DetectorConfig{URL: server.URL, Timeout: time.Second}, zap.NewNop())
	n, err := d.CountFaces(context.Background(), []byte("jpeg"), 42)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFaceDetectorFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	d := NewFaceDetector(&DetectorConfig{URL: server.URL, Timeout: time.Second}, zap.NewNop())
	_, err := d.CountFaces(context.Background(), []byte("jpeg"), 1)
	var provErr *ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, ErrCodeServiceDown, provErr.Code)

	unconfigured := NewFaceDetector(&DetectorConfig{}, zap.NewNop())
	_, err = unconfigured.CountFaces(context.Background(), nil, 1)
	assert.Error(t, err)
}
