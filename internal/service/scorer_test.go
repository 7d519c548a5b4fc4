package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"cogniview/internal/model"
)

func newStubScorer(t *testing.T, handler http.HandlerFunc) *Scorer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     "test",
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: server.Client(),
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    server.URL,
			APIVersion: "v1beta",
		},
	})
	require.NoError(t, err)

	s, err := NewScorer(client, &GeminiConfig{Model: "test-model"}, zap.NewNop())
	require.NoError(t, err)
	return s
}

func textResponse(w http.ResponseWriter, text string) {
	resp := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func TestScorerScore(t *testing.T) {
	var prompt string
	s := newStubScorer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/test-model:generateContent", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		prompt = string(body)
		textResponse(w, `{
			"overallScore": 72.5,
			"parameterScores": {"Communication": 80, "Technical": 67},
			"analysis": {"summary": "Solid", "strengths": [{"title": "Clarity", "description": "Clear", "evidence": "Explained GC"}],
				"weaknesses": [], "recommendation": "Advance", "confidence": 0.8}
		}`)
	})

	card, err := s.Score(context.Background(), "Backend Engineer",
		[]model.EvaluationParameter{{Name: "Communication", Weight: 40}, {Name: "Technical", Weight: 60}},
		[]model.TranscriptPair{{Question: model.TranscriptQuestionText, Answer: "interviewer: Why Go?\ncandidate: Simplicity."}},
	)
	require.NoError(t, err)
	assert.Equal(t, 72.5, card.OverallScore)
	assert.Equal(t, map[string]float64{"Communication": 80, "Technical": 67}, card.ParameterScores)
	assert.Equal(t, "Advance", card.Analysis.Recommendation)
	require.Len(t, card.Analysis.Strengths, 1)

	assert.Contains(t, prompt, "Backend Engineer")
	assert.Contains(t, prompt, "Communication (Weight: 40%)")
	assert.Contains(t, prompt, "Simplicity.")
}

func TestScorerRateLimit(t *testing.T) {
	s := newStubScorer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "429 rate limit", http.StatusTooManyRequests)
	})

	_, err := s.Score(context.Background(), "SRE", nil, nil)
	var provErr *ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, ErrCodeRateLimit, provErr.Code)
}

func TestScorerRejectsBadJSON(t *testing.T) {
	s := newStubScorer(t, func(w http.ResponseWriter, r *http.Request) {
		textResponse(w, "not json")
	})

	_, err := s.Score(context.Background(), "SRE", nil, nil)
	var provErr *ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, ErrCodeBadResponse, provErr.Code)
}

func TestSuggestParametersNormalizesWeights(t *testing.T) {
	s := newStubScorer(t, func(w http.ResponseWriter, r *http.Request) {
		textResponse(w, `[
			{"name": "Communication", "description": "Clarity", "weight": 25.4},
			{"name": "Technical", "description": "Depth", "weight": 30},
			{"name": "", "description": "dropped", "weight": 10},
			{"name": "Ownership", "description": "Drive", "weight": 20},
			{"name": "Teamwork", "description": "Collaboration", "weight": 20}
		]`)
	})

	params, err := s.SuggestParameters(context.Background(), "Backend Engineer")
	require.NoError(t, err)
	require.Len(t, params, 4)

	total := 0
	for _, p := range params {
		total += p.Weight
	}
	assert.Equal(t, 100, total)
	assert.Equal(t, 25, params[0].Weight)
	assert.Equal(t, 25, params[3].Weight)
}

func TestRephraseQuestion(t *testing.T) {
	s := newStubScorer(t, func(w http.ResponseWriter, r *http.Request) {
		textResponse(w, `["What draws you to Go?", " ", "Why pick Go?", "How did you come to Go?"]`)
	})

	variants, err := s.RephraseQuestion(context.Background(), "Why Go?")
	require.NoError(t, err)
	assert.Equal(t, []string{"What draws you to Go?", "Why pick Go?", "How did you come to Go?"}, variants)
}

func TestIsRateLimitError(t *testing.T) {
	cases := map[string]bool{
		"429 rate limit exceeded": true,
		"RESOURCE_EXHAUSTED":      true,
		"quota exceeded":          true,
		"other error":             false,
	}
	for input, expect := range cases {
		assert.Equal(t, expect, isRateLimitError(errors.New(input)), input)
	}
	assert.False(t, isRateLimitError(nil))
}
