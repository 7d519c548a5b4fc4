package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"cogniview/internal/model"
)

const providerGemini = "gemini"

// Scorecard is the raw structured verdict returned by the scoring model.
type Scorecard struct {
	OverallScore    float64            `json:"overallScore"`
	ParameterScores map[string]float64 `json:"parameterScores"`
	Analysis        model.Analysis     `json:"analysis"`
}

// Scorer talks to Gemini for interview scoring and recruiter assistance.
type Scorer struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	prompts prompts
	logger  *zap.Logger
}

func NewGeminiClient(ctx context.Context, cfg *GeminiConfig) (*genai.Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" || cfg.APIVersion != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL, APIVersion: cfg.APIVersion}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, &ProviderError{
			Provider: providerGemini,
			Code:     ErrCodeAPIKey,
			Message:  "Failed to create Gemini client",
			Err:      err,
		}
	}
	return client, nil
}

func NewScorer(client *genai.Client, cfg *GeminiConfig, logger *zap.Logger) (*Scorer, error) {
	p, err := loadPrompts()
	if err != nil {
		return nil, err
	}
	return &Scorer{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		prompts: p,
		logger:  logger,
	}, nil
}

// Score asks the model for one score per parameter plus a written analysis.
func (s *Scorer) Score(ctx context.Context, jobRole string, params []model.EvaluationParameter, transcript []model.TranscriptPair) (*Scorecard, error) {
	var paramList strings.Builder
	paramProps := make(map[string]*genai.Schema, len(params))
	required := make([]string, 0, len(params))
	for _, p := range params {
		fmt.Fprintf(&paramList, "%s (Weight: %d%%): %s\n", p.Name, p.Weight, p.Description)
		paramProps[p.Name] = &genai.Schema{Type: genai.TypeNumber}
		required = append(required, p.Name)
	}

	pairs := make([]string, 0, len(transcript))
	for _, t := range transcript {
		pairs = append(pairs, "Q: "+t.Question+"\nA: "+t.Answer)
	}

	prompt, err := s.prompts.build(promptEvaluate,
		"job_role", jobRole,
		"parameters", strings.TrimRight(paramList.String(), "\n"),
		"transcript", strings.Join(pairs, "\n\n"),
	)
	if err != nil {
		return nil, err
	}

	schema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"overallScore":    {Type: genai.TypeNumber},
			"parameterScores": {Type: genai.TypeObject, Properties: paramProps, Required: required},
			"analysis":        analysisSchema(),
		},
		Required: []string{"overallScore", "parameterScores", "analysis"},
	}

	var card Scorecard
	if err := s.generateJSON(ctx, prompt, schema, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func analysisSchema() *genai.Schema {
	str := func() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary": str(),
			"strengths": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"title":       str(),
						"description": str(),
						"evidence":    str(),
					},
				},
			},
			"weaknesses": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"title":       str(),
						"description": str(),
						"suggestions": str(),
					},
				},
			},
			"recommendation": str(),
			"confidence":     {Type: genai.TypeNumber},
		},
	}
}

// SuggestParameters proposes four weighted evaluation parameters for a job role.
// Weights are rounded and adjusted so they sum to 100.
func (s *Scorer) SuggestParameters(ctx context.Context, jobRole string) ([]model.EvaluationParameter, error) {
	prompt, err := s.prompts.build(promptParameters, "job_role", jobRole)
	if err != nil {
		return nil, err
	}
	schema := &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"name":        {Type: genai.TypeString},
				"description": {Type: genai.TypeString},
				"weight":      {Type: genai.TypeNumber},
			},
			Required: []string{"name", "description", "weight"},
		},
	}

	var raw []struct {
		Name        string  `json:"name"`
		Description string  `json:"description"`
		Weight      float64 `json:"weight"`
	}
	if err := s.generateJSON(ctx, prompt, schema, &raw); err != nil {
		return nil, err
	}

	out := make([]model.EvaluationParameter, 0, len(raw))
	total := 0
	for _, r := range raw {
		if strings.TrimSpace(r.Name) == "" {
			continue
		}
		w := int(math.Round(math.Max(r.Weight, 0)))
		total += w
		out = append(out, model.EvaluationParameter{Name: r.Name, Description: r.Description, Weight: w})
	}
	if n := len(out); n > 0 && total != 100 {
		out[n-1].Weight = max(0, out[n-1].Weight+100-total)
	}
	return out, nil
}

// RephraseQuestion returns alternative phrasings of one question.
func (s *Scorer) RephraseQuestion(ctx context.Context, question string) ([]string, error) {
	prompt, err := s.prompts.build(promptRephrase, "question", question)
	if err != nil {
		return nil, err
	}
	schema := &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}

	var variants []string
	if err := s.generateJSON(ctx, prompt, schema, &variants); err != nil {
		return nil, err
	}
	out := variants[:0]
	for _, v := range variants {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *Scorer) generateJSON(ctx context.Context, prompt string, schema *genai.Schema, dst any) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return &ProviderError{
			Provider: providerGemini,
			Code:     providerCode(err),
			Message:  "Failed to generate content",
			Err:      err,
		}
	}
	if result == nil {
		return &ProviderError{Provider: providerGemini, Code: ErrCodeBadResponse, Message: "No response generated"}
	}

	text := result.Text()
	if text == "" {
		return &ProviderError{Provider: providerGemini, Code: ErrCodeBadResponse, Message: "Empty response generated"}
	}
	if err := json.Unmarshal([]byte(text), dst); err != nil {
		return &ProviderError{
			Provider: providerGemini,
			Code:     ErrCodeBadResponse,
			Message:  "Response is not valid JSON",
			Err:      err,
		}
	}

	s.logger.Debug("Gemini request completed",
		zap.String("model", s.model),
		zap.Duration("latency", time.Since(start)))
	return nil
}
