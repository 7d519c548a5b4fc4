package features

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"cogniview/internal/metrics"
	"cogniview/internal/model"
	"cogniview/internal/repo"
	gen "cogniview/internal/utils/generator"
)

const (
	sourceCache  = "cache"
	sourceStore  = "store"
	sourceScored = "scored"
)

// Evaluation is what the review surface shows for one session.
// A flagged evaluation carries the termination reason and no result.
type Evaluation struct {
	Flagged bool                    `json:"flagged"`
	Reason  string                  `json:"reason,omitempty"`
	Session *model.InterviewSession `json:"session"`
	Result  *model.EvaluationResult `json:"result,omitempty"`
}

// Evaluator scores finished sessions at most once.
type Evaluator struct {
	s     *Cogniview
	group singleflight.Group
}

func newEvaluator(s *Cogniview) *Evaluator {
	return &Evaluator{s: s}
}

func evaluationKey(sessionID string) string {
	return "evaluation:" + sessionID
}

func (s *Cogniview) Evaluate(ctx context.Context, caller Caller, sessionID string) (*Evaluation, error) {
	if _, _, err := s.ownedSession(ctx, caller, sessionID); err != nil {
		return nil, err
	}
	return s.evaluator.EvaluateSession(ctx, sessionID)
}

// EvaluateSession returns the stored evaluation or scores the session once.
// Concurrent calls for the same session share one scoring request.
func (e *Evaluator) EvaluateSession(ctx context.Context, sessionID string) (*Evaluation, error) {
	session, err := e.s.repo.Session.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch session.Status {
	case model.SessionTerminatedEarly:
		return &Evaluation{Flagged: true, Reason: session.TerminationReason, Session: session}, nil
	case model.SessionCompleted:
	default:
		return nil, model.ErrSessionNotFinished
	}

	v, err, _ := e.group.Do(sessionID, func() (any, error) {
		return e.result(context.WithoutCancel(ctx), session)
	})
	if err != nil {
		return nil, err
	}
	return &Evaluation{Session: session, Result: v.(*model.EvaluationResult)}, nil
}

func (e *Evaluator) result(ctx context.Context, session *model.InterviewSession) (*model.EvaluationResult, error) {
	logger := e.s.logger.With(zap.String("sessionId", session.ID))
	key := evaluationKey(session.ID)

	if raw, err := e.s.redis.Get(ctx, key); err != nil {
		logger.Warn("Failed to read cached evaluation", zap.Error(err))
	} else if raw != nil {
		var cached model.EvaluationResult
		if err := json.Unmarshal(raw, &cached); err == nil {
			metrics.Evaluation(sourceCache)
			return &cached, nil
		}
		logger.Warn("Discarding malformed cached evaluation")
	}

	stored, err := e.s.repo.Evaluation.GetBySession(ctx, session.ID)
	if err == nil {
		e.cache(ctx, stored)
		metrics.Evaluation(sourceStore)
		return stored, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}

	result, err := e.score(ctx, session)
	if err != nil {
		logger.Error("Evaluation failed", zap.Error(err))
		return nil, err
	}

	if err := e.s.repo.Evaluation.Create(ctx, result); err != nil {
		if !errors.Is(err, repo.ErrDuplicate) {
			logger.Error("Failed to save evaluation", zap.Error(err))
			return nil, err
		}
		// another instance scored it first
		if result, err = e.s.repo.Evaluation.GetBySession(ctx, session.ID); err != nil {
			return nil, err
		}
	}
	e.cache(ctx, result)
	metrics.Evaluation(sourceScored)
	logger.Info("Session evaluated", zap.Float64("overallScore", result.OverallScore))
	return result, nil
}

func (e *Evaluator) cache(ctx context.Context, result *model.EvaluationResult) {
	if _, err := e.s.redis.Set(ctx, evaluationKey(result.SessionID), result, e.s.opts.CacheTTL); err != nil {
		e.s.logger.Warn("Failed to cache evaluation", zap.String("sessionId", result.SessionID), zap.Error(err))
	}
}

func (e *Evaluator) score(ctx context.Context, session *model.InterviewSession) (*model.EvaluationResult, error) {
	interview, err := e.s.repo.Interview.Get(ctx, session.InterviewID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrInterviewMissing
	}
	if err != nil {
		return nil, err
	}
	responses, err := e.s.repo.Response.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	pairs := make([]model.TranscriptPair, 0, len(responses))
	for _, r := range responses {
		if strings.TrimSpace(r.ResponseText) == "" {
			continue
		}
		pairs = append(pairs, model.TranscriptPair{Question: r.QuestionText, Answer: r.ResponseText})
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: session has no transcript", model.ErrAnalysisFailed)
	}
	if e.s.scorer == nil {
		return nil, fmt.Errorf("%w: scoring is not configured", model.ErrAnalysisFailed)
	}

	start := time.Now()
	card, err := e.s.scorer.Score(ctx, interview.JobRole, interview.Parameters, pairs)
	metrics.ObserveScoring(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrAnalysisFailed, err)
	}

	scores := make(map[string]float64, len(interview.Parameters))
	for _, p := range interview.Parameters {
		v, ok := card.ParameterScores[p.Name]
		if !ok {
			return nil, fmt.Errorf("%w: missing score for %q", model.ErrAnalysisFailed, p.Name)
		}
		scores[p.Name] = clamp(v, 0, 100)
	}
	analysis := card.Analysis
	analysis.Confidence = clamp(analysis.Confidence, 0, 1)

	return &model.EvaluationResult{
		ID:              gen.GenerateUUID(),
		ResponseID:      responses[0].ID,
		SessionID:       session.ID,
		OverallScore:    clamp(card.OverallScore, 0, 100),
		ParameterScores: scores,
		Analysis:        analysis,
		CreatedAt:       e.s.now(),
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
