package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"cogniview/internal/model"
)

type IEvaluation interface {
	GetBySession(ctx context.Context, sessionID string) (*model.EvaluationResult, error)
	Create(ctx context.Context, result *model.EvaluationResult) error
}

type SqlEvaluation struct {
	db *sql.DB
}

func NewEvaluationRepository(db *sql.DB) IEvaluation {
	return &SqlEvaluation{db: db}
}

func (r *SqlEvaluation) GetBySession(ctx context.Context, sessionID string) (*model.EvaluationResult, error) {
	var (
		e                model.EvaluationResult
		scores, analysis []byte
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT `id`, `response_id`, `session_id`, `overall_score`, `parameter_scores`, `analysis`, `created_at` "+
			"FROM `evaluation_results` WHERE `session_id` = ?", sessionID).
		Scan(&e.ID, &e.ResponseID, &e.SessionID, &e.OverallScore, &scores, &analysis, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("evaluation for session %s: %w", sessionID, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scores, &e.ParameterScores); err != nil {
		return nil, fmt.Errorf("unmarshal parameter scores: %w", err)
	}
	if err := json.Unmarshal(analysis, &e.Analysis); err != nil {
		return nil, fmt.Errorf("unmarshal analysis: %w", err)
	}
	return &e, nil
}

// Create inserts a result. A second result for the same session is rejected with ErrDuplicate.
func (r *SqlEvaluation) Create(ctx context.Context, e *model.EvaluationResult) error {
	scores, err := json.Marshal(e.ParameterScores)
	if err != nil {
		return err
	}
	analysis, err := json.Marshal(e.Analysis)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO `evaluation_results` (`id`, `response_id`, `session_id`, `overall_score`, `parameter_scores`, `analysis`, `created_at`) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.ResponseID, e.SessionID, e.OverallScore, scores, analysis, e.CreatedAt.UTC())
	if isDuplicate(err) {
		return fmt.Errorf("evaluation for session %s: %w", e.SessionID, ErrDuplicate)
	}
	return err
}
