package repo

import (
	"context"
	"database/sql"

	"cogniview/internal/model"
	"cogniview/internal/utils/tx"
)

type IResponse interface {
	ListBySession(ctx context.Context, sessionID string) ([]*model.InterviewResponse, error)
}

type SqlResponse struct {
	db *sql.DB
}

func NewResponseRepository(db *sql.DB) IResponse {
	return &SqlResponse{db: db}
}

func (r *SqlResponse) ListBySession(ctx context.Context, sessionID string) ([]*model.InterviewResponse, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT `id`, `session_id`, `question_id`, `question_text`, `response_text`, `timestamp` "+
			"FROM `interview_responses` WHERE `session_id` = ? ORDER BY `timestamp`", sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []*model.InterviewResponse
	for rows.Next() {
		var resp model.InterviewResponse
		if err := rows.Scan(&resp.ID, &resp.SessionID, &resp.QuestionID, &resp.QuestionText, &resp.ResponseText, &resp.Timestamp); err != nil {
			return nil, err
		}
		responses = append(responses, &resp)
	}
	return responses, rows.Err()
}

func insertResponse(ctx context.Context, q tx.Querier, resp *model.InterviewResponse) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO `interview_responses` (`id`, `session_id`, `question_id`, `question_text`, `response_text`, `timestamp`) "+
			"VALUES (?, ?, ?, ?, ?, ?)",
		resp.ID, resp.SessionID, resp.QuestionID, resp.QuestionText, resp.ResponseText, resp.Timestamp.UTC())
	return err
}
