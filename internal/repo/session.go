package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cogniview/internal/model"
	"cogniview/internal/utils/sort"
	"cogniview/internal/utils/tx"
)

type ISession interface {
	Create(ctx context.Context, session *model.InterviewSession) error
	Get(ctx context.Context, id string) (*model.InterviewSession, error)
	GetByCandidateAndInterview(ctx context.Context, candidateID, interviewID string) (*model.InterviewSession, error)
	ListByCandidate(ctx context.Context, candidateID string) ([]*model.InterviewSession, error)
	ListByInterview(ctx context.Context, interviewID string, sorts []sort.Method) ([]*model.InterviewSession, error)
	Stats(ctx context.Context, interviewID string) (*model.InterviewStats, error)
	// UpdateDecision writes the decision column only.
	UpdateDecision(ctx context.Context, id string, decision model.Decision) error
	// Finish moves an in-progress session to the final status carried by session and stores the
	// transcript response, if any, in the same transaction. Only the columns that status owns are written.
	// It returns ErrIllegalTransition when the stored session is no longer in progress.
	Finish(ctx context.Context, session *model.InterviewSession, response *model.InterviewResponse) error
	ListStale(ctx context.Context, startedBefore time.Time, limit int) ([]*model.InterviewSession, error)
}

// SessionSortColumns are the columns a caller may order session lists by.
var SessionSortColumns = []string{"started_at", "completed_at", "candidate_name", "status", "decision"}

type SqlSession struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) ISession {
	return &SqlSession{db: db}
}

const sessionColumns = "`id`, `interview_id`, `interview_title`, `company_name`, `candidate_id`, `candidate_name`, " +
	"`candidate_email`, `status`, `decision`, `started_at`, `completed_at`, `termination_reason`"

func (r *SqlSession) Create(ctx context.Context, s *model.InterviewSession) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO `interview_sessions` ("+sessionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		s.ID, s.InterviewID, s.InterviewTitle, s.CompanyName, s.CandidateID, s.CandidateName, s.CandidateEmail,
		string(s.Status), string(s.Decision), s.StartedAt.UTC(), nullTime(s.CompletedAt), nullString(s.TerminationReason))
	if isDuplicate(err) {
		return fmt.Errorf("session for candidate %s: %w", s.CandidateID, ErrDuplicate)
	}
	return err
}

func (r *SqlSession) Get(ctx context.Context, id string) (*model.InterviewSession, error) {
	return scanSession(r.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM `interview_sessions` WHERE `id` = ?", id))
}

func (r *SqlSession) GetByCandidateAndInterview(ctx context.Context, candidateID, interviewID string) (*model.InterviewSession, error) {
	return scanSession(r.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM `interview_sessions` WHERE `candidate_id` = ? AND `interview_id` = ?",
		candidateID, interviewID))
}

func (r *SqlSession) ListByCandidate(ctx context.Context, candidateID string) ([]*model.InterviewSession, error) {
	return r.list(ctx, "SELECT "+sessionColumns+" FROM `interview_sessions` WHERE `candidate_id` = ? ORDER BY `started_at` DESC",
		candidateID)
}

func (r *SqlSession) ListByInterview(ctx context.Context, interviewID string, sorts []sort.Method) ([]*model.InterviewSession, error) {
	order, err := sort.GetSort(SessionSortColumns, "interview_sessions", sorts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	if order == "" {
		order = " ORDER BY `interview_sessions`.`started_at` DESC"
	}
	return r.list(ctx, "SELECT "+sessionColumns+" FROM `interview_sessions` WHERE `interview_id` = ?"+order, interviewID)
}

func (r *SqlSession) Stats(ctx context.Context, interviewID string) (*model.InterviewStats, error) {
	var st model.InterviewStats
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*), "+
			"COALESCE(SUM(`decision` = 'passed'), 0), "+
			"COALESCE(SUM(`decision` = 'failed'), 0), "+
			"COALESCE(SUM(`decision` = 'pending'), 0), "+
			"COALESCE(SUM(`status` = 'terminated_early'), 0) "+
			"FROM `interview_sessions` WHERE `interview_id` = ?", interviewID).
		Scan(&st.Entries, &st.Passed, &st.Failed, &st.Pending, &st.Flagged)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *SqlSession) UpdateDecision(ctx context.Context, id string, decision model.Decision) error {
	res, err := r.db.ExecContext(ctx, "UPDATE `interview_sessions` SET `decision` = ? WHERE `id` = ?", string(decision), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// MySQL reports 0 for unchanged rows too, so confirm the row exists.
		if _, err := sessionState(ctx, r.db, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *SqlSession) Finish(ctx context.Context, s *model.InterviewSession, response *model.InterviewResponse) error {
	if !s.Status.Final() {
		return fmt.Errorf("%w: finish with status %s", model.ErrIllegalTransition, s.Status)
	}
	return tx.WithTransaction(ctx, r.db, func(ctx context.Context, t *sql.Tx) error {
		if err := finishSession(ctx, t, s); err != nil {
			return err
		}
		if response != nil {
			return insertResponse(ctx, t, response)
		}
		return nil
	})
}

func (r *SqlSession) ListStale(ctx context.Context, startedBefore time.Time, limit int) ([]*model.InterviewSession, error) {
	return r.list(ctx,
		"SELECT "+sessionColumns+" FROM `interview_sessions` WHERE `status` = ? AND `started_at` < ? ORDER BY `started_at` LIMIT ?",
		string(model.SessionInProgress), startedBefore.UTC(), limit)
}

func (r *SqlSession) list(ctx context.Context, query string, args ...any) ([]*model.InterviewSession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*model.InterviewSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// finishSession is a guarded status transition. A terminated session also gets its reason and a failed decision;
// any other final status leaves the decision as stored.
func finishSession(ctx context.Context, q tx.Querier, s *model.InterviewSession) error {
	query := "UPDATE `interview_sessions` SET `status` = ?, `completed_at` = ?"
	args := []any{string(s.Status), nullTime(s.CompletedAt)}
	if s.Status == model.SessionTerminatedEarly {
		query += ", `termination_reason` = ?, `decision` = ?"
		args = append(args, nullString(s.TerminationReason), string(model.DecisionFailed))
	}
	query += " WHERE `id` = ? AND `status` = ?"
	args = append(args, s.ID, string(model.SessionInProgress))

	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	current, err := sessionState(ctx, q, s.ID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", model.ErrIllegalTransition, current, s.Status)
}

func sessionState(ctx context.Context, q tx.Querier, id string) (model.SessionStatus, error) {
	var status string
	err := q.QueryRowContext(ctx, "SELECT `status` FROM `interview_sessions` WHERE `id` = ?", id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}
	return model.SessionStatus(status), err
}

func scanSession(row scanner) (*model.InterviewSession, error) {
	var (
		s                model.InterviewSession
		status, decision string
		completedAt      sql.NullTime
		reason           sql.NullString
	)
	err := row.Scan(&s.ID, &s.InterviewID, &s.InterviewTitle, &s.CompanyName, &s.CandidateID, &s.CandidateName,
		&s.CandidateEmail, &status, &decision, &s.StartedAt, &completedAt, &reason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session: %w", model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	s.Status = model.SessionStatus(status)
	s.Decision = model.Decision(decision)
	if completedAt.Valid {
		t := completedAt.Time
		s.CompletedAt = &t
	}
	s.TerminationReason = reason.String
	return &s, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
