package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cogniview/internal/model"
)

type IInterview interface {
	Create(ctx context.Context, interview *model.Interview) error
	Get(ctx context.Context, id string) (*model.Interview, error)
	GetByAccessCode(ctx context.Context, code string) (*model.Interview, error)
	ListByRecruiter(ctx context.Context, recruiterID string) ([]*model.Interview, error)
	UpdateStatus(ctx context.Context, id string, status model.InterviewStatus) error
	AccessCodeExists(ctx context.Context, code string) (bool, error)
}

type SqlInterview struct {
	db *sql.DB
}

func NewInterviewRepository(db *sql.DB) IInterview {
	return &SqlInterview{db: db}
}

const interviewColumns = "`id`, `recruiter_id`, `company_name`, `job_role`, `title`, `access_code`, `questions`, `parameters`, `status`, `created_at`"

// Create inserts a new interview. Access codes are stored upper-cased so lookups are case-insensitive.
func (r *SqlInterview) Create(ctx context.Context, interview *model.Interview) error {
	questions, err := json.Marshal(interview.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	parameters, err := json.Marshal(interview.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO `interviews` ("+interviewColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		interview.ID, interview.RecruiterID, interview.CompanyName, interview.JobRole, interview.Title,
		strings.ToUpper(interview.AccessCode), questions, parameters, string(interview.Status), interview.CreatedAt.UTC())
	if isDuplicate(err) {
		return fmt.Errorf("interview %s: %w", interview.ID, ErrDuplicate)
	}
	return err
}

func (r *SqlInterview) Get(ctx context.Context, id string) (*model.Interview, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+interviewColumns+" FROM `interviews` WHERE `id` = ?", id)
	return scanInterview(row)
}

func (r *SqlInterview) GetByAccessCode(ctx context.Context, code string) (*model.Interview, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+interviewColumns+" FROM `interviews` WHERE `access_code` = ?",
		strings.ToUpper(strings.TrimSpace(code)))
	return scanInterview(row)
}

func (r *SqlInterview) ListByRecruiter(ctx context.Context, recruiterID string) ([]*model.Interview, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+interviewColumns+" FROM `interviews` WHERE `recruiter_id` = ? ORDER BY `created_at` DESC", recruiterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var interviews []*model.Interview
	for rows.Next() {
		interview, err := scanInterview(rows)
		if err != nil {
			return nil, err
		}
		interviews = append(interviews, interview)
	}
	return interviews, rows.Err()
}

func (r *SqlInterview) UpdateStatus(ctx context.Context, id string, status model.InterviewStatus) error {
	res, err := r.db.ExecContext(ctx, "UPDATE `interviews` SET `status` = ? WHERE `id` = ?", string(status), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("interview %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (r *SqlInterview) AccessCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM `interviews` WHERE `access_code` = ?)",
		strings.ToUpper(code)).Scan(&exists)
	return exists, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInterview(row scanner) (*model.Interview, error) {
	var (
		i                     model.Interview
		questions, parameters []byte
		status                string
	)
	err := row.Scan(&i.ID, &i.RecruiterID, &i.CompanyName, &i.JobRole, &i.Title, &i.AccessCode,
		&questions, &parameters, &status, &i.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("interview: %w", model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questions, &i.Questions); err != nil {
		return nil, fmt.Errorf("unmarshal questions: %w", err)
	}
	if err := json.Unmarshal(parameters, &i.Parameters); err != nil {
		return nil, fmt.Errorf("unmarshal parameters: %w", err)
	}
	i.Status = model.InterviewStatus(status)
	return &i, nil
}
