package repo

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrDuplicate is returned when a unique key rejects an insert.
var ErrDuplicate = errors.New("duplicate key")

type Repository struct {
	Profile    IProfile
	Interview  IInterview
	Session    ISession
	Response   IResponse
	Evaluation IEvaluation
}

func New(db *sql.DB) *Repository {
	return &Repository{
		Profile:    NewProfileRepository(db),
		Interview:  NewInterviewRepository(db),
		Session:    NewSessionRepository(db),
		Response:   NewResponseRepository(db),
		Evaluation: NewEvaluationRepository(db),
	}
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
