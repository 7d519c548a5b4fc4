package room

import (
	"context"
	"errors"
	"fmt"

	"cogniview/internal/model"
	"cogniview/internal/repo"
)

// SessionContext is what a room needs to run: the immutable script and the mutable session.
type SessionContext struct {
	Interview *model.Interview
	Session   *model.InterviewSession
}

// LoadContext resolves the candidate's in-progress session and its interview.
// When sessionID is empty the most recently started in-progress session is used.
func LoadContext(ctx context.Context, sessions repo.ISession, interviews repo.IInterview, candidateID, sessionID string) (*SessionContext, error) {
	var active *model.InterviewSession
	if sessionID != "" {
		s, err := sessions.Get(ctx, sessionID)
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrNoActiveSession
		}
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		if s.CandidateID != candidateID || s.Status != model.SessionInProgress {
			return nil, model.ErrNoActiveSession
		}
		active = s
	} else {
		list, err := sessions.ListByCandidate(ctx, candidateID)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		for _, s := range list {
			if s.Status == model.SessionInProgress {
				active = s
				break
			}
		}
		if active == nil {
			return nil, model.ErrNoActiveSession
		}
	}

	interview, err := interviews.Get(ctx, active.InterviewID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrInterviewMissing
	}
	if err != nil {
		return nil, fmt.Errorf("load interview: %w", err)
	}

	return &SessionContext{Interview: interview, Session: active}, nil
}
