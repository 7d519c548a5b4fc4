package features

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"cogniview/internal/model"
	"cogniview/internal/repo"
	"cogniview/internal/room"
	"cogniview/internal/utils/checker"
	gen "cogniview/internal/utils/generator"
	"cogniview/internal/utils/sort"
	"cogniview/internal/utils/sse"
)

// SessionEvent is published on QueueSessionFinished and QueueCandidateDecided.
type SessionEvent struct {
	SessionID   string              `json:"sessionId"`
	InterviewID string              `json:"interviewId"`
	CandidateID string              `json:"candidateId"`
	Status      model.SessionStatus `json:"status"`
	Decision    model.Decision      `json:"decision"`
	Reason      string              `json:"reason,omitempty"`
	At          time.Time           `json:"at"`
}

func redeemLockKey(candidateID, interviewID string) string {
	return "redeem:" + candidateID + ":" + interviewID
}

// RedeemAccessCode resolves an access code into the caller's session for that interview.
// An in-progress session is resumed; a finished one blocks re-entry.
func (s *Cogniview) RedeemAccessCode(ctx context.Context, caller Caller, code string) (*model.InterviewSession, error) {
	if err := checker.CheckRole(model.RoleInterviewee, caller.Roles); err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, model.Invalid("access code is required")
	}

	interview, err := s.repo.Interview.GetByAccessCode(ctx, code)
	if errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("%w: invalid access code", model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if interview.Status != model.InterviewActive {
		return nil, model.ErrInterviewClosed
	}

	if existing, err := s.existingSession(ctx, caller.ID, interview.ID); existing != nil || err != nil {
		return existing, err
	}

	lockKey := redeemLockKey(caller.ID, interview.ID)
	locked, err := s.redis.SetNX(ctx, lockKey, "1", s.opts.RedeemLockTTL)
	if err != nil {
		s.logger.Warn("Redeem lock unavailable, relying on storage constraint", zap.Error(err))
		locked = true
	}
	if !locked {
		return nil, model.ErrDuplicateSession
	}
	defer func() {
		if _, err := s.redis.Delete(context.WithoutCancel(ctx), lockKey); err != nil {
			s.logger.Warn("Failed to release redeem lock", zap.String("key", lockKey), zap.Error(err))
		}
	}()

	name, email := caller.Name, caller.Email
	if p, err := s.repo.Profile.Get(ctx, caller.ID); err == nil {
		name, email = p.Name, p.Email
	}

	session := &model.InterviewSession{
		ID:             gen.GenerateUUID(),
		InterviewID:    interview.ID,
		InterviewTitle: interview.Title,
		CompanyName:    interview.CompanyName,
		CandidateID:    caller.ID,
		CandidateName:  name,
		CandidateEmail: email,
		Status:         model.SessionInProgress,
		Decision:       model.DecisionPending,
		StartedAt:      s.now(),
	}
	if err := s.repo.Session.Create(ctx, session); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			if existing, err := s.existingSession(ctx, caller.ID, interview.ID); existing != nil || err != nil {
				return existing, err
			}
		}
		s.logger.Error("Failed to create session", zap.String("interviewId", interview.ID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("Session started",
		zap.String("sessionId", session.ID),
		zap.String("interviewId", interview.ID),
		zap.String("candidateId", caller.ID))
	s.notify(interview.RecruiterID, "session_started", session)
	return session, nil
}

// existingSession returns the resumable session, ErrAlreadyCompleted, or nothing.
func (s *Cogniview) existingSession(ctx context.Context, candidateID, interviewID string) (*model.InterviewSession, error) {
	existing, err := s.repo.Session.GetByCandidateAndInterview(ctx, candidateID, interviewID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if existing = s.settle(ctx, existing); existing.Status != model.SessionInProgress {
		return nil, model.ErrAlreadyCompleted
	}
	return existing, nil
}

func (s *Cogniview) ListCandidateSessions(ctx context.Context, caller Caller) ([]*model.InterviewSession, error) {
	if err := checker.CheckRole(model.RoleInterviewee, caller.Roles); err != nil {
		return nil, err
	}
	return s.repo.Session.ListByCandidate(ctx, caller.ID)
}

// IssueRoomToken grants the caller a short-lived token for the room of an in-progress session.
func (s *Cogniview) IssueRoomToken(ctx context.Context, caller Caller, sessionID string) (string, time.Time, error) {
	if err := checker.CheckRole(model.RoleInterviewee, caller.Roles); err != nil {
		return "", time.Time{}, err
	}
	if _, err := s.RoomContext(ctx, caller.ID, sessionID); err != nil {
		return "", time.Time{}, err
	}
	if s.tokens == nil {
		return "", time.Time{}, errors.New("room tokens are not configured")
	}
	return s.tokens.Issue(caller.ID, sessionID)
}

// RoomContext resolves what a room needs for the candidate holding a room token.
func (s *Cogniview) RoomContext(ctx context.Context, candidateID, sessionID string) (*room.SessionContext, error) {
	sc, err := room.LoadContext(ctx, s.repo.Session, s.repo.Interview, candidateID, sessionID)
	if err != nil {
		return nil, err
	}
	if s.settle(ctx, sc.Session).Status != model.SessionInProgress {
		return nil, model.ErrNoActiveSession
	}
	return sc, nil
}

// ParseRoomToken validates a room token and returns the candidate and session it grants.
func (s *Cogniview) ParseRoomToken(raw string) (candidateID, sessionID string, err error) {
	if s.tokens == nil {
		return "", "", model.ErrUnauthenticated
	}
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", model.ErrUnauthenticated, err)
	}
	return claims.Subject, claims.SessionID, nil
}

func (s *Cogniview) ListInterviewSessions(ctx context.Context, caller Caller, interviewID, sortExpr string) ([]*model.InterviewSession, error) {
	if _, err := s.ownedInterview(ctx, caller, interviewID); err != nil {
		return nil, err
	}
	sorts, err := sort.Parse(sortExpr)
	if err != nil {
		return nil, err
	}
	return s.repo.Session.ListByInterview(ctx, interviewID, sorts)
}

func (s *Cogniview) InterviewStats(ctx context.Context, caller Caller, interviewID string) (*model.InterviewStats, error) {
	if _, err := s.ownedInterview(ctx, caller, interviewID); err != nil {
		return nil, err
	}
	return s.repo.Session.Stats(ctx, interviewID)
}

// ownedSession loads a session whose interview the caller manages.
func (s *Cogniview) ownedSession(ctx context.Context, caller Caller, sessionID string) (*model.InterviewSession, *model.Interview, error) {
	if err := checker.CheckRole(model.RoleRecruiter, caller.Roles); err != nil {
		return nil, nil, err
	}
	session, err := s.repo.Session.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	interview, err := s.ownedInterview(ctx, caller, session.InterviewID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil, model.ErrInterviewMissing
	}
	if err != nil {
		return nil, nil, err
	}
	return session, interview, nil
}

// UpdateDecision records the reviewer verdict. It touches the decision field only.
func (s *Cogniview) UpdateDecision(ctx context.Context, caller Caller, sessionID string, decision model.Decision) (*model.InterviewSession, error) {
	session, interview, err := s.ownedSession(ctx, caller, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.Decide(decision); err != nil {
		return nil, err
	}
	if err := s.repo.Session.UpdateDecision(ctx, sessionID, decision); err != nil {
		s.logger.Error("Failed to save decision", zap.String("sessionId", sessionID), zap.Error(err))
		return nil, err
	}
	if stored, err := s.repo.Session.Get(ctx, sessionID); err == nil {
		session = stored
	}

	s.logger.Info("Decision recorded", zap.String("sessionId", sessionID), zap.String("decision", string(decision)))
	s.publish(ctx, QueueCandidateDecided, session, "")
	s.notify(interview.RecruiterID, "decision_updated", session)
	return session, nil
}

func (s *Cogniview) publish(ctx context.Context, queue string, session *model.InterviewSession, reason string) {
	body, err := json.Marshal(SessionEvent{
		SessionID:   session.ID,
		InterviewID: session.InterviewID,
		CandidateID: session.CandidateID,
		Status:      session.Status,
		Decision:    session.Decision,
		Reason:      reason,
		At:          s.now(),
	})
	if err != nil {
		s.logger.Error("Failed to marshal session event", zap.Error(err))
		return
	}
	if err := s.rabbit.Publish(ctx, queue, body); err != nil {
		s.logger.Error("Failed to publish session event", zap.String("queue", queue), zap.Error(err))
	}
}

func (s *Cogniview) notify(recruiterID, kind string, session *model.InterviewSession) {
	if recruiterID == "" {
		return
	}
	s.hub.SendToUser(recruiterID, sse.Notification{
		"type":        kind,
		"sessionId":   session.ID,
		"interviewId": session.InterviewID,
		"candidate":   session.CandidateName,
		"status":      session.Status,
		"decision":    session.Decision,
	})
}
