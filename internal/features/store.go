package features

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"cogniview/internal/model"
	"cogniview/internal/room"
	gen "cogniview/internal/utils/generator"
)

const pendingTerminationTTL = 7 * 24 * time.Hour

var speakerLabels = map[room.Speaker]string{
	room.SpeakerAgent:     "Interviewer",
	room.SpeakerCandidate: "Candidate",
}

// roomStore writes the terminal outcome of a room back to the session record.
type roomStore struct {
	s *Cogniview
}

// RoomStore returns the persistence side of a live room.
func (s *Cogniview) RoomStore() room.Store {
	return &roomStore{s: s}
}

func formatTranscript(lines []room.TranscriptLine) string {
	var b strings.Builder
	for _, l := range lines {
		text := strings.TrimSpace(l.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		label, ok := speakerLabels[l.Speaker]
		if !ok {
			label = string(l.Speaker)
		}
		b.WriteString(label + ": " + text)
	}
	return b.String()
}

// Complete and Terminate work on a copy so a failed write leaves the caller's session untouched and retryable.
func (rs *roomStore) Complete(ctx context.Context, session *model.InterviewSession, transcript []room.TranscriptLine) error {
	now := rs.s.now()
	next := *session
	if err := next.Complete(now); err != nil {
		return err
	}
	response := &model.InterviewResponse{
		ID:           gen.GenerateUUID(),
		SessionID:    next.ID,
		QuestionID:   model.TranscriptQuestionID,
		QuestionText: model.TranscriptQuestionText,
		ResponseText: formatTranscript(transcript),
		Timestamp:    now,
	}
	if err := rs.s.repo.Session.Finish(ctx, &next, response); err != nil {
		return err
	}
	// the decision may have been set while the room was live
	if stored, err := rs.s.repo.Session.Get(ctx, next.ID); err == nil {
		next = *stored
	}
	*session = next

	rs.s.logger.Info("Session completed",
		zap.String("sessionId", session.ID),
		zap.Int("transcriptLines", len(transcript)))
	rs.finished(ctx, session, "session_completed")
	return nil
}

func (rs *roomStore) Terminate(ctx context.Context, session *model.InterviewSession, reason string) error {
	next := *session
	if err := next.Terminate(rs.s.now(), reason); err != nil {
		return err
	}
	if err := rs.s.repo.Session.Finish(ctx, &next, nil); err != nil {
		if !errors.Is(err, model.ErrIllegalTransition) {
			rs.s.holdTermination(ctx, next.ID, reason)
		}
		return err
	}
	rs.s.releaseTermination(ctx, next.ID)
	*session = next

	rs.s.logger.Warn("Session terminated",
		zap.String("sessionId", session.ID),
		zap.String("reason", reason))
	rs.finished(ctx, session, "session_terminated")
	return nil
}

func (rs *roomStore) finished(ctx context.Context, session *model.InterviewSession, kind string) {
	rs.s.publish(ctx, QueueSessionFinished, session, session.TerminationReason)

	interview, err := rs.s.repo.Interview.Get(ctx, session.InterviewID)
	if err != nil {
		rs.s.logger.Debug("Skipping recruiter notification", zap.String("sessionId", session.ID), zap.Error(err))
		return
	}
	rs.s.notify(interview.RecruiterID, kind, session)
}

func pendingTerminationKey(sessionID string) string {
	return "termination:" + sessionID
}

// holdTermination records a termination whose write failed so the session cannot be resumed before it lands.
func (s *Cogniview) holdTermination(ctx context.Context, sessionID, reason string) {
	ctx = context.WithoutCancel(ctx)
	if _, err := s.redis.Set(ctx, pendingTerminationKey(sessionID), reason, pendingTerminationTTL); err != nil {
		s.logger.Error("Failed to hold pending termination", zap.String("sessionId", sessionID), zap.Error(err))
	}
}

func (s *Cogniview) releaseTermination(ctx context.Context, sessionID string) {
	if _, err := s.redis.Delete(context.WithoutCancel(ctx), pendingTerminationKey(sessionID)); err != nil {
		s.logger.Warn("Failed to release pending termination", zap.String("sessionId", sessionID), zap.Error(err))
	}
}

// settle applies a held termination to an in-progress session and returns the session as callers must treat it.
// When the write fails again the returned copy is still terminated so the session is never resumed.
func (s *Cogniview) settle(ctx context.Context, session *model.InterviewSession) *model.InterviewSession {
	if session.Status != model.SessionInProgress {
		return session
	}
	raw, err := s.redis.Get(ctx, pendingTerminationKey(session.ID))
	if err != nil {
		s.logger.Warn("Pending termination lookup failed", zap.String("sessionId", session.ID), zap.Error(err))
		return session
	}
	if raw == nil {
		return session
	}
	var reason string
	if err := json.Unmarshal(raw, &reason); err != nil || reason == "" {
		reason = string(raw)
	}

	next := *session
	if err := next.Terminate(s.now(), reason); err != nil {
		return session
	}
	err = s.repo.Session.Finish(ctx, &next, nil)
	switch {
	case err == nil:
		s.releaseTermination(ctx, session.ID)
		s.logger.Warn("Held termination stored", zap.String("sessionId", session.ID), zap.String("reason", reason))
		s.publish(ctx, QueueSessionFinished, &next, reason)
	case errors.Is(err, model.ErrIllegalTransition):
		s.releaseTermination(ctx, session.ID)
		if stored, err := s.repo.Session.Get(ctx, session.ID); err == nil {
			return stored
		}
	default:
		s.logger.Error("Failed to store held termination", zap.String("sessionId", session.ID), zap.Error(err))
	}
	return &next
}
