package model

import (
	"fmt"
	"time"
)

type SessionStatus string

const (
	SessionInProgress      SessionStatus = "in_progress"
	SessionCompleted       SessionStatus = "completed"
	SessionAbandoned       SessionStatus = "abandoned"
	SessionTerminatedEarly SessionStatus = "terminated_early"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionInProgress, SessionCompleted, SessionAbandoned, SessionTerminatedEarly:
		return true
	}
	return false
}

// Final reports whether no further status transition is allowed.
func (s SessionStatus) Final() bool {
	return s == SessionCompleted || s == SessionTerminatedEarly || s == SessionAbandoned
}

type Decision string

const (
	DecisionPending Decision = "pending"
	DecisionPassed  Decision = "passed"
	DecisionFailed  Decision = "failed"
)

func (d Decision) Valid() bool {
	switch d {
	case DecisionPending, DecisionPassed, DecisionFailed:
		return true
	}
	return false
}

func illegal(from, to SessionStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}

// Complete marks a normal end of the interview. Decision is left untouched.
func (s *InterviewSession) Complete(at time.Time) error {
	if s.Status != SessionInProgress {
		return illegal(s.Status, SessionCompleted)
	}
	s.Status = SessionCompleted
	s.CompletedAt = &at
	return nil
}

// Terminate ends the session on an integrity violation and forces the decision to failed.
func (s *InterviewSession) Terminate(at time.Time, reason string) error {
	if s.Status != SessionInProgress {
		return illegal(s.Status, SessionTerminatedEarly)
	}
	if reason == "" {
		return Invalid("termination reason is required")
	}
	s.Status = SessionTerminatedEarly
	s.CompletedAt = &at
	s.TerminationReason = reason
	s.Decision = DecisionFailed
	return nil
}

// Abandon closes a session that was never finished.
func (s *InterviewSession) Abandon(at time.Time) error {
	if s.Status != SessionInProgress {
		return illegal(s.Status, SessionAbandoned)
	}
	s.Status = SessionAbandoned
	s.CompletedAt = &at
	return nil
}

// Decide records a reviewer decision. Only passed and failed may be set explicitly.
func (s *InterviewSession) Decide(d Decision) error {
	if d != DecisionPassed && d != DecisionFailed {
		return Invalid("decision must be passed or failed, got %q", d)
	}
	s.Decision = d
	return nil
}
