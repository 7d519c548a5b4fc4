package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession() *InterviewSession {
	return &InterviewSession{ID: "s1", Status: SessionInProgress, Decision: DecisionPending}
}

func TestTerminateForcesFailedDecision(t *testing.T) {
	s := newSession()
	now := time.Now()

	require.NoError(t, s.Terminate(now, "Candidate switched tabs or lost window focus."))
	assert.Equal(t, SessionTerminatedEarly, s.Status)
	assert.Equal(t, DecisionFailed, s.Decision)
	assert.NotEmpty(t, s.TerminationReason)
	require.NotNil(t, s.CompletedAt)
	assert.True(t, s.CompletedAt.Equal(now))
}

func TestCompleteKeepsDecision(t *testing.T) {
	s := newSession()
	require.NoError(t, s.Complete(time.Now()))
	assert.Equal(t, SessionCompleted, s.Status)
	assert.Equal(t, DecisionPending, s.Decision)
	assert.Empty(t, s.TerminationReason)
}

func TestFinalStatusesRejectTransitions(t *testing.T) {
	s := newSession()
	require.NoError(t, s.Complete(time.Now()))

	assert.ErrorIs(t, s.Terminate(time.Now(), "late"), ErrIllegalTransition)
	assert.ErrorIs(t, s.Complete(time.Now()), ErrIllegalTransition)
	assert.ErrorIs(t, s.Abandon(time.Now()), ErrIllegalTransition)
	assert.Equal(t, SessionCompleted, s.Status)
}

func TestTerminateRequiresReason(t *testing.T) {
	s := newSession()
	assert.ErrorIs(t, s.Terminate(time.Now(), ""), ErrInvalidInput)
	assert.Equal(t, SessionInProgress, s.Status)
}

func TestDecide(t *testing.T) {
	s := newSession()
	assert.ErrorIs(t, s.Decide(DecisionPending), ErrInvalidInput)
	assert.ErrorIs(t, s.Decide("maybe"), ErrInvalidInput)
	require.NoError(t, s.Decide(DecisionPassed))
	assert.Equal(t, DecisionPassed, s.Decision)
}

func TestInterviewValidate(t *testing.T) {
	base := func() *Interview {
		return &Interview{
			JobRole:     "Backend Engineer",
			CompanyName: "Acme",
			Questions:   []Question{{ID: "q1", Text: "Tell me about yourself"}},
			Parameters: []EvaluationParameter{
				{Name: "Communication", Weight: 40},
				{Name: "Technical", Weight: 60},
			},
		}
	}

	assert.NoError(t, base().Validate())

	i := base()
	i.Parameters[0].Weight = 30
	assert.ErrorIs(t, i.Validate(), ErrInvalidInput)

	i = base()
	i.Questions = nil
	assert.ErrorIs(t, i.Validate(), ErrInvalidInput)

	i = base()
	i.Parameters = nil
	assert.NoError(t, i.Validate())

	i = base()
	i.JobRole = " "
	assert.ErrorIs(t, i.Validate(), ErrInvalidInput)
}
