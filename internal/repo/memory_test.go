package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogniview/internal/model"
	"cogniview/internal/utils/sort"
)

func seedInterview(t *testing.T, r *Repository) *model.Interview {
	t.Helper()
	i := &model.Interview{
		ID:          "iv-1",
		RecruiterID: "rec-1",
		CompanyName: "Acme",
		JobRole:     "Backend Engineer",
		Title:       "Backend Engineer",
		AccessCode:  "ab12cd",
		Questions:   []model.Question{{ID: "q1", Text: "Why Go?"}},
		Status:      model.InterviewActive,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, r.Interview.Create(context.Background(), i))
	return i
}

func TestMemoryAccessCodeIsCaseInsensitive(t *testing.T) {
	r := NewMemory()
	seedInterview(t, r)

	got, err := r.Interview.GetByAccessCode(context.Background(), " Ab12Cd ")
	require.NoError(t, err)
	assert.Equal(t, "iv-1", got.ID)
	assert.Equal(t, "AB12CD", got.AccessCode)

	exists, err := r.Interview.AccessCodeExists(context.Background(), "AB12CD")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = r.Interview.GetByAccessCode(context.Background(), "ZZZZZZ")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemoryInterviewIsCopied(t *testing.T) {
	r := NewMemory()
	seedInterview(t, r)

	got, err := r.Interview.Get(context.Background(), "iv-1")
	require.NoError(t, err)
	got.Questions[0].Text = "mutated"

	again, err := r.Interview.Get(context.Background(), "iv-1")
	require.NoError(t, err)
	assert.Equal(t, "Why Go?", again.Questions[0].Text)
}

func TestMemorySessionUniquePerCandidateAndInterview(t *testing.T) {
	r := NewMemory()
	ctx := context.Background()
	s := &model.InterviewSession{ID: "s1", InterviewID: "iv-1", CandidateID: "c1", Status: model.SessionInProgress, Decision: model.DecisionPending, StartedAt: time.Now()}
	require.NoError(t, r.Session.Create(ctx, s))

	dup := *s
	dup.ID = "s2"
	assert.ErrorIs(t, r.Session.Create(ctx, &dup), ErrDuplicate)
}

func TestMemoryFinishStoresResponseAndStatus(t *testing.T) {
	r := NewMemory()
	ctx := context.Background()
	s := &model.InterviewSession{ID: "s1", InterviewID: "iv-1", CandidateID: "c1", Status: model.SessionInProgress, Decision: model.DecisionPending, StartedAt: time.Now()}
	require.NoError(t, r.Session.Create(ctx, s))

	require.NoError(t, s.Complete(time.Now()))
	resp := &model.InterviewResponse{ID: "r1", SessionID: "s1", QuestionID: model.TranscriptQuestionID, ResponseText: "hello", Timestamp: time.Now()}
	require.NoError(t, r.Session.Finish(ctx, s, resp))

	stored, err := r.Session.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, stored.Status)

	responses, err := r.Response.ListBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "hello", responses[0].ResponseText)
}

func TestMemoryFinishKeepsStoredDecision(t *testing.T) {
	r := NewMemory()
	ctx := context.Background()
	s := &model.InterviewSession{ID: "s1", InterviewID: "iv-1", CandidateID: "c1", Status: model.SessionInProgress, Decision: model.DecisionPending, StartedAt: time.Now()}
	require.NoError(t, r.Session.Create(ctx, s))

	snapshot := *s
	require.NoError(t, r.Session.UpdateDecision(ctx, "s1", model.DecisionPassed))

	require.NoError(t, snapshot.Complete(time.Now()))
	require.NoError(t, r.Session.Finish(ctx, &snapshot, nil))

	stored, err := r.Session.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, stored.Status)
	assert.Equal(t, model.DecisionPassed, stored.Decision)
}

func TestMemoryFinishIsGuarded(t *testing.T) {
	r := NewMemory()
	ctx := context.Background()
	s := &model.InterviewSession{ID: "s1", InterviewID: "iv-1", CandidateID: "c1", Status: model.SessionInProgress, Decision: model.DecisionPending, StartedAt: time.Now()}
	require.NoError(t, r.Session.Create(ctx, s))

	terminated := *s
	require.NoError(t, terminated.Terminate(time.Now(), "Multiple faces detected in frame."))
	require.NoError(t, r.Session.Finish(ctx, &terminated, nil))

	completed := *s
	require.NoError(t, completed.Complete(time.Now()))
	resp := &model.InterviewResponse{ID: "r1", SessionID: "s1", QuestionID: model.TranscriptQuestionID, Timestamp: time.Now()}
	assert.ErrorIs(t, r.Session.Finish(ctx, &completed, resp), model.ErrIllegalTransition)
	assert.ErrorIs(t, r.Session.Finish(ctx, s, nil), model.ErrIllegalTransition)

	stored, err := r.Session.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionTerminatedEarly, stored.Status)
	assert.Equal(t, model.DecisionFailed, stored.Decision)
	assert.Equal(t, "Multiple faces detected in frame.", stored.TerminationReason)

	responses, err := r.Response.ListBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, responses)

	// a later decision changes the decision and nothing else
	require.NoError(t, r.Session.UpdateDecision(ctx, "s1", model.DecisionPassed))
	stored, err = r.Session.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, model.SessionTerminatedEarly, stored.Status)
	assert.Equal(t, model.DecisionPassed, stored.Decision)

	assert.ErrorIs(t, r.Session.UpdateDecision(ctx, "missing", model.DecisionPassed), model.ErrNotFound)
}

func TestMemoryListByInterviewSorting(t *testing.T) {
	r := NewMemory()
	ctx := context.Background()
	base := time.Now()
	for i, name := range []string{"Carol", "alice", "Bob"} {
		require.NoError(t, r.Session.Create(ctx, &model.InterviewSession{
			ID: name, InterviewID: "iv-1", CandidateID: name, CandidateName: name,
			Status: model.SessionInProgress, Decision: model.DecisionPending,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	out, err := r.Session.ListByInterview(ctx, "iv-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bob", out[0].ID)

	out, err = r.Session.ListByInterview(ctx, "iv-1", []sort.Method{{Name: "started_at", Type: sort.Asc}})
	require.NoError(t, err)
	assert.Equal(t, "Carol", out[0].ID)

	_, err = r.Session.ListByInterview(ctx, "iv-1", []sort.Method{{Name: "secret"}})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestMemoryStatsAndStale(t *testing.T) {
	r := NewMemory()
	ctx := context.Background()
	old := time.Now().Add(-3 * time.Hour)
	mk := func(id string, status model.SessionStatus, d model.Decision) {
		require.NoError(t, r.Session.Create(ctx, &model.InterviewSession{
			ID: id, InterviewID: "iv-1", CandidateID: id, Status: status, Decision: d, StartedAt: old,
		}))
	}
	mk("a", model.SessionCompleted, model.DecisionPassed)
	mk("b", model.SessionTerminatedEarly, model.DecisionFailed)
	mk("c", model.SessionInProgress, model.DecisionPending)

	st, err := r.Session.Stats(ctx, "iv-1")
	require.NoError(t, err)
	assert.Equal(t, model.InterviewStats{Entries: 3, Passed: 1, Failed: 1, Pending: 1, Flagged: 1}, *st)

	stale, err := r.Session.ListStale(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "c", stale[0].ID)
}

func TestMemoryEvaluationOncePerSession(t *testing.T) {
	r := NewMemory()
	ctx := context.Background()
	e := &model.EvaluationResult{ID: "e1", SessionID: "s1", ResponseID: "r1", OverallScore: 70}
	require.NoError(t, r.Evaluation.Create(ctx, e))
	assert.ErrorIs(t, r.Evaluation.Create(ctx, &model.EvaluationResult{ID: "e2", SessionID: "s1"}), ErrDuplicate)

	got, err := r.Evaluation.GetBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "e1", got.ID)
}
