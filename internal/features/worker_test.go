package features

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cogniview/internal/model"
)

func testPool(t *testing.T) *EvaluationWorkerPool {
	t.Helper()
	pool := NewEvaluationWorkerPool(PoolConfig{
		Workers:         1,
		QueueSize:       4,
		MaxIdleTime:     50 * time.Millisecond,
		MaxTaskWaitTime: 100 * time.Millisecond,
		JobTimeout:      time.Second,
	}, zap.NewNop())
	t.Cleanup(pool.Stop)
	return pool
}

func TestWorkerPoolProcessesJobs(t *testing.T) {
	pool := testPool(t)
	done := make(chan string, 4)
	pool.Start(func(ctx context.Context, job EvaluationJob) error {
		done <- job.SessionID
		if job.SessionID == "bad" {
			return errors.New("boom")
		}
		return nil
	})

	require.True(t, pool.EnqueueJob(EvaluationJob{SessionID: "s1"}))
	require.True(t, pool.EnqueueJob(EvaluationJob{SessionID: "bad"}))
	assert.Equal(t, "s1", <-done)
	assert.Equal(t, "bad", <-done)

	assert.Eventually(t, func() bool {
		m := pool.GetMetrics()
		return m["total_jobs_processed"].(int64) == 2 && m["total_jobs_failed"].(int64) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestWorkerPoolRespawnsAfterIdle(t *testing.T) {
	pool := testPool(t)
	done := make(chan string, 1)
	pool.Start(func(ctx context.Context, job EvaluationJob) error {
		done <- job.SessionID
		return nil
	})

	assert.Eventually(t, func() bool {
		return pool.GetMetrics()["active_workers"].(int64) == 0
	}, time.Second, 5*time.Millisecond)

	require.True(t, pool.EnqueueJob(EvaluationJob{SessionID: "late"}))
	select {
	case id := <-done:
		assert.Equal(t, "late", id)
	case <-time.After(time.Second):
		t.Fatal("job was not processed after workers went idle")
	}
}

func TestWorkerPoolRecoversPanics(t *testing.T) {
	pool := testPool(t)
	pool.Start(func(ctx context.Context, job EvaluationJob) error {
		panic("scorer exploded")
	})

	require.True(t, pool.EnqueueJob(EvaluationJob{SessionID: "s1"}))
	assert.Eventually(t, func() bool {
		return pool.GetMetrics()["total_jobs_failed"].(int64) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestWorkerPoolRejectsAfterStop(t *testing.T) {
	pool := testPool(t)
	pool.Start(func(ctx context.Context, job EvaluationJob) error { return nil })
	pool.Stop()

	assert.False(t, pool.EnqueueJob(EvaluationJob{SessionID: "s1"}))
	assert.Equal(t, int64(1), pool.GetMetrics()["total_jobs_dropped"])
}

func TestSessionFinishedEventPrewarmsCompletedOnly(t *testing.T) {
	f := newFixture(t)
	pool := testPool(t)
	done := make(chan string, 2)
	pool.Start(func(ctx context.Context, job EvaluationJob) error {
		done <- job.SessionID
		return nil
	})
	ctx := context.Background()

	terminated, _ := json.Marshal(SessionEvent{SessionID: "t1", Status: model.SessionTerminatedEarly})
	require.NoError(t, f.svc.handleSessionFinished(ctx, terminated, pool))

	completed, _ := json.Marshal(SessionEvent{SessionID: "c1", Status: model.SessionCompleted})
	require.NoError(t, f.svc.handleSessionFinished(ctx, completed, pool))

	assert.NoError(t, f.svc.handleSessionFinished(ctx, []byte("{not json"), pool))

	assert.Equal(t, "c1", <-done)
	assert.Len(t, done, 0)
}

func TestEvaluationJobHandlerScoresCompletedSession(t *testing.T) {
	f := newFixture(t)
	sess := f.completed(t)

	require.NoError(t, f.svc.EvaluationJobHandler()(context.Background(), EvaluationJob{SessionID: sess.ID}))
	assert.Equal(t, int32(1), f.scorer.calls.Load())

	got, err := f.svc.Evaluate(context.Background(), recruiter, sess.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.Result)
	assert.Equal(t, int32(1), f.scorer.calls.Load())
}
