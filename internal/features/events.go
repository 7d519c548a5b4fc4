package features

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"cogniview/internal/model"
	logging "cogniview/pkg/logger/pkg"
)

// ConsumeFinishedSessions prewarms evaluations for completed sessions until ctx is done.
func (s *Cogniview) ConsumeFinishedSessions(ctx context.Context, pool *EvaluationWorkerPool) error {
	return s.rabbit.Consume(ctx, QueueSessionFinished, func(ctx context.Context, msg amqp.Delivery) error {
		return s.handleSessionFinished(ctx, msg.Body, pool)
	})
}

func (s *Cogniview) handleSessionFinished(ctx context.Context, body []byte, pool *EvaluationWorkerPool) error {
	var ev SessionEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		// a malformed message will never succeed; drop it
		logging.Logger(ctx).Warn("Dropping malformed session event", zap.Error(err))
		return nil
	}
	if ev.SessionID == "" {
		return nil
	}
	if ev.Status != model.SessionCompleted {
		return nil
	}
	if !pool.EnqueueJob(EvaluationJob{SessionID: ev.SessionID}) {
		return fmt.Errorf("evaluation queue rejected session %s", ev.SessionID)
	}
	return nil
}

// EvaluationJobHandler scores the session of a job. Flagged and cached sessions are no-ops.
func (s *Cogniview) EvaluationJobHandler() JobHandler {
	return func(ctx context.Context, job EvaluationJob) error {
		_, err := s.evaluator.EvaluateSession(ctx, job.SessionID)
		return err
	}
}
