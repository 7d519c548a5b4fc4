package features

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"cogniview/internal/metrics"
	"cogniview/internal/model"
)

// SweeperConfig controls the job that abandons sessions nobody finished.
type SweeperConfig struct {
	Schedule   string        // cron spec, e.g. "@every 5m"
	StaleAfter time.Duration // in-progress sessions older than this are abandoned
	BatchSize  int
}

func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{Schedule: "@every 5m", StaleAfter: 3 * time.Hour, BatchSize: 100}
}

// Sweeper marks stale in-progress sessions abandoned on a cron schedule.
type Sweeper struct {
	s      *Cogniview
	cfg    SweeperConfig
	active func(sessionID string) bool
	cron   *cron.Cron
}

// NewSweeper builds a sweeper. active reports sessions whose room is still open; they are never swept.
func (s *Cogniview) NewSweeper(cfg SweeperConfig, active func(sessionID string) bool) *Sweeper {
	def := DefaultSweeperConfig()
	if cfg.Schedule == "" {
		cfg.Schedule = def.Schedule
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = def.StaleAfter
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if active == nil {
		active = func(string) bool { return false }
	}
	return &Sweeper{s: s, cfg: cfg, active: active, cron: cron.New()}
}

func (sw *Sweeper) Start() error {
	_, err := sw.cron.AddFunc(sw.cfg.Schedule, func() {
		if _, err := sw.Sweep(context.Background()); err != nil {
			sw.s.logger.Error("Session sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule session sweeper: %w", err)
	}
	sw.cron.Start()
	sw.s.logger.Info("Session sweeper started",
		zap.String("schedule", sw.cfg.Schedule),
		zap.Duration("staleAfter", sw.cfg.StaleAfter))
	return nil
}

// Stop waits for a running sweep to finish.
func (sw *Sweeper) Stop() {
	<-sw.cron.Stop().Done()
}

// Sweep runs one pass and returns how many sessions were abandoned.
func (sw *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := sw.s.now()
	stale, err := sw.s.repo.Session.ListStale(ctx, now.Add(-sw.cfg.StaleAfter), sw.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, session := range stale {
		if sw.active(session.ID) {
			continue
		}
		if sw.s.settle(ctx, session).Status != model.SessionInProgress {
			continue
		}
		abandoned := *session
		if err := abandoned.Abandon(now); err != nil {
			continue
		}
		if err := sw.s.repo.Session.Finish(ctx, &abandoned, nil); err != nil {
			if errors.Is(err, model.ErrIllegalTransition) {
				sw.s.logger.Debug("Session finished before sweep", zap.String("sessionId", session.ID))
			} else {
				sw.s.logger.Warn("Failed to abandon session", zap.String("sessionId", session.ID), zap.Error(err))
			}
			continue
		}
		sw.s.publish(ctx, QueueSessionFinished, &abandoned, "")
		swept++
	}

	if swept > 0 {
		metrics.SessionsSwept(swept)
		sw.s.logger.Info("Abandoned stale sessions", zap.Int("count", swept))
	}
	return swept, nil
}
