package features

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"cogniview/internal/metrics"
)

var errPanicked = errors.New("evaluation job panicked")

type EvaluationJob struct {
	SessionID  string
	EnqueuedAt time.Time
}

type JobHandler func(ctx context.Context, job EvaluationJob) error

// EvaluationWorkerPool prewarms evaluations off the request path.
// Idle workers exit and are started again on the next enqueue.
type EvaluationWorkerPool struct {
	jobQueue        chan EvaluationJob
	workerCount     int
	maxIdleTime     time.Duration
	maxTaskWaitTime time.Duration
	jobTimeout      time.Duration
	handler         JobHandler
	logger          *zap.Logger
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	mu              sync.Mutex // guards stopped and worker spawning
	stopped         bool
	nextWorkerID    int

	// Metrics
	totalJobsEnqueued  int64
	totalJobsProcessed int64
	totalJobsFailed    int64
	totalJobsDropped   int64
	activeWorkers      int64
}

type PoolConfig struct {
	Workers         int
	QueueSize       int
	MaxIdleTime     time.Duration
	MaxTaskWaitTime time.Duration
	JobTimeout      time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:         4,
		QueueSize:       64,
		MaxIdleTime:     time.Minute,
		MaxTaskWaitTime: 2 * time.Second,
		JobTimeout:      2 * time.Minute,
	}
}

func NewEvaluationWorkerPool(cfg PoolConfig, logger *zap.Logger) *EvaluationWorkerPool {
	def := DefaultPoolConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.MaxIdleTime <= 0 {
		cfg.MaxIdleTime = def.MaxIdleTime
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &EvaluationWorkerPool{
		jobQueue:        make(chan EvaluationJob, cfg.QueueSize),
		workerCount:     cfg.Workers,
		maxIdleTime:     cfg.MaxIdleTime,
		maxTaskWaitTime: cfg.MaxTaskWaitTime,
		jobTimeout:      cfg.JobTimeout,
		logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
	}
}

func (wp *EvaluationWorkerPool) Start(handler JobHandler) {
	wp.logger.Info("Starting evaluation worker pool",
		zap.Int("workerCount", wp.workerCount),
		zap.Int("queueCapacity", cap(wp.jobQueue)),
		zap.Duration("maxIdleTime", wp.maxIdleTime))

	wp.mu.Lock()
	defer wp.mu.Unlock()
	wp.handler = handler
	for i := 0; i < wp.workerCount; i++ {
		wp.spawnLocked()
	}
}

func (wp *EvaluationWorkerPool) spawnLocked() {
	wp.wg.Add(1)
	atomic.AddInt64(&wp.activeWorkers, 1)
	id := wp.nextWorkerID
	wp.nextWorkerID++
	go wp.worker(id)
}

// ensureWorker starts a worker when every previous one has gone idle.
func (wp *EvaluationWorkerPool) ensureWorker() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.stopped || wp.handler == nil {
		return
	}
	if atomic.LoadInt64(&wp.activeWorkers) < int64(wp.workerCount) {
		wp.spawnLocked()
	}
}

func (wp *EvaluationWorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	wp.cancel()
	wp.mu.Unlock()
	wp.wg.Wait()
}

func (wp *EvaluationWorkerPool) worker(workerID int) {
	defer wp.wg.Done()
	defer atomic.AddInt64(&wp.activeWorkers, -1)

	idleTimer := time.NewTimer(wp.maxIdleTime)
	defer idleTimer.Stop()

	jobsProcessed := 0

	for {
		select {
		case job := <-wp.jobQueue:
			wp.logger.Debug("Worker processing job",
				zap.Int("workerID", workerID),
				zap.String("sessionId", job.SessionID),
				zap.Duration("waitTime", time.Since(job.EnqueuedAt)))

			wp.process(job)
			jobsProcessed++

			if !idleTimer.Stop() {
				select {
				case <-idleTimer.C:
				default:
				}
			}
			idleTimer.Reset(wp.maxIdleTime)

		case <-idleTimer.C:
			wp.logger.Debug("Worker idle timeout, exiting", zap.Int("workerID", workerID),
				zap.Int("jobsProcessed", jobsProcessed))
			return

		case <-wp.ctx.Done():
			wp.logger.Info("Worker stopping - context cancelled", zap.Int("workerID", workerID),
				zap.Int("jobsProcessed", jobsProcessed))
			return
		}
	}
}

func (wp *EvaluationWorkerPool) process(job EvaluationJob) {
	ctx, cancel := context.WithTimeout(wp.ctx, wp.jobTimeout)
	defer cancel()

	start := time.Now()
	err := wp.safeHandle(ctx, job)
	atomic.AddInt64(&wp.totalJobsProcessed, 1)
	if err != nil {
		atomic.AddInt64(&wp.totalJobsFailed, 1)
		metrics.WorkerJob("failed")
		wp.logger.Warn("Evaluation job failed",
			zap.String("sessionId", job.SessionID),
			zap.Duration("processingTime", time.Since(start)),
			zap.Error(err))
		return
	}
	metrics.WorkerJob("processed")
	wp.logger.Debug("Worker completed job",
		zap.String("sessionId", job.SessionID),
		zap.Duration("processingTime", time.Since(start)),
		zap.Duration("totalTime", time.Since(job.EnqueuedAt)))
}

func (wp *EvaluationWorkerPool) safeHandle(ctx context.Context, job EvaluationJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error("Panic in evaluation job", zap.String("sessionId", job.SessionID), zap.Any("panic", r))
			err = errPanicked
		}
	}()
	return wp.handler(ctx, job)
}

func (wp *EvaluationWorkerPool) EnqueueJob(job EvaluationJob) bool {
	job.EnqueuedAt = time.Now()

	wp.mu.Lock()
	stopped := wp.stopped
	wp.mu.Unlock()
	if stopped {
		atomic.AddInt64(&wp.totalJobsDropped, 1)
		metrics.WorkerJob("dropped")
		return false
	}
	wp.ensureWorker()

	var timeout <-chan time.Time
	if wp.maxTaskWaitTime > 0 {
		t := time.NewTimer(wp.maxTaskWaitTime)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case wp.jobQueue <- job:
		atomic.AddInt64(&wp.totalJobsEnqueued, 1)
		wp.logger.Debug("Enqueued evaluation job", zap.String("sessionId", job.SessionID),
			zap.Int("queueSize", len(wp.jobQueue)),
			zap.Int("queueCapacity", cap(wp.jobQueue)))
		return true

	case <-timeout:
		atomic.AddInt64(&wp.totalJobsDropped, 1)
		metrics.WorkerJob("dropped")
		wp.logger.Error("Job enqueue timeout - queue may be full or workers unavailable", zap.String("sessionId", job.SessionID),
			zap.Duration("timeout", wp.maxTaskWaitTime),
			zap.Int("queueSize", len(wp.jobQueue)),
			zap.Int64("activeWorkers", atomic.LoadInt64(&wp.activeWorkers)))
		return false

	case <-wp.ctx.Done():
		atomic.AddInt64(&wp.totalJobsDropped, 1)
		metrics.WorkerJob("dropped")
		return false
	}
}

// GetMetrics returns worker pool metrics
func (wp *EvaluationWorkerPool) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"total_jobs_enqueued":  atomic.LoadInt64(&wp.totalJobsEnqueued),
		"total_jobs_processed": atomic.LoadInt64(&wp.totalJobsProcessed),
		"total_jobs_failed":    atomic.LoadInt64(&wp.totalJobsFailed),
		"total_jobs_dropped":   atomic.LoadInt64(&wp.totalJobsDropped),
		"active_workers":       atomic.LoadInt64(&wp.activeWorkers),
		"queue_size":           len(wp.jobQueue),
		"queue_capacity":       cap(wp.jobQueue),
	}
}
