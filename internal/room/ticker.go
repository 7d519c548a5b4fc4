package room

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// periodicTask calls fn on a fixed interval until cancelled.
type periodicTask struct {
	name       string
	startTime  time.Time
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// TaskManager owns the periodic tasks of one room, keyed by name.
type TaskManager struct {
	tasks  sync.Map // key: task name, value: *periodicTask
	logger *zap.Logger
}

func NewTaskManager(logger *zap.Logger) *TaskManager {
	return &TaskManager{logger: logger}
}

// Start replaces any task with the same name. fn receives the time since its previous call.
func (tm *TaskManager) Start(parent context.Context, name string, interval time.Duration, fn func(ctx context.Context, step time.Duration)) {
	tm.Cancel(name)

	ctx, cancel := context.WithCancel(parent)
	task := &periodicTask{
		name:       name,
		startTime:  time.Now(),
		cancelFunc: cancel,
		done:       make(chan struct{}),
	}
	tm.tasks.Store(name, task)

	go tm.run(ctx, task, interval, fn)
}

func (tm *TaskManager) run(ctx context.Context, task *periodicTask, interval time.Duration, fn func(context.Context, time.Duration)) {
	defer close(task.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			tm.logger.Debug("Task cancelled", zap.String("task", task.name),
				zap.Duration("ran", time.Since(task.startTime)))
			return
		case now := <-ticker.C:
			step := now.Sub(last)
			last = now
			fn(ctx, step)
		}
	}
}

// Cancel stops the named task and waits briefly for it to exit.
func (tm *TaskManager) Cancel(name string) bool {
	val, ok := tm.tasks.LoadAndDelete(name)
	if !ok {
		return false
	}
	task := val.(*periodicTask)
	task.cancelFunc()
	select {
	case <-task.done:
	case <-time.After(100 * time.Millisecond):
		tm.logger.Warn("Task cancellation timeout", zap.String("task", task.name))
	}
	return true
}

// Running reports whether the named task is registered.
func (tm *TaskManager) Running(name string) bool {
	_, ok := tm.tasks.Load(name)
	return ok
}

// Shutdown cancels every task.
func (tm *TaskManager) Shutdown() {
	tm.tasks.Range(func(key, _ any) bool {
		tm.Cancel(key.(string))
		return true
	})
}
