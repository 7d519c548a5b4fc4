package room

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"cogniview/internal/metrics"
	"cogniview/internal/model"
)

// Manager keeps at most one open room per session.
type Manager struct {
	rooms  sync.Map // key: session id, value: *Room
	logger *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

// Open builds a room and runs it until it finishes or ctx is cancelled.
// The returned room is already running.
func (m *Manager) Open(ctx context.Context, deps Deps) (*Room, error) {
	r, err := New(deps)
	if err != nil {
		return nil, err
	}
	id := deps.Context.Session.ID
	if _, loaded := m.rooms.LoadOrStore(id, r); loaded {
		r.cancel()
		return nil, model.ErrRoomBusy
	}
	metrics.RoomOpened()

	go func() {
		defer m.rooms.CompareAndDelete(id, r)
		r.Run(ctx)
		m.logger.Debug("Room closed", zap.String("sessionId", id), zap.String("phase", string(r.phase)))
	}()
	return r, nil
}

// Active reports whether a room is open for the session.
func (m *Manager) Active(sessionID string) bool {
	_, ok := m.rooms.Load(sessionID)
	return ok
}

// Count returns the number of open rooms.
func (m *Manager) Count() int {
	n := 0
	m.rooms.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
