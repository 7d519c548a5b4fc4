package sse

import (
	"sync"
)

type Notification map[string]any

// Hub routes notifications to the SSE stream of a connected user.
type Hub struct {
	channels sync.Map // key: user id, value: chan Notification
}

func NewHub() *Hub {
	return &Hub{}
}

func (h *Hub) RegisterChannel(userID string, ch chan Notification) {
	h.channels.Store(userID, ch)
}

// UnregisterChannel removes ch only if it is still the registered stream for userID.
func (h *Hub) UnregisterChannel(userID string, ch chan Notification) {
	h.channels.CompareAndDelete(userID, ch)
}

// SendToUser never blocks. It reports false when the user is offline or their buffer is full.
func (h *Hub) SendToUser(userID string, notification Notification) bool {
	if chVal, ok := h.channels.Load(userID); ok {
		if ch, ok := chVal.(chan Notification); ok {
			select {
			case ch <- notification:
				return true
			default:
				return false
			}
		}
	}
	return false
}
