package room

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/gorilla/websocket"
)

type EventType int

const (
	EventCallStarted EventType = iota + 1
	EventCallEnded
	EventError
	EventTranscript
	EventAudio
	EventVolume
)

type Speaker string

const (
	SpeakerAgent     Speaker = "interviewer"
	SpeakerCandidate Speaker = "candidate"
)

// Event is one lifecycle or media notification from the conversation engine.
type Event struct {
	Type    EventType
	Reason  string  // EventCallEnded
	Err     error   // EventError
	Speaker Speaker // EventTranscript
	Text    string  // EventTranscript
	Audio   []byte  // EventAudio, PCM16 mono
	Volume  float64 // EventVolume, 0..1
}

// Engine runs one real-time voice conversation.
// Stop must be idempotent and safe to call before Start returns.
type Engine interface {
	Start(ctx context.Context, script Script) (<-chan Event, error)
	SendAudio(pcm []byte) error
	Stop() error
}

// EngineFactory builds a fresh engine for each connection attempt.
type EngineFactory func() Engine

var benignCloseMarkers = []string{
	"session closed",
	"room closed",
	"meeting has ended",
	"call ended",
	"ejected",
}

// IsBenignClose reports whether err means the remote side ended the call normally.
func IsBenignClose(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, context.Canceled) {
		return true
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range benignCloseMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
