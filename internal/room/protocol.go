package room

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Client message types.
const (
	MsgBegin      = "begin"
	MsgMedia      = "media"
	MsgFullscreen = "fullscreen"
	MsgVisibility = "visibility"
	MsgBlur       = "blur"
	MsgFrame      = "frame"
	MsgEnd        = "end"
)

// Server message types.
const (
	MsgPhase          = "phase"
	MsgError          = "error"
	MsgWarning        = "warning"
	MsgWarningCleared = "warning_cleared"
	MsgElapsed        = "elapsed"
	MsgVolume         = "volume"
	MsgTranscript     = "transcript"
	MsgCommand        = "command"
	MsgViolation      = "violation"
	MsgNavigate       = "navigate"
)

// Commands the client must carry out on its devices or window.
const (
	CommandRequestFullscreen = "request_fullscreen"
	CommandRequestMedia      = "request_media"
	CommandStopMedia         = "stop_media"
	CommandExitFullscreen    = "exit_fullscreen"
)

type ClientMessage struct {
	Type      string `json:"type"`
	Granted   bool   `json:"granted,omitempty"`
	Error     string `json:"error,omitempty"`
	Active    bool   `json:"active,omitempty"`
	Hidden    bool   `json:"hidden,omitempty"`
	Timestamp int64  `json:"ts,omitempty"`
	Data      string `json:"data,omitempty"`
}

type ServerMessage struct {
	Type      string  `json:"type"`
	Phase     Phase   `json:"phase,omitempty"`
	Message   string  `json:"message,omitempty"`
	Retryable bool    `json:"retryable,omitempty"`
	Command   string  `json:"command,omitempty"`
	Seconds   int     `json:"seconds,omitempty"`
	Level     float64 `json:"level,omitempty"`
	Speaker   Speaker `json:"speaker,omitempty"`
	Text      string  `json:"text,omitempty"`
	Reason    string  `json:"reason,omitempty"`
	To        string  `json:"to,omitempty"`
}

// Sink delivers server messages and agent audio to the candidate's client.
type Sink interface {
	SendJSON(msg ServerMessage) error
	SendAudio(pcm []byte) error
}

// Dispatch decodes one text frame from the client and feeds it to the room.
func Dispatch(r *Room, raw []byte) error {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("decode client message: %w", err)
	}
	switch msg.Type {
	case MsgBegin:
		r.Begin()
	case MsgMedia:
		r.MediaResult(msg.Granted, msg.Error)
	case MsgFullscreen:
		r.Fullscreen(msg.Active)
	case MsgVisibility:
		r.Visibility(msg.Hidden)
	case MsgBlur:
		r.Blur()
	case MsgFrame:
		data, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			return fmt.Errorf("decode frame: %w", err)
		}
		r.Frame(msg.Timestamp, data)
	case MsgEnd:
		r.End()
	default:
		return fmt.Errorf("unknown client message type %q", msg.Type)
	}
	return nil
}
