package service

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"cogniview/internal/room"
)

const (
	inputAudioMIME = "audio/pcm;rate=16000"
	kickoffPrompt  = "The candidate has joined the call. Begin the interview now."
)

// liveSession is the subset of *genai.Session the engine uses.
type liveSession interface {
	SendRealtimeInput(input genai.LiveRealtimeInput) error
	SendClientContent(input genai.LiveClientContentInput) error
	SendToolResponse(input genai.LiveToolResponseInput) error
	Receive() (*genai.LiveServerMessage, error)
	Close() error
}

type liveDialer func(ctx context.Context, model string, cfg *genai.LiveConnectConfig) (liveSession, error)

// NewLiveEngineFactory returns a factory producing one Gemini Live engine per connection attempt.
func NewLiveEngineFactory(client *genai.Client, model string, logger *zap.Logger) room.EngineFactory {
	dial := func(ctx context.Context, model string, cfg *genai.LiveConnectConfig) (liveSession, error) {
		s, err := client.Live.Connect(ctx, model, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return func() room.Engine { return newLiveEngine(dial, model, logger) }
}

// LiveEngine runs one bidirectional voice conversation over the Gemini Live API.
type LiveEngine struct {
	dial   liveDialer
	model  string
	logger *zap.Logger

	mu      sync.Mutex // guards session, stopped and writes to session
	session liveSession
	stopped bool

	stopOnce sync.Once
	done     chan struct{}
}

func newLiveEngine(dial liveDialer, model string, logger *zap.Logger) *LiveEngine {
	return &LiveEngine{
		dial:   dial,
		model:  model,
		logger: logger,
		done:   make(chan struct{}),
	}
}

func liveConfig(script room.Script) *genai.LiveConnectConfig {
	return &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: script.Voice},
			},
		},
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: script.SystemInstruction}}},
		Tools: []*genai.Tool{{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:        script.EndCallFunction,
				Description: "Ends the interview call after the closing line has been spoken.",
			}},
		}},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
}

func (e *LiveEngine) Start(ctx context.Context, script room.Script) (<-chan room.Event, error) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil, ErrEngineStopped
	}
	e.mu.Unlock()

	session, err := e.dial(ctx, e.model, liveConfig(script))
	if err != nil {
		return nil, &ProviderError{
			Provider: providerGemini,
			Code:     providerCode(err),
			Message:  "Failed to open live session",
			Err:      err,
		}
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		session.Close()
		return nil, ErrEngineStopped
	}
	e.session = session
	err = session.SendClientContent(genai.LiveClientContentInput{
		Turns: []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: kickoffPrompt}}}},
	})
	e.mu.Unlock()
	if err != nil {
		e.Stop()
		return nil, &ProviderError{
			Provider: providerGemini,
			Code:     ErrCodeServiceDown,
			Message:  "Failed to start conversation",
			Err:      err,
		}
	}

	events := make(chan room.Event, 64)
	events <- room.Event{Type: room.EventCallStarted}
	go e.receive(session, script.EndCallFunction, events)
	return events, nil
}

func (e *LiveEngine) receive(session liveSession, endCall string, events chan<- room.Event) {
	defer close(events)

	emit := func(ev room.Event) bool {
		select {
		case events <- ev:
			return true
		case <-e.done:
			return false
		}
	}

	ending := false
	for {
		msg, err := session.Receive()
		if err != nil {
			select {
			case <-e.done:
				return
			default:
			}
			if room.IsBenignClose(err) {
				emit(room.Event{Type: room.EventCallEnded, Reason: err.Error()})
				return
			}
			// the transport is gone; report it and wait for the room to decide
			if emit(room.Event{Type: room.EventError, Err: err}) {
				<-e.done
			}
			return
		}

		if msg.GoAway != nil {
			e.logger.Warn("Live session going away")
		}

		if call := msg.ToolCall; call != nil {
			var responses []*genai.FunctionResponse
			for _, fc := range call.FunctionCalls {
				if fc.Name == endCall {
					ending = true
				}
				responses = append(responses, &genai.FunctionResponse{
					ID:       fc.ID,
					Name:     fc.Name,
					Response: map[string]any{"output": "ok"},
				})
			}
			if err := e.send(func(s liveSession) error {
				return s.SendToolResponse(genai.LiveToolResponseInput{FunctionResponses: responses})
			}); err != nil {
				e.logger.Debug("Failed to answer tool call", zap.Error(err))
			}
		}

		content := msg.ServerContent
		if content == nil {
			continue
		}
		if content.InputTranscription != nil && content.InputTranscription.Text != "" {
			if !emit(room.Event{Type: room.EventTranscript, Speaker: room.SpeakerCandidate, Text: content.InputTranscription.Text}) {
				return
			}
		}
		if content.OutputTranscription != nil && content.OutputTranscription.Text != "" {
			if !emit(room.Event{Type: room.EventTranscript, Speaker: room.SpeakerAgent, Text: content.OutputTranscription.Text}) {
				return
			}
		}
		if content.ModelTurn != nil {
			for _, part := range content.ModelTurn.Parts {
				if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
					continue
				}
				pcm := part.InlineData.Data
				if !emit(room.Event{Type: room.EventAudio, Audio: pcm}) {
					return
				}
				if !emit(room.Event{Type: room.EventVolume, Volume: rms(pcm)}) {
					return
				}
			}
		}
		if ending && content.TurnComplete {
			emit(room.Event{Type: room.EventCallEnded, Reason: endCall})
			return
		}
	}
}

func (e *LiveEngine) send(fn func(liveSession) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrEngineStopped
	}
	if e.session == nil {
		return errors.New("live session not started")
	}
	return fn(e.session)
}

// SendAudio streams one chunk of 16 kHz PCM16 microphone audio.
func (e *LiveEngine) SendAudio(pcm []byte) error {
	return e.send(func(s liveSession) error {
		return s.SendRealtimeInput(genai.LiveRealtimeInput{
			Audio: &genai.Blob{Data: pcm, MIMEType: inputAudioMIME},
		})
	})
}

func (e *LiveEngine) Stop() error {
	var err error
	e.stopOnce.Do(func() {
		close(e.done)
		e.mu.Lock()
		defer e.mu.Unlock()
		e.stopped = true
		if e.session != nil {
			err = e.session.Close()
		}
	})
	return err
}

// rms returns the normalized loudness of little-endian PCM16 samples.
func rms(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768
		sum += v * v
	}
	return math.Min(1, math.Sqrt(sum/float64(n)))
}
