package room

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"cogniview/internal/metrics"
	"cogniview/internal/model"
)

const (
	taskFace    = "face"
	taskElapsed = "elapsed"

	navigateDashboard = "/candidate/dashboard"

	messageMediaDenied        = "Camera and microphone access is required to start the interview."
	messageFullscreenRequired = "The interview must run in full-screen mode. Please allow full screen and try again."
	messageEngineFailed       = "Could not connect to the interviewer. Please try again."

	persistBackoff    = 100 * time.Millisecond
	maxPersistBackoff = 2 * time.Second
)

// TranscriptLine is one merged utterance of the conversation.
type TranscriptLine struct {
	Speaker Speaker
	Text    string
}

// Store persists the single terminal outcome of a room.
type Store interface {
	Complete(ctx context.Context, session *model.InterviewSession, transcript []TranscriptLine) error
	Terminate(ctx context.Context, session *model.InterviewSession, reason string) error
}

// FaceCounter returns the number of faces in one camera frame.
type FaceCounter interface {
	CountFaces(ctx context.Context, frame []byte, ts int64) (int, error)
}

type Config struct {
	FaceInterval   time.Duration
	ConnectTimeout time.Duration
	PersistTimeout time.Duration
	Thresholds     FaceThresholds
	InboxSize      int
}

func DefaultConfig() Config {
	return Config{
		FaceInterval:   100 * time.Millisecond,
		ConnectTimeout: 20 * time.Second,
		PersistTimeout: 10 * time.Second,
		Thresholds:     DefaultFaceThresholds(),
		InboxSize:      64,
	}
}

type Deps struct {
	Context *SessionContext
	Engines EngineFactory
	Sink    Sink
	Store   Store
	Faces   FaceCounter
	Logger  *zap.Logger
	Config  Config
}

// Inbox messages. Only the Run goroutine consumes them.
type msgBegin struct{}

type msgMedia struct {
	granted bool
	err     string
}

type msgFullscreen struct{ active bool }

type msgFocusLost struct{}

type msgEnd struct{}

type msgAudio struct{ pcm []byte }

type msgStarted struct {
	seq    int
	events <-chan Event
	err    error
}

type msgEngine struct {
	seq int
	ev  Event
}

type msgConnectTimeout struct{ seq int }

type msgFace struct{ res FaceResult }

type msgTick struct{}

type frame struct {
	ts   int64
	data []byte
}

// frameSlot holds only the newest camera frame.
type frameSlot struct {
	mu     sync.Mutex
	latest frame
}

func (s *frameSlot) put(ts int64, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ts <= s.latest.ts {
		return
	}
	s.latest = frame{ts: ts, data: data}
}

func (s *frameSlot) get() frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Room is the interview room state machine for one candidate connection.
// All state below the inbox is owned by the Run goroutine.
type Room struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
	script Script

	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan any
	done   chan struct{}
	frames frameSlot
	tasks  *TaskManager

	teardownOnce sync.Once

	phase        Phase
	latched      bool
	fullscreen   bool
	engine       Engine
	seq          int
	connectTimer *time.Timer
	elapsed      int
	transcript   []TranscriptLine
}

func New(deps Deps) (*Room, error) {
	script, err := BuildScript(deps.Context.Interview, deps.Context.Session.CandidateName)
	if err != nil {
		return nil, err
	}
	cfg := deps.Config
	if cfg.InboxSize <= 0 {
		cfg = DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("sessionId", deps.Context.Session.ID))

	ctx, cancel := context.WithCancel(context.Background())
	return &Room{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		script: script,
		ctx:    ctx,
		cancel: cancel,
		inbox:  make(chan any, cfg.InboxSize),
		done:   make(chan struct{}),
		tasks:  NewTaskManager(logger),
		phase:  PhaseLoading,
	}, nil
}

// Done is closed once Run has returned.
func (r *Room) Done() <-chan struct{} { return r.done }

// Phase is safe to read only after Done is closed.
func (r *Room) Phase() Phase { return r.phase }

func (r *Room) Begin() { r.post(r.ctx, msgBegin{}) }

func (r *Room) MediaResult(granted bool, errMsg string) {
	r.post(r.ctx, msgMedia{granted: granted, err: errMsg})
}

func (r *Room) Fullscreen(active bool) { r.post(r.ctx, msgFullscreen{active: active}) }

func (r *Room) Visibility(hidden bool) {
	if hidden {
		r.post(r.ctx, msgFocusLost{})
	}
}

func (r *Room) Blur() { r.post(r.ctx, msgFocusLost{}) }

func (r *Room) End() { r.post(r.ctx, msgEnd{}) }

// Frame stores the newest camera frame for the face task. Older timestamps are dropped.
func (r *Room) Frame(ts int64, data []byte) { r.frames.put(ts, data) }

// Audio forwards microphone PCM. It drops the chunk when the room is backed up.
func (r *Room) Audio(pcm []byte) {
	select {
	case r.inbox <- msgAudio{pcm: pcm}:
	default:
	}
}

func (r *Room) post(ctx context.Context, m any) {
	select {
	case r.inbox <- m:
	case <-ctx.Done():
	case <-r.done:
	}
}

// Run drives the room until a terminal phase is reached or ctx is cancelled.
// Cancelling ctx is a disconnect: the room tears down without persisting.
func (r *Room) Run(ctx context.Context) {
	defer close(r.done)
	defer r.teardown()

	r.setPhase(PhaseInstructions)
	for {
		select {
		case <-ctx.Done():
			if !r.latched {
				r.latched = true
				r.logger.Info("Room disconnected", zap.String("phase", string(r.phase)))
				metrics.RoomClosed("disconnected")
			}
			return
		case m := <-r.inbox:
			r.handle(m)
			if r.latched {
				return
			}
		}
	}
}

func (r *Room) handle(m any) {
	switch m := m.(type) {
	case msgBegin:
		r.onBegin()
	case msgMedia:
		r.onMedia(m)
	case msgFullscreen:
		wasActive := r.fullscreen
		r.fullscreen = m.active
		if wasActive && !m.active && r.phase.proctored() {
			r.finish(PhaseTerminated, ReasonFullscreenExit)
		}
	case msgFocusLost:
		if r.phase.proctored() {
			r.finish(PhaseTerminated, ReasonFocusLost)
		}
	case msgEnd:
		if r.phase == PhaseLive {
			r.finish(PhaseCompleted, "")
		}
	case msgAudio:
		if r.phase == PhaseLive && r.engine != nil {
			if err := r.engine.SendAudio(m.pcm); err != nil {
				r.logger.Debug("Failed to forward audio", zap.Error(err))
			}
		}
	case msgStarted:
		r.onStarted(m)
	case msgEngine:
		if m.seq == r.seq {
			r.onEvent(m.ev)
		}
	case msgConnectTimeout:
		if m.seq == r.seq && r.phase == PhaseConnecting {
			r.logger.Warn("Conversation engine handshake timed out", zap.Duration("timeout", r.cfg.ConnectTimeout))
			r.revert(messageEngineFailed)
		}
	case msgFace:
		r.onFace(m.res)
	case msgTick:
		if r.phase == PhaseLive {
			r.elapsed++
			r.send(ServerMessage{Type: MsgElapsed, Seconds: r.elapsed})
		}
	}
}

func (r *Room) onBegin() {
	if r.phase != PhaseInstructions {
		return
	}
	r.setPhase(PhaseConnecting)
	r.send(ServerMessage{Type: MsgCommand, Command: CommandRequestFullscreen})
	r.send(ServerMessage{Type: MsgCommand, Command: CommandRequestMedia})
}

func (r *Room) onMedia(m msgMedia) {
	if r.phase != PhaseConnecting || r.engine != nil {
		return
	}
	if !m.granted {
		r.logger.Info("Media permission denied", zap.String("error", m.err))
		r.revert(messageMediaDenied)
		return
	}
	if !r.fullscreen {
		r.logger.Info("Media granted outside full screen")
		r.revert(messageFullscreenRequired)
		return
	}

	r.seq++
	seq := r.seq
	engine := r.deps.Engines()
	r.engine = engine
	r.connectTimer = time.AfterFunc(r.cfg.ConnectTimeout, func() {
		r.post(r.ctx, msgConnectTimeout{seq: seq})
	})
	go func() {
		events, err := engine.Start(r.ctx, r.script)
		r.post(r.ctx, msgStarted{seq: seq, events: events, err: err})
	}()
}

func (r *Room) onStarted(m msgStarted) {
	if m.seq != r.seq || r.phase != PhaseConnecting {
		return
	}
	if m.err != nil {
		r.logger.Warn("Failed to start conversation engine", zap.Error(m.err))
		r.revert(messageEngineFailed)
		return
	}
	go r.pump(m.seq, m.events)
}

// pump forwards engine events into the inbox. Agent audio goes straight to the sink.
func (r *Room) pump(seq int, events <-chan Event) {
	for {
		select {
		case <-r.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				r.post(r.ctx, msgEngine{seq: seq, ev: Event{Type: EventCallEnded, Reason: "stream closed"}})
				return
			}
			if ev.Type == EventAudio {
				if err := r.deps.Sink.SendAudio(ev.Audio); err != nil {
					r.logger.Debug("Failed to send agent audio", zap.Error(err))
				}
				continue
			}
			r.post(r.ctx, msgEngine{seq: seq, ev: ev})
		}
	}
}

func (r *Room) onEvent(ev Event) {
	switch ev.Type {
	case EventCallStarted:
		if r.phase != PhaseConnecting {
			return
		}
		r.stopConnectTimer()
		r.setPhase(PhaseLive)
		r.startTasks()
	case EventCallEnded:
		r.callEnded(ev.Reason)
	case EventError:
		if IsBenignClose(ev.Err) {
			r.callEnded(ev.Err.Error())
			return
		}
		r.logger.Error("Conversation engine error", zap.Error(ev.Err))
	case EventTranscript:
		r.appendTranscript(ev.Speaker, ev.Text)
		r.send(ServerMessage{Type: MsgTranscript, Speaker: ev.Speaker, Text: ev.Text})
	case EventVolume:
		r.send(ServerMessage{Type: MsgVolume, Level: ev.Volume})
	}
}

func (r *Room) callEnded(reason string) {
	switch r.phase {
	case PhaseConnecting:
		r.logger.Warn("Call ended during handshake", zap.String("reason", reason))
		r.revert(messageEngineFailed)
	case PhaseLive:
		r.logger.Info("Call ended", zap.String("reason", reason))
		r.finish(PhaseCompleted, "")
	}
}

func (r *Room) appendTranscript(speaker Speaker, text string) {
	if text == "" {
		return
	}
	if n := len(r.transcript); n > 0 && r.transcript[n-1].Speaker == speaker {
		r.transcript[n-1].Text += text
		return
	}
	r.transcript = append(r.transcript, TranscriptLine{Speaker: speaker, Text: text})
}

func (r *Room) onFace(res FaceResult) {
	if r.phase != PhaseLive {
		return
	}
	switch res.Outcome {
	case FaceWarning:
		r.send(ServerMessage{Type: MsgWarning, Message: res.Message})
	case FaceCleared:
		r.send(ServerMessage{Type: MsgWarningCleared})
	case FaceViolation:
		r.finish(PhaseTerminated, res.Message)
	}
}

func (r *Room) startTasks() {
	monitor := NewFaceMonitor(r.cfg.Thresholds)
	var (
		lastTs int64
		since  time.Duration // loop time since the last processed frame
	)
	r.tasks.Start(r.ctx, taskFace, r.cfg.FaceInterval, func(ctx context.Context, step time.Duration) {
		since += step
		f := r.frames.get()
		if f.ts <= lastTs {
			return
		}
		if lastTs == 0 {
			// time before the camera delivered anything is not evidence either way
			since = step
		}
		lastTs = f.ts
		count, err := r.deps.Faces.CountFaces(ctx, f.data, f.ts)
		metrics.FaceDetection(err == nil)
		elapsed := since
		since = 0
		if err != nil {
			r.logger.Debug("Face detection failed, skipping frame", zap.Error(err))
			return
		}
		if res := monitor.Observe(count, elapsed); res.Outcome != FaceUnchanged {
			r.post(ctx, msgFace{res: res})
		}
	})
	r.tasks.Start(r.ctx, taskElapsed, time.Second, func(ctx context.Context, _ time.Duration) {
		r.post(ctx, msgTick{})
	})
}

// revert returns a connecting room to instructions so the candidate can retry.
func (r *Room) revert(message string) {
	r.stopConnectTimer()
	r.seq++
	if r.engine != nil {
		if err := r.engine.Stop(); err != nil {
			r.logger.Debug("Failed to stop engine", zap.Error(err))
		}
		r.engine = nil
	}
	r.send(ServerMessage{Type: MsgCommand, Command: CommandStopMedia})
	r.setPhase(PhaseInstructions)
	r.send(ServerMessage{Type: MsgError, Message: message, Retryable: true})
}

// finish latches the first terminal signal. Everything after it is a no-op.
func (r *Room) finish(to Phase, reason string) {
	if r.latched {
		return
	}
	r.latched = true
	r.teardown()

	session := r.deps.Context.Session
	outcome := string(model.SessionCompleted)
	write := func(ctx context.Context) error {
		return r.deps.Store.Complete(ctx, session, r.transcript)
	}
	if to == PhaseTerminated {
		outcome = string(model.SessionTerminatedEarly)
		metrics.Violation(reason)
		write = func(ctx context.Context) error {
			return r.deps.Store.Terminate(ctx, session, reason)
		}
	}
	if err := r.persist(outcome, write); err != nil {
		r.logger.Error("Failed to persist room outcome", zap.String("outcome", outcome), zap.Error(err))
	}
	metrics.RoomClosed(outcome)

	r.setPhase(to)
	if to == PhaseTerminated {
		r.send(ServerMessage{Type: MsgViolation, Reason: reason})
	}
	r.send(ServerMessage{Type: MsgCommand, Command: CommandExitFullscreen})
	r.send(ServerMessage{Type: MsgNavigate, To: navigateDashboard})
}

// persist retries the outcome write with doubling backoff until it lands, the stored session is already final,
// or PersistTimeout runs out.
func (r *Room) persist(outcome string, write func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.PersistTimeout)
	defer cancel()

	backoff := persistBackoff
	for attempt := 1; ; attempt++ {
		err := write(ctx)
		if err == nil || errors.Is(err, model.ErrIllegalTransition) {
			return err
		}
		r.logger.Warn("Persisting room outcome failed, retrying",
			zap.String("outcome", outcome),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxPersistBackoff {
			backoff = maxPersistBackoff
		}
	}
}

// teardown releases every resource exactly once.
func (r *Room) teardown() {
	r.teardownOnce.Do(func() {
		r.tasks.Shutdown()
		r.stopConnectTimer()
		if r.engine != nil {
			if err := r.engine.Stop(); err != nil {
				r.logger.Debug("Failed to stop engine", zap.Error(err))
			}
		}
		r.send(ServerMessage{Type: MsgCommand, Command: CommandStopMedia})
		r.cancel()
	})
}

func (r *Room) stopConnectTimer() {
	if r.connectTimer != nil {
		r.connectTimer.Stop()
		r.connectTimer = nil
	}
}

func (r *Room) setPhase(to Phase) {
	next, err := r.phase.Transition(to)
	if err != nil {
		r.logger.Error("Rejected room transition", zap.Error(err))
		return
	}
	r.phase = next
	r.send(ServerMessage{Type: MsgPhase, Phase: next})
}

func (r *Room) send(msg ServerMessage) {
	if err := r.deps.Sink.SendJSON(msg); err != nil {
		r.logger.Debug("Failed to send message", zap.String("type", msg.Type), zap.Error(err))
	}
}
