package room

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cogniview/internal/model"
)

type fakeSink struct {
	mu    sync.Mutex
	msgs  []ServerMessage
	audio int
}

func (s *fakeSink) SendJSON(msg ServerMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *fakeSink) SendAudio([]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio++
	return nil
}

func (s *fakeSink) all(msgType string) []ServerMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ServerMessage
	for _, m := range s.msgs {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

func (s *fakeSink) phases() []Phase {
	var out []Phase
	for _, m := range s.all(MsgPhase) {
		out = append(out, m.Phase)
	}
	return out
}

func (s *fakeSink) commands(cmd string) int {
	n := 0
	for _, m := range s.all(MsgCommand) {
		if m.Command == cmd {
			n++
		}
	}
	return n
}

func (s *fakeSink) lastPhase() Phase {
	p := s.phases()
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

type fakeStore struct {
	mu          sync.Mutex
	completed   [][]TranscriptLine
	terminated  []string
	terminateFn func(*model.InterviewSession, string) error
}

func (s *fakeStore) Complete(_ context.Context, session *model.InterviewSession, transcript []TranscriptLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, transcript)
	return session.Complete(time.Now())
}

func (s *fakeStore) Terminate(_ context.Context, session *model.InterviewSession, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminated = append(s.terminated, reason)
	if s.terminateFn != nil {
		if err := s.terminateFn(session, reason); err != nil {
			return err
		}
	}
	return session.Terminate(time.Now(), reason)
}

func (s *fakeStore) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completed), len(s.terminated)
}

type fakeEngine struct {
	events   chan Event
	startErr error
	started  atomic.Int32
	stops    atomic.Int32
	audio    atomic.Int32
	script   atomic.Value
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{events: make(chan Event, 16)}
}

func (e *fakeEngine) Start(_ context.Context, script Script) (<-chan Event, error) {
	e.script.Store(script)
	e.started.Add(1)
	if e.startErr != nil {
		return nil, e.startErr
	}
	return e.events, nil
}

func (e *fakeEngine) SendAudio([]byte) error {
	e.audio.Add(1)
	return nil
}

func (e *fakeEngine) Stop() error {
	e.stops.Add(1)
	return nil
}

type fakeFaces struct {
	count atomic.Int32
	fail  atomic.Bool
	calls atomic.Int32
}

func (f *fakeFaces) CountFaces(context.Context, []byte, int64) (int, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return 0, errors.New("model unavailable")
	}
	return int(f.count.Load()), nil
}

type harness struct {
	room   *Room
	sink   *fakeSink
	store  *fakeStore
	engine *fakeEngine
	faces  *fakeFaces
	cancel context.CancelFunc
}

func testContext() *SessionContext {
	return &SessionContext{
		Interview: &model.Interview{
			ID:          "iv-1",
			CompanyName: "Acme",
			JobRole:     "Backend Engineer",
			Questions:   []model.Question{{ID: "q1", Text: "Why Go?"}, {ID: "q2", Text: "Describe a hard bug."}},
		},
		Session: &model.InterviewSession{
			ID:            "s1",
			InterviewID:   "iv-1",
			CandidateID:   "c1",
			CandidateName: "Dana",
			Status:        model.SessionInProgress,
			Decision:      model.DecisionPending,
		},
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.FaceInterval = 10 * time.Millisecond
	cfg.ConnectTimeout = 2 * time.Second
	cfg.PersistTimeout = time.Second
	return cfg
}

func startRoom(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		sink:   &fakeSink{},
		store:  &fakeStore{},
		engine: newFakeEngine(),
		faces:  &fakeFaces{},
	}
	h.faces.count.Store(1)

	r, err := New(Deps{
		Context: testContext(),
		Engines: func() Engine { return h.engine },
		Sink:    h.sink,
		Store:   h.store,
		Faces:   h.faces,
		Logger:  zap.NewNop(),
		Config:  cfg,
	})
	require.NoError(t, err)
	h.room = r

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	t.Cleanup(cancel)
	go r.Run(ctx)

	require.Eventually(t, func() bool { return h.sink.lastPhase() == PhaseInstructions }, time.Second, 5*time.Millisecond)
	return h
}

func (h *harness) goLive(t *testing.T) {
	t.Helper()
	h.room.Begin()
	h.room.Fullscreen(true)
	h.room.MediaResult(true, "")
	require.Eventually(t, func() bool { return h.engine.started.Load() == 1 }, time.Second, 5*time.Millisecond)
	h.engine.events <- Event{Type: EventCallStarted}
	require.Eventually(t, func() bool { return h.sink.lastPhase() == PhaseLive }, time.Second, 5*time.Millisecond)
}

func (h *harness) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-h.room.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("room did not finish")
	}
}

func TestRoomFirstViolationWins(t *testing.T) {
	h := startRoom(t, testConfig())
	h.goLive(t)

	h.room.Blur()
	h.room.Fullscreen(false)
	h.waitDone(t)

	completed, terminated := h.store.counts()
	assert.Equal(t, 0, completed)
	require.Equal(t, 1, terminated)
	assert.Equal(t, ReasonFocusLost, h.store.terminated[0])
	assert.Equal(t, PhaseTerminated, h.room.Phase())

	violations := h.sink.all(MsgViolation)
	require.Len(t, violations, 1)
	assert.Equal(t, ReasonFocusLost, violations[0].Reason)
	assert.Len(t, h.sink.all(MsgNavigate), 1)
	assert.Equal(t, 1, h.sink.commands(CommandExitFullscreen))
}

func TestRoomTeardownRunsOnce(t *testing.T) {
	h := startRoom(t, testConfig())
	h.goLive(t)

	h.room.Visibility(true)
	h.waitDone(t)
	h.room.teardown()

	assert.Equal(t, int32(1), h.engine.stops.Load())
	assert.Equal(t, 1, h.sink.commands(CommandStopMedia))
	assert.False(t, h.room.tasks.Running(taskFace))
	assert.False(t, h.room.tasks.Running(taskElapsed))
}

func TestRoomTerminationForcesFailedDecision(t *testing.T) {
	h := startRoom(t, testConfig())
	h.goLive(t)

	h.room.Fullscreen(false)
	h.waitDone(t)

	s := h.room.deps.Context.Session
	assert.Equal(t, model.SessionTerminatedEarly, s.Status)
	assert.Equal(t, model.DecisionFailed, s.Decision)
	assert.Equal(t, ReasonFullscreenExit, s.TerminationReason)
}

func TestRoomFocusIgnoredBeforeConnecting(t *testing.T) {
	h := startRoom(t, testConfig())

	h.room.Blur()
	h.room.Fullscreen(true)
	h.room.Fullscreen(false)
	h.room.Begin()

	require.Eventually(t, func() bool { return h.sink.lastPhase() == PhaseConnecting }, time.Second, 5*time.Millisecond)
	_, terminated := h.store.counts()
	assert.Equal(t, 0, terminated)
}

func TestRoomFocusLostWhileConnectingTerminates(t *testing.T) {
	h := startRoom(t, testConfig())
	h.room.Begin()
	require.Eventually(t, func() bool { return h.sink.lastPhase() == PhaseConnecting }, time.Second, 5*time.Millisecond)

	h.room.Blur()
	h.waitDone(t)

	_, terminated := h.store.counts()
	assert.Equal(t, 1, terminated)
	assert.Equal(t, PhaseTerminated, h.room.Phase())
}

func TestRoomMediaDenialIsRetryable(t *testing.T) {
	h := startRoom(t, testConfig())

	h.room.Begin()
	h.room.MediaResult(false, "NotAllowedError")
	require.Eventually(t, func() bool { return len(h.sink.all(MsgError)) == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, []Phase{PhaseInstructions, PhaseConnecting, PhaseInstructions}, h.sink.phases())
	errMsg := h.sink.all(MsgError)[0]
	assert.True(t, errMsg.Retryable)
	assert.Equal(t, messageMediaDenied, errMsg.Message)
	assert.Equal(t, int32(0), h.engine.started.Load())

	h.room.Begin()
	require.Eventually(t, func() bool { return h.sink.lastPhase() == PhaseConnecting }, time.Second, 5*time.Millisecond)
}

func TestRoomMediaRequiresFullscreen(t *testing.T) {
	h := startRoom(t, testConfig())

	h.room.Begin()
	h.room.MediaResult(true, "")
	require.Eventually(t, func() bool { return len(h.sink.all(MsgError)) == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, PhaseInstructions, h.sink.lastPhase())
	errMsg := h.sink.all(MsgError)[0]
	assert.True(t, errMsg.Retryable)
	assert.Equal(t, messageFullscreenRequired, errMsg.Message)
	assert.Equal(t, int32(0), h.engine.started.Load())

	h.goLive(t)
	h.room.Fullscreen(false)
	h.waitDone(t)
	require.Len(t, h.store.terminated, 1)
	assert.Equal(t, ReasonFullscreenExit, h.store.terminated[0])
}

func TestRoomEngineStartFailureReverts(t *testing.T) {
	h := startRoom(t, testConfig())
	h.engine.startErr = errors.New("handshake refused")

	h.room.Begin()
	h.room.Fullscreen(true)
	h.room.MediaResult(true, "")
	require.Eventually(t, func() bool { return len(h.sink.all(MsgError)) == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, PhaseInstructions, h.sink.lastPhase())
	assert.Equal(t, messageEngineFailed, h.sink.all(MsgError)[0].Message)
	assert.Equal(t, int32(1), h.engine.stops.Load())
}

func TestRoomConnectTimeoutReverts(t *testing.T) {
	cfg := testConfig()
	cfg.ConnectTimeout = 50 * time.Millisecond
	h := startRoom(t, cfg)

	h.room.Begin()
	h.room.Fullscreen(true)
	h.room.MediaResult(true, "")
	require.Eventually(t, func() bool { return len(h.sink.all(MsgError)) == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, PhaseInstructions, h.sink.lastPhase())
	assert.Equal(t, int32(1), h.engine.stops.Load())

	// a late call-started from the abandoned attempt is ignored
	h.engine.events <- Event{Type: EventCallStarted}
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, PhaseInstructions, h.sink.lastPhase())
}

func TestRoomCompletionPersistsTranscript(t *testing.T) {
	h := startRoom(t, testConfig())
	h.goLive(t)

	h.engine.events <- Event{Type: EventTranscript, Speaker: SpeakerAgent, Text: "Hello "}
	h.engine.events <- Event{Type: EventTranscript, Speaker: SpeakerAgent, Text: "Dana."}
	h.engine.events <- Event{Type: EventAudio, Audio: []byte{1, 2}}
	h.engine.events <- Event{Type: EventTranscript, Speaker: SpeakerCandidate, Text: "Hi!"}
	h.engine.events <- Event{Type: EventCallEnded, Reason: "end_interview"}
	h.waitDone(t)

	completed, terminated := h.store.counts()
	require.Equal(t, 1, completed)
	assert.Equal(t, 0, terminated)
	assert.Equal(t, []TranscriptLine{
		{Speaker: SpeakerAgent, Text: "Hello Dana."},
		{Speaker: SpeakerCandidate, Text: "Hi!"},
	}, h.store.completed[0])

	s := h.room.deps.Context.Session
	assert.Equal(t, model.SessionCompleted, s.Status)
	assert.Equal(t, model.DecisionPending, s.Decision)
	assert.Equal(t, PhaseCompleted, h.room.Phase())
	assert.Empty(t, h.sink.all(MsgViolation))
}

func TestRoomNonBenignErrorKeepsSessionAlive(t *testing.T) {
	h := startRoom(t, testConfig())
	h.goLive(t)

	h.engine.events <- Event{Type: EventError, Err: errors.New("quota exceeded")}
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, PhaseLive, h.sink.lastPhase())

	h.room.End()
	h.waitDone(t)
	completed, _ := h.store.counts()
	assert.Equal(t, 1, completed)
}

func TestRoomBenignErrorCompletes(t *testing.T) {
	h := startRoom(t, testConfig())
	h.goLive(t)

	h.engine.events <- Event{Type: EventError, Err: errors.New("Meeting has ended")}
	h.waitDone(t)

	completed, _ := h.store.counts()
	assert.Equal(t, 1, completed)
	assert.Equal(t, PhaseCompleted, h.room.Phase())
}

func TestRoomDisconnectDoesNotPersist(t *testing.T) {
	h := startRoom(t, testConfig())
	h.goLive(t)

	h.cancel()
	h.waitDone(t)

	completed, terminated := h.store.counts()
	assert.Zero(t, completed+terminated)
	assert.Equal(t, int32(1), h.engine.stops.Load())
}

func TestRoomNoFaceTerminates(t *testing.T) {
	cfg := testConfig()
	cfg.Thresholds = FaceThresholds{
		NoFaceWarn:     30 * time.Millisecond,
		NoFaceLimit:    150 * time.Millisecond,
		MultiFaceLimit: time.Second,
	}
	h := startRoom(t, cfg)
	h.goLive(t)
	h.faces.count.Store(0)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ts := int64(0)
		for {
			select {
			case <-stop:
				return
			case <-time.After(5 * time.Millisecond):
				ts++
				h.room.Frame(ts, []byte("jpeg"))
			}
		}
	}()

	h.waitDone(t)
	require.Len(t, h.store.terminated, 1)
	assert.Equal(t, ReasonNoFace, h.store.terminated[0])

	warnings := h.sink.all(MsgWarning)
	require.NotEmpty(t, warnings)
	assert.Equal(t, WarningNoFace, warnings[0].Message)
}

func TestRoomTerminationWriteIsRetried(t *testing.T) {
	h := startRoom(t, testConfig())
	var attempts atomic.Int32
	h.store.terminateFn = func(*model.InterviewSession, string) error {
		if attempts.Add(1) == 1 {
			return errors.New("connection reset")
		}
		return nil
	}
	h.goLive(t)

	h.room.Blur()
	h.waitDone(t)

	assert.Equal(t, int32(2), attempts.Load())
	assert.Equal(t, PhaseTerminated, h.room.Phase())
	s := h.room.deps.Context.Session
	assert.Equal(t, model.SessionTerminatedEarly, s.Status)
	assert.Equal(t, ReasonFocusLost, s.TerminationReason)
}

func TestRoomTerminationWriteGivesUpAtPersistTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.PersistTimeout = 250 * time.Millisecond
	h := startRoom(t, cfg)
	h.store.terminateFn = func(*model.InterviewSession, string) error {
		return errors.New("database is down")
	}
	h.goLive(t)

	start := time.Now()
	h.room.Blur()
	h.waitDone(t)

	assert.Less(t, time.Since(start), time.Second)
	_, attempts := h.store.counts()
	assert.GreaterOrEqual(t, attempts, 2)
	assert.Equal(t, PhaseTerminated, h.room.Phase())
	require.Len(t, h.sink.all(MsgViolation), 1)
	assert.Equal(t, model.SessionInProgress, h.room.deps.Context.Session.Status)
}

func TestRoomFaceTimeFollowsLoopTimeAtLowFrameRate(t *testing.T) {
	cfg := testConfig()
	cfg.Thresholds = FaceThresholds{
		NoFaceWarn:     100 * time.Millisecond,
		NoFaceLimit:    300 * time.Millisecond,
		MultiFaceLimit: time.Second,
	}
	h := startRoom(t, cfg)
	h.goLive(t)
	h.faces.count.Store(0)

	stop := make(chan struct{})
	defer close(stop)
	start := time.Now()
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		ts := int64(0)
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ts++
				h.room.Frame(ts, []byte("jpeg"))
			}
		}
	}()

	h.waitDone(t)
	took := time.Since(start)
	require.Len(t, h.store.terminated, 1)
	assert.Equal(t, ReasonNoFace, h.store.terminated[0])
	// one frame every five loop ticks must not stretch the limit fivefold
	assert.GreaterOrEqual(t, took, 250*time.Millisecond)
	assert.Less(t, took, 900*time.Millisecond)
}

func TestRoomDetectorErrorsAreSkipped(t *testing.T) {
	cfg := testConfig()
	cfg.Thresholds.NoFaceLimit = 50 * time.Millisecond
	h := startRoom(t, cfg)
	h.goLive(t)
	h.faces.fail.Store(true)

	for ts := int64(1); ts <= 20; ts++ {
		h.room.Frame(ts, []byte("jpeg"))
		time.Sleep(5 * time.Millisecond)
	}
	require.Eventually(t, func() bool { return h.faces.calls.Load() > 0 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, PhaseLive, h.sink.lastPhase())
	_, terminated := h.store.counts()
	assert.Zero(t, terminated)
}

func TestRoomStaleFrameIsNotReprocessed(t *testing.T) {
	h := startRoom(t, testConfig())
	h.goLive(t)

	h.room.Frame(5, []byte("jpeg"))
	require.Eventually(t, func() bool { return h.faces.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	h.room.Frame(4, []byte("older"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), h.faces.calls.Load())
}

func TestDispatchDecodesClientMessages(t *testing.T) {
	h := startRoom(t, testConfig())
	h.goLive(t)

	frame := base64.StdEncoding.EncodeToString([]byte("jpeg"))
	require.NoError(t, Dispatch(h.room, []byte(`{"type":"frame","ts":7,"data":"`+frame+`"}`)))
	assert.Equal(t, int64(7), h.room.frames.get().ts)

	assert.Error(t, Dispatch(h.room, []byte(`{"type":"dance"}`)))
	assert.Error(t, Dispatch(h.room, []byte(`not json`)))

	require.NoError(t, Dispatch(h.room, []byte(`{"type":"end"}`)))
	h.waitDone(t)
	assert.Equal(t, PhaseCompleted, h.room.Phase())
}

func TestManagerRejectsSecondRoom(t *testing.T) {
	m := NewManager(zap.NewNop())
	engine := newFakeEngine()
	deps := Deps{
		Context: testContext(),
		Engines: func() Engine { return engine },
		Sink:    &fakeSink{},
		Store:   &fakeStore{},
		Faces:   &fakeFaces{},
		Config:  testConfig(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r, err := m.Open(ctx, deps)
	require.NoError(t, err)
	assert.True(t, m.Active("s1"))

	_, err = m.Open(ctx, deps)
	assert.ErrorIs(t, err, model.ErrRoomBusy)

	cancel()
	<-r.Done()
	require.Eventually(t, func() bool { return !m.Active("s1") }, time.Second, 5*time.Millisecond)
	assert.Zero(t, m.Count())
}
