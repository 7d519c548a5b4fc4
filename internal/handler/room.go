package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cogniview/internal/model"
	"cogniview/internal/room"
	logging "cogniview/pkg/logger/pkg"
)

const (
	writeWait      = 5 * time.Second
	maxMessageSize = 4 << 20 // one camera frame
)

// RoomService resolves what a room connection needs.
type RoomService interface {
	ParseRoomToken(raw string) (candidateID, sessionID string, err error)
	RoomContext(ctx context.Context, candidateID, sessionID string) (*room.SessionContext, error)
	RoomStore() room.Store
}

type RoomHandler struct {
	svc      RoomService
	rooms    *room.Manager
	engines  room.EngineFactory
	faces    room.FaceCounter
	cfg      room.Config
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewRoomHandler(svc RoomService, rooms *room.Manager, engines room.EngineFactory, faces room.FaceCounter, cfg room.Config, logger *zap.Logger) *RoomHandler {
	return &RoomHandler{
		svc:      svc,
		rooms:    rooms,
		engines:  engines,
		faces:    faces,
		cfg:      cfg,
		logger:   logger,
		upgrader: websocket.Upgrader{},
	}
}

// AllowOrigins accepts room connections from the given front-end origins. Without any, only same-origin
// browser requests are accepted. "*" accepts every origin.
func (h *RoomHandler) AllowOrigins(origins ...string) *RoomHandler {
	h.upgrader.CheckOrigin = checkOrigin(origins)
	return h
}

func normalizeOrigin(origin string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(origin)), "/")
}

func checkOrigin(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o = normalizeOrigin(o); o != "" {
			allowed[o] = true
		}
	}
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return allowed["*"] || allowed[normalizeOrigin(origin)]
	}
}

func (h *RoomHandler) Register(r gin.IRouter) {
	r.GET("/v1/room/ws", h.ServeWS)
}

// wsSink serializes writes to one websocket connection.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) SendJSON(msg room.ServerMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(msg)
}

func (s *wsSink) SendAudio(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.BinaryMessage, pcm)
}

func (s *wsSink) close(code int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
	s.conn.Close()
}

// ServeWS upgrades a candidate connection and runs its interview room until either side ends it.
func (h *RoomHandler) ServeWS(c *gin.Context) {
	candidateID, sessionID, err := h.svc.ParseRoomToken(c.Query("token"))
	if err != nil {
		writeError(c, err)
		return
	}
	sc, err := h.svc.RoomContext(c.Request.Context(), candidateID, sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxMessageSize)
	sink := &wsSink{conn: conn}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	reqLogger := logging.Logger(ctx)
	logger := reqLogger.With(zap.String("sessionId", sc.Session.ID))

	rm, err := h.rooms.Open(ctx, room.Deps{
		Context: sc,
		Engines: h.engines,
		Sink:    sink,
		Store:   h.svc.RoomStore(),
		Faces:   h.faces,
		Logger:  reqLogger,
		Config:  h.cfg,
	})
	if err != nil {
		sink.SendJSON(room.ServerMessage{Type: room.MsgError, Message: err.Error()})
		if errors.Is(err, model.ErrRoomBusy) {
			sink.close(websocket.CloseTryAgainLater, "room already open")
		} else {
			sink.close(websocket.CloseInternalServerErr, "room unavailable")
		}
		return
	}

	go func() {
		<-rm.Done()
		sink.close(websocket.CloseNormalClosure, "room closed")
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !room.IsBenignClose(err) {
				logger.Debug("Room connection closed", zap.Error(err))
			}
			break
		}
		switch kind {
		case websocket.TextMessage:
			if err := room.Dispatch(rm, data); err != nil {
				logger.Debug("Ignoring client message", zap.Error(err))
			}
		case websocket.BinaryMessage:
			rm.Audio(data)
		}
	}

	cancel()
	<-rm.Done()
}
