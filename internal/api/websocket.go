package api

import (
	"airquality-go/internal/logging"
	"airquality-go/internal/metrics"
	"airquality-go/internal/models"
	"airquality-go/internal/service"
	"airquality-go/internal/validation"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Message types exchanged on /ws/dashboard.
const (
	MessageTypeSelect    = "select"
	MessageTypeDashboard = "dashboard"
	MessageTypeError     = "error"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
)

// ClientMessage is sent by the browser. Select messages carry a selection.
type ClientMessage struct {
	Type      string             `json:"type"`
	Selection *service.Selection `json:"selection,omitempty"`
}

// ServerMessage is pushed to the browser.
type ServerMessage struct {
	Type      string                    `json:"type"`
	SessionID string                    `json:"session_id"`
	Dashboard *models.DashboardResponse `json:"dashboard,omitempty"`
	Error     *models.ErrorResponse     `json:"error,omitempty"`
}

func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  4096,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin accepts same-origin requests, requests without an
// Origin header, and the configured CORS origins.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// DashboardSocket upgrades to a websocket session. Each selection the client
// sends is answered with a dashboard; a selection that arrives while another
// is pending or being computed replaces it, so only the latest is answered.
func (h *Handler) DashboardSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	s := newSession(h, conn)

	metrics.WebsocketSessions.Inc()
	logging.Info().Str("session_id", s.id).Str("remote", r.RemoteAddr).Msg("Dashboard session opened")

	go s.writePump()
	go s.computeLoop()
	s.readPump()
}

type session struct {
	id      string
	handler *Handler
	conn    *websocket.Conn

	pending chan request
	send    chan ServerMessage
	done    chan struct{}
	stopped chan struct{}

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// request is a selection tagged with the generation it was submitted in.
type request struct {
	gen       uint64
	selection service.Selection
}

func newSession(h *Handler, conn *websocket.Conn) *session {
	return &session{
		id:      uuid.NewString(),
		handler: h,
		conn:    conn,
		pending: make(chan request, 1),
		send:    make(chan ServerMessage, 8),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// submit queues sel, dropping any selection still waiting and canceling the
// one in progress.
func (s *session) submit(sel service.Selection) {
	s.mu.Lock()
	s.gen++
	req := request{gen: s.gen, selection: sel}
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	for {
		select {
		case s.pending <- req:
			return
		default:
		}
		select {
		case <-s.pending:
		default:
		}
	}
}

// current reports whether gen is still the latest submitted generation.
func (s *session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen
}

func (s *session) readPump() {
	defer func() {
		close(s.done)
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()
		_ = s.conn.Close()
		metrics.WebsocketSessions.Dec()
		logging.Info().Str("session_id", s.id).Msg("Dashboard session closed")
	}()

	s.conn.SetReadLimit(maxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Str("session_id", s.id).Msg("Unexpected websocket close")
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.push(s.errorMessage(errors.New("malformed message")))
			continue
		}

		switch msg.Type {
		case MessageTypePing:
			s.push(ServerMessage{Type: MessageTypePong, SessionID: s.id})
		case MessageTypeSelect:
			if msg.Selection == nil {
				s.push(s.errorMessage(errors.New("select message without selection")))
				continue
			}
			s.submit(*msg.Selection)
		default:
			s.push(s.errorMessage(errors.New("unknown message type " + msg.Type)))
		}
	}
}

func (s *session) computeLoop() {
	for {
		select {
		case <-s.done:
			return
		case req := <-s.pending:
			s.run(req)
		}
	}
}

// run answers req unless a newer selection was submitted before or during
// the build.
func (s *session) run(req request) {
	s.mu.Lock()
	if req.gen != s.gen {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	msg, ok := s.compute(ctx, req.selection)
	cancel()
	if ok && s.current(req.gen) {
		s.push(msg)
	}
}

// compute builds the dashboard for sel. ok is false when the build was
// superseded by a newer selection.
func (s *session) compute(ctx context.Context, sel service.Selection) (ServerMessage, bool) {
	t := s.handler.Store.Table()
	if t == nil {
		return s.errorMessage(errors.New("no dataset loaded")), true
	}

	report, err := s.handler.Dashboard.Build(ctx, t, sel)
	if errors.Is(err, context.Canceled) {
		return ServerMessage{}, false
	}
	if err != nil {
		return s.errorMessage(err), true
	}

	resp := toDashboard(report)
	return ServerMessage{Type: MessageTypeDashboard, SessionID: s.id, Dashboard: &resp}, true
}

func (s *session) errorMessage(err error) ServerMessage {
	body := models.ErrorResponse{Error: err.Error()}
	var reqErr *validation.RequestError
	if errors.As(err, &reqErr) {
		body.Fields = reqErr.Fields
	}
	return ServerMessage{Type: MessageTypeError, SessionID: s.id, Error: &body}
}

func (s *session) push(msg ServerMessage) {
	select {
	case s.send <- msg:
	case <-s.done:
	case <-s.stopped:
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(s.stopped)
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			data, err := json.Marshal(msg)
			if err != nil {
				logging.Error().Err(err).Str("session_id", s.id).Msg("Failed to encode websocket message")
				continue
			}
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
