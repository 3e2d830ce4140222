package server

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/coordwatch/internal/coords"
	apperrors "github.com/GriffinCanCode/coordwatch/internal/errors"
	"github.com/GriffinCanCode/coordwatch/internal/monitor"
	"github.com/GriffinCanCode/coordwatch/internal/trace"
	"github.com/GriffinCanCode/coordwatch/pkg/action"
)

// Monitor is the session the server controls.
type Monitor interface {
	Handle(ctx context.Context, a action.Action) error
	Toggle(ctx context.Context) error
	Status() monitor.Status
	LastRegion() *image.NRGBA
}

// CoordinateMessage tells clients a coordinate was submitted to the page.
type CoordinateMessage struct {
	Type       string            `json:"type"`
	Coordinate coords.Coordinate `json:"coordinate"`
}

// ErrorMessage reports a rejected or failed control message.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	// Prune old timestamps
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// client is one WebSocket connection. Writes are serialized per connection.
type client struct {
	conn    *websocket.Conn
	limiter *rateLimiter
	writeMu sync.Mutex
}

func (c *client) write(ctx context.Context, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, WriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, c.conn, v)
}

// Server handles HTTP and WebSocket connections. It also receives
// monitoring events and relays them to every connected client.
type Server struct {
	mon   Monitor
	mu    sync.RWMutex
	conns map[*websocket.Conn]*client
}

// New creates a new server. It is created before the controller so it can
// be handed to it as a broadcaster; Bind attaches the controller after.
func New() *Server {
	return &Server{conns: make(map[*websocket.Conn]*client)}
}

// Bind sets the controlled session.
func (s *Server) Bind(mon Monitor) {
	s.mu.Lock()
	s.mon = mon
	s.mu.Unlock()
}

func (s *Server) monitor() Monitor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mon
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("GET /api/monitoring", s.handleStatus)
	mux.HandleFunc("POST /api/monitoring/start", s.handleAction(action.Start()))
	mux.HandleFunc("POST /api/monitoring/stop", s.handleAction(action.Stop()))
	mux.HandleFunc("POST /api/monitoring/toggle", s.handleToggle)
	mux.HandleFunc("GET /api/debug/region", s.handleRegion)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	log := trace.Logger(r.Context())
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	c := &client{conn: conn, limiter: &rateLimiter{}}
	s.mu.Lock()
	s.conns[conn] = c
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	baseCtx := r.Context()
	log.Info("websocket connected", "remote", r.RemoteAddr)

	// New clients learn the current state right away.
	_ = c.write(baseCtx, action.State(s.monitor().Status().IsMonitoring))

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !c.limiter.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = c.write(baseCtx, ErrorMessage{Type: TypeError, Message: "rate limit exceeded"})
			continue
		}

		a, err := action.Decode(msg)
		if err != nil {
			log.Debug("invalid control message", "error", err)
			_ = c.write(baseCtx, ErrorMessage{Type: TypeError, Code: apperrors.CodeInvalidArgument.String(), Message: err.Error()})
			continue
		}

		// Extract trace_id from message or create new trace context
		ctx := baseCtx
		if tc, ok := trace.ExtractFromJSON(msg); ok {
			ctx = trace.WithContext(ctx, tc)
		} else {
			ctx, _ = trace.EnsureContext(ctx)
		}

		// Starting can take seconds; the session outlives the connection.
		go s.apply(context.WithoutCancel(ctx), c, a)
	}
}

// apply runs one control message and reports failures to its sender.
// State changes reach every client through MonitoringChanged.
func (s *Server) apply(ctx context.Context, c *client, a action.Action) {
	ctx, span := trace.StartSpan(ctx, "handle_action")
	defer span.End()
	span.SetAttr("type", string(a.Type))

	log := trace.Logger(ctx)
	log.Info("control message", "type", a.Type)

	if err := s.monitor().Handle(ctx, a); err != nil {
		span.Fail(err)
		log.Warn("control message failed", "type", a.Type, "error", err)
		_ = c.write(ctx, errorMessage(err))
	}
}

func errorMessage(err error) ErrorMessage {
	msg := ErrorMessage{Type: TypeError, Message: err.Error()}
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		msg.Code = appErr.Code.String()
		msg.Message = appErr.Message
	}
	return msg
}

// broadcast writes v to every connected client.
func (s *Server) broadcast(ctx context.Context, v any) {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.conns))
	for _, c := range s.conns {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		go func(c *client) {
			if err := c.write(context.WithoutCancel(ctx), v); err != nil {
				trace.Logger(ctx).Debug("websocket write failed", "error", err)
			}
		}(c)
	}
}

// MonitoringChanged relays the session state to every client.
func (s *Server) MonitoringChanged(ctx context.Context, active bool) {
	s.broadcast(ctx, action.State(active))
}

// CoordinateAccepted relays a submitted coordinate to every client.
func (s *Server) CoordinateAccepted(ctx context.Context, c coords.Coordinate) {
	s.broadcast(ctx, CoordinateMessage{Type: TypeCoordinate, Coordinate: c})
}

// Clients returns the number of connected WebSocket clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}
