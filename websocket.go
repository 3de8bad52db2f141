package mcp

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// WebSocketServer exposes the dispatcher over a WebSocket endpoint. Every
// text frame carries one request envelope and is answered with one response
// frame on the same connection. Frames that cannot be decoded at all are
// answered with a parse error envelope; the connection stays open either
// way.
type WebSocketServer struct {
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// WebSocketServerOption represents the options for the WebSocket server.
type WebSocketServerOption func(*WebSocketServer)

// NewWebSocketServer creates a WebSocket server that routes every decoded
// request through the given dispatcher. Connections are accepted from any
// origin unless an origin check is configured.
func NewWebSocketServer(dispatcher *Dispatcher, options ...WebSocketServerOption) *WebSocketServer {
	s := &WebSocketServer{
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// WithWebSocketServerLogger sets the logger for the WebSocket server.
func WithWebSocketServerLogger(logger *slog.Logger) WebSocketServerOption {
	return func(s *WebSocketServer) {
		s.logger = logger.With(
			slog.String("package", "talebook-mcp"),
			slog.String("component", "websocket"),
		)
	}
}

// WithWebSocketServerCheckOrigin sets the origin check used during the
// upgrade handshake.
func WithWebSocketServerCheckOrigin(check func(*http.Request) bool) WebSocketServerOption {
	return func(s *WebSocketServer) {
		s.upgrader.CheckOrigin = check
	}
}

// Handler returns the http.Handler performing the WebSocket upgrade and
// serving the connection until the client disconnects. Reads and writes are
// serialized by the connection loop, one response per request frame.
func (s *WebSocketServer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied to the client.
			s.logger.Error("failed to upgrade connection", slog.String("err", err.Error()))
			return
		}
		defer conn.Close()

		s.logger.Info("websocket client connected", slog.String("remoteAddr", r.RemoteAddr))

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Warn("websocket read failed", slog.String("err", err.Error()))
				}
				return
			}

			var msg JSONRPCMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				s.logger.Warn("failed to decode message", slog.String("err", err.Error()))
				if err := conn.WriteJSON(parseErrorMessage(err.Error())); err != nil {
					s.logger.Error("failed to write message", slog.String("err", err.Error()))
					return
				}
				continue
			}

			res := s.dispatcher.Dispatch(r.Context(), msg)
			if err := conn.WriteJSON(res); err != nil {
				s.logger.Error("failed to write message", slog.String("err", err.Error()))
				return
			}
		}
	})
}
