package mcp

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// StreamServer answers JSON-RPC requests over chunked HTTP streaming. The
// response envelope is flushed to the client as soon as it is ready, without
// a Content-Length, so the transfer stays chunked end to end. Parse error
// envelopes travel over the same stream as ordinary responses.
type StreamServer struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// StreamServerOption represents the options for the streaming HTTP server.
type StreamServerOption func(*StreamServer)

// NewStreamServer creates a chunked streaming server that routes every
// decoded request through the given dispatcher.
func NewStreamServer(dispatcher *Dispatcher, options ...StreamServerOption) *StreamServer {
	s := &StreamServer{
		dispatcher: dispatcher,
		logger:     slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// WithStreamServerLogger sets the logger for the streaming HTTP server.
func WithStreamServerLogger(logger *slog.Logger) StreamServerOption {
	return func(s *StreamServer) {
		s.logger = logger.With(
			slog.String("package", "talebook-mcp"),
			slog.String("component", "stream"),
		)
	}
}

// Handler returns the http.Handler serving one dispatch per POST, streamed
// back as a chunk.
func (s *StreamServer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "close")

		msg, parseErr := decodeRequestBody(r)
		if parseErr != nil {
			s.logger.Warn("failed to decode request", slog.String("err", parseErr.Error.Message))
			s.stream(w, *parseErr)
			return
		}

		res := s.dispatcher.Dispatch(r.Context(), msg)
		s.stream(w, res)
	})
}

func (s *StreamServer) stream(w http.ResponseWriter, msg JSONRPCMessage) {
	msgBs, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal response", slog.String("err", err.Error()))
		return
	}
	msgBs = append(msgBs, '\n')

	if _, err := w.Write(msgBs); err != nil {
		s.logger.Error("failed to write response", slog.String("err", err.Error()))
		return
	}
	f, ok := w.(http.Flusher)
	if !ok {
		return
	}
	f.Flush()
}
