package mcp

import (
	"log/slog"
	"net/http"
)

// PollServer answers JSON-RPC requests over HTTP long polling. Each poll
// carries one request; because dispatch runs within the poll itself, the
// response is available immediately and the poll is released with it rather
// than parked against a queue.
type PollServer struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// PollServerOption represents the options for the long polling server.
type PollServerOption func(*PollServer)

// NewPollServer creates a long polling server that routes every decoded
// request through the given dispatcher.
func NewPollServer(dispatcher *Dispatcher, options ...PollServerOption) *PollServer {
	s := &PollServer{
		dispatcher: dispatcher,
		logger:     slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// WithPollServerLogger sets the logger for the long polling server.
func WithPollServerLogger(logger *slog.Logger) PollServerOption {
	return func(s *PollServer) {
		s.logger = logger.With(
			slog.String("package", "talebook-mcp"),
			slog.String("component", "poll"),
		)
	}
}

// Handler returns the http.Handler releasing one response per poll.
func (s *PollServer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		msg, parseErr := decodeRequestBody(r)
		if parseErr != nil {
			s.logger.Warn("failed to decode request", slog.String("err", parseErr.Error.Message))
			s.write(w, http.StatusBadRequest, *parseErr)
			return
		}

		res := s.dispatcher.Dispatch(r.Context(), msg)
		s.write(w, http.StatusOK, res)
	})
}

func (s *PollServer) write(w http.ResponseWriter, status int, msg JSONRPCMessage) {
	if err := writeMessage(w, status, msg); err != nil {
		s.logger.Error("failed to write response", slog.String("err", err.Error()))
	}
}
