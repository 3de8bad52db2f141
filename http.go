package mcp

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
)

// HTTPServer answers JSON-RPC requests over plain request/response HTTP:
// one POST in, one JSON body out, no streaming. Dispatched envelopes are
// written with status 200 whether they carry a result or a protocol error;
// a body that cannot be decoded at all is answered with status 400 and a
// parse error envelope.
type HTTPServer struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// HTTPServerOption represents the options for the plain HTTP server.
type HTTPServerOption func(*HTTPServer)

// NewHTTPServer creates a plain HTTP server that routes every decoded
// request through the given dispatcher.
func NewHTTPServer(dispatcher *Dispatcher, options ...HTTPServerOption) *HTTPServer {
	s := &HTTPServer{
		dispatcher: dispatcher,
		logger:     slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// WithHTTPServerLogger sets the logger for the plain HTTP server.
func WithHTTPServerLogger(logger *slog.Logger) HTTPServerOption {
	return func(s *HTTPServer) {
		s.logger = logger.With(
			slog.String("package", "talebook-mcp"),
			slog.String("component", "http"),
		)
	}
}

// Handler returns the http.Handler serving one dispatch per POST.
func (s *HTTPServer) Handler() http.Handler {
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

func (s *HTTPServer) write(w http.ResponseWriter, status int, msg JSONRPCMessage) {
	if err := writeMessage(w, status, msg); err != nil {
		s.logger.Error("failed to write response", slog.String("err", err.Error()))
	}
}

// decodeRequestBody reads one request envelope from an HTTP request body.
// When the body is absent or cannot be decoded at all, it returns the parse
// error envelope to put on the wire instead.
func decodeRequestBody(r *http.Request) (JSONRPCMessage, *JSONRPCMessage) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		perr := parseErrorMessage(err.Error())
		return JSONRPCMessage{}, &perr
	}
	if len(bytes.TrimSpace(body)) == 0 {
		perr := parseErrorMessage("No request body")
		return JSONRPCMessage{}, &perr
	}

	var msg JSONRPCMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		perr := parseErrorMessage(err.Error())
		return JSONRPCMessage{}, &perr
	}
	return msg, nil
}

// writeMessage writes an envelope as a JSON response body with the given
// status code.
func writeMessage(w http.ResponseWriter, status int, msg JSONRPCMessage) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(msg)
}
