package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"
)

// SSEServer exposes the dispatcher over Server-Sent Events. Clients open a
// long-lived GET stream through HandleSSE and receive an "endpoint" event
// naming the URL to POST requests to; every dispatched response comes back
// on the stream as a "message" event. The two handlers are plain
// http.Handlers and can be mounted on any mux.
//
// Instances should be created using NewSSEServer and shut down using
// Shutdown when no longer needed.
type SSEServer struct {
	dispatcher  *Dispatcher
	messageURL  string
	sendTimeout time.Duration
	logger      *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*sseSession

	done chan struct{}
}

// SSEServerOption represents the options for the SSE server.
type SSEServerOption func(*SSEServer)

type sseSession struct {
	id       string
	sess     *sse.Session
	sendMsgs chan sseSessionSendMsg
	logger   *slog.Logger

	done       chan struct{}
	sendClosed chan struct{}
}

type sseSessionSendMsg struct {
	msg  *sse.Message
	errs chan<- error
}

var defaultSSESendTimeout = 30 * time.Second

// NewSSEServer creates an SSE server that routes every decoded request
// through the given dispatcher. The messageURL is advertised to clients in
// the "endpoint" event and receives their POSTs; a sessionID query parameter
// is appended to tie posts to streams.
func NewSSEServer(dispatcher *Dispatcher, messageURL string, options ...SSEServerOption) *SSEServer {
	s := &SSEServer{
		dispatcher: dispatcher,
		messageURL: messageURL,
		logger:     slog.Default(),
		sessions:   make(map[string]*sseSession),
		done:       make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.sendTimeout == 0 {
		s.sendTimeout = defaultSSESendTimeout
	}
	return s
}

// WithSSEServerLogger sets the logger for the SSE server.
func WithSSEServerLogger(logger *slog.Logger) SSEServerOption {
	return func(s *SSEServer) {
		s.logger = logger.With(
			slog.String("package", "talebook-mcp"),
			slog.String("component", "sse"),
		)
	}
}

// WithSSEServerSendTimeout sets the timeout for delivering one response
// event to a client stream.
func WithSSEServerSendTimeout(timeout time.Duration) SSEServerOption {
	return func(s *SSEServer) {
		s.sendTimeout = timeout
	}
}

// Shutdown terminates all active client streams and refuses new ones.
// Handlers blocked in HandleSSE return once their session is torn down.
func (s *SSEServer) Shutdown(ctx context.Context) error {
	close(s.done)

	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*sseSession)
	s.mu.Unlock()

	for _, sess := range sessions {
		close(sess.done)
		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to close SSE sessions: %w", ctx.Err())
		case <-sess.sendClosed:
		}
	}
	return nil
}

// HandleSSE returns an http.Handler for establishing SSE streams over GET
// requests. The handler upgrades the connection, assigns a unique session
// ID, and tells the client its message endpoint. The connection stays open
// until the client disconnects or the server shuts down; requests arriving
// after Shutdown are refused with a 503.
func (s *SSEServer) HandleSSE() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-s.done:
			http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
			return
		default:
		}

		sess, err := sse.Upgrade(w, r)
		if err != nil {
			nErr := fmt.Errorf("failed to upgrade session: %w", err)
			s.logger.Error("failed to upgrade session", "err", nErr)
			http.Error(w, nErr.Error(), http.StatusInternalServerError)
			return
		}

		sessID := uuid.New().String()

		// Form an url for the client that can be used to post messages to this session.
		url := fmt.Sprintf("%s?sessionID=%s", s.messageURL, sessID)

		// Use the type "endpoint" to indicate the endpoint URL.
		msg := sse.Message{
			Type: sse.Type("endpoint"),
		}
		msg.AppendData(url)
		if err := sess.Send(&msg); err != nil {
			nErr := fmt.Errorf("failed to write SSE URL: %w", err)
			s.logger.Error("failed to write SSE URL", "err", nErr)
			http.Error(w, nErr.Error(), http.StatusInternalServerError)
			return
		}

		if err := sess.Flush(); err != nil {
			nErr := fmt.Errorf("failed to flush SSE: %w", err)
			s.logger.Error("failed to flush SSE", "err", nErr)
			http.Error(w, nErr.Error(), http.StatusInternalServerError)
			return
		}

		srvSession := &sseSession{
			id:         sessID,
			sess:       sess,
			logger:     s.logger,
			sendMsgs:   make(chan sseSessionSendMsg, 5),
			done:       make(chan struct{}),
			sendClosed: make(chan struct{}),
		}

		// Register under the lock, re-checking s.done there: a session that
		// observes it open lands in the map before Shutdown swaps it, so
		// Shutdown is guaranteed to tear it down.
		s.mu.Lock()
		select {
		case <-s.done:
			s.mu.Unlock()
			s.logger.Warn("sse stream refused, server shut down", slog.String("sessionID", sessID))
			return
		default:
		}
		s.sessions[sessID] = srvSession
		s.mu.Unlock()

		s.logger.Info("sse session connected", slog.String("sessionID", sessID))

		// Writes to the sse session must go through one goroutine.
		go srvSession.processSendMessages()

		// Block so the connection is left open until the client goes away
		// or the server shuts down.
		select {
		case <-r.Context().Done():
			// Whoever removes the session from the map owns closing it.
			s.mu.Lock()
			_, owned := s.sessions[sessID]
			delete(s.sessions, sessID)
			s.mu.Unlock()
			if owned {
				close(srvSession.done)
			}
			<-srvSession.sendClosed
		case <-srvSession.done:
			<-srvSession.sendClosed
		}

		s.logger.Info("sse session closed", slog.String("sessionID", sessID))
	})
}

// HandleMessage returns an http.Handler for processing client requests sent
// via POST. The handler expects a sessionID query parameter identifying an
// active stream; the dispatched response envelope is delivered on that
// stream as a "message" event. A body that cannot be decoded at all is
// answered with a parse error envelope on the stream and a 400 status.
func (s *SSEServer) HandleMessage() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessID := r.URL.Query().Get("sessionID")
		if sessID == "" {
			nErr := errors.New("missing sessionID query parameter")
			s.logger.Warn("missing sessionID query parameter", slog.String("err", nErr.Error()))
			http.Error(w, nErr.Error(), http.StatusBadRequest)
			return
		}

		s.mu.RLock()
		sess, ok := s.sessions[sessID]
		s.mu.RUnlock()
		if !ok {
			nErr := errors.New("session not found")
			s.logger.Warn("session not found", slog.String("sessionID", sessID))
			http.Error(w, nErr.Error(), http.StatusNotFound)
			return
		}

		decoder := json.NewDecoder(r.Body)
		var msg JSONRPCMessage

		if err := decoder.Decode(&msg); err != nil {
			s.logger.Warn("failed to decode message", slog.String("err", err.Error()))
			s.deliver(sess, parseErrorMessage(err.Error()))
			http.Error(w, "failed to decode message", http.StatusBadRequest)
			return
		}

		res := s.dispatcher.Dispatch(r.Context(), msg)
		if err := s.deliver(sess, res); err != nil {
			http.Error(w, "failed to deliver response", http.StatusInternalServerError)
			return
		}
	})
}

func (s *SSEServer) deliver(sess *sseSession, msg JSONRPCMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
	defer cancel()

	if err := sess.send(ctx, msg); err != nil {
		s.logger.Error("failed to send message",
			slog.String("sessionID", sess.id),
			slog.String("err", err.Error()))
		return err
	}
	return nil
}

func (s *sseSession) send(ctx context.Context, msg JSONRPCMessage) error {
	msgBs, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	sseMsg := &sse.Message{
		Type: sse.Type("message"),
	}
	sseMsg.AppendData(string(msgBs))

	// The buffer holds the ack even when the writer finishes before the
	// wait below begins.
	errs := make(chan error, 1)

	// Queue the message for sending to avoid racing in the sse library.
	select {
	case s.sendMsgs <- sseSessionSendMsg{sseMsg, errs}:
	case <-s.done:
		return errors.New("session is closed")
	case <-ctx.Done():
		return ctx.Err()
	}

	// Wait and return the error if any.
	select {
	case err := <-errs:
		return err
	case <-s.done:
		return errors.New("session is closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *sseSession) processSendMessages() {
	defer close(s.sendClosed)

	for {
		select {
		case sm := <-s.sendMsgs:
			// Send and flush the message to the client. The errs channel is
			// buffered, so reporting never blocks this loop.
			if err := s.sess.Send(sm.msg); err != nil {
				s.logger.Warn("failed to send message", slog.String("err", err.Error()))
				sm.errs <- err
				continue
			}
			if err := s.sess.Flush(); err != nil {
				s.logger.Warn("failed to flush message", slog.String("err", err.Error()))
				sm.errs <- err
				continue
			}

			sm.errs <- nil
		case <-s.done:
			return
		}
	}
}
