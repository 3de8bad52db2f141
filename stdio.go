package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// StdIOServer answers JSON-RPC requests over newline-delimited JSON on an
// io.Reader/io.Writer pair, typically stdin/stdout. Each input line carries
// one request envelope and produces exactly one response line; lines that
// cannot be decoded produce a parse error line. Messages are processed
// sequentially, so responses come back in request order.
//
// Proper initialization requires using the NewStdIOServer constructor
// function to create new instances.
type StdIOServer struct {
	dispatcher *Dispatcher
	reader     io.Reader
	writer     io.Writer
	logger     *slog.Logger

	done chan struct{}
}

// StdIOServerOption represents the options for the stdio server.
type StdIOServerOption func(*StdIOServer)

// NewStdIOServer creates a stdio server reading requests from reader and
// writing responses to writer, routing every decoded request through the
// given dispatcher.
func NewStdIOServer(dispatcher *Dispatcher, reader io.Reader, writer io.Writer, options ...StdIOServerOption) *StdIOServer {
	s := &StdIOServer{
		dispatcher: dispatcher,
		reader:     reader,
		writer:     writer,
		logger:     slog.Default(),
		done:       make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// WithStdIOServerLogger sets the logger for the stdio server.
func WithStdIOServerLogger(logger *slog.Logger) StdIOServerOption {
	return func(s *StdIOServer) {
		s.logger = logger.With(
			slog.String("package", "talebook-mcp"),
			slog.String("component", "stdio"),
		)
	}
}

// Serve reads request lines until the reader is exhausted, the context is
// canceled, or Shutdown is called. It returns nil on EOF and on shutdown.
func (s *StdIOServer) Serve(ctx context.Context) error {
	// Use bufio.Reader instead of bufio.Scanner to avoid max token size errors.
	reader := bufio.NewReader(s.reader)
	for {
		type lineWithErr struct {
			line string
			err  error
		}

		// The buffer lets the goroutine deposit its line and exit even when
		// the loop has already returned.
		lines := make(chan lineWithErr, 1)

		// We use a goroutine to avoid blocking on slow readers, so we can
		// listen to the context and done channel and return if needed.
		go func() {
			line, err := reader.ReadString('\n')
			if err != nil {
				lines <- lineWithErr{line: line, err: err}
				return
			}
			lines <- lineWithErr{line: strings.TrimSuffix(line, "\n")}
		}()

		var lwe lineWithErr
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case lwe = <-lines:
		}

		if lwe.err != nil {
			// A final line without a trailing newline still gets served.
			if errors.Is(lwe.err, io.EOF) {
				if strings.TrimSpace(lwe.line) != "" {
					s.serveLine(ctx, lwe.line)
				}
				return nil
			}
			return fmt.Errorf("failed to read message: %w", lwe.err)
		}

		if strings.TrimSpace(lwe.line) == "" {
			continue
		}

		s.serveLine(ctx, lwe.line)
	}
}

// Shutdown stops the Serve loop. It is safe to call once.
func (s *StdIOServer) Shutdown() {
	close(s.done)
}

func (s *StdIOServer) serveLine(ctx context.Context, line string) {
	var msg JSONRPCMessage
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		s.logger.Warn("failed to decode request", slog.String("err", err.Error()))
		s.writeMessage(parseErrorMessage(err.Error()))
		return
	}

	s.writeMessage(s.dispatcher.Dispatch(ctx, msg))
}

func (s *StdIOServer) writeMessage(msg JSONRPCMessage) {
	msgBs, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal response", slog.String("err", err.Error()))
		return
	}
	// Append newline to maintain message framing protocol
	msgBs = append(msgBs, '\n')

	if _, err := s.writer.Write(msgBs); err != nil {
		s.logger.Error("failed to write response", slog.String("err", err.Error()))
	}
}
