package mcp

import (
	"log/slog"

	"github.com/google/uuid"
)

// SessionManagerOption represents the options for the session manager.
type SessionManagerOption func(*SessionManager)

// SessionManager issues protocol sessions. Every initialize call yields a
// fresh opaque identifier together with the server's protocol version,
// capabilities, and identity. Sessions carry no server-side state: they are
// never stored, expired, or revoked here.
type SessionManager struct {
	info         Info
	capabilities ServerCapabilities

	logger *slog.Logger
}

// NewSessionManager creates a SessionManager reporting the default talebook
// server identity and a tools capability.
func NewSessionManager(options ...SessionManagerOption) *SessionManager {
	m := &SessionManager{
		info: Info{
			Name:    defaultServerName,
			Version: defaultServerVersion,
		},
		capabilities: ServerCapabilities{
			Tools: &ToolsCapability{},
		},
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// WithSessionManagerInfo overrides the server identity reported to clients.
func WithSessionManagerInfo(info Info) SessionManagerOption {
	return func(m *SessionManager) {
		m.info = info
	}
}

// WithSessionManagerLogger sets the logger for the session manager.
func WithSessionManagerLogger(logger *slog.Logger) SessionManagerOption {
	return func(m *SessionManager) {
		m.logger = logger.With(
			slog.String("package", "talebook-mcp"),
			slog.String("component", "session"),
		)
	}
}

// Info returns the server identity reported to clients.
func (m *SessionManager) Info() Info {
	return m.info
}

// Initialize creates a new session for a client. It never fails: the result
// always carries a freshly generated version 4 UUID as the session
// identifier.
func (m *SessionManager) Initialize(params InitializeParams) InitializeResult {
	sessID := uuid.New().String()
	m.logger.Info("initialized session",
		slog.String("sessionID", sessID),
		slog.String("clientName", params.ClientInfo.Name),
		slog.String("clientVersion", params.ClientInfo.Version))

	return InitializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    m.capabilities,
		ServerInfo:      m.info,
		SessionID:       sessID,
	}
}
