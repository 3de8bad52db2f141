package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gobwas/glob"
	"github.com/rs/cors"
)

// Default endpoints served by the gateway, matching the paths advertised by
// the transports listing.
const (
	defaultSSEPath        = "/sse"
	defaultMessagePath    = "/message"
	defaultWebSocketPath  = "/ws"
	defaultSimpleHTTPPath = "/simple"
	defaultStreamPath     = "/stream"
	defaultPollPath       = "/poll"
)

// Gateway mounts every HTTP transport on a single handler, together with the
// informational endpoints describing them. All transports share one
// dispatcher, so a session initialized on one transport sees the same tools
// as every other.
//
// The zero value is not usable; construct gateways with NewGateway.
type Gateway struct {
	dispatcher *Dispatcher
	logger     *slog.Logger

	ssePath        string
	messagePath    string
	webSocketPath  string
	simpleHTTPPath string
	streamPath     string
	pollPath       string

	allowedOrigins []string
	origins        []glob.Glob

	sse     *SSEServer
	handler http.Handler
}

// GatewayOption represents the options for the gateway.
type GatewayOption func(*Gateway)

// NewGateway creates a gateway serving all transports through the given
// dispatcher. It returns an error when an allowed origin pattern does not
// compile or when two transports are configured onto the same endpoint.
func NewGateway(dispatcher *Dispatcher, options ...GatewayOption) (*Gateway, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	g := &Gateway{
		dispatcher:     dispatcher,
		logger:         slog.Default(),
		ssePath:        defaultSSEPath,
		messagePath:    defaultMessagePath,
		webSocketPath:  defaultWebSocketPath,
		simpleHTTPPath: defaultSimpleHTTPPath,
		streamPath:     defaultStreamPath,
		pollPath:       defaultPollPath,
		allowedOrigins: []string{"*"},
	}
	for _, opt := range options {
		opt(g)
	}

	for _, path := range []*string{
		&g.ssePath, &g.messagePath, &g.webSocketPath,
		&g.simpleHTTPPath, &g.streamPath, &g.pollPath,
	} {
		if !strings.HasPrefix(*path, "/") {
			*path = "/" + *path
		}
	}

	for _, pattern := range g.allowedOrigins {
		compiled, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile allowed origin pattern %s: %w", pattern, err)
		}
		g.origins = append(g.origins, compiled)
	}

	g.sse = NewSSEServer(dispatcher, g.messagePath, WithSSEServerLogger(g.logger))
	ws := NewWebSocketServer(dispatcher,
		WithWebSocketServerLogger(g.logger),
		WithWebSocketServerCheckOrigin(g.checkWebSocketOrigin),
	)
	simple := NewHTTPServer(dispatcher, WithHTTPServerLogger(g.logger))
	stream := NewStreamServer(dispatcher, WithStreamServerLogger(g.logger))
	poll := NewPollServer(dispatcher, WithPollServerLogger(g.logger))

	routes := []struct {
		pattern string
		handler http.Handler
	}{
		{"GET /{$}", http.HandlerFunc(g.handleRoot)},
		{"GET /health", http.HandlerFunc(g.handleHealth)},
		{"GET /transports", http.HandlerFunc(g.handleTransports)},
		{"GET " + g.ssePath, g.sse.HandleSSE()},
		{"POST " + g.messagePath, g.sse.HandleMessage()},
		{"GET " + g.webSocketPath, ws.Handler()},
		{"POST " + g.simpleHTTPPath, simple.Handler()},
		{"POST " + g.streamPath, stream.Handler()},
		{"POST " + g.pollPath, poll.Handler()},
	}

	mux := http.NewServeMux()
	seen := make(map[string]struct{}, len(routes))
	for _, route := range routes {
		if _, ok := seen[route.pattern]; ok {
			return nil, fmt.Errorf("duplicate endpoint: %s", route.pattern)
		}
		seen[route.pattern] = struct{}{}
		mux.Handle(route.pattern, route.handler)
	}

	c := cors.New(cors.Options{
		AllowOriginFunc: g.allowOrigin,
		AllowedMethods:  []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:  []string{"*"},
	})
	g.handler = c.Handler(mux)

	g.logger = g.logger.With(
		slog.String("package", "talebook-mcp"),
		slog.String("component", "gateway"),
	)

	return g, nil
}

// WithGatewayLogger sets the logger for the gateway. Each transport derives
// its own component logger from it.
func WithGatewayLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithGatewayAllowedOrigins sets the origins accepted for cross-origin HTTP
// requests and WebSocket upgrades. Patterns follow glob syntax, so
// "https://*.example.com" covers every subdomain. The default allows any
// origin.
func WithGatewayAllowedOrigins(patterns ...string) GatewayOption {
	return func(g *Gateway) {
		g.allowedOrigins = patterns
	}
}

// WithGatewaySSEPath sets the endpoint the SSE stream attaches on.
func WithGatewaySSEPath(path string) GatewayOption {
	return func(g *Gateway) {
		g.ssePath = path
	}
}

// WithGatewayMessagePath sets the endpoint SSE clients post requests to.
func WithGatewayMessagePath(path string) GatewayOption {
	return func(g *Gateway) {
		g.messagePath = path
	}
}

// WithGatewayWebSocketPath sets the endpoint WebSocket clients upgrade on.
func WithGatewayWebSocketPath(path string) GatewayOption {
	return func(g *Gateway) {
		g.webSocketPath = path
	}
}

// WithGatewaySimpleHTTPPath sets the endpoint for plain request/response
// HTTP.
func WithGatewaySimpleHTTPPath(path string) GatewayOption {
	return func(g *Gateway) {
		g.simpleHTTPPath = path
	}
}

// WithGatewayStreamPath sets the endpoint for chunked HTTP streaming.
func WithGatewayStreamPath(path string) GatewayOption {
	return func(g *Gateway) {
		g.streamPath = path
	}
}

// WithGatewayPollPath sets the endpoint for HTTP long polling.
func WithGatewayPollPath(path string) GatewayOption {
	return func(g *Gateway) {
		g.pollPath = path
	}
}

// Handler returns the handler serving every transport and informational
// endpoint, with CORS applied.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// Shutdown closes the streams of all connected SSE sessions. Request scoped
// transports need no teardown beyond the enclosing http.Server's own
// shutdown.
func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.sse.Shutdown(ctx)
}

type serverInfo struct {
	Message    string            `json:"message"`
	Status     string            `json:"status"`
	Transports map[string]string `json:"transports"`
	Tools      []string          `json:"tools"`
}

type healthStatus struct {
	Status string `json:"status"`
	Server string `json:"server"`
}

type transportDescription struct {
	Name        string `json:"name"`
	Endpoint    string `json:"endpoint"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

type transportList struct {
	AvailableTransports []transportDescription `json:"available_transports"`
}

func (g *Gateway) handleRoot(w http.ResponseWriter, _ *http.Request) {
	tools := g.dispatcher.Registry().Tools()
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}

	g.writeJSON(w, serverInfo{
		Message: "Talebook MCP Multi-Transport Server",
		Status:  "running",
		Transports: map[string]string{
			"sse":          g.ssePath,
			"websocket":    g.webSocketPath,
			"simple_http":  g.simpleHTTPPath,
			"http_stream":  g.streamPath,
			"long_polling": g.pollPath,
		},
		Tools: names,
	})
}

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	g.writeJSON(w, healthStatus{
		Status: "healthy",
		Server: g.dispatcher.Sessions().Info().Name,
	})
}

func (g *Gateway) handleTransports(w http.ResponseWriter, _ *http.Request) {
	g.writeJSON(w, transportList{
		AvailableTransports: []transportDescription{
			{
				Name:        "sse",
				Endpoint:    g.ssePath,
				Method:      http.MethodGet,
				Description: "Server-Sent Events streaming",
			},
			{
				Name:        "websocket",
				Endpoint:    g.webSocketPath,
				Method:      "WebSocket",
				Description: "WebSocket bidirectional streaming",
			},
			{
				Name:        "simple-http",
				Endpoint:    g.simpleHTTPPath,
				Method:      http.MethodPost,
				Description: "Simple HTTP (no streaming)",
			},
			{
				Name:        "http-stream",
				Endpoint:    g.streamPath,
				Method:      http.MethodPost,
				Description: "HTTP JSON streaming",
			},
			{
				Name:        "long-polling",
				Endpoint:    g.pollPath,
				Method:      http.MethodPost,
				Description: "HTTP long polling",
			},
		},
	})
}

func (g *Gateway) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		g.logger.Error("failed to write response", slog.String("err", err.Error()))
	}
}

func (g *Gateway) allowOrigin(origin string) bool {
	for _, pattern := range g.origins {
		if pattern.Match(origin) {
			return true
		}
	}
	return false
}

func (g *Gateway) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return g.allowOrigin(origin)
}
