package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// operation identifies one dispatchable protocol operation. Several method
// names may route to the same operation.
type operation int

const (
	opInitialize operation = iota
	opListTools
	opCallTool
)

// methodOperations maps every accepted method name to its operation. The
// legacy mcp-prefixed aliases share an entry with their path-style names, so
// the two spellings cannot drift apart in behavior.
var methodOperations = map[string]operation{
	MethodInitialize:      opInitialize,
	MethodToolsList:       opListTools,
	MethodLegacyToolsList: opListTools,
	MethodToolsCall:       opCallTool,
	MethodLegacyToolsCall: opCallTool,
}

// DispatcherOption represents the options for the dispatcher.
type DispatcherOption func(*Dispatcher)

// Dispatcher routes decoded JSON-RPC request envelopes to the tool registry
// and the session manager, regardless of which transport delivered them, and
// builds the envelope to be re-encoded onto the wire.
//
// A Dispatcher holds no per-request state and is safe for unlimited
// concurrent calls. It enforces no session affinity: a tools/call arriving
// without a prior initialize is served normally.
type Dispatcher struct {
	registry *ToolRegistry
	sessions *SessionManager

	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher serving tools from the given registry
// and sessions from the given session manager.
func NewDispatcher(registry *ToolRegistry, sessions *SessionManager, options ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		sessions: sessions,
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// WithDispatcherLogger sets the logger for the dispatcher.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger.With(
			slog.String("package", "talebook-mcp"),
			slog.String("component", "dispatcher"),
		)
	}
}

// Registry returns the tool registry requests are dispatched against.
func (d *Dispatcher) Registry() *ToolRegistry {
	return d.registry
}

// Sessions returns the session manager requests are dispatched against.
func (d *Dispatcher) Sessions() *SessionManager {
	return d.sessions
}

// Dispatch handles one request envelope and returns the response envelope.
// It never returns an error: every failure, including a panicking tool
// handler, becomes a JSON-RPC error response, and the request identifier is
// echoed verbatim whether it is a string, a number, null, or absent.
func (d *Dispatcher) Dispatch(ctx context.Context, msg JSONRPCMessage) (res JSONRPCMessage) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic while dispatching request",
				slog.String("method", msg.Method),
				slog.Any("panic", r))
			res = errorMessage(msg.ID, jsonRPCInternalErrorCode, fmt.Sprintf("Internal error: %v", r))
		}
	}()

	d.logger.Debug("dispatching request", slog.String("method", msg.Method))

	op, ok := methodOperations[msg.Method]
	if !ok {
		d.logger.Info("method not found", slog.String("method", msg.Method))
		return errorMessage(msg.ID, jsonRPCMethodNotFoundCode, "Method not found: "+msg.Method)
	}

	var result any
	var err error

	switch op {
	case opInitialize:
		result, err = d.callInitialize(msg)
	case opListTools:
		result, err = d.callListTools(msg)
	case opCallTool:
		result, err = d.callCallTool(ctx, msg)
	}

	resMsg := JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      msg.ID,
	}

	if err != nil {
		jsonErr := JSONRPCError{}
		if !errors.As(err, &jsonErr) {
			jsonErr = JSONRPCError{
				Code:    jsonRPCInternalErrorCode,
				Message: fmt.Sprintf("Internal error: %s", err),
			}
		}
		d.logger.Error("failed to handle request",
			slog.String("method", msg.Method),
			slog.String("err", err.Error()))
		resMsg.Error = &jsonErr
		return resMsg
	}

	resMsg.Result, _ = json.Marshal(result)
	return resMsg
}

func (d *Dispatcher) callInitialize(msg JSONRPCMessage) (InitializeResult, error) {
	var params InitializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return InitializeResult{}, JSONRPCError{
				Code:    jsonRPCInternalErrorCode,
				Message: fmt.Sprintf("Internal error: failed to unmarshal params: %s", err),
			}
		}
	}

	return d.sessions.Initialize(params), nil
}

func (d *Dispatcher) callListTools(msg JSONRPCMessage) (ListToolsResult, error) {
	var params ListToolsParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return ListToolsResult{}, JSONRPCError{
				Code:    jsonRPCInternalErrorCode,
				Message: fmt.Sprintf("Internal error: failed to unmarshal params: %s", err),
			}
		}
	}

	return ListToolsResult{Tools: d.registry.Tools()}, nil
}

func (d *Dispatcher) callCallTool(ctx context.Context, msg JSONRPCMessage) (CallToolResult, error) {
	var params CallToolParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return CallToolResult{}, JSONRPCError{
				Code:    jsonRPCInternalErrorCode,
				Message: fmt.Sprintf("Internal error: failed to unmarshal params: %s", err),
			}
		}
	}

	content, err := d.registry.Call(ctx, params.Name, params.Arguments)
	if err != nil {
		if errors.Is(err, ErrToolNotFound) {
			return CallToolResult{}, JSONRPCError{
				Code:    jsonRPCMethodNotFoundCode,
				Message: "Unknown tool: " + params.Name,
			}
		}
		var execErr *ToolExecutionError
		if errors.As(err, &execErr) {
			return CallToolResult{}, JSONRPCError{
				Code:    jsonRPCInternalErrorCode,
				Message: execErr.Error(),
			}
		}
		return CallToolResult{}, JSONRPCError{
			Code:    jsonRPCInternalErrorCode,
			Message: fmt.Sprintf("Internal error: %s", err),
		}
	}

	return CallToolResult{Content: content}, nil
}

// errorMessage builds an error response envelope echoing the given
// identifier.
func errorMessage(id RequestID, code int, message string) JSONRPCMessage {
	return JSONRPCMessage{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
	}
}

// parseErrorMessage builds the error envelope for a payload that could not
// be decoded into a request envelope at all. Since no identifier could be
// recovered, the id is null. Transport adapters produce this before dispatch
// is ever attempted.
func parseErrorMessage(detail string) JSONRPCMessage {
	return errorMessage(nullRequestID, jsonRPCParseErrorCode, "Parse error: "+detail)
}
