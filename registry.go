package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/qri-io/jsonschema"
)

// ToolHandler executes a tool call. By the time a handler runs, the
// arguments have been validated against the tool's declared input schema.
// The returned content holds the tool's output; a returned error is reported
// to the caller as a tool execution failure, never as a crash.
type ToolHandler func(ctx context.Context, args map[string]any) ([]Content, error)

var (
	// ErrDuplicateTool is returned by Register when a tool with the same name
	// is already registered.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrToolNotFound is returned by Call when no tool with the requested
	// name is registered.
	ErrToolNotFound = errors.New("tool not found")
)

// ToolExecutionError reports a failure inside a tool handler, carrying the
// user-facing message the handler produced.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return e.Err.Error()
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

type registeredTool struct {
	tool    Tool
	schema  *jsonschema.Schema
	handler ToolHandler
}

// ToolRegistryOption represents the options for the tool registry.
type ToolRegistryOption func(*ToolRegistry)

// ToolRegistry maps tool names to their descriptors and handlers. It is the
// extensibility seam of the server: a new tool is a Register call away and
// needs no dispatcher change.
//
// Registration must complete before the registry starts serving calls.
// Entries are never mutated afterwards, so concurrent reads require no
// locking.
type ToolRegistry struct {
	names []string
	tools map[string]registeredTool

	logger *slog.Logger
}

// NewToolRegistry creates an empty ToolRegistry.
func NewToolRegistry(options ...ToolRegistryOption) *ToolRegistry {
	r := &ToolRegistry{
		tools:  make(map[string]registeredTool),
		logger: slog.Default(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// WithToolRegistryLogger sets the logger for the tool registry.
func WithToolRegistryLogger(logger *slog.Logger) ToolRegistryOption {
	return func(r *ToolRegistry) {
		r.logger = logger.With(
			slog.String("package", "talebook-mcp"),
			slog.String("component", "registry"),
		)
	}
}

// Register adds a tool and its handler. The tool's input schema, when
// present, is compiled here so invalid schemas are rejected up front. It
// fails with ErrDuplicateTool if the name is already taken.
func (r *ToolRegistry) Register(tool Tool, handler ToolHandler) error {
	if tool.Name == "" {
		return errors.New("tool name must not be empty")
	}
	if handler == nil {
		return fmt.Errorf("tool %s: handler must not be nil", tool.Name)
	}
	if _, ok := r.tools[tool.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, tool.Name)
	}

	var schema *jsonschema.Schema
	if len(tool.InputSchema) > 0 {
		schema = &jsonschema.Schema{}
		if err := json.Unmarshal(tool.InputSchema, schema); err != nil {
			return fmt.Errorf("failed to compile input schema for tool %s: %w", tool.Name, err)
		}
	}

	r.names = append(r.names, tool.Name)
	r.tools[tool.Name] = registeredTool{
		tool:    tool,
		schema:  schema,
		handler: handler,
	}

	r.logger.Debug("registered tool", slog.String("tool", tool.Name))

	return nil
}

// Tools returns the descriptors of all registered tools in registration
// order. The slice is freshly allocated on each call; the descriptors
// themselves are shared and must not be modified.
func (r *ToolRegistry) Tools() []Tool {
	tools := make([]Tool, 0, len(r.names))
	for _, name := range r.names {
		tools = append(tools, r.tools[name].tool)
	}
	return tools
}

// Call looks up a tool by name, validates the arguments against its input
// schema, and runs its handler. It fails with ErrToolNotFound for unknown
// names; validation and handler failures come back as *ToolExecutionError.
func (r *ToolRegistry) Call(ctx context.Context, name string, args map[string]any) ([]Content, error) {
	rt, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	if args == nil {
		args = map[string]any{}
	}

	if rt.schema != nil {
		vs := rt.schema.Validate(ctx, args)
		errs := *vs.Errs
		if len(errs) > 0 {
			var errStr []string
			for _, err := range errs {
				errStr = append(errStr, err.Message)
			}
			return nil, &ToolExecutionError{
				Tool: name,
				Err:  fmt.Errorf("arguments validation failed: %s", strings.Join(errStr, ", ")),
			}
		}
	}

	content, err := rt.handler(ctx, args)
	if err != nil {
		r.logger.Error("tool call failed",
			slog.String("tool", name),
			slog.String("err", err.Error()))
		var execErr *ToolExecutionError
		if errors.As(err, &execErr) {
			return nil, err
		}
		return nil, &ToolExecutionError{Tool: name, Err: err}
	}

	r.logger.Debug("tool call succeeded", slog.String("tool", name))

	return content, nil
}
