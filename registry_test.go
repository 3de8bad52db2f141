package mcp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	mcp "github.com/talebook/talebook-mcp"
)

func textHandler(text string) mcp.ToolHandler {
	return func(context.Context, map[string]any) ([]mcp.Content, error) {
		return []mcp.Content{{Type: mcp.ContentTypeText, Text: text}}, nil
	}
}

func TestToolRegistry_Register(t *testing.T) {
	tests := []struct {
		name    string
		tool    mcp.Tool
		handler mcp.ToolHandler
		wantErr bool
	}{
		{
			name:    "valid tool",
			tool:    mcp.Tool{Name: "valid", InputSchema: json.RawMessage(`{"type":"object"}`)},
			handler: textHandler("ok"),
			wantErr: false,
		},
		{
			name:    "empty name",
			tool:    mcp.Tool{InputSchema: json.RawMessage(`{"type":"object"}`)},
			handler: textHandler("ok"),
			wantErr: true,
		},
		{
			name:    "nil handler",
			tool:    mcp.Tool{Name: "no-handler", InputSchema: json.RawMessage(`{"type":"object"}`)},
			handler: nil,
			wantErr: true,
		},
		{
			name:    "invalid schema",
			tool:    mcp.Tool{Name: "bad-schema", InputSchema: json.RawMessage(`{not json`)},
			handler: textHandler("ok"),
			wantErr: true,
		},
		{
			name:    "no schema",
			tool:    mcp.Tool{Name: "schemaless"},
			handler: textHandler("ok"),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := mcp.NewToolRegistry()

			err := registry.Register(tt.tool, tt.handler)
			if (err != nil) != tt.wantErr {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestToolRegistry_RegisterDuplicate(t *testing.T) {
	registry := mcp.NewToolRegistry()
	tool := mcp.Tool{Name: "dup", InputSchema: json.RawMessage(`{"type":"object"}`)}

	if err := registry.Register(tool, textHandler("first")); err != nil {
		t.Fatalf("failed to register tool: %v", err)
	}

	err := registry.Register(tool, textHandler("second"))
	if err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if !errors.Is(err, mcp.ErrDuplicateTool) {
		t.Errorf("got error %v, want ErrDuplicateTool", err)
	}

	// The original registration must survive the rejected one.
	content, err := registry.Call(context.Background(), "dup", nil)
	if err != nil {
		t.Fatalf("failed to call tool: %v", err)
	}
	if content[0].Text != "first" {
		t.Errorf("got text %q, want %q", content[0].Text, "first")
	}
}

func TestToolRegistry_ToolsOrder(t *testing.T) {
	registry := mcp.NewToolRegistry()

	names := []string{"gamma", "alpha", "beta"}
	for _, name := range names {
		tool := mcp.Tool{Name: name, InputSchema: json.RawMessage(`{"type":"object"}`)}
		if err := registry.Register(tool, textHandler(name)); err != nil {
			t.Fatalf("failed to register tool %s: %v", name, err)
		}
	}

	tools := registry.Tools()
	if len(tools) != len(names) {
		t.Fatalf("got %d tools, want %d", len(tools), len(names))
	}
	for i, name := range names {
		if tools[i].Name != name {
			t.Errorf("tool %d is %q, want %q", i, tools[i].Name, name)
		}
	}
}

func TestToolRegistry_ToolsIdempotent(t *testing.T) {
	registry := mcp.NewToolRegistry()
	for _, name := range []string{"one", "two"} {
		tool := mcp.Tool{Name: name, InputSchema: json.RawMessage(`{"type":"object"}`)}
		if err := registry.Register(tool, textHandler(name)); err != nil {
			t.Fatalf("failed to register tool %s: %v", name, err)
		}
	}

	first, err := json.Marshal(mcp.ListToolsResult{Tools: registry.Tools()})
	if err != nil {
		t.Fatalf("failed to marshal first listing: %v", err)
	}
	second, err := json.Marshal(mcp.ListToolsResult{Tools: registry.Tools()})
	if err != nil {
		t.Fatalf("failed to marshal second listing: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("listings differ:\n%s\n%s", first, second)
	}

	// Callers get their own slice, so mutating it must not leak back.
	tools := registry.Tools()
	tools[0].Name = "mutated"
	if registry.Tools()[0].Name != "one" {
		t.Error("mutating the returned slice changed the registry")
	}
}

func TestToolRegistry_CallNotFound(t *testing.T) {
	registry := mcp.NewToolRegistry()

	_, err := registry.Call(context.Background(), "missing", nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, mcp.ErrToolNotFound) {
		t.Errorf("got error %v, want ErrToolNotFound", err)
	}
}

func TestToolRegistry_CallNilArguments(t *testing.T) {
	registry := mcp.NewToolRegistry()

	var gotArgs map[string]any
	tool := mcp.Tool{Name: "echo_args", InputSchema: json.RawMessage(`{"type":"object"}`)}
	err := registry.Register(tool, func(_ context.Context, args map[string]any) ([]mcp.Content, error) {
		gotArgs = args
		return []mcp.Content{{Type: mcp.ContentTypeText, Text: "ok"}}, nil
	})
	if err != nil {
		t.Fatalf("failed to register tool: %v", err)
	}

	if _, err := registry.Call(context.Background(), "echo_args", nil); err != nil {
		t.Fatalf("failed to call tool: %v", err)
	}

	if gotArgs == nil {
		t.Error("handler received nil arguments, want empty map")
	}
	if len(gotArgs) != 0 {
		t.Errorf("handler received %d arguments, want 0", len(gotArgs))
	}
}

func TestToolRegistry_CallValidation(t *testing.T) {
	registry := mcp.NewToolRegistry()
	tool := mcp.Tool{
		Name:        "strict",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"count":{"type":"integer"}},"required":["count"]}`),
	}
	if err := registry.Register(tool, textHandler("ok")); err != nil {
		t.Fatalf("failed to register tool: %v", err)
	}

	_, err := registry.Call(context.Background(), "strict", map[string]any{"count": "not-a-number"})
	if err == nil {
		t.Fatal("expected a validation error")
	}

	var execErr *mcp.ToolExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("got error %T, want ToolExecutionError", err)
	}
	if execErr.Tool != "strict" {
		t.Errorf("got tool %q, want %q", execErr.Tool, "strict")
	}
}

func TestToolRegistry_CallWrapsHandlerError(t *testing.T) {
	registry := mcp.NewToolRegistry()
	sentinel := errors.New("storage offline")
	tool := mcp.Tool{Name: "broken", InputSchema: json.RawMessage(`{"type":"object"}`)}
	err := registry.Register(tool, func(context.Context, map[string]any) ([]mcp.Content, error) {
		return nil, sentinel
	})
	if err != nil {
		t.Fatalf("failed to register tool: %v", err)
	}

	_, err = registry.Call(context.Background(), "broken", nil)
	if err == nil {
		t.Fatal("expected an error")
	}

	var execErr *mcp.ToolExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("got error %T, want ToolExecutionError", err)
	}
	if !errors.Is(err, sentinel) {
		t.Error("wrapped error lost the handler's cause")
	}
}
