package mcp_test

import (
	"context"
	"testing"

	mcp "github.com/talebook/talebook-mcp"
)

func TestBooksCountTool(t *testing.T) {
	tool := mcp.BooksCountTool()

	if tool.Name != "get_books_count" {
		t.Errorf("got name %q, want %q", tool.Name, "get_books_count")
	}
	if tool.Description != "Get the current count of books in the collection" {
		t.Errorf("got description %q, want %q", tool.Description, "Get the current count of books in the collection")
	}
	wantSchema := `{"type":"object","properties":{},"required":[]}`
	if string(tool.InputSchema) != wantSchema {
		t.Errorf("got input schema %s, want %s", string(tool.InputSchema), wantSchema)
	}
}

func TestHandleBooksCount(t *testing.T) {
	content, err := mcp.HandleBooksCount(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("HandleBooksCount() error = %v", err)
	}

	if len(content) != 1 {
		t.Fatalf("got %d content items, want 1", len(content))
	}
	if content[0].Type != mcp.ContentTypeText {
		t.Errorf("got content type %q, want %q", content[0].Type, mcp.ContentTypeText)
	}
	if content[0].Text != "Current books count: 1" {
		t.Errorf("got text %q, want %q", content[0].Text, "Current books count: 1")
	}
}

func TestRegisterBuiltinTools(t *testing.T) {
	registry := mcp.NewToolRegistry()

	if err := mcp.RegisterBuiltinTools(registry); err != nil {
		t.Fatalf("RegisterBuiltinTools() error = %v", err)
	}

	tools := registry.Tools()
	if len(tools) != 1 {
		t.Fatalf("got %d tools, want 1", len(tools))
	}
	if tools[0].Name != "get_books_count" {
		t.Errorf("got tool %q, want %q", tools[0].Name, "get_books_count")
	}

	// Registering twice must fail on the duplicate name.
	if err := mcp.RegisterBuiltinTools(registry); err == nil {
		t.Error("expected second registration to fail")
	}
}
