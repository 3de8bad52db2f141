package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	mcp "github.com/talebook/talebook-mcp"
)

// Drives the dispatcher in process, without any transport: lists the
// available tools, then calls get_books_count and prints its output.
func main() {
	registry := mcp.NewToolRegistry()
	if err := mcp.RegisterBuiltinTools(registry); err != nil {
		log.Fatalf("Failed to register tools: %v", err)
	}

	sessions := mcp.NewSessionManager()
	dispatcher := mcp.NewDispatcher(registry, sessions)

	fmt.Println("Available tools:")
	for _, tool := range registry.Tools() {
		fmt.Printf("  %s: %s\n", tool.Name, tool.Description)
	}

	var request mcp.JSONRPCMessage
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_books_count"}}`), &request); err != nil {
		log.Fatalf("Failed to unmarshal request: %v", err)
	}

	response := dispatcher.Dispatch(context.Background(), request)
	if response.Error != nil {
		log.Fatalf("Tool call failed: %v", response.Error)
	}

	var result mcp.CallToolResult
	if err := json.Unmarshal(response.Result, &result); err != nil {
		log.Fatalf("Failed to unmarshal result: %v", err)
	}
	for _, content := range result.Content {
		fmt.Printf("Result: %s\n", content.Text)
	}
}
