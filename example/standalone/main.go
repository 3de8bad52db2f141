package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	mcp "github.com/talebook/talebook-mcp"
)

type toolSummary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func main() {
	addr := flag.String("addr", ":3001", "listen address")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	registry := mcp.NewToolRegistry(mcp.WithToolRegistryLogger(logger))
	if err := mcp.RegisterBuiltinTools(registry); err != nil {
		log.Fatalf("Failed to register tools: %v", err)
	}

	sessions := mcp.NewSessionManager(mcp.WithSessionManagerLogger(logger))
	dispatcher := mcp.NewDispatcher(registry, sessions, mcp.WithDispatcherLogger(logger))
	sse := mcp.NewSSEServer(dispatcher, "/message", mcp.WithSSEServerLogger(logger))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"message":   "Talebook MCP HTTP Server",
			"status":    "running",
			"transport": "sse",
			"endpoints": map[string]string{
				"sse":    "/sse",
				"health": "/health",
			},
			"tools": toolNames(registry),
		})
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"status": "healthy",
			"server": sessions.Info().Name,
		})
	})
	mux.HandleFunc("GET /info", func(w http.ResponseWriter, _ *http.Request) {
		tools := registry.Tools()
		summaries := make([]toolSummary, 0, len(tools))
		for _, tool := range tools {
			summaries = append(summaries, toolSummary{Name: tool.Name, Description: tool.Description})
		}
		writeJSON(w, map[string]any{
			"server_name":     sessions.Info().Name,
			"transport":       "sse",
			"available_tools": summaries,
		})
	})
	mux.Handle("GET /sse", sse.HandleSSE())
	mux.Handle("POST /message", sse.HandleMessage())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		fmt.Printf("Server starting on %s\n", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	<-sigChan

	fmt.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sse.Shutdown(ctx); err != nil {
		fmt.Printf("SSE sessions forced to close: %v\n", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		fmt.Printf("Server forced to shutdown: %v\n", err)
		return
	}

	fmt.Println("Server exited gracefully")
}

func toolNames(registry *mcp.ToolRegistry) []string {
	tools := registry.Tools()
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	return names
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}
