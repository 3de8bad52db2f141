package main

import (
	"context"
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

	gateway, err := mcp.NewGateway(dispatcher, mcp.WithGatewayLogger(logger))
	if err != nil {
		log.Fatalf("Failed to build gateway: %v", err)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           gateway.Handler(),
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

	// Attempt graceful shutdown
	if err := gateway.Shutdown(ctx); err != nil {
		fmt.Printf("SSE sessions forced to close: %v\n", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		fmt.Printf("Server forced to shutdown: %v\n", err)
		return
	}

	fmt.Println("Server exited gracefully")
}
