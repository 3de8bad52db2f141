package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"

	mcp "github.com/talebook/talebook-mcp"
)

func main() {
	// Stdout carries the protocol, so logs go to stderr.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	registry := mcp.NewToolRegistry(mcp.WithToolRegistryLogger(logger))
	if err := mcp.RegisterBuiltinTools(registry); err != nil {
		log.Fatalf("Failed to register tools: %v", err)
	}

	sessions := mcp.NewSessionManager(mcp.WithSessionManagerLogger(logger))
	dispatcher := mcp.NewDispatcher(registry, sessions, mcp.WithDispatcherLogger(logger))
	srv := mcp.NewStdIOServer(dispatcher, os.Stdin, os.Stdout, mcp.WithStdIOServerLogger(logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Server error: %v", err)
	}
}
