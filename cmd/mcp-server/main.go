// Package main provides the standalone MCP entry point. It needs no external
// services: history lives in SQLite under the data directory and the
// prediction model is optional.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/livercare-risk-server/internal/config"
	"github.com/livercare-risk-server/internal/mcp"
	"github.com/livercare-risk-server/internal/setup"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.NewCLI(os.Stdin, os.Stdout).Run(os.Args[2:]); err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		return
	}

	cfg := config.LoadLiteConfig()

	log.Printf("Starting LiverCare MCP server (prediction mode: %s)", cfg.PredictionMode)
	log.Printf("Data directory: %s", cfg.DataDir)

	server, err := mcp.NewLiteServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		log.Printf("MCP server failed: %v", err)
		return
	}

	log.Println("LiverCare MCP server stopped")
}
