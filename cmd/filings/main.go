// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command filings starts the Aleutian Filings API server.
//
// The server answers natural-language questions about indexed SEC-style
// filings with a self-correcting retrieval loop:
//   - Structured section lookups from embedded BadgerDB
//   - Semantic passage search from Weaviate
//   - Synthesis and critique via a configurable LLM backend
//
// Usage:
//
//	go run ./cmd/filings
//	go run ./cmd/filings -port 9090 -data ~/.aleutian/filings
//
// The LLM backend is selected with LLM_PROVIDER (openai, anthropic, or
// gemini; defaults to openai). With a local Ollama backend:
//
//	OPENAI_BASE_URL=http://localhost:11434/v1/chat/completions \
//	OPENAI_MODEL=llama3 go run ./cmd/filings
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/filings/health
//
//	# Entity catalog
//	curl http://localhost:8080/v1/filings/catalog | jq
//
//	# Ask a question
//	curl -X POST http://localhost:8080/v1/filings/query \
//	  -H "Content-Type: application/json" \
//	  -d '{"query": "Give me the Business section for BMO in Q1 2025"}'
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AleutianAI/FilingsAgent/services/filings"
	"github.com/AleutianAI/FilingsAgent/services/filings/catalog"
	"github.com/AleutianAI/FilingsAgent/services/filings/graphstore"
	"github.com/AleutianAI/FilingsAgent/services/filings/loop"
	"github.com/AleutianAI/FilingsAgent/services/filings/vectorstore"
	"github.com/AleutianAI/FilingsAgent/services/llm"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	dataDir := flag.String("data", "", "BadgerDB data directory (default ~/.aleutian/filings)")
	weaviateScheme := flag.String("weaviate-scheme", "http", "Weaviate scheme")
	weaviateHost := flag.String("weaviate-host", "localhost:8081", "Weaviate host:port")
	storeTimeout := flag.Duration("store-timeout", 15*time.Second, "Per-store retrieval budget")
	traceStdout := flag.Bool("trace-stdout", false, "Export OTel spans to stdout")
	flag.Parse()

	if *debug {
		gin.SetMode(gin.DebugMode)
		slog.SetLogLoggerLevel(slog.LevelDebug)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	shutdownTracing := setupTracing(*traceStdout)

	// Structured store
	dir := *dataDir
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".aleutian", "filings")
		}
	}
	graph, err := graphstore.Open(dir, slog.Default())
	if err != nil {
		slog.Error("Failed to open graph store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Similarity store
	vector, err := vectorstore.Connect(*weaviateScheme, *weaviateHost, slog.Default())
	if err != nil {
		slog.Error("Failed to create Weaviate client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// LLM backend with one bounded retry per call
	baseClient, err := llm.NewClientFromEnv()
	if err != nil {
		slog.Error("Failed to create LLM client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	llmClient := llm.NewRetryClient(baseClient, 60*time.Second, slog.Default())

	// Entity catalog snapshot, derived from the ingested corpus at startup
	snapCtx, snapCancel := context.WithTimeout(context.Background(), 30*time.Second)
	snap, err := graph.Snapshot(snapCtx)
	snapCancel()
	if err != nil {
		slog.Error("Failed to derive entity catalog", slog.String("error", err.Error()))
		os.Exit(1)
	}

	svc, err := filings.NewService(filings.ServiceConfig{
		Graph:        graph,
		Vector:       vector,
		LLM:          llmClient,
		Catalog:      catalog.New(snap),
		StoreTimeout: *storeTimeout,
		Loop:         loop.DefaultConfig(),
		Logger:       slog.Default(),
	})
	if err != nil {
		slog.Error("Failed to wire service", slog.String("error", err.Error()))
		os.Exit(1)
	}
	handlers := filings.NewHandlers(svc)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("aleutian-filings"))
	if *debug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	filings.RegisterRoutes(v1, handlers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	printBanner(*port, len(snap.Companies))

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down Aleutian Filings server")
		if err := graph.Close(); err != nil {
			slog.Warn("Failed to close graph store", slog.String("error", err.Error()))
		}
		shutdownTracing()
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Starting Aleutian Filings server", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// setupTracing installs a tracer provider. With stdout export disabled the
// provider still propagates context so span attributes land in logs.
func setupTracing(stdout bool) func() {
	var opts []sdktrace.TracerProviderOption
	if stdout {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			slog.Warn("Failed to create stdout trace exporter", slog.String("error", err.Error()))
		} else {
			opts = append(opts, sdktrace.WithBatcher(exporter))
		}
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			slog.Warn("Tracer provider shutdown failed", slog.String("error", err.Error()))
		}
	}
}

func printBanner(port, companies int) {
	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                     ALEUTIAN FILINGS SERVER                       ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Self-correcting retrieval over indexed SEC filings.              ║
║  Companies indexed: %-6d                                        ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://localhost:%d/v1/filings/health            │  ║
║  │                                                             │  ║
║  │ # Entity catalog                                            │  ║
║  │ curl http://localhost:%d/v1/filings/catalog | jq      │  ║
║  │                                                             │  ║
║  │ # Ask a question                                            │  ║
║  │ curl -X POST http://localhost:%d/v1/filings/query \   │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"query": "Give me a summary for BMO"}'               │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, companies, port, port, port)
}
