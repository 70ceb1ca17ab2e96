// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/AleutianAI/AegisSOC/pkg/logging"
	"github.com/AleutianAI/AegisSOC/services/codeguard"
	"github.com/AleutianAI/AegisSOC/services/llm"
	"github.com/AleutianAI/AegisSOC/services/soc/agents/analyst"
	"github.com/AleutianAI/AegisSOC/services/soc/agents/intel"
	"github.com/AleutianAI/AegisSOC/services/soc/agents/manager"
	"github.com/AleutianAI/AegisSOC/services/soc/observability"
	"github.com/AleutianAI/AegisSOC/services/soc/routes"
	"github.com/AleutianAI/AegisSOC/services/soc/sandbox"
	"github.com/AleutianAI/AegisSOC/services/soc/services"
	"github.com/AleutianAI/AegisSOC/services/soc/storage"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "aegis-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("soc-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		slog.Warn("ignoring invalid value", "var", name, "value", raw)
		return fallback
	}
	return v
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "12310"
	}

	baseLogger := logging.New(logging.Config{
		Service: "soc",
		JSON:    true,
		LogDir:  os.Getenv("AEGIS_LOG_DIR"),
	})
	defer baseLogger.Close()
	logger := baseLogger.Slog()
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	log.Println("Configuring the LLM Client")
	var llmClient llm.LLMClient
	switch backend := os.Getenv("LLM_BACKEND_TYPE"); backend {
	case "openai":
		llmClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	case "ollama":
		llmClient, err = llm.NewOllamaClient()
		slog.Info("Using Ollama LLM backend")
	case "stub":
		llmClient = llm.NewStubClient()
		slog.Warn("Using stub LLM backend; planning and analysis will not work")
	default:
		slog.Warn("LLM_BACKEND_TYPE not set or invalid, defaulting to ollama", "value", backend)
		llmClient, err = llm.NewOllamaClient()
	}
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	dataDir := os.Getenv("AEGIS_DATA_DIR")
	if dataDir == "" {
		dataDir = "/app/data"
	}
	store, err := storage.OpenBadger(storage.DefaultConfig(filepath.Join(dataDir, "investigations")))
	if err != nil {
		log.Fatalf("Failed to open investigation store: %v", err)
	}
	defer store.Close()

	guard, err := codeguard.NewGuard()
	if err != nil {
		log.Fatalf("Failed to load the forbidden-pattern policy: %v", err)
	}

	datasetPath := os.Getenv("FIREWALL_LOGS_PATH")
	if datasetPath == "" {
		datasetPath = "/app/data/firewall_logs.csv"
	}
	sandboxTimeout := time.Duration(envInt("SANDBOX_TIMEOUT_SECONDS", 5)) * time.Second

	intelAgent := intel.NewAgent(os.Getenv("ABUSEIPDB_API_KEY"), logger)
	analystAgent := analyst.NewAgent(
		observability.WrapLLM(llmClient, "analyst"),
		sandbox.NewLoader(), guard, datasetPath, sandboxTimeout, logger)
	managerAgent := manager.NewAgent(observability.WrapLLM(llmClient, "manager"), logger)

	router := services.NewRouter(intelAgent, analystAgent, logger)
	maxLoops := envInt("MAX_INVESTIGATION_LOOPS", services.DefaultMaxLoops)
	investigations := services.NewInvestigationService(store, managerAgent, router, maxLoops, logger)

	engine := gin.Default()
	engine.Use(otelgin.Middleware("soc-service"))

	routes.SetupRoutes(engine, investigations, analystAgent)

	log.Println("Starting the SOC server on port ", port)
	if err := engine.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
