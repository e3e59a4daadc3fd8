// Copyright (C) 2025 Mirror Ledger Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ledgerd provides the HTTP service around the mirror ledger.
//
// This package contains the main service type that coordinates all
// components: the ledger store, the intake generator, the reflection judge,
// the adaptation policy, HTTP routing, and observability infrastructure.
//
// # Usage
//
//	cfg := ledgerd.Config{Port: 8140, LedgerPath: "./data/blocks.jsonl"}
//	svc, err := ledgerd.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package ledgerd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/mirrorledger/mirrorledger/services/adaptation"
	"github.com/mirrorledger/mirrorledger/services/generator"
	"github.com/mirrorledger/mirrorledger/services/ledger"
	"github.com/mirrorledger/mirrorledger/services/ledgerd/handlers"
	"github.com/mirrorledger/mirrorledger/services/ledgerd/observability"
	"github.com/mirrorledger/mirrorledger/services/ledgerd/routes"
	"github.com/mirrorledger/mirrorledger/services/reflection"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the ledger service lifecycle.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and should
// only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine

	// Store returns the ledger store for direct inspection in tests and
	// CLI-style embedding.
	Store() *ledger.Store
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds ledger service configuration options.
//
// All fields have defaults applied by New(); the zero value is a working
// development configuration with the stub generator.
type Config struct {
	// Port is the HTTP server port. Default: 8140
	Port int

	// LedgerPath is the durable JSON-lines chain file.
	// Default: "./data/blocks.jsonl"
	LedgerPath string

	// DatasetDir is where adaptation training datasets are written.
	// Default: "./data/datasets"
	DatasetDir string

	// GeneratorBackend selects the intake drafting backend.
	// Valid values: "stub", "openai". Default: "stub"
	GeneratorBackend string

	// OpenAIAPIKey authenticates the OpenAI backend. Required only when
	// GeneratorBackend is "openai".
	OpenAIAPIKey string

	// OpenAIModel is the model name for the OpenAI backend.
	OpenAIModel string

	// AdapterID labels drafts with the adapter in use, if any.
	AdapterID string

	// AdaptationThreshold is the correction count that triggers a training
	// data extraction cycle. Default: adaptation.DefaultThreshold
	AdaptationThreshold int

	// OTelEndpoint is the OpenTelemetry collector endpoint. If empty,
	// tracing stays on the global no-op provider.
	OTelEndpoint string

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	GinMode string

	// MetricsRegistry receives the service metrics. Defaults to the
	// Prometheus default registerer; tests pass a fresh registry.
	MetricsRegistry prometheus.Registerer
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// All fields are read-only after New() returns; the store serializes its
// own mutations internally.
type service struct {
	config        Config
	router        *gin.Engine
	store         *ledger.Store
	gen           generator.Generator
	reflector     *reflection.Reflector
	policy        *adaptation.Policy
	metrics       *observability.Metrics
	tracerCleanup func(context.Context)
}

// New creates a ledger Service with the given configuration.
//
// # Description
//
// New initializes all components in dependency order:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing (no-op without an endpoint)
//  3. Registers Prometheus metrics
//  4. Opens the ledger store, bootstrapping a genesis block when empty
//  5. Creates the generator backend, reflection judge, and policy
//  6. Sets up HTTP routes
//
// # Inputs
//
//   - cfg: Service configuration. Zero values use defaults.
//
// # Outputs
//
//   - Service: Ready-to-run ledger service
//   - error: Non-nil if initialization fails
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	s.metrics = observability.NewMetrics(s.config.MetricsRegistry)

	s.store, err = ledger.Open(ledger.Config{
		Path:      s.config.LedgerPath,
		Bootstrap: true,
	})
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	s.metrics.ChainLength.Set(float64(s.store.Len()))

	if err := s.initGenerator(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}

	s.reflector = reflection.NewReflector()
	s.policy = adaptation.NewPolicy(s.config.AdaptationThreshold)

	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting ledger server",
		"port", s.config.Port,
		"ledger_path", s.config.LedgerPath,
		"generator", s.config.GeneratorBackend,
	)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// Store returns the ledger store.
func (s *service) Store() *ledger.Store {
	return s.store
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8140
	}
	if cfg.LedgerPath == "" {
		cfg.LedgerPath = "./data/blocks.jsonl"
	}
	if cfg.DatasetDir == "" {
		cfg.DatasetDir = "./data/datasets"
	}
	if cfg.GeneratorBackend == "" {
		cfg.GeneratorBackend = "stub"
	}
	if cfg.AdaptationThreshold == 0 {
		cfg.AdaptationThreshold = adaptation.DefaultThreshold
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	return cfg
}

// initTracer initializes OpenTelemetry distributed tracing.
//
// With no endpoint configured the global provider stays a no-op, so handler
// spans cost nothing; the returned cleanup is then also a no-op.
func (s *service) initTracer() (func(context.Context), error) {
	if s.config.OTelEndpoint == "" {
		slog.Info("OTel endpoint not configured, tracing disabled")
		return func(context.Context) {}, nil
	}

	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("ledgerd")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initGenerator creates the drafting backend.
func (s *service) initGenerator() error {
	var err error

	switch s.config.GeneratorBackend {
	case "openai":
		s.gen, err = generator.NewOpenAIGenerator(
			s.config.OpenAIAPIKey, s.config.OpenAIModel, s.config.AdapterID)
		slog.Info("Using OpenAI generator backend")
	case "stub":
		s.gen = generator.NewStub("", s.config.AdapterID)
		slog.Info("Using stub generator backend")
	default:
		slog.Warn("Unknown generator backend, defaulting to stub",
			"backend", s.config.GeneratorBackend)
		s.config.GeneratorBackend = "stub"
		s.gen = generator.NewStub("", s.config.AdapterID)
	}

	return err
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("ledgerd"))

	routes.SetupRoutes(s.router, handlers.Deps{
		Store:            s.store,
		Generator:        s.gen,
		GeneratorBackend: s.config.GeneratorBackend,
		Reflector:        s.reflector,
		Policy:           s.policy,
		Metrics:          s.metrics,
		DatasetDir:       s.config.DatasetDir,
	})
}

// cleanup releases resources held by the service.
func (s *service) cleanup() {
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
