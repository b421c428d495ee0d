// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bridge provides the AerialBridge service: the realtime state
// synchronization hub for the installation.
//
// # Description
//
// The bridge is the sole source of truth for a small shared world state
// mutated concurrently by heterogeneous clients: a desk display, ephemeral
// mobile devices each contributing one color sample, a control panel, and
// downstream visualization consumers. Every mutation is sanitized, merged
// into canonical state, and fanned out to all other connected parties.
//
// This package ties the pieces together: configuration, tracing and metrics
// bootstrap, the HTTP router, and the server lifecycle. The actual state
// semantics live in the state and hub subpackages.
//
// # Usage
//
//	cfg := bridge.Config{Port: 3000}
//	svc, err := bridge.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AerialBridge/services/bridge/hub"
	"github.com/AleutianAI/AerialBridge/services/bridge/observability"
	"github.com/AleutianAI/AerialBridge/services/bridge/routes"
	"github.com/AleutianAI/AerialBridge/services/bridge/state"
)

// Service defines the contract for the bridge service.
//
// Run() blocks and should only be called once per instance. Shutdown stops
// the listener and closes every live websocket session.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Shutdown gracefully stops the server within the context deadline.
	Shutdown(ctx context.Context) error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine

	// Hub returns the hub for testing and embedding.
	Hub() *hub.Hub
}

// service implements Service for production use.
//
// Thread-safe after construction; all fields are read-only after New()
// returns.
type service struct {
	config        Config
	router        *gin.Engine
	hub           *hub.Hub
	store         *state.Store
	srv           *http.Server
	tracerCleanup func(context.Context)
}

// New creates a bridge Service with the given configuration.
//
// New applies defaults, validates the config, initializes tracing (when an
// OTel endpoint is configured) and metrics, builds the state store and hub,
// and registers all routes.
func New(cfg Config) (Service, error) {
	cfg = applyConfigDefaults(cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	s := &service{config: cfg}

	if cfg.OTelEndpoint != "" {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	var metrics *observability.HubMetrics
	if cfg.EnableMetrics {
		metrics = observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for the hub")
	}

	s.store = state.NewStore()
	s.hub = hub.New(s.store, slog.Default(), metrics, hub.Config{
		SendBuffer: cfg.SendBuffer,
		RateLimit:  cfg.RateLimit,
		RateBurst:  cfg.RateBurst,
	})

	s.initRouter()

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.router,
	}
	return s, nil
}

// Run starts the HTTP server and blocks until shutdown or a listener error.
func (s *service) Run() error {
	slog.Info("Starting bridge server", "port", s.config.Port)

	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections, closes every live session and
// flushes the tracer.
func (s *service) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	s.hub.Close()
	if s.tracerCleanup != nil {
		s.tracerCleanup(ctx)
	}
	return err
}

func (s *service) Router() *gin.Engine {
	return s.router
}

func (s *service) Hub() *hub.Hub {
	return s.hub
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	if s.config.OTelEndpoint != "" {
		s.router.Use(otelgin.Middleware("bridge-service"))
	}

	routes.SetupRoutes(s.router, s.hub, s.config.StaticDir)
}

// initTracer wires the OTLP gRPC trace exporter and installs the global
// tracer provider. Returns the shutdown hook.
func (s *service) initTracer() (func(context.Context), error) {
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
		resource.WithAttributes(semconv.ServiceNameKey.String("bridge-service")))
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
