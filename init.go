package main

import (
	"context"

	"github.com/tournevent/shipstation/internal/config"
	"github.com/tournevent/shipstation/internal/feed"
	"github.com/tournevent/shipstation/internal/orders"
	"github.com/tournevent/shipstation/internal/shipments"
	"github.com/tournevent/shipstation/internal/telemetry"
	"github.com/tournevent/shipstation/pkg/rates"
	"github.com/tournevent/shipstation/pkg/shipstation"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

func initTracer(ctx context.Context, cfg *config.Config) (trace.Tracer, func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return nil, func(context.Context) error { return nil }, nil
	}
	return telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version, cfg.Attributes()...)
}

// components bundles the wired service graph handed to the server.
type components struct {
	Aggregator *rates.Aggregator
	Exporter   *feed.Exporter
	Updater    *shipments.Updater
	Store      orders.Store
}

func initComponents(cfg *config.Config, logger *otelzap.Logger, tracer trace.Tracer) *components {
	client := shipstation.New(shipstation.Config{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.HTTPTimeout,
		UseMock:   cfg.UseMock,
	}, logger, tracer)

	cached := shipstation.NewCachedClient(client, cfg.CacheTTL)

	resolver := rates.NewResolver(cfg.WeightUnit, cfg.DimensionUnit, nil)
	aggregator := rates.NewAggregator(cached, resolver, logger)

	// The host platform's order persistence sits behind orders.Store;
	// standalone deployments run on the in-memory implementation.
	store := orders.NewMemoryStore()

	return &components{
		Aggregator: aggregator,
		Exporter:   feed.NewExporter(store, logger),
		Updater:    shipments.NewUpdater(store, logger),
		Store:      store,
	}
}
