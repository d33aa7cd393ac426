package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service. The core consumes it
// as a single immutable snapshot; nothing reads settings ambiently.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"80"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// ShipStation API
	APIKey      string        `envconfig:"SHIPSTATION_API_KEY"`
	APISecret   string        `envconfig:"SHIPSTATION_API_SECRET"`
	BaseURL     string        `envconfig:"SHIPSTATION_BASE_URL" default:"https://ssapi.shipstation.com"`
	HTTPTimeout time.Duration `envconfig:"SHIPSTATION_HTTP_TIMEOUT" default:"30s"`
	CacheTTL    time.Duration `envconfig:"SHIPSTATION_CACHE_TTL" default:"5m"`
	UseMock     bool          `envconfig:"SHIPSTATION_USE_MOCK" default:"false"`

	// Feed endpoint credentials, checked against the ShipStation
	// custom-store poller's basic auth. Empty username disables the check.
	FeedUsername string `envconfig:"FEED_USERNAME"`
	FeedPassword string `envconfig:"FEED_PASSWORD"`

	// Webhook shared secret; empty leaves the webhook open.
	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`

	// Rate quoting
	PackingType            string `envconfig:"PACKING_TYPE" default:"none"`
	PackingPackageVolume   int    `envconfig:"PACKING_PACKAGE_VOLUME" default:"5184"`
	SendDimensions         bool   `envconfig:"SEND_DIMENSIONS" default:"false"`
	AllowedShippingOptions string `envconfig:"ALLOWED_SHIPPING_OPTIONS"`
	FromPostalCode         string `envconfig:"FROM_POSTAL_CODE"`

	// Store measurement units product attributes are recorded in.
	WeightUnit    string `envconfig:"WEIGHT_UNIT" default:"lb"`
	DimensionUnit string `envconfig:"DIMENSION_UNIT" default:"inches"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"true"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://jaeger-collector.observability.svc.cluster.local:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"shipstation-bridge"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.String("packing.type", c.PackingType),
		attribute.Bool("shipstation.mock", c.UseMock),
	}
}
