package shipstation

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config holds ShipStation client configuration.
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string
	Timeout   time.Duration
	UseMock   bool // When true, uses mock API client
}

// Client wraps an APIClient with logging, tracing, and the API-level
// error policy: when ShipStation answers with a message payload the
// message is logged and an empty list is returned, so that a rejected
// request degrades to "no options" instead of failing the quote.
// Transport failures propagate to the caller untouched.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new ShipStation client.
// If cfg.UseMock is true, it uses a mock API client for testing.
// Otherwise, it uses the real HTTP API client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			Timeout:   cfg.Timeout,
		})
	}

	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// NewWithAPIClient creates a new ShipStation client with a custom API client.
// This is useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// ListCarriers returns the carriers connected to the account.
func (c *Client) ListCarriers(ctx context.Context) ([]Carrier, error) {
	ctx, end := c.startSpan(ctx, "shipstation.ListCarriers")
	defer end()

	carriers, err := c.apiClient.ListCarriers(ctx)
	if err != nil {
		return c.handleError(err, "list carriers")
	}
	return carriers, nil
}

// ListServices returns the services offered by one carrier.
func (c *Client) ListServices(ctx context.Context, carrierCode string) ([]Service, error) {
	ctx, end := c.startSpan(ctx, "shipstation.ListServices")
	defer end()

	services, err := c.apiClient.ListServices(ctx, carrierCode)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			c.logger.Error("ShipStation API error",
				zap.String("operation", "list services"),
				zap.String("carrier_code", carrierCode),
				zap.String("message", apiErr.Message),
			)
			return []Service{}, nil
		}
		return nil, err
	}
	return services, nil
}

// GetRates returns rate quotes for a single-package shipment.
func (c *Client) GetRates(ctx context.Context, req *RatesRequest) ([]Rate, error) {
	ctx, end := c.startSpan(ctx, "shipstation.GetRates")
	defer end()

	c.logger.Info("Getting ShipStation rates",
		zap.String("carrier_code", req.CarrierCode),
		zap.String("to_postal_code", req.ToPostalCode),
		zap.Int("weight_oz", req.Weight.Value),
		zap.Bool("dimensions", req.Dimensions != nil),
	)

	rates, err := c.apiClient.GetRates(ctx, req)
	if err != nil {
		return c.handleRateError(err, req.CarrierCode)
	}
	return rates, nil
}

func (c *Client) handleError(err error, op string) ([]Carrier, error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		c.logger.Error("ShipStation API error",
			zap.String("operation", op),
			zap.String("message", apiErr.Message),
		)
		return []Carrier{}, nil
	}
	return nil, err
}

func (c *Client) handleRateError(err error, carrierCode string) ([]Rate, error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		c.logger.Error("ShipStation API error",
			zap.String("operation", "get rates"),
			zap.String("carrier_code", carrierCode),
			zap.String("message", apiErr.Message),
		)
		return []Rate{}, nil
	}
	return nil, err
}

func (c *Client) startSpan(ctx context.Context, name string) (context.Context, func()) {
	if c.tracer == nil {
		return ctx, func() {}
	}
	ctx, span := c.tracer.Start(ctx, name)
	return ctx, func() { span.End() }
}

// Ensure Client implements APIClient interface
var _ APIClient = (*Client)(nil)
