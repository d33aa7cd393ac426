// Package server exposes the bridge's HTTP surfaces: the rate-options
// endpoint for the storefront, the XML order feed the ShipStation
// poller reads, and the ship-notify webhook it calls back on.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/shipstation/internal/config"
	"github.com/tournevent/shipstation/internal/feed"
	"github.com/tournevent/shipstation/internal/shipments"
	"github.com/tournevent/shipstation/internal/telemetry"
	"github.com/tournevent/shipstation/pkg/rates"
	"github.com/tournevent/shipstation/pkg/shipstation"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Server is the HTTP server for the bridge service.
type Server struct {
	cfg        *config.Config
	aggregator *rates.Aggregator
	exporter   *feed.Exporter
	updater    *shipments.Updater
	logger     *otelzap.Logger
	metrics    *telemetry.Metrics
	registry   *prometheus.Registry

	allowedOptions map[string]struct{}
	packing        rates.PackingConfig
}

// New creates a new server instance.
func New(cfg *config.Config, aggregator *rates.Aggregator, exporter *feed.Exporter, updater *shipments.Updater, logger *otelzap.Logger) *Server {
	registry := prometheus.NewRegistry()
	return &Server{
		cfg:        cfg,
		aggregator: aggregator,
		exporter:   exporter,
		updater:    updater,
		logger:     logger,
		metrics:    telemetry.NewMetrics(registry),
		registry:   registry,

		allowedOptions: rates.ParseAllowedOptions(cfg.AllowedShippingOptions),
		packing: rates.PackingConfig{
			Policy:        rates.PackingPolicy(cfg.PackingType),
			PackageVolume: cfg.PackingPackageVolume,
		},
	}
}

// Handler returns the HTTP routing for all surfaces.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/api/rates", s.handleRates)
	mux.HandleFunc("/feed/orders", s.handleFeed)
	mux.HandleFunc("/webhook", s.handleWebhook)

	return mux
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// ============================================================================
// Rate options endpoint
// ============================================================================

type quoteItem struct {
	Quantity int     `json:"quantity"`
	Length   float64 `json:"length"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Weight   float64 `json:"weight"`
}

type quoteDestination struct {
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
}

type quoteRequest struct {
	FromPostalCode string            `json:"fromPostalCode,omitempty"`
	To             *quoteDestination `json:"to"`
	Items          []quoteItem       `json:"items"`
}

type quoteResponse struct {
	Options []rates.Option `json:"options,omitempty"`
	Errors  []string       `json:"errors,omitempty"`
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(quoteResponse{Errors: []string{"Method not allowed, use POST"}})
		return
	}

	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(quoteResponse{Errors: []string{"Invalid JSON: " + err.Error()}})
		return
	}

	var errs []string
	if req.Items == nil {
		errs = append(errs, "No shipment items")
	}
	if req.To == nil {
		errs = append(errs, "Shipping address is not set")
	} else if req.To.Country == "" {
		errs = append(errs, "Shipping country is not set")
	}
	if len(errs) > 0 {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(quoteResponse{Errors: errs})
		return
	}

	// Origin falls back from the request to the configured warehouse
	// code, then to the destination itself for stores that never set
	// one.
	fromPostalCode := req.FromPostalCode
	if fromPostalCode == "" {
		fromPostalCode = s.cfg.FromPostalCode
	}
	if fromPostalCode == "" {
		fromPostalCode = req.To.PostalCode
	}

	items := make([]rates.PackageItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, rates.PackageItem{
			Quantity: item.Quantity,
			Length:   item.Length,
			Width:    item.Width,
			Height:   item.Height,
			Weight:   item.Weight,
		})
	}

	start := time.Now()
	quotes, err := s.aggregator.GetAllRates(r.Context(), &rates.QuoteRequest{
		FromPostalCode: fromPostalCode,
		To: rates.Destination{
			City:       req.To.City,
			State:      req.To.State,
			Country:    req.To.Country,
			PostalCode: req.To.PostalCode,
		},
		Items:          items,
		SendDimensions: s.cfg.SendDimensions,
	}, s.packing)

	if err != nil {
		// All-or-nothing: any aggregation failure discards partial
		// results and surfaces one error message to the shopper.
		s.metrics.RecordQuote("error", time.Since(start).Seconds())
		s.metrics.RecordCarrierError(errorType(err))
		s.logger.Error("Rate aggregation failed", zap.Error(err))
		json.NewEncoder(w).Encode(quoteResponse{Errors: []string{err.Error()}})
		return
	}

	options := make([]rates.Option, 0)
	for _, quote := range rates.FilterAllowed(quotes, s.allowedOptions) {
		options = append(options, rates.Option{
			Name:        quote.ServiceName,
			Description: quote.ServiceCode,
			Rate:        quote.TotalCost(),
		})
	}

	s.metrics.RecordQuote("ok", time.Since(start).Seconds())
	json.NewEncoder(w).Encode(quoteResponse{Options: options})
}

// errorType buckets an aggregation failure for the carrier error
// metric.
func errorType(err error) string {
	var transportErr *shipstation.TransportError
	var configErr *rates.ConfigurationError
	switch {
	case shipstation.IsAPIError(err):
		return "api"
	case errors.As(err, &transportErr):
		return "transport"
	case errors.As(err, &configErr):
		return "configuration"
	default:
		return "other"
	}
}

// ============================================================================
// Order feed endpoint (polled by ShipStation)
// ============================================================================

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if !s.feedAuthorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="order feed"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	query := r.URL.Query()

	startDate, err := parseFeedDate(query.Get("start_date"))
	if err != nil {
		http.Error(w, "invalid start_date", http.StatusBadRequest)
		return
	}
	endDate, err := parseFeedDate(query.Get("end_date"))
	if err != nil {
		http.Error(w, "invalid end_date", http.StatusBadRequest)
		return
	}

	// The poller numbers pages from 1.
	pageIndex := 0
	if page, err := strconv.Atoi(query.Get("page")); err == nil && page > 1 {
		pageIndex = page - 1
	}
	pageSize, _ := strconv.Atoi(query.Get("page_size"))

	doc, count, err := s.exporter.Export(r.Context(), startDate, endDate, pageIndex, pageSize)
	if err != nil {
		s.logger.Error("Feed export failed", zap.Error(err))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	s.metrics.RecordFeedExport(count)
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Write(doc)
}

func (s *Server) feedAuthorized(r *http.Request) bool {
	if s.cfg.FeedUsername == "" {
		return true
	}
	username, password, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.FeedUsername)) == 1
	passMatch := subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.FeedPassword)) == 1
	return userMatch && passMatch
}

func parseFeedDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(feed.DateFormat, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ============================================================================
// Ship-notify webhook
// ============================================================================

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if s.cfg.WebhookSecret != "" {
		secret := query.Get("secret")
		if subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.WebhookSecret)) != 1 {
			s.metrics.RecordWebhook("unauthorized")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	orderNumber, err := uuid.Parse(query.Get("order_number"))
	if err != nil {
		// The caller still sees success; bad payloads are only
		// observable in logs.
		s.metrics.RecordWebhook("invalid")
		s.logger.Error("Webhook with unparseable order number",
			zap.String("order_number", query.Get("order_number")),
			zap.Error(err),
		)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
		return
	}

	s.updater.Apply(r.Context(), orderNumber,
		query.Get("carrier"),
		query.Get("service"),
		query.Get("tracking_number"),
	)

	s.metrics.RecordWebhook("applied")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
