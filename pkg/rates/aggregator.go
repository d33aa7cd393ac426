package rates

import (
	"context"
	"fmt"

	"github.com/tournevent/shipstation/pkg/shipstation"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Aggregator orchestrates the dimension resolver and the (cached)
// ShipStation client to produce the flat list of rate quotes for a
// quote request.
type Aggregator struct {
	api      shipstation.APIClient
	resolver *Resolver
	logger   *otelzap.Logger
}

// NewAggregator creates an aggregator. api should be a caching client
// so that carrier and service lookups are memoized across quotes.
func NewAggregator(api shipstation.APIClient, resolver *Resolver, logger *otelzap.Logger) *Aggregator {
	return &Aggregator{
		api:      api,
		resolver: resolver,
		logger:   logger,
	}
}

// GetAllRates returns all rate quotes for the request, across every
// carrier that offers at least one service.
//
// The service listing drives two filters: only carriers whose code
// backs some listed service are queried, and only rates whose service
// CODE appears in the listing are kept. The allowed-options filter the
// endpoint applies afterwards matches on service NAME instead
// (FilterAllowed); the two must not be conflated.
//
// Any failure aborts the whole quote; partial results are discarded.
func (a *Aggregator) GetAllRates(ctx context.Context, req *QuoteRequest, cfg PackingConfig) ([]shipstation.Rate, error) {
	services, err := a.listAllServices(ctx)
	if err != nil {
		return nil, err
	}

	carrierFilter := make(map[string]struct{})
	serviceFilter := make(map[string]struct{})
	for _, service := range services {
		carrierFilter[service.CarrierCode] = struct{}{}
		serviceFilter[service.Code] = struct{}{}
	}

	carriers, err := a.api.ListCarriers(ctx)
	if err != nil {
		return nil, err
	}

	eligible := carriers[:0:0]
	for _, carrier := range carriers {
		if _, ok := carrierFilter[carrier.Code]; ok {
			eligible = append(eligible, carrier)
		}
	}

	weight, dims, err := a.resolver.Resolve(req.Items, cfg, req.SendDimensions)
	if err != nil {
		return nil, err
	}

	a.logger.Info("Aggregating ShipStation rates",
		zap.Int("carriers", len(eligible)),
		zap.Int("services", len(serviceFilter)),
		zap.Int("weight_oz", weight),
	)

	// One slot per carrier keeps the output order deterministic.
	results := make([][]shipstation.Rate, len(eligible))

	g, ctx := errgroup.WithContext(ctx)
	for i, carrier := range eligible {
		g.Go(func() error {
			rateReq := &shipstation.RatesRequest{
				CarrierCode:    carrier.Code,
				FromPostalCode: req.FromPostalCode,
				ToState:        req.To.State,
				ToCountry:      req.To.Country,
				ToPostalCode:   req.To.PostalCode,
				ToCity:         req.To.City,
				Weight:         shipstation.Weight{Value: weight, Units: shipstation.WeightUnits},
				Dimensions:     dims,
			}

			quotes, err := a.api.GetRates(ctx, rateReq)
			if err != nil {
				return fmt.Errorf("%s: %w", carrier.Code, err)
			}

			kept := quotes[:0:0]
			for _, quote := range quotes {
				if _, ok := serviceFilter[quote.ServiceCode]; ok {
					kept = append(kept, quote)
				}
			}
			results[i] = kept
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []shipstation.Rate
	for _, quotes := range results {
		all = append(all, quotes...)
	}
	return all, nil
}

// listAllServices flattens the service listings of every carrier.
func (a *Aggregator) listAllServices(ctx context.Context) ([]shipstation.Service, error) {
	carriers, err := a.api.ListCarriers(ctx)
	if err != nil {
		return nil, err
	}

	var services []shipstation.Service
	for _, carrier := range carriers {
		list, err := a.api.ListServices(ctx, carrier.Code)
		if err != nil {
			return nil, err
		}
		services = append(services, list...)
	}
	return services, nil
}

// FilterAllowed keeps only rates whose service NAME is in the allowed
// set. An empty set passes everything through.
func FilterAllowed(quotes []shipstation.Rate, allowed map[string]struct{}) []shipstation.Rate {
	if len(allowed) == 0 {
		return quotes
	}
	kept := quotes[:0:0]
	for _, quote := range quotes {
		if _, ok := allowed[quote.ServiceName]; ok {
			kept = append(kept, quote)
		}
	}
	return kept
}
