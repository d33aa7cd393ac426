package rates_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shipstation/pkg/rates"
	"github.com/tournevent/shipstation/pkg/shipstation"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newTestAggregator(api shipstation.APIClient) *rates.Aggregator {
	logger := otelzap.New(zap.NewNop())
	resolver := rates.NewResolver("lb", "inches", nil)
	return rates.NewAggregator(api, resolver, logger)
}

func quoteRequest() *rates.QuoteRequest {
	return &rates.QuoteRequest{
		FromPostalCode: "98101",
		To: rates.Destination{
			City:       "Austin",
			State:      "TX",
			Country:    "US",
			PostalCode: "78701",
		},
		Items: []rates.PackageItem{{Quantity: 1, Length: 10, Width: 5, Height: 3, Weight: 2}},
	}
}

func TestAggregator_GetAllRates(t *testing.T) {
	mockAPI := shipstation.NewMockAPIClient()
	agg := newTestAggregator(mockAPI)

	quotes, err := agg.GetAllRates(context.Background(), quoteRequest(), rates.PackingConfig{Policy: rates.NoPacking})

	require.NoError(t, err)
	// Mock: stamps_com offers 2 services, fedex 1 listed rate
	assert.Len(t, quotes, 3)
}

func TestAggregator_FiltersByServiceCode(t *testing.T) {
	mockAPI := shipstation.NewMockAPIClient()
	mockAPI.OnGetRates = func(ctx context.Context, req *shipstation.RatesRequest) ([]shipstation.Rate, error) {
		return []shipstation.Rate{
			{
				ServiceName:  "USPS Priority Mail",
				ServiceCode:  "usps_priority_mail",
				ShipmentCost: decimal.RequireFromString("7.68"),
			},
			{
				// Quoted but not present in the service listing; must
				// be dropped.
				ServiceName:  "USPS Media Mail",
				ServiceCode:  "usps_media_mail",
				ShipmentCost: decimal.RequireFromString("2.89"),
			},
		}, nil
	}

	agg := newTestAggregator(mockAPI)

	quotes, err := agg.GetAllRates(context.Background(), quoteRequest(), rates.PackingConfig{Policy: rates.NoPacking})

	require.NoError(t, err)
	require.Len(t, quotes, 2) // one per carrier, media mail dropped twice
	for _, quote := range quotes {
		assert.Equal(t, "usps_priority_mail", quote.ServiceCode)
	}
}

func TestAggregator_ServiceOfAbsentCarrierNeverQuoted(t *testing.T) {
	mockAPI := shipstation.NewMockAPIClient()
	mockAPI.OnListCarriers = func(ctx context.Context) ([]shipstation.Carrier, error) {
		return []shipstation.Carrier{{Name: "Stamps.com", Code: "stamps_com"}}, nil
	}
	mockAPI.OnListServices = func(ctx context.Context, carrierCode string) ([]shipstation.Service, error) {
		// The listing claims a UPS service, but no UPS carrier is
		// connected; carrier filtering must be transitive.
		return []shipstation.Service{
			{CarrierCode: "ups", Code: "ups_ground", Name: "UPS Ground"},
		}, nil
	}

	agg := newTestAggregator(mockAPI)

	quotes, err := agg.GetAllRates(context.Background(), quoteRequest(), rates.PackingConfig{Policy: rates.NoPacking})

	require.NoError(t, err)
	assert.Empty(t, quotes)
	assert.Zero(t, mockAPI.GetRatesCalls.Load())
}

func TestAggregator_CarrierWithoutServicesNeverQueried(t *testing.T) {
	mockAPI := shipstation.NewMockAPIClient()
	mockAPI.OnListServices = func(ctx context.Context, carrierCode string) ([]shipstation.Service, error) {
		if carrierCode == "fedex" {
			return []shipstation.Service{}, nil
		}
		return []shipstation.Service{
			{CarrierCode: carrierCode, Code: "usps_priority_mail", Name: "USPS Priority Mail"},
		}, nil
	}

	var mu sync.Mutex
	var queried []string
	mockAPI.OnGetRates = func(ctx context.Context, req *shipstation.RatesRequest) ([]shipstation.Rate, error) {
		mu.Lock()
		queried = append(queried, req.CarrierCode)
		mu.Unlock()
		return []shipstation.Rate{
			{ServiceName: "USPS Priority Mail", ServiceCode: "usps_priority_mail"},
		}, nil
	}

	agg := newTestAggregator(mockAPI)

	quotes, err := agg.GetAllRates(context.Background(), quoteRequest(), rates.PackingConfig{Policy: rates.NoPacking})

	require.NoError(t, err)
	assert.Equal(t, []string{"stamps_com"}, queried)
	assert.Len(t, quotes, 1)
}

func TestAggregator_TransportErrorAbortsQuote(t *testing.T) {
	mockAPI := shipstation.NewMockAPIClient()
	mockAPI.OnGetRates = func(ctx context.Context, req *shipstation.RatesRequest) ([]shipstation.Rate, error) {
		if req.CarrierCode == "fedex" {
			return nil, &shipstation.TransportError{Op: "get rates", StatusCode: 503}
		}
		return []shipstation.Rate{
			{ServiceName: "USPS Priority Mail", ServiceCode: "usps_priority_mail"},
		}, nil
	}

	agg := newTestAggregator(mockAPI)

	quotes, err := agg.GetAllRates(context.Background(), quoteRequest(), rates.PackingConfig{Policy: rates.NoPacking})

	// All-or-nothing: the stamps_com results are discarded too.
	require.Error(t, err)
	assert.Nil(t, quotes)

	var transportErr *shipstation.TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestAggregator_SendsResolvedDimensions(t *testing.T) {
	mockAPI := shipstation.NewMockAPIClient()

	var mu sync.Mutex
	var captured []*shipstation.RatesRequest
	mockAPI.OnGetRates = func(ctx context.Context, req *shipstation.RatesRequest) ([]shipstation.Rate, error) {
		mu.Lock()
		captured = append(captured, req)
		mu.Unlock()
		return []shipstation.Rate{}, nil
	}

	agg := newTestAggregator(mockAPI)

	req := quoteRequest()
	req.SendDimensions = true

	_, err := agg.GetAllRates(context.Background(), req, rates.PackingConfig{Policy: rates.PackByDimensions})

	require.NoError(t, err)
	require.NotEmpty(t, captured)
	for _, rateReq := range captured {
		require.NotNil(t, rateReq.Dimensions)
		assert.Equal(t, 10, rateReq.Dimensions.Length)
		assert.Equal(t, 5, rateReq.Dimensions.Width)
		assert.Equal(t, 3, rateReq.Dimensions.Height)
		assert.Equal(t, 32, rateReq.Weight.Value) // 2 lb in ounces
		assert.Equal(t, "ounces", rateReq.Weight.Units)
	}
}

func TestAggregator_OmitsDimensionsByDefault(t *testing.T) {
	mockAPI := shipstation.NewMockAPIClient()

	var mu sync.Mutex
	var captured []*shipstation.RatesRequest
	mockAPI.OnGetRates = func(ctx context.Context, req *shipstation.RatesRequest) ([]shipstation.Rate, error) {
		mu.Lock()
		captured = append(captured, req)
		mu.Unlock()
		return []shipstation.Rate{}, nil
	}

	agg := newTestAggregator(mockAPI)

	_, err := agg.GetAllRates(context.Background(), quoteRequest(), rates.PackingConfig{Policy: rates.PackByDimensions})

	require.NoError(t, err)
	require.NotEmpty(t, captured)
	for _, rateReq := range captured {
		assert.Nil(t, rateReq.Dimensions)
	}
}

func TestFilterAllowed_EmptySetPassesEverything(t *testing.T) {
	quotes := []shipstation.Rate{
		{ServiceName: "USPS Priority Mail", ServiceCode: "usps_priority_mail"},
		{ServiceName: "FedEx Ground", ServiceCode: "fedex_ground"},
	}

	kept := rates.FilterAllowed(quotes, rates.ParseAllowedOptions(""))

	assert.Len(t, kept, 2)
}

func TestFilterAllowed_MatchesServiceNameNotCode(t *testing.T) {
	quotes := []shipstation.Rate{
		{ServiceName: "USPS Priority Mail", ServiceCode: "usps_priority_mail"},
		{ServiceName: "FedEx Ground", ServiceCode: "fedex_ground"},
	}

	// The allow list holds display names. A code in the list must not
	// match anything.
	kept := rates.FilterAllowed(quotes, rates.ParseAllowedOptions("FedEx Ground, usps_priority_mail"))

	require.Len(t, kept, 1)
	assert.Equal(t, "FedEx Ground", kept[0].ServiceName)
}

func TestParseAllowedOptions(t *testing.T) {
	allowed := rates.ParseAllowedOptions(" FedEx Ground ,, USPS Priority Mail,")

	assert.Len(t, allowed, 2)
	assert.Contains(t, allowed, "FedEx Ground")
	assert.Contains(t, allowed, "USPS Priority Mail")
}

func TestServiceIdentityByCodeOnly(t *testing.T) {
	// Service identity deliberately ignores the name; renamed services
	// with the same code are the same service.
	a := shipstation.Service{Code: "usps_priority_mail", Name: "USPS Priority Mail"}
	b := shipstation.Service{Code: "usps_priority_mail", Name: "Priority Mail (renamed)"}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(shipstation.Service{Code: "fedex_ground", Name: "USPS Priority Mail"}))
}
