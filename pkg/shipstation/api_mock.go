package shipstation

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnListCarriers func(ctx context.Context) ([]Carrier, error)
	OnListServices func(ctx context.Context, carrierCode string) ([]Service, error)
	OnGetRates     func(ctx context.Context, req *RatesRequest) ([]Rate, error)

	// Call counters, useful for asserting cache behavior.
	ListCarriersCalls atomic.Int64
	ListServicesCalls atomic.Int64
	GetRatesCalls     atomic.Int64
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// ListCarriers returns mock carriers.
func (m *MockAPIClient) ListCarriers(ctx context.Context) ([]Carrier, error) {
	m.ListCarriersCalls.Add(1)
	m.simulateLatency()

	if m.OnListCarriers != nil {
		return m.OnListCarriers(ctx)
	}

	if m.SimulateErrors {
		return nil, &APIError{Message: "Simulated API error"}
	}

	return []Carrier{
		{Name: "Stamps.com", Code: "stamps_com"},
		{Name: "FedEx", Code: "fedex"},
	}, nil
}

// ListServices returns mock services for a carrier.
func (m *MockAPIClient) ListServices(ctx context.Context, carrierCode string) ([]Service, error) {
	m.ListServicesCalls.Add(1)
	m.simulateLatency()

	if m.OnListServices != nil {
		return m.OnListServices(ctx, carrierCode)
	}

	if m.SimulateErrors {
		return nil, &APIError{Message: "Simulated API error"}
	}

	switch carrierCode {
	case "stamps_com":
		return []Service{
			{CarrierCode: carrierCode, Code: "usps_priority_mail", Name: "USPS Priority Mail", Domestic: true},
			{CarrierCode: carrierCode, Code: "usps_first_class_mail", Name: "USPS First Class Mail", Domestic: true},
		}, nil
	case "fedex":
		return []Service{
			{CarrierCode: carrierCode, Code: "fedex_ground", Name: "FedEx Ground", Domestic: true},
			{CarrierCode: carrierCode, Code: "fedex_international_economy", Name: "FedEx International Economy", International: true},
		}, nil
	default:
		return []Service{}, nil
	}
}

// GetRates returns mock rate quotes.
func (m *MockAPIClient) GetRates(ctx context.Context, req *RatesRequest) ([]Rate, error) {
	m.GetRatesCalls.Add(1)
	m.simulateLatency()

	if m.OnGetRates != nil {
		return m.OnGetRates(ctx, req)
	}

	if m.SimulateErrors {
		return nil, &APIError{Message: "Simulated API error"}
	}

	switch req.CarrierCode {
	case "stamps_com":
		return []Rate{
			{
				ServiceName:  "USPS Priority Mail",
				ServiceCode:  "usps_priority_mail",
				ShipmentCost: decimal.RequireFromString("7.68"),
				OtherCost:    decimal.RequireFromString("0.00"),
			},
			{
				ServiceName:  "USPS First Class Mail",
				ServiceCode:  "usps_first_class_mail",
				ShipmentCost: decimal.RequireFromString("3.35"),
				OtherCost:    decimal.RequireFromString("0.00"),
			},
		}, nil
	case "fedex":
		return []Rate{
			{
				ServiceName:  "FedEx Ground",
				ServiceCode:  "fedex_ground",
				ShipmentCost: decimal.RequireFromString("9.41"),
				OtherCost:    decimal.RequireFromString("1.10"),
			},
		}, nil
	default:
		return []Rate{}, nil
	}
}

func (m *MockAPIClient) simulateLatency() {
	if m.SimulateLatency > 0 {
		time.Sleep(m.SimulateLatency)
	}
}

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)
