// Package shipstation provides a client for the ShipStation
// carrier-rate and fulfillment REST API.
package shipstation

import (
	"context"

	"github.com/shopspring/decimal"
)

// APIClient defines the interface for ShipStation API operations.
// This abstraction allows for mock implementations during testing
// and real implementations in production.
type APIClient interface {
	// ListCarriers fetches the carriers connected to the account
	ListCarriers(ctx context.Context) ([]Carrier, error)

	// ListServices fetches the services offered by one carrier
	ListServices(ctx context.Context, carrierCode string) ([]Service, error)

	// GetRates fetches rate quotes for a single-package shipment
	GetRates(ctx context.Context, req *RatesRequest) ([]Rate, error)
}

// ============================================================================
// API Request/Response Types (match ShipStation REST API structure)
// ============================================================================

// Units accepted by the rates endpoint for a single package.
const (
	WeightUnits    = "ounces"
	DimensionUnits = "inches"
)

// Carrier is a shipping company connected to the ShipStation account.
// Identity is the code.
type Carrier struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// Service is a shipping product offered by a carrier.
//
// Identity is the code only: two services with the same code but
// different names compare equal. Rate filtering keys on codes, so
// this must not be extended to compare names.
type Service struct {
	CarrierCode   string `json:"carrierCode"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Domestic      bool   `json:"domestic"`
	International bool   `json:"international"`
}

// Equal reports service identity, which is defined by code alone.
func (s Service) Equal(other Service) bool {
	return s.Code == other.Code
}

// Weight is the package weight sent with a rate request.
type Weight struct {
	Value int    `json:"value"`
	Units string `json:"units"`
}

// Dimensions is the optional package size sent with a rate request.
type Dimensions struct {
	Units  string `json:"units"`
	Length int    `json:"length"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// RatesRequest is the POST body for shipments/getrates. One request is
// built per carrier per quote. Dimensions is omitted from the payload
// entirely when none were resolved.
type RatesRequest struct {
	CarrierCode    string      `json:"carrierCode"`
	FromPostalCode string      `json:"fromPostalCode"`
	ToState        string      `json:"toState"`
	ToCountry      string      `json:"toCountry"`
	ToPostalCode   string      `json:"toPostalCode"`
	ToCity         string      `json:"toCity"`
	Weight         Weight      `json:"weight"`
	Dimensions     *Dimensions `json:"dimensions,omitempty"`
}

// Rate is one rate quote for a (carrier, service) combination.
type Rate struct {
	ServiceName  string          `json:"serviceName"`
	ServiceCode  string          `json:"serviceCode"`
	ShipmentCost decimal.Decimal `json:"shipmentCost"`
	OtherCost    decimal.Decimal `json:"otherCost"`
}

// TotalCost is the full quoted price for the service.
func (r Rate) TotalCost() decimal.Decimal {
	return r.ShipmentCost.Add(r.OtherCost)
}
