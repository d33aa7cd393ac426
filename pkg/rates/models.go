// Package rates turns a basket of shippable items into carrier rate
// options: it resolves a package weight and dimensions from the
// merchant's packing policy, fans rate requests out across the
// account's carriers, and filters the results.
package rates

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PackingPolicy is the merchant-chosen strategy for deriving a
// package's dimensions from its contents.
type PackingPolicy string

const (
	// NoPacking sends no dimensions at all.
	NoPacking PackingPolicy = "none"
	// PackByDimensions treats the whole shipment as one package sized
	// by the host's fitting algorithm.
	PackByDimensions PackingPolicy = "dimensions"
	// PackByVolume derives a cube from the configured package volume.
	PackByVolume PackingPolicy = "volume"
)

// DefaultPackageVolume is the fallback package volume in cubic inches
// (18 x 18 x 16) used by PackByVolume when the configured volume is
// not positive.
const DefaultPackageVolume = 5184

// PackingConfig is the merchant's packing settings snapshot.
type PackingConfig struct {
	Policy PackingPolicy
	// PackageVolume is the package volume in cubic inches, used only
	// by PackByVolume.
	PackageVolume int
}

// PackageItem is one shippable line item of a quote request. Dimensions
// and weight are per unit, in the store's primary measurement units.
type PackageItem struct {
	Quantity int
	Length   float64
	Width    float64
	Height   float64
	Weight   float64
}

// Destination is the shopper's shipping address, reduced to the fields
// the carrier rate API needs.
type Destination struct {
	City       string
	State      string
	Country    string
	PostalCode string
}

// QuoteRequest is a request for shipping options for a cart.
type QuoteRequest struct {
	FromPostalCode string
	To             Destination
	Items          []PackageItem
	// SendDimensions controls whether resolved dimensions are sent to
	// the carrier API at all.
	SendDimensions bool
}

// Option is one shipping option offered to the shopper.
type Option struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Rate        decimal.Decimal `json:"rate"`
}

// Fitter computes the bounding dimensions, in the store's primary
// units, of a set of items packed as a single package. The host
// platform supplies its bin-packing implementation here.
type Fitter func(items []PackageItem) (width, length, height float64)

// BoundingBox is a naive Fitter for standalone use: items are stacked
// along the height axis.
func BoundingBox(items []PackageItem) (width, length, height float64) {
	for _, item := range items {
		if item.Width > width {
			width = item.Width
		}
		if item.Length > length {
			length = item.Length
		}
		height += item.Height * float64(item.Quantity)
	}
	return width, length, height
}

// ParseAllowedOptions parses the merchant's comma-separated list of
// allowed shipping option names. Blank entries are dropped; an empty
// result means every option is allowed.
func ParseAllowedOptions(setting string) map[string]struct{} {
	allowed := make(map[string]struct{})
	for _, option := range strings.Split(setting, ",") {
		if name := strings.TrimSpace(option); name != "" {
			allowed[name] = struct{}{}
		}
	}
	return allowed
}
