package rates

import (
	"math"

	"github.com/tournevent/shipstation/pkg/shipstation"
)

// Resolver converts a basket of line items into a package weight and
// optional dimensions according to the merchant's packing policy.
type Resolver struct {
	weightUnit    string
	dimensionUnit string
	fit           Fitter
}

// NewResolver creates a resolver for a store whose product attributes
// are recorded in the given primary units. fit is the host's package
// fitting algorithm; nil falls back to BoundingBox.
func NewResolver(weightUnit, dimensionUnit string, fit Fitter) *Resolver {
	if fit == nil {
		fit = BoundingBox
	}
	return &Resolver{
		weightUnit:    weightUnit,
		dimensionUnit: dimensionUnit,
		fit:           fit,
	}
}

// Resolve returns the shipment weight in whole ounces and, when
// sendDimensions is set and the policy calls for it, the package
// dimensions in whole inches.
//
// Weight is always rounded up, never down, so freight is never
// underestimated. Every resolved dimension axis is clamped to a
// minimum of 1; the carrier API rejects zero or negative dimensions.
func (r *Resolver) Resolve(items []PackageItem, cfg PackingConfig, sendDimensions bool) (int, *shipstation.Dimensions, error) {
	wRatio, err := weightRatio(r.weightUnit)
	if err != nil {
		return 0, nil, err
	}
	dRatio, err := dimensionRatio(r.dimensionUnit)
	if err != nil {
		return 0, nil, err
	}

	var totalWeight float64
	for _, item := range items {
		totalWeight += item.Weight * float64(item.Quantity)
	}
	weightOunces := ceilInt(totalWeight * wRatio)

	if !sendDimensions || cfg.Policy == NoPacking {
		return weightOunces, nil, nil
	}

	var length, width, height int

	switch cfg.Policy {
	case PackByDimensions:
		w, l, h := r.fit(items)
		length = ceilInt(l * dRatio)
		height = ceilInt(h * dRatio)
		width = ceilInt(w * dRatio)

	case PackByVolume:
		if len(items) == 1 && items[0].Quantity == 1 {
			w, l, _ := r.fit(items)

			// Height is deliberately derived from the length axis,
			// not the item's own height; existing stores have
			// calibrated their quotes against this.
			length = ceilInt(l * dRatio)
			height = ceilInt(l * dRatio)
			width = ceilInt(w * dRatio)
		} else {
			totalVolume := 0
			for _, item := range items {
				unit := item
				unit.Quantity = 1
				w, l, h := r.fit([]PackageItem{unit})

				productLength := ceilInt(l * dRatio)
				productHeight := ceilInt(h * dRatio)
				productWidth := ceilInt(w * dRatio)
				totalVolume += item.Quantity * (productHeight * productWidth * productLength)
			}

			var edge int
			if totalVolume > 0 {
				packageVolume := cfg.PackageVolume
				if packageVolume <= 0 {
					packageVolume = DefaultPackageVolume
				}
				edge = int(math.Floor(math.Cbrt(float64(packageVolume))))
			}

			length, width, height = edge, edge, edge
		}

	default:
		// Unrecognized policy: send a minimal package.
		length, width, height = 1, 1, 1
	}

	if length < 1 {
		length = 1
	}
	if height < 1 {
		height = 1
	}
	if width < 1 {
		width = 1
	}

	return weightOunces, &shipstation.Dimensions{
		Units:  shipstation.DimensionUnits,
		Length: length,
		Width:  width,
		Height: height,
	}, nil
}

func ceilInt(v float64) int {
	return int(math.Ceil(v))
}
