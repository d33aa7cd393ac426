package rates

import "fmt"

// ConfigurationError indicates that a required measurement unit could
// not be resolved from the store's configuration. It is fatal for the
// current quote request.
type ConfigurationError struct {
	Kind    string // "weight" or "dimension"
	Keyword string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("could not load %q measure %s", e.Keyword, e.Kind)
}

// Ratios from a store's primary unit to the units the carrier API
// accepts: ounces for weight, inches for dimensions.
var (
	ounceRatios = map[string]float64{
		"ounce": 1,
		"lb":    16,
		"grams": 0.03527396,
		"kg":    35.27396,
	}
	inchRatios = map[string]float64{
		"inches":      1,
		"feet":        12,
		"centimeters": 0.393701,
		"millimetres": 0.0393701,
		"meters":      39.3701,
	}
)

// weightRatio resolves the conversion factor from the store's primary
// weight unit to ounces.
func weightRatio(keyword string) (float64, error) {
	ratio, ok := ounceRatios[keyword]
	if !ok {
		return 0, &ConfigurationError{Kind: "weight", Keyword: keyword}
	}
	return ratio, nil
}

// dimensionRatio resolves the conversion factor from the store's
// primary dimension unit to inches.
func dimensionRatio(keyword string) (float64, error) {
	ratio, ok := inchRatios[keyword]
	if !ok {
		return 0, &ConfigurationError{Kind: "dimension", Keyword: keyword}
	}
	return ratio, nil
}
