package domain

import (
	"fmt"
	"math"
)

// All monetary amounts in the engine are int64 cents. The float64 forms
// exist only at the API boundary.

// ToCents converts a float64 currency amount to int64 cents. Amounts with
// more than 2 decimal places are rejected. Uses math.Round after scaling
// to absorb floating-point representation noise (e.g. 1.10*1000 = 1099.99…).
func ToCents(f float64) (int64, error) {
	scaled := math.Round(f * 1000)
	if math.Mod(scaled, 10) != 0 {
		return 0, fmt.Errorf("monetary values must have at most 2 decimal places")
	}
	return int64(math.Round(f * 100)), nil
}

// FromCents converts int64 cents back to a float64 currency amount.
func FromCents(c int64) float64 {
	return float64(c) / 100.0
}
