// Package costing computes trip cost breakdowns from material line items and
// surcharges. The computation is pure: it never mutates its inputs and the
// same inputs always produce the same output, including rounding.
package costing

import (
	"math"

	"github.com/rktransport/fleetops/internal/models"
)

// DefaultTaxRate is the GST rate applied when no rate is configured.
const DefaultTaxRate = 0.18

// Engine computes cost breakdowns at a fixed tax rate. The rate is a
// deployment configuration value, not a per-call parameter.
type Engine struct {
	taxRate float64
}

// NewEngine returns an Engine using the given tax rate. Rates outside (0, 1]
// fall back to DefaultTaxRate.
func NewEngine(taxRate float64) *Engine {
	if taxRate <= 0 || taxRate > 1 {
		taxRate = DefaultTaxRate
	}
	return &Engine{taxRate: taxRate}
}

// TaxRate returns the configured tax rate.
func (e *Engine) TaxRate() float64 { return e.taxRate }

// LineAmount returns the billed amount for a single material line:
// round2(quantity x rate). Absent or non-numeric values have already been
// coerced to 0 by the model layer, so a malformed line contributes 0.
func LineAmount(line models.MaterialLine) float64 {
	return Round2(line.Quantity.Float64() * line.Rate.Float64())
}

// ComputeCost derives the full cost breakdown for the given lines and
// surcharges.
func (e *Engine) ComputeCost(lines []models.MaterialLine, s models.Surcharges) models.CostBreakdown {
	var materials float64
	for _, line := range lines {
		materials += LineAmount(line)
	}
	subtotal := materials + s.TransportCharges.Float64() + s.OtherCharges.Float64()
	tax := Round2(subtotal * e.taxRate)
	return models.CostBreakdown{
		MaterialsTotal: materials,
		Subtotal:       subtotal,
		TaxRate:        e.taxRate,
		Tax:            tax,
		Total:          subtotal + tax,
	}
}

// PriceTrip recomputes the trip's line amounts and cost breakdown in place on
// a copy, returning the priced trip. The input trip is left untouched.
func (e *Engine) PriceTrip(trip models.Trip) models.Trip {
	lines := make([]models.MaterialLine, len(trip.MaterialLines))
	copy(lines, trip.MaterialLines)
	for i := range lines {
		lines[i].Amount = LineAmount(lines[i])
	}
	trip.MaterialLines = lines
	trip.CostBreakdown = e.ComputeCost(lines, trip.Surcharges)
	return trip
}

// Round2 rounds to two decimal places using half-up rounding.
func Round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}
