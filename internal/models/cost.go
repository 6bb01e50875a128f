package models

// MaterialUnit is the unit a material line is measured in.
type MaterialUnit string

const (
	UnitTons   MaterialUnit = "Tons"
	UnitBags   MaterialUnit = "Bags"
	UnitBrass  MaterialUnit = "brass"
	UnitPieces MaterialUnit = "Pieces"
	UnitKg     MaterialUnit = "Kg"
)

// MaterialLine is one billed material on a trip. Amount is derived
// (quantity x rate) and never entered directly.
type MaterialLine struct {
	Material string       `bson:"material" json:"material"`
	Quantity FlexFloat    `bson:"quantity" json:"quantity"`
	Unit     MaterialUnit `bson:"unit" json:"unit"`
	Rate     FlexFloat    `bson:"rate" json:"rate"`
	Amount   float64      `bson:"amount" json:"amount"`
}

// FullySpecified reports whether the line is complete enough to bill:
// material named, quantity and rate both positive.
func (m MaterialLine) FullySpecified() bool {
	return m.Material != "" && m.Quantity > 0 && m.Rate > 0
}

// Surcharges are flat charges added on top of the materials total.
type Surcharges struct {
	TransportCharges FlexFloat `bson:"transport_charges" json:"transport_charges"`
	OtherCharges     FlexFloat `bson:"other_charges" json:"other_charges"`
}

// CostBreakdown is the computed trip costing. It is always a pure function of
// the trip's material lines and surcharges; it is stored denormalized for the
// dashboard but recomputed whenever its inputs change.
type CostBreakdown struct {
	MaterialsTotal float64 `bson:"materials_total" json:"materials_total"`
	Subtotal       float64 `bson:"subtotal" json:"subtotal"`
	TaxRate        float64 `bson:"tax_rate" json:"tax_rate"`
	Tax            float64 `bson:"tax" json:"tax"`
	Total          float64 `bson:"total" json:"total"`
}
