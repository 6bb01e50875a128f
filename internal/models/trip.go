package models

// TripStatus represents the lifecycle state of a trip.
type TripStatus string

const (
	TripPlanned    TripStatus = "planned"
	TripInProgress TripStatus = "in-progress"
	TripCompleted  TripStatus = "completed"
)

// Customer is the billed party on a trip. Name and phone are mandatory at
// creation; address and tax id are optional.
type Customer struct {
	Name    string `bson:"name" json:"name" validate:"required"`
	Phone   string `bson:"phone" json:"phone" validate:"required"`
	Address string `bson:"address" json:"address"`
	TaxID   string `bson:"tax_id" json:"tax_id"`
}

// Trip represents a consignment trip. The vehicle and driver fields are a
// denormalized snapshot taken at trip creation; later vehicle edits do not
// rewrite past trips.
type Trip struct {
	TripID           string         `bson:"trip_id" json:"trip_id"`
	OrderID          string         `bson:"order_id" json:"order_id"`
	StorageKey       string         `bson:"_key,omitempty" json:"_key,omitempty"`
	VehicleRef       string         `bson:"vehicle_ref" json:"vehicle_ref" validate:"required"`
	DriverName       string         `bson:"driver_name" json:"driver_name"`
	DriverContact    string         `bson:"driver_contact" json:"driver_contact"`
	FromLocation     string         `bson:"from_location" json:"from_location"`
	ToLocation       string         `bson:"to_location" json:"to_location"`
	StartDate        string         `bson:"start_date" json:"start_date"`
	EstimatedEndDate string         `bson:"estimated_end_date" json:"estimated_end_date"`
	Distance         FlexFloat      `bson:"distance" json:"distance"`
	Customer         Customer       `bson:"customer" json:"customer"`
	MaterialLines    []MaterialLine `bson:"material_lines" json:"material_lines"`
	Surcharges       Surcharges     `bson:"surcharges" json:"surcharges"`
	CostBreakdown    CostBreakdown  `bson:"cost_breakdown" json:"cost_breakdown"`
	Status           TripStatus     `bson:"status" json:"status"`
	CreatedAt        FlexTime       `bson:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt        FlexTime       `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// BillableLines returns the fully specified material lines on the trip.
func (t *Trip) BillableLines() []MaterialLine {
	lines := make([]MaterialLine, 0, len(t.MaterialLines))
	for _, l := range t.MaterialLines {
		if l.FullySpecified() {
			lines = append(lines, l)
		}
	}
	return lines
}
