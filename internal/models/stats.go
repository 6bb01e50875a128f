package models

// FleetStats is a point-in-time projection over the reconciled vehicle
// collection. It has no identity of its own and is recomputed in full on every
// snapshot; nothing patches it incrementally.
type FleetStats struct {
	Total       int `json:"total"`
	Available   int `json:"available"`
	Active      int `json:"active"`
	Maintenance int `json:"maintenance"`
	Inactive    int `json:"inactive"`
}

// TripStats is the equivalent projection over the reconciled trip collection.
type TripStats struct {
	Total         int     `json:"total"`
	Planned       int     `json:"planned"`
	InProgress    int     `json:"in_progress"`
	Completed     int     `json:"completed"`
	ActiveTrips   int     `json:"active_trips"`
	TotalDistance float64 `json:"total_distance"`
	TotalCost     float64 `json:"total_cost"`
	TotalRevenue  float64 `json:"total_revenue"`
}
