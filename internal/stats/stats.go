// Package stats derives fleet and trip statistics from reconciled
// collections. Every function is a pure, order-independent fold; callers
// recompute stats from scratch on each snapshot instead of patching cached
// values, so the numbers can never drift from the records they describe.
package stats

import "github.com/rktransport/fleetops/internal/models"

// Fleet counts vehicles by status. Unknown or missing statuses count toward
// the total but no bucket; they are not an error.
func Fleet(vehicles []models.Vehicle) models.FleetStats {
	s := models.FleetStats{Total: len(vehicles)}
	for _, v := range vehicles {
		switch v.Status {
		case models.VehicleAvailable:
			s.Available++
		case models.VehicleActive:
			s.Active++
		case models.VehicleMaintenance:
			s.Maintenance++
		case models.VehicleInactive:
			s.Inactive++
		}
	}
	return s
}

// ActiveTrip reports whether a trip counts as active for dashboard KPIs.
func ActiveTrip(status models.TripStatus) bool {
	return status == models.TripPlanned || status == models.TripInProgress
}

// Trips folds the trip collection into counts and sums. Distance and cost
// sums cover every trip; revenue covers completed trips only. Absent or
// non-numeric fields contribute 0.
func Trips(trips []models.Trip) models.TripStats {
	s := models.TripStats{Total: len(trips)}
	for _, t := range trips {
		switch t.Status {
		case models.TripPlanned:
			s.Planned++
		case models.TripInProgress:
			s.InProgress++
		case models.TripCompleted:
			s.Completed++
		}
		if ActiveTrip(t.Status) {
			s.ActiveTrips++
		}
		s.TotalDistance += t.Distance.Float64()
		s.TotalCost += t.CostBreakdown.Total
		if t.Status == models.TripCompleted {
			s.TotalRevenue += t.CostBreakdown.Total
		}
	}
	return s
}

// SumWhere sums distance and cost over trips whose status matches the
// predicate.
func SumWhere(trips []models.Trip, match func(models.TripStatus) bool) (distance, cost float64) {
	for _, t := range trips {
		if !match(t.Status) {
			continue
		}
		distance += t.Distance.Float64()
		cost += t.CostBreakdown.Total
	}
	return distance, cost
}
