package models

// VehicleType is the fleet category a vehicle belongs to.
type VehicleType string

const (
	VehicleTypeOwned VehicleType = "owned"
	VehicleTypeHired VehicleType = "hired"
)

// VehicleStatus represents the operational state of a vehicle.
type VehicleStatus string

const (
	VehicleAvailable   VehicleStatus = "available"
	VehicleActive      VehicleStatus = "active"
	VehicleMaintenance VehicleStatus = "maintenance"
	VehicleInactive    VehicleStatus = "inactive"
)

// Vehicle represents a fleet vehicle. PlateNumber is the business identifier
// (unique within a fleet); StorageKey is assigned by the remote store at
// creation and may differ from the plate.
type Vehicle struct {
	PlateNumber   string        `bson:"plate_number" json:"plate_number" validate:"required"`
	StorageKey    string        `bson:"_key,omitempty" json:"_key,omitempty"`
	Type          VehicleType   `bson:"type" json:"type" validate:"required"`
	Status        VehicleStatus `bson:"status" json:"status"`
	Capacity      string        `bson:"capacity" json:"capacity"`
	Route         string        `bson:"route" json:"route"`
	DriverName    string        `bson:"driver_name" json:"driver_name"`
	DriverContact string        `bson:"driver_contact" json:"driver_contact"`
	CreatedAt     FlexTime      `bson:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt     FlexTime      `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// IsValidVehicleStatus reports whether s is one of the known statuses.
func IsValidVehicleStatus(s VehicleStatus) bool {
	switch s {
	case VehicleAvailable, VehicleActive, VehicleMaintenance, VehicleInactive:
		return true
	default:
		return false
	}
}
