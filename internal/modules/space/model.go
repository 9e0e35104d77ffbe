// README: Parking space listing model and vehicle type definitions.
package space

import (
	"time"

	"spotledger/internal/types"
)

type VehicleType string

const (
	VehicleTwoWheeler  VehicleType = "two-wheeler"
	VehicleFourWheeler VehicleType = "four-wheeler"
	VehicleBoth        VehicleType = "both"
)

func (v VehicleType) Valid() bool {
	switch v {
	case VehicleTwoWheeler, VehicleFourWheeler, VehicleBoth:
		return true
	}
	return false
}

type ParkingSpace struct {
	ID                  types.ID
	OwnerID             types.ID
	OwnerName           string
	Title               string
	Address             string
	LocationDescription string
	VehicleType         VehicleType
	TotalSlots          int
	AvailableSlots      int
	PricePerHour        types.Money
	// Position is nil when the owner gave no coordinates and geocoding found none.
	Position      *types.Point
	AvailableFrom string
	AvailableTo   string
	Rating        *float64
	IsVerified    bool
	CreatedAt     time.Time
}

func (p ParkingSpace) Coordinates() (types.Point, bool) {
	if p.Position == nil {
		return types.Point{}, false
	}
	return *p.Position, true
}

func (p ParkingSpace) HourlyRate() int64 {
	return p.PricePerHour.Amount
}

func (p ParkingSpace) FreeSlots() int {
	return p.AvailableSlots
}

// Query is the storage-level filter. An empty LocationText or VehicleType matches everything.
type Query struct {
	LocationText string
	VehicleType  VehicleType
}

type CreateCommand struct {
	OwnerID             types.ID
	Title               string
	Address             string
	LocationDescription string
	VehicleType         VehicleType
	TotalSlots          int
	AvailableSlots      *int
	PricePerHour        types.Money
	Position            *types.Point
	AvailableFrom       string
	AvailableTo         string
}
