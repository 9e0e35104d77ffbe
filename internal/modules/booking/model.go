// README: Booking aggregate, status flow, and the read models served to renters and owners.
package booking

import (
	"time"

	"spotledger/internal/modules/account"
	"spotledger/internal/modules/space"
	"spotledger/internal/types"
)

type Status string

const (
	// StatusNone is the from-status recorded on a booking's creation event.
	StatusNone      Status = "none"
	StatusActive    Status = "Active"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

type PaymentStatus string

const (
	PaymentPaid     PaymentStatus = "Paid"
	PaymentRefunded PaymentStatus = "Refunded"
)

type RefundStatus string

const RefundProcessed RefundStatus = "Processed"

type Booking struct {
	ID                 types.ID
	RenterID           types.ID
	SpaceID            types.ID
	OwnerID            types.ID
	VehicleType        space.VehicleType
	BookingDate        time.Time
	StartTime          time.Time
	EndTime            time.Time
	TotalAmount        types.Money
	PlatformCommission types.Money
	OwnerEarnings      types.Money
	PaymentStatus      PaymentStatus
	Status             Status
	StatusVersion      int
	RefundAmount       *types.Money
	RefundStatus       *RefundStatus
	RefundDate         *time.Time
	CreatedAt          time.Time
}

type Event struct {
	ID         int64
	BookingID  types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions is the booking state flow as code. Completed and Cancelled are terminal.
var AllowedTransitions = map[Status][]Status{
	StatusActive: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ParseStatus returns the status named by v, or false for anything else.
func ParseStatus(v string) (Status, bool) {
	switch s := Status(v); s {
	case StatusActive, StatusCompleted, StatusCancelled:
		return s, true
	}
	return "", false
}

type CreateCommand struct {
	RenterID types.ID
	SpaceID  types.ID
	Start    time.Time
	End      time.Time
}

type CancelCommand struct {
	BookingID types.ID
	RenterID  types.ID
	// Now overrides the service clock when non-zero.
	Now time.Time
}

type Confirmation struct {
	Booking       *Booking
	Space         *space.ParkingSpace
	BilledHours   int64
	DirectionsURL string
}

type CancellationResult struct {
	BookingID        types.ID
	RefundAmount     types.Money
	Status           Status
	PaymentStatus    PaymentStatus
	RefundStatus     RefundStatus
	RefundDate       time.Time
	HoursBeforeStart float64
}

// RenterBooking is a booking joined with the space it was made on.
type RenterBooking struct {
	Booking
	SpaceTitle   string
	SpaceAddress string
}

// OwnerBooking is a booking on one of the owner's spaces joined with the renter's name.
type OwnerBooking struct {
	Booking
	SpaceTitle string
	RenterName string
}

// OwnerStats is aggregated from the owner's bookings, excluding cancelled ones.
type OwnerStats struct {
	TotalEarnings   types.Money
	TotalBookings   int
	PendingPayout   types.Money
	CompletedPayout types.Money
	TodayEarnings   types.Money
}

type MonthlyEarning struct {
	// Month is formatted YYYY-MM.
	Month    string
	Earnings types.Money
}

type Dashboard struct {
	Stats   OwnerStats
	Ledger  *account.Account
	Spaces  []space.ParkingSpace
	Recent  []OwnerBooking
	Monthly []MonthlyEarning
}

// Published to the message broker after commit.
type CreatedEvent struct {
	BookingID     string    `json:"booking_id"`
	RenterID      string    `json:"renter_id"`
	SpaceID       string    `json:"space_id"`
	OwnerID       string    `json:"owner_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	TotalAmount   int64     `json:"total_amount"`
	OwnerEarnings int64     `json:"owner_earnings"`
	Currency      string    `json:"currency"`
}

type CancelledEvent struct {
	BookingID    string    `json:"booking_id"`
	RenterID     string    `json:"renter_id"`
	SpaceID      string    `json:"space_id"`
	OwnerID      string    `json:"owner_id"`
	RefundAmount int64     `json:"refund_amount"`
	Currency     string    `json:"currency"`
	CancelledAt  time.Time `json:"cancelled_at"`
}
