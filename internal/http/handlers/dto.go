// README: JSON response shapes for spaces, bookings and owner ledgers; money rendered in major units.
package handlers

import (
	"time"

	"spotledger/internal/modules/account"
	"spotledger/internal/modules/booking"
	"spotledger/internal/modules/location"
	"spotledger/internal/modules/space"
)

// Money leaves the API as major units (e.g. 84.00) next to its currency.

type spaceDTO struct {
	ID                  string    `json:"id"`
	OwnerID             string    `json:"owner_id"`
	OwnerName           string    `json:"owner_name,omitempty"`
	Title               string    `json:"title"`
	Address             string    `json:"address"`
	LocationDescription string    `json:"location_description"`
	VehicleType         string    `json:"vehicle_type"`
	TotalSlots          int       `json:"total_slots"`
	AvailableSlots      int       `json:"available_slots"`
	PricePerHour        float64   `json:"price_per_hour"`
	Currency            string    `json:"currency"`
	Latitude            *float64  `json:"latitude,omitempty"`
	Longitude           *float64  `json:"longitude,omitempty"`
	AvailableFrom       string    `json:"available_from,omitempty"`
	AvailableTo         string    `json:"available_to,omitempty"`
	Rating              *float64  `json:"rating,omitempty"`
	IsVerified          bool      `json:"is_verified"`
	DistanceKm          *float64  `json:"distance_km,omitempty"`
	DirectionsURL       string    `json:"directions_url"`
	CreatedAt           time.Time `json:"created_at"`
}

func toSpaceDTO(p space.ParkingSpace) spaceDTO {
	d := spaceDTO{
		ID:                  string(p.ID),
		OwnerID:             string(p.OwnerID),
		OwnerName:           p.OwnerName,
		Title:               p.Title,
		Address:             p.Address,
		LocationDescription: p.LocationDescription,
		VehicleType:         string(p.VehicleType),
		TotalSlots:          p.TotalSlots,
		AvailableSlots:      p.AvailableSlots,
		PricePerHour:        p.PricePerHour.Decimal(),
		Currency:            p.PricePerHour.Currency,
		AvailableFrom:       p.AvailableFrom,
		AvailableTo:         p.AvailableTo,
		Rating:              p.Rating,
		IsVerified:          p.IsVerified,
		DirectionsURL:       location.DirectionsURL(p.Address),
		CreatedAt:           p.CreatedAt,
	}
	if p.Position != nil {
		lat, lng := p.Position.Lat, p.Position.Lng
		d.Latitude, d.Longitude = &lat, &lng
	}
	return d
}

func toRankedDTOs(items []location.Ranked[space.ParkingSpace]) []spaceDTO {
	out := make([]spaceDTO, len(items))
	for i, r := range items {
		out[i] = toSpaceDTO(r.Item)
		out[i].DistanceKm = r.DistanceKm
	}
	return out
}

func toSpaceDTOs(items []space.ParkingSpace) []spaceDTO {
	out := make([]spaceDTO, len(items))
	for i, p := range items {
		out[i] = toSpaceDTO(p)
	}
	return out
}

type bookingDTO struct {
	ID                 string     `json:"id"`
	RenterID           string     `json:"renter_id"`
	SpaceID            string     `json:"space_id"`
	OwnerID            string     `json:"owner_id"`
	VehicleType        string     `json:"vehicle_type"`
	BookingDate        string     `json:"booking_date"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            time.Time  `json:"end_time"`
	TotalAmount        float64    `json:"total_amount"`
	PlatformCommission float64    `json:"platform_commission"`
	OwnerEarnings      float64    `json:"owner_earnings"`
	Currency           string     `json:"currency"`
	PaymentStatus      string     `json:"payment_status"`
	BookingStatus      string     `json:"booking_status"`
	RefundAmount       *float64   `json:"refund_amount"`
	RefundStatus       *string    `json:"refund_status"`
	RefundDate         *time.Time `json:"refund_date"`
	CreatedAt          time.Time  `json:"created_at"`
	SpaceTitle         string     `json:"space_title,omitempty"`
	SpaceAddress       string     `json:"space_address,omitempty"`
	RenterName         string     `json:"renter_name,omitempty"`
}

func toBookingDTO(b booking.Booking) bookingDTO {
	d := bookingDTO{
		ID:                 string(b.ID),
		RenterID:           string(b.RenterID),
		SpaceID:            string(b.SpaceID),
		OwnerID:            string(b.OwnerID),
		VehicleType:        string(b.VehicleType),
		BookingDate:        b.BookingDate.Format(time.DateOnly),
		StartTime:          b.StartTime,
		EndTime:            b.EndTime,
		TotalAmount:        b.TotalAmount.Decimal(),
		PlatformCommission: b.PlatformCommission.Decimal(),
		OwnerEarnings:      b.OwnerEarnings.Decimal(),
		Currency:           b.TotalAmount.Currency,
		PaymentStatus:      string(b.PaymentStatus),
		BookingStatus:      string(b.Status),
		RefundDate:         b.RefundDate,
		CreatedAt:          b.CreatedAt,
	}
	if b.RefundAmount != nil {
		v := b.RefundAmount.Decimal()
		d.RefundAmount = &v
	}
	if b.RefundStatus != nil {
		v := string(*b.RefundStatus)
		d.RefundStatus = &v
	}
	return d
}

type statsDTO struct {
	TotalEarnings   float64 `json:"total_earnings"`
	TotalBookings   int     `json:"total_bookings"`
	PendingPayout   float64 `json:"pending_payout"`
	CompletedPayout float64 `json:"completed_payout"`
	TodayEarnings   float64 `json:"today_earnings"`
	Currency        string  `json:"currency"`
}

func toStatsDTO(s booking.OwnerStats) statsDTO {
	return statsDTO{
		TotalEarnings:   s.TotalEarnings.Decimal(),
		TotalBookings:   s.TotalBookings,
		PendingPayout:   s.PendingPayout.Decimal(),
		CompletedPayout: s.CompletedPayout.Decimal(),
		TodayEarnings:   s.TodayEarnings.Decimal(),
		Currency:        s.TotalEarnings.Currency,
	}
}

type ledgerDTO struct {
	TotalEarnings   float64 `json:"total_earnings"`
	TotalBookings   int     `json:"total_bookings"`
	PendingPayout   float64 `json:"pending_payout"`
	CompletedPayout float64 `json:"completed_payout"`
	Currency        string  `json:"currency"`
}

func toLedgerDTO(a *account.Account) *ledgerDTO {
	if a == nil {
		return nil
	}
	return &ledgerDTO{
		TotalEarnings:   a.TotalEarnings.Decimal(),
		TotalBookings:   a.TotalBookings,
		PendingPayout:   a.PendingPayout.Decimal(),
		CompletedPayout: a.CompletedPayout.Decimal(),
		Currency:        a.TotalEarnings.Currency,
	}
}

type monthlyDTO struct {
	Month    string  `json:"month"`
	Earnings float64 `json:"earnings"`
}
