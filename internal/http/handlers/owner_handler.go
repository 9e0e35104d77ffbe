// README: Owner handlers: listings, new spaces, earnings stats and dashboard.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spotledger/internal/http/middleware"
	"spotledger/internal/modules/space"
	"spotledger/internal/types"
)

type OwnerHandler struct {
	spaces         SpaceService
	bookings       BookingService
	commissionRate float64
	currency       string
}

func NewOwnerHandler(spaces SpaceService, bookings BookingService, commissionRate float64, currency string) *OwnerHandler {
	return &OwnerHandler{spaces: spaces, bookings: bookings, commissionRate: commissionRate, currency: currency}
}

func (h *OwnerHandler) ListSpaces(c *gin.Context) {
	list, err := h.spaces.ListForOwner(c.Request.Context(), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeSpaceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"spaces": toSpaceDTOs(list)})
}

type createSpaceReq struct {
	Title               string   `json:"title"`
	Address             string   `json:"address"`
	LocationDescription string   `json:"location_description"`
	VehicleType         string   `json:"vehicle_type"`
	TotalSlots          int      `json:"total_slots"`
	AvailableSlots      *int     `json:"available_slots"`
	PricePerHour        float64  `json:"price_per_hour"`
	Latitude            *float64 `json:"latitude"`
	Longitude           *float64 `json:"longitude"`
	AvailableFrom       string   `json:"available_from"`
	AvailableTo         string   `json:"available_to"`
}

func (h *OwnerHandler) CreateSpace(c *gin.Context) {
	var req createSpaceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		writeError(c, http.StatusBadRequest, "latitude and longitude must be given together")
		return
	}

	cmd := space.CreateCommand{
		OwnerID:             types.ID(middleware.CallerUID(c)),
		Title:               req.Title,
		Address:             req.Address,
		LocationDescription: req.LocationDescription,
		VehicleType:         space.VehicleType(req.VehicleType),
		TotalSlots:          req.TotalSlots,
		AvailableSlots:      req.AvailableSlots,
		PricePerHour:        types.FromDecimal(req.PricePerHour, h.currency),
		AvailableFrom:       req.AvailableFrom,
		AvailableTo:         req.AvailableTo,
	}
	if req.Latitude != nil {
		cmd.Position = &types.Point{Lat: *req.Latitude, Lng: *req.Longitude}
	}

	p, err := h.spaces.Create(c.Request.Context(), cmd)
	if err != nil {
		writeSpaceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"space": toSpaceDTO(*p)})
}

func (h *OwnerHandler) Stats(c *gin.Context) {
	st, err := h.bookings.OwnerStats(c.Request.Context(), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"stats": toStatsDTO(st), "commission_rate": h.commissionRate})
}

func (h *OwnerHandler) Dashboard(c *gin.Context) {
	d, err := h.bookings.OwnerDashboard(c.Request.Context(), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeBookingError(c, err)
		return
	}

	recent := make([]bookingDTO, len(d.Recent))
	for i, ob := range d.Recent {
		recent[i] = toBookingDTO(ob.Booking)
		recent[i].SpaceTitle = ob.SpaceTitle
		recent[i].RenterName = ob.RenterName
	}
	monthly := make([]monthlyDTO, len(d.Monthly))
	for i, m := range d.Monthly {
		monthly[i] = monthlyDTO{Month: m.Month, Earnings: m.Earnings.Decimal()}
	}

	writeJSON(c, http.StatusOK, gin.H{
		"stats":           toStatsDTO(d.Stats),
		"ledger":          toLedgerDTO(d.Ledger),
		"spaces":          toSpaceDTOs(d.Spaces),
		"bookings":        recent,
		"monthly":         monthly,
		"commission_rate": h.commissionRate,
	})
}
