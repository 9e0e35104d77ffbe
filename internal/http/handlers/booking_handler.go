// README: Booking handlers for renters: create, list, cancel.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"spotledger/internal/http/middleware"
	"spotledger/internal/modules/booking"
	"spotledger/internal/types"
)

type BookingService interface {
	Create(ctx context.Context, cmd booking.CreateCommand) (*booking.Confirmation, error)
	Cancel(ctx context.Context, cmd booking.CancelCommand) (*booking.CancellationResult, error)
	ListForRenter(ctx context.Context, renterID types.ID, filter string) ([]booking.RenterBooking, error)
	OwnerStats(ctx context.Context, ownerID types.ID) (booking.OwnerStats, error)
	OwnerDashboard(ctx context.Context, ownerID types.ID) (*booking.Dashboard, error)
}

type BookingHandler struct {
	bookings BookingService
}

func NewBookingHandler(svc BookingService) *BookingHandler {
	return &BookingHandler{bookings: svc}
}

type createBookingReq struct {
	SpaceID   string `json:"space_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.SpaceID == "" || req.StartTime == "" || req.EndTime == "" {
		writeError(c, http.StatusBadRequest, "space_id, start_time and end_time are required")
		return
	}
	start, err1 := time.Parse(time.RFC3339, req.StartTime)
	end, err2 := time.Parse(time.RFC3339, req.EndTime)
	if err1 != nil || err2 != nil {
		writeError(c, http.StatusBadRequest, "invalid start or end time")
		return
	}

	conf, err := h.bookings.Create(c.Request.Context(), booking.CreateCommand{
		RenterID: types.ID(middleware.CallerUID(c)),
		SpaceID:  types.ID(req.SpaceID),
		Start:    start,
		End:      end,
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{
		"booking":        toBookingDTO(*conf.Booking),
		"space":          gin.H{"id": conf.Space.ID, "title": conf.Space.Title, "address": conf.Space.Address},
		"billed_hours":   conf.BilledHours,
		"directions_url": conf.DirectionsURL,
	})
}

// List handles GET /api/bookings?status=Active|Completed|Cancelled.
func (h *BookingHandler) List(c *gin.Context) {
	list, err := h.bookings.ListForRenter(c.Request.Context(), types.ID(middleware.CallerUID(c)), c.Query("status"))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	out := make([]bookingDTO, len(list))
	for i, rb := range list {
		out[i] = toBookingDTO(rb.Booking)
		out[i].SpaceTitle = rb.SpaceTitle
		out[i].SpaceAddress = rb.SpaceAddress
	}
	writeJSON(c, http.StatusOK, gin.H{"bookings": out, "status": c.Query("status")})
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	res, err := h.bookings.Cancel(c.Request.Context(), booking.CancelCommand{
		BookingID: types.ID(c.Param("id")),
		RenterID:  types.ID(middleware.CallerUID(c)),
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"booking_id":         res.BookingID,
		"refund_amount":      res.RefundAmount.Decimal(),
		"currency":           res.RefundAmount.Currency,
		"booking_status":     res.Status,
		"payment_status":     res.PaymentStatus,
		"refund_status":      res.RefundStatus,
		"refund_date":        res.RefundDate,
		"hours_before_start": res.HoursBeforeStart,
	})
}
