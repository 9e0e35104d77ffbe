// README: Handler tests; request parsing, response shape and error mapping against stub services.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"spotledger/internal/http/handlers"
	"spotledger/internal/http/middleware"
	"spotledger/internal/infra"
	"spotledger/internal/modules/booking"
	"spotledger/internal/modules/location"
	"spotledger/internal/modules/pricing"
	"spotledger/internal/modules/space"
	"spotledger/internal/types"
)

type stubVerifier struct{ uid string }

func (s stubVerifier) VerifyIDToken(_ context.Context, _ string) (*infra.Identity, error) {
	return &infra.Identity{UID: s.uid, Role: "user"}, nil
}

type stubSpaces struct {
	lastFilter space.Filter
	lastCreate space.CreateCommand
	result     space.SearchResult
	space      *space.ParkingSpace
	list       []space.ParkingSpace
	err        error
}

func (s *stubSpaces) Search(_ context.Context, f space.Filter) (space.SearchResult, error) {
	s.lastFilter = f
	return s.result, s.err
}

func (s *stubSpaces) Get(_ context.Context, _ types.ID) (*space.ParkingSpace, error) {
	return s.space, s.err
}

func (s *stubSpaces) ListForOwner(_ context.Context, _ types.ID) ([]space.ParkingSpace, error) {
	return s.list, s.err
}

func (s *stubSpaces) Create(_ context.Context, cmd space.CreateCommand) (*space.ParkingSpace, error) {
	s.lastCreate = cmd
	if s.err != nil {
		return nil, s.err
	}
	return &space.ParkingSpace{ID: "new-space", OwnerID: cmd.OwnerID, Title: cmd.Title, Address: cmd.Address, PricePerHour: cmd.PricePerHour, Position: cmd.Position}, nil
}

type stubBookings struct {
	lastCreate   booking.CreateCommand
	lastCancel   booking.CancelCommand
	lastRenter   types.ID
	lastFilter   string
	confirmation *booking.Confirmation
	cancel       *booking.CancellationResult
	list         []booking.RenterBooking
	stats        booking.OwnerStats
	dashboard    *booking.Dashboard
	err          error
}

func (s *stubBookings) Create(_ context.Context, cmd booking.CreateCommand) (*booking.Confirmation, error) {
	s.lastCreate = cmd
	return s.confirmation, s.err
}

func (s *stubBookings) Cancel(_ context.Context, cmd booking.CancelCommand) (*booking.CancellationResult, error) {
	s.lastCancel = cmd
	return s.cancel, s.err
}

func (s *stubBookings) ListForRenter(_ context.Context, renterID types.ID, filter string) ([]booking.RenterBooking, error) {
	s.lastRenter, s.lastFilter = renterID, filter
	return s.list, s.err
}

func (s *stubBookings) OwnerStats(_ context.Context, _ types.ID) (booking.OwnerStats, error) {
	return s.stats, s.err
}

func (s *stubBookings) OwnerDashboard(_ context.Context, _ types.ID) (*booking.Dashboard, error) {
	return s.dashboard, s.err
}

func inr(amount int64) types.Money { return types.Money{Amount: amount, Currency: "INR"} }

func buildRouter(spaces *stubSpaces, bookings *stubBookings) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Auth(stubVerifier{uid: "caller-1"}))

	sh := handlers.NewSpaceHandler(spaces, 0.30)
	r.GET("/api/spaces/search", sh.Search)
	r.GET("/api/spaces/:id", sh.Get)

	bh := handlers.NewBookingHandler(bookings)
	r.POST("/api/bookings", bh.Create)
	r.GET("/api/bookings", bh.List)
	r.POST("/api/bookings/:id/cancel", bh.Cancel)

	oh := handlers.NewOwnerHandler(spaces, bookings, 0.30, "INR")
	r.GET("/api/owner/spaces", oh.ListSpaces)
	r.POST("/api/owner/spaces", oh.CreateSpace)
	r.GET("/api/owner/stats", oh.Stats)
	r.GET("/api/owner/dashboard", oh.Dashboard)
	return r
}

func doRequest(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return m
}

func TestSearch_ParsesQuery(t *testing.T) {
	d := 1.5
	n := 1
	spaces := &stubSpaces{result: space.SearchResult{
		Spaces: []location.Ranked[space.ParkingSpace]{
			{Item: space.ParkingSpace{ID: "s1", Title: "Bay", Address: "T Nagar", PricePerHour: inr(4000)}, DistanceKm: &d},
		},
		NearbyCount: &n,
	}}
	r := buildRouter(spaces, &stubBookings{})

	w := doRequest(r, http.MethodGet, "/api/spaces/search?location=Nagar&vehicle_type=two-wheeler&lat=13.04&lng=80.23&sort=price&within_km=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	f := spaces.lastFilter
	if f.Origin == nil || f.Origin.Lat != 13.04 || f.Origin.Lng != 80.23 {
		t.Errorf("Origin = %v", f.Origin)
	}
	if f.Sort != location.SortPrice || f.VehicleType != space.VehicleTwoWheeler || f.LocationText != "Nagar" {
		t.Errorf("filter = %+v", f)
	}
	if f.WithinKm == nil || *f.WithinKm != 5 {
		t.Errorf("WithinKm = %v", f.WithinKm)
	}

	body := decode(t, w)
	if body["nearby_count"] != float64(1) || body["has_user_location"] != true {
		t.Errorf("body = %v", body)
	}
	list := body["spaces"].([]any)
	first := list[0].(map[string]any)
	if first["distance_km"] != 1.5 || first["price_per_hour"] != 40.0 {
		t.Errorf("space = %v", first)
	}
}

func TestSearch_PartialCoordinatesIgnored(t *testing.T) {
	spaces := &stubSpaces{}
	r := buildRouter(spaces, &stubBookings{})

	w := doRequest(r, http.MethodGet, "/api/spaces/search?location=Adyar&lat=13.0&sort=bogus", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if spaces.lastFilter.Origin != nil {
		t.Errorf("Origin = %v, want nil", spaces.lastFilter.Origin)
	}
	if spaces.lastFilter.Sort != location.SortDistance {
		t.Errorf("Sort = %q, want distance", spaces.lastFilter.Sort)
	}
	if _, ok := decode(t, w)["nearby_count"]; ok {
		t.Error("nearby_count reported without coordinates")
	}
}

func TestSearch_UnknownVehicleTypePassedThrough(t *testing.T) {
	spaces := &stubSpaces{}
	r := buildRouter(spaces, &stubBookings{})

	w := doRequest(r, http.MethodGet, "/api/spaces/search?vehicle_type=truck", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if spaces.lastFilter.VehicleType != "truck" {
		t.Errorf("VehicleType = %q, want truck", spaces.lastFilter.VehicleType)
	}
}

func TestSearch_NonFiniteCoordinatesIgnored(t *testing.T) {
	for _, q := range []string{"lat=NaN&lng=77.5", "lat=12.9&lng=Inf", "lat=-Inf&lng=+Inf"} {
		spaces := &stubSpaces{}
		r := buildRouter(spaces, &stubBookings{})

		w := doRequest(r, http.MethodGet, "/api/spaces/search?location=Adyar&"+q, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", q, w.Code)
		}
		if spaces.lastFilter.Origin != nil {
			t.Errorf("%s: Origin = %v, want nil", q, spaces.lastFilter.Origin)
		}
		if body := decode(t, w); body["has_user_location"] != false {
			t.Errorf("%s: body = %v", q, body)
		}
	}
}

func TestSearch_NonFiniteWithinKmRejected(t *testing.T) {
	for _, v := range []string{"NaN", "Inf", "-Inf"} {
		spaces := &stubSpaces{}
		r := buildRouter(spaces, &stubBookings{})

		w := doRequest(r, http.MethodGet, "/api/spaces/search?lat=13&lng=80&within_km="+v, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("within_km=%s: expected 400, got %d", v, w.Code)
		}
	}
}

func TestSearch_Errors(t *testing.T) {
	r := buildRouter(&stubSpaces{}, &stubBookings{})
	if w := doRequest(r, http.MethodGet, "/api/spaces/search?within_km=far", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad within_km: expected 400, got %d", w.Code)
	}

	r = buildRouter(&stubSpaces{err: space.ErrBadRequest}, &stubBookings{})
	if w := doRequest(r, http.MethodGet, "/api/spaces/search?lat=13&lng=80&within_km=0", nil); w.Code != http.StatusBadRequest {
		t.Errorf("rejected filter: expected 400, got %d", w.Code)
	}

	r = buildRouter(&stubSpaces{err: errors.New("db down")}, &stubBookings{})
	w := doRequest(r, http.MethodGet, "/api/spaces/search", nil)
	if w.Code != http.StatusInternalServerError || decode(t, w)["error"] != "internal error" {
		t.Errorf("storage error: got %d %s", w.Code, w.Body.String())
	}
}

func TestGetSpace(t *testing.T) {
	r := buildRouter(&stubSpaces{err: space.ErrNotFound}, &stubBookings{})
	if w := doRequest(r, http.MethodGet, "/api/spaces/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}

	r = buildRouter(&stubSpaces{space: &space.ParkingSpace{ID: "s1", Address: "12 TTK Road", PricePerHour: inr(4000)}}, &stubBookings{})
	w := doRequest(r, http.MethodGet, "/api/spaces/s1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decode(t, w)
	if body["commission_rate"] != 0.30 {
		t.Errorf("commission_rate = %v", body["commission_rate"])
	}
	sp := body["space"].(map[string]any)
	if sp["directions_url"] != "https://www.google.com/maps/dir/?api=1&destination=12+TTK+Road" {
		t.Errorf("directions_url = %v", sp["directions_url"])
	}
}

func TestCreateBooking(t *testing.T) {
	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	conf := &booking.Confirmation{
		Booking: &booking.Booking{
			ID: "b1", RenterID: "caller-1", SpaceID: "s1", StartTime: start, EndTime: start.Add(150 * time.Minute),
			BookingDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			TotalAmount: inr(12000), PlatformCommission: inr(3600), OwnerEarnings: inr(8400),
			PaymentStatus: booking.PaymentPaid, Status: booking.StatusActive,
		},
		Space:         &space.ParkingSpace{ID: "s1", Title: "Bay", Address: "12 TTK Road"},
		BilledHours:   3,
		DirectionsURL: "https://www.google.com/maps/dir/?api=1&destination=12+TTK+Road",
	}
	bookings := &stubBookings{confirmation: conf}
	r := buildRouter(&stubSpaces{}, bookings)

	w := doRequest(r, http.MethodPost, "/api/bookings", map[string]string{
		"space_id": "s1", "start_time": "2025-03-10T08:00:00Z", "end_time": "2025-03-10T10:30:00Z",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if bookings.lastCreate.RenterID != "caller-1" || bookings.lastCreate.SpaceID != "s1" || !bookings.lastCreate.Start.Equal(start) {
		t.Errorf("command = %+v", bookings.lastCreate)
	}
	b := decode(t, w)["booking"].(map[string]any)
	if b["total_amount"] != 120.0 || b["platform_commission"] != 36.0 || b["owner_earnings"] != 84.0 {
		t.Errorf("amounts = %v / %v / %v", b["total_amount"], b["platform_commission"], b["owner_earnings"])
	}
	if b["booking_date"] != "2025-03-10" || b["refund_amount"] != nil {
		t.Errorf("booking = %v", b)
	}
}

func TestCreateBooking_BadInput(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"invalid json", "{"},
		{"missing fields", map[string]string{"space_id": "s1"}},
		{"unparseable time", map[string]string{"space_id": "s1", "start_time": "tomorrow", "end_time": "2025-03-10T10:30:00Z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bookings := &stubBookings{}
			w := doRequest(buildRouter(&stubSpaces{}, bookings), http.MethodPost, "/api/bookings", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
			if bookings.lastCreate.SpaceID != "" {
				t.Error("service called for bad input")
			}
		})
	}
}

func TestBookingErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{pricing.ErrInvalidInterval, http.StatusBadRequest},
		{booking.ErrBadRequest, http.StatusBadRequest},
		{booking.ErrNotFound, http.StatusNotFound},
		{booking.ErrInvalidState, http.StatusConflict},
		{booking.ErrTooLate, http.StatusConflict},
		{booking.ErrConflict, http.StatusConflict},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			r := buildRouter(&stubSpaces{}, &stubBookings{err: tt.err})
			if w := doRequest(r, http.MethodPost, "/api/bookings/b1/cancel", nil); w.Code != tt.want {
				t.Errorf("cancel: expected %d, got %d", tt.want, w.Code)
			}
			w := doRequest(r, http.MethodPost, "/api/bookings", map[string]string{
				"space_id": "s1", "start_time": "2025-03-10T10:00:00Z", "end_time": "2025-03-10T08:00:00Z",
			})
			if w.Code != tt.want {
				t.Errorf("create: expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestCancelBooking(t *testing.T) {
	refundAt := time.Date(2025, 3, 10, 5, 0, 0, 0, time.UTC)
	bookings := &stubBookings{cancel: &booking.CancellationResult{
		BookingID: "b1", RefundAmount: inr(6000), Status: booking.StatusCancelled,
		PaymentStatus: booking.PaymentRefunded, RefundStatus: booking.RefundProcessed,
		RefundDate: refundAt, HoursBeforeStart: 1.5,
	}}
	r := buildRouter(&stubSpaces{}, bookings)

	w := doRequest(r, http.MethodPost, "/api/bookings/b1/cancel", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if bookings.lastCancel.BookingID != "b1" || bookings.lastCancel.RenterID != "caller-1" || !bookings.lastCancel.Now.IsZero() {
		t.Errorf("command = %+v", bookings.lastCancel)
	}
	body := decode(t, w)
	if body["refund_amount"] != 60.0 || body["payment_status"] != "Refunded" || body["refund_status"] != "Processed" {
		t.Errorf("body = %v", body)
	}
}

func TestListBookings_PassesFilter(t *testing.T) {
	bookings := &stubBookings{list: []booking.RenterBooking{
		{Booking: booking.Booking{ID: "b1", TotalAmount: inr(12000), Status: booking.StatusActive}, SpaceTitle: "Bay"},
	}}
	r := buildRouter(&stubSpaces{}, bookings)

	w := doRequest(r, http.MethodGet, "/api/bookings?status=Active", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if bookings.lastRenter != "caller-1" || bookings.lastFilter != "Active" {
		t.Errorf("renter/filter = %s/%s", bookings.lastRenter, bookings.lastFilter)
	}
	list := decode(t, w)["bookings"].([]any)
	if len(list) != 1 || list[0].(map[string]any)["space_title"] != "Bay" {
		t.Errorf("bookings = %v", list)
	}
}

func TestCreateSpace(t *testing.T) {
	spaces := &stubSpaces{}
	r := buildRouter(spaces, &stubBookings{})

	w := doRequest(r, http.MethodPost, "/api/owner/spaces", map[string]any{
		"title": "Bay", "address": "12 TTK Road", "vehicle_type": "both",
		"total_slots": 2, "price_per_hour": 40.5, "latitude": 13.03, "longitude": 80.25,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	cmd := spaces.lastCreate
	if cmd.OwnerID != "caller-1" || cmd.PricePerHour != inr(4050) || cmd.VehicleType != space.VehicleBoth {
		t.Errorf("command = %+v", cmd)
	}
	if cmd.Position == nil || cmd.Position.Lng != 80.25 {
		t.Errorf("Position = %v", cmd.Position)
	}
}

func TestCreateSpace_Rejections(t *testing.T) {
	r := buildRouter(&stubSpaces{}, &stubBookings{})
	w := doRequest(r, http.MethodPost, "/api/owner/spaces", map[string]any{"title": "Bay", "latitude": 13.0})
	if w.Code != http.StatusBadRequest {
		t.Errorf("half coordinates: expected 400, got %d", w.Code)
	}

	r = buildRouter(&stubSpaces{err: space.ErrBadRequest}, &stubBookings{})
	w = doRequest(r, http.MethodPost, "/api/owner/spaces", map[string]any{"title": "Bay"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("validation error: expected 400, got %d", w.Code)
	}
}

func TestOwnerStatsAndDashboard(t *testing.T) {
	stats := booking.OwnerStats{
		TotalEarnings: inr(16800), TotalBookings: 2, PendingPayout: inr(8400),
		CompletedPayout: inr(8400), TodayEarnings: inr(8400),
	}
	bookings := &stubBookings{
		stats: stats,
		dashboard: &booking.Dashboard{
			Stats:   stats,
			Spaces:  []space.ParkingSpace{{ID: "s1", PricePerHour: inr(4000)}},
			Recent:  []booking.OwnerBooking{{Booking: booking.Booking{ID: "b1", TotalAmount: inr(12000)}, RenterName: "Arjun"}},
			Monthly: []booking.MonthlyEarning{{Month: "2025-03", Earnings: inr(16800)}},
		},
	}
	r := buildRouter(&stubSpaces{}, bookings)

	w := doRequest(r, http.MethodGet, "/api/owner/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", w.Code)
	}
	st := decode(t, w)["stats"].(map[string]any)
	if st["total_earnings"] != 168.0 || st["total_bookings"] != 2.0 || st["today_earnings"] != 84.0 {
		t.Errorf("stats = %v", st)
	}

	w = doRequest(r, http.MethodGet, "/api/owner/dashboard", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard: expected 200, got %d", w.Code)
	}
	body := decode(t, w)
	monthly := body["monthly"].([]any)
	if len(monthly) != 1 || monthly[0].(map[string]any)["earnings"] != 168.0 {
		t.Errorf("monthly = %v", monthly)
	}
	recent := body["bookings"].([]any)
	if recent[0].(map[string]any)["renter_name"] != "Arjun" {
		t.Errorf("bookings = %v", recent)
	}
	if body["ledger"] != nil {
		t.Errorf("ledger = %v, want null", body["ledger"])
	}
}
