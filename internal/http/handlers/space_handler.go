// README: Space handlers for renter search and space detail.
package handlers

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"spotledger/internal/modules/location"
	"spotledger/internal/modules/space"
	"spotledger/internal/types"
)

type SpaceService interface {
	Search(ctx context.Context, f space.Filter) (space.SearchResult, error)
	Get(ctx context.Context, id types.ID) (*space.ParkingSpace, error)
	ListForOwner(ctx context.Context, ownerID types.ID) ([]space.ParkingSpace, error)
	Create(ctx context.Context, cmd space.CreateCommand) (*space.ParkingSpace, error)
}

type SpaceHandler struct {
	spaces         SpaceService
	commissionRate float64
}

func NewSpaceHandler(svc SpaceService, commissionRate float64) *SpaceHandler {
	return &SpaceHandler{spaces: svc, commissionRate: commissionRate}
}

// Search handles GET /api/spaces/search. Coordinates count only when both
// lat and lng parse to finite numbers; otherwise the location text filter applies.
func (h *SpaceHandler) Search(c *gin.Context) {
	f := space.Filter{
		LocationText: c.Query("location"),
		VehicleType:  space.VehicleType(c.Query("vehicle_type")),
		Sort:         location.ParseSortKey(c.Query("sort")),
	}

	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
	if origin := (types.Point{Lat: lat, Lng: lng}); latErr == nil && lngErr == nil && origin.Finite() {
		f.Origin = &origin
	}

	if v := c.Query("within_km"); v != "" {
		km, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(km) || math.IsInf(km, 0) {
			writeError(c, http.StatusBadRequest, "within_km must be a finite number")
			return
		}
		f.WithinKm = &km
	}

	res, err := h.spaces.Search(c.Request.Context(), f)
	if err != nil {
		writeSpaceError(c, err)
		return
	}
	body := gin.H{
		"spaces":            toRankedDTOs(res.Spaces),
		"has_user_location": f.Origin != nil,
		"sort":              f.Sort,
	}
	if res.NearbyCount != nil {
		body["nearby_count"] = *res.NearbyCount
	}
	writeJSON(c, http.StatusOK, body)
}

func (h *SpaceHandler) Get(c *gin.Context) {
	p, err := h.spaces.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeSpaceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"space":           toSpaceDTO(*p),
		"commission_rate": h.commissionRate,
	})
}
