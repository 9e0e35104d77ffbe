// README: GeoRanker; attaches searcher distances to spaces and orders results by distance, price or availability.
package location

import (
	"math"
	"slices"

	"spotledger/internal/types"
)

type SortKey string

const (
	SortDistance     SortKey = "distance"
	SortPrice        SortKey = "price"
	SortAvailability SortKey = "availability"
)

// ParseSortKey maps request input to a SortKey; anything unknown ranks by distance.
func ParseSortKey(v string) SortKey {
	switch SortKey(v) {
	case SortPrice, SortAvailability:
		return SortKey(v)
	default:
		return SortDistance
	}
}

// Locatable is what the ranker needs from a listing.
type Locatable interface {
	Coordinates() (types.Point, bool)
	HourlyRate() int64
	FreeSlots() int
}

// Ranked pairs a listing with its distance from the searcher. DistanceKm is
// nil when either side has no coordinates.
type Ranked[T Locatable] struct {
	Item       T
	DistanceKm *float64
}

// AttachDistances wraps items in input order; a nil origin leaves every distance nil.
func AttachDistances[T Locatable](items []T, origin *types.Point) []Ranked[T] {
	out := make([]Ranked[T], len(items))
	for i, it := range items {
		out[i] = Ranked[T]{Item: it}
		if origin == nil {
			continue
		}
		if p, ok := it.Coordinates(); ok {
			d := DistanceKm(*origin, p)
			out[i].DistanceKm = &d
		}
	}
	return out
}

// Rank sorts in place. Sorting is stable so identical inputs give identical output.
func Rank[T Locatable](items []Ranked[T], key SortKey) {
	switch key {
	case SortPrice:
		slices.SortStableFunc(items, func(a, b Ranked[T]) int {
			return cmpInt64(a.Item.HourlyRate(), b.Item.HourlyRate())
		})
	case SortAvailability:
		slices.SortStableFunc(items, func(a, b Ranked[T]) int {
			return cmpInt64(int64(b.Item.FreeSlots()), int64(a.Item.FreeSlots()))
		})
	default:
		sortByDistance(items, distanceOrInf[T])
	}
}

// NearbyCount counts items with a known distance within radiusKm.
func NearbyCount[T Locatable](items []Ranked[T], radiusKm float64) int {
	n := 0
	for _, it := range items {
		if it.DistanceKm != nil && *it.DistanceKm <= radiusKm {
			n++
		}
	}
	return n
}

func distanceOrInf[T Locatable](r Ranked[T]) float64 {
	if r.DistanceKm == nil {
		return math.Inf(1)
	}
	return *r.DistanceKm
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
