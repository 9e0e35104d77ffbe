// README: Space catalog service; search filtering, ranking hand-off, owner listings and space creation.
package space

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"spotledger/internal/clock"
	"spotledger/internal/modules/location"
	"spotledger/internal/types"
)

var (
	ErrNotFound   = errors.New("parking space not found")
	ErrBadRequest = errors.New("bad request")
)

var tracer = otel.Tracer("spotledger/space")

type Repository interface {
	Search(ctx context.Context, q Query) ([]ParkingSpace, error)
	ListByOwner(ctx context.Context, ownerID types.ID) ([]ParkingSpace, error)
	ListPositioned(ctx context.Context) ([]ParkingSpace, error)
	Get(ctx context.Context, id types.ID) (*ParkingSpace, error)
	Create(ctx context.Context, p *ParkingSpace) error
}

// GeoIndex is the optional radius index; *location.GeoIndex satisfies it.
type GeoIndex interface {
	Add(ctx context.Context, id types.ID, p types.Point) error
	Within(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error)
}

type Deps struct {
	Repo     Repository
	Geo      GeoIndex
	Geocoder location.Geocoder
	Clock    clock.Clock
	Log      *slog.Logger
	// NearbyRadiusKm bounds the nearby count reported with coordinate searches.
	NearbyRadiusKm float64
	Currency       string
}

type Service struct {
	repo     Repository
	geo      GeoIndex
	geocoder location.Geocoder
	clock    clock.Clock
	log      *slog.Logger
	radiusKm float64
	currency string
}

func NewService(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return &Service{
		repo:     d.Repo,
		geo:      d.Geo,
		geocoder: d.Geocoder,
		clock:    d.Clock,
		log:      d.Log,
		radiusKm: d.NearbyRadiusKm,
		currency: d.Currency,
	}
}

type Filter struct {
	LocationText string
	VehicleType  VehicleType
	// Origin is the searcher's position; when set the text filter is ignored.
	Origin   *types.Point
	WithinKm *float64
	Sort     location.SortKey
}

type SearchResult struct {
	Spaces []location.Ranked[ParkingSpace]
	// NearbyCount is only reported for searches with an origin.
	NearbyCount *int
}

func (s *Service) Search(ctx context.Context, f Filter) (SearchResult, error) {
	// A non-finite origin is treated as no origin at all.
	if f.Origin != nil && !f.Origin.Finite() {
		f.Origin = nil
	}

	ctx, span := tracer.Start(ctx, "space.Search")
	defer span.End()
	span.SetAttributes(
		attribute.Bool("search.has_origin", f.Origin != nil),
		attribute.String("search.sort", string(f.Sort)),
	)

	if f.WithinKm != nil && !(*f.WithinKm > 0 && !math.IsInf(*f.WithinKm, 0)) {
		return SearchResult{}, fmt.Errorf("%w: within_km must be a positive finite number", ErrBadRequest)
	}

	// Unknown vehicle types are passed through; they still match 'both' spaces.
	q := Query{VehicleType: f.VehicleType}
	if f.Origin == nil {
		q.LocationText = f.LocationText
	}
	spaces, err := s.repo.Search(ctx, q)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search spaces: %w", err)
	}

	ranked := location.AttachDistances(spaces, f.Origin)
	if f.Origin != nil && f.WithinKm != nil {
		ranked = s.withinRadius(ctx, ranked, *f.Origin, *f.WithinKm)
	}
	location.Rank(ranked, f.Sort)

	res := SearchResult{Spaces: ranked}
	if f.Origin != nil {
		n := location.NearbyCount(ranked, s.radiusKm)
		res.NearbyCount = &n
	}
	span.SetAttributes(attribute.Int("search.results", len(ranked)))
	return res, nil
}

// withinRadius keeps spaces inside radiusKm, asking the GEO index first and
// falling back to the haversine distances already attached.
func (s *Service) withinRadius(ctx context.Context, ranked []location.Ranked[ParkingSpace], origin types.Point, radiusKm float64) []location.Ranked[ParkingSpace] {
	if s.geo != nil {
		ids, err := s.geo.Within(ctx, origin, radiusKm)
		if err == nil {
			keep := make(map[types.ID]struct{}, len(ids))
			for _, id := range ids {
				keep[id] = struct{}{}
			}
			out := ranked[:0]
			for _, r := range ranked {
				if _, ok := keep[r.Item.ID]; ok {
					out = append(out, r)
				}
			}
			return out
		}
		s.log.Warn("geo index lookup failed, using haversine", slog.String("error", err.Error()))
	}

	out := ranked[:0]
	for _, r := range ranked {
		if r.DistanceKm != nil && *r.DistanceKm <= radiusKm {
			out = append(out, r)
		}
	}
	return out
}

func (s *Service) ListForOwner(ctx context.Context, ownerID types.ID) ([]ParkingSpace, error) {
	spaces, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list spaces for owner %s: %w", ownerID, err)
	}
	return spaces, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*ParkingSpace, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get space %s: %w", id, err)
	}
	return p, nil
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*ParkingSpace, error) {
	ctx, span := tracer.Start(ctx, "space.Create")
	defer span.End()

	if err := validateCreate(cmd); err != nil {
		return nil, err
	}

	available := cmd.TotalSlots
	if cmd.AvailableSlots != nil {
		available = *cmd.AvailableSlots
	}
	price := cmd.PricePerHour
	if price.Currency == "" {
		price.Currency = s.currency
	}

	p := &ParkingSpace{
		ID:                  types.NewID(),
		OwnerID:             cmd.OwnerID,
		Title:               strings.TrimSpace(cmd.Title),
		Address:             strings.TrimSpace(cmd.Address),
		LocationDescription: strings.TrimSpace(cmd.LocationDescription),
		VehicleType:         cmd.VehicleType,
		TotalSlots:          cmd.TotalSlots,
		AvailableSlots:      available,
		PricePerHour:        price,
		Position:            cmd.Position,
		AvailableFrom:       cmd.AvailableFrom,
		AvailableTo:         cmd.AvailableTo,
		IsVerified:          true,
		CreatedAt:           s.clock.Now(),
	}

	if p.Position == nil && s.geocoder != nil {
		pt, err := s.geocoder.Geocode(ctx, p.Address)
		if err != nil {
			s.log.Warn("geocode failed, storing space without coordinates",
				slog.String("address", p.Address), slog.String("error", err.Error()))
		} else {
			p.Position = &pt
		}
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create space: %w", err)
	}

	if p.Position != nil && s.geo != nil {
		if err := s.geo.Add(ctx, p.ID, *p.Position); err != nil {
			s.log.Warn("geo index add failed", slog.String("space_id", string(p.ID)), slog.String("error", err.Error()))
		}
	}
	s.log.Info("space created", slog.String("space_id", string(p.ID)), slog.String("owner_id", string(p.OwnerID)))
	return p, nil
}

// RebuildGeoIndex loads every positioned space into the GEO index.
func (s *Service) RebuildGeoIndex(ctx context.Context) (int, error) {
	if s.geo == nil {
		return 0, nil
	}
	spaces, err := s.repo.ListPositioned(ctx)
	if err != nil {
		return 0, fmt.Errorf("list positioned spaces: %w", err)
	}
	for _, p := range spaces {
		if err := s.geo.Add(ctx, p.ID, *p.Position); err != nil {
			return 0, fmt.Errorf("index space %s: %w", p.ID, err)
		}
	}
	return len(spaces), nil
}

func validateCreate(cmd CreateCommand) error {
	switch {
	case cmd.OwnerID == "":
		return fmt.Errorf("%w: owner is required", ErrBadRequest)
	case strings.TrimSpace(cmd.Title) == "":
		return fmt.Errorf("%w: title is required", ErrBadRequest)
	case strings.TrimSpace(cmd.Address) == "":
		return fmt.Errorf("%w: address is required", ErrBadRequest)
	case !cmd.VehicleType.Valid():
		return fmt.Errorf("%w: unknown vehicle type %q", ErrBadRequest, cmd.VehicleType)
	case cmd.TotalSlots <= 0:
		return fmt.Errorf("%w: total_slots must be positive", ErrBadRequest)
	case cmd.AvailableSlots != nil && (*cmd.AvailableSlots < 0 || *cmd.AvailableSlots > cmd.TotalSlots):
		return fmt.Errorf("%w: available_slots must be within [0, total_slots]", ErrBadRequest)
	case !cmd.PricePerHour.IsPositive():
		return fmt.Errorf("%w: price_per_hour must be positive", ErrBadRequest)
	}
	if cmd.Position != nil {
		if cmd.Position.Lat < -90 || cmd.Position.Lat > 90 || cmd.Position.Lng < -180 || cmd.Position.Lng > 180 {
			return fmt.Errorf("%w: coordinates out of range", ErrBadRequest)
		}
	}
	return nil
}
