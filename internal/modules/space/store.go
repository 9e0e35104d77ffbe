// README: Parking space store backed by PostgreSQL.
package space

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"spotledger/internal/infra"
	"spotledger/internal/types"
)

type Store struct {
	db       *pgxpool.Pool
	currency string
}

func NewStore(db *pgxpool.Pool, currency string) *Store {
	return &Store{db: db, currency: currency}
}

const selectSpace = `
	SELECT ps.id, ps.owner_id, COALESCE(a.name, ''), ps.title, ps.address, ps.location_description,
	       ps.vehicle_type, ps.total_slots, ps.available_slots, ps.price_per_hour,
	       ps.latitude, ps.longitude, ps.available_from, ps.available_to,
	       ps.rating, ps.is_verified, ps.created_at
	FROM parking_spaces ps
	LEFT JOIN accounts a ON a.id = ps.owner_id`

// Search matches text with strpos so that % and _ in user input stay literal.
func (s *Store) Search(ctx context.Context, q Query) ([]ParkingSpace, error) {
	var (
		where []string
		args  []any
	)
	if q.LocationText != "" {
		args = append(args, q.LocationText)
		where = append(where, fmt.Sprintf("(strpos(ps.address, $%d) > 0 OR strpos(ps.location_description, $%d) > 0)", len(args), len(args)))
	}
	if q.VehicleType != "" {
		args = append(args, string(q.VehicleType))
		where = append(where, fmt.Sprintf("(ps.vehicle_type = $%d OR ps.vehicle_type = 'both')", len(args)))
	}

	sqlText := selectSpace
	if len(where) > 0 {
		sqlText += "\n\tWHERE " + strings.Join(where, " AND ")
	}
	sqlText += "\n\tORDER BY ps.created_at DESC, ps.id"

	rows, err := infra.Conn(ctx, s.db).Query(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	return s.collect(rows)
}

func (s *Store) ListByOwner(ctx context.Context, ownerID types.ID) ([]ParkingSpace, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, selectSpace+`
	WHERE ps.owner_id = $1
	ORDER BY ps.created_at DESC, ps.id`, string(ownerID))
	if err != nil {
		return nil, err
	}
	return s.collect(rows)
}

// ListPositioned returns every space that has coordinates; used to rebuild the GEO index.
func (s *Store) ListPositioned(ctx context.Context) ([]ParkingSpace, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, selectSpace+`
	WHERE ps.latitude IS NOT NULL AND ps.longitude IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	return s.collect(rows)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*ParkingSpace, error) {
	row := infra.Conn(ctx, s.db).QueryRow(ctx, selectSpace+`
	WHERE ps.id = $1`, string(id))
	p, err := s.scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) Create(ctx context.Context, p *ParkingSpace) error {
	var lat, lng sql.NullFloat64
	if p.Position != nil {
		lat = sql.NullFloat64{Float64: p.Position.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: p.Position.Lng, Valid: true}
	}
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO parking_spaces (
			id, owner_id, title, address, location_description,
			vehicle_type, total_slots, available_slots, price_per_hour,
			latitude, longitude, available_from, available_to,
			rating, is_verified, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16
		)`,
		string(p.ID), string(p.OwnerID), p.Title, p.Address, p.LocationDescription,
		string(p.VehicleType), p.TotalSlots, p.AvailableSlots, p.PricePerHour.Amount,
		lat, lng, p.AvailableFrom, p.AvailableTo,
		p.Rating, p.IsVerified, p.CreatedAt,
	)
	if infra.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: owner account %s does not exist", ErrBadRequest, p.OwnerID)
	}
	return err
}

func (s *Store) collect(rows pgx.Rows) ([]ParkingSpace, error) {
	defer rows.Close()
	var out []ParkingSpace
	for rows.Next() {
		p, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) scan(row pgx.Row) (*ParkingSpace, error) {
	var p ParkingSpace
	var price int64
	var lat, lng, rating sql.NullFloat64
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.OwnerName, &p.Title, &p.Address, &p.LocationDescription,
		&p.VehicleType, &p.TotalSlots, &p.AvailableSlots, &price,
		&lat, &lng, &p.AvailableFrom, &p.AvailableTo,
		&rating, &p.IsVerified, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.PricePerHour = types.Money{Amount: price, Currency: s.currency}
	if lat.Valid && lng.Valid {
		p.Position = &types.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	if rating.Valid {
		r := rating.Float64
		p.Rating = &r
	}
	return &p, nil
}
