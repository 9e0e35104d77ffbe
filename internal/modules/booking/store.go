// README: Booking store backed by PostgreSQL; also owns the ledger writes on parking_spaces and accounts.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"spotledger/internal/infra"
	"spotledger/internal/modules/space"
	"spotledger/internal/types"
)

type Store struct {
	db       *pgxpool.Pool
	currency string
}

func NewStore(db *pgxpool.Pool, currency string) *Store {
	return &Store{db: db, currency: currency}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return infra.WithTx(ctx, s.db, fn)
}

func (s *Store) money(amount int64) types.Money {
	return types.Money{Amount: amount, Currency: s.currency}
}

// GetSpace locks the space row for the rest of the transaction.
func (s *Store) GetSpace(ctx context.Context, id types.ID) (*space.ParkingSpace, error) {
	row := infra.Conn(ctx, s.db).QueryRow(ctx, `
		SELECT id, owner_id, title, address, vehicle_type, total_slots, available_slots, price_per_hour
		FROM parking_spaces
		WHERE id = $1
		FOR UPDATE`, string(id))

	var p space.ParkingSpace
	var price int64
	err := row.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Address, &p.VehicleType, &p.TotalSlots, &p.AvailableSlots, &price)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, space.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.PricePerHour = s.money(price)
	return &p, nil
}

func (s *Store) ReleaseSlot(ctx context.Context, spaceID types.ID) error {
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE parking_spaces
		SET available_slots = LEAST(total_slots, available_slots + 1)
		WHERE id = $1`, string(spaceID))
	return err
}

func (s *Store) CreditOwner(ctx context.Context, ownerID types.ID, earnings types.Money) error {
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE accounts SET
			pending_payout = pending_payout + $1,
			total_earnings = total_earnings + $1,
			total_bookings = total_bookings + 1
		WHERE id = $2`, earnings.Amount, string(ownerID))
	return err
}

func (s *Store) ReverseOwner(ctx context.Context, ownerID types.ID, earnings types.Money) error {
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE accounts SET
			pending_payout = GREATEST(0, pending_payout - $1),
			total_earnings = GREATEST(0, total_earnings - $1)
		WHERE id = $2`, earnings.Amount, string(ownerID))
	return err
}

func (s *Store) Insert(ctx context.Context, b *Booking) error {
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO bookings (
			id, renter_id, space_id, owner_id, vehicle_type, booking_date,
			start_time, end_time, total_amount, platform_commission, owner_earnings,
			payment_status, booking_status, status_version, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15
		)`,
		string(b.ID), string(b.RenterID), string(b.SpaceID), string(b.OwnerID), string(b.VehicleType), b.BookingDate,
		b.StartTime, b.EndTime, b.TotalAmount.Amount, b.PlatformCommission.Amount, b.OwnerEarnings.Amount,
		string(b.PaymentStatus), string(b.Status), b.StatusVersion, b.CreatedAt,
	)
	switch {
	case infra.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: renter account %s does not exist", ErrBadRequest, b.RenterID)
	case infra.IsUniqueViolation(err):
		return fmt.Errorf("%w: booking %s already exists", ErrConflict, b.ID)
	}
	return err
}

const selectBooking = `
	SELECT b.id, b.renter_id, b.space_id, b.owner_id, b.vehicle_type, b.booking_date,
	       b.start_time, b.end_time, b.total_amount, b.platform_commission, b.owner_earnings,
	       b.payment_status, b.booking_status, b.status_version,
	       b.refund_amount, b.refund_status, b.refund_date, b.created_at`

func (s *Store) Get(ctx context.Context, id types.ID) (*Booking, error) {
	return s.getOne(ctx, selectBooking+`
	FROM bookings b
	WHERE b.id = $1`, id)
}

func (s *Store) GetForUpdate(ctx context.Context, id types.ID) (*Booking, error) {
	return s.getOne(ctx, selectBooking+`
	FROM bookings b
	WHERE b.id = $1
	FOR UPDATE`, id)
}

func (s *Store) getOne(ctx context.Context, sqlText string, id types.ID) (*Booking, error) {
	row := infra.Conn(ctx, s.db).QueryRow(ctx, sqlText, string(id))
	var b Booking
	err := s.scanBooking(row, &b)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// MarkCancelled applies the cancellation fields when the row is still at fromVersion.
func (s *Store) MarkCancelled(ctx context.Context, b *Booking, fromVersion int) (bool, error) {
	var refund *int64
	if b.RefundAmount != nil {
		refund = &b.RefundAmount.Amount
	}
	var refundStatus *string
	if b.RefundStatus != nil {
		v := string(*b.RefundStatus)
		refundStatus = &v
	}
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE bookings SET
			booking_status = $1,
			payment_status = $2,
			refund_amount = $3,
			refund_status = $4,
			refund_date = $5,
			status_version = status_version + 1
		WHERE id = $6 AND booking_status = $7 AND status_version = $8`,
		string(b.Status), string(b.PaymentStatus), refund, refundStatus, b.RefundDate,
		string(b.ID), string(StatusActive), fromVersion,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	var actor *string
	if e.ActorID != nil {
		v := string(*e.ActorID)
		actor = &v
	}
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO booking_state_events (booking_id, from_status, to_status, actor_type, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.BookingID), string(e.FromStatus), string(e.ToStatus), e.ActorType, actor, e.CreatedAt,
	)
	return err
}

func (s *Store) ListByRenter(ctx context.Context, renterID types.ID, status *Status) ([]RenterBooking, error) {
	var st *string
	if status != nil {
		v := string(*status)
		st = &v
	}
	rows, err := infra.Conn(ctx, s.db).Query(ctx, selectBooking+`,
	       ps.title, ps.address
	FROM bookings b
	JOIN parking_spaces ps ON ps.id = b.space_id
	WHERE b.renter_id = $1 AND ($2::text IS NULL OR b.booking_status = $2)
	ORDER BY b.created_at DESC, b.id`, string(renterID), st)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RenterBooking
	for rows.Next() {
		var rb RenterBooking
		if err := s.scanBooking(rows, &rb.Booking, &rb.SpaceTitle, &rb.SpaceAddress); err != nil {
			return nil, err
		}
		out = append(out, rb)
	}
	return out, rows.Err()
}

func (s *Store) RecentForOwner(ctx context.Context, ownerID types.ID, limit int) ([]OwnerBooking, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, selectBooking+`,
	       ps.title, COALESCE(a.name, '')
	FROM bookings b
	JOIN parking_spaces ps ON ps.id = b.space_id
	LEFT JOIN accounts a ON a.id = b.renter_id
	WHERE b.owner_id = $1
	ORDER BY b.created_at DESC, b.id
	LIMIT $2`, string(ownerID), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OwnerBooking
	for rows.Next() {
		var ob OwnerBooking
		if err := s.scanBooking(rows, &ob.Booking, &ob.SpaceTitle, &ob.RenterName); err != nil {
			return nil, err
		}
		out = append(out, ob)
	}
	return out, rows.Err()
}

// OwnerStats aggregates non-cancelled bookings; "today" is day's UTC date.
func (s *Store) OwnerStats(ctx context.Context, ownerID types.ID, day time.Time) (OwnerStats, error) {
	d := day.UTC()
	dayStart := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	row := infra.Conn(ctx, s.db).QueryRow(ctx, `
		SELECT
			COALESCE(SUM(owner_earnings), 0),
			COUNT(*),
			COALESCE(SUM(owner_earnings) FILTER (WHERE booking_status = 'Active'), 0),
			COALESCE(SUM(owner_earnings) FILTER (WHERE booking_status = 'Completed'), 0),
			COALESCE(SUM(owner_earnings) FILTER (WHERE created_at >= $2 AND created_at < $3), 0)
		FROM bookings
		WHERE owner_id = $1 AND booking_status <> 'Cancelled'`,
		string(ownerID), dayStart, dayStart.AddDate(0, 0, 1),
	)
	var total, pending, completed, today int64
	var st OwnerStats
	if err := row.Scan(&total, &st.TotalBookings, &pending, &completed, &today); err != nil {
		return OwnerStats{}, err
	}
	st.TotalEarnings = s.money(total)
	st.PendingPayout = s.money(pending)
	st.CompletedPayout = s.money(completed)
	st.TodayEarnings = s.money(today)
	return st, nil
}

func (s *Store) MonthlyEarnings(ctx context.Context, ownerID types.ID, since time.Time) ([]MonthlyEarning, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM') AS month, SUM(owner_earnings)
		FROM bookings
		WHERE owner_id = $1 AND booking_status <> 'Cancelled' AND created_at >= $2
		GROUP BY month
		ORDER BY month ASC`, string(ownerID), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MonthlyEarning
	for rows.Next() {
		var m MonthlyEarning
		var amount int64
		if err := rows.Scan(&m.Month, &amount); err != nil {
			return nil, err
		}
		m.Earnings = s.money(amount)
		out = append(out, m)
	}
	return out, rows.Err()
}

// scanBooking reads the selectBooking columns followed by extra.
func (s *Store) scanBooking(row pgx.Row, b *Booking, extra ...any) error {
	var total, commission, earnings int64
	var refundAmount sql.NullInt64
	var refundStatus sql.NullString
	var refundDate sql.NullTime

	dest := []any{
		&b.ID, &b.RenterID, &b.SpaceID, &b.OwnerID, &b.VehicleType, &b.BookingDate,
		&b.StartTime, &b.EndTime, &total, &commission, &earnings,
		&b.PaymentStatus, &b.Status, &b.StatusVersion,
		&refundAmount, &refundStatus, &refundDate, &b.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}

	b.TotalAmount = s.money(total)
	b.PlatformCommission = s.money(commission)
	b.OwnerEarnings = s.money(earnings)
	if refundAmount.Valid {
		m := s.money(refundAmount.Int64)
		b.RefundAmount = &m
	}
	if refundStatus.Valid {
		rs := RefundStatus(refundStatus.String)
		b.RefundStatus = &rs
	}
	if refundDate.Valid {
		t := refundDate.Time
		b.RefundDate = &t
	}
	return nil
}
