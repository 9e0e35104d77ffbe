// README: Booking ledger service; creation with owner credit, tiered cancellation refunds, renter and owner views.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"spotledger/internal/clock"
	"spotledger/internal/modules/account"
	"spotledger/internal/modules/location"
	"spotledger/internal/modules/pricing"
	"spotledger/internal/modules/space"
	"spotledger/internal/types"
)

var (
	ErrNotFound     = errors.New("booking not found")
	ErrInvalidState = errors.New("invalid state transition")
	ErrTooLate      = errors.New("booking has already started")
	ErrConflict     = errors.New("booking state conflict")
	ErrBadRequest   = errors.New("bad request")
)

const (
	RoutingKeyCreated   = "booking.created"
	RoutingKeyCancelled = "booking.cancelled"

	// Cancellations more than this many hours ahead are refunded in full.
	fullRefundHours = 2
	recentLimit     = 50
	monthlyWindow   = 12
)

var tracer = otel.Tracer("spotledger/booking")

// Repository is the persistence the ledger needs. Every method called inside
// WithTx's callback must join the transaction carried by ctx.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetSpace(ctx context.Context, id types.ID) (*space.ParkingSpace, error)
	ReleaseSlot(ctx context.Context, spaceID types.ID) error
	CreditOwner(ctx context.Context, ownerID types.ID, earnings types.Money) error
	ReverseOwner(ctx context.Context, ownerID types.ID, earnings types.Money) error

	Insert(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id types.ID) (*Booking, error)
	GetForUpdate(ctx context.Context, id types.ID) (*Booking, error)
	MarkCancelled(ctx context.Context, b *Booking, fromVersion int) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error

	ListByRenter(ctx context.Context, renterID types.ID, status *Status) ([]RenterBooking, error)
	OwnerStats(ctx context.Context, ownerID types.ID, day time.Time) (OwnerStats, error)
	RecentForOwner(ctx context.Context, ownerID types.ID, limit int) ([]OwnerBooking, error)
	MonthlyEarnings(ctx context.Context, ownerID types.ID, since time.Time) ([]MonthlyEarning, error)
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, routingKey string, v any) error
}

type SpaceLister interface {
	ListForOwner(ctx context.Context, ownerID types.ID) ([]space.ParkingSpace, error)
}

type AccountReader interface {
	Get(ctx context.Context, id types.ID) (*account.Account, error)
}

type Deps struct {
	Repo      Repository
	Pricing   *pricing.Service
	Spaces    SpaceLister
	Accounts  AccountReader
	Publisher EventPublisher
	Clock     clock.Clock
	Log       *slog.Logger
	OpTimeout time.Duration
}

type Service struct {
	repo      Repository
	pricing   *pricing.Service
	spaces    SpaceLister
	accounts  AccountReader
	publisher EventPublisher
	clock     clock.Clock
	log       *slog.Logger
	timeout   time.Duration
	locks     *keyLocker
}

func NewService(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = clock.NewSystem()
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.OpTimeout <= 0 {
		d.OpTimeout = 5 * time.Second
	}
	return &Service{
		repo:      d.Repo,
		pricing:   d.Pricing,
		spaces:    d.Spaces,
		accounts:  d.Accounts,
		publisher: d.Publisher,
		clock:     d.Clock,
		log:       d.Log,
		timeout:   d.OpTimeout,
		locks:     newKeyLocker(),
	}
}

func (s *Service) CommissionRate() float64 {
	return s.pricing.CommissionRate()
}

// Create prices the interval, stores an Active/Paid booking and credits the
// owner's pending payout, all in one transaction. Slots are not decremented.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Confirmation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "booking.Create")
	defer span.End()
	span.SetAttributes(attribute.String("space.id", string(cmd.SpaceID)))

	if cmd.RenterID == "" || cmd.SpaceID == "" {
		return nil, ErrBadRequest
	}

	unlock := s.locks.Lock(spaceKey(string(cmd.SpaceID)))
	defer unlock()

	var (
		b     *Booking
		sp    *space.ParkingSpace
		quote pricing.Quote
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		var err error
		sp, err = s.repo.GetSpace(ctx, cmd.SpaceID)
		if errors.Is(err, space.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load space: %w", err)
		}

		quote, err = s.pricing.Price(sp.PricePerHour, cmd.Start, cmd.End)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		start := cmd.Start.UTC()
		b = &Booking{
			ID:                 types.NewID(),
			RenterID:           cmd.RenterID,
			SpaceID:            sp.ID,
			OwnerID:            sp.OwnerID,
			VehicleType:        sp.VehicleType,
			BookingDate:        time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
			StartTime:          start,
			EndTime:            cmd.End.UTC(),
			TotalAmount:        quote.TotalAmount,
			PlatformCommission: quote.PlatformCommission,
			OwnerEarnings:      quote.OwnerEarnings,
			PaymentStatus:      PaymentPaid,
			Status:             StatusActive,
			CreatedAt:          now,
		}
		if err := s.repo.Insert(ctx, b); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		if err := s.repo.AppendEvent(ctx, &Event{
			BookingID:  b.ID,
			FromStatus: StatusNone,
			ToStatus:   StatusActive,
			ActorType:  "renter",
			ActorID:    &cmd.RenterID,
			CreatedAt:  now,
		}); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		if err := s.repo.CreditOwner(ctx, sp.OwnerID, quote.OwnerEarnings); err != nil {
			return fmt.Errorf("credit owner: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, wrapLedgerError("create booking", err)
	}

	s.log.Info("booking created",
		slog.String("booking_id", string(b.ID)),
		slog.String("space_id", string(b.SpaceID)),
		slog.String("total", b.TotalAmount.String()),
	)
	s.publish(ctx, RoutingKeyCreated, CreatedEvent{
		BookingID:     string(b.ID),
		RenterID:      string(b.RenterID),
		SpaceID:       string(b.SpaceID),
		OwnerID:       string(b.OwnerID),
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		TotalAmount:   b.TotalAmount.Amount,
		OwnerEarnings: b.OwnerEarnings.Amount,
		Currency:      b.TotalAmount.Currency,
	})

	return &Confirmation{
		Booking:       b,
		Space:         sp,
		BilledHours:   quote.BilledHours,
		DirectionsURL: location.DirectionsURL(sp.Address),
	}, nil
}

// RefundFor returns the refund owed when cancelling hoursBeforeStart ahead of
// the start: everything above two hours, half (to the minor unit) otherwise.
func RefundFor(total types.Money, hoursBeforeStart float64) types.Money {
	if hoursBeforeStart > fullRefundHours {
		return total
	}
	return total.MulRate(0.5)
}

// Cancel refunds by tier, releases one slot (capped at the space's total) and
// reverses the owner credit, floored at zero. total_bookings is left alone.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*CancellationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "booking.Cancel")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", string(cmd.BookingID)))

	if cmd.BookingID == "" || cmd.RenterID == "" {
		return nil, ErrNotFound
	}
	now := cmd.Now
	if now.IsZero() {
		now = s.clock.Now()
	}

	unlockBooking := s.locks.Lock(bookingKey(string(cmd.BookingID)))
	defer unlockBooking()

	existing, err := s.repo.Get(ctx, cmd.BookingID)
	if err != nil {
		return nil, wrapLedgerError("load booking", err)
	}
	if existing.RenterID != cmd.RenterID {
		return nil, ErrNotFound
	}

	unlockSpace := s.locks.Lock(spaceKey(string(existing.SpaceID)))
	defer unlockSpace()

	var (
		b   *Booking
		res CancellationResult
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.repo.GetForUpdate(ctx, cmd.BookingID)
		if err != nil {
			return err
		}
		if b.RenterID != cmd.RenterID {
			return ErrNotFound
		}
		if !CanTransition(b.Status, StatusCancelled) {
			return ErrInvalidState
		}
		if !now.Before(b.StartTime) {
			return ErrTooLate
		}

		hoursBefore := b.StartTime.Sub(now).Hours()
		refund := RefundFor(b.TotalAmount, hoursBefore)
		refundStatus := RefundProcessed
		refundDate := now.UTC()

		fromVersion := b.StatusVersion
		b.Status = StatusCancelled
		b.RefundAmount = &refund
		b.RefundStatus = &refundStatus
		b.RefundDate = &refundDate
		if refund.IsPositive() {
			b.PaymentStatus = PaymentRefunded
		}

		ok, err := s.repo.MarkCancelled(ctx, b, fromVersion)
		if err != nil {
			return fmt.Errorf("mark cancelled: %w", err)
		}
		if !ok {
			return ErrConflict
		}
		b.StatusVersion = fromVersion + 1

		if err := s.repo.AppendEvent(ctx, &Event{
			BookingID:  b.ID,
			FromStatus: StatusActive,
			ToStatus:   StatusCancelled,
			ActorType:  "renter",
			ActorID:    &cmd.RenterID,
			CreatedAt:  refundDate,
		}); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
		if err := s.repo.ReleaseSlot(ctx, b.SpaceID); err != nil {
			return fmt.Errorf("release slot: %w", err)
		}
		if err := s.repo.ReverseOwner(ctx, b.OwnerID, b.OwnerEarnings); err != nil {
			return fmt.Errorf("reverse owner: %w", err)
		}

		res = CancellationResult{
			BookingID:        b.ID,
			RefundAmount:     refund,
			Status:           b.Status,
			PaymentStatus:    b.PaymentStatus,
			RefundStatus:     refundStatus,
			RefundDate:       refundDate,
			HoursBeforeStart: hoursBefore,
		}
		return nil
	})
	if err != nil {
		return nil, wrapLedgerError("cancel booking", err)
	}

	s.log.Info("booking cancelled",
		slog.String("booking_id", string(b.ID)),
		slog.String("refund", res.RefundAmount.String()),
	)
	s.publish(ctx, RoutingKeyCancelled, CancelledEvent{
		BookingID:    string(b.ID),
		RenterID:     string(b.RenterID),
		SpaceID:      string(b.SpaceID),
		OwnerID:      string(b.OwnerID),
		RefundAmount: res.RefundAmount.Amount,
		Currency:     res.RefundAmount.Currency,
		CancelledAt:  res.RefundDate,
	})
	return &res, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Booking, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, wrapLedgerError("get booking", err)
	}
	return b, nil
}

// ListForRenter filters by status when filter names one; anything else lists all.
func (s *Service) ListForRenter(ctx context.Context, renterID types.ID, filter string) ([]RenterBooking, error) {
	var status *Status
	if st, ok := ParseStatus(filter); ok {
		status = &st
	}
	out, err := s.repo.ListByRenter(ctx, renterID, status)
	if err != nil {
		return nil, fmt.Errorf("list bookings for renter %s: %w", renterID, err)
	}
	return out, nil
}

func (s *Service) OwnerStats(ctx context.Context, ownerID types.ID) (OwnerStats, error) {
	st, err := s.repo.OwnerStats(ctx, ownerID, s.clock.Now())
	if err != nil {
		return OwnerStats{}, fmt.Errorf("owner stats %s: %w", ownerID, err)
	}
	return st, nil
}

func (s *Service) OwnerDashboard(ctx context.Context, ownerID types.ID) (*Dashboard, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.clock.Now()
	d := &Dashboard{}

	var err error
	if d.Stats, err = s.repo.OwnerStats(ctx, ownerID, now); err != nil {
		return nil, fmt.Errorf("owner stats %s: %w", ownerID, err)
	}
	if d.Spaces, err = s.spaces.ListForOwner(ctx, ownerID); err != nil {
		return nil, err
	}
	if d.Recent, err = s.repo.RecentForOwner(ctx, ownerID, recentLimit); err != nil {
		return nil, fmt.Errorf("recent bookings %s: %w", ownerID, err)
	}
	since := time.Date(now.Year(), now.Month()-monthlyWindow+1, 1, 0, 0, 0, 0, time.UTC)
	if d.Monthly, err = s.repo.MonthlyEarnings(ctx, ownerID, since); err != nil {
		return nil, fmt.Errorf("monthly earnings %s: %w", ownerID, err)
	}
	if s.accounts != nil {
		acc, err := s.accounts.Get(ctx, ownerID)
		switch {
		case err == nil:
			d.Ledger = acc
		case !errors.Is(err, account.ErrNotFound):
			return nil, err
		}
	}
	return d, nil
}

func (s *Service) publish(ctx context.Context, key string, v any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishJSON(ctx, key, v); err != nil {
		s.log.Warn("publish booking event failed", slog.String("routing_key", key), slog.String("error", err.Error()))
	}
}

// wrapLedgerError passes domain errors through untouched and wraps storage failures.
func wrapLedgerError(op string, err error) error {
	for _, sentinel := range []error{
		ErrNotFound, ErrInvalidState, ErrTooLate, ErrConflict, ErrBadRequest, pricing.ErrInvalidInterval,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
