package booking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"spotledger/internal/modules/account"
	"spotledger/internal/modules/space"
	"spotledger/internal/types"
)

type txMarker struct{}

// fakeRepo is an in-memory Repository. WithTx holds the repo mutex for the
// whole callback and restores a snapshot when the callback fails.
type fakeRepo struct {
	mu       sync.Mutex
	spaces   map[types.ID]*space.ParkingSpace
	accounts map[types.ID]*account.Account
	bookings map[types.ID]*Booking
	events   []Event
	names    map[types.ID]string

	// failOn names a method that returns errStorage.
	failOn string
}

var errStorage = errors.New("storage unavailable")

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		spaces:   map[types.ID]*space.ParkingSpace{},
		accounts: map[types.ID]*account.Account{},
		bookings: map[types.ID]*Booking{},
		names:    map[types.ID]string{},
	}
}

func (f *fakeRepo) lock(ctx context.Context) func() {
	if ctx.Value(txMarker{}) != nil {
		return func() {}
	}
	f.mu.Lock()
	return f.mu.Unlock
}

func (f *fakeRepo) fail(method string) error {
	if f.failOn == method {
		return errStorage
	}
	return nil
}

type snapshot struct {
	spaces   map[types.ID]space.ParkingSpace
	accounts map[types.ID]account.Account
	bookings map[types.ID]Booking
	events   int
}

func (f *fakeRepo) snapshot() snapshot {
	s := snapshot{
		spaces:   map[types.ID]space.ParkingSpace{},
		accounts: map[types.ID]account.Account{},
		bookings: map[types.ID]Booking{},
		events:   len(f.events),
	}
	for k, v := range f.spaces {
		s.spaces[k] = *v
	}
	for k, v := range f.accounts {
		s.accounts[k] = *v
	}
	for k, v := range f.bookings {
		s.bookings[k] = *v
	}
	return s
}

func (f *fakeRepo) restore(s snapshot) {
	f.spaces = map[types.ID]*space.ParkingSpace{}
	for k, v := range s.spaces {
		f.spaces[k] = &v
	}
	f.accounts = map[types.ID]*account.Account{}
	for k, v := range s.accounts {
		f.accounts[k] = &v
	}
	f.bookings = map[types.ID]*Booking{}
	for k, v := range s.bookings {
		f.bookings[k] = &v
	}
	f.events = f.events[:s.events]
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := f.snapshot()
	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

func (f *fakeRepo) GetSpace(ctx context.Context, id types.ID) (*space.ParkingSpace, error) {
	defer f.lock(ctx)()
	if err := f.fail("GetSpace"); err != nil {
		return nil, err
	}
	p, ok := f.spaces[id]
	if !ok {
		return nil, space.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) ReleaseSlot(ctx context.Context, spaceID types.ID) error {
	defer f.lock(ctx)()
	if err := f.fail("ReleaseSlot"); err != nil {
		return err
	}
	if p, ok := f.spaces[spaceID]; ok {
		p.AvailableSlots = min(p.TotalSlots, p.AvailableSlots+1)
	}
	return nil
}

func (f *fakeRepo) CreditOwner(ctx context.Context, ownerID types.ID, earnings types.Money) error {
	defer f.lock(ctx)()
	if err := f.fail("CreditOwner"); err != nil {
		return err
	}
	if a, ok := f.accounts[ownerID]; ok {
		a.PendingPayout = a.PendingPayout.Add(earnings)
		a.TotalEarnings = a.TotalEarnings.Add(earnings)
		a.TotalBookings++
	}
	return nil
}

func (f *fakeRepo) ReverseOwner(ctx context.Context, ownerID types.ID, earnings types.Money) error {
	defer f.lock(ctx)()
	if err := f.fail("ReverseOwner"); err != nil {
		return err
	}
	if a, ok := f.accounts[ownerID]; ok {
		a.PendingPayout = a.PendingPayout.Sub(earnings).FloorZero()
		a.TotalEarnings = a.TotalEarnings.Sub(earnings).FloorZero()
	}
	return nil
}

func (f *fakeRepo) Insert(ctx context.Context, b *Booking) error {
	defer f.lock(ctx)()
	if err := f.fail("Insert"); err != nil {
		return err
	}
	cp := *b
	f.bookings[b.ID] = &cp
	return nil
}

func (f *fakeRepo) get(id types.ID) (*Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeRepo) Get(ctx context.Context, id types.ID) (*Booking, error) {
	defer f.lock(ctx)()
	return f.get(id)
}

func (f *fakeRepo) GetForUpdate(ctx context.Context, id types.ID) (*Booking, error) {
	defer f.lock(ctx)()
	return f.get(id)
}

func (f *fakeRepo) MarkCancelled(ctx context.Context, b *Booking, fromVersion int) (bool, error) {
	defer f.lock(ctx)()
	if err := f.fail("MarkCancelled"); err != nil {
		return false, err
	}
	cur, ok := f.bookings[b.ID]
	if !ok || cur.Status != StatusActive || cur.StatusVersion != fromVersion {
		return false, nil
	}
	cp := *b
	cp.StatusVersion = fromVersion + 1
	f.bookings[b.ID] = &cp
	return true, nil
}

func (f *fakeRepo) AppendEvent(ctx context.Context, e *Event) error {
	defer f.lock(ctx)()
	if err := f.fail("AppendEvent"); err != nil {
		return err
	}
	f.events = append(f.events, *e)
	return nil
}

func (f *fakeRepo) sortedBookings(keep func(*Booking) bool) []Booking {
	var out []Booking
	for _, b := range f.bookings {
		if keep(b) {
			out = append(out, *b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (f *fakeRepo) ListByRenter(ctx context.Context, renterID types.ID, status *Status) ([]RenterBooking, error) {
	defer f.lock(ctx)()
	if err := f.fail("ListByRenter"); err != nil {
		return nil, err
	}
	var out []RenterBooking
	for _, b := range f.sortedBookings(func(b *Booking) bool {
		return b.RenterID == renterID && (status == nil || b.Status == *status)
	}) {
		sp := f.spaces[b.SpaceID]
		out = append(out, RenterBooking{Booking: b, SpaceTitle: sp.Title, SpaceAddress: sp.Address})
	}
	return out, nil
}

func (f *fakeRepo) OwnerStats(ctx context.Context, ownerID types.ID, day time.Time) (OwnerStats, error) {
	defer f.lock(ctx)()
	if err := f.fail("OwnerStats"); err != nil {
		return OwnerStats{}, err
	}
	zero := types.Money{Currency: "INR"}
	st := OwnerStats{TotalEarnings: zero, PendingPayout: zero, CompletedPayout: zero, TodayEarnings: zero}
	y, m, d := day.UTC().Date()
	for _, b := range f.bookings {
		if b.OwnerID != ownerID || b.Status == StatusCancelled {
			continue
		}
		st.TotalEarnings = st.TotalEarnings.Add(b.OwnerEarnings)
		st.TotalBookings++
		switch b.Status {
		case StatusActive:
			st.PendingPayout = st.PendingPayout.Add(b.OwnerEarnings)
		case StatusCompleted:
			st.CompletedPayout = st.CompletedPayout.Add(b.OwnerEarnings)
		}
		if by, bm, bd := b.CreatedAt.UTC().Date(); by == y && bm == m && bd == d {
			st.TodayEarnings = st.TodayEarnings.Add(b.OwnerEarnings)
		}
	}
	return st, nil
}

func (f *fakeRepo) RecentForOwner(ctx context.Context, ownerID types.ID, limit int) ([]OwnerBooking, error) {
	defer f.lock(ctx)()
	var out []OwnerBooking
	for _, b := range f.sortedBookings(func(b *Booking) bool { return b.OwnerID == ownerID }) {
		if len(out) == limit {
			break
		}
		out = append(out, OwnerBooking{Booking: b, SpaceTitle: f.spaces[b.SpaceID].Title, RenterName: f.names[b.RenterID]})
	}
	return out, nil
}

func (f *fakeRepo) MonthlyEarnings(ctx context.Context, ownerID types.ID, since time.Time) ([]MonthlyEarning, error) {
	defer f.lock(ctx)()
	sums := map[string]int64{}
	for _, b := range f.bookings {
		if b.OwnerID != ownerID || b.Status == StatusCancelled || b.CreatedAt.Before(since) {
			continue
		}
		sums[b.CreatedAt.UTC().Format("2006-01")] += b.OwnerEarnings.Amount
	}
	var out []MonthlyEarning
	for month, amount := range sums {
		out = append(out, MonthlyEarning{Month: month, Earnings: types.Money{Amount: amount, Currency: "INR"}})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (f *fakeRepo) accountOf(id types.ID) account.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.accounts[id]
}

func (f *fakeRepo) spaceOf(id types.ID) space.ParkingSpace {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.spaces[id]
}

func (f *fakeRepo) bookingOf(id types.ID) Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.bookings[id]
}

type publishedEvent struct {
	key string
	v   any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) PublishJSON(_ context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{key: key, v: v})
	return nil
}

type fakeSpaces struct {
	repo *fakeRepo
}

func (s fakeSpaces) ListForOwner(_ context.Context, ownerID types.ID) ([]space.ParkingSpace, error) {
	s.repo.mu.Lock()
	defer s.repo.mu.Unlock()
	var out []space.ParkingSpace
	for _, p := range s.repo.spaces {
		if p.OwnerID == ownerID {
			out = append(out, *p)
		}
	}
	return out, nil
}

type fakeAccounts struct {
	repo *fakeRepo
}

func (a fakeAccounts) Get(_ context.Context, id types.ID) (*account.Account, error) {
	a.repo.mu.Lock()
	defer a.repo.mu.Unlock()
	acc, ok := a.repo.accounts[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}
