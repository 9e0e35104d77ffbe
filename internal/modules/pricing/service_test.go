package pricing

import (
	"errors"
	"testing"
	"time"

	"spotledger/internal/config"
	"spotledger/internal/types"
)

func newTestService(t *testing.T, rate float64) *Service {
	t.Helper()
	s, err := NewService(config.PricingConfig{CommissionRate: rate, Currency: "INR"})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return s
}

func inr(major int64) types.Money {
	return types.Money{Amount: major * 100, Currency: "INR"}
}

func TestService_Price(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		rate           types.Money
		duration       time.Duration
		wantHours      int64
		wantTotal      int64
		wantCommission int64
		wantOwner      int64
	}{
		{
			name:     "2.5h at 40 bills 3h",
			rate:     inr(40),
			duration: 2*time.Hour + 30*time.Minute,
			// 3 * 40 = 120.00; 30% = 36.00; owner 84.00
			wantHours: 3, wantTotal: 12000, wantCommission: 3600, wantOwner: 8400,
		},
		{
			name:      "1 minute bills 1h",
			rate:      inr(40),
			duration:  time.Minute,
			wantHours: 1, wantTotal: 4000, wantCommission: 1200, wantOwner: 2800,
		},
		{
			name:      "60 minutes bills 1h",
			rate:      inr(40),
			duration:  60 * time.Minute,
			wantHours: 1, wantTotal: 4000, wantCommission: 1200, wantOwner: 2800,
		},
		{
			name:      "61 minutes bills 2h",
			rate:      inr(40),
			duration:  61 * time.Minute,
			wantHours: 2, wantTotal: 8000, wantCommission: 2400, wantOwner: 5600,
		},
		{
			name:     "fractional rate rounds commission to minor unit",
			rate:     types.Money{Amount: 3333, Currency: "INR"},
			duration: time.Hour,
			// 33.33 * 0.30 = 9.999 -> 10.00
			wantHours: 1, wantTotal: 3333, wantCommission: 1000, wantOwner: 2333,
		},
	}

	s := newTestService(t, 0.30)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := s.Price(tt.rate, base, base.Add(tt.duration))
			if err != nil {
				t.Fatalf("Price() error = %v", err)
			}
			if q.BilledHours != tt.wantHours {
				t.Errorf("BilledHours = %d, want %d", q.BilledHours, tt.wantHours)
			}
			if q.TotalAmount.Amount != tt.wantTotal {
				t.Errorf("TotalAmount = %d, want %d", q.TotalAmount.Amount, tt.wantTotal)
			}
			if q.PlatformCommission.Amount != tt.wantCommission {
				t.Errorf("PlatformCommission = %d, want %d", q.PlatformCommission.Amount, tt.wantCommission)
			}
			if q.OwnerEarnings.Amount != tt.wantOwner {
				t.Errorf("OwnerEarnings = %d, want %d", q.OwnerEarnings.Amount, tt.wantOwner)
			}
		})
	}
}

func TestService_Price_InvalidInterval(t *testing.T) {
	s := newTestService(t, 0.30)
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	if _, err := s.Price(inr(40), start, start); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("equal times: expected ErrInvalidInterval, got %v", err)
	}
	if _, err := s.Price(inr(40), start, start.Add(-time.Minute)); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("end before start: expected ErrInvalidInterval, got %v", err)
	}
}

// Commission plus owner earnings must equal the total for every rate and amount.
func TestService_Price_SplitIsExact(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rates := []float64{0, 0.01, 0.1, 0.15, 0.3, 1.0 / 3.0, 0.5, 0.77, 0.999, 1}
	for _, r := range rates {
		s := newTestService(t, r)
		for amount := int64(0); amount <= 5000; amount += 7 {
			for _, hours := range []time.Duration{1, 3, 7} {
				q, err := s.Price(types.Money{Amount: amount, Currency: "INR"}, start, start.Add(hours*time.Hour))
				if err != nil {
					t.Fatalf("Price() error = %v", err)
				}
				if q.PlatformCommission.Amount+q.OwnerEarnings.Amount != q.TotalAmount.Amount {
					t.Fatalf("rate %v amount %d: %d + %d != %d", r, amount,
						q.PlatformCommission.Amount, q.OwnerEarnings.Amount, q.TotalAmount.Amount)
				}
				if q.OwnerEarnings.Amount < 0 || q.PlatformCommission.Amount < 0 {
					t.Fatalf("rate %v amount %d: negative split %+v", r, amount, q)
				}
			}
		}
	}
}

// Half-unit commissions round up to the platform; the owner takes the remainder.
func TestService_Price_HalfUnitCommission(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		rate           float64
		hourly         int64
		hours          time.Duration
		wantCommission int64
		wantOwner      int64
	}{
		{0.15, 10, 3, 5, 25}, // 4.5 -> 5
		{0.15, 50, 1, 8, 42}, // 7.5 -> 8
		{0.7, 5, 1, 4, 1},    // 3.5 -> 4
		{0.3, 5, 1, 2, 3},    // 1.5 -> 2
	}
	for _, tt := range tests {
		s := newTestService(t, tt.rate)
		q, err := s.Price(types.Money{Amount: tt.hourly, Currency: "INR"}, start, start.Add(tt.hours*time.Hour))
		if err != nil {
			t.Fatalf("Price() error = %v", err)
		}
		if q.PlatformCommission.Amount != tt.wantCommission || q.OwnerEarnings.Amount != tt.wantOwner {
			t.Errorf("rate %v total %d: commission %d owner %d, want %d/%d", tt.rate, q.TotalAmount.Amount,
				q.PlatformCommission.Amount, q.OwnerEarnings.Amount, tt.wantCommission, tt.wantOwner)
		}
	}
}

func TestNewService_RejectsRateOutOfRange(t *testing.T) {
	for _, r := range []float64{-0.01, 1.01} {
		if _, err := NewService(config.PricingConfig{CommissionRate: r}); err == nil {
			t.Errorf("expected error for rate %v", r)
		}
	}
}

func TestBilledHours(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	cases := map[time.Duration]int64{
		time.Second:             1,
		59 * time.Minute:        1,
		time.Hour:               1,
		time.Hour + time.Second: 2,
		24 * time.Hour:          24,
	}
	for d, want := range cases {
		if got := BilledHours(start, start.Add(d)); got != want {
			t.Errorf("BilledHours(%v) = %d, want %d", d, got, want)
		}
	}
}
