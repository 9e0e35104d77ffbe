// README: Pricing service computes a booking's charge and the platform/owner split.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"spotledger/internal/config"
	"spotledger/internal/types"
)

var ErrInvalidInterval = errors.New("end time must be after start time")

type Service struct {
	cfg config.PricingConfig
}

func NewService(cfg config.PricingConfig) (*Service, error) {
	if cfg.CommissionRate < 0 || cfg.CommissionRate > 1 {
		return nil, fmt.Errorf("commission rate %v outside [0,1]", cfg.CommissionRate)
	}
	return &Service{cfg: cfg}, nil
}

func (s *Service) CommissionRate() float64 {
	return s.cfg.CommissionRate
}

// Price bills whole hours (partial hours round up) at rate and splits the total.
// The owner share is derived by subtraction so the two parts always sum to the total.
func (s *Service) Price(rate types.Money, start, end time.Time) (Quote, error) {
	if !end.After(start) {
		return Quote{}, ErrInvalidInterval
	}
	hours := BilledHours(start, end)
	total := rate.MulInt(hours)
	commission := total.MulRate(s.cfg.CommissionRate)
	return Quote{
		BilledHours:        hours,
		Rate:               rate,
		TotalAmount:        total,
		PlatformCommission: commission,
		OwnerEarnings:      total.Sub(commission),
	}, nil
}

// BilledHours returns ceil((end-start)/1h).
func BilledHours(start, end time.Time) int64 {
	d := end.Sub(start)
	hours := int64(d / time.Hour)
	if d%time.Hour != 0 {
		hours++
	}
	return hours
}
