// README: Pricing quote for a booking interval.
package pricing

import "spotledger/internal/types"

// Quote is the priced, commission-split charge for one booking.
// PlatformCommission + OwnerEarnings == TotalAmount always holds.
type Quote struct {
	BilledHours        int64
	Rate               types.Money
	TotalAmount        types.Money
	PlatformCommission types.Money
	OwnerEarnings      types.Money
}
