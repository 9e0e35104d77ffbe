// README: Account model; owner ledger fields kept alongside the identity mirrored from the auth token.
package account

import (
	"time"

	"spotledger/internal/types"
)

type Role string

const (
	// RoleOwner lists spaces and receives earnings.
	RoleOwner Role = "client"
	// RoleRenter searches and books spaces.
	RoleRenter Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleRenter
}

type Account struct {
	ID              types.ID
	Name            string
	Role            Role
	TotalEarnings   types.Money
	TotalBookings   int
	PendingPayout   types.Money
	CompletedPayout types.Money
	CreatedAt       time.Time
}

type EnsureCommand struct {
	ID   types.ID
	Name string
	Role Role
}
