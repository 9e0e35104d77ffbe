// README: Account service; mirrors verified identities and reads the owner ledger.
package account

import (
	"context"
	"errors"
	"fmt"

	"spotledger/internal/types"
)

var (
	ErrNotFound    = errors.New("account not found")
	ErrInvalidRole = errors.New("invalid role")
)

type Repository interface {
	Ensure(ctx context.Context, cmd EnsureCommand) error
	Get(ctx context.Context, id types.ID) (*Account, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Ensure(ctx context.Context, cmd EnsureCommand) error {
	if cmd.ID == "" {
		return ErrNotFound
	}
	if !cmd.Role.Valid() {
		return ErrInvalidRole
	}
	if err := s.repo.Ensure(ctx, cmd); err != nil {
		return fmt.Errorf("ensure account %s: %w", cmd.ID, err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Account, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return a, nil
}
