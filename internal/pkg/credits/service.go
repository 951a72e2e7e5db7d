package credits

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrInsufficientCredits is returned when a deduction exceeds the balance.
// It is a recoverable condition for the caller, not a server fault.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Service exposes the credit ledger: balance query plus atomic add/deduct.
type Service struct {
	repo Repository
}

// NewService creates a ledger service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a ledger service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// GetBalance returns the current balance. A missing balance row reads as zero.
func (s *Service) GetBalance(ctx context.Context, userID uint) (int, error) {
	_ = ctx
	if userID == 0 {
		return 0, errors.New("user_id is required")
	}
	balance, err := s.repo.GetBalance(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

// EnsureAccount creates the balance row with the starting grant if missing.
func (s *Service) EnsureAccount(ctx context.Context, userID uint, starting int) error {
	_ = ctx
	if userID == 0 {
		return errors.New("user_id is required")
	}
	return s.repo.EnsureAccount(userID, starting)
}

// AddCredits increments the balance. Fails only on store unavailability.
func (s *Service) AddCredits(ctx context.Context, userID uint, amount int) error {
	_ = ctx
	if userID == 0 {
		return errors.New("user_id is required")
	}
	if amount <= 0 {
		return errors.New("amount must be positive")
	}
	return s.repo.Add(userID, amount)
}

// DeductCredits decrements the balance, or returns ErrInsufficientCredits.
// The conditional UPDATE guarantees the balance never goes negative even under
// concurrent deductions.
func (s *Service) DeductCredits(ctx context.Context, userID uint, amount int) error {
	_ = ctx
	if userID == 0 {
		return errors.New("user_id is required")
	}
	if amount <= 0 {
		return errors.New("amount must be positive")
	}
	ok, err := s.repo.DeductIfAvailable(userID, amount)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientCredits
	}
	return nil
}
