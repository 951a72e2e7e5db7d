package credits

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gorm.io/gorm"
)

// fakeRepository mirrors the conditional-update semantics of the GORM
// implementation in memory.
type fakeRepository struct {
	mu       sync.Mutex
	balances map[uint]int
	exists   map[uint]bool
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		balances: make(map[uint]int),
		exists:   make(map[uint]bool),
	}
}

func (f *fakeRepository) GetBalance(userID uint) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.exists[userID] {
		return 0, gorm.ErrRecordNotFound
	}
	return f.balances[userID], nil
}

func (f *fakeRepository) EnsureAccount(userID uint, starting int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.exists[userID] {
		f.exists[userID] = true
		f.balances[userID] = starting
	}
	return nil
}

func (f *fakeRepository) Add(userID uint, amount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exists[userID] = true
	f.balances[userID] += amount
	return nil
}

func (f *fakeRepository) DeductIfAvailable(userID uint, amount int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.exists[userID] || f.balances[userID] < amount {
		return false, nil
	}
	f.balances[userID] -= amount
	return true, nil
}

func TestGetBalanceMissingRowReadsZero(t *testing.T) {
	svc := NewService(newFakeRepository())

	balance, err := svc.GetBalance(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected 0 for missing account, got %d", balance)
	}
}

func TestEnsureAccountIsIdempotent(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	if err := svc.EnsureAccount(context.Background(), 1, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.AddCredits(context.Background(), 1, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A second ensure must not reset the balance
	if err := svc.EnsureAccount(context.Background(), 1, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	balance, err := svc.GetBalance(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 12 {
		t.Fatalf("expected balance 12, got %d", balance)
	}
}

func TestDeductCreditsInsufficient(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	if err := svc.EnsureAccount(context.Background(), 1, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.DeductCredits(context.Background(), 1, 3); !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	balance, _ := svc.GetBalance(context.Background(), 1)
	if balance != 2 {
		t.Fatalf("failed deduction must not change balance, got %d", balance)
	}
}

func TestDeductCreditsConcurrentNeverNegative(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	const start = 10
	if err := svc.EnsureAccount(context.Background(), 1, start); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const workers = 50
	var wg sync.WaitGroup
	var succeeded int
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.DeductCredits(context.Background(), 1, 1)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, ErrInsufficientCredits) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != start {
		t.Fatalf("expected exactly %d successful deductions, got %d", start, succeeded)
	}
	balance, _ := svc.GetBalance(context.Background(), 1)
	if balance != 0 {
		t.Fatalf("expected balance 0, got %d", balance)
	}
}

func TestValidationErrors(t *testing.T) {
	svc := NewService(newFakeRepository())
	ctx := context.Background()

	if _, err := svc.GetBalance(ctx, 0); err == nil {
		t.Fatalf("expected error for zero user id")
	}
	if err := svc.AddCredits(ctx, 1, 0); err == nil {
		t.Fatalf("expected error for non-positive amount")
	}
	if err := svc.AddCredits(ctx, 1, -5); err == nil {
		t.Fatalf("expected error for negative amount")
	}
	if err := svc.DeductCredits(ctx, 1, 0); err == nil {
		t.Fatalf("expected error for non-positive amount")
	}
}
