package payments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/glitchpeach/gamestudio/app/models"
)

// fakeRepository is an in-memory Repository enforcing the same order_id
// uniqueness the database does.
type fakeRepository struct {
	mu        sync.Mutex
	processed map[string]*models.ProcessedPayment
	orders    map[string]*models.PaymentOrder
	balances  map[uint]int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		processed: make(map[string]*models.ProcessedPayment),
		orders:    make(map[string]*models.PaymentOrder),
		balances:  make(map[uint]int),
	}
}

func (f *fakeRepository) GetProcessedPayment(orderID string) (*models.ProcessedPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.processed[orderID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) GetPaymentOrder(orderID string) (*models.PaymentOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[orderID]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) CreatePaymentOrder(order *models.PaymentOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[order.OrderID]; ok {
		return errors.New("duplicate order_id")
	}
	cp := *order
	f.orders[order.OrderID] = &cp
	return nil
}

func (f *fakeRepository) UpdatePaymentOrderRef(orderID, providerRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.ProviderRef = providerRef
	return nil
}

func (f *fakeRepository) RecordPaymentAndCredit(p *models.ProcessedPayment) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.processed[p.OrderID]; ok {
		return false, nil
	}
	cp := *p
	f.processed[p.OrderID] = &cp
	f.balances[p.UserID] += p.CreditsAdded
	if o, ok := f.orders[p.OrderID]; ok && o.Status == models.OrderStatusPending {
		o.Status = models.OrderStatusCompleted
		now := time.Now()
		o.CompletedAt = &now
	}
	return true, nil
}

func (f *fakeRepository) balance(userID uint) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID]
}

func pendingOrder(repo *fakeRepository, orderID string, userID uint, credits int) {
	repo.orders[orderID] = &models.PaymentOrder{
		OrderID:        orderID,
		UserID:         userID,
		PackageCredits: credits,
		AmountCents:    500,
		Currency:       "usd",
		Provider:       models.PaymentTypeStripe,
		Status:         models.OrderStatusPending,
	}
}

func succeededPayment(orderID string) NormalizedPayment {
	return NormalizedPayment{
		Provider:    models.PaymentTypeStripe,
		OrderID:     orderID,
		PaymentID:   "pi_123",
		Outcome:     OutcomeSucceeded,
		AmountCents: 500,
		Currency:    "usd",
	}
}

func TestProcessWebhookPaymentCreditsOnce(t *testing.T) {
	repo := newFakeRepository()
	pendingOrder(repo, "order-1", 7, 50)
	svc := NewService(repo)

	result, err := svc.ProcessWebhookPayment(context.Background(), succeededPayment("order-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Credited || result.Duplicate || result.Ignored {
		t.Fatalf("expected credited result, got %+v", result)
	}
	if result.UserID != 7 || result.CreditsAdded != 50 {
		t.Fatalf("expected 50 credits for user 7, got %+v", result)
	}
	if got := repo.balance(7); got != 50 {
		t.Fatalf("expected balance 50, got %d", got)
	}

	order, err := repo.GetPaymentOrder("order-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != models.OrderStatusCompleted || order.CompletedAt == nil {
		t.Fatalf("expected order completed, got status=%q", order.Status)
	}
}

func TestProcessWebhookPaymentReplayIsDuplicate(t *testing.T) {
	repo := newFakeRepository()
	pendingOrder(repo, "order-1", 7, 50)
	svc := NewService(repo)

	for i := 0; i < 25; i++ {
		result, err := svc.ProcessWebhookPayment(context.Background(), succeededPayment("order-1"))
		if err != nil {
			t.Fatalf("delivery %d: unexpected error: %v", i, err)
		}
		if i == 0 && !result.Credited {
			t.Fatalf("first delivery should credit, got %+v", result)
		}
		if i > 0 && !result.Duplicate {
			t.Fatalf("delivery %d should be duplicate, got %+v", i, result)
		}
	}

	if got := repo.balance(7); got != 50 {
		t.Fatalf("expected balance 50 after replays, got %d", got)
	}
}

func TestProcessWebhookPaymentConcurrentDeliveries(t *testing.T) {
	repo := newFakeRepository()
	pendingOrder(repo, "order-1", 7, 120)
	svc := NewService(repo)

	const workers = 16
	var wg sync.WaitGroup
	credited := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.ProcessWebhookPayment(context.Background(), succeededPayment("order-1"))
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if result.Credited {
				credited <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(credited)

	var creditedCount int
	for range credited {
		creditedCount++
	}
	if creditedCount != 1 {
		t.Fatalf("expected exactly one delivery to credit, got %d", creditedCount)
	}
	if got := repo.balance(7); got != 120 {
		t.Fatalf("expected balance 120, got %d", got)
	}
}

func TestProcessWebhookPaymentIgnoresNonSuccess(t *testing.T) {
	repo := newFakeRepository()
	pendingOrder(repo, "order-1", 7, 50)
	svc := NewService(repo)

	for _, outcome := range []Outcome{OutcomePending, OutcomeFailed, OutcomeExpired, OutcomeUnknown} {
		p := succeededPayment("order-1")
		p.Outcome = outcome
		result, err := svc.ProcessWebhookPayment(context.Background(), p)
		if err != nil {
			t.Fatalf("outcome %q: unexpected error: %v", outcome, err)
		}
		if !result.Ignored {
			t.Fatalf("outcome %q: expected ignored result, got %+v", outcome, result)
		}
	}

	if got := repo.balance(7); got != 0 {
		t.Fatalf("expected untouched balance, got %d", got)
	}
}

func TestProcessWebhookPaymentUnknownOrder(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	_, err := svc.ProcessWebhookPayment(context.Background(), succeededPayment("order-missing"))
	if !errors.Is(err, ErrUnknownOrder) {
		t.Fatalf("expected ErrUnknownOrder, got %v", err)
	}
	if got := repo.balance(7); got != 0 {
		t.Fatalf("expected untouched balance, got %d", got)
	}
}

func TestProcessWebhookPaymentMetadataFallback(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	p := succeededPayment("order-meta")
	p.MetadataUserID = 9
	p.MetadataCredits = 50
	result, err := svc.ProcessWebhookPayment(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Credited || result.UserID != 9 || result.CreditsAdded != 50 {
		t.Fatalf("expected metadata attribution, got %+v", result)
	}
	if got := repo.balance(9); got != 50 {
		t.Fatalf("expected balance 50, got %d", got)
	}
}

func TestProcessWebhookPaymentAmountFallback(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	// metadata carries the user but not the credit amount; the known package
	// price resolves the credits
	p := succeededPayment("order-amount")
	p.MetadataUserID = 4
	p.AmountCents = 1000
	result, err := svc.ProcessWebhookPayment(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Credited || result.CreditsAdded != 120 {
		t.Fatalf("expected 120 credits from Creator Pack price, got %+v", result)
	}
}

func TestProcessWebhookPaymentEmptyOrderID(t *testing.T) {
	svc := NewService(newFakeRepository())

	if _, err := svc.ProcessWebhookPayment(context.Background(), succeededPayment("  ")); err == nil {
		t.Fatalf("expected error for blank order_id")
	}
}

func TestCreateOrder(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	pkg, ok := models.PackageByCredits(50)
	if !ok {
		t.Fatalf("expected Starter Pack in catalog")
	}

	order, err := svc.CreateOrder(context.Background(), 3, pkg, models.PaymentTypeNowPayments)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.OrderID == "" {
		t.Fatalf("expected generated order_id")
	}
	if order.Status != models.OrderStatusPending {
		t.Fatalf("expected pending status, got %q", order.Status)
	}
	if order.PackageCredits != 50 || order.AmountCents != 500 {
		t.Fatalf("expected package fields copied, got %+v", order)
	}

	if _, err := svc.CreateOrder(context.Background(), 0, pkg, models.PaymentTypeStripe); err == nil {
		t.Fatalf("expected error for missing user")
	}
	if _, err := svc.CreateOrder(context.Background(), 3, pkg, "paypal"); err == nil {
		t.Fatalf("expected error for unsupported provider")
	}
}

func TestAttachProviderRef(t *testing.T) {
	repo := newFakeRepository()
	pendingOrder(repo, "order-1", 7, 50)
	svc := NewService(repo)

	if err := svc.AttachProviderRef(context.Background(), "order-1", "cs_test_123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	order, _ := repo.GetPaymentOrder("order-1")
	if order.ProviderRef != "cs_test_123" {
		t.Fatalf("expected provider ref stored, got %q", order.ProviderRef)
	}
}
