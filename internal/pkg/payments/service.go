package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glitchpeach/gamestudio/app/models"
)

// ErrUnknownOrder means a successful payment could not be attributed to any
// user: no pending order row and no usable metadata. Retrying cannot fix it,
// so webhook handlers acknowledge and log instead of asking for redelivery.
var ErrUnknownOrder = errors.New("payment references no known order")

// Service reconciles webhook payments into the credit ledger exactly once per
// order_id.
type Service struct {
	repo Repository
}

// NewService creates a reconciliation service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a reconciliation service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// CreateOrder opens a pending payment order for a credit package and returns
// the generated order_id.
func (s *Service) CreateOrder(ctx context.Context, userID uint, pkg models.CreditPackage, provider string) (*models.PaymentOrder, error) {
	_ = ctx
	if userID == 0 {
		return nil, errors.New("user_id is required")
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider != models.PaymentTypeStripe && provider != models.PaymentTypeNowPayments {
		return nil, fmt.Errorf("unsupported payment provider %q", provider)
	}

	order := &models.PaymentOrder{
		OrderID:        uuid.NewString(),
		UserID:         userID,
		PackageCredits: pkg.Credits,
		AmountCents:    pkg.PriceCents,
		Currency:       pkg.Currency,
		Provider:       provider,
		Status:         models.OrderStatusPending,
	}
	if err := s.repo.CreatePaymentOrder(order); err != nil {
		return nil, err
	}
	return order, nil
}

// AttachProviderRef stores the provider-side invoice/session id on the order.
func (s *Service) AttachProviderRef(ctx context.Context, orderID, providerRef string) error {
	_ = ctx
	if orderID == "" {
		return errors.New("order_id is required")
	}
	return s.repo.UpdatePaymentOrderRef(orderID, providerRef)
}

// ProcessWebhookPayment grants credits for a verified webhook payment exactly
// once. Non-success outcomes are acknowledged without crediting; duplicate
// deliveries are detected via the processed_payments unique index.
func (s *Service) ProcessWebhookPayment(ctx context.Context, in NormalizedPayment) (*Result, error) {
	_ = ctx
	orderID := strings.TrimSpace(in.OrderID)
	if orderID == "" {
		return nil, errors.New("order_id is required")
	}

	if in.Outcome != OutcomeSucceeded {
		return &Result{Ignored: true}, nil
	}

	// Fast path: already handled. The insert below still guards the race.
	if existing, err := s.repo.GetProcessedPayment(orderID); err == nil {
		return &Result{Duplicate: true, CreditsAdded: existing.CreditsAdded, UserID: existing.UserID}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	userID, creditsToAdd, err := s.resolveOrder(orderID, in)
	if err != nil {
		return nil, err
	}

	record := &models.ProcessedPayment{
		OrderID:         orderID,
		PaymentID:       in.PaymentID,
		UserID:          userID,
		CreditsAdded:    creditsToAdd,
		AmountCents:     in.AmountCents,
		Currency:        strings.ToLower(in.Currency),
		PaymentType:     in.Provider,
		StripeSessionID: in.StripeSessionID,
		CustomerEmail:   in.CustomerEmail,
		ProcessedAt:     time.Now(),
	}

	created, err := s.repo.RecordPaymentAndCredit(record)
	if err != nil {
		return nil, err
	}
	if !created {
		return &Result{Duplicate: true, CreditsAdded: creditsToAdd, UserID: userID}, nil
	}
	return &Result{Credited: true, CreditsAdded: creditsToAdd, UserID: userID}, nil
}

// resolveOrder determines who gets how many credits. The payment_orders row is
// authoritative; provider metadata and the amount->package mapping cover
// orders created out-of-band.
func (s *Service) resolveOrder(orderID string, in NormalizedPayment) (uint, int, error) {
	order, err := s.repo.GetPaymentOrder(orderID)
	if err == nil {
		return order.UserID, order.PackageCredits, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, 0, err
	}

	if in.MetadataUserID != 0 {
		if in.MetadataCredits > 0 {
			return in.MetadataUserID, in.MetadataCredits, nil
		}
		if pkg, ok := models.PackageByAmount(in.AmountCents, in.Currency); ok {
			return in.MetadataUserID, pkg.Credits, nil
		}
	}
	return 0, 0, ErrUnknownOrder
}
