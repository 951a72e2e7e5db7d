package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/glitchpeach/gamestudio/app/models"
	"github.com/glitchpeach/gamestudio/internal/pkg/payments"
)

const (
	testStripeSecret = "whsec_test"
	testIPNSecret    = "ipn_test"
)

// fakePaymentRepository enforces order_id uniqueness like the database does.
type fakePaymentRepository struct {
	mu        sync.Mutex
	processed map[string]*models.ProcessedPayment
	orders    map[string]*models.PaymentOrder
	balances  map[uint]int
}

func newFakePaymentRepository() *fakePaymentRepository {
	return &fakePaymentRepository{
		processed: make(map[string]*models.ProcessedPayment),
		orders:    make(map[string]*models.PaymentOrder),
		balances:  make(map[uint]int),
	}
}

func (f *fakePaymentRepository) GetProcessedPayment(orderID string) (*models.ProcessedPayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.processed[orderID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepository) GetPaymentOrder(orderID string) (*models.PaymentOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[orderID]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepository) CreatePaymentOrder(order *models.PaymentOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[order.OrderID]; ok {
		return errors.New("duplicate order_id")
	}
	cp := *order
	f.orders[order.OrderID] = &cp
	return nil
}

func (f *fakePaymentRepository) UpdatePaymentOrderRef(orderID, providerRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.ProviderRef = providerRef
	return nil
}

func (f *fakePaymentRepository) RecordPaymentAndCredit(p *models.ProcessedPayment) (bool, error) {
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

func (f *fakePaymentRepository) balance(userID uint) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID]
}

func (f *fakePaymentRepository) processedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.processed)
}

func newWebhookTestApp(t *testing.T) (*fiber.App, *fakePaymentRepository) {
	t.Helper()
	t.Setenv("STRIPE_WEBHOOK_SECRET", testStripeSecret)
	t.Setenv("NOWPAYMENTS_IPN_SECRET", testIPNSecret)

	repo := newFakePaymentRepository()
	InitializePaymentService(payments.NewService(repo))

	app := fiber.New()
	app.Post("/webhooks/stripe", HandleStripeWebhook)
	app.Post("/webhooks/nowpayments", HandleNowPaymentsWebhook)
	return app, repo
}

func stripeEventBody(t *testing.T, orderID, paymentStatus string) []byte {
	t.Helper()
	body, err := json.Marshal(fiber.Map{
		"id":   "evt_test",
		"type": "checkout.session.completed",
		"data": fiber.Map{
			"object": fiber.Map{
				"id":                  "cs_test_123",
				"client_reference_id": orderID,
				"payment_intent":      "pi_test_123",
				"payment_status":      paymentStatus,
				"amount_total":        500,
				"currency":            "usd",
				"customer_details":    fiber.Map{"email": "player@example.com"},
				"metadata":            fiber.Map{"order_id": orderID},
			},
		},
	})
	require.NoError(t, err)
	return body
}

func signStripe(body []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, body)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func signNowPayments(body []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, app *fiber.App, path string, body []byte, sigHeader, sigValue string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	if sigValue != "" {
		req.Header.Set(sigHeader, sigValue)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestStripeWebhookInvalidSignatureNeverMutates(t *testing.T) {
	app, repo := newWebhookTestApp(t)
	repo.orders["order-1"] = &models.PaymentOrder{
		OrderID: "order-1", UserID: 7, PackageCredits: 50,
		AmountCents: 500, Currency: "usd",
		Provider: models.PaymentTypeStripe, Status: models.OrderStatusPending,
	}

	body := stripeEventBody(t, "order-1", "paid")

	resp := postWebhook(t, app, "/webhooks/stripe", body, "Stripe-Signature", "t=1,v1=deadbeef")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = postWebhook(t, app, "/webhooks/stripe", body, "Stripe-Signature", "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = postWebhook(t, app, "/webhooks/stripe", body, "Stripe-Signature", signStripe(body, "whsec_wrong"))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	assert.Equal(t, 0, repo.processedCount())
	assert.Equal(t, 0, repo.balance(7))
}

func TestStripeWebhookCreditsExactlyOnce(t *testing.T) {
	app, repo := newWebhookTestApp(t)
	repo.orders["order-1"] = &models.PaymentOrder{
		OrderID: "order-1", UserID: 7, PackageCredits: 50,
		AmountCents: 500, Currency: "usd",
		Provider: models.PaymentTypeStripe, Status: models.OrderStatusPending,
	}

	body := stripeEventBody(t, "order-1", "paid")
	sig := signStripe(body, testStripeSecret)

	resp := postWebhook(t, app, "/webhooks/stripe", body, "Stripe-Signature", sig)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 50, repo.balance(7))

	// Stripe redelivers; the credit must not double
	for i := 0; i < 5; i++ {
		resp = postWebhook(t, app, "/webhooks/stripe", body, "Stripe-Signature", signStripe(body, testStripeSecret))
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var payload map[string]interface{}
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &payload))
		assert.Equal(t, true, payload["duplicate"])
	}
	assert.Equal(t, 50, repo.balance(7))
	assert.Equal(t, 1, repo.processedCount())
}

func TestStripeWebhookUnpaidSessionIsIgnored(t *testing.T) {
	app, repo := newWebhookTestApp(t)
	repo.orders["order-1"] = &models.PaymentOrder{
		OrderID: "order-1", UserID: 7, PackageCredits: 50,
		AmountCents: 500, Currency: "usd",
		Provider: models.PaymentTypeStripe, Status: models.OrderStatusPending,
	}

	body := stripeEventBody(t, "order-1", "unpaid")
	resp := postWebhook(t, app, "/webhooks/stripe", body, "Stripe-Signature", signStripe(body, testStripeSecret))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, repo.balance(7))
}

func TestStripeWebhookUnknownOrderIsAcknowledged(t *testing.T) {
	app, repo := newWebhookTestApp(t)

	body := stripeEventBody(t, "order-ghost", "paid")
	resp := postWebhook(t, app, "/webhooks/stripe", body, "Stripe-Signature", signStripe(body, testStripeSecret))

	// Redelivery cannot fix attribution, so the provider gets a 200
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, repo.processedCount())
}

func TestStripeWebhookIgnoresOtherEventTypes(t *testing.T) {
	app, repo := newWebhookTestApp(t)

	body, err := json.Marshal(fiber.Map{
		"id":   "evt_test",
		"type": "invoice.paid",
		"data": fiber.Map{"object": fiber.Map{}},
	})
	require.NoError(t, err)

	resp := postWebhook(t, app, "/webhooks/stripe", body, "Stripe-Signature", signStripe(body, testStripeSecret))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, repo.processedCount())
}

func nowPaymentsBody(t *testing.T, orderID, status string) []byte {
	t.Helper()
	body, err := json.Marshal(fiber.Map{
		"payment_id":     123456,
		"payment_status": status,
		"order_id":       orderID,
		"price_amount":   5.0,
		"price_currency": "usd",
		"pay_currency":   "btc",
	})
	require.NoError(t, err)
	return body
}

func TestNowPaymentsWebhookCreditsOnFinished(t *testing.T) {
	app, repo := newWebhookTestApp(t)
	repo.orders["order-2"] = &models.PaymentOrder{
		OrderID: "order-2", UserID: 9, PackageCredits: 50,
		AmountCents: 500, Currency: "usd",
		Provider: models.PaymentTypeNowPayments, Status: models.OrderStatusPending,
	}

	body := nowPaymentsBody(t, "order-2", "finished")
	resp := postWebhook(t, app, "/webhooks/nowpayments", body, "x-nowpayments-sig", signNowPayments(body, testIPNSecret))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 50, repo.balance(9))

	// redelivery
	resp = postWebhook(t, app, "/webhooks/nowpayments", body, "x-nowpayments-sig", signNowPayments(body, testIPNSecret))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 50, repo.balance(9))
}

func TestNowPaymentsWebhookConfirmedIsNotCredited(t *testing.T) {
	app, repo := newWebhookTestApp(t)
	repo.orders["order-2"] = &models.PaymentOrder{
		OrderID: "order-2", UserID: 9, PackageCredits: 50,
		AmountCents: 500, Currency: "usd",
		Provider: models.PaymentTypeNowPayments, Status: models.OrderStatusPending,
	}

	// confirmed means blockchain confirmations, funds are not settled yet
	body := nowPaymentsBody(t, "order-2", "confirmed")
	resp := postWebhook(t, app, "/webhooks/nowpayments", body, "x-nowpayments-sig", signNowPayments(body, testIPNSecret))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, repo.balance(9))

	// the final IPN settles it
	body = nowPaymentsBody(t, "order-2", "finished")
	resp = postWebhook(t, app, "/webhooks/nowpayments", body, "x-nowpayments-sig", signNowPayments(body, testIPNSecret))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 50, repo.balance(9))
}

func TestNowPaymentsWebhookInvalidSignature(t *testing.T) {
	app, repo := newWebhookTestApp(t)

	body := nowPaymentsBody(t, "order-2", "finished")
	resp := postWebhook(t, app, "/webhooks/nowpayments", body, "x-nowpayments-sig", signNowPayments(body, "wrong"))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, repo.processedCount())
}
