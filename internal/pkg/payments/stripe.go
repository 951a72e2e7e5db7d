package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/glitchpeach/gamestudio/internal/pkg/env"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com"

// StripeClient is a minimal Stripe API client covering checkout session
// creation and webhook payload parsing.
type StripeClient struct {
	SecretKey     string
	WebhookSecret string
	APIBaseURL    string

	HTTPClient *http.Client
}

type StripeCheckoutParams struct {
	OrderID       string
	UserID        uint
	Credits       int
	AmountCents   int64
	Currency      string
	ProductName   string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

type StripeCheckoutSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
	Status        string `json:"status"`
}

// StripeWebhookEvent is the subset of a Stripe event the webhook handler needs.
type StripeWebhookEvent struct {
	ID            string
	Type          string
	SessionID     string
	PaymentIntent string
	PaymentStatus string
	AmountCents   int64
	Currency      string
	CustomerEmail string
	OrderID       string
	UserID        uint
	Credits       int
}

func NewStripeClientFromEnv() *StripeClient {
	return &StripeClient{
		SecretKey:     strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		WebhookSecret: strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
		APIBaseURL:    strings.TrimSpace(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// IsConfigured reports whether API calls can be made.
func (c *StripeClient) IsConfigured() bool {
	return c.SecretKey != ""
}

// CreateCheckoutSession creates a one-time payment checkout session. The
// order_id travels in the metadata and client_reference_id so the webhook can
// tie the payment back to the pending order.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, p StripeCheckoutParams) (*StripeCheckoutSession, error) {
	if !c.IsConfigured() {
		return nil, errors.New("STRIPE_SECRET_KEY is not configured")
	}
	if strings.TrimSpace(p.OrderID) == "" {
		return nil, errors.New("order_id is required")
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", p.OrderID)
	form.Set("success_url", p.SuccessURL)
	form.Set("cancel_url", p.CancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(p.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(p.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", p.ProductName)
	form.Set("metadata[order_id]", p.OrderID)
	form.Set("metadata[user_id]", strconv.FormatUint(uint64(p.UserID), 10))
	form.Set("metadata[credits]", strconv.Itoa(p.Credits))
	if p.CustomerEmail != "" {
		form.Set("customer_email", p.CustomerEmail)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("stripe checkout session failed: status=%d body=%s", resp.StatusCode, truncate(body, 512))
	}

	var session StripeCheckoutSession
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("invalid stripe response: %w", err)
	}
	if session.ID == "" {
		return nil, errors.New("stripe response missing session id")
	}
	return &session, nil
}

// ParseStripeWebhookEvent extracts the checkout-session fields from a Stripe
// event payload. Callers verify the signature before parsing.
func ParseStripeWebhookEvent(payload []byte) (*StripeWebhookEvent, error) {
	var raw struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID                string            `json:"id"`
				ClientReferenceID string            `json:"client_reference_id"`
				PaymentIntent     string            `json:"payment_intent"`
				PaymentStatus     string            `json:"payment_status"`
				AmountTotal       int64             `json:"amount_total"`
				Currency          string            `json:"currency"`
				CustomerEmail     string            `json:"customer_email"`
				CustomerDetails   struct {
					Email string `json:"email"`
				} `json:"customer_details"`
				Metadata map[string]string `json:"metadata"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("invalid stripe event payload: %w", err)
	}

	obj := raw.Data.Object
	ev := &StripeWebhookEvent{
		ID:            raw.ID,
		Type:          raw.Type,
		SessionID:     obj.ID,
		PaymentIntent: obj.PaymentIntent,
		PaymentStatus: obj.PaymentStatus,
		AmountCents:   obj.AmountTotal,
		Currency:      obj.Currency,
		CustomerEmail: obj.CustomerEmail,
	}
	if ev.CustomerEmail == "" {
		ev.CustomerEmail = obj.CustomerDetails.Email
	}

	ev.OrderID = strings.TrimSpace(obj.Metadata["order_id"])
	if ev.OrderID == "" {
		ev.OrderID = strings.TrimSpace(obj.ClientReferenceID)
	}
	if v := obj.Metadata["user_id"]; v != "" {
		if id, err := strconv.ParseUint(v, 10, 64); err == nil {
			ev.UserID = uint(id)
		}
	}
	if v := obj.Metadata["credits"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			ev.Credits = n
		}
	}
	return ev, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
