package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/glitchpeach/gamestudio/internal/pkg/env"
)

const (
	nowPaymentsProductionURL = "https://api.nowpayments.io/v1"
	nowPaymentsSandboxURL    = "https://api-sandbox.nowpayments.io/v1"
)

// NowPaymentsClient talks to the NOWPayments invoice API.
type NowPaymentsClient struct {
	APIKey     string
	IPNSecret  string
	APIBaseURL string

	HTTPClient *http.Client
}

type NowPaymentsInvoiceParams struct {
	OrderID          string
	AmountCents      int64
	Currency         string
	OrderDescription string
	IPNCallbackURL   string
	SuccessURL       string
	CancelURL        string
}

type NowPaymentsInvoice struct {
	ID         json.Number `json:"id"`
	InvoiceURL string      `json:"invoice_url"`
	OrderID    string      `json:"order_id"`
}

// NowPaymentsIPN is the subset of an IPN callback body the webhook handler
// needs. Amounts arrive as floats in the price currency.
type NowPaymentsIPN struct {
	PaymentID     json.Number `json:"payment_id"`
	InvoiceID     json.Number `json:"invoice_id"`
	PaymentStatus string      `json:"payment_status"`
	OrderID       string      `json:"order_id"`
	PriceAmount   float64     `json:"price_amount"`
	PriceCurrency string      `json:"price_currency"`
	PayCurrency   string      `json:"pay_currency"`
}

func NewNowPaymentsClientFromEnv() *NowPaymentsClient {
	baseURL := nowPaymentsProductionURL
	if env.GetEnv("NOWPAYMENTS_SANDBOX", "false") == "true" {
		baseURL = nowPaymentsSandboxURL
	}
	return &NowPaymentsClient{
		APIKey:     strings.TrimSpace(env.GetEnv("NOWPAYMENTS_API_KEY", "")),
		IPNSecret:  strings.TrimSpace(env.GetEnv("NOWPAYMENTS_IPN_SECRET", "")),
		APIBaseURL: strings.TrimSpace(env.GetEnv("NOWPAYMENTS_API_BASE_URL", baseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// IsConfigured reports whether API calls can be made.
func (c *NowPaymentsClient) IsConfigured() bool {
	return c.APIKey != ""
}

// CreateInvoice creates a hosted invoice letting the customer pick a
// cryptocurrency. The order_id round-trips through the IPN callback.
func (c *NowPaymentsClient) CreateInvoice(ctx context.Context, p NowPaymentsInvoiceParams) (*NowPaymentsInvoice, error) {
	if !c.IsConfigured() {
		return nil, errors.New("NOWPAYMENTS_API_KEY is not configured")
	}
	if strings.TrimSpace(p.OrderID) == "" {
		return nil, errors.New("order_id is required")
	}

	payload := map[string]interface{}{
		"price_amount":      float64(p.AmountCents) / 100,
		"price_currency":    strings.ToLower(p.Currency),
		"order_id":          p.OrderID,
		"order_description": p.OrderDescription,
		"ipn_callback_url":  p.IPNCallbackURL,
	}
	if p.SuccessURL != "" {
		payload["success_url"] = p.SuccessURL
	}
	if p.CancelURL != "" {
		payload["cancel_url"] = p.CancelURL
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+"/invoice", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("nowpayments invoice failed: status=%d body=%s", resp.StatusCode, truncate(respBody, 512))
	}

	var invoice NowPaymentsInvoice
	if err := json.Unmarshal(respBody, &invoice); err != nil {
		return nil, fmt.Errorf("invalid nowpayments response: %w", err)
	}
	if invoice.InvoiceURL == "" {
		return nil, errors.New("nowpayments response missing invoice_url")
	}
	return &invoice, nil
}

// GetPaymentStatus fetches the current state of a payment.
func (c *NowPaymentsClient) GetPaymentStatus(ctx context.Context, paymentID string) (*NowPaymentsIPN, error) {
	if !c.IsConfigured() {
		return nil, errors.New("NOWPAYMENTS_API_KEY is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIBaseURL+"/payment/"+paymentID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nowpayments payment status failed: status=%d", resp.StatusCode)
	}

	var status NowPaymentsIPN
	if err := json.Unmarshal(respBody, &status); err != nil {
		return nil, fmt.Errorf("invalid nowpayments response: %w", err)
	}
	return &status, nil
}

// ParseNowPaymentsIPN parses an IPN callback body. Callers verify the
// signature before parsing.
func ParseNowPaymentsIPN(payload []byte) (*NowPaymentsIPN, error) {
	var ipn NowPaymentsIPN
	if err := json.Unmarshal(payload, &ipn); err != nil {
		return nil, fmt.Errorf("invalid nowpayments ipn payload: %w", err)
	}
	return &ipn, nil
}

// AmountCents converts the IPN price amount into integer cents.
func (i *NowPaymentsIPN) AmountCents() int64 {
	return int64(math.Round(i.PriceAmount * 100))
}
