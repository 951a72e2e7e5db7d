package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/glitchpeach/gamestudio/app/models"
	"github.com/glitchpeach/gamestudio/internal/pkg/env"
	"github.com/glitchpeach/gamestudio/internal/pkg/payments"
)

// Stripe event types that carry a completed checkout session
func isStripeCheckoutEvent(eventType string) bool {
	switch eventType {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		return true
	}
	return false
}

// HandleStripeWebhook processes Stripe checkout events. The signature is
// verified against the raw body before anything is parsed; crediting is
// exactly-once per order_id no matter how often Stripe redelivers.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))
	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")

	if !payments.VerifyStripeSignature(rawBody, signature, secret, time.Now()) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	event, err := payments.ParseStripeWebhookEvent(rawBody)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	if !isStripeCheckoutEvent(event.Type) {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result, err := getPaymentService().ProcessWebhookPayment(ctx, payments.NormalizedPayment{
		Provider:        models.PaymentTypeStripe,
		OrderID:         event.OrderID,
		PaymentID:       event.PaymentIntent,
		Outcome:         payments.NormalizeStripeStatus(event.PaymentStatus),
		AmountCents:     event.AmountCents,
		Currency:        event.Currency,
		StripeSessionID: event.SessionID,
		CustomerEmail:   event.CustomerEmail,
		MetadataUserID:  event.UserID,
		MetadataCredits: event.Credits,
	})
	if err != nil {
		if errors.Is(err, payments.ErrUnknownOrder) {
			// Redelivery cannot fix attribution, acknowledge and move on.
			log.Warnf("[Webhook] Stripe payment for unknown order %s (session %s)", event.OrderID, event.SessionID)
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
		}
		log.Errorf("[Webhook] Stripe processing failed for order %s: %v", event.OrderID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed"})
	}

	if result.Duplicate {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	if result.Ignored {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	invalidateCreditBalanceCache(result.UserID)
	log.Infof("[Webhook] Stripe credited %d credits to user %d (order %s)", result.CreditsAdded, result.UserID, event.OrderID)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// HandleNowPaymentsWebhook processes NOWPayments IPN callbacks. Only the
// "finished" status grants credits; partially confirmed payments are
// acknowledged and granted once the final IPN arrives.
func HandleNowPaymentsWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("x-nowpayments-sig"))
	secret := env.GetEnv("NOWPAYMENTS_IPN_SECRET", "")

	if !payments.VerifyNowPaymentsSignature(rawBody, signature, secret) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	ipn, err := payments.ParseNowPaymentsIPN(rawBody)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result, err := getPaymentService().ProcessWebhookPayment(ctx, payments.NormalizedPayment{
		Provider:    models.PaymentTypeNowPayments,
		OrderID:     ipn.OrderID,
		PaymentID:   ipn.PaymentID.String(),
		Outcome:     payments.NormalizeNowPaymentsStatus(ipn.PaymentStatus),
		AmountCents: ipn.AmountCents(),
		Currency:    ipn.PriceCurrency,
	})
	if err != nil {
		if errors.Is(err, payments.ErrUnknownOrder) {
			log.Warnf("[Webhook] NOWPayments payment for unknown order %s (payment %s)", ipn.OrderID, ipn.PaymentID.String())
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
		}
		log.Errorf("[Webhook] NOWPayments processing failed for order %s: %v", ipn.OrderID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing_failed"})
	}

	if result.Duplicate {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	if result.Ignored {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	}

	invalidateCreditBalanceCache(result.UserID)
	log.Infof("[Webhook] NOWPayments credited %d credits to user %d (order %s)", result.CreditsAdded, result.UserID, ipn.OrderID)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}
