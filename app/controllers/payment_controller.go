package controllers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/glitchpeach/gamestudio/app/models"
	"github.com/glitchpeach/gamestudio/internal/pkg/database"
	"github.com/glitchpeach/gamestudio/internal/pkg/env"
	"github.com/glitchpeach/gamestudio/internal/pkg/payments"
	"github.com/glitchpeach/gamestudio/internal/pkg/usercontext"
)

var paymentService *payments.Service

// InitializePaymentService allows injecting a payment service, mainly for tests.
func InitializePaymentService(svc *payments.Service) {
	paymentService = svc
}

func getPaymentService() *payments.Service {
	if paymentService == nil {
		paymentService = payments.NewServiceFromDB(database.GetDB())
	}
	return paymentService
}

type checkoutRequest struct {
	Credits int `json:"credits"`
}

// HandleCreateStripeCheckout opens a pending order for a credit package and
// redirects the user to a Stripe checkout session.
func HandleCreateStripeCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "could not parse request body")
	}

	pkg, ok := models.PackageByCredits(req.Credits)
	if !ok {
		return jsonError(c, fiber.StatusUnprocessableEntity, "unknown_package", "no credit package with this credit amount")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	order, err := getPaymentService().CreateOrder(ctx, userCtx.UserID, pkg, models.PaymentTypeStripe)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "order_failed", "could not create payment order")
	}

	publicURL := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", "http://localhost:8080"), "/")
	client := payments.NewStripeClientFromEnv()
	session, err := client.CreateCheckoutSession(ctx, payments.StripeCheckoutParams{
		OrderID:       order.OrderID,
		UserID:        userCtx.UserID,
		Credits:       pkg.Credits,
		AmountCents:   pkg.PriceCents,
		Currency:      pkg.Currency,
		ProductName:   fmt.Sprintf("%s (%d credits)", pkg.Name, pkg.Credits),
		CustomerEmail: userCtx.Email,
		SuccessURL:    publicURL + "/credits/success?order_id=" + order.OrderID,
		CancelURL:     publicURL + "/credits/cancel?order_id=" + order.OrderID,
	})
	if err != nil {
		log.Errorf("[Payment] Stripe checkout session failed for order %s: %v", order.OrderID, err)
		return jsonError(c, fiber.StatusBadGateway, "stripe_failed", "could not create Stripe checkout session")
	}

	if err := getPaymentService().AttachProviderRef(ctx, order.OrderID, session.ID); err != nil {
		log.Errorf("[Payment] could not store provider ref for order %s: %v", order.OrderID, err)
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"order_id":     order.OrderID,
		"checkout_url": session.URL,
	})
}

// HandleCreateNowPaymentsInvoice opens a pending order and creates a hosted
// NOWPayments invoice for crypto payment.
func HandleCreateNowPaymentsInvoice(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload", "could not parse request body")
	}

	pkg, ok := models.PackageByCredits(req.Credits)
	if !ok {
		return jsonError(c, fiber.StatusUnprocessableEntity, "unknown_package", "no credit package with this credit amount")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	order, err := getPaymentService().CreateOrder(ctx, userCtx.UserID, pkg, models.PaymentTypeNowPayments)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "order_failed", "could not create payment order")
	}

	publicURL := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", "http://localhost:8080"), "/")
	client := payments.NewNowPaymentsClientFromEnv()
	invoice, err := client.CreateInvoice(ctx, payments.NowPaymentsInvoiceParams{
		OrderID:          order.OrderID,
		AmountCents:      pkg.PriceCents,
		Currency:         pkg.Currency,
		OrderDescription: fmt.Sprintf("%s (%d credits)", pkg.Name, pkg.Credits),
		IPNCallbackURL:   publicURL + "/webhooks/nowpayments",
		SuccessURL:       publicURL + "/credits/success?order_id=" + order.OrderID,
		CancelURL:        publicURL + "/credits/cancel?order_id=" + order.OrderID,
	})
	if err != nil {
		log.Errorf("[Payment] NOWPayments invoice failed for order %s: %v", order.OrderID, err)
		return jsonError(c, fiber.StatusBadGateway, "nowpayments_failed", "could not create NOWPayments invoice")
	}

	if err := getPaymentService().AttachProviderRef(ctx, order.OrderID, invoice.ID.String()); err != nil {
		log.Errorf("[Payment] could not store provider ref for order %s: %v", order.OrderID, err)
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"order_id":    order.OrderID,
		"invoice_url": invoice.InvoiceURL,
	})
}
