package payments

import "strings"

// NormalizeStripeStatus maps a Stripe checkout/payment status to an Outcome.
func NormalizeStripeStatus(status string) Outcome {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "succeeded", "paid", "complete", "completed":
		return OutcomeSucceeded
	case "unpaid", "pending", "processing", "open", "no_payment_required":
		return OutcomePending
	case "failed", "canceled", "cancelled":
		return OutcomeFailed
	case "expired":
		return OutcomeExpired
	default:
		return OutcomeUnknown
	}
}

// NormalizeNowPaymentsStatus maps a NOWPayments IPN status to an Outcome.
func NormalizeNowPaymentsStatus(status string) Outcome {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "finished":
		return OutcomeSucceeded
	case "waiting", "confirming", "confirmed", "sending", "partially_paid":
		return OutcomePending
	case "failed", "refunded":
		return OutcomeFailed
	case "expired":
		return OutcomeExpired
	default:
		return OutcomeUnknown
	}
}
