package payments

// Outcome is the provider-neutral payment status. Stripe says "paid"/"complete",
// NOWPayments says "finished"/"confirmed"; handlers only ever branch on this.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomePending   Outcome = "pending"
	OutcomeFailed    Outcome = "failed"
	OutcomeExpired   Outcome = "expired"
	OutcomeUnknown   Outcome = "unknown"
)

// NormalizedPayment is the provider-agnostic shape handed to the reconciliation
// service after signature verification and payload parsing.
type NormalizedPayment struct {
	Provider        string
	OrderID         string
	PaymentID       string
	Outcome         Outcome
	AmountCents     int64
	Currency        string
	StripeSessionID string
	CustomerEmail   string

	// Optional attribution fallbacks for orders created out-of-band
	// (e.g. Stripe payment links carrying metadata instead of an order row).
	MetadataUserID  uint
	MetadataCredits int
}

// Result reports what the reconciliation service did with a webhook payment.
type Result struct {
	Credited     bool
	Duplicate    bool
	Ignored      bool
	CreditsAdded int
	UserID       uint
}
