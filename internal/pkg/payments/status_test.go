package payments

import "testing"

func TestNormalizeStripeStatus(t *testing.T) {
	cases := []struct {
		status string
		want   Outcome
	}{
		{"paid", OutcomeSucceeded},
		{"complete", OutcomeSucceeded},
		{"succeeded", OutcomeSucceeded},
		{"PAID", OutcomeSucceeded},
		{" paid ", OutcomeSucceeded},
		{"unpaid", OutcomePending},
		{"open", OutcomePending},
		{"no_payment_required", OutcomePending},
		{"failed", OutcomeFailed},
		{"canceled", OutcomeFailed},
		{"expired", OutcomeExpired},
		{"", OutcomeUnknown},
		{"something_new", OutcomeUnknown},
	}
	for _, tc := range cases {
		if got := NormalizeStripeStatus(tc.status); got != tc.want {
			t.Fatalf("NormalizeStripeStatus(%q) = %q, want %q", tc.status, got, tc.want)
		}
	}
}

func TestNormalizeNowPaymentsStatus(t *testing.T) {
	cases := []struct {
		status string
		want   Outcome
	}{
		{"finished", OutcomeSucceeded},
		{"FINISHED", OutcomeSucceeded},
		// "confirmed" means blockchain confirmations, not settled funds
		{"confirmed", OutcomePending},
		{"confirming", OutcomePending},
		{"waiting", OutcomePending},
		{"partially_paid", OutcomePending},
		{"sending", OutcomePending},
		{"failed", OutcomeFailed},
		{"refunded", OutcomeFailed},
		{"expired", OutcomeExpired},
		{"", OutcomeUnknown},
	}
	for _, tc := range cases {
		if got := NormalizeNowPaymentsStatus(tc.status); got != tc.want {
			t.Fatalf("NormalizeNowPaymentsStatus(%q) = %q, want %q", tc.status, got, tc.want)
		}
	}
}
