package models

import "strings"

// CreditPackage describes a purchasable credit bundle. The catalog is static;
// the Stripe products/prices are provisioned out-of-band from the same table.
type CreditPackage struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Credits     int    `json:"credits"`
	PriceCents  int64  `json:"price_cents"`
	Currency    string `json:"currency"`
}

var CreditPackages = []CreditPackage{
	{Name: "Mini Pack", Description: "Great for testing a few games", Credits: 6, PriceCents: 100, Currency: "usd"},
	{Name: "Starter Pack", Description: "Perfect for trying out our AI game generation", Credits: 50, PriceCents: 500, Currency: "usd"},
	{Name: "Creator Pack", Description: "Great for regular game creators", Credits: 120, PriceCents: 1000, Currency: "usd"},
	{Name: "Pro Pack", Description: "Best value for serious game developers", Credits: 300, PriceCents: 2000, Currency: "usd"},
}

// PackageByCredits returns the catalog entry with the given credit amount.
func PackageByCredits(credits int) (CreditPackage, bool) {
	for _, p := range CreditPackages {
		if p.Credits == credits {
			return p, true
		}
	}
	return CreditPackage{}, false
}

// PackageByAmount maps a paid amount back to a catalog entry. Used as a
// fallback when a webhook arrives for an order created out-of-band
// (e.g. a Stripe payment link) and no payment_orders row exists.
func PackageByAmount(amountCents int64, currency string) (CreditPackage, bool) {
	for _, p := range CreditPackages {
		if p.PriceCents == amountCents && strings.EqualFold(p.Currency, currency) {
			return p, true
		}
	}
	return CreditPackage{}, false
}
