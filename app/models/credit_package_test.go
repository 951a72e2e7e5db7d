package models

import "testing"

func TestPackageByCredits(t *testing.T) {
	for _, want := range CreditPackages {
		got, ok := PackageByCredits(want.Credits)
		if !ok {
			t.Fatalf("expected package with %d credits", want.Credits)
		}
		if got.PriceCents != want.PriceCents {
			t.Fatalf("package %d credits: price %d, want %d", want.Credits, got.PriceCents, want.PriceCents)
		}
	}

	if _, ok := PackageByCredits(7); ok {
		t.Fatalf("expected no package with 7 credits")
	}
}

func TestPackageByAmount(t *testing.T) {
	pkg, ok := PackageByAmount(500, "usd")
	if !ok || pkg.Credits != 50 {
		t.Fatalf("expected Starter Pack for 500 cents usd, got %+v ok=%v", pkg, ok)
	}

	// currency match is case-insensitive
	pkg, ok = PackageByAmount(2000, "USD")
	if !ok || pkg.Credits != 300 {
		t.Fatalf("expected Pro Pack for 2000 cents USD, got %+v ok=%v", pkg, ok)
	}

	if _, ok := PackageByAmount(500, "eur"); ok {
		t.Fatalf("expected no package for eur")
	}
	if _, ok := PackageByAmount(501, "usd"); ok {
		t.Fatalf("expected no package for odd amount")
	}
}
