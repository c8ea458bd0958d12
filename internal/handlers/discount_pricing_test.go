package handlers

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func boolPtr(b bool) *bool {
	return &b
}

func TestValidateDiscountFieldsRejectsDiscountNotBelowPrice(t *testing.T) {
	for _, discount := range []string{"100", "120"} {
		if err := validateDiscountFields(dec("100"), decPtr(discount)); err == nil {
			t.Fatalf("expected validation error for discountPrice=%s", discount)
		}
	}
}

func TestValidateDiscountFieldsRejectsBadPrice(t *testing.T) {
	for _, price := range []string{"0", "-1", "10.001"} {
		if err := validateDiscountFields(dec(price), nil); err == nil {
			t.Fatalf("expected validation error for price=%s", price)
		}
	}
}

func TestResolveDiscountUpdateRequiresDiscountWhenEnabling(t *testing.T) {
	_, err := resolveDiscountUpdate(dec("100"), nil, discountUpdateInput{DiscountEnabled: boolPtr(true)})
	if err == nil {
		t.Fatal("expected error when enabling a discount without a price")
	}
}

func TestResolveDiscountUpdateDisableClears(t *testing.T) {
	result, err := resolveDiscountUpdate(dec("100"), decPtr("80"), discountUpdateInput{DiscountEnabled: boolPtr(false)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.ClearDiscount || result.DiscountPrice != nil {
		t.Fatalf("expected discount to be cleared, got %+v", result)
	}
}

func TestResolveDiscountUpdatePriceDropBelowExistingDiscount(t *testing.T) {
	_, err := resolveDiscountUpdate(dec("100"), decPtr("80"), discountUpdateInput{Price: decPtr("70")})
	if err == nil {
		t.Fatal("expected error when new price undercuts the stored discount")
	}
}

func TestResolveDiscountUpdateSetsBoth(t *testing.T) {
	result, err := resolveDiscountUpdate(dec("100"), nil, discountUpdateInput{
		Price:         decPtr("120"),
		DiscountPrice: decPtr("99.90"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.SetPrice || !result.SetDiscountPrice || !result.DiscountPrice.Equal(dec("99.9")) {
		t.Fatalf("unexpected result %+v", result)
	}
}
