package checkout

import (
	"testing"

	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testPricing() Pricing {
	return Pricing{TaxRate: dec("0.18"), ShippingFlatRate: dec("10.00")}
}

func assertAmount(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s: expected %s, got %s", label, want, got.StringFixed(2))
	}
}

func TestCalculateWithoutCoupon(t *testing.T) {
	totals := testPricing().Calculate([]Line{{UnitPrice: dec("100.00"), Quantity: 2}}, nil)

	assertAmount(t, "subtotal", totals.Subtotal, "200.00")
	assertAmount(t, "tax", totals.Tax, "36.00")
	assertAmount(t, "shipping", totals.Shipping, "10.00")
	assertAmount(t, "discount", totals.Discount, "0")
	assertAmount(t, "total", totals.Total, "246.00")
}

func TestCalculateWithPercentCoupon(t *testing.T) {
	coupon := &models.Coupon{DiscountType: models.DiscountPercent, DiscountValue: dec("10")}
	totals := testPricing().Calculate([]Line{{UnitPrice: dec("100.00"), Quantity: 2}}, coupon)

	assertAmount(t, "discount", totals.Discount, "20.00")
	assertAmount(t, "total", totals.Total, "226.00")
}

func TestCalculateAmountCouponMayDriveTotalNegative(t *testing.T) {
	coupon := &models.Coupon{DiscountType: models.DiscountAmount, DiscountValue: dec("500")}
	totals := testPricing().Calculate([]Line{{UnitPrice: dec("5.00"), Quantity: 1}}, coupon)

	assertAmount(t, "discount", totals.Discount, "500.00")
	// 5.00 + 10.00 + 0.90 - 500.00
	assertAmount(t, "total", totals.Total, "-484.10")
}

func TestCalculateRoundsEachLineBeforeSumming(t *testing.T) {
	lines := []Line{
		{UnitPrice: dec("0.333"), Quantity: 1},
		{UnitPrice: dec("0.333"), Quantity: 1},
		{UnitPrice: dec("0.333"), Quantity: 1},
	}
	totals := Pricing{TaxRate: decimal.Zero, ShippingFlatRate: decimal.Zero}.Calculate(lines, nil)

	// per line 0.33, summing unrounded would give 1.00
	assertAmount(t, "subtotal", totals.Subtotal, "0.99")
}

func TestCalculateTotalIdentity(t *testing.T) {
	prices := []string{"19.99", "0.05", "1234.56", "7.10", "3.335"}
	coupons := []*models.Coupon{
		nil,
		{DiscountType: models.DiscountPercent, DiscountValue: dec("15")},
		{DiscountType: models.DiscountPercent, DiscountValue: dec("33.3")},
		{DiscountType: models.DiscountAmount, DiscountValue: dec("12.50")},
	}

	for i, price := range prices {
		for qty := 1; qty <= 4; qty++ {
			for _, coupon := range coupons {
				lines := []Line{{UnitPrice: dec(price), Quantity: qty}, {UnitPrice: dec(prices[(i+1)%len(prices)]), Quantity: 1}}
				totals := testPricing().Calculate(lines, coupon)

				want := totals.Subtotal.Add(totals.Shipping).Add(totals.Tax).Sub(totals.Discount)
				if !totals.Total.Equal(want) {
					t.Fatalf("total identity broken: %+v", totals)
				}
				for label, amount := range map[string]decimal.Decimal{
					"subtotal": totals.Subtotal,
					"tax":      totals.Tax,
					"discount": totals.Discount,
					"total":    totals.Total,
				} {
					if !amount.Equal(amount.Round(2)) {
						t.Fatalf("%s not rounded to cents: %s", label, amount)
					}
				}
				if coupon == nil && !totals.Discount.IsZero() {
					t.Fatalf("expected zero discount without coupon, got %s", totals.Discount)
				}
				if coupon != nil && coupon.DiscountType == models.DiscountPercent {
					expected := totals.Subtotal.Mul(coupon.DiscountValue).Div(decimal.NewFromInt(100)).Round(2)
					if !totals.Discount.Equal(expected) {
						t.Fatalf("percent discount: expected %s, got %s", expected, totals.Discount)
					}
				}
				if coupon != nil && coupon.DiscountType == models.DiscountAmount && !totals.Discount.Equal(coupon.DiscountValue) {
					t.Fatalf("amount discount: expected %s, got %s", coupon.DiscountValue, totals.Discount)
				}
			}
		}
	}
}

func TestMinorUnits(t *testing.T) {
	if got := MinorUnits(dec("246.00")); got != 24600 {
		t.Fatalf("expected 24600, got %d", got)
	}
	if got := MinorUnits(dec("0.015")); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}
