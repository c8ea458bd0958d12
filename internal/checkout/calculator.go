package checkout

import (
	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Pricing holds the order-level rates. They come from configuration so they
// can be changed per deployment.
type Pricing struct {
	TaxRate          decimal.Decimal
	ShippingFlatRate decimal.Decimal
}

// Line is one priced line of an order.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Totals struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// LineSubtotal is unit price times quantity, rounded to cents.
func LineSubtotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// Calculate computes the order totals. Lines are rounded to cents before they
// are summed. The total is not clamped: an amount coupon larger than the rest
// of the order yields a negative total.
func (p Pricing) Calculate(lines []Line, coupon *models.Coupon) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(LineSubtotal(line.UnitPrice, line.Quantity))
	}

	shipping := p.ShippingFlatRate.Round(2)
	tax := subtotal.Mul(p.TaxRate).Round(2)
	discount := Discount(subtotal, coupon)

	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Discount: discount,
		Total:    subtotal.Add(shipping).Add(tax).Sub(discount),
	}
}

// Discount is the amount a coupon takes off the given subtotal.
func Discount(subtotal decimal.Decimal, coupon *models.Coupon) decimal.Decimal {
	if coupon == nil {
		return decimal.Zero
	}
	switch coupon.DiscountType {
	case models.DiscountAmount:
		return coupon.DiscountValue.Round(2)
	case models.DiscountPercent:
		return subtotal.Mul(coupon.DiscountValue).Div(hundred).Round(2)
	default:
		return decimal.Zero
	}
}

// MinorUnits converts an amount to cents for the payment provider.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
