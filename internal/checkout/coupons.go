package checkout

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"storefront/internal/database"
	"storefront/internal/models"
)

type CouponValidation struct {
	Valid    bool                `json:"valid"`
	Discount decimal.Decimal     `json:"discount"`
	Type     models.DiscountType `json:"type,omitempty"`
}

// ValidateCoupon tells a client whether a code would apply right now. It
// never changes the coupon.
func (s *Service) ValidateCoupon(ctx context.Context, code string) (CouponValidation, error) {
	code = models.NormalizeCouponCode(code)
	if code == "" {
		return CouponValidation{}, ValidationError{Field: "code", Message: "is required"}
	}
	coupon, err := s.store.FindCouponByCode(ctx, code)
	if errors.Is(err, database.ErrNotFound) {
		return CouponValidation{Discount: decimal.Zero}, nil
	}
	if err != nil {
		return CouponValidation{}, err
	}
	if !coupon.ApplicableAt(s.now()) {
		return CouponValidation{Discount: decimal.Zero}, nil
	}
	return CouponValidation{
		Valid:    true,
		Discount: coupon.DiscountValue,
		Type:     coupon.DiscountType,
	}, nil
}
