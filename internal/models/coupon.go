package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountAmount  DiscountType = "amount"
)

func (t DiscountType) Valid() bool {
	return t == DiscountPercent || t == DiscountAmount
}

type Coupon struct {
	ID            string          `bson:"_id" json:"id"`
	Code          string          `bson:"code" json:"code"`
	DiscountType  DiscountType    `bson:"discountType" json:"discountType"`
	DiscountValue decimal.Decimal `bson:"discountValue" json:"discountValue"`
	IsActive      bool            `bson:"isActive" json:"isActive"`
	ExpiresAt     *time.Time      `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
	// UsageLimit is recorded but not enforced at checkout.
	UsageLimit *int      `bson:"usageLimit,omitempty" json:"usageLimit,omitempty"`
	UsedCount  int       `bson:"usedCount" json:"usedCount"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
}

// ApplicableAt reports whether the coupon can discount an order placed at now.
func (c Coupon) ApplicableAt(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	return c.ExpiresAt == nil || c.ExpiresAt.After(now)
}

// NormalizeCouponCode is the canonical stored form of a coupon code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CouponPatch is a partial coupon update. Nil fields are left alone.
type CouponPatch struct {
	DiscountValue   *decimal.Decimal
	IsActive        *bool
	ExpiresAt       *time.Time
	ClearExpiry     bool
	UsageLimit      *int
	ClearUsageLimit bool
}

func (patch CouponPatch) Apply(c Coupon) Coupon {
	if patch.DiscountValue != nil {
		c.DiscountValue = *patch.DiscountValue
	}
	if patch.IsActive != nil {
		c.IsActive = *patch.IsActive
	}
	if patch.ClearExpiry {
		c.ExpiresAt = nil
	} else if patch.ExpiresAt != nil {
		expires := *patch.ExpiresAt
		c.ExpiresAt = &expires
	}
	if patch.ClearUsageLimit {
		c.UsageLimit = nil
	} else if patch.UsageLimit != nil {
		limit := *patch.UsageLimit
		c.UsageLimit = &limit
	}
	return c
}
