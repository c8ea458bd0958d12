package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            string           `bson:"_id" json:"id"`
	Name          string           `bson:"name" json:"name"`
	SKU           string           `bson:"sku" json:"sku"`
	Price         decimal.Decimal  `bson:"price" json:"price"`
	DiscountPrice *decimal.Decimal `bson:"discountPrice,omitempty" json:"discountPrice,omitempty"`
	Stock         int              `bson:"stock" json:"stock"`
	IsActive      bool             `bson:"isActive" json:"isActive"`
	IsDeleted     bool             `bson:"isDeleted" json:"isDeleted,omitempty"`
	CreatedAt     time.Time        `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time        `bson:"updatedAt" json:"updatedAt"`
}

// OnDiscount reports whether the discount price undercuts the list price.
func (p Product) OnDiscount() bool {
	return p.DiscountPrice != nil && p.DiscountPrice.IsPositive() && p.DiscountPrice.LessThan(p.Price)
}

// EffectivePrice is the unit price a buyer pays today.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.OnDiscount() {
		return *p.DiscountPrice
	}
	return p.Price
}

// Available is true when the product can be sold at all.
func (p Product) Available() bool {
	return p.IsActive && !p.IsDeleted
}

// ProductPatch is a partial product update. Nil fields are left alone.
type ProductPatch struct {
	Name          *string
	SKU           *string
	Price         *decimal.Decimal
	DiscountPrice *decimal.Decimal
	ClearDiscount bool
	Stock         *int
	IsActive      *bool
	IsDeleted     *bool
	UpdatedAt     time.Time
}

// Apply returns p with the patch applied.
func (patch ProductPatch) Apply(p Product) Product {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.SKU != nil {
		p.SKU = *patch.SKU
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.ClearDiscount {
		p.DiscountPrice = nil
	} else if patch.DiscountPrice != nil {
		discount := *patch.DiscountPrice
		p.DiscountPrice = &discount
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}
	if patch.IsDeleted != nil {
		p.IsDeleted = *patch.IsDeleted
	}
	p.UpdatedAt = patch.UpdatedAt
	return p
}

type ProductFilter struct {
	AvailableOnly bool
	Skip          int64
	Limit         int64
}
