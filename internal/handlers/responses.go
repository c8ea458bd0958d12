package handlers

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/checkout"
	"storefront/internal/models"
)

// money renders an amount the way every response does: two fixed decimals.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type productResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	SKU            string    `json:"sku,omitempty"`
	Price          string    `json:"price"`
	DiscountPrice  *string   `json:"discountPrice"`
	EffectivePrice string    `json:"effectivePrice"`
	OnDiscount     bool      `json:"onDiscount"`
	Stock          int       `json:"stock"`
	IsActive       bool      `json:"isActive"`
	IsDeleted      bool      `json:"isDeleted,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func newProductResponse(p models.Product) productResponse {
	resp := productResponse{
		ID:             p.ID,
		Name:           p.Name,
		SKU:            p.SKU,
		Price:          money(p.Price),
		EffectivePrice: money(p.EffectivePrice()),
		OnDiscount:     p.OnDiscount(),
		Stock:          p.Stock,
		IsActive:       p.IsActive,
		IsDeleted:      p.IsDeleted,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if p.DiscountPrice != nil {
		discount := money(*p.DiscountPrice)
		resp.DiscountPrice = &discount
	}
	return resp
}

func newProductResponses(products []models.Product) []productResponse {
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, newProductResponse(p))
	}
	return out
}

type couponResponse struct {
	ID            string              `json:"id"`
	Code          string              `json:"code"`
	DiscountType  models.DiscountType `json:"discountType"`
	DiscountValue string              `json:"discountValue"`
	IsActive      bool                `json:"isActive"`
	ExpiresAt     *time.Time          `json:"expiresAt"`
	UsageLimit    *int                `json:"usageLimit"`
	UsedCount     int                 `json:"usedCount"`
	CreatedAt     time.Time           `json:"createdAt"`
}

func newCouponResponse(c models.Coupon) couponResponse {
	return couponResponse{
		ID:            c.ID,
		Code:          c.Code,
		DiscountType:  c.DiscountType,
		DiscountValue: money(c.DiscountValue),
		IsActive:      c.IsActive,
		ExpiresAt:     c.ExpiresAt,
		UsageLimit:    c.UsageLimit,
		UsedCount:     c.UsedCount,
		CreatedAt:     c.CreatedAt,
	}
}

type orderItemResponse struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	ProductSKU  string `json:"productSku,omitempty"`
	UnitPrice   string `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
	Subtotal    string `json:"subtotal"`
}

type historyResponse struct {
	Status    models.OrderStatus `json:"status"`
	Comment   string             `json:"comment,omitempty"`
	Actor     string             `json:"actor"`
	CreatedAt time.Time          `json:"createdAt"`
}

type orderResponse struct {
	ID             string              `json:"id"`
	OrderNumber    string              `json:"orderNumber"`
	UserID         *string             `json:"userId"`
	Contact        models.OrderContact `json:"contact"`
	Notes          string              `json:"notes,omitempty"`
	Items          []orderItemResponse `json:"items"`
	Subtotal       string              `json:"subtotal"`
	ShippingCost   string              `json:"shippingCost"`
	Tax            string              `json:"tax"`
	Discount       string              `json:"discount"`
	Total          string              `json:"total"`
	CouponCode     string              `json:"couponCode,omitempty"`
	Status         models.OrderStatus  `json:"status"`
	PaymentMethod  string              `json:"paymentMethod"`
	PaymentID      string              `json:"paymentId,omitempty"`
	IsPaid         bool                `json:"isPaid"`
	PaidAt         *time.Time          `json:"paidAt,omitempty"`
	TrackingNumber string              `json:"trackingNumber,omitempty"`
	DeliveredAt    *time.Time          `json:"deliveredAt,omitempty"`
	// EstimatedDelivery is formatted YYYY-MM-DD.
	EstimatedDelivery string            `json:"estimatedDelivery,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
	History           []historyResponse `json:"history,omitempty"`
}

func newOrderResponse(o models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			ProductSKU:  item.ProductSKU,
			UnitPrice:   money(item.UnitPrice),
			Quantity:    item.Quantity,
			Subtotal:    money(item.Subtotal),
		})
	}
	return orderResponse{
		ID:                o.ID,
		OrderNumber:       o.OrderNumber,
		UserID:            o.UserID,
		Contact:           o.Contact,
		Notes:             o.Notes,
		Items:             items,
		Subtotal:          money(o.Subtotal),
		ShippingCost:      money(o.ShippingCost),
		Tax:               money(o.Tax),
		Discount:          money(o.Discount),
		Total:             money(o.Total),
		CouponCode:        o.CouponCode,
		Status:            o.Status,
		PaymentMethod:     o.PaymentMethod,
		PaymentID:         o.PaymentID,
		IsPaid:            o.IsPaid,
		PaidAt:            o.PaidAt,
		TrackingNumber:    o.TrackingNumber,
		DeliveredAt:       o.DeliveredAt,
		EstimatedDelivery: dateOnly(o.EstimatedDelivery),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func newOrderDetailResponse(detail *checkout.OrderDetail) orderResponse {
	resp := newOrderResponse(detail.Order)
	resp.History = make([]historyResponse, 0, len(detail.History))
	for _, h := range detail.History {
		resp.History = append(resp.History, historyResponse{
			Status:    h.Status,
			Comment:   h.Comment,
			Actor:     h.Actor,
			CreatedAt: h.CreatedAt,
		})
	}
	return resp
}

func newOrderResponses(orders []models.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, newOrderResponse(o))
	}
	return out
}

func dateOnly(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}
