package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusInTransit  OrderStatus = "in_transit"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
	StatusRefunded   OrderStatus = "refunded"
)

var orderStatuses = map[OrderStatus]struct{}{
	StatusPending:    {},
	StatusConfirmed:  {},
	StatusProcessing: {},
	StatusShipped:    {},
	StatusInTransit:  {},
	StatusDelivered:  {},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderStatuses[s]
	return ok
}

// CancellableStatuses are the only states a cancel request may leave from.
var CancellableStatuses = []OrderStatus{StatusPending, StatusConfirmed}

func (s OrderStatus) Cancellable() bool {
	for _, st := range CancellableStatuses {
		if s == st {
			return true
		}
	}
	return false
}

const (
	PaymentCreditCard = "credit_card"
	PaymentDebitCard  = "debit_card"
	PaymentTransfer   = "transfer"
	PaymentCash       = "cash"
)

func ValidPaymentMethod(method string) bool {
	switch method {
	case PaymentCreditCard, PaymentDebitCard, PaymentTransfer, PaymentCash:
		return true
	}
	return false
}

// OrderItem snapshots the product at purchase time so later catalog edits do
// not rewrite history.
type OrderItem struct {
	ProductID   string          `bson:"productId" json:"productId"`
	ProductName string          `bson:"productName" json:"productName"`
	ProductSKU  string          `bson:"productSku" json:"productSku"`
	UnitPrice   decimal.Decimal `bson:"unitPrice" json:"unitPrice"`
	Quantity    int             `bson:"quantity" json:"quantity"`
	Subtotal    decimal.Decimal `bson:"subtotal" json:"subtotal"`
}

// OrderContact is the denormalized purchaser contact and shipping snapshot.
type OrderContact struct {
	FullName     string `bson:"fullName" json:"fullName"`
	Email        string `bson:"email" json:"email"`
	Phone        string `bson:"phone" json:"phone"`
	AddressLine1 string `bson:"addressLine1" json:"addressLine1"`
	AddressLine2 string `bson:"addressLine2,omitempty" json:"addressLine2,omitempty"`
	City         string `bson:"city" json:"city"`
	State        string `bson:"state" json:"state"`
	PostalCode   string `bson:"postalCode" json:"postalCode"`
	Country      string `bson:"country" json:"country"`
}

type Order struct {
	ID             string          `bson:"_id" json:"id"`
	OrderNumber    string          `bson:"orderNumber" json:"orderNumber"`
	UserID         *string         `bson:"userId" json:"userId"`
	Contact        OrderContact    `bson:"contact" json:"contact"`
	Notes          string          `bson:"notes,omitempty" json:"notes,omitempty"`
	Items          []OrderItem     `bson:"items" json:"items"`
	Subtotal       decimal.Decimal `bson:"subtotal" json:"subtotal"`
	ShippingCost   decimal.Decimal `bson:"shippingCost" json:"shippingCost"`
	Tax            decimal.Decimal `bson:"tax" json:"tax"`
	Discount       decimal.Decimal `bson:"discount" json:"discount"`
	Total          decimal.Decimal `bson:"total" json:"total"`
	CouponCode     string          `bson:"couponCode,omitempty" json:"couponCode,omitempty"`
	Status         OrderStatus     `bson:"status" json:"status"`
	PaymentMethod  string          `bson:"paymentMethod" json:"paymentMethod"`
	PaymentID      string          `bson:"paymentId,omitempty" json:"paymentId,omitempty"`
	IsPaid         bool            `bson:"isPaid" json:"isPaid"`
	PaidAt         *time.Time      `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	TrackingNumber string          `bson:"trackingNumber,omitempty" json:"trackingNumber,omitempty"`
	DeliveredAt    *time.Time      `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	// EstimatedDelivery is a calendar date, stored as UTC midnight.
	EstimatedDelivery *time.Time `bson:"estimatedDelivery,omitempty" json:"estimatedDelivery,omitempty"`
	CreatedAt         time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// OwnedBy reports whether userID placed the order. Guest orders have no owner.
func (o Order) OwnedBy(userID string) bool {
	return o.UserID != nil && userID != "" && *o.UserID == userID
}

// OrderStatusHistory is one append-only audit entry.
type OrderStatusHistory struct {
	ID          string      `bson:"_id" json:"id"`
	OrderID     string      `bson:"orderId" json:"orderId"`
	OrderNumber string      `bson:"orderNumber" json:"orderNumber"`
	Status      OrderStatus `bson:"status" json:"status"`
	Comment     string      `bson:"comment,omitempty" json:"comment,omitempty"`
	Actor       string      `bson:"actor" json:"actor"`
	CreatedAt   time.Time   `bson:"createdAt" json:"createdAt"`
}

// OrderFilter narrows order listings. Zero fields do not filter.
type OrderFilter struct {
	UserID        *string
	Status        OrderStatus
	PaymentMethod string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	Limit         int64
	Skip          int64
}

// StatusChange is a status write plus the fields that travel with it.
type StatusChange struct {
	To                OrderStatus
	At                time.Time
	TrackingNumber    string
	DeliveredAt       *time.Time
	EstimatedDelivery *time.Time
}
