package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"storefront/internal/database"
	"storefront/internal/events"
	"storefront/internal/models"
	"storefront/internal/payments"
)

// MaxLineQuantity caps the units of one product in a single order, after
// duplicate lines are merged.
const MaxLineQuantity = 10000

// orderNumberAttempts bounds how often a checkout retries after drawing an
// order number that is already taken.
const orderNumberAttempts = 3

var errOrderNumberTaken = errors.New("order number already taken")

type LineItemRequest struct {
	ProductID string
	Quantity  int
}

type CheckoutRequest struct {
	Actor         Actor
	Contact       models.OrderContact
	Notes         string
	Items         []LineItemRequest
	CouponCode    string
	PaymentMethod string
}

type paymentProof struct {
	intentID string
	paidAt   time.Time
	// amountMinor is checked against the computed total when set.
	amountMinor *int64
}

func (r CheckoutRequest) validate() error {
	if len(r.Items) == 0 {
		return ValidationError{Field: "items", Message: "at least one item is required"}
	}
	for i, item := range r.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return ValidationError{Field: fmt.Sprintf("items[%d].productId", i), Message: "is required"}
		}
		if item.Quantity < 1 {
			return ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "must be at least 1"}
		}
		if item.Quantity > MaxLineQuantity {
			return ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Message: fmt.Sprintf("must be at most %d", MaxLineQuantity)}
		}
	}
	if _, err := r.mergedItems(); err != nil {
		return err
	}

	required := map[string]string{
		"fullName":     r.Contact.FullName,
		"email":        r.Contact.Email,
		"phone":        r.Contact.Phone,
		"addressLine1": r.Contact.AddressLine1,
		"city":         r.Contact.City,
		"state":        r.Contact.State,
		"postalCode":   r.Contact.PostalCode,
		"country":      r.Contact.Country,
	}
	for _, field := range []string{"fullName", "email", "phone", "addressLine1", "city", "state", "postalCode", "country"} {
		if strings.TrimSpace(required[field]) == "" {
			return ValidationError{Field: field, Message: "is required"}
		}
	}
	if _, err := mail.ParseAddress(r.Contact.Email); err != nil {
		return ValidationError{Field: "email", Message: "is invalid"}
	}
	if r.PaymentMethod != "" && !models.ValidPaymentMethod(r.PaymentMethod) {
		return ValidationError{Field: "paymentMethod", Message: "is invalid"}
	}
	return nil
}

// mergedItems sums quantities of repeated products, keeping first-seen order.
// A merged line may not exceed MaxLineQuantity.
func (r CheckoutRequest) mergedItems() ([]LineItemRequest, error) {
	index := make(map[string]int, len(r.Items))
	out := make([]LineItemRequest, 0, len(r.Items))
	for _, item := range r.Items {
		id := strings.TrimSpace(item.ProductID)
		if item.Quantity < 1 || item.Quantity > MaxLineQuantity {
			return nil, ValidationError{Field: "items", Message: fmt.Sprintf("quantity for product %s is out of range", id)}
		}
		if i, ok := index[id]; ok {
			if out[i].Quantity > MaxLineQuantity-item.Quantity {
				return nil, ValidationError{Field: "items", Message: fmt.Sprintf("total quantity for product %s must be at most %d", id, MaxLineQuantity)}
			}
			out[i].Quantity += item.Quantity
			continue
		}
		index[id] = len(out)
		out = append(out, LineItemRequest{ProductID: id, Quantity: item.Quantity})
	}
	return out, nil
}

type ConfirmRequest struct {
	PaymentIntentID string
	Order           CheckoutRequest
}

// ConfirmPayment checks the payment with the provider and, when it has
// succeeded, places the order as confirmed and paid.
func (s *Service) ConfirmPayment(ctx context.Context, req ConfirmRequest) (*models.Order, error) {
	intentID := strings.TrimSpace(req.PaymentIntentID)
	if intentID == "" {
		return nil, ValidationError{Field: "paymentIntentId", Message: "is required"}
	}
	if err := req.Order.validate(); err != nil {
		return nil, err
	}

	proof := &paymentProof{intentID: intentID}
	if payments.IsSimulated(intentID) {
		if !s.allowSimulated {
			return nil, PaymentError{IntentID: intentID, Reason: "simulated payments are disabled"}
		}
		log.Println("[PAYMENT] [INFO] accepting simulated payment:", intentID)
	} else {
		intent, err := s.gateway.RetrieveIntent(ctx, intentID)
		if errors.Is(err, payments.ErrUnknownIntent) {
			return nil, NotFoundError{Resource: "payment intent", ID: intentID}
		}
		if err != nil {
			return nil, PaymentError{IntentID: intentID, Reason: "payment provider unavailable", Err: err}
		}
		if !intent.Succeeded() {
			return nil, PaymentError{IntentID: intentID, Reason: fmt.Sprintf("payment not completed (%s)", intent.Status)}
		}
		amount := intent.AmountMinor
		proof.amountMinor = &amount
	}
	proof.paidAt = s.now()

	order := req.Order
	if order.PaymentMethod == "" {
		order.PaymentMethod = models.PaymentCreditCard
	}
	return s.placeOrder(ctx, order, *proof)
}

// placeOrder validates stock, prices the order and persists it in a single
// transaction: order with item snapshots, stock decrements, coupon usage and
// the first history entry. Either all of it is written or none of it.
func (s *Service) placeOrder(ctx context.Context, req CheckoutRequest, proof paymentProof) (*models.Order, error) {
	items, err := req.mergedItems()
	if err != nil {
		return nil, err
	}

	var placed models.Order
	for attempt := 1; ; attempt++ {
		err = s.store.WithTx(ctx, func(ctx context.Context, repo database.Repository) error {
			now := s.now()

			lines := make([]Line, 0, len(items))
			orderItems := make([]models.OrderItem, 0, len(items))
			for _, item := range items {
				product, err := repo.GetProduct(ctx, item.ProductID)
				if errors.Is(err, database.ErrNotFound) {
					return NotFoundError{Resource: "product", ID: item.ProductID}
				}
				if err != nil {
					return err
				}
				if !product.Available() {
					return NotFoundError{Resource: "product", ID: item.ProductID}
				}
				if item.Quantity > product.Stock {
					return insufficientStock(product.ID, product.Stock, item.Quantity)
				}

				unitPrice := product.EffectivePrice()
				lines = append(lines, Line{UnitPrice: unitPrice, Quantity: item.Quantity})
				orderItems = append(orderItems, models.OrderItem{
					ProductID:   product.ID,
					ProductName: product.Name,
					ProductSKU:  product.SKU,
					UnitPrice:   unitPrice,
					Quantity:    item.Quantity,
					Subtotal:    LineSubtotal(unitPrice, item.Quantity),
				})
			}

			coupon, err := s.resolveCoupon(ctx, repo, req.CouponCode, now)
			if err != nil {
				return err
			}
			totals := s.pricing.Calculate(lines, coupon)

			if proof.amountMinor != nil {
				if expected := MinorUnits(totals.Total); *proof.amountMinor != expected {
					return PaymentError{
						IntentID: proof.intentID,
						Reason:   fmt.Sprintf("paid amount %d does not match order total %d", *proof.amountMinor, expected),
					}
				}
			}

			for _, item := range items {
				ok, err := repo.DecrementStock(ctx, item.ProductID, item.Quantity)
				if err != nil {
					return err
				}
				if !ok {
					available := 0
					if current, err := repo.GetProduct(ctx, item.ProductID); err == nil {
						available = current.Stock
					}
					return insufficientStock(item.ProductID, available, item.Quantity)
				}
			}

			order := models.Order{
				ID:            newID(),
				OrderNumber:   s.newOrderNumber(),
				Contact:       trimContact(req.Contact),
				Notes:         strings.TrimSpace(req.Notes),
				Items:         orderItems,
				Subtotal:      totals.Subtotal,
				ShippingCost:  totals.Shipping,
				Tax:           totals.Tax,
				Discount:      totals.Discount,
				Total:         totals.Total,
				Status:        models.StatusConfirmed,
				PaymentMethod: req.PaymentMethod,
				PaymentID:     proof.intentID,
				IsPaid:        true,
				PaidAt:        &proof.paidAt,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if req.Actor.UserID != "" {
				userID := req.Actor.UserID
				order.UserID = &userID
			}
			if coupon != nil {
				order.CouponCode = coupon.Code
			}

			if err := repo.InsertOrder(ctx, &order); err != nil {
				switch database.DuplicateKey(err) {
				case database.KeyOrderNumber:
					return errOrderNumberTaken
				case database.KeyPaymentID:
					return ConflictError{Reason: "an order already exists for this payment"}
				}
				if errors.Is(err, database.ErrDuplicate) {
					return ConflictError{Reason: "order conflicts with an existing order"}
				}
				return err
			}

			if coupon != nil {
				if err := repo.IncrementCouponUsage(ctx, coupon.ID); err != nil {
					return err
				}
			}

			if err := repo.AppendStatusHistory(ctx, models.OrderStatusHistory{
				ID:          newID(),
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				Status:      order.Status,
				Comment:     "Order created",
				Actor:       req.Actor.label(),
				CreatedAt:   now,
			}); err != nil {
				return err
			}

			placed = order
			return nil
		})
		if !errors.Is(err, errOrderNumberTaken) || attempt >= orderNumberAttempts {
			break
		}
		log.Printf("[ORDER] [WARN] order number collision, retrying (attempt %d)", attempt)
	}
	if err != nil {
		return nil, err
	}

	if placed.UserID != nil {
		log.Printf("[ORDER] [INFO] order %s created for user %s total=%s", placed.OrderNumber, *placed.UserID, placed.Total.StringFixed(2))
	} else {
		log.Printf("[ORDER] [INFO] guest order %s created total=%s", placed.OrderNumber, placed.Total.StringFixed(2))
	}
	s.publish(ctx, events.OrderConfirmed, placed)
	return &placed, nil
}

// resolveCoupon returns nil when no code was given or the code does not name
// an applicable coupon: checkout goes on without a discount in that case.
func (s *Service) resolveCoupon(ctx context.Context, repo database.Repository, code string, now time.Time) (*models.Coupon, error) {
	code = models.NormalizeCouponCode(code)
	if code == "" {
		return nil, nil
	}
	coupon, err := repo.FindCouponByCode(ctx, code)
	if errors.Is(err, database.ErrNotFound) {
		log.Println("[COUPON] [INFO] ignoring unknown coupon:", code)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !coupon.ApplicableAt(now) {
		log.Println("[COUPON] [INFO] ignoring inactive or expired coupon:", code)
		return nil, nil
	}
	return &coupon, nil
}

func trimContact(c models.OrderContact) models.OrderContact {
	return models.OrderContact{
		FullName:     strings.TrimSpace(c.FullName),
		Email:        strings.ToLower(strings.TrimSpace(c.Email)),
		Phone:        strings.TrimSpace(c.Phone),
		AddressLine1: strings.TrimSpace(c.AddressLine1),
		AddressLine2: strings.TrimSpace(c.AddressLine2),
		City:         strings.TrimSpace(c.City),
		State:        strings.TrimSpace(c.State),
		PostalCode:   strings.TrimSpace(c.PostalCode),
		Country:      strings.TrimSpace(c.Country),
	}
}

// CreatePaymentIntent asks the provider for an intent the client can pay.
func (s *Service) CreatePaymentIntent(ctx context.Context, amountMinor int64, actor Actor) (payments.Intent, error) {
	if amountMinor <= 0 {
		return payments.Intent{}, ValidationError{Field: "amount", Message: "must be greater than zero"}
	}
	metadata := map[string]string{"user_id": "guest"}
	if actor.UserID != "" {
		metadata["user_id"] = actor.UserID
	}
	intent, err := s.gateway.CreateIntent(ctx, payments.IntentRequest{
		AmountMinor: amountMinor,
		Currency:    s.currency,
		Metadata:    metadata,
	})
	if err != nil {
		return payments.Intent{}, PaymentError{Reason: "could not create payment intent", Err: err}
	}
	log.Printf("[PAYMENT] [INFO] intent %s created amount=%d", intent.ID, amountMinor)
	return intent, nil
}
