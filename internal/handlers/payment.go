package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/checkout"
	"storefront/internal/idempotency"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/models"
)

type paymentIntentRequest struct {
	// Amount is in minor currency units.
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

type checkoutItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1,max=10000"`
}

type checkoutOrderRequest struct {
	FullName      string                `json:"fullName" binding:"required"`
	Email         string                `json:"email" binding:"required,email"`
	Phone         string                `json:"phone" binding:"required"`
	AddressLine1  string                `json:"addressLine1" binding:"required"`
	AddressLine2  string                `json:"addressLine2"`
	City          string                `json:"city" binding:"required"`
	State         string                `json:"state" binding:"required"`
	PostalCode    string                `json:"postalCode" binding:"required"`
	Country       string                `json:"country" binding:"required"`
	Notes         string                `json:"notes"`
	CouponCode    string                `json:"couponCode"`
	PaymentMethod string                `json:"paymentMethod"`
	Items         []checkoutItemRequest `json:"items" binding:"required,min=1,dive"`
}

type confirmPaymentRequest struct {
	PaymentIntentID string               `json:"paymentIntentId" binding:"required"`
	Order           checkoutOrderRequest `json:"order"`
}

func (r checkoutOrderRequest) toCheckout(actor checkout.Actor) checkout.CheckoutRequest {
	items := make([]checkout.LineItemRequest, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, checkout.LineItemRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return checkout.CheckoutRequest{
		Actor: actor,
		Contact: models.OrderContact{
			FullName:     r.FullName,
			Email:        r.Email,
			Phone:        r.Phone,
			AddressLine1: r.AddressLine1,
			AddressLine2: r.AddressLine2,
			City:         r.City,
			State:        r.State,
			PostalCode:   r.PostalCode,
			Country:      r.Country,
		},
		Notes:         r.Notes,
		Items:         items,
		CouponCode:    r.CouponCode,
		PaymentMethod: r.PaymentMethod,
	}
}

// customerActor is the caller on public routes: a logged-in user or a guest.
func customerActor(c *gin.Context) checkout.Actor {
	return checkout.Actor{UserID: middleware.UserID(c)}
}

func CreatePaymentIntent(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /payments/intent"
		defer handlePanic(c, route)

		var req paymentIntentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		intent, err := svc.CreatePaymentIntent(ctx, req.Amount, customerActor(c))
		if err != nil {
			respondServiceError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"clientSecret":    intent.ClientSecret,
			"paymentIntentId": intent.ID,
		})
	}
}

// ConfirmPayment verifies the payment and places the order. A repeated
// Idempotency-Key replays the order number of the first successful request.
func ConfirmPayment(svc *checkout.Service, keys idempotency.Store, m *metrics.ServerMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /payments/confirm"
		defer handlePanic(c, route)

		var req confirmPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			m.CheckoutOutcome(metrics.OutcomeRejected)
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		actor := customerActor(c)
		key := idempotency.ScopedKey(c.Request, actor.UserID)
		settled := false
		defer func() {
			// Runs while a panic unwinds too, so the key never stays pending.
			if key != "" && !settled {
				if err := keys.Release(c.Request.Context(), key); err != nil {
					log.Printf("[IDEMPOTENCY] [ERROR] release %s failed: %v", key, err)
				}
			}
		}()
		if key != "" {
			record, reserved, err := keys.Reserve(ctx, key)
			switch {
			case err != nil:
				log.Printf("[IDEMPOTENCY] [ERROR] reserve %s failed, continuing without replay: %v", key, err)
				key = ""
			case !reserved && record.State == idempotency.StateDone:
				settled = true
				log.Printf("[IDEMPOTENCY] [INFO] replaying %s -> %s", key, record.Value)
				m.CheckoutOutcome(metrics.OutcomeReplayed)
				c.JSON(http.StatusOK, gin.H{
					"message":     "order already created",
					"orderNumber": record.Value,
				})
				return
			case !reserved:
				settled = true
				m.CheckoutOutcome(metrics.OutcomeConflict)
				respondWithError(c, http.StatusConflict, route, "a request with this idempotency key is in progress")
				return
			}
		}

		order, err := svc.ConfirmPayment(ctx, checkout.ConfirmRequest{
			PaymentIntentID: req.PaymentIntentID,
			Order:           req.Order.toCheckout(actor),
		})
		if err != nil {
			m.CheckoutOutcome(checkoutOutcome(err))
			respondServiceError(c, route, err)
			return
		}

		settled = true
		if key != "" {
			if err := keys.Complete(c.Request.Context(), key, order.OrderNumber); err != nil {
				log.Printf("[IDEMPOTENCY] [ERROR] complete %s failed: %v", key, err)
			}
		}
		m.CheckoutOutcome(metrics.OutcomeCreated)

		c.JSON(http.StatusCreated, gin.H{
			"message":     "order created",
			"orderNumber": order.OrderNumber,
			"order":       newOrderResponse(*order),
		})
	}
}

func checkoutOutcome(err error) string {
	var (
		validationErr checkout.ValidationError
		notFoundErr   checkout.NotFoundError
		conflictErr   checkout.ConflictError
		paymentErr    checkout.PaymentError
	)
	switch {
	case errors.As(err, &validationErr), errors.As(err, &notFoundErr):
		return metrics.OutcomeRejected
	case errors.As(err, &conflictErr):
		return metrics.OutcomeConflict
	case errors.As(err, &paymentErr):
		return metrics.OutcomePayment
	default:
		return metrics.OutcomeError
	}
}
