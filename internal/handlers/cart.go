package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/checkout"
	"storefront/internal/middleware"
	"storefront/internal/models"
)

// CartSessionHeader carries a guest's cart session id. It is issued on the
// first cart response and must be sent back on later requests.
const CartSessionHeader = "X-Cart-Session"

type addCartItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"omitempty,min=1,max=10000"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1,max=10000"`
}

type cartItemResponse struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"productId"`
	ProductName string    `json:"productName,omitempty"`
	ProductSKU  string    `json:"productSku,omitempty"`
	Quantity    int       `json:"quantity"`
	UnitPrice   string    `json:"unitPrice"`
	Subtotal    string    `json:"subtotal"`
	Stock       int       `json:"stock"`
	Available   bool      `json:"available"`
	AddedAt     time.Time `json:"addedAt"`
}

type cartResponse struct {
	ID         string             `json:"id"`
	UserID     *string            `json:"userId,omitempty"`
	Items      []cartItemResponse `json:"items"`
	TotalPrice string             `json:"totalPrice"`
	TotalItems int                `json:"totalItems"`
	ItemCount  int                `json:"itemCount"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

func newCartResponse(v *checkout.CartView) cartResponse {
	items := make([]cartItemResponse, 0, len(v.Lines))
	for _, line := range v.Lines {
		items = append(items, cartItemResponse{
			ID:          line.Item.ID,
			ProductID:   line.Item.ProductID,
			ProductName: line.ProductName,
			ProductSKU:  line.ProductSKU,
			Quantity:    line.Item.Quantity,
			UnitPrice:   money(line.UnitPrice),
			Subtotal:    money(line.Subtotal),
			Stock:       line.Stock,
			Available:   line.Available,
			AddedAt:     line.Item.AddedAt,
		})
	}
	return cartResponse{
		ID:         v.Cart.ID,
		UserID:     v.Cart.UserID,
		Items:      items,
		TotalPrice: money(v.TotalPrice),
		TotalItems: v.TotalItems,
		ItemCount:  len(items),
		CreatedAt:  v.Cart.CreatedAt,
		UpdatedAt:  v.Cart.UpdatedAt,
	}
}

// cartOwner picks the signed-in user or the guest session. A guest without a
// session gets a new one, echoed back in CartSessionHeader.
func cartOwner(c *gin.Context) models.CartOwner {
	if userID := middleware.UserID(c); userID != "" {
		return models.CartOwner{UserID: userID}
	}
	session := strings.TrimSpace(c.GetHeader(CartSessionHeader))
	if session == "" {
		session = checkout.NewCartSessionID()
	}
	c.Header(CartSessionHeader, session)
	return models.CartOwner{SessionID: session}
}

// cartHandler runs one cart operation and renders the resulting cart.
func cartHandler(route string, status int, message string, op func(ctx context.Context, c *gin.Context, owner models.CartOwner) (*checkout.CartView, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		view, err := op(ctx, c, cartOwner(c))
		if err != nil {
			if !c.IsAborted() {
				respondServiceError(c, route, err)
			}
			return
		}

		body := gin.H{"cart": newCartResponse(view)}
		if message != "" {
			body["message"] = message
		}
		c.JSON(status, body)
	}
}

// GetCart shows the caller's cart. Signed-in callers always get their own
// cart; a guest session header is ignored for them.
func GetCart(svc *checkout.CartService) gin.HandlerFunc {
	return cartHandler("GET /cart", http.StatusOK, "", func(ctx context.Context, _ *gin.Context, owner models.CartOwner) (*checkout.CartView, error) {
		return svc.GetCart(ctx, owner)
	})
}

func AddCartItem(svc *checkout.CartService) gin.HandlerFunc {
	return cartHandler("POST /cart/items", http.StatusCreated, "product added to cart", func(ctx context.Context, c *gin.Context, owner models.CartOwner) (*checkout.CartView, error) {
		var req addCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return nil, err
		}
		if req.Quantity == 0 {
			req.Quantity = 1
		}
		return svc.AddItem(ctx, owner, req.ProductID, req.Quantity)
	})
}

func UpdateCartItem(svc *checkout.CartService) gin.HandlerFunc {
	return cartHandler("PUT /cart/items/:id", http.StatusOK, "quantity updated", func(ctx context.Context, c *gin.Context, owner models.CartOwner) (*checkout.CartView, error) {
		var req updateCartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return nil, err
		}
		return svc.UpdateItem(ctx, owner, c.Param("id"), req.Quantity)
	})
}

func RemoveCartItem(svc *checkout.CartService) gin.HandlerFunc {
	return cartHandler("DELETE /cart/items/:id", http.StatusOK, "item removed from cart", func(ctx context.Context, c *gin.Context, owner models.CartOwner) (*checkout.CartView, error) {
		return svc.RemoveItem(ctx, owner, c.Param("id"))
	})
}

func ClearCart(svc *checkout.CartService) gin.HandlerFunc {
	return cartHandler("DELETE /cart", http.StatusOK, "cart cleared", func(ctx context.Context, c *gin.Context, owner models.CartOwner) (*checkout.CartView, error) {
		return svc.Clear(ctx, owner)
	})
}
