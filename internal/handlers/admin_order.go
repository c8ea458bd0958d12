package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/checkout"
	"storefront/internal/middleware"
	"storefront/internal/models"
)

type updateOrderStatusRequest struct {
	Status         string `json:"status" binding:"required"`
	Comment        string `json:"comment"`
	TrackingNumber string `json:"trackingNumber"`
	// EstimatedDelivery is a YYYY-MM-DD date.
	EstimatedDelivery string `json:"estimatedDelivery" binding:"omitempty,datetime=2006-01-02"`
}

func adminActor(c *gin.Context) checkout.Actor {
	return checkout.Actor{UserID: middleware.UserID(c), Admin: true}
}

func GetAllOrders(svc *checkout.Service) gin.HandlerFunc {
	return listOrders(svc, "GET /admin/api/orders", adminActor)
}

func GetOrderAdmin(svc *checkout.Service) gin.HandlerFunc {
	return getOrder(svc, "GET /admin/api/orders/:number", adminActor)
}

func CancelOrderAdmin(svc *checkout.Service) gin.HandlerFunc {
	return cancelOrder(svc, "PUT /admin/api/orders/:number/cancel", adminActor)
}

func UpdateOrderStatus(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/orders/:number/status"
		defer handlePanic(c, route)

		var req updateOrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		update := checkout.StatusUpdate{
			Status:         models.OrderStatus(req.Status),
			Comment:        req.Comment,
			TrackingNumber: req.TrackingNumber,
		}
		if req.EstimatedDelivery != "" {
			date, err := time.Parse(time.DateOnly, req.EstimatedDelivery)
			if err != nil {
				respondValidationError(c, err)
				return
			}
			update.EstimatedDelivery = &date
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		order, err := svc.UpdateStatus(ctx, c.Param("number"), update, adminActor(c))
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "order status updated",
			"order":   newOrderResponse(*order),
		})
	}
}

func DeleteOrder(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/orders/:number"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := svc.DeleteOrder(ctx, c.Param("number")); err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "order deleted"})
	}
}
