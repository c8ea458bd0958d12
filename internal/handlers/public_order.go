package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/checkout"
	"storefront/internal/models"
)

type cancelOrderRequest struct {
	Comment string `json:"comment"`
}

// parseOrderFilter reads status, paymentMethod, from, to, page and limit.
// Dates are RFC 3339 or YYYY-MM-DD; a bare "to" date covers the whole day.
func parseOrderFilter(c *gin.Context) (models.OrderFilter, string, bool) {
	var filter models.OrderFilter

	if status := strings.TrimSpace(c.Query("status")); status != "" {
		filter.Status = models.OrderStatus(status)
	}
	if method := strings.TrimSpace(c.Query("paymentMethod")); method != "" {
		if !models.ValidPaymentMethod(method) {
			return filter, "invalid paymentMethod", false
		}
		filter.PaymentMethod = method
	}
	if from := strings.TrimSpace(c.Query("from")); from != "" {
		t, _, err := parseDateParam(from)
		if err != nil {
			return filter, "invalid from date", false
		}
		filter.CreatedFrom = &t
	}
	if to := strings.TrimSpace(c.Query("to")); to != "" {
		t, dateOnly, err := parseDateParam(to)
		if err != nil {
			return filter, "invalid to date", false
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		filter.CreatedTo = &t
	}

	page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
	if err != nil {
		return filter, err.Error(), false
	}
	filter.Skip = (page - 1) * limit
	filter.Limit = limit
	return filter, "", true
}

func parseDateParam(value string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, false, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	return t, true, err
}

func listOrders(svc *checkout.Service, route string, actorOf func(*gin.Context) checkout.Actor) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, route)

		filter, msg, ok := parseOrderFilter(c)
		if !ok {
			respondWithError(c, http.StatusBadRequest, route, msg)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		orders, err := svc.ListOrders(ctx, actorOf(c), filter)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data": newOrderResponses(orders),
			"pagination": gin.H{
				"page":  filter.Skip/filter.Limit + 1,
				"limit": filter.Limit,
			},
		})
	}
}

func getOrder(svc *checkout.Service, route string, actorOf func(*gin.Context) checkout.Actor) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		detail, err := svc.GetOrder(ctx, c.Param("number"), actorOf(c))
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, newOrderDetailResponse(detail))
	}
}

func cancelOrder(svc *checkout.Service, route string, actorOf func(*gin.Context) checkout.Actor) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, route)

		var req cancelOrderRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondValidationError(c, err)
				return
			}
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		order, err := svc.CancelOrder(ctx, c.Param("number"), actorOf(c), req.Comment)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "order cancelled",
			"order":   newOrderResponse(*order),
		})
	}
}

func GetMyOrders(svc *checkout.Service) gin.HandlerFunc {
	return listOrders(svc, "GET /orders", customerActor)
}

func GetMyOrder(svc *checkout.Service) gin.HandlerFunc {
	return getOrder(svc, "GET /orders/:number", customerActor)
}

func CancelMyOrder(svc *checkout.Service) gin.HandlerFunc {
	return cancelOrder(svc, "PUT /orders/:number/cancel", customerActor)
}
