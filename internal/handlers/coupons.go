package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/checkout"
)

type validateCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

func ValidateCoupon(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /coupons/validate"
		defer handlePanic(c, route)

		var req validateCouponRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		result, err := svc.ValidateCoupon(ctx, req.Code)
		if err != nil {
			respondServiceError(c, route, err)
			return
		}

		body := gin.H{
			"valid":    result.Valid,
			"discount": money(result.Discount),
		}
		if result.Valid {
			body["type"] = result.Type
		}
		c.JSON(http.StatusOK, body)
	}
}
