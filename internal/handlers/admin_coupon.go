package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/database"
	"storefront/internal/models"
)

var hundred = decimal.NewFromInt(100)

type createCouponRequest struct {
	Code          string           `json:"code" binding:"required"`
	DiscountType  string           `json:"discountType" binding:"required,oneof=percent amount"`
	DiscountValue *decimal.Decimal `json:"discountValue" binding:"required"`
	IsActive      *bool            `json:"isActive"`
	ExpiresAt     *time.Time       `json:"expiresAt"`
	UsageLimit    *int             `json:"usageLimit" binding:"omitempty,min=0"`
}

type updateCouponRequest struct {
	DiscountValue   *decimal.Decimal `json:"discountValue"`
	IsActive        *bool            `json:"isActive"`
	ExpiresAt       *time.Time       `json:"expiresAt"`
	ClearExpiry     bool             `json:"clearExpiry"`
	UsageLimit      *int             `json:"usageLimit" binding:"omitempty,min=0"`
	ClearUsageLimit bool             `json:"clearUsageLimit"`
}

func validateDiscountValue(kind models.DiscountType, value decimal.Decimal) error {
	if !value.IsPositive() {
		return fmt.Errorf("discountValue must be greater than 0")
	}
	if kind == models.DiscountPercent && value.GreaterThan(hundred) {
		return fmt.Errorf("discountValue must be at most 100 for percent coupons")
	}
	return nil
}

func GetAllCoupons(db database.Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/coupons"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		coupons, err := db.ListCoupons(ctx)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		out := make([]couponResponse, 0, len(coupons))
		for _, coupon := range coupons {
			out = append(out, newCouponResponse(coupon))
		}
		c.JSON(http.StatusOK, out)
	}
}

func CreateCoupon(db database.Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/coupons"
		defer handlePanic(c, route)

		var req createCouponRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		code := models.NormalizeCouponCode(req.Code)
		if code == "" {
			respondWithError(c, http.StatusBadRequest, route, "code is required")
			return
		}
		kind := models.DiscountType(req.DiscountType)
		if err := validateDiscountValue(kind, *req.DiscountValue); err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		coupon := models.Coupon{
			ID:            uuid.NewString(),
			Code:          code,
			DiscountType:  kind,
			DiscountValue: *req.DiscountValue,
			IsActive:      true,
			ExpiresAt:     req.ExpiresAt,
			UsageLimit:    req.UsageLimit,
			CreatedAt:     time.Now().UTC(),
		}
		if req.IsActive != nil {
			coupon.IsActive = *req.IsActive
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := db.InsertCoupon(ctx, &coupon); err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				respondWithError(c, http.StatusConflict, route, "coupon code already exists")
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Printf("[COUPON] [INFO] coupon %s created", coupon.Code)
		c.JSON(http.StatusCreated, newCouponResponse(coupon))
	}
}

func UpdateCoupon(db database.Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/coupons/:id"
		defer handlePanic(c, route)

		var req updateCouponRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		id := strings.TrimSpace(c.Param("id"))
		if req.DiscountValue != nil {
			existing, err := db.GetCoupon(ctx, id)
			if errors.Is(err, database.ErrNotFound) {
				respondWithError(c, http.StatusNotFound, route, "coupon not found")
				return
			}
			if err != nil {
				respondWithError(c, http.StatusInternalServerError, route, "db error")
				return
			}
			if err := validateDiscountValue(existing.DiscountType, *req.DiscountValue); err != nil {
				respondWithError(c, http.StatusBadRequest, route, err.Error())
				return
			}
		}

		coupon, err := db.UpdateCoupon(ctx, id, models.CouponPatch{
			DiscountValue:   req.DiscountValue,
			IsActive:        req.IsActive,
			ExpiresAt:       req.ExpiresAt,
			ClearExpiry:     req.ClearExpiry,
			UsageLimit:      req.UsageLimit,
			ClearUsageLimit: req.ClearUsageLimit,
		})
		if errors.Is(err, database.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "coupon not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Printf("[COUPON] [INFO] coupon %s updated", coupon.Code)
		c.JSON(http.StatusOK, newCouponResponse(coupon))
	}
}
