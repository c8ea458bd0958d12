package handlers

import (
	"errors"
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

type createProductRequest struct {
	Name          string           `json:"name" binding:"required"`
	SKU           string           `json:"sku"`
	Price         *decimal.Decimal `json:"price" binding:"required"`
	DiscountPrice *decimal.Decimal `json:"discountPrice"`
	Stock         *int             `json:"stock" binding:"required,min=0"`
	IsActive      *bool            `json:"isActive"`
}

type updateProductRequest struct {
	Name            *string          `json:"name"`
	SKU             *string          `json:"sku"`
	Price           *decimal.Decimal `json:"price"`
	DiscountEnabled *bool            `json:"discountEnabled"`
	DiscountPrice   *decimal.Decimal `json:"discountPrice"`
	Stock           *int             `json:"stock" binding:"omitempty,min=0"`
	IsActive        *bool            `json:"isActive"`
}

func GetAllProducts(db database.Backend) gin.HandlerFunc {
	return listProducts(db, "GET /admin/api/products", false)
}

func CreateProduct(db database.Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/products"
		defer handlePanic(c, route)

		var req createProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Println("CreateProduct RETURN 400:", err)
			respondValidationError(c, err)
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondWithError(c, http.StatusBadRequest, route, "name is required")
			return
		}
		if err := validateDiscountFields(*req.Price, req.DiscountPrice); err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		now := time.Now().UTC()
		product := models.Product{
			ID:            uuid.NewString(),
			Name:          name,
			SKU:           strings.TrimSpace(req.SKU),
			Price:         *req.Price,
			DiscountPrice: req.DiscountPrice,
			Stock:         *req.Stock,
			IsActive:      true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if req.IsActive != nil {
			product.IsActive = *req.IsActive
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := db.InsertProduct(ctx, &product); err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				respondWithError(c, http.StatusConflict, route, "sku already exists")
				return
			}
			log.Println("CreateProduct insert error:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Println("CreateProduct insert success:", product.ID)
		c.JSON(http.StatusCreated, newProductResponse(product))
	}
}

func UpdateProduct(db database.Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/products/:id"
		defer handlePanic(c, route)

		id := strings.TrimSpace(c.Param("id"))

		var req updateProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Println("UpdateProduct RETURN 400:", err)
			respondValidationError(c, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		existing, err := db.GetProduct(ctx, id)
		if errors.Is(err, database.ErrNotFound) || (err == nil && existing.IsDeleted) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		pricing, err := resolveDiscountUpdate(existing.Price, existing.DiscountPrice, discountUpdateInput{
			Price:           req.Price,
			DiscountEnabled: req.DiscountEnabled,
			DiscountPrice:   req.DiscountPrice,
		})
		if err != nil {
			log.Println("UpdateProduct RETURN 400:", err)
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		patch := models.ProductPatch{
			Stock:         req.Stock,
			IsActive:      req.IsActive,
			ClearDiscount: pricing.ClearDiscount,
			UpdatedAt:     time.Now().UTC(),
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				respondWithError(c, http.StatusBadRequest, route, "name cannot be empty")
				return
			}
			patch.Name = &name
		}
		if req.SKU != nil {
			sku := strings.TrimSpace(*req.SKU)
			patch.SKU = &sku
		}
		if pricing.SetPrice {
			patch.Price = &pricing.Price
		}
		if pricing.SetDiscountPrice {
			patch.DiscountPrice = pricing.DiscountPrice
		}

		product, err := db.UpdateProduct(ctx, id, patch)
		switch {
		case errors.Is(err, database.ErrNotFound):
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		case errors.Is(err, database.ErrDuplicate):
			respondWithError(c, http.StatusConflict, route, "sku already exists")
			return
		case err != nil:
			log.Println("UpdateProduct update error:", err)
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, newProductResponse(product))
	}
}

// DeleteProduct soft-deletes so past orders keep resolving their snapshots.
func DeleteProduct(db database.Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /admin/api/products/:id"
		defer handlePanic(c, route)

		ctx, cancel := requestContext(c)
		defer cancel()

		deleted, inactive := true, false
		_, err := db.UpdateProduct(ctx, strings.TrimSpace(c.Param("id")), models.ProductPatch{
			IsDeleted: &deleted,
			IsActive:  &inactive,
			UpdatedAt: time.Now().UTC(),
		})
		if errors.Is(err, database.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "product deleted"})
	}
}
