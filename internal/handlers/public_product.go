package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/database"
	"storefront/internal/models"
)

// listProducts serves both the storefront listing (active only) and the
// admin listing (everything not soft-deleted).
func listProducts(db database.Backend, route string, availableOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, route)

		log.Printf("[%s] hit page=%s limit=%s", route, c.Query("page"), c.Query("limit"))

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		products, total, err := db.ListProducts(ctx, models.ProductFilter{
			AvailableOnly: availableOnly,
			Skip:          (page - 1) * limit,
			Limit:         limit,
		})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Printf("[%s] returning %d products", route, len(products))
		c.JSON(http.StatusOK, gin.H{
			"data": newProductResponses(products),
			"pagination": gin.H{
				"page":  page,
				"limit": limit,
				"total": total,
			},
		})
	}
}

func GetProducts(db database.Backend) gin.HandlerFunc {
	return listProducts(db, "GET /products", true)
}

func GetProduct(db database.Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/:id"
		defer handlePanic(c, route)

		id := strings.TrimSpace(c.Param("id"))
		if id == "" {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		product, err := db.GetProduct(ctx, id)
		if errors.Is(err, database.ErrNotFound) || (err == nil && !product.Available()) {
			respondWithError(c, http.StatusNotFound, route, "product not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		c.JSON(http.StatusOK, newProductResponse(product))
	}
}
