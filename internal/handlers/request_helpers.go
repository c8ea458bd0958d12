package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/checkout"
)

// RequestTimeout bounds every store round trip a handler makes.
var RequestTimeout = 5 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		log.Printf("[%s] panic recovered: %v", route, r)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func ensureDBConnection(ctx context.Context, db pinger) error {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return db.Ping(checkCtx)
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), RequestTimeout)
}

func respondWithError(c *gin.Context, status int, route string, message string) {
	log.Printf("[%s] returning error %d: %s", route, status, message)
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// respondServiceError maps checkout errors onto HTTP statuses. Anything it
// does not recognise is logged and hidden behind a 500.
func respondServiceError(c *gin.Context, route string, err error) {
	var (
		validationErr checkout.ValidationError
		notFoundErr   checkout.NotFoundError
		conflictErr   checkout.ConflictError
		paymentErr    checkout.PaymentError
	)
	switch {
	case errors.As(err, &validationErr):
		log.Printf("[%s] returning error %d: %v", route, http.StatusBadRequest, err)
		body := gin.H{"error": validationErr.Error()}
		if validationErr.Field != "" {
			body["field"] = validationErr.Field
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, body)
	case errors.As(err, &notFoundErr):
		respondWithError(c, http.StatusNotFound, route, notFoundErr.Error())
	case errors.As(err, &conflictErr):
		log.Printf("[%s] returning error %d: %v", route, http.StatusConflict, err)
		body := gin.H{"error": conflictErr.Reason}
		if conflictErr.ProductID != "" {
			body["productId"] = conflictErr.ProductID
			body["available"] = conflictErr.Available
			body["requested"] = conflictErr.Requested
		}
		if conflictErr.Status != "" {
			body["status"] = conflictErr.Status
		}
		c.AbortWithStatusJSON(http.StatusConflict, body)
	case errors.As(err, &paymentErr):
		log.Printf("[%s] returning error %d: %v", route, http.StatusPaymentRequired, err)
		c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{"error": paymentErr.Reason})
	case errors.Is(err, context.DeadlineExceeded):
		respondWithError(c, http.StatusGatewayTimeout, route, "request timed out")
	default:
		log.Printf("[%s] unexpected error: %v", route, err)
		respondWithError(c, http.StatusInternalServerError, route, "db error")
	}
}
