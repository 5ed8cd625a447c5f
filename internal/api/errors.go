package api

import (
	"errors"
	"net/http"

	"fleamarket-service/internal/models"
	"fleamarket-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict, "Order is already settled"
	case errors.Is(err, models.ErrProvider):
		return http.StatusBadGateway, "payment failed, please retry"
	case errors.Is(err, service.ErrSettlementFailed):
		return http.StatusServiceUnavailable, "payment failed, please retry"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

// writeError renders err; a partial checkout result is included so the
// client keeps the order id and state.
func (h *Handler) writeError(c *gin.Context, err error, res *service.CheckoutResult) {
	status, message := statusFor(err)
	if errors.Is(err, service.ErrEmptyCart) {
		message = "add items to the cart"
	}

	body := gin.H{
		"error":   message,
		"details": err.Error(),
	}
	if res != nil {
		body["state"] = res.State
		if res.OrderID != "" {
			body["orderId"] = res.OrderID
		}
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}
