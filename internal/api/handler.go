package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fleamarket-service/internal/idempotency"
	"fleamarket-service/internal/models"
	"fleamarket-service/internal/payment"
	"fleamarket-service/internal/service"
	"fleamarket-service/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options carries the settings of the HTTP surface
type Options struct {
	ClientBaseURL  string
	AllowedOrigins []string
	// Probes are pinged by /ready, keyed by name
	Probes map[string]Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	catalog  service.Catalog
	orders   *service.OrderService
	checkout *service.CheckoutService
	reports  *service.ReportService
	opts     Options
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	catalog service.Catalog,
	orders *service.OrderService,
	checkout *service.CheckoutService,
	reports *service.ReportService,
	opts Options,
) *Handler {
	return &Handler{
		catalog:  catalog,
		orders:   orders,
		checkout: checkout,
		reports:  reports,
		opts:     opts,
		logger:   util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(h.opts.AllowedOrigins))
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/catalog", h.listCatalog)

		v1.GET("/cart/:session", h.getCart)
		v1.DELETE("/cart/:session", h.clearCart)
		v1.PUT("/cart/:session/items/:productId", h.updateCartItem)
		v1.POST("/cart/:session/checkout", h.checkoutCart)

		v1.POST("/orders", h.createOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)

		v1.GET("/admin/summary", h.adminSummary)

		v1.POST("/payments/confirm", h.confirmPayment)
		v1.POST("/payments/:method/ready", h.preparePayment)
	}

	router.GET("/payment/:method/:result", h.providerReturn)
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings the store and session backends
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, probe := range h.opts.Probes {
		if err := probe.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) listCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"products": h.catalog.Products()})
}

func (h *Handler) getCart(c *gin.Context) {
	view, err := h.checkout.Cart(c.Request.Context(), c.Param("session"))
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.checkout.ClearCart(c.Request.Context(), c.Param("session")); err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (h *Handler) updateCartItem(c *gin.Context) {
	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	view, err := h.checkout.UpdateCart(c.Request.Context(), c.Param("session"), c.Param("productId"), *req.Quantity)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, view)
}

// checkoutCart handles the pay button: order creation plus payment intent
func (h *Handler) checkoutCart(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.SessionID = c.Param("session")
	req.IdempotencyKey = idempotency.Key(c)

	res, err := h.checkout.Submit(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err, res)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, res)
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context())
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) adminSummary(c *gin.Context) {
	dash, err := h.reports.Dashboard(c.Request.Context())
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, dash)
}

// preparePayment starts a payment for an existing order
func (h *Handler) preparePayment(c *gin.Context) {
	var req payment.PrepareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.checkout.Pay(c.Request.Context(), c.Param("method"), req)
	if err != nil {
		h.writeError(c, err, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// confirmPayment applies an outcome reported by the stall owner or a
// provider webhook
func (h *Handler) confirmPayment(c *gin.Context) {
	var req payment.Settlement
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.checkout.Complete(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, res)
}

// providerReturn handles the browser coming back from a provider checkout
// page and sends it on to the client app.
func (h *Handler) providerReturn(c *gin.Context) {
	method := c.Param("method")
	result := c.Param("result")
	orderID := c.Query("orderId")

	var outcome string
	switch result {
	case "success":
		outcome = models.PaymentStatusCompleted
	case "fail":
		outcome = models.PaymentStatusFailed
	case "cancel":
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown payment result"})
		return
	}

	if outcome != "" && orderID != "" {
		txID := c.Query("paymentKey")
		if txID == "" {
			txID = c.Query("pg_token")
		}

		_, err := h.checkout.Complete(c.Request.Context(), payment.Settlement{
			OrderID:       orderID,
			Method:        method,
			Outcome:       outcome,
			TransactionID: txID,
		})
		if err != nil && !errors.Is(err, models.ErrInvalidTransition) {
			h.logger.Warn("Provider return could not settle order",
				zap.String("order_id", orderID),
				zap.String("method", method),
				zap.String("result", result),
				zap.Error(err))
			result = "fail"
		}
	}

	c.Redirect(http.StatusFound, h.clientURL(result, orderID))
}

func (h *Handler) clientURL(result, orderID string) string {
	q := url.Values{}
	q.Set("payment", result)
	if orderID != "" {
		q.Set("orderId", orderID)
	}
	return fmt.Sprintf("%s/?%s", h.opts.ClientBaseURL, q.Encode())
}

// corsMiddleware allows the client app origins; "*" or none allows all
func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", idempotency.Header},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
