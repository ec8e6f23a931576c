package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/service"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	requestIDHeader   = "X-Request-ID"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	orderService   *service.OrderService
	paymentService *service.PaymentService
	auth           Authenticator
	db             Pinger
	requestTimeout time.Duration
	logger         *zap.Logger
}

// NewHandler creates a new HTTP handler. A zero requestTimeout disables the
// per-request deadline.
func NewHandler(
	orderService *service.OrderService,
	paymentService *service.PaymentService,
	auth Authenticator,
	db Pinger,
	requestTimeout time.Duration,
) *Handler {
	return &Handler{
		orderService:   orderService,
		paymentService: paymentService,
		auth:           auth,
		db:             db,
		requestTimeout: requestTimeout,
		logger:         util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(h.requestLogger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := router.Group("/", authMiddleware(h.auth), h.deadline())
	{
		authed.POST("/order", h.placeOrder)
		authed.POST("/order/quote", h.quoteOrder)
		authed.GET("/order/:id", h.getOrder)
		authed.POST("/payment/confirm", h.confirmPayment)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only while the database answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type lineItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type placeOrderRequest struct {
	PaymentMethod   string            `json:"payment_method"`
	OrderItems      []lineItemRequest `json:"orderItems"`
	ShippingAddress string            `json:"shipping_address"`
}

type quoteRequest struct {
	OrderItems []lineItemRequest `json:"orderItems"`
}

type confirmPaymentRequest struct {
	OrderID int64 `json:"order_id" binding:"required"`
}

func toLineItems(items []lineItemRequest) []service.LineItem {
	lines := make([]service.LineItem, 0, len(items))
	for _, item := range items {
		lines = append(lines, service.LineItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

// placeOrder handles order placement
func (h *Handler) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	placed, replayed, err := h.orderService.PlaceOrder(c.Request.Context(), callerID(c), c.GetHeader(idempotencyHeader),
		service.PlaceOrderInput{
			Items:           toLineItems(req.OrderItems),
			PaymentMethod:   req.PaymentMethod,
			ShippingAddress: req.ShippingAddress,
		})
	if err != nil {
		writeError(c, err)
		return
	}

	if replayed {
		c.Header(replayedHeader, "true")
	}
	c.JSON(http.StatusCreated, orderResponse(placed))
}

// quoteOrder prices a line set without reserving stock
func (h *Handler) quoteOrder(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	quote, err := h.orderService.Quote(c.Request.Context(), toLineItems(req.OrderItems))
	if err != nil {
		writeError(c, err)
		return
	}

	lines := make([]gin.H, 0, len(quote.Lines))
	for _, line := range quote.Lines {
		lines = append(lines, gin.H{
			"product_id": line.ProductID,
			"name":       line.ProductName,
			"quantity":   line.Quantity,
			"unit_price": line.UnitPrice.StringFixed(2),
			"line_total": line.LineTotal.StringFixed(2),
			"in_stock":   line.InStock,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"items":       lines,
		"total_price": quote.Total.StringFixed(2),
	})
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || orderID <= 0 {
		badRequest(c, "invalid order id")
		return
	}

	placed, err := h.orderService.GetOrder(c.Request.Context(), orderID, callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, orderResponse(placed))
}

// confirmPayment marks the caller's order paid
func (h *Handler) confirmPayment(c *gin.Context) {
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "order_id is required")
		return
	}

	transition, err := h.paymentService.ConfirmPayment(c.Request.Context(), req.OrderID, callerID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id":     transition.OrderID,
		"new_status":   transition.To,
		"payment_date": transition.PaymentDate,
	})
}

func orderResponse(placed *service.PlacedOrder) gin.H {
	order := placed.Order

	items := make([]gin.H, 0, len(placed.Items))
	for _, item := range placed.Items {
		items = append(items, itemResponse(item))
	}

	body := gin.H{
		"order_id":         order.ID,
		"client_id":        order.ClientID,
		"order_date":       order.OrderDate,
		"shipping_address": order.ShippingAddress,
		"payment_method":   order.PaymentMethod,
		"total_price":      order.TotalPrice.StringFixed(2),
		"status":           order.Status,
		"items":            items,
	}
	if order.PaymentDate != nil {
		body["payment_date"] = order.PaymentDate
	}
	return body
}

func itemResponse(item models.OrderItem) gin.H {
	return gin.H{
		"product_id": item.ProductID,
		"quantity":   item.Quantity,
		"unit_price": item.UnitPrice.StringFixed(2),
		"store_id":   item.StoreID,
	}
}

// deadline bounds each request's context
func (h *Handler) deadline() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.requestTimeout <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), h.requestTimeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// requestLogger logs one line per request through zap and tags it with a request ID
func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		h.logger.Info("HTTP request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
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
