package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"stock-service/internal/middleware"
	"stock-service/internal/models"
	"stock-service/internal/repository"
	"stock-service/internal/services"
)

// StockHandler exposes the stock accounting API
type StockHandler struct {
	stock     *services.StockService
	alerts    *services.AlertService
	analytics *services.AnalyticsService
	orders    *services.OrderIntegrationService
	repo      *repository.StockRepository
	logger    *logrus.Entry
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(
	stock *services.StockService,
	alerts *services.AlertService,
	analytics *services.AnalyticsService,
	orders *services.OrderIntegrationService,
	repo *repository.StockRepository,
	logger *logrus.Logger,
) *StockHandler {
	log := logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &StockHandler{
		stock:     stock,
		alerts:    alerts,
		analytics: analytics,
		orders:    orders,
		repo:      repo,
		logger:    log.WithField("component", "stock-handler"),
	}
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error:   models.Error{Code: code, Message: message},
	})
}

// mapServiceError translates service errors to HTTP responses
func (h *StockHandler) mapServiceError(c *gin.Context, err error) {
	var insufficientErr *services.InsufficientStockError
	var orderErr *services.OrderDeductionError

	switch {
	case errors.Is(err, services.ErrProductNotFound):
		respondError(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "Product not found")
	case errors.Is(err, services.ErrAlertNotFound):
		respondError(c, http.StatusNotFound, "ALERT_NOT_FOUND", "Alert not found")
	case errors.Is(err, services.ErrInvalidQuantity), errors.Is(err, services.ErrQuantityTooLarge):
		respondError(c, http.StatusBadRequest, "INVALID_QUANTITY", err.Error())
	case errors.As(err, &insufficientErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":      "INSUFFICIENT_STOCK",
				"message":   insufficientErr.Error(),
				"requested": insufficientErr.Requested,
				"available": insufficientErr.Available,
			},
		})
	case errors.As(err, &orderErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ORDER_DEDUCTION_FAILED",
				"message": orderErr.Error(),
				"items":   orderErr.Items,
			},
		})
	case errors.Is(err, services.ErrBatchIntegrity):
		respondError(c, http.StatusConflict, "BATCH_INTEGRITY_FAULT", err.Error())
	case errors.Is(err, services.ErrInvalidAlertTransition):
		respondError(c, http.StatusConflict, "INVALID_ALERT_TRANSITION", err.Error())
	default:
		h.logger.WithError(err).Error("Unhandled service error")
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func paginationMeta(page, limit int, total int64) *models.PaginationMeta {
	totalPages := int(total) / limit
	if int(total)%limit > 0 {
		totalPages++
	}
	return &models.PaginationMeta{
		Page:       page,
		Limit:      limit,
		TotalItems: total,
		TotalPages: totalPages,
	}
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

func actorID(c *gin.Context) *string {
	if userID := c.GetString("user_id"); userID != "" {
		return &userID
	}
	return nil
}

// ========== Product Operations ==========

// CreateProduct creates a new vendor product with zero stock
func (h *StockHandler) CreateProduct(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	product, err := h.stock.CreateProduct(c.Request.Context(), tenantID, &req, actorID(c))
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.ProductResponse{Success: true, Data: product})
}

// ListProducts lists vendor products with pagination
func (h *StockHandler) ListProducts(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	vendorID := middleware.GetVendorID(c)
	page, limit := parsePagination(c)

	products, total, err := h.stock.ListProducts(c.Request.Context(), tenantID, vendorID, page, limit)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ProductListResponse{
		Success:    true,
		Data:       products,
		Pagination: paginationMeta(page, limit, total),
	})
}

// GetProduct retrieves a product by ID
func (h *StockHandler) GetProduct(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	productID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	product, err := h.stock.GetProduct(c.Request.Context(), tenantID, productID)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ProductResponse{Success: true, Data: product})
}

// UpdateProduct patches product metadata (never the stock counter)
func (h *StockHandler) UpdateProduct(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	productID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	product, err := h.stock.UpdateProduct(c.Request.Context(), tenantID, productID, updates)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ProductResponse{Success: true, Data: product})
}

// ========== Stock Movements ==========

// RecordStockIn records a stock increase for a product
func (h *StockHandler) RecordStockIn(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	productID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req models.RecordStockInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	meta := services.MovementMeta{
		ReferenceID: req.ReferenceID,
		Reason:      req.Reason,
		Notes:       req.Notes,
		Batch:       req.Batch,
		ActorID:     actorID(c),
	}
	if req.MovementType != nil {
		meta.Type = *req.MovementType
	}
	if req.ReferenceType != nil {
		meta.ReferenceType = *req.ReferenceType
	}

	result, err := h.stock.RecordStockIn(c.Request.Context(), tenantID, productID, req.Quantity, meta)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.MovementResponse{Success: true, Data: result})
}

// RecordStockOut records a stock decrease for a product
func (h *StockHandler) RecordStockOut(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	productID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req models.RecordStockOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	meta := services.MovementMeta{
		ReferenceID: req.ReferenceID,
		Reason:      req.Reason,
		Notes:       req.Notes,
		ActorID:     actorID(c),
	}
	if req.MovementType != nil {
		meta.Type = *req.MovementType
	}
	if req.ReferenceType != nil {
		meta.ReferenceType = *req.ReferenceType
	}

	result, err := h.stock.RecordStockOut(c.Request.Context(), tenantID, productID, req.Quantity, meta)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.MovementResponse{Success: true, Data: result})
}

// ListProductMovements returns a product's ledger, newest first
func (h *StockHandler) ListProductMovements(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	productID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	page, limit := parsePagination(c)

	movements, total, err := h.stock.ListMovementsByProduct(c.Request.Context(), tenantID, productID, page, limit)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MovementListResponse{
		Success:    true,
		Data:       movements,
		Pagination: paginationMeta(page, limit, total),
	})
}

// ListMovements returns the vendor-level ledger with filters
func (h *StockHandler) ListMovements(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	vendorID := middleware.GetVendorID(c)
	page, limit := parsePagination(c)

	filters := repository.MovementFilters{Page: page, Limit: limit}
	if v := c.Query("productId"); v != "" {
		productID, err := uuid.Parse(v)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid productId format")
			return
		}
		filters.ProductID = &productID
	}
	if v := c.Query("type"); v != "" {
		movementType := models.MovementType(v)
		filters.Type = &movementType
	}
	if v := c.Query("referenceType"); v != "" {
		referenceType := models.ReferenceType(v)
		filters.ReferenceType = &referenceType
	}

	movements, total, err := h.stock.ListMovementsByVendor(c.Request.Context(), tenantID, vendorID, filters)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MovementListResponse{
		Success:    true,
		Data:       movements,
		Pagination: paginationMeta(page, limit, total),
	})
}

// ========== Threshold Config ==========

// GetStockConfig returns the per-product threshold config
func (h *StockHandler) GetStockConfig(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	productID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	config, err := h.stock.GetConfig(c.Request.Context(), tenantID, productID)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.StockConfigResponse{Success: true, Data: config})
}

// UpdateStockConfig patches thresholds and re-evaluates alerts
func (h *StockHandler) UpdateStockConfig(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	productID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req models.UpdateStockConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	config, err := h.stock.UpdateConfig(c.Request.Context(), tenantID, productID, &req)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.StockConfigResponse{Success: true, Data: config})
}

// ========== Batches ==========

// ListProductBatches returns a product's open batches in FEFO order
func (h *StockHandler) ListProductBatches(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	productID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	batches, err := h.stock.ListOpenBatches(c.Request.Context(), tenantID, productID)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.BatchListResponse{Success: true, Data: batches})
}

// ListExpiringBatches returns a vendor's batches expiring inside the window
func (h *StockHandler) ListExpiringBatches(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	vendorID := middleware.GetVendorID(c)
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	batches, err := h.stock.ListExpiringBatches(c.Request.Context(), tenantID, vendorID, days)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.BatchListResponse{Success: true, Data: batches})
}

// ========== Alerts ==========

// ListAlerts lists alerts with filtering and pagination
func (h *StockHandler) ListAlerts(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	page, limit := parsePagination(c)

	filters := repository.AlertFilters{
		VendorID: middleware.GetVendorID(c),
		Page:     page,
		Limit:    limit,
	}
	if v := c.Query("productId"); v != "" {
		productID, err := uuid.Parse(v)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid productId format")
			return
		}
		filters.ProductID = &productID
	}
	if v := c.Query("status"); v != "" {
		status := models.AlertStatus(v)
		filters.Status = &status
	}
	if v := c.Query("type"); v != "" {
		alertType := models.AlertType(v)
		filters.Type = &alertType
	}

	alerts, total, err := h.repo.ListAlerts(c.Request.Context(), tenantID, filters)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AlertListResponse{
		Success:    true,
		Data:       alerts,
		Pagination: paginationMeta(page, limit, total),
	})
}

// GetAlertSummary returns vendor alert counts by status and type
func (h *StockHandler) GetAlertSummary(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	vendorID := middleware.GetVendorID(c)

	summary, err := h.repo.GetAlertSummary(c.Request.Context(), tenantID, vendorID)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AlertSummaryResponse{Success: true, Data: summary})
}

// GetAlert retrieves a single alert
func (h *StockHandler) GetAlert(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	alertID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	alert, err := h.repo.GetAlertByID(c.Request.Context(), tenantID, alertID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "ALERT_NOT_FOUND", "Alert not found")
			return
		}
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AlertResponse{Success: true, Data: alert})
}

// AcknowledgeAlert marks an ACTIVE alert as acknowledged
func (h *StockHandler) AcknowledgeAlert(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	alertID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req models.UpdateAlertStatusRequest
	_ = c.ShouldBindJSON(&req)
	by := req.ActionBy
	if by == nil {
		by = actorID(c)
	}

	alert, err := h.alerts.Acknowledge(c.Request.Context(), tenantID, alertID, by)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AlertResponse{Success: true, Data: alert})
}

// ResolveAlert marks an alert as resolved (terminal)
func (h *StockHandler) ResolveAlert(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	alertID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	alert, err := h.alerts.Resolve(c.Request.Context(), tenantID, alertID)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AlertResponse{Success: true, Data: alert})
}

// DismissAlert marks an alert as dismissed (terminal)
func (h *StockHandler) DismissAlert(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	alertID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	alert, err := h.alerts.Dismiss(c.Request.Context(), tenantID, alertID)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AlertResponse{Success: true, Data: alert})
}

// SweepAlerts re-evaluates thresholds across a vendor's catalogue
func (h *StockHandler) SweepAlerts(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	vendorID := middleware.GetVendorID(c)

	evaluated, err := h.alerts.SweepVendor(c.Request.Context(), tenantID, vendorID)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"productsEvaluated": evaluated},
	})
}

// SweepExpiry scans batches for upcoming and past expiry
func (h *StockHandler) SweepExpiry(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	vendorID := middleware.GetVendorID(c)
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	flagged, err := h.alerts.SweepExpiry(c.Request.Context(), tenantID, vendorID, days)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"batchesFlagged": flagged},
	})
}

// ========== Analytics ==========

// GetTurnoverRate computes units sold over time-weighted average stock
func (h *StockHandler) GetTurnoverRate(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	productID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	result, err := h.analytics.TurnoverRate(c.Request.Context(), tenantID, productID, days)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.TurnoverResponse{Success: true, Data: result})
}

// GetSlowMovingProducts lists products with stock but no recent sales
func (h *StockHandler) GetSlowMovingProducts(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	vendorID := middleware.GetVendorID(c)
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	products, err := h.analytics.SlowMovingProducts(c.Request.Context(), tenantID, vendorID, days)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SlowMovingResponse{Success: true, Data: products})
}

// GetStockValuation returns the vendor's stock valued at cost
func (h *StockHandler) GetStockValuation(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	vendorID := middleware.GetVendorID(c)

	valuation, err := h.analytics.StockValue(c.Request.Context(), tenantID, vendorID)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.StockValuationResponse{Success: true, Data: valuation})
}

// ========== Integrations ==========

// OrderStatusChange applies stock deduction for an order status transition
func (h *StockHandler) OrderStatusChange(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	var req models.OrderStatusChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	movements, err := h.orders.ApplyOrderStatusChange(c.Request.Context(), tenantID, &req)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"deducted":  movements != nil,
			"movements": movements,
		},
	})
}

// BillItemChange mirrors a POS bill line mutation into stock
func (h *StockHandler) BillItemChange(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	var req models.BillItemChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	result, err := h.orders.ApplyBillItemChange(c.Request.Context(), tenantID, &req)
	if err != nil {
		h.mapServiceError(c, err)
		return
	}

	if result == nil {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    gin.H{"applied": false},
		})
		return
	}

	c.JSON(http.StatusOK, models.MovementResponse{Success: true, Data: result})
}
