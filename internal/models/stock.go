package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSON type for PostgreSQL JSONB
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSON)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// ProductStatus represents the status of a vendor product
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "ACTIVE"
	ProductStatusInactive ProductStatus = "INACTIVE"
	ProductStatusArchived ProductStatus = "ARCHIVED"
)

// VendorProduct carries the stock counter for one vendor-scoped product.
// Stock is mutated only through the stock movement recorder; it never goes
// below zero at rest.
type VendorProduct struct {
	ID       uuid.UUID     `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID string        `json:"tenantId" gorm:"type:varchar(255);not null;index"`
	VendorID string        `json:"vendorId" gorm:"type:varchar(255);not null;index:idx_vendor_products_tenant_vendor"` // Vendor isolation for marketplace
	SKU      string        `json:"sku" gorm:"type:varchar(100);not null;uniqueIndex:idx_tenant_product_sku"`
	Name     string        `json:"name" gorm:"type:varchar(255);not null"`
	Status   ProductStatus `json:"status" gorm:"type:varchar(20);not null;default:'ACTIVE'"`

	// Pricing
	Price     float64 `json:"price" gorm:"type:decimal(10,2);not null;default:0"`
	CostPrice float64 `json:"costPrice" gorm:"type:decimal(10,2);not null;default:0"`

	// Stock counter, owned by the recorder
	Stock int `json:"stock" gorm:"not null;default:0"`

	// Lot tracking enabled per product (explicit flag, no runtime capability probe)
	BatchTracking bool `json:"batchTracking" gorm:"default:false"`

	Notes    *string `json:"notes,omitempty" gorm:"type:text"`
	Metadata *JSON   `json:"metadata,omitempty" gorm:"type:jsonb"`

	// Audit fields
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	DeletedAt *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
	CreatedBy *string         `json:"createdBy,omitempty"`
	UpdatedBy *string         `json:"updatedBy,omitempty"`
}

// MovementType represents the business cause of a stock movement
type MovementType string

const (
	MovementTypePurchase   MovementType = "PURCHASE"
	MovementTypeSale       MovementType = "SALE"
	MovementTypeReturn     MovementType = "RETURN"
	MovementTypeAdjustment MovementType = "ADJUSTMENT"
	MovementTypeTransfer   MovementType = "TRANSFER"
)

// ReferenceType identifies the document a movement originated from
type ReferenceType string

const (
	ReferenceTypeOrder  ReferenceType = "ORDER"
	ReferenceTypeBill   ReferenceType = "BILL"
	ReferenceTypeManual ReferenceType = "MANUAL"
)

// StockMovement is one immutable signed change against a product's stock
// counter. Rows are only ever created; reversals are recorded as new RETURN
// movements. ResultingStock equals the counter value immediately after this
// movement was applied, so the ledger replays to the live counter.
type StockMovement struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID string    `json:"tenantId" gorm:"type:varchar(255);not null;index"`
	VendorID string    `json:"vendorId" gorm:"type:varchar(255);not null;index:idx_stock_movements_tenant_vendor"`

	ProductID uuid.UUID `json:"productId" gorm:"type:uuid;not null;index"`

	QuantityDelta  int           `json:"quantityDelta" gorm:"not null"`
	Type           MovementType  `json:"type" gorm:"type:varchar(20);not null;index"`
	ReferenceType  ReferenceType `json:"referenceType" gorm:"type:varchar(20);not null;default:'MANUAL'"`
	ReferenceID    *string       `json:"referenceId,omitempty" gorm:"type:varchar(255);index"`
	Reason         *string       `json:"reason,omitempty" gorm:"type:varchar(255)"`
	Notes          *string       `json:"notes,omitempty" gorm:"type:text"`
	ResultingStock int           `json:"resultingStock" gorm:"not null"`

	// Optional multi-location tag; stock invariants stay single-location
	LocationID *uuid.UUID `json:"locationId,omitempty" gorm:"type:uuid;index"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;index"`
	CreatedBy *string   `json:"createdBy,omitempty"`
}

// StockBatch represents a lot received at stock-in time.
// QuantityRemaining only decreases, via FEFO consumption during stock-out;
// exhausted batches remain for audit and are excluded from consumption.
type StockBatch struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID string    `json:"tenantId" gorm:"type:varchar(255);not null;index"`
	VendorID string    `json:"vendorId" gorm:"type:varchar(255);not null;index:idx_stock_batches_tenant_vendor"`

	ProductID   uuid.UUID  `json:"productId" gorm:"type:uuid;not null;index"`
	BatchNumber string     `json:"batchNumber" gorm:"type:varchar(100);not null"`
	ExpiryDate  *time.Time `json:"expiryDate,omitempty" gorm:"index"`

	QuantityReceived  int `json:"quantityReceived" gorm:"not null"`
	QuantityRemaining int `json:"quantityRemaining" gorm:"not null"`

	ReceivedDate time.Time `json:"receivedDate" gorm:"not null"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Default thresholds applied when a config is lazily created
const (
	DefaultLowStockThreshold      = 10
	DefaultCriticalStockThreshold = 3
)

// StockConfig holds per-product alert thresholds.
// Created lazily with defaults on first access (get-or-create, never duplicated).
// OverstockThreshold of 0 disables the overstock check.
type StockConfig struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID string    `json:"tenantId" gorm:"type:varchar(255);not null;index"`

	ProductID uuid.UUID `json:"productId" gorm:"type:uuid;not null;uniqueIndex:idx_stock_configs_tenant_product"`

	LowStockThreshold      int `json:"lowStockThreshold" gorm:"not null;default:10"`
	CriticalStockThreshold int `json:"criticalStockThreshold" gorm:"not null;default:3"`
	OverstockThreshold     int `json:"overstockThreshold" gorm:"not null;default:0"`
	ReorderQuantity        int `json:"reorderQuantity" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AlertType represents the type of stock alert
type AlertType string

const (
	AlertTypeLowStock      AlertType = "LOW_STOCK"
	AlertTypeCriticalStock AlertType = "CRITICAL_STOCK"
	AlertTypeOutOfStock    AlertType = "OUT_OF_STOCK"
	AlertTypeOverstock     AlertType = "OVERSTOCK"
	AlertTypeExpiringSoon  AlertType = "EXPIRING_SOON"
	AlertTypeExpired       AlertType = "EXPIRED"
)

// AlertStatus represents the status of an alert
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "ACTIVE"
	AlertStatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertStatusResolved     AlertStatus = "RESOLVED"
	AlertStatusDismissed    AlertStatus = "DISMISSED"
)

// StockAlert represents a threshold or expiry alert.
// At most one ACTIVE alert exists per (product, type); expiry alerts are keyed
// per batch instead. RESOLVED and DISMISSED are terminal; a fresh breach of the
// same threshold opens a new alert.
type StockAlert struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID string    `json:"tenantId" gorm:"type:varchar(255);not null;index"`
	VendorID string    `json:"vendorId" gorm:"type:varchar(255);not null;index:idx_stock_alerts_tenant_vendor"`

	ProductID uuid.UUID  `json:"productId" gorm:"type:uuid;not null;index"`
	BatchID   *uuid.UUID `json:"batchId,omitempty" gorm:"type:uuid;index"` // set for EXPIRING_SOON/EXPIRED

	Type   AlertType   `json:"type" gorm:"type:varchar(50);not null;index"`
	Status AlertStatus `json:"status" gorm:"type:varchar(50);not null;default:'ACTIVE';index"`

	Title        string `json:"title" gorm:"type:varchar(255);not null"`
	Message      string `json:"message" gorm:"type:text;not null"`
	CurrentQty   int    `json:"currentQty" gorm:"not null;default:0"`
	ThresholdQty int    `json:"thresholdQty" gorm:"not null;default:0"`

	// Denormalized fields for display
	ProductName *string `json:"productName,omitempty" gorm:"type:varchar(255)"`
	ProductSKU  *string `json:"productSku,omitempty" gorm:"type:varchar(100)"`

	AcknowledgedBy *string    `json:"acknowledgedBy,omitempty" gorm:"type:varchar(255)"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null"`
}

// TableName implementations
func (VendorProduct) TableName() string {
	return "vendor_products"
}

func (StockMovement) TableName() string {
	return "stock_movements"
}

func (StockBatch) TableName() string {
	return "stock_batches"
}

func (StockConfig) TableName() string {
	return "stock_configs"
}

func (StockAlert) TableName() string {
	return "stock_alerts"
}

// IsTerminal reports whether the alert reached a final status
func (a *StockAlert) IsTerminal() bool {
	return a.Status == AlertStatusResolved || a.Status == AlertStatusDismissed
}

// OrderStatus mirrors the order states relevant to stock deduction
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// DeductsStock reports whether an order in this status has had its line items
// deducted from stock
func (s OrderStatus) DeductsStock() bool {
	return s == OrderStatusConfirmed || s == OrderStatusCompleted || s == OrderStatusDelivered
}

// BillItemType identifies what a POS bill line refers to
type BillItemType string

const (
	BillItemTypeProduct BillItemType = "PRODUCT"
	BillItemTypeService BillItemType = "SERVICE"
)

// Request models

type CreateProductRequest struct {
	SKU           string        `json:"sku" binding:"required,min=1,max=100"`
	Name          string        `json:"name" binding:"required,min=1,max=255"`
	VendorID      string        `json:"vendorId" binding:"required"`
	Price         float64       `json:"price" binding:"gte=0"`
	CostPrice     float64       `json:"costPrice" binding:"gte=0"`
	BatchTracking *bool         `json:"batchTracking,omitempty"`
	Status        *ProductStatus `json:"status,omitempty"`
	Notes         *string       `json:"notes,omitempty"`
	Metadata      *JSON         `json:"metadata,omitempty"`
}

// BatchInput carries optional lot metadata on stock-in
type BatchInput struct {
	BatchNumber string     `json:"batchNumber" binding:"required,min=1,max=100"`
	ExpiryDate  *time.Time `json:"expiryDate,omitempty"`
}

type RecordStockInRequest struct {
	Quantity      int            `json:"quantity" binding:"required"`
	MovementType  *MovementType  `json:"movementType,omitempty"`
	ReferenceType *ReferenceType `json:"referenceType,omitempty"`
	ReferenceID   *string        `json:"referenceId,omitempty"`
	Reason        *string        `json:"reason,omitempty"`
	Notes         *string        `json:"notes,omitempty"`
	Batch         *BatchInput    `json:"batch,omitempty"`
}

type RecordStockOutRequest struct {
	Quantity      int            `json:"quantity" binding:"required"`
	MovementType  *MovementType  `json:"movementType,omitempty"`
	ReferenceType *ReferenceType `json:"referenceType,omitempty"`
	ReferenceID   *string        `json:"referenceId,omitempty"`
	Reason        *string        `json:"reason,omitempty"`
	Notes         *string        `json:"notes,omitempty"`
}

type UpdateStockConfigRequest struct {
	LowStockThreshold      *int `json:"lowStockThreshold,omitempty" binding:"omitempty,gte=0"`
	CriticalStockThreshold *int `json:"criticalStockThreshold,omitempty" binding:"omitempty,gte=0"`
	OverstockThreshold     *int `json:"overstockThreshold,omitempty" binding:"omitempty,gte=0"`
	ReorderQuantity        *int `json:"reorderQuantity,omitempty" binding:"omitempty,gte=0"`
}

// OrderLineItem is one deductible line of an order status change
type OrderLineItem struct {
	ProductID uuid.UUID `json:"productId" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,gt=0"`
}

type OrderStatusChangeRequest struct {
	OrderID        string          `json:"orderId" binding:"required"`
	VendorID       string          `json:"vendorId" binding:"required"`
	PreviousStatus OrderStatus     `json:"previousStatus" binding:"required"`
	NewStatus      OrderStatus     `json:"newStatus" binding:"required"`
	Items          []OrderLineItem `json:"items" binding:"required,min=1"`
}

// BillItemEventType identifies the POS bill mutation being reported
type BillItemEventType string

const (
	BillItemAdded   BillItemEventType = "ADDED"
	BillItemUpdated BillItemEventType = "UPDATED"
	BillItemDeleted BillItemEventType = "DELETED"
)

type BillItemChangeRequest struct {
	BillID           string            `json:"billId" binding:"required"`
	VendorID         string            `json:"vendorId" binding:"required"`
	Event            BillItemEventType `json:"event" binding:"required"`
	ItemType         BillItemType      `json:"itemType" binding:"required"`
	ProductID        uuid.UUID         `json:"productId" binding:"required"`
	Quantity         int               `json:"quantity" binding:"required,gt=0"`
	PreviousQuantity int               `json:"previousQuantity,omitempty"`
}

type UpdateAlertStatusRequest struct {
	ActionBy *string `json:"actionBy,omitempty"`
}

// Response models

type ErrorResponse struct {
	Success bool  `json:"success"`
	Error   Error `json:"error"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}

type ProductResponse struct {
	Success bool           `json:"success"`
	Data    *VendorProduct `json:"data,omitempty"`
	Message *string        `json:"message,omitempty"`
}

type ProductListResponse struct {
	Success    bool            `json:"success"`
	Data       []VendorProduct `json:"data"`
	Pagination *PaginationMeta `json:"pagination,omitempty"`
}

// MovementResult is returned by the recorder entry points
type MovementResult struct {
	Movement *StockMovement `json:"movement"`
	Stock    int            `json:"stock"`
}

type MovementResponse struct {
	Success bool            `json:"success"`
	Data    *MovementResult `json:"data,omitempty"`
	Message *string         `json:"message,omitempty"`
}

type MovementListResponse struct {
	Success    bool            `json:"success"`
	Data       []StockMovement `json:"data"`
	Pagination *PaginationMeta `json:"pagination,omitempty"`
}

type StockConfigResponse struct {
	Success bool         `json:"success"`
	Data    *StockConfig `json:"data,omitempty"`
	Message *string      `json:"message,omitempty"`
}

type BatchListResponse struct {
	Success bool         `json:"success"`
	Data    []StockBatch `json:"data"`
}

type AlertResponse struct {
	Success bool        `json:"success"`
	Data    *StockAlert `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}

type AlertListResponse struct {
	Success    bool            `json:"success"`
	Data       []StockAlert    `json:"data"`
	Pagination *PaginationMeta `json:"pagination,omitempty"`
}

// AlertSummary represents a summary of alerts by status and type
type AlertSummary struct {
	TotalActive   int            `json:"totalActive"`
	TotalResolved int            `json:"totalResolved"`
	ByType        map[string]int `json:"byType"`
}

type AlertSummaryResponse struct {
	Success bool          `json:"success"`
	Data    *AlertSummary `json:"data,omitempty"`
}

// TurnoverResult is the computed turnover ratio for a product
type TurnoverResult struct {
	ProductID    uuid.UUID `json:"productId"`
	WindowDays   int       `json:"windowDays"`
	UnitsSold    int       `json:"unitsSold"`
	AverageStock float64   `json:"averageStock"`
	TurnoverRate float64   `json:"turnoverRate"`
}

type TurnoverResponse struct {
	Success bool            `json:"success"`
	Data    *TurnoverResult `json:"data,omitempty"`
}

type SlowMovingResponse struct {
	Success bool            `json:"success"`
	Data    []VendorProduct `json:"data"`
}

// StockValuation is a snapshot of vendor stock value
type StockValuation struct {
	VendorID   string  `json:"vendorId"`
	TotalValue float64 `json:"totalValue"`
	Products   int     `json:"products"`
}

type StockValuationResponse struct {
	Success bool            `json:"success"`
	Data    *StockValuation `json:"data,omitempty"`
}

// PaginationMeta represents pagination metadata
type PaginationMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
}
