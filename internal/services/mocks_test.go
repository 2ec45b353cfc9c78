package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"stock-service/internal/models"
	"stock-service/internal/repository"
)

// MockStockRepository is a mock implementation of StockRepositoryInterface
type MockStockRepository struct {
	mock.Mock
}

// Ensure MockStockRepository implements the interface
var _ repository.StockRepositoryInterface = (*MockStockRepository)(nil)

// WithTransaction implements transaction support for the mock
// For testing, it executes the callback with the mock itself (simulating a transaction)
func (m *MockStockRepository) WithTransaction(ctx context.Context, fn func(txRepo repository.StockRepositoryInterface) error) error {
	return fn(m)
}

func (m *MockStockRepository) CreateProduct(ctx context.Context, product *models.VendorProduct) error {
	args := m.Called(ctx, product)
	if args.Error(0) == nil && product.ID == uuid.Nil {
		product.ID = uuid.New()
		product.CreatedAt = time.Now()
	}
	return args.Error(0)
}

func (m *MockStockRepository) GetProduct(ctx context.Context, tenantID string, id uuid.UUID) (*models.VendorProduct, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VendorProduct), args.Error(1)
}

func (m *MockStockRepository) GetProductForUpdate(ctx context.Context, tenantID string, id uuid.UUID) (*models.VendorProduct, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VendorProduct), args.Error(1)
}

func (m *MockStockRepository) ListProducts(ctx context.Context, tenantID, vendorID string, page, limit int) ([]models.VendorProduct, int64, error) {
	args := m.Called(ctx, tenantID, vendorID, page, limit)
	return args.Get(0).([]models.VendorProduct), args.Get(1).(int64), args.Error(2)
}

func (m *MockStockRepository) UpdateProduct(ctx context.Context, tenantID string, id uuid.UUID, updates map[string]interface{}) error {
	args := m.Called(ctx, tenantID, id, updates)
	return args.Error(0)
}

func (m *MockStockRepository) UpdateProductStock(ctx context.Context, tenantID string, id uuid.UUID, newStock int) error {
	args := m.Called(ctx, tenantID, id, newStock)
	return args.Error(0)
}

func (m *MockStockRepository) CreateMovement(ctx context.Context, movement *models.StockMovement) error {
	args := m.Called(ctx, movement)
	if args.Error(0) == nil && movement.ID == uuid.Nil {
		movement.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockStockRepository) ListMovementsByProduct(ctx context.Context, tenantID string, productID uuid.UUID, page, limit int) ([]models.StockMovement, int64, error) {
	args := m.Called(ctx, tenantID, productID, page, limit)
	return args.Get(0).([]models.StockMovement), args.Get(1).(int64), args.Error(2)
}

func (m *MockStockRepository) ListMovementsByVendor(ctx context.Context, tenantID, vendorID string, filters repository.MovementFilters) ([]models.StockMovement, int64, error) {
	args := m.Called(ctx, tenantID, vendorID, filters)
	return args.Get(0).([]models.StockMovement), args.Get(1).(int64), args.Error(2)
}

func (m *MockStockRepository) ListMovementsInWindow(ctx context.Context, tenantID string, productID uuid.UUID, from, to time.Time) ([]models.StockMovement, error) {
	args := m.Called(ctx, tenantID, productID, from, to)
	return args.Get(0).([]models.StockMovement), args.Error(1)
}

func (m *MockStockRepository) GetOrCreateConfig(ctx context.Context, tenantID string, productID uuid.UUID) (*models.StockConfig, error) {
	args := m.Called(ctx, tenantID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StockConfig), args.Error(1)
}

func (m *MockStockRepository) UpdateConfig(ctx context.Context, tenantID string, productID uuid.UUID, updates map[string]interface{}) (*models.StockConfig, error) {
	args := m.Called(ctx, tenantID, productID, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StockConfig), args.Error(1)
}

func (m *MockStockRepository) CreateBatch(ctx context.Context, batch *models.StockBatch) error {
	args := m.Called(ctx, batch)
	if args.Error(0) == nil && batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockStockRepository) ListOpenBatches(ctx context.Context, tenantID string, productID uuid.UUID) ([]models.StockBatch, error) {
	args := m.Called(ctx, tenantID, productID)
	return args.Get(0).([]models.StockBatch), args.Error(1)
}

func (m *MockStockRepository) UpdateBatchRemaining(ctx context.Context, tenantID string, batchID uuid.UUID, remaining int) error {
	args := m.Called(ctx, tenantID, batchID, remaining)
	return args.Error(0)
}

func (m *MockStockRepository) ListExpiringBatches(ctx context.Context, tenantID, vendorID string, before time.Time) ([]models.StockBatch, error) {
	args := m.Called(ctx, tenantID, vendorID, before)
	return args.Get(0).([]models.StockBatch), args.Error(1)
}

func (m *MockStockRepository) CreateAlert(ctx context.Context, alert *models.StockAlert) error {
	args := m.Called(ctx, alert)
	if args.Error(0) == nil && alert.ID == uuid.Nil {
		alert.ID = uuid.New()
		alert.CreatedAt = time.Now()
	}
	return args.Error(0)
}

func (m *MockStockRepository) SaveAlert(ctx context.Context, alert *models.StockAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *MockStockRepository) GetAlertByID(ctx context.Context, tenantID string, id uuid.UUID) (*models.StockAlert, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StockAlert), args.Error(1)
}

func (m *MockStockRepository) FindActiveAlert(ctx context.Context, tenantID string, productID uuid.UUID, alertType models.AlertType) (*models.StockAlert, error) {
	args := m.Called(ctx, tenantID, productID, alertType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StockAlert), args.Error(1)
}

func (m *MockStockRepository) FindActiveBatchAlert(ctx context.Context, tenantID string, batchID uuid.UUID, alertType models.AlertType) (*models.StockAlert, error) {
	args := m.Called(ctx, tenantID, batchID, alertType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StockAlert), args.Error(1)
}

func (m *MockStockRepository) ListUnresolvedAlerts(ctx context.Context, tenantID string, productID uuid.UUID, types []models.AlertType) ([]models.StockAlert, error) {
	args := m.Called(ctx, tenantID, productID, types)
	return args.Get(0).([]models.StockAlert), args.Error(1)
}

func (m *MockStockRepository) ListAlerts(ctx context.Context, tenantID string, filters repository.AlertFilters) ([]models.StockAlert, int64, error) {
	args := m.Called(ctx, tenantID, filters)
	return args.Get(0).([]models.StockAlert), args.Get(1).(int64), args.Error(2)
}

func (m *MockStockRepository) GetAlertSummary(ctx context.Context, tenantID, vendorID string) (*models.AlertSummary, error) {
	args := m.Called(ctx, tenantID, vendorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AlertSummary), args.Error(1)
}

func (m *MockStockRepository) SlowMovingProducts(ctx context.Context, tenantID, vendorID string, since time.Time) ([]models.VendorProduct, error) {
	args := m.Called(ctx, tenantID, vendorID, since)
	return args.Get(0).([]models.VendorProduct), args.Error(1)
}

func (m *MockStockRepository) StockValuation(ctx context.Context, tenantID, vendorID string) (*models.StockValuation, error) {
	args := m.Called(ctx, tenantID, vendorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StockValuation), args.Error(1)
}

// Helper to create a test product
func createTestProduct(tenantID string, stock int, batchTracking bool) *models.VendorProduct {
	return &models.VendorProduct{
		ID:            uuid.New(),
		TenantID:      tenantID,
		VendorID:      "vendor-123",
		SKU:           "SKU-TEST",
		Name:          "Test Product",
		Status:        models.ProductStatusActive,
		Price:         12.50,
		CostPrice:     8.00,
		Stock:         stock,
		BatchTracking: batchTracking,
	}
}

// Helper to create a test config
func createTestConfig(tenantID string, productID uuid.UUID, low, critical, overstock int) *models.StockConfig {
	return &models.StockConfig{
		ID:                     uuid.New(),
		TenantID:               tenantID,
		ProductID:              productID,
		LowStockThreshold:      low,
		CriticalStockThreshold: critical,
		OverstockThreshold:     overstock,
	}
}
