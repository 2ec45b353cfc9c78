package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"stock-service/internal/models"
	"stock-service/internal/repository"
)

// evaluate runs the threshold engine for a product at the given stock value
func evaluate(t *testing.T, mockRepo *MockStockRepository, product *models.VendorProduct, stock int) error {
	t.Helper()
	service := NewAlertService(mockRepo, nil, nil)
	return service.evaluateProductTx(context.Background(), mockRepo, product, stock)
}

// ===========================================
// Threshold Evaluation Tests
// ===========================================

func TestEvaluate_OpensLowStockAlert(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	mockRepo := new(MockStockRepository)
	product := createTestProduct(tenantID, 4, false)
	config := createTestConfig(tenantID, product.ID, 10, 3, 0)

	mockRepo.On("GetOrCreateConfig", ctx, tenantID, product.ID).Return(config, nil)
	mockRepo.On("FindActiveAlert", ctx, tenantID, product.ID, models.AlertTypeLowStock).
		Return(nil, repository.ErrNotFound)
	mockRepo.On("CreateAlert", ctx, mock.AnythingOfType("*models.StockAlert")).
		Run(func(args mock.Arguments) {
			alert := args.Get(1).(*models.StockAlert)
			assert.Equal(t, models.AlertTypeLowStock, alert.Type)
			assert.Equal(t, models.AlertStatusActive, alert.Status)
			assert.Equal(t, 4, alert.CurrentQty)
			assert.Equal(t, 10, alert.ThresholdQty)
			assert.Equal(t, product.Name, *alert.ProductName)
		}).Return(nil)
	mockRepo.On("ListUnresolvedAlerts", ctx, tenantID, product.ID, thresholdAlertTypes).
		Return([]models.StockAlert{}, nil)

	err := evaluate(t, mockRepo, product, 4)

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestEvaluate_CriticalWinsOverLow(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	mockRepo := new(MockStockRepository)
	product := createTestProduct(tenantID, 1, false)
	config := createTestConfig(tenantID, product.ID, 10, 3, 0)

	lowAlert := models.StockAlert{
		ID: uuid.New(), TenantID: tenantID, ProductID: product.ID,
		Type: models.AlertTypeLowStock, Status: models.AlertStatusActive,
	}

	mockRepo.On("GetOrCreateConfig", ctx, tenantID, product.ID).Return(config, nil)
	// First match is CRITICAL_STOCK, not LOW_STOCK
	mockRepo.On("FindActiveAlert", ctx, tenantID, product.ID, models.AlertTypeCriticalStock).
		Return(nil, repository.ErrNotFound)
	mockRepo.On("CreateAlert", ctx, mock.AnythingOfType("*models.StockAlert")).
		Run(func(args mock.Arguments) {
			alert := args.Get(1).(*models.StockAlert)
			assert.Equal(t, models.AlertTypeCriticalStock, alert.Type)
		}).Return(nil)
	// Stock 1 still satisfies the low threshold, so the low alert stays open
	mockRepo.On("ListUnresolvedAlerts", ctx, tenantID, product.ID, thresholdAlertTypes).
		Return([]models.StockAlert{lowAlert}, nil)

	err := evaluate(t, mockRepo, product, 1)

	assert.NoError(t, err)
	mockRepo.AssertNotCalled(t, "SaveAlert")
	mockRepo.AssertExpectations(t)
}

func TestEvaluate_OutOfStockAtZero(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	mockRepo := new(MockStockRepository)
	product := createTestProduct(tenantID, 0, false)
	config := createTestConfig(tenantID, product.ID, 10, 3, 0)

	mockRepo.On("GetOrCreateConfig", ctx, tenantID, product.ID).Return(config, nil)
	mockRepo.On("FindActiveAlert", ctx, tenantID, product.ID, models.AlertTypeOutOfStock).
		Return(nil, repository.ErrNotFound)
	mockRepo.On("CreateAlert", ctx, mock.AnythingOfType("*models.StockAlert")).
		Run(func(args mock.Arguments) {
			alert := args.Get(1).(*models.StockAlert)
			assert.Equal(t, models.AlertTypeOutOfStock, alert.Type)
		}).Return(nil)
	mockRepo.On("ListUnresolvedAlerts", ctx, tenantID, product.ID, thresholdAlertTypes).
		Return([]models.StockAlert{}, nil)

	err := evaluate(t, mockRepo, product, 0)

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestEvaluate_OverstockWhenThresholdEnabled(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	mockRepo := new(MockStockRepository)
	product := createTestProduct(tenantID, 150, false)
	config := createTestConfig(tenantID, product.ID, 10, 3, 100)

	mockRepo.On("GetOrCreateConfig", ctx, tenantID, product.ID).Return(config, nil)
	mockRepo.On("FindActiveAlert", ctx, tenantID, product.ID, models.AlertTypeOverstock).
		Return(nil, repository.ErrNotFound)
	mockRepo.On("CreateAlert", ctx, mock.AnythingOfType("*models.StockAlert")).
		Run(func(args mock.Arguments) {
			alert := args.Get(1).(*models.StockAlert)
			assert.Equal(t, models.AlertTypeOverstock, alert.Type)
		}).Return(nil)
	mockRepo.On("ListUnresolvedAlerts", ctx, tenantID, product.ID, thresholdAlertTypes).
		Return([]models.StockAlert{}, nil)

	err := evaluate(t, mockRepo, product, 150)

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestEvaluate_OverstockDisabledByZeroThreshold(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	mockRepo := new(MockStockRepository)
	product := createTestProduct(tenantID, 10000, false)
	config := createTestConfig(tenantID, product.ID, 10, 3, 0)

	mockRepo.On("GetOrCreateConfig", ctx, tenantID, product.ID).Return(config, nil)
	mockRepo.On("ListUnresolvedAlerts", ctx, tenantID, product.ID, thresholdAlertTypes).
		Return([]models.StockAlert{}, nil)

	err := evaluate(t, mockRepo, product, 10000)

	assert.NoError(t, err)
	mockRepo.AssertNotCalled(t, "CreateAlert")
}

func TestEvaluate_RefreshesExistingActiveAlert(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	mockRepo := new(MockStockRepository)
	product := createTestProduct(tenantID, 6, false)
	config := createTestConfig(tenantID, product.ID, 10, 3, 0)

	existing := &models.StockAlert{
		ID: uuid.New(), TenantID: tenantID, ProductID: product.ID,
		Type: models.AlertTypeLowStock, Status: models.AlertStatusActive,
		CurrentQty: 8, ThresholdQty: 10,
	}

	mockRepo.On("GetOrCreateConfig", ctx, tenantID, product.ID).Return(config, nil)
	mockRepo.On("FindActiveAlert", ctx, tenantID, product.ID, models.AlertTypeLowStock).
		Return(existing, nil)
	mockRepo.On("SaveAlert", ctx, existing).Return(nil)
	mockRepo.On("ListUnresolvedAlerts", ctx, tenantID, product.ID, thresholdAlertTypes).
		Return([]models.StockAlert{*existing}, nil)

	err := evaluate(t, mockRepo, product, 6)

	assert.NoError(t, err)
	assert.Equal(t, 6, existing.CurrentQty)
	mockRepo.AssertNotCalled(t, "CreateAlert")
	mockRepo.AssertExpectations(t)
}

func TestEvaluate_RecoveryResolvesClearedAlerts(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	mockRepo := new(MockStockRepository)
	product := createTestProduct(tenantID, 11, false)
	config := createTestConfig(tenantID, product.ID, 10, 3, 0)

	lowAlert := models.StockAlert{
		ID: uuid.New(), TenantID: tenantID, ProductID: product.ID,
		Type: models.AlertTypeLowStock, Status: models.AlertStatusActive,
	}
	criticalAlert := models.StockAlert{
		ID: uuid.New(), TenantID: tenantID, ProductID: product.ID,
		Type: models.AlertTypeCriticalStock, Status: models.AlertStatusAcknowledged,
	}

	mockRepo.On("GetOrCreateConfig", ctx, tenantID, product.ID).Return(config, nil)
	mockRepo.On("ListUnresolvedAlerts", ctx, tenantID, product.ID, thresholdAlertTypes).
		Return([]models.StockAlert{lowAlert, criticalAlert}, nil)

	resolved := 0
	mockRepo.On("SaveAlert", ctx, mock.AnythingOfType("*models.StockAlert")).
		Run(func(args mock.Arguments) {
			alert := args.Get(1).(*models.StockAlert)
			assert.Equal(t, models.AlertStatusResolved, alert.Status)
			assert.NotNil(t, alert.ResolvedAt)
			resolved++
		}).Return(nil)

	err := evaluate(t, mockRepo, product, 11)

	assert.NoError(t, err)
	assert.Equal(t, 2, resolved)
	mockRepo.AssertNotCalled(t, "CreateAlert")
}

// ===========================================
// Lifecycle Transition Tests
// ===========================================

func TestAcknowledge_FromActive(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"
	by := "staff-9"

	mockRepo := new(MockStockRepository)
	service := NewAlertService(mockRepo, nil, nil)

	alert := &models.StockAlert{
		ID: uuid.New(), TenantID: tenantID,
		Type: models.AlertTypeLowStock, Status: models.AlertStatusActive,
	}

	mockRepo.On("GetAlertByID", ctx, tenantID, alert.ID).Return(alert, nil)
	mockRepo.On("SaveAlert", ctx, alert).Return(nil)

	updated, err := service.Acknowledge(ctx, tenantID, alert.ID, &by)

	assert.NoError(t, err)
	assert.Equal(t, models.AlertStatusAcknowledged, updated.Status)
	assert.Equal(t, by, *updated.AcknowledgedBy)
	assert.NotNil(t, updated.AcknowledgedAt)
}

func TestAcknowledge_RejectedFromResolved(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	mockRepo := new(MockStockRepository)
	service := NewAlertService(mockRepo, nil, nil)

	alert := &models.StockAlert{
		ID: uuid.New(), TenantID: tenantID,
		Type: models.AlertTypeLowStock, Status: models.AlertStatusResolved,
	}

	mockRepo.On("GetAlertByID", ctx, tenantID, alert.ID).Return(alert, nil)

	_, err := service.Acknowledge(ctx, tenantID, alert.ID, nil)

	assert.ErrorIs(t, err, ErrInvalidAlertTransition)
	mockRepo.AssertNotCalled(t, "SaveAlert")
}

func TestResolve_FromAcknowledged(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	mockRepo := new(MockStockRepository)
	service := NewAlertService(mockRepo, nil, nil)

	alert := &models.StockAlert{
		ID: uuid.New(), TenantID: tenantID,
		Type: models.AlertTypeCriticalStock, Status: models.AlertStatusAcknowledged,
	}

	mockRepo.On("GetAlertByID", ctx, tenantID, alert.ID).Return(alert, nil)
	mockRepo.On("SaveAlert", ctx, alert).Return(nil)

	updated, err := service.Resolve(ctx, tenantID, alert.ID)

	assert.NoError(t, err)
	assert.Equal(t, models.AlertStatusResolved, updated.Status)
	assert.NotNil(t, updated.ResolvedAt)
}

func TestDismiss_RejectedFromDismissed(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	mockRepo := new(MockStockRepository)
	service := NewAlertService(mockRepo, nil, nil)

	alert := &models.StockAlert{
		ID: uuid.New(), TenantID: tenantID,
		Type: models.AlertTypeLowStock, Status: models.AlertStatusDismissed,
	}

	mockRepo.On("GetAlertByID", ctx, tenantID, alert.ID).Return(alert, nil)

	_, err := service.Dismiss(ctx, tenantID, alert.ID)

	assert.ErrorIs(t, err, ErrInvalidAlertTransition)
}

func TestAlertNotFound(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"
	alertID := uuid.New()

	mockRepo := new(MockStockRepository)
	service := NewAlertService(mockRepo, nil, nil)

	mockRepo.On("GetAlertByID", ctx, tenantID, alertID).
		Return(nil, repository.ErrNotFound)

	_, err := service.Resolve(ctx, tenantID, alertID)

	assert.ErrorIs(t, err, ErrAlertNotFound)
}

// ===========================================
// Expiry Sweep Tests
// ===========================================

func TestSweepExpiry_FlagsExpiringAndExpiredBatches(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"
	vendorID := "vendor-123"

	mockRepo := new(MockStockRepository)
	service := NewAlertService(mockRepo, nil, nil)

	pastExpiry := time.Now().AddDate(0, 0, -2)
	soonExpiry := time.Now().AddDate(0, 0, 10)
	expiredBatch := models.StockBatch{
		ID: uuid.New(), TenantID: tenantID, VendorID: vendorID, ProductID: uuid.New(),
		BatchNumber: "LOT-OLD", ExpiryDate: &pastExpiry, QuantityRemaining: 5,
	}
	expiringBatch := models.StockBatch{
		ID: uuid.New(), TenantID: tenantID, VendorID: vendorID, ProductID: uuid.New(),
		BatchNumber: "LOT-SOON", ExpiryDate: &soonExpiry, QuantityRemaining: 8,
	}

	mockRepo.On("ListExpiringBatches", ctx, tenantID, vendorID, mock.AnythingOfType("time.Time")).
		Return([]models.StockBatch{expiredBatch, expiringBatch}, nil)
	mockRepo.On("FindActiveBatchAlert", ctx, tenantID, expiredBatch.ID, models.AlertTypeExpired).
		Return(nil, repository.ErrNotFound)
	mockRepo.On("FindActiveBatchAlert", ctx, tenantID, expiringBatch.ID, models.AlertTypeExpiringSoon).
		Return(nil, repository.ErrNotFound)

	created := make(map[models.AlertType]*models.StockAlert)
	mockRepo.On("CreateAlert", ctx, mock.AnythingOfType("*models.StockAlert")).
		Run(func(args mock.Arguments) {
			alert := args.Get(1).(*models.StockAlert)
			created[alert.Type] = alert
		}).Return(nil)

	flagged, err := service.SweepExpiry(ctx, tenantID, vendorID, 0)

	assert.NoError(t, err)
	assert.Equal(t, 2, flagged)
	assert.NotNil(t, created[models.AlertTypeExpired])
	assert.Equal(t, expiredBatch.ID, *created[models.AlertTypeExpired].BatchID)
	assert.NotNil(t, created[models.AlertTypeExpiringSoon])
	assert.Equal(t, 8, created[models.AlertTypeExpiringSoon].CurrentQty)
}

func TestSweepExpiry_RefreshesExistingBatchAlert(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	mockRepo := new(MockStockRepository)
	service := NewAlertService(mockRepo, nil, nil)

	soonExpiry := time.Now().AddDate(0, 0, 5)
	batch := models.StockBatch{
		ID: uuid.New(), TenantID: tenantID, ProductID: uuid.New(),
		BatchNumber: "LOT-SOON", ExpiryDate: &soonExpiry, QuantityRemaining: 3,
	}
	batchID := batch.ID
	existing := &models.StockAlert{
		ID: uuid.New(), TenantID: tenantID, BatchID: &batchID,
		Type: models.AlertTypeExpiringSoon, Status: models.AlertStatusActive,
		CurrentQty: 7,
	}

	mockRepo.On("ListExpiringBatches", ctx, tenantID, "", mock.AnythingOfType("time.Time")).
		Return([]models.StockBatch{batch}, nil)
	mockRepo.On("FindActiveBatchAlert", ctx, tenantID, batch.ID, models.AlertTypeExpiringSoon).
		Return(existing, nil)
	mockRepo.On("SaveAlert", ctx, existing).Return(nil)

	flagged, err := service.SweepExpiry(ctx, tenantID, "", 30)

	assert.NoError(t, err)
	assert.Equal(t, 1, flagged)
	assert.Equal(t, 3, existing.CurrentQty)
	mockRepo.AssertNotCalled(t, "CreateAlert")
}
