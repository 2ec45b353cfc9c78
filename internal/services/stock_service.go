package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"stock-service/internal/events"
	"stock-service/internal/models"
	"stock-service/internal/repository"
)

// MaxMovementQuantity is the sanity ceiling for a single movement
const MaxMovementQuantity = 1000000

// MovementMeta carries caller-supplied context for one movement
type MovementMeta struct {
	Type          models.MovementType
	ReferenceType models.ReferenceType
	ReferenceID   *string
	Reason        *string
	Notes         *string
	Batch         *models.BatchInput
	ActorID       *string
}

// StockService is the stock movement recorder. Every change to a product's
// stock counter goes through RecordStockIn/RecordStockOut: the counter update,
// batch consumption, ledger append and alert evaluation happen in one
// transaction under a per-product row lock.
type StockService struct {
	repo      repository.StockRepositoryInterface
	alerts    *AlertService
	publisher *events.StockEventPublisher
	logger    *logrus.Entry
}

// NewStockService creates a new StockService
func NewStockService(repo repository.StockRepositoryInterface, alerts *AlertService, publisher *events.StockEventPublisher, logger *logrus.Logger) *StockService {
	log := logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &StockService{
		repo:      repo,
		alerts:    alerts,
		publisher: publisher,
		logger:    log.WithField("component", "stock-recorder"),
	}
}

func validateQuantity(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > MaxMovementQuantity {
		return ErrQuantityTooLarge
	}
	return nil
}

// RecordStockIn increments a product's stock counter, creates a batch when lot
// metadata is supplied, appends the ledger row and re-evaluates alerts.
// Returns the created movement together with the new stock value.
func (s *StockService) RecordStockIn(ctx context.Context, tenantID string, productID uuid.UUID, quantity int, meta MovementMeta) (*models.MovementResult, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	var result *models.MovementResult
	var product *models.VendorProduct
	err := s.repo.WithTransaction(ctx, func(tx repository.StockRepositoryInterface) error {
		var err error
		result, product, err = s.recordStockInTx(ctx, tx, tenantID, productID, quantity, meta)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishAdjusted(ctx, product, result, meta)
	return result, nil
}

// RecordStockOut decrements a product's stock counter. The insufficient-stock
// check and the decrement are one atomic unit under the row lock, so two
// concurrent stock-outs cannot both pass the check against the same value.
func (s *StockService) RecordStockOut(ctx context.Context, tenantID string, productID uuid.UUID, quantity int, meta MovementMeta) (*models.MovementResult, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	var result *models.MovementResult
	var product *models.VendorProduct
	err := s.repo.WithTransaction(ctx, func(tx repository.StockRepositoryInterface) error {
		var err error
		result, product, err = s.recordStockOutTx(ctx, tx, tenantID, productID, quantity, meta)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishAdjusted(ctx, product, result, meta)
	return result, nil
}

// recordStockInTx applies a stock-in inside an open transaction
func (s *StockService) recordStockInTx(ctx context.Context, tx repository.StockRepositoryInterface, tenantID string, productID uuid.UUID, quantity int, meta MovementMeta) (*models.MovementResult, *models.VendorProduct, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, nil, err
	}

	product, err := tx.GetProductForUpdate(ctx, tenantID, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrProductNotFound
		}
		return nil, nil, err
	}

	if meta.Batch != nil {
		batch := &models.StockBatch{
			TenantID:          tenantID,
			VendorID:          product.VendorID,
			ProductID:         product.ID,
			BatchNumber:       meta.Batch.BatchNumber,
			ExpiryDate:        meta.Batch.ExpiryDate,
			QuantityReceived:  quantity,
			QuantityRemaining: quantity,
			ReceivedDate:      time.Now(),
		}
		if err := tx.CreateBatch(ctx, batch); err != nil {
			return nil, nil, fmt.Errorf("failed to create batch: %w", err)
		}
	}

	newStock := product.Stock + quantity

	movementType := meta.Type
	if movementType == "" {
		movementType = models.MovementTypePurchase
	}

	movement, err := s.applyMovementTx(ctx, tx, product, quantity, newStock, movementType, meta)
	if err != nil {
		return nil, nil, err
	}

	return &models.MovementResult{Movement: movement, Stock: newStock}, product, nil
}

// recordStockOutTx applies a stock-out inside an open transaction
func (s *StockService) recordStockOutTx(ctx context.Context, tx repository.StockRepositoryInterface, tenantID string, productID uuid.UUID, quantity int, meta MovementMeta) (*models.MovementResult, *models.VendorProduct, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, nil, err
	}

	product, err := tx.GetProductForUpdate(ctx, tenantID, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrProductNotFound
		}
		return nil, nil, err
	}

	if product.Stock < quantity {
		return nil, nil, &InsufficientStockError{
			ProductID: product.ID,
			Requested: quantity,
			Available: product.Stock,
		}
	}

	if product.BatchTracking {
		if err := s.consumeBatchesTx(ctx, tx, product, quantity); err != nil {
			return nil, nil, err
		}
	}

	newStock := product.Stock - quantity

	movementType := meta.Type
	if movementType == "" {
		movementType = models.MovementTypeSale
	}

	movement, err := s.applyMovementTx(ctx, tx, product, -quantity, newStock, movementType, meta)
	if err != nil {
		return nil, nil, err
	}

	return &models.MovementResult{Movement: movement, Stock: newStock}, product, nil
}

// applyMovementTx writes the counter, appends the ledger row and re-evaluates
// alerts for the post-movement stock value
func (s *StockService) applyMovementTx(ctx context.Context, tx repository.StockRepositoryInterface, product *models.VendorProduct, delta, newStock int, movementType models.MovementType, meta MovementMeta) (*models.StockMovement, error) {
	if err := tx.UpdateProductStock(ctx, product.TenantID, product.ID, newStock); err != nil {
		return nil, fmt.Errorf("failed to update stock counter: %w", err)
	}

	referenceType := meta.ReferenceType
	if referenceType == "" {
		referenceType = models.ReferenceTypeManual
	}

	movement := &models.StockMovement{
		TenantID:       product.TenantID,
		VendorID:       product.VendorID,
		ProductID:      product.ID,
		QuantityDelta:  delta,
		Type:           movementType,
		ReferenceType:  referenceType,
		ReferenceID:    meta.ReferenceID,
		Reason:         meta.Reason,
		Notes:          meta.Notes,
		ResultingStock: newStock,
		CreatedAt:      time.Now(),
		CreatedBy:      meta.ActorID,
	}
	if err := tx.CreateMovement(ctx, movement); err != nil {
		return nil, fmt.Errorf("failed to append movement: %w", err)
	}

	if s.alerts != nil {
		if err := s.alerts.evaluateProductTx(ctx, tx, product, newStock); err != nil {
			return nil, fmt.Errorf("failed to evaluate alerts: %w", err)
		}
	}

	return movement, nil
}

// consumeBatchesTx depletes open batches in FEFO order until the requested
// quantity is satisfied. A shortfall against the aggregate counter is a data
// integrity fault: the operation aborts and the transaction rolls back, so
// counter and batches never diverge further.
func (s *StockService) consumeBatchesTx(ctx context.Context, tx repository.StockRepositoryInterface, product *models.VendorProduct, quantity int) error {
	batches, err := tx.ListOpenBatches(ctx, product.TenantID, product.ID)
	if err != nil {
		return fmt.Errorf("failed to list batches: %w", err)
	}

	remaining := quantity
	for _, batch := range batches {
		if remaining == 0 {
			break
		}
		take := batch.QuantityRemaining
		if take > remaining {
			take = remaining
		}
		if err := tx.UpdateBatchRemaining(ctx, product.TenantID, batch.ID, batch.QuantityRemaining-take); err != nil {
			return fmt.Errorf("failed to consume batch %s: %w", batch.ID, err)
		}
		remaining -= take
	}

	if remaining > 0 {
		s.logger.WithFields(logrus.Fields{
			"tenantId":  product.TenantID,
			"productId": product.ID,
			"requested": quantity,
			"shortfall": remaining,
		}).Error("Batch quantities disagree with stock counter")
		return fmt.Errorf("product %s: batches short by %d units: %w", product.ID, remaining, ErrBatchIntegrity)
	}

	return nil
}

// publishAdjusted emits an inventory.adjusted event after commit, best effort
func (s *StockService) publishAdjusted(ctx context.Context, product *models.VendorProduct, result *models.MovementResult, meta MovementMeta) {
	if s.publisher == nil || product == nil || result == nil {
		return
	}

	reason := ""
	if meta.Reason != nil {
		reason = *meta.Reason
	}
	actor := ""
	if meta.ActorID != nil {
		actor = *meta.ActorID
	}

	previousStock := result.Stock - result.Movement.QuantityDelta
	if err := s.publisher.PublishStockAdjusted(ctx, product.TenantID, product.ID.String(), product.Name, product.SKU, previousStock, result.Stock, reason, actor); err != nil {
		s.logger.WithError(err).Warn("Failed to publish stock adjusted event")
	}
}

// GetProduct returns a vendor product by ID
func (s *StockService) GetProduct(ctx context.Context, tenantID string, productID uuid.UUID) (*models.VendorProduct, error) {
	product, err := s.repo.GetProduct(ctx, tenantID, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

// CreateProduct registers a product with the stock counter at zero. Initial
// stock arrives through RecordStockIn so the ledger stays complete.
func (s *StockService) CreateProduct(ctx context.Context, tenantID string, req *models.CreateProductRequest, actorID *string) (*models.VendorProduct, error) {
	product := &models.VendorProduct{
		TenantID:  tenantID,
		VendorID:  req.VendorID,
		SKU:       req.SKU,
		Name:      req.Name,
		Status:    models.ProductStatusActive,
		Price:     req.Price,
		CostPrice: req.CostPrice,
		Notes:     req.Notes,
		Metadata:  req.Metadata,
		CreatedBy: actorID,
	}
	if req.BatchTracking != nil {
		product.BatchTracking = *req.BatchTracking
	}
	if req.Status != nil {
		product.Status = *req.Status
	}

	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"tenantId":  tenantID,
		"productId": product.ID,
		"sku":       product.SKU,
	}).Info("Product created")
	return product, nil
}

// ListProducts returns a vendor's products with pagination
func (s *StockService) ListProducts(ctx context.Context, tenantID, vendorID string, page, limit int) ([]models.VendorProduct, int64, error) {
	return s.repo.ListProducts(ctx, tenantID, vendorID, page, limit)
}

// UpdateProduct patches product metadata. The stock counter is not updatable
// here; it moves only through the recorder.
func (s *StockService) UpdateProduct(ctx context.Context, tenantID string, productID uuid.UUID, updates map[string]interface{}) (*models.VendorProduct, error) {
	if err := s.repo.UpdateProduct(ctx, tenantID, productID, updates); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return s.GetProduct(ctx, tenantID, productID)
}

// GetConfig returns the per-product threshold config, creating defaults on
// first access
func (s *StockService) GetConfig(ctx context.Context, tenantID string, productID uuid.UUID) (*models.StockConfig, error) {
	if _, err := s.GetProduct(ctx, tenantID, productID); err != nil {
		return nil, err
	}
	return s.repo.GetOrCreateConfig(ctx, tenantID, productID)
}

// UpdateConfig patches thresholds and immediately re-evaluates alerts against
// the current stock, so a lowered threshold resolves and a raised one opens
// alerts without waiting for the next movement
func (s *StockService) UpdateConfig(ctx context.Context, tenantID string, productID uuid.UUID, req *models.UpdateStockConfigRequest) (*models.StockConfig, error) {
	if _, err := s.GetProduct(ctx, tenantID, productID); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.LowStockThreshold != nil {
		updates["low_stock_threshold"] = *req.LowStockThreshold
	}
	if req.CriticalStockThreshold != nil {
		updates["critical_stock_threshold"] = *req.CriticalStockThreshold
	}
	if req.OverstockThreshold != nil {
		updates["overstock_threshold"] = *req.OverstockThreshold
	}
	if req.ReorderQuantity != nil {
		updates["reorder_quantity"] = *req.ReorderQuantity
	}

	config, err := s.repo.UpdateConfig(ctx, tenantID, productID, updates)
	if err != nil {
		return nil, err
	}

	if s.alerts != nil {
		if err := s.alerts.EvaluateProduct(ctx, tenantID, productID); err != nil {
			s.logger.WithField("productId", productID).WithError(err).Warn("Failed to re-evaluate alerts after config change")
		}
	}
	return config, nil
}

// ListMovementsByProduct returns the ledger for one product, newest first
func (s *StockService) ListMovementsByProduct(ctx context.Context, tenantID string, productID uuid.UUID, page, limit int) ([]models.StockMovement, int64, error) {
	if _, err := s.GetProduct(ctx, tenantID, productID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListMovementsByProduct(ctx, tenantID, productID, page, limit)
}

// ListMovementsByVendor returns a vendor's ledger with filters
func (s *StockService) ListMovementsByVendor(ctx context.Context, tenantID, vendorID string, filters repository.MovementFilters) ([]models.StockMovement, int64, error) {
	return s.repo.ListMovementsByVendor(ctx, tenantID, vendorID, filters)
}

// ListOpenBatches returns a product's open batches in FEFO order
func (s *StockService) ListOpenBatches(ctx context.Context, tenantID string, productID uuid.UUID) ([]models.StockBatch, error) {
	if _, err := s.GetProduct(ctx, tenantID, productID); err != nil {
		return nil, err
	}
	return s.repo.ListOpenBatches(ctx, tenantID, productID)
}

// ListExpiringBatches returns a vendor's open batches expiring inside the
// lookahead window
func (s *StockService) ListExpiringBatches(ctx context.Context, tenantID, vendorID string, daysAhead int) ([]models.StockBatch, error) {
	if daysAhead <= 0 {
		daysAhead = DefaultExpiryLookaheadDays
	}
	before := time.Now().AddDate(0, 0, daysAhead)
	return s.repo.ListExpiringBatches(ctx, tenantID, vendorID, before)
}
