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

// DefaultExpiryLookaheadDays is the window for EXPIRING_SOON alerts
const DefaultExpiryLookaheadDays = 30

// thresholdAlertTypes are the types managed by stock-level evaluation,
// in first-match-wins order
var thresholdAlertTypes = []models.AlertType{
	models.AlertTypeOutOfStock,
	models.AlertTypeCriticalStock,
	models.AlertTypeLowStock,
	models.AlertTypeOverstock,
}

// AlertService evaluates stock levels against per-product thresholds and
// manages the alert lifecycle. Creation is idempotent: an existing ACTIVE
// alert of the same type is updated in place, never duplicated.
type AlertService struct {
	repo      repository.StockRepositoryInterface
	publisher *events.StockEventPublisher
	logger    *logrus.Entry
}

// NewAlertService creates a new AlertService
func NewAlertService(repo repository.StockRepositoryInterface, publisher *events.StockEventPublisher, logger *logrus.Logger) *AlertService {
	log := logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AlertService{
		repo:      repo,
		publisher: publisher,
		logger:    log.WithField("component", "alert-engine"),
	}
}

// EvaluateProduct re-runs threshold evaluation for one product against its
// current stock value
func (s *AlertService) EvaluateProduct(ctx context.Context, tenantID string, productID uuid.UUID) error {
	product, err := s.repo.GetProduct(ctx, tenantID, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProductNotFound
		}
		return err
	}

	return s.repo.WithTransaction(ctx, func(tx repository.StockRepositoryInterface) error {
		return s.evaluateProductTx(ctx, tx, product, product.Stock)
	})
}

// SweepVendor re-evaluates every product of a vendor's catalogue.
// Returns the number of products evaluated.
func (s *AlertService) SweepVendor(ctx context.Context, tenantID, vendorID string) (int, error) {
	products, _, err := s.repo.ListProducts(ctx, tenantID, vendorID, 0, 0)
	if err != nil {
		return 0, err
	}

	evaluated := 0
	for i := range products {
		product := products[i]
		err := s.repo.WithTransaction(ctx, func(tx repository.StockRepositoryInterface) error {
			return s.evaluateProductTx(ctx, tx, &product, product.Stock)
		})
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"tenantId":  tenantID,
				"productId": product.ID,
			}).WithError(err).Error("Failed to evaluate product during sweep")
			continue
		}
		evaluated++
	}

	return evaluated, nil
}

// evaluateProductTx runs the threshold rules against the given stock value
// inside an open transaction. First match wins: out-of-stock, critical, low,
// overstock. Alerts of a type whose condition no longer holds are resolved.
func (s *AlertService) evaluateProductTx(ctx context.Context, tx repository.StockRepositoryInterface, product *models.VendorProduct, stock int) error {
	config, err := tx.GetOrCreateConfig(ctx, product.TenantID, product.ID)
	if err != nil {
		return fmt.Errorf("failed to load stock config: %w", err)
	}

	var breach models.AlertType
	var threshold int
	switch {
	case stock == 0:
		breach = models.AlertTypeOutOfStock
	case stock <= config.CriticalStockThreshold:
		breach, threshold = models.AlertTypeCriticalStock, config.CriticalStockThreshold
	case stock <= config.LowStockThreshold:
		breach, threshold = models.AlertTypeLowStock, config.LowStockThreshold
	case config.OverstockThreshold > 0 && stock >= config.OverstockThreshold:
		breach, threshold = models.AlertTypeOverstock, config.OverstockThreshold
	}

	if breach != "" {
		if err := s.ensureAlertTx(ctx, tx, product, breach, stock, threshold); err != nil {
			return err
		}
	}

	return s.resolveClearedTx(ctx, tx, product, stock, config)
}

// conditionHolds reports whether the breach condition for an alert type still
// holds at the given stock value
func conditionHolds(alertType models.AlertType, stock int, config *models.StockConfig) bool {
	switch alertType {
	case models.AlertTypeOutOfStock:
		return stock == 0
	case models.AlertTypeCriticalStock:
		return stock <= config.CriticalStockThreshold
	case models.AlertTypeLowStock:
		return stock <= config.LowStockThreshold
	case models.AlertTypeOverstock:
		return config.OverstockThreshold > 0 && stock >= config.OverstockThreshold
	}
	return false
}

// ensureAlertTx creates an ACTIVE alert of the given type for the product, or
// refreshes the existing one in place
func (s *AlertService) ensureAlertTx(ctx context.Context, tx repository.StockRepositoryInterface, product *models.VendorProduct, alertType models.AlertType, stock, threshold int) error {
	existing, err := tx.FindActiveAlert(ctx, product.TenantID, product.ID, alertType)
	if err == nil {
		existing.CurrentQty = stock
		existing.ThresholdQty = threshold
		existing.Message = alertMessage(alertType, product.Name, stock, threshold)
		return tx.SaveAlert(ctx, existing)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	alert := &models.StockAlert{
		TenantID:     product.TenantID,
		VendorID:     product.VendorID,
		ProductID:    product.ID,
		Type:         alertType,
		Status:       models.AlertStatusActive,
		Title:        alertTitle(alertType),
		Message:      alertMessage(alertType, product.Name, stock, threshold),
		CurrentQty:   stock,
		ThresholdQty: threshold,
		ProductName:  strPtr(product.Name),
		ProductSKU:   strPtr(product.SKU),
	}
	if err := tx.CreateAlert(ctx, alert); err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	s.publishBreach(ctx, product, alert)
	return nil
}

// resolveClearedTx auto-resolves unresolved threshold alerts whose condition
// no longer holds
func (s *AlertService) resolveClearedTx(ctx context.Context, tx repository.StockRepositoryInterface, product *models.VendorProduct, stock int, config *models.StockConfig) error {
	alerts, err := tx.ListUnresolvedAlerts(ctx, product.TenantID, product.ID, thresholdAlertTypes)
	if err != nil {
		return err
	}

	now := time.Now()
	for i := range alerts {
		alert := alerts[i]
		if conditionHolds(alert.Type, stock, config) {
			continue
		}
		alert.Status = models.AlertStatusResolved
		alert.ResolvedAt = &now
		if err := tx.SaveAlert(ctx, &alert); err != nil {
			return fmt.Errorf("failed to resolve alert %s: %w", alert.ID, err)
		}
	}
	return nil
}

// Acknowledge marks an ACTIVE alert as acknowledged by an operator
func (s *AlertService) Acknowledge(ctx context.Context, tenantID string, alertID uuid.UUID, by *string) (*models.StockAlert, error) {
	alert, err := s.getAlert(ctx, tenantID, alertID)
	if err != nil {
		return nil, err
	}
	if alert.Status != models.AlertStatusActive {
		return nil, ErrInvalidAlertTransition
	}

	now := time.Now()
	alert.Status = models.AlertStatusAcknowledged
	alert.AcknowledgedBy = by
	alert.AcknowledgedAt = &now
	if err := s.repo.SaveAlert(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

// Resolve marks an ACTIVE or ACKNOWLEDGED alert as resolved. Resolved is
// terminal; a fresh breach opens a new alert.
func (s *AlertService) Resolve(ctx context.Context, tenantID string, alertID uuid.UUID) (*models.StockAlert, error) {
	alert, err := s.getAlert(ctx, tenantID, alertID)
	if err != nil {
		return nil, err
	}
	if alert.IsTerminal() {
		return nil, ErrInvalidAlertTransition
	}

	now := time.Now()
	alert.Status = models.AlertStatusResolved
	alert.ResolvedAt = &now
	if err := s.repo.SaveAlert(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

// Dismiss marks an ACTIVE or ACKNOWLEDGED alert as dismissed (terminal)
func (s *AlertService) Dismiss(ctx context.Context, tenantID string, alertID uuid.UUID) (*models.StockAlert, error) {
	alert, err := s.getAlert(ctx, tenantID, alertID)
	if err != nil {
		return nil, err
	}
	if alert.IsTerminal() {
		return nil, ErrInvalidAlertTransition
	}

	alert.Status = models.AlertStatusDismissed
	if err := s.repo.SaveAlert(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

func (s *AlertService) getAlert(ctx context.Context, tenantID string, alertID uuid.UUID) (*models.StockAlert, error) {
	alert, err := s.repo.GetAlertByID(ctx, tenantID, alertID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	return alert, nil
}

// SweepExpiry scans open batches and ensures EXPIRING_SOON/EXPIRED alerts,
// keyed per batch. Independent of the stock-threshold evaluation.
// Returns the number of batches flagged.
func (s *AlertService) SweepExpiry(ctx context.Context, tenantID, vendorID string, daysAhead int) (int, error) {
	if daysAhead <= 0 {
		daysAhead = DefaultExpiryLookaheadDays
	}

	now := time.Now()
	before := now.AddDate(0, 0, daysAhead)
	batches, err := s.repo.ListExpiringBatches(ctx, tenantID, vendorID, before)
	if err != nil {
		return 0, err
	}

	flagged := 0
	for i := range batches {
		batch := batches[i]
		if batch.ExpiryDate == nil {
			continue
		}

		alertType := models.AlertTypeExpiringSoon
		if !batch.ExpiryDate.After(now) {
			alertType = models.AlertTypeExpired
		}

		if err := s.ensureBatchAlert(ctx, &batch, alertType); err != nil {
			s.logger.WithFields(logrus.Fields{
				"tenantId": tenantID,
				"batchId":  batch.ID,
			}).WithError(err).Error("Failed to ensure expiry alert")
			continue
		}
		flagged++
	}

	return flagged, nil
}

// ensureBatchAlert creates or refreshes the per-batch expiry alert
func (s *AlertService) ensureBatchAlert(ctx context.Context, batch *models.StockBatch, alertType models.AlertType) error {
	existing, err := s.repo.FindActiveBatchAlert(ctx, batch.TenantID, batch.ID, alertType)
	if err == nil {
		existing.CurrentQty = batch.QuantityRemaining
		existing.Message = batchAlertMessage(alertType, batch)
		return s.repo.SaveAlert(ctx, existing)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	batchID := batch.ID
	alert := &models.StockAlert{
		TenantID:   batch.TenantID,
		VendorID:   batch.VendorID,
		ProductID:  batch.ProductID,
		BatchID:    &batchID,
		Type:       alertType,
		Status:     models.AlertStatusActive,
		Title:      alertTitle(alertType),
		Message:    batchAlertMessage(alertType, batch),
		CurrentQty: batch.QuantityRemaining,
	}
	return s.repo.CreateAlert(ctx, alert)
}

// publishBreach emits the matching NATS event for a newly opened alert
func (s *AlertService) publishBreach(ctx context.Context, product *models.VendorProduct, alert *models.StockAlert) {
	if s.publisher == nil {
		return
	}

	var err error
	switch alert.Type {
	case models.AlertTypeOutOfStock:
		err = s.publisher.PublishOutOfStockAlert(ctx, product.TenantID, product.ID.String(), product.Name, product.SKU)
	case models.AlertTypeLowStock, models.AlertTypeCriticalStock:
		err = s.publisher.PublishLowStockAlert(ctx, product.TenantID, product.ID.String(), product.Name, product.SKU, alert.CurrentQty, alert.ThresholdQty)
	default:
		return
	}
	if err != nil {
		s.logger.WithField("productId", product.ID).WithError(err).Warn("Failed to publish alert event")
	}
}

func alertTitle(alertType models.AlertType) string {
	switch alertType {
	case models.AlertTypeOutOfStock:
		return "Out of Stock"
	case models.AlertTypeCriticalStock:
		return "Critical Stock Alert"
	case models.AlertTypeLowStock:
		return "Low Stock Alert"
	case models.AlertTypeOverstock:
		return "Overstock Alert"
	case models.AlertTypeExpiringSoon:
		return "Batch Expiring Soon"
	case models.AlertTypeExpired:
		return "Batch Expired"
	}
	return "Stock Alert"
}

func alertMessage(alertType models.AlertType, productName string, stock, threshold int) string {
	switch alertType {
	case models.AlertTypeOutOfStock:
		return fmt.Sprintf("%s is out of stock", productName)
	case models.AlertTypeOverstock:
		return fmt.Sprintf("%s stock is %d, above threshold of %d", productName, stock, threshold)
	default:
		return fmt.Sprintf("%s stock is %d, below threshold of %d", productName, stock, threshold)
	}
}

func batchAlertMessage(alertType models.AlertType, batch *models.StockBatch) string {
	expiry := ""
	if batch.ExpiryDate != nil {
		expiry = batch.ExpiryDate.Format("2006-01-02")
	}
	if alertType == models.AlertTypeExpired {
		return fmt.Sprintf("Batch %s expired on %s with %d units remaining", batch.BatchNumber, expiry, batch.QuantityRemaining)
	}
	return fmt.Sprintf("Batch %s expires on %s with %d units remaining", batch.BatchNumber, expiry, batch.QuantityRemaining)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
