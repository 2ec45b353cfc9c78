package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Tesseract-Nexus/go-shared/cache"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stock-service/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
)

// Cache TTL constants
const (
	ProductCacheTTL   = 5 * time.Minute // Stock counters change on every sale
	ValuationCacheTTL = 2 * time.Minute
)

// MovementFilters narrows vendor-level movement listings
type MovementFilters struct {
	ProductID     *uuid.UUID
	Type          *models.MovementType
	ReferenceType *models.ReferenceType
	From          *time.Time
	To            *time.Time
	Page          int
	Limit         int
}

// AlertFilters narrows alert listings
type AlertFilters struct {
	VendorID  string
	ProductID *uuid.UUID
	Status    *models.AlertStatus
	Type      *models.AlertType
	Page      int
	Limit     int
}

// StockRepositoryInterface is the persistence boundary consumed by the
// stock services. One implementation wraps gorm; tests substitute a mock.
type StockRepositoryInterface interface {
	// WithTransaction runs fn against a repository bound to one database
	// transaction. Any error rolls the whole transaction back.
	WithTransaction(ctx context.Context, fn func(txRepo StockRepositoryInterface) error) error

	// Products
	CreateProduct(ctx context.Context, product *models.VendorProduct) error
	GetProduct(ctx context.Context, tenantID string, id uuid.UUID) (*models.VendorProduct, error)
	GetProductForUpdate(ctx context.Context, tenantID string, id uuid.UUID) (*models.VendorProduct, error)
	ListProducts(ctx context.Context, tenantID, vendorID string, page, limit int) ([]models.VendorProduct, int64, error)
	UpdateProduct(ctx context.Context, tenantID string, id uuid.UUID, updates map[string]interface{}) error
	UpdateProductStock(ctx context.Context, tenantID string, id uuid.UUID, newStock int) error

	// Movements (append-only ledger)
	CreateMovement(ctx context.Context, movement *models.StockMovement) error
	ListMovementsByProduct(ctx context.Context, tenantID string, productID uuid.UUID, page, limit int) ([]models.StockMovement, int64, error)
	ListMovementsByVendor(ctx context.Context, tenantID, vendorID string, filters MovementFilters) ([]models.StockMovement, int64, error)
	ListMovementsInWindow(ctx context.Context, tenantID string, productID uuid.UUID, from, to time.Time) ([]models.StockMovement, error)

	// Configs
	GetOrCreateConfig(ctx context.Context, tenantID string, productID uuid.UUID) (*models.StockConfig, error)
	UpdateConfig(ctx context.Context, tenantID string, productID uuid.UUID, updates map[string]interface{}) (*models.StockConfig, error)

	// Batches
	CreateBatch(ctx context.Context, batch *models.StockBatch) error
	ListOpenBatches(ctx context.Context, tenantID string, productID uuid.UUID) ([]models.StockBatch, error)
	UpdateBatchRemaining(ctx context.Context, tenantID string, batchID uuid.UUID, remaining int) error
	ListExpiringBatches(ctx context.Context, tenantID, vendorID string, before time.Time) ([]models.StockBatch, error)

	// Alerts
	CreateAlert(ctx context.Context, alert *models.StockAlert) error
	SaveAlert(ctx context.Context, alert *models.StockAlert) error
	GetAlertByID(ctx context.Context, tenantID string, id uuid.UUID) (*models.StockAlert, error)
	FindActiveAlert(ctx context.Context, tenantID string, productID uuid.UUID, alertType models.AlertType) (*models.StockAlert, error)
	FindActiveBatchAlert(ctx context.Context, tenantID string, batchID uuid.UUID, alertType models.AlertType) (*models.StockAlert, error)
	ListUnresolvedAlerts(ctx context.Context, tenantID string, productID uuid.UUID, types []models.AlertType) ([]models.StockAlert, error)
	ListAlerts(ctx context.Context, tenantID string, filters AlertFilters) ([]models.StockAlert, int64, error)
	GetAlertSummary(ctx context.Context, tenantID, vendorID string) (*models.AlertSummary, error)

	// Analytics queries (read-only)
	SlowMovingProducts(ctx context.Context, tenantID, vendorID string, since time.Time) ([]models.VendorProduct, error)
	StockValuation(ctx context.Context, tenantID, vendorID string) (*models.StockValuation, error)
}

// StockRepository handles database operations for stock accounting
type StockRepository struct {
	db    *gorm.DB
	redis *redis.Client
	cache *cache.CacheLayer
}

var _ StockRepositoryInterface = (*StockRepository)(nil)

// NewStockRepository creates a new StockRepository
func NewStockRepository(db *gorm.DB, redisClient *redis.Client) *StockRepository {
	repo := &StockRepository{
		db:    db,
		redis: redisClient,
	}

	// Initialize CacheLayer with the existing Redis client
	if redisClient != nil {
		cacheConfig := cache.CacheConfig{
			L1Enabled:  true,
			L1MaxItems: 5000,
			L1TTL:      30 * time.Second,
			DefaultTTL: ProductCacheTTL,
			KeyPrefix:  "tesseract:stock:",
		}
		repo.cache = cache.NewCacheLayerFromClient(redisClient, cacheConfig)
	}

	return repo
}

// WithTransaction runs fn against a repository bound to one gorm transaction
func (r *StockRepository) WithTransaction(ctx context.Context, fn func(txRepo StockRepositoryInterface) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &StockRepository{db: tx, redis: r.redis, cache: r.cache}
		return fn(txRepo)
	})
}

func productCacheKey(tenantID string, productID uuid.UUID) string {
	return fmt.Sprintf("product:%s:%s", tenantID, productID.String())
}

// invalidateProductCaches drops cached entries touched by a stock mutation
func (r *StockRepository) invalidateProductCaches(ctx context.Context, tenantID string, productID uuid.UUID) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Delete(ctx, productCacheKey(tenantID, productID))
	_ = r.cache.DeletePattern(ctx, fmt.Sprintf("valuation:%s:*", tenantID))
}

// RedisHealth returns the health status of the Redis connection
func (r *StockRepository) RedisHealth(ctx context.Context) error {
	if r.redis == nil {
		return fmt.Errorf("redis not configured")
	}
	return r.redis.Ping(ctx).Err()
}

// CacheStats returns cache statistics
func (r *StockRepository) CacheStats() *cache.CacheStats {
	if r.cache == nil {
		return nil
	}
	stats := r.cache.Stats()
	return &stats
}

// ========== Product Operations ==========

// CreateProduct creates a new vendor product
func (r *StockRepository) CreateProduct(ctx context.Context, product *models.VendorProduct) error {
	product.CreatedAt = time.Now()
	product.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Create(product).Error
}

// GetProduct retrieves a product by ID with caching
func (r *StockRepository) GetProduct(ctx context.Context, tenantID string, id uuid.UUID) (*models.VendorProduct, error) {
	cacheKey := productCacheKey(tenantID, id)

	if r.redis != nil {
		val, err := r.redis.Get(ctx, "tesseract:stock:"+cacheKey).Result()
		if err == nil {
			var product models.VendorProduct
			if err := json.Unmarshal([]byte(val), &product); err == nil {
				return &product, nil
			}
		}
	}

	var product models.VendorProduct
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if r.redis != nil {
		if data, marshalErr := json.Marshal(product); marshalErr == nil {
			r.redis.Set(ctx, "tesseract:stock:"+cacheKey, data, ProductCacheTTL)
		}
	}

	return &product, nil
}

// GetProductForUpdate retrieves a product under a row lock. Must be called
// inside WithTransaction; the lock serializes concurrent stock mutations on
// the same product until the transaction commits.
func (r *StockRepository) GetProductForUpdate(ctx context.Context, tenantID string, id uuid.UUID) (*models.VendorProduct, error) {
	var product models.VendorProduct
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// ListProducts retrieves vendor products with pagination
func (r *StockRepository) ListProducts(ctx context.Context, tenantID, vendorID string, page, limit int) ([]models.VendorProduct, int64, error) {
	var products []models.VendorProduct
	var total int64
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)

	if vendorID != "" {
		query = query.Where("vendor_id = ?", vendorID)
	}

	if err := query.Model(&models.VendorProduct{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page > 0 && limit > 0 {
		offset := (page - 1) * limit
		query = query.Offset(offset).Limit(limit)
	}

	err := query.Order("name ASC").Find(&products).Error
	return products, total, err
}

// UpdateProduct updates product fields other than the stock counter
func (r *StockRepository) UpdateProduct(ctx context.Context, tenantID string, id uuid.UUID, updates map[string]interface{}) error {
	// The counter is owned by the recorder
	delete(updates, "stock")
	updates["updated_at"] = time.Now()

	result := r.db.WithContext(ctx).Model(&models.VendorProduct{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	r.invalidateProductCaches(ctx, tenantID, id)
	return nil
}

// UpdateProductStock writes the new stock counter value
func (r *StockRepository) UpdateProductStock(ctx context.Context, tenantID string, id uuid.UUID, newStock int) error {
	result := r.db.WithContext(ctx).Model(&models.VendorProduct{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]interface{}{
			"stock":      newStock,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	r.invalidateProductCaches(ctx, tenantID, id)
	return nil
}

// ========== Movement Operations ==========

// CreateMovement appends a ledger row. Movements are never updated or deleted.
func (r *StockRepository) CreateMovement(ctx context.Context, movement *models.StockMovement) error {
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(movement).Error
}

// ListMovementsByProduct retrieves the ledger for one product, newest first
func (r *StockRepository) ListMovementsByProduct(ctx context.Context, tenantID string, productID uuid.UUID, page, limit int) ([]models.StockMovement, int64, error) {
	var movements []models.StockMovement
	var total int64
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ?", tenantID, productID)

	if err := query.Model(&models.StockMovement{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page > 0 && limit > 0 {
		offset := (page - 1) * limit
		query = query.Offset(offset).Limit(limit)
	}

	err := query.Order("created_at DESC").Find(&movements).Error
	return movements, total, err
}

// ListMovementsByVendor retrieves a vendor's ledger with filters
func (r *StockRepository) ListMovementsByVendor(ctx context.Context, tenantID, vendorID string, filters MovementFilters) ([]models.StockMovement, int64, error) {
	var movements []models.StockMovement
	var total int64
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND vendor_id = ?", tenantID, vendorID)

	if filters.ProductID != nil {
		query = query.Where("product_id = ?", *filters.ProductID)
	}
	if filters.Type != nil {
		query = query.Where("type = ?", *filters.Type)
	}
	if filters.ReferenceType != nil {
		query = query.Where("reference_type = ?", *filters.ReferenceType)
	}
	if filters.From != nil {
		query = query.Where("created_at >= ?", *filters.From)
	}
	if filters.To != nil {
		query = query.Where("created_at <= ?", *filters.To)
	}

	if err := query.Model(&models.StockMovement{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filters.Page > 0 && filters.Limit > 0 {
		offset := (filters.Page - 1) * filters.Limit
		query = query.Offset(offset).Limit(filters.Limit)
	}

	err := query.Order("created_at DESC").Find(&movements).Error
	return movements, total, err
}

// ListMovementsInWindow retrieves movements in [from, to] oldest first,
// the replay order used by analytics
func (r *StockRepository) ListMovementsInWindow(ctx context.Context, tenantID string, productID uuid.UUID, from, to time.Time) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND created_at >= ? AND created_at <= ?",
			tenantID, productID, from, to).
		Order("created_at ASC").
		Find(&movements).Error
	return movements, err
}

// ========== Config Operations ==========

// GetOrCreateConfig retrieves the per-product threshold config, creating it
// with defaults on first access
func (r *StockRepository) GetOrCreateConfig(ctx context.Context, tenantID string, productID uuid.UUID) (*models.StockConfig, error) {
	var config models.StockConfig
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		First(&config).Error
	if err == nil {
		return &config, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	config = models.StockConfig{
		TenantID:               tenantID,
		ProductID:              productID,
		LowStockThreshold:      models.DefaultLowStockThreshold,
		CriticalStockThreshold: models.DefaultCriticalStockThreshold,
		CreatedAt:              time.Now(),
		UpdatedAt:              time.Now(),
	}
	// ON CONFLICT DO NOTHING keeps concurrent first accesses from duplicating
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&config).Error; err != nil {
		return nil, err
	}
	if config.ID == uuid.Nil {
		// Lost the insert race; read the winner
		if err := r.db.WithContext(ctx).
			Where("tenant_id = ? AND product_id = ?", tenantID, productID).
			First(&config).Error; err != nil {
			return nil, err
		}
	}
	return &config, nil
}

// UpdateConfig patches threshold fields and returns the updated config
func (r *StockRepository) UpdateConfig(ctx context.Context, tenantID string, productID uuid.UUID, updates map[string]interface{}) (*models.StockConfig, error) {
	config, err := r.GetOrCreateConfig(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}

	updates["updated_at"] = time.Now()
	if err := r.db.WithContext(ctx).Model(config).Updates(updates).Error; err != nil {
		return nil, err
	}
	return config, nil
}

// ========== Batch Operations ==========

// CreateBatch creates a new stock batch
func (r *StockRepository) CreateBatch(ctx context.Context, batch *models.StockBatch) error {
	batch.CreatedAt = time.Now()
	batch.UpdatedAt = time.Now()
	if batch.ReceivedDate.IsZero() {
		batch.ReceivedDate = time.Now()
	}
	return r.db.WithContext(ctx).Create(batch).Error
}

// ListOpenBatches returns batches with remaining quantity in FEFO consumption
// order: nearest expiry first (batches without expiry last), then oldest
// received
func (r *StockRepository) ListOpenBatches(ctx context.Context, tenantID string, productID uuid.UUID) ([]models.StockBatch, error) {
	var batches []models.StockBatch
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND quantity_remaining > 0", tenantID, productID).
		Order("expiry_date ASC NULLS LAST, received_date ASC").
		Find(&batches).Error
	return batches, err
}

// UpdateBatchRemaining writes a batch's remaining quantity
func (r *StockRepository) UpdateBatchRemaining(ctx context.Context, tenantID string, batchID uuid.UUID, remaining int) error {
	result := r.db.WithContext(ctx).Model(&models.StockBatch{}).
		Where("tenant_id = ? AND id = ?", tenantID, batchID).
		Updates(map[string]interface{}{
			"quantity_remaining": remaining,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListExpiringBatches returns open batches expiring before the given time,
// soonest expiry first
func (r *StockRepository) ListExpiringBatches(ctx context.Context, tenantID, vendorID string, before time.Time) ([]models.StockBatch, error) {
	var batches []models.StockBatch
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND quantity_remaining > 0 AND expiry_date IS NOT NULL AND expiry_date <= ?",
			tenantID, before)
	if vendorID != "" {
		query = query.Where("vendor_id = ?", vendorID)
	}
	err := query.Order("expiry_date ASC").Find(&batches).Error
	return batches, err
}

// ========== Alert Operations ==========

// CreateAlert creates a new stock alert
func (r *StockRepository) CreateAlert(ctx context.Context, alert *models.StockAlert) error {
	alert.CreatedAt = time.Now()
	alert.UpdatedAt = time.Now()
	if alert.Status == "" {
		alert.Status = models.AlertStatusActive
	}
	return r.db.WithContext(ctx).Create(alert).Error
}

// SaveAlert persists in-place changes to an existing alert
func (r *StockRepository) SaveAlert(ctx context.Context, alert *models.StockAlert) error {
	alert.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(alert).Error
}

// GetAlertByID retrieves an alert by ID
func (r *StockRepository) GetAlertByID(ctx context.Context, tenantID string, id uuid.UUID) (*models.StockAlert, error) {
	var alert models.StockAlert
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &alert, nil
}

// FindActiveAlert finds the single ACTIVE alert for a (product, type) pair
func (r *StockRepository) FindActiveAlert(ctx context.Context, tenantID string, productID uuid.UUID, alertType models.AlertType) (*models.StockAlert, error) {
	var alert models.StockAlert
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND type = ? AND status = ? AND batch_id IS NULL",
			tenantID, productID, alertType, models.AlertStatusActive).
		First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &alert, nil
}

// FindActiveBatchAlert finds the single ACTIVE expiry alert for a (batch, type) pair
func (r *StockRepository) FindActiveBatchAlert(ctx context.Context, tenantID string, batchID uuid.UUID, alertType models.AlertType) (*models.StockAlert, error) {
	var alert models.StockAlert
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND batch_id = ? AND type = ? AND status = ?",
			tenantID, batchID, alertType, models.AlertStatusActive).
		First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &alert, nil
}

// ListUnresolvedAlerts returns ACTIVE and ACKNOWLEDGED alerts of the given
// types for a product, the set eligible for auto-resolution
func (r *StockRepository) ListUnresolvedAlerts(ctx context.Context, tenantID string, productID uuid.UUID, types []models.AlertType) ([]models.StockAlert, error) {
	var alerts []models.StockAlert
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND type IN ? AND status IN ?",
			tenantID, productID, types,
			[]models.AlertStatus{models.AlertStatusActive, models.AlertStatusAcknowledged}).
		Find(&alerts).Error
	return alerts, err
}

// ListAlerts retrieves alerts with pagination and filtering
func (r *StockRepository) ListAlerts(ctx context.Context, tenantID string, filters AlertFilters) ([]models.StockAlert, int64, error) {
	var alerts []models.StockAlert
	var total int64

	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)

	if filters.VendorID != "" {
		query = query.Where("vendor_id = ?", filters.VendorID)
	}
	if filters.ProductID != nil {
		query = query.Where("product_id = ?", *filters.ProductID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Type != nil {
		query = query.Where("type = ?", *filters.Type)
	}

	if err := query.Model(&models.StockAlert{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filters.Page > 0 && filters.Limit > 0 {
		offset := (filters.Page - 1) * filters.Limit
		query = query.Offset(offset).Limit(filters.Limit)
	}

	err := query.Order("created_at DESC").Find(&alerts).Error
	return alerts, total, err
}

// GetAlertSummary returns a summary of alerts for a vendor
func (r *StockRepository) GetAlertSummary(ctx context.Context, tenantID, vendorID string) (*models.AlertSummary, error) {
	summary := &models.AlertSummary{
		ByType: make(map[string]int),
	}

	base := r.db.WithContext(ctx).Model(&models.StockAlert{}).Where("tenant_id = ?", tenantID)
	if vendorID != "" {
		base = base.Where("vendor_id = ?", vendorID)
	}

	var activeCount int64
	if err := base.Session(&gorm.Session{}).
		Where("status = ?", models.AlertStatusActive).
		Count(&activeCount).Error; err != nil {
		return nil, err
	}
	summary.TotalActive = int(activeCount)

	var resolvedCount int64
	if err := base.Session(&gorm.Session{}).
		Where("status = ?", models.AlertStatusResolved).
		Count(&resolvedCount).Error; err != nil {
		return nil, err
	}
	summary.TotalResolved = int(resolvedCount)

	var typeResults []struct {
		Type  models.AlertType
		Count int
	}
	if err := base.Session(&gorm.Session{}).
		Select("type, count(*) as count").
		Where("status = ?", models.AlertStatusActive).
		Group("type").
		Scan(&typeResults).Error; err != nil {
		return nil, err
	}
	for _, tr := range typeResults {
		summary.ByType[string(tr.Type)] = tr.Count
	}

	return summary, nil
}

// ========== Analytics Queries ==========

// SlowMovingProducts returns products with stock on hand and no SALE movement
// since the cutoff
func (r *StockRepository) SlowMovingProducts(ctx context.Context, tenantID, vendorID string, since time.Time) ([]models.VendorProduct, error) {
	var products []models.VendorProduct
	sub := r.db.Model(&models.StockMovement{}).
		Select("product_id").
		Where("tenant_id = ? AND type = ? AND created_at >= ?", tenantID, models.MovementTypeSale, since)

	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND stock > 0", tenantID).
		Where("id NOT IN (?)", sub)
	if vendorID != "" {
		query = query.Where("vendor_id = ?", vendorID)
	}

	err := query.Order("stock DESC").Find(&products).Error
	return products, err
}

// StockValuation returns the snapshot value of a vendor's stock at cost
func (r *StockRepository) StockValuation(ctx context.Context, tenantID, vendorID string) (*models.StockValuation, error) {
	cacheKey := fmt.Sprintf("valuation:%s:%s", tenantID, vendorID)
	if r.redis != nil {
		val, err := r.redis.Get(ctx, "tesseract:stock:"+cacheKey).Result()
		if err == nil {
			var valuation models.StockValuation
			if err := json.Unmarshal([]byte(val), &valuation); err == nil {
				return &valuation, nil
			}
		}
	}

	var row struct {
		TotalValue float64
		Products   int64
	}
	query := r.db.WithContext(ctx).Model(&models.VendorProduct{}).
		Select("COALESCE(SUM(stock * cost_price), 0) as total_value, COUNT(*) as products").
		Where("tenant_id = ?", tenantID)
	if vendorID != "" {
		query = query.Where("vendor_id = ?", vendorID)
	}
	if err := query.Scan(&row).Error; err != nil {
		return nil, err
	}

	valuation := &models.StockValuation{
		VendorID:   vendorID,
		TotalValue: row.TotalValue,
		Products:   int(row.Products),
	}

	if r.redis != nil {
		if data, marshalErr := json.Marshal(valuation); marshalErr == nil {
			r.redis.Set(ctx, "tesseract:stock:"+cacheKey, data, ValuationCacheTTL)
		}
	}

	return valuation, nil
}
