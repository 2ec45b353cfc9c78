package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"stock-service/internal/models"
	"stock-service/internal/repository"
)

// DefaultAnalyticsWindowDays is the lookback for turnover and slow-mover queries
const DefaultAnalyticsWindowDays = 30

// AnalyticsService derives read-only metrics from the movement ledger and the
// live counters. It never mutates stock.
type AnalyticsService struct {
	repo   repository.StockRepositoryInterface
	logger *logrus.Entry
}

// NewAnalyticsService creates a new AnalyticsService
func NewAnalyticsService(repo repository.StockRepositoryInterface, logger *logrus.Logger) *AnalyticsService {
	log := logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AnalyticsService{
		repo:   repo,
		logger: log.WithField("component", "stock-analytics"),
	}
}

// TurnoverRate computes units sold over time-weighted average stock for one
// product across the window. The historical stock curve is replayed from the
// ledger: the stock at window start is the current counter minus every delta
// recorded inside the window. An average of zero yields a rate of zero rather
// than a division error.
func (s *AnalyticsService) TurnoverRate(ctx context.Context, tenantID string, productID uuid.UUID, windowDays int) (*models.TurnoverResult, error) {
	if windowDays <= 0 {
		windowDays = DefaultAnalyticsWindowDays
	}

	product, err := s.repo.GetProduct(ctx, tenantID, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	now := time.Now()
	from := now.AddDate(0, 0, -windowDays)
	movements, err := s.repo.ListMovementsInWindow(ctx, tenantID, productID, from, now)
	if err != nil {
		return nil, err
	}

	unitsSold := 0
	windowDelta := 0
	for _, m := range movements {
		windowDelta += m.QuantityDelta
		if m.Type == models.MovementTypeSale && m.QuantityDelta < 0 {
			unitsSold += -m.QuantityDelta
		}
	}

	averageStock := timeWeightedAverage(product.Stock-windowDelta, movements, from, now)

	rate := 0.0
	if averageStock > 0 {
		rate = float64(unitsSold) / averageStock
	}

	return &models.TurnoverResult{
		ProductID:    productID,
		WindowDays:   windowDays,
		UnitsSold:    unitsSold,
		AverageStock: averageStock,
		TurnoverRate: rate,
	}, nil
}

// timeWeightedAverage integrates the stock curve over [from, to]: each stock
// value is weighted by how long it held before the next movement changed it
func timeWeightedAverage(startStock int, movements []models.StockMovement, from, to time.Time) float64 {
	total := to.Sub(from)
	if total <= 0 {
		return float64(startStock)
	}

	weighted := 0.0
	stock := startStock
	cursor := from
	for _, m := range movements {
		at := m.CreatedAt
		if at.Before(cursor) {
			at = cursor
		}
		weighted += float64(stock) * at.Sub(cursor).Seconds()
		stock += m.QuantityDelta
		cursor = at
	}
	weighted += float64(stock) * to.Sub(cursor).Seconds()

	return weighted / total.Seconds()
}

// SlowMovingProducts lists products holding stock with no recorded sale inside
// the window
func (s *AnalyticsService) SlowMovingProducts(ctx context.Context, tenantID, vendorID string, windowDays int) ([]models.VendorProduct, error) {
	if windowDays <= 0 {
		windowDays = DefaultAnalyticsWindowDays
	}
	since := time.Now().AddDate(0, 0, -windowDays)
	return s.repo.SlowMovingProducts(ctx, tenantID, vendorID, since)
}

// StockValue returns the current vendor stock valued at cost price
func (s *AnalyticsService) StockValue(ctx context.Context, tenantID, vendorID string) (*models.StockValuation, error) {
	return s.repo.StockValuation(ctx, tenantID, vendorID)
}
