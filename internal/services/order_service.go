package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"stock-service/internal/models"
	"stock-service/internal/repository"
)

// OrderIntegrationService translates order lifecycle and POS bill mutations
// into stock movements. It holds no order or bill state of its own; the order
// and billing services stay the systems of record for their documents.
type OrderIntegrationService struct {
	repo   repository.StockRepositoryInterface
	stock  *StockService
	logger *logrus.Entry
}

// NewOrderIntegrationService creates a new OrderIntegrationService
func NewOrderIntegrationService(repo repository.StockRepositoryInterface, stock *StockService, logger *logrus.Logger) *OrderIntegrationService {
	log := logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &OrderIntegrationService{
		repo:   repo,
		stock:  stock,
		logger: log.WithField("component", "order-integration"),
	}
}

// ApplyOrderStatusChange deducts stock for every line item when an order
// first enters a deducting status. The transition is inspected on both sides
// so re-confirmations (CONFIRMED -> COMPLETED) never deduct twice. All items
// deduct in one transaction: any failure rolls back the whole deduction and
// the caller must not advance the order status.
// Returns the movements created, or nil when the transition is a no-op.
func (s *OrderIntegrationService) ApplyOrderStatusChange(ctx context.Context, tenantID string, req *models.OrderStatusChangeRequest) ([]models.StockMovement, error) {
	if !req.NewStatus.DeductsStock() || req.PreviousStatus.DeductsStock() {
		s.logger.WithFields(logrus.Fields{
			"tenantId":       tenantID,
			"orderId":        req.OrderID,
			"previousStatus": req.PreviousStatus,
			"newStatus":      req.NewStatus,
		}).Debug("Order transition does not deduct stock")
		return nil, nil
	}

	orderID := req.OrderID
	reason := fmt.Sprintf("Order %s %s", req.OrderID, req.NewStatus)

	type applied struct {
		product *models.VendorProduct
		result  *models.MovementResult
		meta    MovementMeta
	}
	var results []applied

	err := s.repo.WithTransaction(ctx, func(tx repository.StockRepositoryInterface) error {
		for _, item := range req.Items {
			meta := MovementMeta{
				Type:          models.MovementTypeSale,
				ReferenceType: models.ReferenceTypeOrder,
				ReferenceID:   &orderID,
				Reason:        &reason,
			}
			result, product, err := s.stock.recordStockOutTx(ctx, tx, tenantID, item.ProductID, item.Quantity, meta)
			if err != nil {
				return &OrderDeductionError{
					OrderID: req.OrderID,
					Items: []ItemFailure{{
						ProductID: item.ProductID,
						Err:       err,
						Message:   err.Error(),
					}},
				}
			}
			results = append(results, applied{product: product, result: result, meta: meta})
		}
		return nil
	})
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"tenantId": tenantID,
			"orderId":  req.OrderID,
		}).WithError(err).Warn("Order stock deduction rolled back")
		return nil, err
	}

	movements := make([]models.StockMovement, 0, len(results))
	for _, a := range results {
		s.stock.publishAdjusted(ctx, a.product, a.result, a.meta)
		movements = append(movements, *a.result.Movement)
	}

	s.logger.WithFields(logrus.Fields{
		"tenantId": tenantID,
		"orderId":  req.OrderID,
		"items":    len(movements),
	}).Info("Order stock deducted")
	return movements, nil
}

// ApplyBillItemChange mirrors a POS bill line mutation into the ledger.
// Service lines carry no stock and are ignored. Added items deduct, quantity
// increases deduct the difference, quantity decreases and deletions return
// the difference as RETURN movements.
// Returns the movement created, or nil when the change is a no-op.
func (s *OrderIntegrationService) ApplyBillItemChange(ctx context.Context, tenantID string, req *models.BillItemChangeRequest) (*models.MovementResult, error) {
	if req.ItemType != models.BillItemTypeProduct {
		return nil, nil
	}

	billID := req.BillID

	switch req.Event {
	case models.BillItemAdded:
		reason := fmt.Sprintf("Bill %s item added", req.BillID)
		return s.stock.RecordStockOut(ctx, tenantID, req.ProductID, req.Quantity, MovementMeta{
			Type:          models.MovementTypeSale,
			ReferenceType: models.ReferenceTypeBill,
			ReferenceID:   &billID,
			Reason:        &reason,
		})

	case models.BillItemUpdated:
		delta := req.Quantity - req.PreviousQuantity
		if delta == 0 {
			return nil, nil
		}
		if delta > 0 {
			reason := fmt.Sprintf("Bill %s quantity increased", req.BillID)
			return s.stock.RecordStockOut(ctx, tenantID, req.ProductID, delta, MovementMeta{
				Type:          models.MovementTypeSale,
				ReferenceType: models.ReferenceTypeBill,
				ReferenceID:   &billID,
				Reason:        &reason,
			})
		}
		reason := fmt.Sprintf("Bill %s quantity decreased", req.BillID)
		return s.stock.RecordStockIn(ctx, tenantID, req.ProductID, -delta, MovementMeta{
			Type:          models.MovementTypeReturn,
			ReferenceType: models.ReferenceTypeBill,
			ReferenceID:   &billID,
			Reason:        &reason,
		})

	case models.BillItemDeleted:
		reason := fmt.Sprintf("Bill %s item removed", req.BillID)
		return s.stock.RecordStockIn(ctx, tenantID, req.ProductID, req.Quantity, MovementMeta{
			Type:          models.MovementTypeReturn,
			ReferenceType: models.ReferenceTypeBill,
			ReferenceID:   &billID,
			Reason:        &reason,
		})
	}

	return nil, fmt.Errorf("unknown bill item event: %s", req.Event)
}
