package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrAlertNotFound   = errors.New("alert not found")

	// Validation failures, rejected before any mutation
	ErrInvalidQuantity  = errors.New("quantity must be a positive integer")
	ErrQuantityTooLarge = fmt.Errorf("quantity exceeds the maximum of %d", MaxMovementQuantity)

	// ErrInsufficientStock marks stock-outs exceeding current stock; nothing
	// is persisted and the caller must not retry automatically
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrBatchIntegrity marks a disagreement between the aggregate counter and
	// batch remaining quantities during FEFO consumption. The operation aborts
	// without touching the counter.
	ErrBatchIntegrity = errors.New("batch quantities disagree with stock counter")

	// ErrInvalidAlertTransition marks an operator action not allowed from the
	// alert's current status
	ErrInvalidAlertTransition = errors.New("invalid alert status transition")
)

// InsufficientStockError carries the available quantity so callers can surface
// it to the end user
type InsufficientStockError struct {
	ProductID uuid.UUID
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// ItemFailure records one failed line item of a multi-item deduction
type ItemFailure struct {
	ProductID uuid.UUID `json:"productId"`
	Err       error     `json:"-"`
	Message   string    `json:"message"`
}

// OrderDeductionError aggregates line-item failures for one order transition.
// The whole deduction rolled back; the order status must not be advanced.
type OrderDeductionError struct {
	OrderID string
	Items   []ItemFailure
}

func (e *OrderDeductionError) Error() string {
	return fmt.Sprintf("stock deduction failed for order %s: %d item(s) failed", e.OrderID, len(e.Items))
}

func (e *OrderDeductionError) Unwrap() error {
	if len(e.Items) == 1 {
		return e.Items[0].Err
	}
	return nil
}
