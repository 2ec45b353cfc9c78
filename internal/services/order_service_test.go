package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"stock-service/internal/models"
)

func newOrderService(mockRepo *MockStockRepository) *OrderIntegrationService {
	stock := NewStockService(mockRepo, nil, nil, nil)
	return NewOrderIntegrationService(mockRepo, stock, nil)
}

// ===========================================
// Order Status Change Tests
// ===========================================

func TestOrderStatusChange_DeductsOnConfirm(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	mockRepo := new(MockStockRepository)
	service := newOrderService(mockRepo)

	productA := createTestProduct(tenantID, 10, false)
	productB := createTestProduct(tenantID, 8, false)

	mockRepo.On("GetProductForUpdate", ctx, tenantID, productA.ID).Return(productA, nil)
	mockRepo.On("GetProductForUpdate", ctx, tenantID, productB.ID).Return(productB, nil)
	mockRepo.On("UpdateProductStock", ctx, tenantID, productA.ID, 7).Return(nil)
	mockRepo.On("UpdateProductStock", ctx, tenantID, productB.ID, 6).Return(nil)
	mockRepo.On("CreateMovement", ctx, mock.AnythingOfType("*models.StockMovement")).Return(nil)

	req := &models.OrderStatusChangeRequest{
		OrderID:        "order-777",
		VendorID:       "vendor-123",
		PreviousStatus: models.OrderStatusPending,
		NewStatus:      models.OrderStatusConfirmed,
		Items: []models.OrderLineItem{
			{ProductID: productA.ID, Quantity: 3},
			{ProductID: productB.ID, Quantity: 2},
		},
	}

	movements, err := service.ApplyOrderStatusChange(ctx, tenantID, req)

	assert.NoError(t, err)
	assert.Len(t, movements, 2)
	for _, m := range movements {
		assert.Equal(t, models.MovementTypeSale, m.Type)
		assert.Equal(t, models.ReferenceTypeOrder, m.ReferenceType)
		assert.Equal(t, "order-777", *m.ReferenceID)
	}
	mockRepo.AssertExpectations(t)
}

func TestOrderStatusChange_NoOpWhenAlreadyDeducted(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	mockRepo := new(MockStockRepository)
	service := newOrderService(mockRepo)

	// CONFIRMED -> COMPLETED: stock already left on confirmation
	req := &models.OrderStatusChangeRequest{
		OrderID:        "order-777",
		VendorID:       "vendor-123",
		PreviousStatus: models.OrderStatusConfirmed,
		NewStatus:      models.OrderStatusCompleted,
		Items:          []models.OrderLineItem{{ProductID: uuid.New(), Quantity: 3}},
	}

	movements, err := service.ApplyOrderStatusChange(ctx, tenantID, req)

	assert.NoError(t, err)
	assert.Nil(t, movements)
	mockRepo.AssertNotCalled(t, "GetProductForUpdate")
}

func TestOrderStatusChange_NoOpOnCancellation(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	mockRepo := new(MockStockRepository)
	service := newOrderService(mockRepo)

	req := &models.OrderStatusChangeRequest{
		OrderID:        "order-777",
		VendorID:       "vendor-123",
		PreviousStatus: models.OrderStatusPending,
		NewStatus:      models.OrderStatusCancelled,
		Items:          []models.OrderLineItem{{ProductID: uuid.New(), Quantity: 3}},
	}

	movements, err := service.ApplyOrderStatusChange(ctx, tenantID, req)

	assert.NoError(t, err)
	assert.Nil(t, movements)
}

func TestOrderStatusChange_RollsBackOnInsufficientStock(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	mockRepo := new(MockStockRepository)
	service := newOrderService(mockRepo)

	productA := createTestProduct(tenantID, 10, false)
	productB := createTestProduct(tenantID, 1, false)

	mockRepo.On("GetProductForUpdate", ctx, tenantID, productA.ID).Return(productA, nil)
	mockRepo.On("UpdateProductStock", ctx, tenantID, productA.ID, 7).Return(nil)
	mockRepo.On("CreateMovement", ctx, mock.AnythingOfType("*models.StockMovement")).Return(nil)
	// Second item cannot be satisfied
	mockRepo.On("GetProductForUpdate", ctx, tenantID, productB.ID).Return(productB, nil)

	req := &models.OrderStatusChangeRequest{
		OrderID:        "order-888",
		VendorID:       "vendor-123",
		PreviousStatus: models.OrderStatusPending,
		NewStatus:      models.OrderStatusConfirmed,
		Items: []models.OrderLineItem{
			{ProductID: productA.ID, Quantity: 3},
			{ProductID: productB.ID, Quantity: 5},
		},
	}

	movements, err := service.ApplyOrderStatusChange(ctx, tenantID, req)

	assert.Nil(t, movements)

	var orderErr *OrderDeductionError
	assert.ErrorAs(t, err, &orderErr)
	assert.Equal(t, "order-888", orderErr.OrderID)
	assert.Len(t, orderErr.Items, 1)
	assert.Equal(t, productB.ID, orderErr.Items[0].ProductID)
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

// ===========================================
// Bill Item Change Tests
// ===========================================

func TestBillItemChange_ServiceLinesIgnored(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	mockRepo := new(MockStockRepository)
	service := newOrderService(mockRepo)

	req := &models.BillItemChangeRequest{
		BillID:    "bill-1",
		VendorID:  "vendor-123",
		Event:     models.BillItemAdded,
		ItemType:  models.BillItemTypeService,
		ProductID: uuid.New(),
		Quantity:  2,
	}

	result, err := service.ApplyBillItemChange(ctx, tenantID, req)

	assert.NoError(t, err)
	assert.Nil(t, result)
	mockRepo.AssertNotCalled(t, "GetProductForUpdate")
}

func TestBillItemChange_AddedDeductsStock(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	mockRepo := new(MockStockRepository)
	service := newOrderService(mockRepo)

	product := createTestProduct(tenantID, 10, false)

	mockRepo.On("GetProductForUpdate", ctx, tenantID, product.ID).Return(product, nil)
	mockRepo.On("UpdateProductStock", ctx, tenantID, product.ID, 8).Return(nil)
	mockRepo.On("CreateMovement", ctx, mock.AnythingOfType("*models.StockMovement")).Return(nil)

	req := &models.BillItemChangeRequest{
		BillID:    "bill-2",
		VendorID:  "vendor-123",
		Event:     models.BillItemAdded,
		ItemType:  models.BillItemTypeProduct,
		ProductID: product.ID,
		Quantity:  2,
	}

	result, err := service.ApplyBillItemChange(ctx, tenantID, req)

	assert.NoError(t, err)
	assert.Equal(t, 8, result.Stock)
	assert.Equal(t, models.MovementTypeSale, result.Movement.Type)
	assert.Equal(t, models.ReferenceTypeBill, result.Movement.ReferenceType)
	assert.Equal(t, "bill-2", *result.Movement.ReferenceID)
}

func TestBillItemChange_QuantityIncreaseDeductsDelta(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	mockRepo := new(MockStockRepository)
	service := newOrderService(mockRepo)

	product := createTestProduct(tenantID, 10, false)

	mockRepo.On("GetProductForUpdate", ctx, tenantID, product.ID).Return(product, nil)
	// 2 -> 5: only the 3 extra units leave stock
	mockRepo.On("UpdateProductStock", ctx, tenantID, product.ID, 7).Return(nil)
	mockRepo.On("CreateMovement", ctx, mock.AnythingOfType("*models.StockMovement")).Return(nil)

	req := &models.BillItemChangeRequest{
		BillID:           "bill-3",
		VendorID:         "vendor-123",
		Event:            models.BillItemUpdated,
		ItemType:         models.BillItemTypeProduct,
		ProductID:        product.ID,
		Quantity:         5,
		PreviousQuantity: 2,
	}

	result, err := service.ApplyBillItemChange(ctx, tenantID, req)

	assert.NoError(t, err)
	assert.Equal(t, -3, result.Movement.QuantityDelta)
	mockRepo.AssertExpectations(t)
}

func TestBillItemChange_QuantityDecreaseReturnsDelta(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	mockRepo := new(MockStockRepository)
	service := newOrderService(mockRepo)

	product := createTestProduct(tenantID, 10, false)

	mockRepo.On("GetProductForUpdate", ctx, tenantID, product.ID).Return(product, nil)
	// 5 -> 2: three units come back
	mockRepo.On("UpdateProductStock", ctx, tenantID, product.ID, 13).Return(nil)
	mockRepo.On("CreateMovement", ctx, mock.AnythingOfType("*models.StockMovement")).Return(nil)

	req := &models.BillItemChangeRequest{
		BillID:           "bill-4",
		VendorID:         "vendor-123",
		Event:            models.BillItemUpdated,
		ItemType:         models.BillItemTypeProduct,
		ProductID:        product.ID,
		Quantity:         2,
		PreviousQuantity: 5,
	}

	result, err := service.ApplyBillItemChange(ctx, tenantID, req)

	assert.NoError(t, err)
	assert.Equal(t, models.MovementTypeReturn, result.Movement.Type)
	assert.Equal(t, 3, result.Movement.QuantityDelta)
}

func TestBillItemChange_UnchangedQuantityIsNoOp(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	mockRepo := new(MockStockRepository)
	service := newOrderService(mockRepo)

	req := &models.BillItemChangeRequest{
		BillID:           "bill-5",
		VendorID:         "vendor-123",
		Event:            models.BillItemUpdated,
		ItemType:         models.BillItemTypeProduct,
		ProductID:        uuid.New(),
		Quantity:         4,
		PreviousQuantity: 4,
	}

	result, err := service.ApplyBillItemChange(ctx, tenantID, req)

	assert.NoError(t, err)
	assert.Nil(t, result)
	mockRepo.AssertNotCalled(t, "GetProductForUpdate")
}

func TestBillItemChange_DeletedReturnsFullQuantity(t *testing.T) {
	ctx := context.Background()
	tenantID := "tenant-123"

	mockRepo := new(MockStockRepository)
	service := newOrderService(mockRepo)

	product := createTestProduct(tenantID, 5, false)

	mockRepo.On("GetProductForUpdate", ctx, tenantID, product.ID).Return(product, nil)
	mockRepo.On("UpdateProductStock", ctx, tenantID, product.ID, 9).Return(nil)
	mockRepo.On("CreateMovement", ctx, mock.AnythingOfType("*models.StockMovement")).Return(nil)

	req := &models.BillItemChangeRequest{
		BillID:    "bill-6",
		VendorID:  "vendor-123",
		Event:     models.BillItemDeleted,
		ItemType:  models.BillItemTypeProduct,
		ProductID: product.ID,
		Quantity:  4,
	}

	result, err := service.ApplyBillItemChange(ctx, tenantID, req)

	assert.NoError(t, err)
	assert.Equal(t, 9, result.Stock)
	assert.Equal(t, models.MovementTypeReturn, result.Movement.Type)
	assert.Equal(t, "bill-6", *result.Movement.ReferenceID)
}
