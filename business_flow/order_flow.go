package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/Kitsune-CRM/app/dto"
	"github.com/amirphl/Kitsune-CRM/models"
	"github.com/amirphl/Kitsune-CRM/repository"
	"github.com/amirphl/Kitsune-CRM/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// OrderFlow handles order management use cases. Orders drive the customer
// purchase aggregates (total_spend, last_purchase) the rule compiler reads,
// so every mutation adjusts them in the same transaction.
type OrderFlow interface {
	ListOrders(ctx context.Context, req *dto.ListOrdersRequest) (*dto.ListOrdersResponse, error)
	GetOrder(ctx context.Context, orderUUID string) (*dto.OrderResponse, error)
	CreateOrder(ctx context.Context, req *dto.CreateOrderRequest, metadata *ClientMetadata) (*dto.OrderResponse, error)
	UpdateOrder(ctx context.Context, req *dto.UpdateOrderRequest, metadata *ClientMetadata) (*dto.OrderResponse, error)
	DeleteOrder(ctx context.Context, orderUUID string, metadata *ClientMetadata) error
}

// OrderFlowImpl implements OrderFlow
type OrderFlowImpl struct {
	orderRepo    repository.OrderRepository
	customerRepo repository.CustomerRepository
	auditRepo    repository.AuditLogRepository
	runTx        TxRunner
}

// NewOrderFlow creates a new order flow
func NewOrderFlow(
	orderRepo repository.OrderRepository,
	customerRepo repository.CustomerRepository,
	auditRepo repository.AuditLogRepository,
	db *gorm.DB,
) OrderFlow {
	return &OrderFlowImpl{
		orderRepo:    orderRepo,
		customerRepo: customerRepo,
		auditRepo:    auditRepo,
		runTx:        defaultTxRunner(db),
	}
}

// ListOrders returns a page of orders, optionally scoped to one customer
func (s *OrderFlowImpl) ListOrders(ctx context.Context, req *dto.ListOrdersRequest) (*dto.ListOrdersResponse, error) {
	page, pageSize := normalizePage(req.Page, req.PageSize)

	filter := models.OrderFilter{}
	if req.CustomerUUID != nil {
		customer, err := s.customerRepo.ByUUID(ctx, *req.CustomerUUID)
		if err != nil {
			return nil, NewBusinessError("ORDER_LIST_FAILED", "Failed to look up customer", err)
		}
		if customer == nil {
			return nil, NewBusinessError("NOT_FOUND", "Customer not found", ErrCustomerNotFound)
		}
		filter.CustomerID = &customer.ID
	}

	total, err := s.orderRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("ORDER_LIST_FAILED", "Failed to count orders", err)
	}

	orders, err := s.orderRepo.ByFilter(ctx, filter, "created_at DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("ORDER_LIST_FAILED", "Failed to list orders", err)
	}

	resp := &dto.ListOrdersResponse{
		Orders: make([]dto.OrderResponse, 0, len(orders)),
		Pagination: dto.Pagination{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
		},
	}
	for _, order := range orders {
		resp.Orders = append(resp.Orders, ToOrderResponse(order))
	}

	return resp, nil
}

// GetOrder returns a single order by UUID
func (s *OrderFlowImpl) GetOrder(ctx context.Context, orderUUID string) (*dto.OrderResponse, error) {
	order, err := s.orderRepo.ByUUID(ctx, orderUUID)
	if err != nil {
		return nil, NewBusinessError("ORDER_LOOKUP_FAILED", "Failed to look up order", err)
	}
	if order == nil {
		return nil, NewBusinessError("NOT_FOUND", "Order not found", ErrOrderNotFound)
	}

	resp := ToOrderResponse(order)
	return &resp, nil
}

// CreateOrder records an order and rolls its amount into the customer's
// purchase aggregates
func (s *OrderFlowImpl) CreateOrder(ctx context.Context, req *dto.CreateOrderRequest, metadata *ClientMetadata) (*dto.OrderResponse, error) {
	customer, err := s.customerRepo.ByUUID(ctx, req.CustomerUUID)
	if err != nil {
		return nil, NewBusinessError("ORDER_CREATE_FAILED", "Failed to look up customer", err)
	}
	if customer == nil {
		return nil, NewBusinessError("NOT_FOUND", "Customer not found", ErrCustomerNotFound)
	}

	now := utils.UTCNow()
	status := models.OrderStatusCompleted
	if req.Status != nil {
		status = *req.Status
	}

	order := &models.Order{
		UUID:       uuid.New(),
		CustomerID: customer.ID,
		Amount:     req.Amount,
		Items:      pq.StringArray(req.Items),
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.runTx(ctx, func(txCtx context.Context) error {
		if err := s.orderRepo.Save(txCtx, order); err != nil {
			return err
		}
		return s.customerRepo.ApplyPurchaseDelta(txCtx, customer.ID, order.Amount, &now)
	})
	if err != nil {
		return nil, NewBusinessError("ORDER_CREATE_FAILED", "Failed to create order", err)
	}

	recordAudit(ctx, s.auditRepo, models.AuditActionOrderCreated,
		fmt.Sprintf("order %s created for customer %s", order.UUID, customer.UUID), metadata, true, nil)

	resp := ToOrderResponse(order)
	return &resp, nil
}

// UpdateOrder applies a partial update and adjusts the customer's spend by
// the amount delta
func (s *OrderFlowImpl) UpdateOrder(ctx context.Context, req *dto.UpdateOrderRequest, metadata *ClientMetadata) (*dto.OrderResponse, error) {
	order, err := s.orderRepo.ByUUID(ctx, req.UUID)
	if err != nil {
		return nil, NewBusinessError("ORDER_LOOKUP_FAILED", "Failed to look up order", err)
	}
	if order == nil {
		return nil, NewBusinessError("NOT_FOUND", "Order not found", ErrOrderNotFound)
	}

	amountDelta := 0.0
	if req.Amount != nil {
		amountDelta = *req.Amount - order.Amount
		order.Amount = *req.Amount
	}
	if req.Items != nil {
		order.Items = pq.StringArray(req.Items)
	}
	if req.Status != nil {
		order.Status = *req.Status
	}

	err = s.runTx(ctx, func(txCtx context.Context) error {
		if err := s.orderRepo.Update(txCtx, order); err != nil {
			return err
		}
		if amountDelta != 0 {
			return s.customerRepo.ApplyPurchaseDelta(txCtx, order.CustomerID, amountDelta, nil)
		}
		return nil
	})
	if err != nil {
		return nil, NewBusinessError("ORDER_UPDATE_FAILED", "Failed to update order", err)
	}

	recordAudit(ctx, s.auditRepo, models.AuditActionOrderUpdated,
		fmt.Sprintf("order %s updated", order.UUID), metadata, true, nil)

	resp := ToOrderResponse(order)
	return &resp, nil
}

// DeleteOrder removes an order and backs its amount out of the customer's
// spend total
func (s *OrderFlowImpl) DeleteOrder(ctx context.Context, orderUUID string, metadata *ClientMetadata) error {
	order, err := s.orderRepo.ByUUID(ctx, orderUUID)
	if err != nil {
		return NewBusinessError("ORDER_LOOKUP_FAILED", "Failed to look up order", err)
	}
	if order == nil {
		return NewBusinessError("NOT_FOUND", "Order not found", ErrOrderNotFound)
	}

	err = s.runTx(ctx, func(txCtx context.Context) error {
		if err := s.orderRepo.Delete(txCtx, order.ID); err != nil {
			return err
		}
		return s.customerRepo.ApplyPurchaseDelta(txCtx, order.CustomerID, -order.Amount, nil)
	})
	if err != nil {
		return NewBusinessError("ORDER_DELETE_FAILED", "Failed to delete order", err)
	}

	recordAudit(ctx, s.auditRepo, models.AuditActionOrderDeleted,
		fmt.Sprintf("order %s deleted", order.UUID), metadata, true, nil)

	return nil
}
