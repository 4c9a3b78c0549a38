package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/Kitsune-CRM/app/dto"
	"github.com/amirphl/Kitsune-CRM/models"
	"github.com/amirphl/Kitsune-CRM/repository"
	"github.com/amirphl/Kitsune-CRM/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CustomerFlow handles customer management use cases
type CustomerFlow interface {
	ListCustomers(ctx context.Context, req *dto.ListCustomersRequest) (*dto.ListCustomersResponse, error)
	GetCustomer(ctx context.Context, customerUUID string) (*dto.CustomerResponse, error)
	CreateCustomer(ctx context.Context, req *dto.CreateCustomerRequest, metadata *ClientMetadata) (*dto.CustomerResponse, error)
	UpdateCustomer(ctx context.Context, req *dto.UpdateCustomerRequest, metadata *ClientMetadata) (*dto.CustomerResponse, error)
	DeleteCustomer(ctx context.Context, customerUUID string, metadata *ClientMetadata) error
}

// CustomerFlowImpl implements CustomerFlow
type CustomerFlowImpl struct {
	customerRepo repository.CustomerRepository
	auditRepo    repository.AuditLogRepository
	runTx        TxRunner
}

// NewCustomerFlow creates a new customer flow
func NewCustomerFlow(
	customerRepo repository.CustomerRepository,
	auditRepo repository.AuditLogRepository,
	db *gorm.DB,
) CustomerFlow {
	return &CustomerFlowImpl{
		customerRepo: customerRepo,
		auditRepo:    auditRepo,
		runTx:        defaultTxRunner(db),
	}
}

// ListCustomers returns a page of customers, newest first
func (s *CustomerFlowImpl) ListCustomers(ctx context.Context, req *dto.ListCustomersRequest) (*dto.ListCustomersResponse, error) {
	page, pageSize := normalizePage(req.Page, req.PageSize)

	total, err := s.customerRepo.Count(ctx, models.CustomerFilter{})
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_LIST_FAILED", "Failed to count customers", err)
	}

	customers, err := s.customerRepo.ByFilter(ctx, models.CustomerFilter{}, "created_at DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_LIST_FAILED", "Failed to list customers", err)
	}

	resp := &dto.ListCustomersResponse{
		Customers: make([]dto.CustomerResponse, 0, len(customers)),
		Pagination: dto.Pagination{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
		},
	}
	for _, customer := range customers {
		resp.Customers = append(resp.Customers, ToCustomerResponse(customer))
	}

	return resp, nil
}

// GetCustomer returns a single customer by UUID
func (s *CustomerFlowImpl) GetCustomer(ctx context.Context, customerUUID string) (*dto.CustomerResponse, error) {
	customer, err := s.customerRepo.ByUUID(ctx, customerUUID)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_LOOKUP_FAILED", "Failed to look up customer", err)
	}
	if customer == nil {
		return nil, NewBusinessError("NOT_FOUND", "Customer not found", ErrCustomerNotFound)
	}

	resp := ToCustomerResponse(customer)
	return &resp, nil
}

// CreateCustomer registers a new customer with a duplicate-email guard
func (s *CustomerFlowImpl) CreateCustomer(ctx context.Context, req *dto.CreateCustomerRequest, metadata *ClientMetadata) (*dto.CustomerResponse, error) {
	existing, err := s.customerRepo.ByEmail(ctx, req.Email)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_CREATE_FAILED", "Failed to check email uniqueness", err)
	}
	if existing != nil {
		return nil, NewBusinessError("CONFLICT", "A customer with this email already exists", ErrEmailAlreadyExists)
	}

	now := utils.UTCNow()
	customer := &models.Customer{
		UUID:      uuid.New(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.customerRepo.Save(ctx, customer); err != nil {
		return nil, NewBusinessError("CUSTOMER_CREATE_FAILED", "Failed to create customer", err)
	}

	recordAudit(ctx, s.auditRepo, models.AuditActionCustomerCreated,
		fmt.Sprintf("customer %s created", customer.UUID), metadata, true, nil)

	resp := ToCustomerResponse(customer)
	return &resp, nil
}

// UpdateCustomer applies a partial update to a customer
func (s *CustomerFlowImpl) UpdateCustomer(ctx context.Context, req *dto.UpdateCustomerRequest, metadata *ClientMetadata) (*dto.CustomerResponse, error) {
	customer, err := s.customerRepo.ByUUID(ctx, req.UUID)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_LOOKUP_FAILED", "Failed to look up customer", err)
	}
	if customer == nil {
		return nil, NewBusinessError("NOT_FOUND", "Customer not found", ErrCustomerNotFound)
	}

	if req.Email != nil && *req.Email != customer.Email {
		existing, err := s.customerRepo.ByEmail(ctx, *req.Email)
		if err != nil {
			return nil, NewBusinessError("CUSTOMER_UPDATE_FAILED", "Failed to check email uniqueness", err)
		}
		if existing != nil {
			return nil, NewBusinessError("CONFLICT", "A customer with this email already exists", ErrEmailAlreadyExists)
		}
		customer.Email = *req.Email
	}
	if req.Name != nil {
		customer.Name = *req.Name
	}
	if req.Phone != nil {
		customer.Phone = req.Phone
	}
	if req.VisitCount != nil {
		customer.VisitCount = *req.VisitCount
	}

	if err := s.customerRepo.Update(ctx, customer); err != nil {
		return nil, NewBusinessError("CUSTOMER_UPDATE_FAILED", "Failed to update customer", err)
	}

	recordAudit(ctx, s.auditRepo, models.AuditActionCustomerUpdated,
		fmt.Sprintf("customer %s updated", customer.UUID), metadata, true, nil)

	resp := ToCustomerResponse(customer)
	return &resp, nil
}

// DeleteCustomer removes a customer
func (s *CustomerFlowImpl) DeleteCustomer(ctx context.Context, customerUUID string, metadata *ClientMetadata) error {
	customer, err := s.customerRepo.ByUUID(ctx, customerUUID)
	if err != nil {
		return NewBusinessError("CUSTOMER_LOOKUP_FAILED", "Failed to look up customer", err)
	}
	if customer == nil {
		return NewBusinessError("NOT_FOUND", "Customer not found", ErrCustomerNotFound)
	}

	if err := s.customerRepo.Delete(ctx, customer.ID); err != nil {
		return NewBusinessError("CUSTOMER_DELETE_FAILED", "Failed to delete customer", err)
	}

	recordAudit(ctx, s.auditRepo, models.AuditActionCustomerDeleted,
		fmt.Sprintf("customer %s deleted", customer.UUID), metadata, true, nil)

	return nil
}
