package handlers

import (
	"context"
	"time"

	"github.com/amirphl/Kitsune-CRM/app/dto"
	businessflow "github.com/amirphl/Kitsune-CRM/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// CustomerHandlerInterface defines the contract for customer handlers
type CustomerHandlerInterface interface {
	List(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	Create(c fiber.Ctx) error
	Update(c fiber.Ctx) error
	Delete(c fiber.Ctx) error
}

// CustomerHandler handles customer management HTTP requests
type CustomerHandler struct {
	flow      businessflow.CustomerFlow
	validator *validator.Validate
}

// NewCustomerHandler creates a new customer handler
func NewCustomerHandler(flow businessflow.CustomerFlow) *CustomerHandler {
	return &CustomerHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

func (h *CustomerHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CustomerHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// List returns a page of customers
func (h *CustomerHandler) List(c fiber.Ctx) error {
	req := dto.ListCustomersRequest{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}

	result, err := h.flow.ListCustomers(h.createRequestContext(c), &req)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list customers", "INTERNAL_ERROR", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Customers retrieved", result)
}

// Get returns a single customer by UUID
func (h *CustomerHandler) Get(c fiber.Ctx) error {
	result, err := h.flow.GetCustomer(h.createRequestContext(c), c.Params("uuid"))
	if err != nil {
		if businessflow.IsCustomerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Customer not found", "NOT_FOUND", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get customer", "INTERNAL_ERROR", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Customer retrieved", result)
}

// Create registers a new customer
func (h *CustomerHandler) Create(c fiber.Ctx) error {
	var req dto.CreateCustomerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.flow.CreateCustomer(h.createRequestContext(c), &req, metadata)
	if err != nil {
		if businessflow.IsEmailAlreadyExists(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Email already exists", "EMAIL_EXISTS", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create customer", "INTERNAL_ERROR", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Customer created", result)
}

// Update applies a partial update to a customer
func (h *CustomerHandler) Update(c fiber.Ctx) error {
	var req dto.UpdateCustomerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.UUID = c.Params("uuid")

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.flow.UpdateCustomer(h.createRequestContext(c), &req, metadata)
	if err != nil {
		if businessflow.IsCustomerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Customer not found", "NOT_FOUND", nil)
		}
		if businessflow.IsEmailAlreadyExists(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Email already exists", "EMAIL_EXISTS", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update customer", "INTERNAL_ERROR", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Customer updated", result)
}

// Delete removes a customer
func (h *CustomerHandler) Delete(c fiber.Ctx) error {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	err := h.flow.DeleteCustomer(h.createRequestContext(c), c.Params("uuid"), metadata)
	if err != nil {
		if businessflow.IsCustomerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Customer not found", "NOT_FOUND", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete customer", "INTERNAL_ERROR", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Customer deleted", nil)
}

func (h *CustomerHandler) createRequestContext(c fiber.Ctx) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	_ = cancel
	return context.WithValue(ctx, businessflow.RequestIDKey, c.Get(businessflow.RequestIDKey))
}
