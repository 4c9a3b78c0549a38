package handlers

import (
	"context"
	"time"

	"github.com/amirphl/Kitsune-CRM/app/dto"
	businessflow "github.com/amirphl/Kitsune-CRM/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// CommunicationLogHandlerInterface defines the contract for delivery log handlers
type CommunicationLogHandlerInterface interface {
	ListByCampaign(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	Receipt(c fiber.Ctx) error
}

// CommunicationLogHandler handles delivery log HTTP requests, including the
// provider-facing delivery receipt webhook
type CommunicationLogHandler struct {
	flow      businessflow.DeliveryStatusFlow
	validator *validator.Validate
}

// NewCommunicationLogHandler creates a new communication log handler
func NewCommunicationLogHandler(flow businessflow.DeliveryStatusFlow) *CommunicationLogHandler {
	return &CommunicationLogHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

func (h *CommunicationLogHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CommunicationLogHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ListByCampaign returns a page of a campaign's delivery logs
func (h *CommunicationLogHandler) ListByCampaign(c fiber.Ctx) error {
	req := dto.ListCommunicationLogsRequest{
		CampaignUUID: c.Params("uuid"),
		Page:         queryInt(c, "page", 1),
		PageSize:     queryInt(c, "page_size", 20),
	}

	result, err := h.flow.ListLogs(h.createRequestContext(c), &req)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "NOT_FOUND", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list delivery logs", "INTERNAL_ERROR", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Delivery logs retrieved", result)
}

// Get returns one delivery log by message id
func (h *CommunicationLogHandler) Get(c fiber.Ctx) error {
	result, err := h.flow.GetLog(h.createRequestContext(c), c.Params("message_id"))
	if err != nil {
		if businessflow.IsCommunicationLogNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "No message with this id", "NOT_FOUND", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get delivery log", "INTERNAL_ERROR", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Delivery log retrieved", result)
}

// Receipt applies one provider delivery receipt
func (h *CommunicationLogHandler) Receipt(c fiber.Ctx) error {
	var req dto.DeliveryReceiptRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	result, err := h.flow.ApplyReceipt(h.createRequestContext(c), &req)
	if err != nil {
		if businessflow.IsCommunicationLogNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "No message with this id", "NOT_FOUND", nil)
		}
		if businessflow.IsUnknownDeliveryStatus(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown delivery status", "INVALID_STATUS", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to apply receipt", "INTERNAL_ERROR", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Receipt applied", result)
}

func (h *CommunicationLogHandler) createRequestContext(c fiber.Ctx) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	_ = cancel
	return context.WithValue(ctx, businessflow.RequestIDKey, c.Get(businessflow.RequestIDKey))
}
