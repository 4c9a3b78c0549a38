package handlers

import (
	"context"
	"time"

	"github.com/amirphl/Kitsune-CRM/app/dto"
	businessflow "github.com/amirphl/Kitsune-CRM/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// AIHandlerInterface defines the contract for AI-assisted handlers
type AIHandlerInterface interface {
	SuggestMessages(c fiber.Ctx) error
	RulesFromQuery(c fiber.Ctx) error
	CampaignSummary(c fiber.Ctx) error
}

// AIHandler handles AI-assisted HTTP requests
type AIHandler struct {
	flow      businessflow.AIFlow
	validator *validator.Validate
}

// NewAIHandler creates a new AI handler
func NewAIHandler(flow businessflow.AIFlow) *AIHandler {
	return &AIHandler{
		flow:      flow,
		validator: validator.New(),
	}
}

func (h *AIHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AIHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// SuggestMessages generates campaign message variants
func (h *AIHandler) SuggestMessages(c fiber.Ctx) error {
	var req dto.SuggestMessagesRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	result, err := h.flow.SuggestMessages(h.createRequestContext(c), &req)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to suggest messages", "INTERNAL_ERROR", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Suggestions generated", result)
}

// RulesFromQuery translates a natural-language audience description into rules
func (h *AIHandler) RulesFromQuery(c fiber.Ctx) error {
	var req dto.RulesFromQueryRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	result, err := h.flow.RulesFromQuery(h.createRequestContext(c), &req)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate rules", "INTERNAL_ERROR", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Rules generated", result)
}

// CampaignSummary produces a human-readable delivery summary
func (h *AIHandler) CampaignSummary(c fiber.Ctx) error {
	req := dto.CampaignSummaryRequest{CampaignUUID: c.Params("uuid")}

	result, err := h.flow.CampaignSummary(h.createRequestContext(c), &req)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "NOT_FOUND", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to summarize campaign", "INTERNAL_ERROR", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Summary generated", result)
}

func (h *AIHandler) createRequestContext(c fiber.Ctx) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	_ = cancel
	return context.WithValue(ctx, businessflow.RequestIDKey, c.Get(businessflow.RequestIDKey))
}
