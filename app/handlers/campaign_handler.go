package handlers

import (
	"context"
	"time"

	"github.com/amirphl/Kitsune-CRM/app/dto"
	"github.com/amirphl/Kitsune-CRM/app/events"
	businessflow "github.com/amirphl/Kitsune-CRM/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	List(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	Create(c fiber.Ctx) error
	Update(c fiber.Ctx) error
	Delete(c fiber.Ctx) error
	Execute(c fiber.Ctx) error
	ExportReport(c fiber.Ctx) error
}

// CampaignHandler handles campaign management HTTP requests
type CampaignHandler struct {
	flow          businessflow.CampaignFlow
	executionFlow businessflow.CampaignExecutionFlow
	reportFlow    businessflow.ReportFlow
	publisher     *events.Publisher
	validator     *validator.Validate
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(
	flow businessflow.CampaignFlow,
	executionFlow businessflow.CampaignExecutionFlow,
	reportFlow businessflow.ReportFlow,
	publisher *events.Publisher,
) *CampaignHandler {
	return &CampaignHandler{
		flow:          flow,
		executionFlow: executionFlow,
		reportFlow:    reportFlow,
		publisher:     publisher,
		validator:     validator.New(),
	}
}

func (h *CampaignHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CampaignHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// List returns a page of campaigns with their segments
func (h *CampaignHandler) List(c fiber.Ctx) error {
	req := dto.ListCampaignsRequest{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}

	result, err := h.flow.ListCampaigns(h.createRequestContext(c), &req)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list campaigns", "INTERNAL_ERROR", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaigns retrieved", result)
}

// Get returns a single campaign by UUID
func (h *CampaignHandler) Get(c fiber.Ctx) error {
	result, err := h.flow.GetCampaign(h.createRequestContext(c), c.Params("uuid"))
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "NOT_FOUND", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get campaign", "INTERNAL_ERROR", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign retrieved", result)
}

// Create schedules a new campaign over a segment
func (h *CampaignHandler) Create(c fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	ctx := h.createRequestContext(c)
	result, err := h.flow.CreateCampaign(ctx, &req, metadata)
	if err != nil {
		if businessflow.IsSegmentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Segment not found", "NOT_FOUND", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create campaign", "INTERNAL_ERROR", nil)
	}

	h.publisher.CampaignCreated(ctx, result.UUID)

	return h.SuccessResponse(c, fiber.StatusCreated, "Campaign created", result)
}

// Update applies a partial update while the campaign is still editable
func (h *CampaignHandler) Update(c fiber.Ctx) error {
	var req dto.UpdateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.UUID = c.Params("uuid")

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.flow.UpdateCampaign(h.createRequestContext(c), &req, metadata)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "NOT_FOUND", nil)
		}
		if businessflow.IsCampaignNotEditable(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Campaign can no longer be edited", "NOT_EDITABLE", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update campaign", "INTERNAL_ERROR", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign updated", result)
}

// Delete removes a campaign unless a run is in progress
func (h *CampaignHandler) Delete(c fiber.Ctx) error {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	err := h.flow.DeleteCampaign(h.createRequestContext(c), c.Params("uuid"), metadata)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "NOT_FOUND", nil)
		}
		if businessflow.IsCampaignNotDeletable(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Campaign cannot be deleted while running", "NOT_DELETABLE", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete campaign", "INTERNAL_ERROR", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign deleted", nil)
}

// Execute runs a scheduled campaign to completion. Campaign runs can outlast
// the default request timeout, so this handler uses a longer one.
func (h *CampaignHandler) Execute(c fiber.Ctx) error {
	var req dto.ExecuteCampaignRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}
	req.UUID = c.Params("uuid")

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	ctx := h.createRequestContextWithTimeout(c, 10*time.Minute)
	result, err := h.executionFlow.ExecuteCampaign(ctx, &req, metadata)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "NOT_FOUND", nil)
		}
		if businessflow.IsCampaignConflict(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Only scheduled campaigns can be executed", "CONFLICT", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Campaign execution failed", "EXECUTION_FAILED", nil)
	}

	h.publisher.CampaignFinished(ctx, result.UUID)

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign executed", result)
}

// ExportReport streams the campaign delivery report as an Excel download
func (h *CampaignHandler) ExportReport(c fiber.Ctx) error {
	filename, content, err := h.reportFlow.ExportCampaignDeliveryReport(h.createRequestContext(c), c.Params("uuid"))
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "NOT_FOUND", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to export report", "EXPORT_FAILED", nil)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return c.Send(content)
}

func (h *CampaignHandler) createRequestContext(c fiber.Ctx) context.Context {
	return h.createRequestContextWithTimeout(c, 30*time.Second)
}

func (h *CampaignHandler) createRequestContextWithTimeout(c fiber.Ctx, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	_ = cancel
	return context.WithValue(ctx, businessflow.RequestIDKey, c.Get(businessflow.RequestIDKey))
}
