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

// SegmentHandlerInterface defines the contract for segment handlers
type SegmentHandlerInterface interface {
	List(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	Create(c fiber.Ctx) error
	Update(c fiber.Ctx) error
	Delete(c fiber.Ctx) error
	Preview(c fiber.Ctx) error
}

// SegmentHandler handles segment management HTTP requests
type SegmentHandler struct {
	flow      businessflow.SegmentFlow
	publisher *events.Publisher
	validator *validator.Validate
}

// NewSegmentHandler creates a new segment handler
func NewSegmentHandler(flow businessflow.SegmentFlow, publisher *events.Publisher) *SegmentHandler {
	return &SegmentHandler{
		flow:      flow,
		publisher: publisher,
		validator: validator.New(),
	}
}

func (h *SegmentHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *SegmentHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// List returns all segments
func (h *SegmentHandler) List(c fiber.Ctx) error {
	result, err := h.flow.ListSegments(h.createRequestContext(c))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list segments", "INTERNAL_ERROR", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Segments retrieved", result)
}

// Get returns a single segment by UUID
func (h *SegmentHandler) Get(c fiber.Ctx) error {
	result, err := h.flow.GetSegment(h.createRequestContext(c), c.Params("uuid"))
	if err != nil {
		if businessflow.IsSegmentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Segment not found", "NOT_FOUND", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get segment", "INTERNAL_ERROR", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Segment retrieved", result)
}

// Create stores a new segment
func (h *SegmentHandler) Create(c fiber.Ctx) error {
	var req dto.CreateSegmentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	ctx := h.createRequestContext(c)
	result, err := h.flow.CreateSegment(ctx, &req, metadata)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create segment", "INTERNAL_ERROR", nil)
	}

	h.publisher.SegmentCreated(ctx, result.UUID)

	return h.SuccessResponse(c, fiber.StatusCreated, "Segment created", result)
}

// Update applies a partial update to a segment
func (h *SegmentHandler) Update(c fiber.Ctx) error {
	var req dto.UpdateSegmentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.UUID = c.Params("uuid")

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationMessages(err))
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.flow.UpdateSegment(h.createRequestContext(c), &req, metadata)
	if err != nil {
		if businessflow.IsSegmentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Segment not found", "NOT_FOUND", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update segment", "INTERNAL_ERROR", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Segment updated", result)
}

// Delete removes a segment unless campaigns still reference it
func (h *SegmentHandler) Delete(c fiber.Ctx) error {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	err := h.flow.DeleteSegment(h.createRequestContext(c), c.Params("uuid"), metadata)
	if err != nil {
		if businessflow.IsSegmentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Segment not found", "NOT_FOUND", nil)
		}
		if businessflow.IsSegmentInUse(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Segment is referenced by campaigns", "SEGMENT_IN_USE", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete segment", "INTERNAL_ERROR", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Segment deleted", nil)
}

// Preview sizes an ad-hoc rule tree without persisting anything
func (h *SegmentHandler) Preview(c fiber.Ctx) error {
	var req dto.PreviewSegmentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	result, err := h.flow.PreviewSegment(h.createRequestContext(c), &req)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to preview segment", "INTERNAL_ERROR", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Segment previewed", result)
}

func (h *SegmentHandler) createRequestContext(c fiber.Ctx) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	_ = cancel
	return context.WithValue(ctx, businessflow.RequestIDKey, c.Get(businessflow.RequestIDKey))
}
