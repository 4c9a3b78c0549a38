package businessflow

import (
	"context"
	"fmt"
	"log"

	"github.com/amirphl/Kitsune-CRM/app/dto"
	"github.com/amirphl/Kitsune-CRM/models"
	"github.com/amirphl/Kitsune-CRM/repository"
	"github.com/amirphl/Kitsune-CRM/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SegmentFlow handles audience segment management use cases
type SegmentFlow interface {
	ListSegments(ctx context.Context) (*dto.ListSegmentsResponse, error)
	GetSegment(ctx context.Context, segmentUUID string) (*dto.SegmentResponse, error)
	CreateSegment(ctx context.Context, req *dto.CreateSegmentRequest, metadata *ClientMetadata) (*dto.SegmentResponse, error)
	UpdateSegment(ctx context.Context, req *dto.UpdateSegmentRequest, metadata *ClientMetadata) (*dto.SegmentResponse, error)
	DeleteSegment(ctx context.Context, segmentUUID string, metadata *ClientMetadata) error
	PreviewSegment(ctx context.Context, req *dto.PreviewSegmentRequest) (*dto.PreviewSegmentResponse, error)
}

// SegmentFlowImpl implements SegmentFlow
type SegmentFlowImpl struct {
	segmentRepo  repository.SegmentRepository
	campaignRepo repository.CampaignRepository
	resolver     AudienceResolver
	auditRepo    repository.AuditLogRepository
	logger       *log.Logger
	runTx        TxRunner
}

// NewSegmentFlow creates a new segment flow
func NewSegmentFlow(
	segmentRepo repository.SegmentRepository,
	campaignRepo repository.CampaignRepository,
	resolver AudienceResolver,
	auditRepo repository.AuditLogRepository,
	logger *log.Logger,
	db *gorm.DB,
) SegmentFlow {
	return &SegmentFlowImpl{
		segmentRepo:  segmentRepo,
		campaignRepo: campaignRepo,
		resolver:     resolver,
		auditRepo:    auditRepo,
		logger:       logger,
		runTx:        defaultTxRunner(db),
	}
}

// countAudience sizes a rule tree, degrading to 0 when the count fails so a
// broken count never blocks segment persistence.
func (s *SegmentFlowImpl) countAudience(ctx context.Context, rules models.RuleTree) int {
	count, err := s.resolver.Count(ctx, rules)
	if err != nil {
		s.logger.Printf("segment audience count failed, storing 0: %v", err)
		return 0
	}
	return int(count)
}

// ListSegments returns all segments, newest first
func (s *SegmentFlowImpl) ListSegments(ctx context.Context) (*dto.ListSegmentsResponse, error) {
	segments, err := s.segmentRepo.ByFilter(ctx, models.SegmentFilter{}, "created_at DESC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("SEGMENT_LIST_FAILED", "Failed to list segments", err)
	}

	resp := &dto.ListSegmentsResponse{Segments: make([]dto.SegmentResponse, 0, len(segments))}
	for _, segment := range segments {
		resp.Segments = append(resp.Segments, ToSegmentResponse(segment))
	}

	return resp, nil
}

// GetSegment returns a single segment by UUID
func (s *SegmentFlowImpl) GetSegment(ctx context.Context, segmentUUID string) (*dto.SegmentResponse, error) {
	segment, err := s.segmentRepo.ByUUID(ctx, segmentUUID)
	if err != nil {
		return nil, NewBusinessError("SEGMENT_LOOKUP_FAILED", "Failed to look up segment", err)
	}
	if segment == nil {
		return nil, NewBusinessError("NOT_FOUND", "Segment not found", ErrSegmentNotFound)
	}

	resp := ToSegmentResponse(segment)
	return &resp, nil
}

// CreateSegment stores a new segment with its audience size precomputed
func (s *SegmentFlowImpl) CreateSegment(ctx context.Context, req *dto.CreateSegmentRequest, metadata *ClientMetadata) (*dto.SegmentResponse, error) {
	now := utils.UTCNow()
	segment := &models.Segment{
		UUID:         uuid.New(),
		Name:         req.Name,
		Description:  req.Description,
		Rules:        req.Rules,
		AudienceSize: s.countAudience(ctx, req.Rules),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.segmentRepo.Save(ctx, segment); err != nil {
		return nil, NewBusinessError("SEGMENT_CREATE_FAILED", "Failed to create segment", err)
	}

	recordAudit(ctx, s.auditRepo, models.AuditActionSegmentCreated,
		fmt.Sprintf("segment %s created with audience %d", segment.UUID, segment.AudienceSize), metadata, true, nil)

	resp := ToSegmentResponse(segment)
	return &resp, nil
}

// UpdateSegment applies a partial update and refreshes the cached audience size
func (s *SegmentFlowImpl) UpdateSegment(ctx context.Context, req *dto.UpdateSegmentRequest, metadata *ClientMetadata) (*dto.SegmentResponse, error) {
	segment, err := s.segmentRepo.ByUUID(ctx, req.UUID)
	if err != nil {
		return nil, NewBusinessError("SEGMENT_LOOKUP_FAILED", "Failed to look up segment", err)
	}
	if segment == nil {
		return nil, NewBusinessError("NOT_FOUND", "Segment not found", ErrSegmentNotFound)
	}

	if req.Name != nil {
		segment.Name = *req.Name
	}
	if req.Description != nil {
		segment.Description = req.Description
	}
	if req.Rules != nil {
		segment.Rules = *req.Rules
	}
	segment.AudienceSize = s.countAudience(ctx, segment.Rules)

	if err := s.segmentRepo.Update(ctx, segment); err != nil {
		return nil, NewBusinessError("SEGMENT_UPDATE_FAILED", "Failed to update segment", err)
	}

	recordAudit(ctx, s.auditRepo, models.AuditActionSegmentUpdated,
		fmt.Sprintf("segment %s updated", segment.UUID), metadata, true, nil)

	resp := ToSegmentResponse(segment)
	return &resp, nil
}

// DeleteSegment removes a segment unless campaigns still reference it
func (s *SegmentFlowImpl) DeleteSegment(ctx context.Context, segmentUUID string, metadata *ClientMetadata) error {
	segment, err := s.segmentRepo.ByUUID(ctx, segmentUUID)
	if err != nil {
		return NewBusinessError("SEGMENT_LOOKUP_FAILED", "Failed to look up segment", err)
	}
	if segment == nil {
		return NewBusinessError("NOT_FOUND", "Segment not found", ErrSegmentNotFound)
	}

	campaigns, err := s.campaignRepo.ListBySegment(ctx, segment.ID)
	if err != nil {
		return NewBusinessError("SEGMENT_DELETE_FAILED", "Failed to check referencing campaigns", err)
	}
	if len(campaigns) > 0 {
		return NewBusinessErrorf("CONFLICT", "Segment is referenced by %d campaign(s)", ErrSegmentInUse, len(campaigns))
	}

	if err := s.segmentRepo.Delete(ctx, segment.ID); err != nil {
		return NewBusinessError("SEGMENT_DELETE_FAILED", "Failed to delete segment", err)
	}

	recordAudit(ctx, s.auditRepo, models.AuditActionSegmentDeleted,
		fmt.Sprintf("segment %s deleted", segment.UUID), metadata, true, nil)

	return nil
}

// PreviewSegment sizes an ad-hoc rule tree and returns a sample audience
func (s *SegmentFlowImpl) PreviewSegment(ctx context.Context, req *dto.PreviewSegmentRequest) (*dto.PreviewSegmentResponse, error) {
	count, err := s.resolver.Count(ctx, req.Rules)
	if err != nil {
		return nil, NewBusinessError("SEGMENT_PREVIEW_FAILED", "Failed to count audience", err)
	}

	sample, err := s.resolver.Resolve(ctx, req.Rules, utils.SegmentPreviewLimit)
	if err != nil {
		return nil, NewBusinessError("SEGMENT_PREVIEW_FAILED", "Failed to resolve audience sample", err)
	}

	resp := &dto.PreviewSegmentResponse{
		AudienceSize: count,
		Sample:       make([]dto.CustomerResponse, 0, len(sample)),
	}
	for _, customer := range sample {
		resp.Sample = append(resp.Sample, ToCustomerResponse(customer))
	}

	return resp, nil
}
