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

// CampaignFlow handles campaign management use cases
type CampaignFlow interface {
	ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error)
	GetCampaign(ctx context.Context, campaignUUID string) (*dto.CampaignResponse, error)
	CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CampaignResponse, error)
	UpdateCampaign(ctx context.Context, req *dto.UpdateCampaignRequest, metadata *ClientMetadata) (*dto.CampaignResponse, error)
	DeleteCampaign(ctx context.Context, campaignUUID string, metadata *ClientMetadata) error
}

// CampaignFlowImpl implements CampaignFlow
type CampaignFlowImpl struct {
	campaignRepo repository.CampaignRepository
	segmentRepo  repository.SegmentRepository
	commLogRepo  repository.CommunicationLogRepository
	auditRepo    repository.AuditLogRepository
	runTx        TxRunner
}

// NewCampaignFlow creates a new campaign flow
func NewCampaignFlow(
	campaignRepo repository.CampaignRepository,
	segmentRepo repository.SegmentRepository,
	commLogRepo repository.CommunicationLogRepository,
	auditRepo repository.AuditLogRepository,
	db *gorm.DB,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo: campaignRepo,
		segmentRepo:  segmentRepo,
		commLogRepo:  commLogRepo,
		auditRepo:    auditRepo,
		runTx:        defaultTxRunner(db),
	}
}

// ListCampaigns returns a page of campaigns with their segments preloaded
func (s *CampaignFlowImpl) ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error) {
	page, pageSize := normalizePage(req.Page, req.PageSize)

	campaigns, err := s.campaignRepo.ListWithSegment(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to list campaigns", err)
	}

	resp := &dto.ListCampaignsResponse{Campaigns: make([]dto.CampaignResponse, 0, len(campaigns))}
	for _, campaign := range campaigns {
		resp.Campaigns = append(resp.Campaigns, ToCampaignResponse(campaign))
	}

	return resp, nil
}

// GetCampaign returns a single campaign by UUID
func (s *CampaignFlowImpl) GetCampaign(ctx context.Context, campaignUUID string) (*dto.CampaignResponse, error) {
	campaign, err := s.campaignRepo.ByUUID(ctx, campaignUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to look up campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}

	resp := ToCampaignResponse(campaign)
	return &resp, nil
}

// CreateCampaign schedules a new campaign, snapshotting the segment's audience
// size at creation time
func (s *CampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CampaignResponse, error) {
	segment, err := s.segmentRepo.ByUUID(ctx, req.SegmentUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_CREATE_FAILED", "Failed to look up segment", err)
	}
	if segment == nil {
		return nil, NewBusinessError("NOT_FOUND", "Segment not found", ErrSegmentNotFound)
	}

	now := utils.UTCNow()
	campaign := &models.Campaign{
		UUID:            uuid.New(),
		Name:            req.Name,
		SegmentID:       segment.ID,
		MessageTemplate: req.MessageTemplate,
		Status:          models.CampaignStatusScheduled,
		AudienceSize:    segment.AudienceSize,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.campaignRepo.Save(ctx, campaign); err != nil {
		return nil, NewBusinessError("CAMPAIGN_CREATE_FAILED", "Failed to create campaign", err)
	}

	recordAudit(ctx, s.auditRepo, models.AuditActionCampaignCreated,
		fmt.Sprintf("campaign %s created over segment %s", campaign.UUID, segment.UUID), metadata, true, nil)

	campaign.Segment = segment
	resp := ToCampaignResponse(campaign)
	return &resp, nil
}

// UpdateCampaign applies a partial update while the campaign is still editable
func (s *CampaignFlowImpl) UpdateCampaign(ctx context.Context, req *dto.UpdateCampaignRequest, metadata *ClientMetadata) (*dto.CampaignResponse, error) {
	campaign, err := s.campaignRepo.ByUUID(ctx, req.UUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to look up campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	if !campaign.IsEditable() {
		return nil, NewBusinessErrorf("CONFLICT", "Campaign in status %s can no longer be edited", ErrCampaignNotEditable, campaign.Status)
	}

	if req.Name != nil {
		campaign.Name = *req.Name
	}
	if req.MessageTemplate != nil {
		campaign.MessageTemplate = *req.MessageTemplate
	}

	if err := s.campaignRepo.Update(ctx, campaign); err != nil {
		return nil, NewBusinessError("CAMPAIGN_UPDATE_FAILED", "Failed to update campaign", err)
	}

	recordAudit(ctx, s.auditRepo, models.AuditActionCampaignUpdated,
		fmt.Sprintf("campaign %s updated", campaign.UUID), metadata, true, nil)

	resp := ToCampaignResponse(campaign)
	return &resp, nil
}

// DeleteCampaign removes a campaign and its delivery logs unless a run is in
// progress
func (s *CampaignFlowImpl) DeleteCampaign(ctx context.Context, campaignUUID string, metadata *ClientMetadata) error {
	campaign, err := s.campaignRepo.ByUUID(ctx, campaignUUID)
	if err != nil {
		return NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to look up campaign", err)
	}
	if campaign == nil {
		return NewBusinessError("NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	if !campaign.IsDeletable() {
		return NewBusinessError("CONFLICT", "Campaign cannot be deleted while running", ErrCampaignNotDeletable)
	}

	err = s.runTx(ctx, func(txCtx context.Context) error {
		if err := s.commLogRepo.DeleteByCampaign(txCtx, campaign.ID); err != nil {
			return err
		}
		return s.campaignRepo.Delete(txCtx, campaign.ID)
	})
	if err != nil {
		return NewBusinessError("CAMPAIGN_DELETE_FAILED", "Failed to delete campaign", err)
	}

	recordAudit(ctx, s.auditRepo, models.AuditActionCampaignDeleted,
		fmt.Sprintf("campaign %s deleted", campaign.UUID), metadata, true, nil)

	return nil
}
