package businessflow

import (
	"context"

	"github.com/amirphl/Kitsune-CRM/app/dto"
	"github.com/amirphl/Kitsune-CRM/models"
	"github.com/amirphl/Kitsune-CRM/repository"
	"github.com/amirphl/Kitsune-CRM/utils"
	"gorm.io/gorm"
)

// TxRunner executes a function inside a database transaction. Flows hold it
// as a field so tests can swap in a pass-through runner.
type TxRunner func(ctx context.Context, fn func(context.Context) error) error

func defaultTxRunner(db *gorm.DB) TxRunner {
	return func(ctx context.Context, fn func(context.Context) error) error {
		return repository.WithTransaction(ctx, db, fn)
	}
}

// recordAudit persists an audit entry best-effort; audit failures never fail
// the business operation.
func recordAudit(ctx context.Context, repo repository.AuditLogRepository, action, description string, metadata *ClientMetadata, success bool, errorMessage *string) {
	if repo == nil {
		return
	}

	entry := &models.AuditLog{
		Action:       action,
		Description:  utils.ToPtr(description),
		Success:      utils.ToPtr(success),
		ErrorMessage: errorMessage,
		CreatedAt:    utils.UTCNow(),
	}
	if metadata != nil {
		if metadata.IPAddress != "" {
			entry.IPAddress = utils.ToPtr(metadata.IPAddress)
		}
		if metadata.UserAgent != "" {
			entry.UserAgent = utils.ToPtr(metadata.UserAgent)
		}
		if metadata.RequestID != "" {
			entry.RequestID = utils.ToPtr(metadata.RequestID)
		}
	}

	_ = repo.Save(ctx, entry)
}

func ToCustomerResponse(customer *models.Customer) dto.CustomerResponse {
	return dto.CustomerResponse{
		ID:           customer.ID,
		UUID:         customer.UUID.String(),
		Name:         customer.Name,
		Email:        customer.Email,
		Phone:        customer.Phone,
		TotalSpend:   customer.TotalSpend,
		VisitCount:   customer.VisitCount,
		LastPurchase: customer.LastPurchase,
		CreatedAt:    customer.CreatedAt,
		UpdatedAt:    customer.UpdatedAt,
	}
}

func ToOrderResponse(order *models.Order) dto.OrderResponse {
	return dto.OrderResponse{
		ID:         order.ID,
		UUID:       order.UUID.String(),
		CustomerID: order.CustomerID,
		Amount:     order.Amount,
		Items:      []string(order.Items),
		Status:     order.Status,
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}
}

func ToSegmentResponse(segment *models.Segment) dto.SegmentResponse {
	return dto.SegmentResponse{
		ID:           segment.ID,
		UUID:         segment.UUID.String(),
		Name:         segment.Name,
		Description:  segment.Description,
		Rules:        segment.Rules,
		AudienceSize: segment.AudienceSize,
		CreatedAt:    segment.CreatedAt,
		UpdatedAt:    segment.UpdatedAt,
	}
}

func ToCampaignResponse(campaign *models.Campaign) dto.CampaignResponse {
	resp := dto.CampaignResponse{
		ID:              campaign.ID,
		UUID:            campaign.UUID.String(),
		Name:            campaign.Name,
		SegmentID:       campaign.SegmentID,
		MessageTemplate: campaign.MessageTemplate,
		Status:          campaign.Status.String(),
		AudienceSize:    campaign.AudienceSize,
		SentCount:       campaign.SentCount,
		FailedCount:     campaign.FailedCount,
		StartedAt:       campaign.StartedAt,
		CompletedAt:     campaign.CompletedAt,
		CreatedAt:       campaign.CreatedAt,
		UpdatedAt:       campaign.UpdatedAt,
	}
	if campaign.Segment != nil {
		segment := ToSegmentResponse(campaign.Segment)
		resp.Segment = &segment
	}
	return resp
}

func ToCommunicationLogResponse(log *models.CommunicationLog) dto.CommunicationLogResponse {
	resp := dto.CommunicationLogResponse{
		ID:              log.ID,
		CampaignID:      log.CampaignID,
		CustomerID:      log.CustomerID,
		MessageID:       log.MessageID,
		Content:         log.Content,
		Status:          log.Status.String(),
		StatusUpdatedAt: log.StatusUpdatedAt,
		CreatedAt:       log.CreatedAt,
	}
	if log.Campaign != nil {
		resp.CampaignName = utils.ToPtr(log.Campaign.Name)
	}
	if log.Customer != nil {
		resp.CustomerEmail = utils.ToPtr(log.Customer.Email)
	}
	return resp
}

// normalizePage clamps paging inputs to sane defaults
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
