package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/Kitsune-CRM/app/dto"
	"github.com/amirphl/Kitsune-CRM/models"
	"github.com/amirphl/Kitsune-CRM/repository"
	"github.com/amirphl/Kitsune-CRM/utils"
	"gorm.io/gorm"
)

// DeliveryStatusFlow reconciles asynchronous delivery receipts against
// communication logs and campaign counters
type DeliveryStatusFlow interface {
	ApplyReceipt(ctx context.Context, req *dto.DeliveryReceiptRequest) (*dto.DeliveryReceiptResponse, error)
	ListLogs(ctx context.Context, req *dto.ListCommunicationLogsRequest) (*dto.ListCommunicationLogsResponse, error)
	GetLog(ctx context.Context, messageID string) (*dto.CommunicationLogResponse, error)
}

// DeliveryStatusFlowImpl implements DeliveryStatusFlow
type DeliveryStatusFlowImpl struct {
	commLogRepo  repository.CommunicationLogRepository
	campaignRepo repository.CampaignRepository
	runTx        TxRunner
}

// NewDeliveryStatusFlow creates a new delivery status flow
func NewDeliveryStatusFlow(
	commLogRepo repository.CommunicationLogRepository,
	campaignRepo repository.CampaignRepository,
	db *gorm.DB,
) DeliveryStatusFlow {
	return &DeliveryStatusFlowImpl{
		commLogRepo:  commLogRepo,
		campaignRepo: campaignRepo,
		runTx:        defaultTxRunner(db),
	}
}

// ApplyReceipt records a provider receipt for one message. The log row is
// locked while its status flips so the counter delta is computed against the
// status the update actually observed. The log's status and timestamp update
// on every receipt; only the transitions in the delta table move the campaign
// counters, so re-delivered and PENDING receipts leave them untouched.
func (s *DeliveryStatusFlowImpl) ApplyReceipt(ctx context.Context, req *dto.DeliveryReceiptRequest) (*dto.DeliveryReceiptResponse, error) {
	newStatus := models.DeliveryStatus(strings.ToUpper(req.Status))
	if !newStatus.Valid() {
		return nil, NewBusinessErrorf("INVALID_STATUS", "Delivery status %q is not reconcilable", ErrUnknownDeliveryStatus, req.Status)
	}

	now := utils.UTCNow()
	var transition *repository.StatusTransition

	err := s.runTx(ctx, func(txCtx context.Context) error {
		var err error
		transition, err = s.commLogRepo.UpdateStatusByMessageID(txCtx, req.MessageID, newStatus, now)
		if err != nil {
			return err
		}
		if transition == nil {
			return ErrCommunicationLogNotFound
		}

		sentDelta, failedDelta := models.DeliveryCounterDelta(transition.Old, transition.New)
		if sentDelta == 0 && failedDelta == 0 {
			return nil
		}
		return s.campaignRepo.ApplyCounterDelta(txCtx, transition.CampaignID, sentDelta, failedDelta)
	})
	if err != nil {
		if IsCommunicationLogNotFound(err) {
			return nil, NewBusinessError("NOT_FOUND", "No message with this id", ErrCommunicationLogNotFound)
		}
		return nil, NewBusinessError("RECEIPT_APPLY_FAILED", "Failed to apply delivery receipt", err)
	}

	sentDelta, failedDelta := models.DeliveryCounterDelta(transition.Old, transition.New)
	deliveryReceiptsTotal.WithLabelValues(newStatus.String()).Inc()

	return &dto.DeliveryReceiptResponse{
		MessageID:   req.MessageID,
		OldStatus:   transition.Old.String(),
		NewStatus:   transition.New.String(),
		SentDelta:   sentDelta,
		FailedDelta: failedDelta,
		UpdatedAt:   now,
	}, nil
}

// ListLogs returns a page of delivery logs scoped to a campaign
func (s *DeliveryStatusFlowImpl) ListLogs(ctx context.Context, req *dto.ListCommunicationLogsRequest) (*dto.ListCommunicationLogsResponse, error) {
	page, pageSize := normalizePage(req.Page, req.PageSize)

	campaign, err := s.campaignRepo.ByUUID(ctx, req.CampaignUUID)
	if err != nil {
		return nil, NewBusinessError("LOG_LIST_FAILED", "Failed to look up campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}

	filter := models.CommunicationLogFilter{CampaignID: &campaign.ID}
	total, err := s.commLogRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LOG_LIST_FAILED", "Failed to count logs", err)
	}

	logs, err := s.commLogRepo.ListByCampaign(ctx, campaign.ID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("LOG_LIST_FAILED", "Failed to list logs", err)
	}

	resp := &dto.ListCommunicationLogsResponse{
		Logs: make([]dto.CommunicationLogResponse, 0, len(logs)),
		Pagination: dto.Pagination{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
		},
	}
	for _, logEntry := range logs {
		resp.Logs = append(resp.Logs, ToCommunicationLogResponse(logEntry))
	}

	return resp, nil
}

// GetLog returns a single delivery log by message id
func (s *DeliveryStatusFlowImpl) GetLog(ctx context.Context, messageID string) (*dto.CommunicationLogResponse, error) {
	logEntry, err := s.commLogRepo.ByMessageID(ctx, messageID)
	if err != nil {
		return nil, NewBusinessError("LOG_LOOKUP_FAILED", "Failed to look up log", err)
	}
	if logEntry == nil {
		return nil, NewBusinessError("NOT_FOUND", "No message with this id", ErrCommunicationLogNotFound)
	}

	resp := ToCommunicationLogResponse(logEntry)
	return &resp, nil
}
