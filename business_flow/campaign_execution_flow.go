package businessflow

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/Kitsune-CRM/app/dto"
	"github.com/amirphl/Kitsune-CRM/app/services"
	"github.com/amirphl/Kitsune-CRM/config"
	"github.com/amirphl/Kitsune-CRM/models"
	"github.com/amirphl/Kitsune-CRM/repository"
	"github.com/amirphl/Kitsune-CRM/utils"
	"github.com/google/uuid"
)

// CampaignExecutionFlow runs scheduled campaigns against their segment audience
type CampaignExecutionFlow interface {
	ExecuteCampaign(ctx context.Context, req *dto.ExecuteCampaignRequest, metadata *ClientMetadata) (*dto.ExecuteCampaignResponse, error)
}

// CampaignExecutionFlowImpl implements CampaignExecutionFlow.
//
// A run claims the campaign with an atomic scheduled -> in_progress transition
// so concurrent execute calls cannot double-send, then walks the audience in
// batches: each batch persists PENDING communication logs, fans sends out
// concurrently, records per-message outcomes, and rolls the campaign counters
// forward before the next batch starts. Delivery receipts arriving later move
// individual logs between SENT and FAILED through the reconciliation flow.
type CampaignExecutionFlowImpl struct {
	campaignRepo repository.CampaignRepository
	commLogRepo  repository.CommunicationLogRepository
	auditRepo    repository.AuditLogRepository
	resolver     AudienceResolver
	emailService services.EmailService
	cfg          *config.CampaignConfig
	logger       *log.Logger
}

// NewCampaignExecutionFlow creates a new campaign execution flow
func NewCampaignExecutionFlow(
	campaignRepo repository.CampaignRepository,
	commLogRepo repository.CommunicationLogRepository,
	auditRepo repository.AuditLogRepository,
	resolver AudienceResolver,
	emailService services.EmailService,
	cfg *config.CampaignConfig,
	logger *log.Logger,
) CampaignExecutionFlow {
	return &CampaignExecutionFlowImpl{
		campaignRepo: campaignRepo,
		commLogRepo:  commLogRepo,
		auditRepo:    auditRepo,
		resolver:     resolver,
		emailService: emailService,
		cfg:          cfg,
		logger:       logger,
	}
}

type sendResult struct {
	customerID uint
	messageID  string
	success    bool
	recorded   bool
}

// ExecuteCampaign runs one campaign to completion. Only a campaign in the
// scheduled state can be claimed; a concurrent or repeated execute gets a
// CONFLICT. Individual send failures are counted, not fatal; the run itself
// fails only when the audience cannot be resolved.
func (s *CampaignExecutionFlowImpl) ExecuteCampaign(ctx context.Context, req *dto.ExecuteCampaignRequest, metadata *ClientMetadata) (*dto.ExecuteCampaignResponse, error) {
	campaign, err := s.campaignRepo.ByUUID(ctx, req.UUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to look up campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}

	startedAt := utils.UTCNow()
	claimed, err := s.campaignRepo.CompareAndSetStatus(ctx, campaign.ID,
		models.CampaignStatusScheduled, models.CampaignStatusInProgress,
		map[string]any{"started_at": startedAt})
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_EXECUTE_FAILED", "Failed to claim campaign", err)
	}
	if !claimed {
		return nil, NewBusinessErrorf("CONFLICT", "Campaign is %s, only scheduled campaigns can be executed", ErrCampaignConflict, campaign.Status)
	}

	segment := campaign.Segment
	if segment == nil {
		s.markFailed(ctx, campaign.ID)
		return nil, NewBusinessError("CAMPAIGN_EXECUTE_FAILED", "Campaign segment is missing", ErrSegmentNotFound)
	}

	audience, err := s.resolver.Resolve(ctx, segment.Rules, 0)
	if err != nil {
		s.markFailed(ctx, campaign.ID)
		campaignRunsTotal.WithLabelValues("failed").Inc()
		recordAudit(ctx, s.auditRepo, models.AuditActionCampaignExecuted,
			fmt.Sprintf("campaign %s failed: audience resolution", campaign.UUID), metadata, false, utils.ToPtr(err.Error()))
		return nil, NewBusinessError("CAMPAIGN_EXECUTE_FAILED", "Failed to resolve campaign audience", err)
	}

	batchSize := s.cfg.BatchSize
	if req.BatchSize != nil && *req.BatchSize > 0 {
		batchSize = *req.BatchSize
	}
	if batchSize <= 0 {
		batchSize = utils.DefaultCampaignBatchSize
	}
	batchDelay := s.cfg.BatchDelay
	if req.BatchDelayMs != nil {
		batchDelay = time.Duration(*req.BatchDelayMs) * time.Millisecond
	}

	sentTotal, failedTotal, batches := 0, 0, 0
	for start := 0; start < len(audience); start += batchSize {
		end := min(start+batchSize, len(audience))
		batch := audience[start:end]

		// Delay between batches only, never before the first or after the last.
		if batches > 0 && batchDelay > 0 {
			select {
			case <-ctx.Done():
				s.markFailed(ctx, campaign.ID)
				campaignRunsTotal.WithLabelValues("failed").Inc()
				return nil, NewBusinessError("CAMPAIGN_EXECUTE_FAILED", "Campaign execution cancelled", ctx.Err())
			case <-time.After(batchDelay):
			}
		}

		sent, failed := s.processBatch(ctx, campaign, batch)
		sentTotal += sent
		failedTotal += failed
		batches++
		campaignBatchesTotal.Inc()

		if err := s.campaignRepo.UpdateCounters(ctx, campaign.ID, sentTotal, failedTotal); err != nil {
			s.logger.Printf("campaign %s: counter update after batch %d failed: %v", campaign.UUID, batches, err)
		}
	}

	completedAt := utils.UTCNow()
	if _, err := s.campaignRepo.CompareAndSetStatus(ctx, campaign.ID,
		models.CampaignStatusInProgress, models.CampaignStatusCompleted,
		map[string]any{"completed_at": completedAt, "sent_count": sentTotal, "failed_count": failedTotal}); err != nil {
		// Best effort: do not leave the campaign stuck in_progress.
		s.markFailed(ctx, campaign.ID)
		campaignRunsTotal.WithLabelValues("failed").Inc()
		return nil, NewBusinessError("CAMPAIGN_EXECUTE_FAILED", "Failed to complete campaign", err)
	}

	campaignRunsTotal.WithLabelValues("completed").Inc()
	recordAudit(ctx, s.auditRepo, models.AuditActionCampaignExecuted,
		fmt.Sprintf("campaign %s completed: %d sent, %d failed over %d batch(es)", campaign.UUID, sentTotal, failedTotal, batches),
		metadata, true, nil)

	return &dto.ExecuteCampaignResponse{
		UUID:             campaign.UUID.String(),
		Status:           models.CampaignStatusCompleted.String(),
		AudienceSize:     len(audience),
		SentCount:        sentTotal,
		FailedCount:      failedTotal,
		BatchesProcessed: batches,
	}, nil
}

// processBatch persists PENDING logs for the batch, fans out the sends and
// returns the (sent, failed) tally. A batch whose logs cannot be persisted is
// counted entirely failed without sending.
func (s *CampaignExecutionFlowImpl) processBatch(ctx context.Context, campaign *models.Campaign, batch []*models.Customer) (int, int) {
	now := utils.UTCNow()
	logs := make([]*models.CommunicationLog, 0, len(batch))
	for _, customer := range batch {
		logs = append(logs, &models.CommunicationLog{
			CampaignID: campaign.ID,
			CustomerID: customer.ID,
			MessageID:  uuid.NewString(),
			Content:    personalizeMessage(campaign.MessageTemplate, customer),
			Status:     models.DeliveryStatusPending,
			CreatedAt:  now,
		})
	}

	if err := s.commLogRepo.SaveBatch(ctx, logs); err != nil {
		s.logger.Printf("campaign %s: persisting %d pending logs failed, counting batch as failed: %v", campaign.UUID, len(logs), err)
		campaignEmailsTotal.WithLabelValues("failed").Add(float64(len(logs)))
		return 0, len(logs)
	}

	results := make(chan sendResult, len(batch))
	var wg sync.WaitGroup
	for i, customer := range batch {
		wg.Add(1)
		go func(customer *models.Customer, logEntry *models.CommunicationLog) {
			defer wg.Done()
			success, recorded := s.sendOne(ctx, campaign, customer, logEntry)
			results <- sendResult{
				customerID: customer.ID,
				messageID:  logEntry.MessageID,
				success:    success,
				recorded:   recorded,
			}
		}(customer, logs[i])
	}
	wg.Wait()
	close(results)

	sent, failed := 0, 0
	var unrecorded []string
	for result := range results {
		if result.success {
			sent++
		} else {
			failed++
		}
		if !result.recorded {
			unrecorded = append(unrecorded, result.messageID)
		}
	}

	// Messages whose outcome could not be written are counted failed above;
	// sweep their logs to FAILED in one statement so log states match the
	// counters.
	if len(unrecorded) > 0 {
		if err := s.commLogRepo.BulkMarkFailed(ctx, unrecorded, utils.UTCNow()); err != nil {
			s.logger.Printf("campaign %s: bulk-failing %d unrecorded messages errored: %v", campaign.UUID, len(unrecorded), err)
		}
	}

	return sent, failed
}

// sendOne delivers a single message and records the provider outcome on its
// log. A delivery only counts SENT when the outcome is also written: a message
// whose status write fails is reported as a failure so the counters never
// exceed what the logs can account for.
func (s *CampaignExecutionFlowImpl) sendOne(ctx context.Context, campaign *models.Campaign, customer *models.Customer, logEntry *models.CommunicationLog) (success, recorded bool) {
	result, err := s.emailService.Send(ctx, services.EmailMessage{
		To:        customer.Email,
		Subject:   campaign.Name,
		Body:      logEntry.Content,
		MessageID: logEntry.MessageID,
	})

	delivered := err == nil && result != nil && result.Success
	status := models.DeliveryStatusSent
	if !delivered {
		status = models.DeliveryStatusFailed
		if err != nil {
			s.logger.Printf("campaign %s: send to customer %d errored: %v", campaign.UUID, customer.ID, err)
		}
	}

	markErr := s.commLogRepo.MarkDeliveryResult(ctx, logEntry.MessageID, status, utils.UTCNow())
	if markErr != nil {
		s.logger.Printf("campaign %s: marking message %s %s failed: %v", campaign.UUID, logEntry.MessageID, status, markErr)
	}

	success = delivered && markErr == nil
	if success {
		campaignEmailsTotal.WithLabelValues("sent").Inc()
	} else {
		campaignEmailsTotal.WithLabelValues("failed").Inc()
	}
	return success, markErr == nil
}

// markFailed moves a claimed campaign to the failed terminal state
func (s *CampaignExecutionFlowImpl) markFailed(ctx context.Context, campaignID uint) {
	completedAt := utils.UTCNow()
	if _, err := s.campaignRepo.CompareAndSetStatus(ctx, campaignID,
		models.CampaignStatusInProgress, models.CampaignStatusFailed,
		map[string]any{"completed_at": completedAt}); err != nil {
		s.logger.Printf("campaign %d: marking failed errored: %v", campaignID, err)
	}
}

// personalizeMessage substitutes the {name} placeholder with the customer name
func personalizeMessage(template string, customer *models.Customer) string {
	return strings.ReplaceAll(template, "{name}", customer.Name)
}
