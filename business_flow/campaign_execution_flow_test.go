package businessflow

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/amirphl/Kitsune-CRM/app/dto"
	"github.com/amirphl/Kitsune-CRM/app/services"
	"github.com/amirphl/Kitsune-CRM/config"
	"github.com/amirphl/Kitsune-CRM/models"
	"github.com/amirphl/Kitsune-CRM/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCampaign(status models.CampaignStatus, template string) *models.Campaign {
	segment := &models.Segment{
		ID:   7,
		UUID: uuid.New(),
		Name: "big spenders",
	}
	return &models.Campaign{
		ID:              1,
		UUID:            uuid.New(),
		Name:            "Autumn Sale",
		SegmentID:       segment.ID,
		Segment:         segment,
		MessageTemplate: template,
		Status:          status,
	}
}

func testAudience(names ...string) []*models.Customer {
	customers := make([]*models.Customer, 0, len(names))
	for i, name := range names {
		customers = append(customers, &models.Customer{
			ID:    uint(i + 1),
			UUID:  uuid.New(),
			Name:  name,
			Email: name + "@example.com",
		})
	}
	return customers
}

func newExecutionFlow(
	campaignRepo *fakeCampaignRepo,
	commLogRepo *fakeCommLogRepo,
	resolver *fakeAudienceResolver,
	emailService services.EmailService,
) *CampaignExecutionFlowImpl {
	return &CampaignExecutionFlowImpl{
		campaignRepo: campaignRepo,
		commLogRepo:  commLogRepo,
		auditRepo:    &fakeAuditRepo{},
		resolver:     resolver,
		emailService: emailService,
		cfg: &config.CampaignConfig{
			BatchSize:  utils.DefaultCampaignBatchSize,
			BatchDelay: 0,
		},
		logger: log.New(io.Discard, "", 0),
	}
}

func TestExecuteCampaign_DeliversPersonalizedMessages(t *testing.T) {
	campaign := testCampaign(models.CampaignStatusScheduled, "Hi {name}")
	campaignRepo := newFakeCampaignRepo(campaign)
	commLogRepo := newFakeCommLogRepo()
	resolver := &fakeAudienceResolver{customers: testAudience("Ann", "Bo")}
	emailService := services.NewMockEmailService(0)

	flow := newExecutionFlow(campaignRepo, commLogRepo, resolver, emailService)

	resp, err := flow.ExecuteCampaign(context.Background(), &dto.ExecuteCampaignRequest{UUID: campaign.UUID.String()}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.CampaignStatusCompleted.String(), resp.Status)
	assert.Equal(t, 2, resp.AudienceSize)
	assert.Equal(t, 2, resp.SentCount)
	assert.Equal(t, 0, resp.FailedCount)
	assert.Equal(t, 1, resp.BatchesProcessed)

	bodies := make(map[string]string)
	for _, msg := range emailService.Sent() {
		bodies[msg.To] = msg.Body
	}
	assert.Equal(t, "Hi Ann", bodies["Ann@example.com"])
	assert.Equal(t, "Hi Bo", bodies["Bo@example.com"])

	assert.Equal(t, models.CampaignStatusCompleted, campaign.Status)
	require.NotNil(t, campaign.StartedAt)
	require.NotNil(t, campaign.CompletedAt)
	assert.Equal(t, 2, campaign.SentCount)

	logs, err := commLogRepo.ListByCampaign(context.Background(), campaign.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	for _, logEntry := range logs {
		assert.Equal(t, models.DeliveryStatusSent, logEntry.Status)
		assert.NotEmpty(t, logEntry.MessageID)
		assert.NotNil(t, logEntry.StatusUpdatedAt)
	}
}

func TestExecuteCampaign_OnlyScheduledCampaignsRun(t *testing.T) {
	for _, status := range []models.CampaignStatus{
		models.CampaignStatusInProgress,
		models.CampaignStatusCompleted,
		models.CampaignStatusFailed,
	} {
		t.Run(status.String(), func(t *testing.T) {
			campaign := testCampaign(status, "Hi {name}")
			campaignRepo := newFakeCampaignRepo(campaign)
			resolver := &fakeAudienceResolver{customers: testAudience("Ann")}
			flow := newExecutionFlow(campaignRepo, newFakeCommLogRepo(), resolver, services.NewMockEmailService(0))

			_, err := flow.ExecuteCampaign(context.Background(), &dto.ExecuteCampaignRequest{UUID: campaign.UUID.String()}, nil)
			require.Error(t, err)
			assert.True(t, IsCampaignConflict(err))
			assert.Equal(t, status, campaign.Status)
		})
	}
}

func TestExecuteCampaign_UnknownCampaign(t *testing.T) {
	flow := newExecutionFlow(newFakeCampaignRepo(), newFakeCommLogRepo(),
		&fakeAudienceResolver{}, services.NewMockEmailService(0))

	_, err := flow.ExecuteCampaign(context.Background(), &dto.ExecuteCampaignRequest{UUID: uuid.NewString()}, nil)
	require.Error(t, err)
	assert.True(t, IsCampaignNotFound(err))
}

func TestExecuteCampaign_EmptyAudienceCompletesImmediately(t *testing.T) {
	campaign := testCampaign(models.CampaignStatusScheduled, "Hi {name}")
	campaignRepo := newFakeCampaignRepo(campaign)
	emailService := services.NewMockEmailService(0)
	flow := newExecutionFlow(campaignRepo, newFakeCommLogRepo(), &fakeAudienceResolver{}, emailService)

	resp, err := flow.ExecuteCampaign(context.Background(), &dto.ExecuteCampaignRequest{UUID: campaign.UUID.String()}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.CampaignStatusCompleted.String(), resp.Status)
	assert.Equal(t, 0, resp.AudienceSize)
	assert.Equal(t, 0, resp.BatchesProcessed)
	assert.Empty(t, emailService.Sent())
	assert.Equal(t, models.CampaignStatusCompleted, campaign.Status)
}

func TestExecuteCampaign_AudienceResolutionFailureMarksFailed(t *testing.T) {
	campaign := testCampaign(models.CampaignStatusScheduled, "Hi {name}")
	campaignRepo := newFakeCampaignRepo(campaign)
	resolver := &fakeAudienceResolver{resolveErr: errors.New("query timeout")}
	flow := newExecutionFlow(campaignRepo, newFakeCommLogRepo(), resolver, services.NewMockEmailService(0))

	_, err := flow.ExecuteCampaign(context.Background(), &dto.ExecuteCampaignRequest{UUID: campaign.UUID.String()}, nil)
	require.Error(t, err)
	assert.Equal(t, models.CampaignStatusFailed, campaign.Status)
}

func TestExecuteCampaign_CountersPartitionAudience(t *testing.T) {
	campaign := testCampaign(models.CampaignStatusScheduled, "Hi {name}")
	campaignRepo := newFakeCampaignRepo(campaign)
	commLogRepo := newFakeCommLogRepo()
	audience := testAudience("Ann", "Bo", "Cal", "Dee")
	resolver := &fakeAudienceResolver{customers: audience}

	emailService := services.NewMockEmailService(0)
	emailService.FailFor = map[string]bool{"Cal@example.com": true}

	flow := newExecutionFlow(campaignRepo, commLogRepo, resolver, emailService)

	resp, err := flow.ExecuteCampaign(context.Background(), &dto.ExecuteCampaignRequest{UUID: campaign.UUID.String()}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.CampaignStatusCompleted.String(), resp.Status)
	assert.Equal(t, 3, resp.SentCount)
	assert.Equal(t, 1, resp.FailedCount)
	assert.Equal(t, len(audience), resp.SentCount+resp.FailedCount)

	failedLog, err := commLogRepo.ListByCampaign(context.Background(), campaign.ID, 0, 0)
	require.NoError(t, err)
	failed := 0
	for _, logEntry := range failedLog {
		if logEntry.Status == models.DeliveryStatusFailed {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

func TestExecuteCampaign_UnwritableOutcomeCountsFailed(t *testing.T) {
	campaign := testCampaign(models.CampaignStatusScheduled, "Hi {name}")
	campaignRepo := newFakeCampaignRepo(campaign)
	commLogRepo := newFakeCommLogRepo()
	commLogRepo.markResultErrFor = map[uint]error{1: errors.New("write refused")}

	resolver := &fakeAudienceResolver{customers: testAudience("Ann", "Bo")}
	emailService := services.NewMockEmailService(0)
	flow := newExecutionFlow(campaignRepo, commLogRepo, resolver, emailService)

	resp, err := flow.ExecuteCampaign(context.Background(), &dto.ExecuteCampaignRequest{UUID: campaign.UUID.String()}, nil)
	require.NoError(t, err)

	// Ann's email went out but her outcome could not be written, so she counts
	// failed and her log is swept to FAILED rather than left PENDING.
	assert.Equal(t, 1, resp.SentCount)
	assert.Equal(t, 1, resp.FailedCount)
	assert.Equal(t, 1, campaign.SentCount)
	assert.Equal(t, 1, campaign.FailedCount)

	require.Len(t, commLogRepo.bulkFailed, 1)
	require.Len(t, commLogRepo.bulkFailed[0], 1)

	logs, err := commLogRepo.ListByCampaign(context.Background(), campaign.ID, 0, 0)
	require.NoError(t, err)
	statuses := map[uint]models.DeliveryStatus{}
	for _, logEntry := range logs {
		statuses[logEntry.CustomerID] = logEntry.Status
	}
	assert.Equal(t, models.DeliveryStatusFailed, statuses[1])
	assert.Equal(t, models.DeliveryStatusSent, statuses[2])
}

func TestExecuteCampaign_CompletionWriteFailureMarksFailed(t *testing.T) {
	campaign := testCampaign(models.CampaignStatusScheduled, "Hi {name}")
	campaignRepo := newFakeCampaignRepo(campaign)
	campaignRepo.casErr = errors.New("connection reset")
	campaignRepo.casErrTo = models.CampaignStatusCompleted

	resolver := &fakeAudienceResolver{customers: testAudience("Ann")}
	flow := newExecutionFlow(campaignRepo, newFakeCommLogRepo(), resolver, services.NewMockEmailService(0))

	_, err := flow.ExecuteCampaign(context.Background(), &dto.ExecuteCampaignRequest{UUID: campaign.UUID.String()}, nil)
	require.Error(t, err)
	assert.Equal(t, models.CampaignStatusFailed, campaign.Status)
}

func TestExecuteCampaign_BatchPersistFailureIsContained(t *testing.T) {
	campaign := testCampaign(models.CampaignStatusScheduled, "Hi {name}")
	campaignRepo := newFakeCampaignRepo(campaign)
	commLogRepo := newFakeCommLogRepo()
	commLogRepo.saveBatchErr = errors.New("insert failed")
	commLogRepo.saveBatchErrOnce = true

	resolver := &fakeAudienceResolver{customers: testAudience("Ann", "Bo")}
	emailService := services.NewMockEmailService(0)
	flow := newExecutionFlow(campaignRepo, commLogRepo, resolver, emailService)

	batchSize := 1
	resp, err := flow.ExecuteCampaign(context.Background(), &dto.ExecuteCampaignRequest{
		UUID:      campaign.UUID.String(),
		BatchSize: &batchSize,
	}, nil)
	require.NoError(t, err)

	// First batch fails wholesale without sending; second goes through.
	assert.Equal(t, models.CampaignStatusCompleted.String(), resp.Status)
	assert.Equal(t, 1, resp.SentCount)
	assert.Equal(t, 1, resp.FailedCount)
	assert.Equal(t, 2, resp.BatchesProcessed)
	require.Len(t, emailService.Sent(), 1)
	assert.Equal(t, "Bo@example.com", emailService.Sent()[0].To)
}

func TestExecuteCampaign_CountersAdvancePerBatch(t *testing.T) {
	campaign := testCampaign(models.CampaignStatusScheduled, "Hi {name}")
	campaignRepo := newFakeCampaignRepo(campaign)
	resolver := &fakeAudienceResolver{customers: testAudience("Ann", "Bo", "Cal")}
	flow := newExecutionFlow(campaignRepo, newFakeCommLogRepo(), resolver, services.NewMockEmailService(0))

	batchSize := 2
	resp, err := flow.ExecuteCampaign(context.Background(), &dto.ExecuteCampaignRequest{
		UUID:      campaign.UUID.String(),
		BatchSize: &batchSize,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, resp.BatchesProcessed)
	require.Len(t, campaignRepo.counterUpdates, 2)
	assert.Equal(t, counterUpdate{campaign.ID, 2, 0}, campaignRepo.counterUpdates[0])
	assert.Equal(t, counterUpdate{campaign.ID, 3, 0}, campaignRepo.counterUpdates[1])
}

func TestExecuteCampaign_DelaysBetweenBatchesOnly(t *testing.T) {
	campaign := testCampaign(models.CampaignStatusScheduled, "Hi {name}")
	campaignRepo := newFakeCampaignRepo(campaign)
	resolver := &fakeAudienceResolver{customers: testAudience("Ann", "Bo", "Cal")}
	flow := newExecutionFlow(campaignRepo, newFakeCommLogRepo(), resolver, services.NewMockEmailService(0))

	batchSize := 1
	delayMs := 30
	start := time.Now()
	resp, err := flow.ExecuteCampaign(context.Background(), &dto.ExecuteCampaignRequest{
		UUID:         campaign.UUID.String(),
		BatchSize:    &batchSize,
		BatchDelayMs: &delayMs,
	}, nil)
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.Equal(t, 3, resp.BatchesProcessed)
	// 3 batches mean exactly 2 inter-batch delays.
	assert.GreaterOrEqual(t, elapsed, 2*time.Duration(delayMs)*time.Millisecond)
}
