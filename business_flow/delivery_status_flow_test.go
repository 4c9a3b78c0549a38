package businessflow

import (
	"context"
	"testing"

	"github.com/amirphl/Kitsune-CRM/app/dto"
	"github.com/amirphl/Kitsune-CRM/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDeliveryFlow(commLogRepo *fakeCommLogRepo, campaignRepo *fakeCampaignRepo) *DeliveryStatusFlowImpl {
	return &DeliveryStatusFlowImpl{
		commLogRepo:  commLogRepo,
		campaignRepo: campaignRepo,
		runTx:        identityTxRunner,
	}
}

func seedLog(t *testing.T, commLogRepo *fakeCommLogRepo, campaignID uint, status models.DeliveryStatus) *models.CommunicationLog {
	t.Helper()
	logEntry := &models.CommunicationLog{
		CampaignID: campaignID,
		CustomerID: 1,
		MessageID:  uuid.NewString(),
		Content:    "Hi Ann",
		Status:     status,
	}
	require.NoError(t, commLogRepo.Save(context.Background(), logEntry))
	return logEntry
}

func TestApplyReceipt_CounterTransitions(t *testing.T) {
	cases := []struct {
		name        string
		oldStatus   models.DeliveryStatus
		receipt     string
		sentDelta   int
		failedDelta int
	}{
		{"pending to sent", models.DeliveryStatusPending, "SENT", 1, 0},
		{"pending to failed", models.DeliveryStatusPending, "FAILED", 0, 1},
		{"sent to failed", models.DeliveryStatusSent, "FAILED", -1, 1},
		{"failed to sent", models.DeliveryStatusFailed, "SENT", 1, -1},
		{"sent to sent is idempotent", models.DeliveryStatusSent, "SENT", 0, 0},
		{"failed to failed is idempotent", models.DeliveryStatusFailed, "FAILED", 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			campaign := testCampaign(models.CampaignStatusCompleted, "Hi {name}")
			campaign.SentCount = 5
			campaign.FailedCount = 2
			campaignRepo := newFakeCampaignRepo(campaign)
			commLogRepo := newFakeCommLogRepo()
			logEntry := seedLog(t, commLogRepo, campaign.ID, tc.oldStatus)

			flow := newDeliveryFlow(commLogRepo, campaignRepo)

			resp, err := flow.ApplyReceipt(context.Background(), &dto.DeliveryReceiptRequest{
				MessageID: logEntry.MessageID,
				Status:    tc.receipt,
			})
			require.NoError(t, err)

			assert.Equal(t, tc.oldStatus.String(), resp.OldStatus)
			assert.Equal(t, tc.receipt, resp.NewStatus)
			assert.Equal(t, tc.sentDelta, resp.SentDelta)
			assert.Equal(t, tc.failedDelta, resp.FailedDelta)

			assert.Equal(t, 5+tc.sentDelta, campaign.SentCount)
			assert.Equal(t, 2+tc.failedDelta, campaign.FailedCount)

			assert.Equal(t, models.DeliveryStatus(tc.receipt), logEntry.Status)
			assert.NotNil(t, logEntry.StatusUpdatedAt)
		})
	}
}

func TestApplyReceipt_ZeroDeltaSkipsCounterWrite(t *testing.T) {
	campaign := testCampaign(models.CampaignStatusCompleted, "Hi {name}")
	campaignRepo := newFakeCampaignRepo(campaign)
	commLogRepo := newFakeCommLogRepo()
	logEntry := seedLog(t, commLogRepo, campaign.ID, models.DeliveryStatusSent)

	flow := newDeliveryFlow(commLogRepo, campaignRepo)

	_, err := flow.ApplyReceipt(context.Background(), &dto.DeliveryReceiptRequest{
		MessageID: logEntry.MessageID,
		Status:    "SENT",
	})
	require.NoError(t, err)
	assert.Empty(t, campaignRepo.counterDeltas)
}

func TestApplyReceipt_UnknownMessage(t *testing.T) {
	flow := newDeliveryFlow(newFakeCommLogRepo(), newFakeCampaignRepo())

	_, err := flow.ApplyReceipt(context.Background(), &dto.DeliveryReceiptRequest{
		MessageID: uuid.NewString(),
		Status:    "SENT",
	})
	require.Error(t, err)
	assert.True(t, IsCommunicationLogNotFound(err))
}

func TestApplyReceipt_RejectsUnknownStatus(t *testing.T) {
	flow := newDeliveryFlow(newFakeCommLogRepo(), newFakeCampaignRepo())

	for _, status := range []string{"BOUNCED", "DELIVERED", ""} {
		_, err := flow.ApplyReceipt(context.Background(), &dto.DeliveryReceiptRequest{
			MessageID: uuid.NewString(),
			Status:    status,
		})
		require.Error(t, err, "status %q", status)
		assert.True(t, IsUnknownDeliveryStatus(err))
	}
}

func TestApplyReceipt_PendingReceiptUpdatesLogWithoutCounters(t *testing.T) {
	campaign := testCampaign(models.CampaignStatusCompleted, "Hi {name}")
	campaign.SentCount = 5
	campaign.FailedCount = 2
	campaignRepo := newFakeCampaignRepo(campaign)
	commLogRepo := newFakeCommLogRepo()
	logEntry := seedLog(t, commLogRepo, campaign.ID, models.DeliveryStatusSent)

	flow := newDeliveryFlow(commLogRepo, campaignRepo)

	resp, err := flow.ApplyReceipt(context.Background(), &dto.DeliveryReceiptRequest{
		MessageID: logEntry.MessageID,
		Status:    "PENDING",
	})
	require.NoError(t, err)

	assert.Equal(t, models.DeliveryStatusSent.String(), resp.OldStatus)
	assert.Equal(t, models.DeliveryStatusPending.String(), resp.NewStatus)
	assert.Equal(t, 0, resp.SentDelta)
	assert.Equal(t, 0, resp.FailedDelta)

	assert.Equal(t, models.DeliveryStatusPending, logEntry.Status)
	assert.NotNil(t, logEntry.StatusUpdatedAt)
	assert.Equal(t, 5, campaign.SentCount)
	assert.Equal(t, 2, campaign.FailedCount)
	assert.Empty(t, campaignRepo.counterDeltas)
}

func TestApplyReceipt_LowercaseStatusAccepted(t *testing.T) {
	campaign := testCampaign(models.CampaignStatusCompleted, "Hi {name}")
	campaignRepo := newFakeCampaignRepo(campaign)
	commLogRepo := newFakeCommLogRepo()
	logEntry := seedLog(t, commLogRepo, campaign.ID, models.DeliveryStatusPending)

	flow := newDeliveryFlow(commLogRepo, campaignRepo)

	resp, err := flow.ApplyReceipt(context.Background(), &dto.DeliveryReceiptRequest{
		MessageID: logEntry.MessageID,
		Status:    "sent",
	})
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusSent.String(), resp.NewStatus)
}
