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

func newCampaignFlow(
	campaignRepo *fakeCampaignRepo,
	segmentRepo *fakeSegmentRepo,
	commLogRepo *fakeCommLogRepo,
) *CampaignFlowImpl {
	return &CampaignFlowImpl{
		campaignRepo: campaignRepo,
		segmentRepo:  segmentRepo,
		commLogRepo:  commLogRepo,
		auditRepo:    &fakeAuditRepo{},
		runTx:        identityTxRunner,
	}
}

func TestCreateCampaign_SnapshotsAudienceSize(t *testing.T) {
	segment := &models.Segment{ID: 7, UUID: uuid.New(), Name: "big spenders", Rules: highSpenderRules(), AudienceSize: 42}
	campaignRepo := newFakeCampaignRepo()
	flow := newCampaignFlow(campaignRepo, newFakeSegmentRepo(segment), newFakeCommLogRepo())

	resp, err := flow.CreateCampaign(context.Background(), &dto.CreateCampaignRequest{
		Name:            "spring sale",
		SegmentUUID:     segment.UUID.String(),
		MessageTemplate: "Hi {name}, spring sale is on",
	}, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)

	assert.Equal(t, string(models.CampaignStatusScheduled), resp.Status)
	assert.Equal(t, 42, resp.AudienceSize)

	stored, err := campaignRepo.ByUUID(context.Background(), resp.UUID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, segment.ID, stored.SegmentID)
	assert.Equal(t, 42, stored.AudienceSize)
}

func TestCreateCampaign_UnknownSegment(t *testing.T) {
	flow := newCampaignFlow(newFakeCampaignRepo(), newFakeSegmentRepo(), newFakeCommLogRepo())

	_, err := flow.CreateCampaign(context.Background(), &dto.CreateCampaignRequest{
		Name:            "spring sale",
		SegmentUUID:     uuid.NewString(),
		MessageTemplate: "Hi {name}",
	}, nil)
	require.Error(t, err)
	assert.True(t, IsSegmentNotFound(err))
}

func TestUpdateCampaign_OnlyWhileEditable(t *testing.T) {
	cases := []struct {
		status  models.CampaignStatus
		allowed bool
	}{
		{models.CampaignStatusScheduled, true},
		{models.CampaignStatusFailed, true},
		{models.CampaignStatusInProgress, false},
		{models.CampaignStatusCompleted, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			campaign := &models.Campaign{ID: 1, UUID: uuid.New(), Name: "spring sale", SegmentID: 7, MessageTemplate: "Hi {name}", Status: tc.status}
			flow := newCampaignFlow(newFakeCampaignRepo(campaign), newFakeSegmentRepo(), newFakeCommLogRepo())

			name := "summer sale"
			resp, err := flow.UpdateCampaign(context.Background(), &dto.UpdateCampaignRequest{
				UUID: campaign.UUID.String(),
				Name: &name,
			}, nil)

			if tc.allowed {
				require.NoError(t, err)
				assert.Equal(t, "summer sale", resp.Name)
			} else {
				require.Error(t, err)
				assert.True(t, IsCampaignNotEditable(err))
				assert.Equal(t, "spring sale", campaign.Name)
			}
		})
	}
}

func TestDeleteCampaign_RemovesDeliveryLogs(t *testing.T) {
	campaign := &models.Campaign{ID: 1, UUID: uuid.New(), Name: "spring sale", Status: models.CampaignStatusCompleted}
	campaignRepo := newFakeCampaignRepo(campaign)
	commLogRepo := newFakeCommLogRepo()
	flow := newCampaignFlow(campaignRepo, newFakeSegmentRepo(), commLogRepo)

	err := flow.DeleteCampaign(context.Background(), campaign.UUID.String(), nil)
	require.NoError(t, err)

	assert.Contains(t, commLogRepo.deletedCampaigns, campaign.ID)

	gone, err := campaignRepo.ByUUID(context.Background(), campaign.UUID.String())
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestDeleteCampaign_BlockedWhileRunning(t *testing.T) {
	campaign := &models.Campaign{ID: 1, UUID: uuid.New(), Name: "spring sale", Status: models.CampaignStatusInProgress}
	flow := newCampaignFlow(newFakeCampaignRepo(campaign), newFakeSegmentRepo(), newFakeCommLogRepo())

	err := flow.DeleteCampaign(context.Background(), campaign.UUID.String(), nil)
	require.Error(t, err)
	assert.True(t, IsCampaignNotDeletable(err))
}

func TestGetCampaign_UnknownCampaign(t *testing.T) {
	flow := newCampaignFlow(newFakeCampaignRepo(), newFakeSegmentRepo(), newFakeCommLogRepo())

	_, err := flow.GetCampaign(context.Background(), uuid.NewString())
	require.Error(t, err)
	assert.True(t, IsCampaignNotFound(err))
}
