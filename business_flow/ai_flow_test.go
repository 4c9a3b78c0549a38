package businessflow

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/amirphl/Kitsune-CRM/app/dto"
	"github.com/amirphl/Kitsune-CRM/app/services"
	"github.com/amirphl/Kitsune-CRM/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAIFlow(completionService services.CompletionService, campaignRepo *fakeCampaignRepo) *AIFlowImpl {
	return &AIFlowImpl{
		completionService: completionService,
		campaignRepo:      campaignRepo,
		logger:            log.New(io.Discard, "", 0),
	}
}

func TestSuggestMessages_ParsesCompletion(t *testing.T) {
	completion := services.NewMockCompletionService(
		`["Hi {name}, big sale!", "Hello {name}, come back!", "Hey {name}, 20% off."]`)
	flow := newAIFlow(completion, newFakeCampaignRepo())

	resp, err := flow.SuggestMessages(context.Background(), &dto.SuggestMessagesRequest{Objective: "autumn sale"})
	require.NoError(t, err)

	require.Len(t, resp.Suggestions, 3)
	assert.Equal(t, "Hi {name}, big sale!", resp.Suggestions[0])
}

func TestSuggestMessages_ExtractsArrayFromChatter(t *testing.T) {
	completion := services.NewMockCompletionService(
		"Sure! Here are some ideas:\n[\"Hi {name}, one\", \"Hi {name}, two\"]\nHope that helps.")
	flow := newAIFlow(completion, newFakeCampaignRepo())

	resp, err := flow.SuggestMessages(context.Background(), &dto.SuggestMessagesRequest{Objective: "win back"})
	require.NoError(t, err)
	assert.Len(t, resp.Suggestions, 2)
}

func TestSuggestMessages_FallbackOnProviderFailure(t *testing.T) {
	completion := services.NewMockCompletionService()
	completion.Err = errors.New("provider down")
	flow := newAIFlow(completion, newFakeCampaignRepo())

	resp, err := flow.SuggestMessages(context.Background(), &dto.SuggestMessagesRequest{Objective: "autumn sale"})
	require.NoError(t, err)

	require.Len(t, resp.Suggestions, 3)
	for _, suggestion := range resp.Suggestions {
		assert.Contains(t, suggestion, "{name}")
		assert.Contains(t, suggestion, "autumn sale")
	}
}

func TestSuggestMessages_FallbackOnGarbage(t *testing.T) {
	completion := services.NewMockCompletionService("I cannot help with that.")
	flow := newAIFlow(completion, newFakeCampaignRepo())

	resp, err := flow.SuggestMessages(context.Background(), &dto.SuggestMessagesRequest{Objective: "autumn sale"})
	require.NoError(t, err)
	require.Len(t, resp.Suggestions, 3)
}

func TestRulesFromQuery_ParsesCompletion(t *testing.T) {
	completion := services.NewMockCompletionService(
		`{"conditions":[{"id":1,"type":"total orders","operator":"greater than","value":3}],"logicType":"All"}`)
	flow := newAIFlow(completion, newFakeCampaignRepo())

	resp, err := flow.RulesFromQuery(context.Background(), &dto.RulesFromQueryRequest{Query: "frequent buyers"})
	require.NoError(t, err)

	require.Len(t, resp.Rules.Conditions, 1)
	assert.Equal(t, models.RuleID("1"), resp.Rules.Conditions[0].ID)
	assert.Equal(t, models.RuleTypeTotalOrders, resp.Rules.Conditions[0].Type)
	assert.Equal(t, models.RuleOperatorGreaterThan, resp.Rules.Conditions[0].Operator)
	assert.Equal(t, models.RuleLogicAll, resp.Rules.LogicType)
}

func TestRulesFromQuery_AcceptsStringConditionIDs(t *testing.T) {
	completion := services.NewMockCompletionService(
		`{"conditions":[{"id":"c-1","type":"minimum spent","operator":"greater than","value":500}],"logicType":"Any"}`)
	flow := newAIFlow(completion, newFakeCampaignRepo())

	resp, err := flow.RulesFromQuery(context.Background(), &dto.RulesFromQueryRequest{Query: "big spenders"})
	require.NoError(t, err)

	require.Len(t, resp.Rules.Conditions, 1)
	assert.Equal(t, models.RuleID("c-1"), resp.Rules.Conditions[0].ID)
	assert.Equal(t, models.RuleTypeMinimumSpent, resp.Rules.Conditions[0].Type)
	assert.Equal(t, models.RuleLogicAny, resp.Rules.LogicType)
}

func TestRulesFromQuery_FallbackOnFailure(t *testing.T) {
	completion := services.NewMockCompletionService()
	completion.Err = errors.New("provider down")
	flow := newAIFlow(completion, newFakeCampaignRepo())

	resp, err := flow.RulesFromQuery(context.Background(), &dto.RulesFromQueryRequest{Query: "frequent buyers"})
	require.NoError(t, err)

	require.Len(t, resp.Rules.Conditions, 1)
	assert.Equal(t, models.RuleTypeMinimumSpent, resp.Rules.Conditions[0].Type)
}

func TestRulesFromQuery_FallbackOnEmptyTree(t *testing.T) {
	completion := services.NewMockCompletionService(`{"conditions":[],"logicType":"All"}`)
	flow := newAIFlow(completion, newFakeCampaignRepo())

	resp, err := flow.RulesFromQuery(context.Background(), &dto.RulesFromQueryRequest{Query: "everyone"})
	require.NoError(t, err)
	assert.False(t, resp.Rules.IsEmpty())
}

func TestCampaignSummary_UsesCompletion(t *testing.T) {
	campaign := testCampaign(models.CampaignStatusCompleted, "Hi {name}")
	campaign.AudienceSize = 10
	campaign.SentCount = 9
	campaign.FailedCount = 1
	campaignRepo := newFakeCampaignRepo(campaign)

	completion := services.NewMockCompletionService("The campaign reached 10 customers with a 90% delivery rate.")
	flow := newAIFlow(completion, campaignRepo)

	resp, err := flow.CampaignSummary(context.Background(), &dto.CampaignSummaryRequest{CampaignUUID: campaign.UUID.String()})
	require.NoError(t, err)
	assert.Equal(t, "The campaign reached 10 customers with a 90% delivery rate.", resp.Summary)

	require.Len(t, completion.Prompts, 1)
	assert.Contains(t, completion.Prompts[0], "Autumn Sale")
}

func TestCampaignSummary_FallbackOnFailure(t *testing.T) {
	campaign := testCampaign(models.CampaignStatusCompleted, "Hi {name}")
	campaign.AudienceSize = 4
	campaign.SentCount = 3
	campaign.FailedCount = 1
	campaignRepo := newFakeCampaignRepo(campaign)

	completion := services.NewMockCompletionService()
	completion.Err = errors.New("provider down")
	flow := newAIFlow(completion, campaignRepo)

	resp, err := flow.CampaignSummary(context.Background(), &dto.CampaignSummaryRequest{CampaignUUID: campaign.UUID.String()})
	require.NoError(t, err)
	assert.Contains(t, resp.Summary, "3 of 4")
	assert.Contains(t, resp.Summary, "75%")
}

func TestCampaignSummary_UnknownCampaign(t *testing.T) {
	flow := newAIFlow(services.NewMockCompletionService(), newFakeCampaignRepo())

	_, err := flow.CampaignSummary(context.Background(), &dto.CampaignSummaryRequest{CampaignUUID: uuid.NewString()})
	require.Error(t, err)
	assert.True(t, IsCampaignNotFound(err))
}
