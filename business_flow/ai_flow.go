package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/amirphl/Kitsune-CRM/app/dto"
	"github.com/amirphl/Kitsune-CRM/app/services"
	"github.com/amirphl/Kitsune-CRM/models"
	"github.com/amirphl/Kitsune-CRM/repository"
)

// AIFlow backs the AI-assisted dashboard endpoints. Every operation carries a
// deterministic fallback, so a provider outage degrades output quality but
// never returns an error to the caller.
type AIFlow interface {
	SuggestMessages(ctx context.Context, req *dto.SuggestMessagesRequest) (*dto.SuggestMessagesResponse, error)
	RulesFromQuery(ctx context.Context, req *dto.RulesFromQueryRequest) (*dto.RulesFromQueryResponse, error)
	CampaignSummary(ctx context.Context, req *dto.CampaignSummaryRequest) (*dto.CampaignSummaryResponse, error)
}

// AIFlowImpl implements AIFlow
type AIFlowImpl struct {
	completionService services.CompletionService
	campaignRepo      repository.CampaignRepository
	logger            *log.Logger
}

// NewAIFlow creates a new AI flow
func NewAIFlow(completionService services.CompletionService, campaignRepo repository.CampaignRepository, logger *log.Logger) AIFlow {
	return &AIFlowImpl{
		completionService: completionService,
		campaignRepo:      campaignRepo,
		logger:            logger,
	}
}

const suggestMessagesSystemPrompt = `You write short marketing emails for a small business CRM.
Return a JSON array of exactly 3 message strings. Each message must contain the
literal placeholder {name} where the customer's name belongs. No markdown, no
commentary, only the JSON array.`

const rulesFromQuerySystemPrompt = `You translate natural-language audience descriptions into segment rules.
Return a JSON object of the form
{"conditions":[{"id":1,"type":"...","operator":"...","value":...}],"logicType":"All"}.
Allowed types: "minimum spent", "total orders", "days since last order", "visit count".
Allowed operators: "is", "greater than", "less than", "between" (value is a
two-element array for "between", a number otherwise). logicType is "All" or
"Any". Only the JSON object, nothing else.`

const campaignSummarySystemPrompt = `You summarize email campaign delivery results for a dashboard.
Write 2-3 plain sentences covering audience size, delivery rate and anything
notable. No markdown.`

// jsonArrayPattern and jsonObjectPattern pull the first JSON payload out of a
// completion that ignored the no-commentary instruction.
var (
	jsonArrayPattern  = regexp.MustCompile(`(?s)\[.*\]`)
	jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
)

// SuggestMessages generates message template variants for a campaign objective
func (s *AIFlowImpl) SuggestMessages(ctx context.Context, req *dto.SuggestMessagesRequest) (*dto.SuggestMessagesResponse, error) {
	userPrompt := fmt.Sprintf("Objective: %s", req.Objective)
	if req.Audience != nil && *req.Audience != "" {
		userPrompt += fmt.Sprintf("\nAudience: %s", *req.Audience)
	}

	raw, err := s.completionService.Complete(ctx, suggestMessagesSystemPrompt, userPrompt)
	if err != nil {
		s.logger.Printf("message suggestion completion failed, using fallback: %v", err)
		return &dto.SuggestMessagesResponse{Suggestions: fallbackSuggestions(req.Objective)}, nil
	}

	suggestions := parseSuggestions(raw)
	if len(suggestions) == 0 {
		s.logger.Printf("message suggestion completion unparsable, using fallback")
		suggestions = fallbackSuggestions(req.Objective)
	}

	return &dto.SuggestMessagesResponse{Suggestions: suggestions}, nil
}

// RulesFromQuery translates a natural-language audience description into a
// rule tree
func (s *AIFlowImpl) RulesFromQuery(ctx context.Context, req *dto.RulesFromQueryRequest) (*dto.RulesFromQueryResponse, error) {
	raw, err := s.completionService.Complete(ctx, rulesFromQuerySystemPrompt, req.Query)
	if err != nil {
		s.logger.Printf("rule generation completion failed, using fallback: %v", err)
		return &dto.RulesFromQueryResponse{Rules: fallbackRules()}, nil
	}

	rules, ok := parseRules(raw)
	if !ok {
		s.logger.Printf("rule generation completion unparsable, using fallback")
		rules = fallbackRules()
	}

	return &dto.RulesFromQueryResponse{Rules: rules}, nil
}

// CampaignSummary produces a human-readable delivery summary for a campaign
func (s *AIFlowImpl) CampaignSummary(ctx context.Context, req *dto.CampaignSummaryRequest) (*dto.CampaignSummaryResponse, error) {
	campaign, err := s.campaignRepo.ByUUID(ctx, req.CampaignUUID)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to look up campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}

	fallback := fallbackSummary(campaign)

	userPrompt := fmt.Sprintf(
		"Campaign %q over an audience of %d: status %s, %d sent, %d failed.",
		campaign.Name, campaign.AudienceSize, campaign.Status, campaign.SentCount, campaign.FailedCount)
	if campaign.Segment != nil {
		userPrompt += fmt.Sprintf(" Segment: %q.", campaign.Segment.Name)
	}

	summary, err := s.completionService.Complete(ctx, campaignSummarySystemPrompt, userPrompt)
	if err != nil || strings.TrimSpace(summary) == "" {
		if err != nil {
			s.logger.Printf("campaign summary completion failed, using fallback: %v", err)
		}
		summary = fallback
	}

	return &dto.CampaignSummaryResponse{Summary: strings.TrimSpace(summary)}, nil
}

// parseSuggestions extracts a string array from a completion
func parseSuggestions(raw string) []string {
	payload := jsonArrayPattern.FindString(raw)
	if payload == "" {
		return nil
	}

	var suggestions []string
	if err := json.Unmarshal([]byte(payload), &suggestions); err != nil {
		return nil
	}

	out := make([]string, 0, len(suggestions))
	for _, suggestion := range suggestions {
		if trimmed := strings.TrimSpace(suggestion); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseRules extracts a rule tree from a completion and verifies it compiles
// to something usable
func parseRules(raw string) (models.RuleTree, bool) {
	payload := jsonObjectPattern.FindString(raw)
	if payload == "" {
		return models.RuleTree{}, false
	}

	var rules models.RuleTree
	if err := json.Unmarshal([]byte(payload), &rules); err != nil {
		return models.RuleTree{}, false
	}
	if rules.IsEmpty() {
		return models.RuleTree{}, false
	}
	return rules, true
}

func fallbackSuggestions(objective string) []string {
	return []string{
		fmt.Sprintf("Hi {name}, %s — we picked something special for you. Come take a look!", objective),
		fmt.Sprintf("Hi {name}, don't miss out: %s. We'd love to see you again.", objective),
		fmt.Sprintf("Hello {name}! %s. As a valued customer, you get first access.", objective),
	}
}

// fallbackRules is the safe default audience: high-value customers
func fallbackRules() models.RuleTree {
	return models.RuleTree{
		Conditions: []models.RuleCondition{
			{
				ID:       "1",
				Type:     models.RuleTypeMinimumSpent,
				Operator: models.RuleOperatorGreaterThan,
				Value:    models.SingleRuleValue("5000"),
			},
		},
		LogicType: models.RuleLogicAll,
	}
}

func fallbackSummary(campaign *models.Campaign) string {
	delivered := campaign.SentCount
	attempted := campaign.SentCount + campaign.FailedCount
	rate := 0.0
	if attempted > 0 {
		rate = float64(delivered) / float64(attempted) * 100
	}
	return fmt.Sprintf(
		"Campaign %q reached an audience of %d customers. %d of %d messages were delivered (%.0f%%) and the campaign is %s.",
		campaign.Name, campaign.AudienceSize, delivered, attempted, rate, campaign.Status)
}
