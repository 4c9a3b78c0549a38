package dto

import (
	"github.com/amirphl/Kitsune-CRM/models"
)

// SuggestMessagesRequest asks for campaign message variants
type SuggestMessagesRequest struct {
	Objective string  `json:"objective" validate:"required,min=3"`
	Audience  *string `json:"audience,omitempty"`
}

// SuggestMessagesResponse carries generated message variants
type SuggestMessagesResponse struct {
	Suggestions []string `json:"suggestions"`
}

// RulesFromQueryRequest turns a natural-language audience description into rules
type RulesFromQueryRequest struct {
	Query string `json:"query" validate:"required,min=3"`
}

// RulesFromQueryResponse carries the generated rule tree
type RulesFromQueryResponse struct {
	Rules models.RuleTree `json:"rules"`
}

// CampaignSummaryRequest asks for a human-readable delivery summary
type CampaignSummaryRequest struct {
	CampaignUUID string `json:"-"`
}

// CampaignSummaryResponse carries the generated summary
type CampaignSummaryResponse struct {
	Summary string `json:"summary"`
}
