package dto

import (
	"time"
)

// CreateCampaignRequest represents the request to create a new campaign
type CreateCampaignRequest struct {
	Name            string `json:"name" validate:"required,min=1,max=255"`
	SegmentUUID     string `json:"segment_uuid" validate:"required,uuid4"`
	MessageTemplate string `json:"message_template" validate:"required,min=1"`
}

// UpdateCampaignRequest represents the request to update an existing campaign
type UpdateCampaignRequest struct {
	UUID            string  `json:"-"`
	Name            *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	MessageTemplate *string `json:"message_template,omitempty" validate:"omitempty,min=1"`
}

// CampaignResponse represents a campaign in API responses
type CampaignResponse struct {
	ID              uint             `json:"id"`
	UUID            string           `json:"uuid"`
	Name            string           `json:"name"`
	SegmentID       uint             `json:"segment_id"`
	Segment         *SegmentResponse `json:"segment,omitempty"`
	MessageTemplate string           `json:"message_template"`
	Status          string           `json:"status"`
	AudienceSize    int              `json:"audience_size"`
	SentCount       int              `json:"sent_count"`
	FailedCount     int              `json:"failed_count"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// ListCampaignsRequest represents campaign list query parameters
type ListCampaignsRequest struct {
	Page     int `query:"page"`
	PageSize int `query:"page_size"`
}

// ListCampaignsResponse represents the campaign list
type ListCampaignsResponse struct {
	Campaigns []CampaignResponse `json:"campaigns"`
}

// ExecuteCampaignRequest represents the request to run a scheduled campaign
type ExecuteCampaignRequest struct {
	UUID         string `json:"-"`
	BatchSize    *int   `json:"batch_size,omitempty" validate:"omitempty,min=1,max=1000"`
	BatchDelayMs *int   `json:"batch_delay_ms,omitempty" validate:"omitempty,min=0,max=60000"`
}

// ExecuteCampaignResponse summarizes a finished campaign run
type ExecuteCampaignResponse struct {
	UUID             string `json:"uuid"`
	Status           string `json:"status"`
	AudienceSize     int    `json:"audience_size"`
	SentCount        int    `json:"sent_count"`
	FailedCount      int    `json:"failed_count"`
	BatchesProcessed int    `json:"batches_processed"`
}
