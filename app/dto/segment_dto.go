package dto

import (
	"time"

	"github.com/amirphl/Kitsune-CRM/models"
)

// CreateSegmentRequest represents the request to create a new segment
type CreateSegmentRequest struct {
	Name        string          `json:"name" validate:"required,min=1,max=255"`
	Description *string         `json:"description,omitempty"`
	Rules       models.RuleTree `json:"rules"`
}

// UpdateSegmentRequest represents the request to update an existing segment
type UpdateSegmentRequest struct {
	UUID        string           `json:"-"`
	Name        *string          `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string          `json:"description,omitempty"`
	Rules       *models.RuleTree `json:"rules,omitempty"`
}

// SegmentResponse represents a segment in API responses
type SegmentResponse struct {
	ID           uint            `json:"id"`
	UUID         string          `json:"uuid"`
	Name         string          `json:"name"`
	Description  *string         `json:"description,omitempty"`
	Rules        models.RuleTree `json:"rules"`
	AudienceSize int             `json:"audience_size"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// PreviewSegmentRequest previews the audience of an ad-hoc rule tree
type PreviewSegmentRequest struct {
	Rules models.RuleTree `json:"rules"`
}

// PreviewSegmentResponse carries the audience size and a small sample
type PreviewSegmentResponse struct {
	AudienceSize int64              `json:"audience_size"`
	Sample       []CustomerResponse `json:"sample"`
}

// ListSegmentsResponse represents the segment list
type ListSegmentsResponse struct {
	Segments []SegmentResponse `json:"segments"`
}
