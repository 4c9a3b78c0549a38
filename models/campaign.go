package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CampaignStatus represents the lifecycle state of a campaign
type CampaignStatus string

const (
	CampaignStatusScheduled  CampaignStatus = "scheduled"
	CampaignStatusInProgress CampaignStatus = "in_progress"
	CampaignStatusCompleted  CampaignStatus = "completed"
	CampaignStatusFailed     CampaignStatus = "failed"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusScheduled, CampaignStatusInProgress,
		CampaignStatusCompleted, CampaignStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status admits no further transitions
func (s CampaignStatus) Terminal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusFailed
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// Campaign represents an outbound email campaign over a segment audience
type Campaign struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`

	Name            string         `gorm:"size:255;not null" json:"name"`
	SegmentID       uint           `gorm:"not null;index:idx_campaigns_segment_id" json:"segment_id"`
	Segment         *Segment       `gorm:"foreignKey:SegmentID;references:ID" json:"segment,omitempty"`
	MessageTemplate string         `gorm:"type:text;not null" json:"message_template"`
	Status          CampaignStatus `gorm:"size:20;not null;default:'scheduled';index:idx_campaigns_status" json:"status"`

	// Audience size snapshotted from the segment at creation time
	AudienceSize int `gorm:"not null;default:0" json:"audience_size"`

	// Delivery accounting, updated by the execution engine and the reconciler
	SentCount   int `gorm:"not null;default:0" json:"sent_count"`
	FailedCount int `gorm:"not null;default:0" json:"failed_count"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	CommunicationLogs []CommunicationLog `gorm:"foreignKey:CampaignID" json:"-"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

// CampaignFilter represents filter criteria for campaign queries
type CampaignFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	Name          *string
	SegmentID     *uint
	Status        *CampaignStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (c *Campaign) IsEditable() bool {
	return c.Status == CampaignStatusScheduled || c.Status == CampaignStatusFailed
}

func (c *Campaign) IsDeletable() bool {
	return c.Status != CampaignStatusInProgress
}
