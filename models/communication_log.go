package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// DeliveryStatus represents the delivery state of a single recipient message
type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "PENDING"
	DeliveryStatusSent    DeliveryStatus = "SENT"
	DeliveryStatusFailed  DeliveryStatus = "FAILED"
)

// String returns the string representation of the status
func (s DeliveryStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryStatusPending, DeliveryStatusSent, DeliveryStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for DeliveryStatus
func (s *DeliveryStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = DeliveryStatus(v)
	case []byte:
		*s = DeliveryStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into DeliveryStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for DeliveryStatus
func (s DeliveryStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid DeliveryStatus: %s", s)
	}
	return string(s), nil
}

// DeliveryCounterDelta returns the (sent, failed) campaign counter adjustment
// for a delivery status transition. Transitions outside the table leave the
// counters untouched.
func DeliveryCounterDelta(old, new DeliveryStatus) (sentDelta, failedDelta int) {
	switch {
	case old == DeliveryStatusPending && new == DeliveryStatusSent:
		return 1, 0
	case old == DeliveryStatusPending && new == DeliveryStatusFailed:
		return 0, 1
	case old == DeliveryStatusSent && new == DeliveryStatusFailed:
		return -1, 1
	case old == DeliveryStatusFailed && new == DeliveryStatusSent:
		return 1, -1
	default:
		return 0, 0
	}
}

// CommunicationLog records one message to one customer for one campaign
type CommunicationLog struct {
	ID uint `gorm:"primaryKey" json:"id"`

	CampaignID uint      `gorm:"not null;index:idx_communication_logs_campaign_id" json:"campaign_id"`
	Campaign   *Campaign `gorm:"foreignKey:CampaignID;references:ID" json:"campaign,omitempty"`

	CustomerID uint      `gorm:"not null;index:idx_communication_logs_customer_id" json:"customer_id"`
	Customer   *Customer `gorm:"foreignKey:CustomerID;references:ID" json:"customer,omitempty"`

	// Correlation id carried by the provider and echoed back in receipts
	MessageID string `gorm:"size:64;not null;uniqueIndex:uk_communication_logs_message_id" json:"message_id"`

	Content string         `gorm:"type:text;not null" json:"content"`
	Status  DeliveryStatus `gorm:"size:10;not null;default:'PENDING';index:idx_communication_logs_status" json:"status"`

	StatusUpdatedAt *time.Time `json:"status_updated_at,omitempty"`
	CreatedAt       time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_communication_logs_created_at" json:"created_at"`
}

func (CommunicationLog) TableName() string {
	return "communication_logs"
}

// CommunicationLogFilter represents filter criteria for communication log queries
type CommunicationLogFilter struct {
	ID            *uint
	CampaignID    *uint
	CustomerID    *uint
	MessageID     *string
	Status        *DeliveryStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
