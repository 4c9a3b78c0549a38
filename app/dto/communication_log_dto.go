package dto

import (
	"time"
)

// CommunicationLogResponse represents a per-recipient delivery log entry
type CommunicationLogResponse struct {
	ID              uint       `json:"id"`
	CampaignID      uint       `json:"campaign_id"`
	CampaignName    *string    `json:"campaign_name,omitempty"`
	CustomerID      uint       `json:"customer_id"`
	CustomerEmail   *string    `json:"customer_email,omitempty"`
	MessageID       string     `json:"message_id"`
	Content         string     `json:"content"`
	Status          string     `json:"status"`
	StatusUpdatedAt *time.Time `json:"status_updated_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ListCommunicationLogsRequest represents delivery log list query parameters
type ListCommunicationLogsRequest struct {
	CampaignUUID string `json:"-"`
	Page         int    `query:"page"`
	PageSize     int    `query:"page_size"`
}

// ListCommunicationLogsResponse represents the paginated log list
type ListCommunicationLogsResponse struct {
	Logs       []CommunicationLogResponse `json:"logs"`
	Pagination Pagination                 `json:"pagination"`
}

// DeliveryReceiptRequest is posted by the mail provider (or the receipt
// consumer) to reconcile a message's final status
type DeliveryReceiptRequest struct {
	MessageID string `json:"message_id" validate:"required"`
	Status    string `json:"status" validate:"required"`
}

// DeliveryReceiptResponse reports the reconciled transition
type DeliveryReceiptResponse struct {
	MessageID   string    `json:"message_id"`
	OldStatus   string    `json:"old_status"`
	NewStatus   string    `json:"new_status"`
	SentDelta   int       `json:"sent_delta"`
	FailedDelta int       `json:"failed_delta"`
	UpdatedAt   time.Time `json:"updated_at"`
}
