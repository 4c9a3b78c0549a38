package models

import (
	"encoding/json"
	"time"
)

type AuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Action       string          `gorm:"size:64;not null;index:idx_audit_action" json:"action"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string         `gorm:"type:inet;index:idx_audit_ip_address" json:"ip_address,omitempty"`
	UserAgent    *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string         `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants
const (
	AuditActionLoginSuccessful   = "login_successful"
	AuditActionLoginFailed       = "login_failed"
	AuditActionCustomerCreated   = "customer_created"
	AuditActionCustomerUpdated   = "customer_updated"
	AuditActionCustomerDeleted   = "customer_deleted"
	AuditActionOrderCreated      = "order_created"
	AuditActionOrderUpdated      = "order_updated"
	AuditActionOrderDeleted      = "order_deleted"
	AuditActionSegmentCreated    = "segment_created"
	AuditActionSegmentUpdated    = "segment_updated"
	AuditActionSegmentDeleted    = "segment_deleted"
	AuditActionCampaignCreated   = "campaign_created"
	AuditActionCampaignUpdated   = "campaign_updated"
	AuditActionCampaignDeleted   = "campaign_deleted"
	AuditActionCampaignExecuted  = "campaign_executed"
	AuditActionReceiptReconciled = "receipt_reconciled"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	Action        *string
	Success       *bool
	IPAddress     *string
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}
