// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/Kitsune-CRM/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// CustomerRepository defines operations for customers
type CustomerRepository interface {
	Repository[models.Customer, models.CustomerFilter]
	ByEmail(ctx context.Context, email string) (*models.Customer, error)
	ByUUID(ctx context.Context, uuid string) (*models.Customer, error)
	ListByRules(ctx context.Context, rules models.RuleTree, limit int) ([]*models.Customer, error)
	CountByRules(ctx context.Context, rules models.RuleTree) (int64, error)
	ApplyPurchaseDelta(ctx context.Context, customerID uint, spendDelta float64, lastPurchase *time.Time) error
	Update(ctx context.Context, customer *models.Customer) error
	Delete(ctx context.Context, customerID uint) error
}

// OrderRepository defines operations for orders
type OrderRepository interface {
	Repository[models.Order, models.OrderFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uint, limit, offset int) ([]*models.Order, error)
	Update(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, orderID uint) error
}

// SegmentRepository defines operations for audience segments
type SegmentRepository interface {
	Repository[models.Segment, models.SegmentFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Segment, error)
	Update(ctx context.Context, segment *models.Segment) error
	Delete(ctx context.Context, segmentID uint) error
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Campaign, error)
	ListWithSegment(ctx context.Context, limit, offset int) ([]*models.Campaign, error)
	ListBySegment(ctx context.Context, segmentID uint) ([]*models.Campaign, error)
	// CompareAndSetStatus transitions the campaign from one status to another
	// atomically, applying extra column updates in the same statement. It
	// reports whether the transition won (false means another caller got
	// there first or the campaign is gone).
	CompareAndSetStatus(ctx context.Context, campaignID uint, from, to models.CampaignStatus, updates map[string]any) (bool, error)
	UpdateStatus(ctx context.Context, campaignID uint, to models.CampaignStatus, updates map[string]any) error
	// UpdateCounters overwrites the running delivery totals
	UpdateCounters(ctx context.Context, campaignID uint, sentCount, failedCount int) error
	// ApplyCounterDelta adjusts the delivery totals relative to their current values
	ApplyCounterDelta(ctx context.Context, campaignID uint, sentDelta, failedDelta int) error
	Update(ctx context.Context, campaign *models.Campaign) error
	Delete(ctx context.Context, campaignID uint) error
}

// StatusTransition reports the outcome of a delivery status update
type StatusTransition struct {
	LogID      uint
	CampaignID uint
	Old        models.DeliveryStatus
	New        models.DeliveryStatus
}

// CommunicationLogRepository defines operations for per-recipient delivery logs
type CommunicationLogRepository interface {
	Repository[models.CommunicationLog, models.CommunicationLogFilter]
	ByMessageID(ctx context.Context, messageID string) (*models.CommunicationLog, error)
	ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.CommunicationLog, error)
	ListByCustomer(ctx context.Context, customerID uint, limit, offset int) ([]*models.CommunicationLog, error)
	// MarkDeliveryResult records the provider outcome for a single message
	MarkDeliveryResult(ctx context.Context, messageID string, status models.DeliveryStatus, at time.Time) error
	// BulkMarkFailed marks every given message as FAILED in one statement
	BulkMarkFailed(ctx context.Context, messageIDs []string, at time.Time) error
	// UpdateStatusByMessageID locks the log row, applies the new status and
	// returns the observed transition. A nil transition means no log carries
	// the message id.
	UpdateStatusByMessageID(ctx context.Context, messageID string, status models.DeliveryStatus, at time.Time) (*StatusTransition, error)
	DeleteByCampaign(ctx context.Context, campaignID uint) error
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
	ListFailedActions(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
}
