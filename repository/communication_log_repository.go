package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/Kitsune-CRM/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommunicationLogRepositoryImpl implements CommunicationLogRepository interface
type CommunicationLogRepositoryImpl struct {
	*BaseRepository[models.CommunicationLog, models.CommunicationLogFilter]
}

// NewCommunicationLogRepository creates a new communication log repository
func NewCommunicationLogRepository(db *gorm.DB) CommunicationLogRepository {
	return &CommunicationLogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CommunicationLog, models.CommunicationLogFilter](db),
	}
}

func (r *CommunicationLogRepositoryImpl) applyFilter(db *gorm.DB, f models.CommunicationLogFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.CustomerID != nil {
		db = db.Where("customer_id = ?", *f.CustomerID)
	}
	if f.MessageID != nil {
		db = db.Where("message_id = ?", *f.MessageID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *f.CreatedBefore)
	}
	return db
}

// ByFilter retrieves communication logs matching the filter criteria
func (r *CommunicationLogRepositoryImpl) ByFilter(ctx context.Context, filter models.CommunicationLogFilter, orderBy string, limit, offset int) ([]*models.CommunicationLog, error) {
	db := r.getDB(ctx)

	query := r.applyFilter(db.Model(&models.CommunicationLog{}), filter).
		Preload("Campaign").
		Preload("Customer")
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var logs []*models.CommunicationLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to find communication logs by filter: %w", err)
	}

	return logs, nil
}

// Count returns the number of communication logs matching the filter
func (r *CommunicationLogRepositoryImpl) Count(ctx context.Context, filter models.CommunicationLogFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.CommunicationLog{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count communication logs: %w", err)
	}

	return count, nil
}

// Exists checks if any communication log matching the filter exists
func (r *CommunicationLogRepositoryImpl) Exists(ctx context.Context, filter models.CommunicationLogFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ByMessageID retrieves a communication log by its provider correlation id
func (r *CommunicationLogRepositoryImpl) ByMessageID(ctx context.Context, messageID string) (*models.CommunicationLog, error) {
	db := r.getDB(ctx)

	var log models.CommunicationLog
	err := db.Where("message_id = ?", messageID).First(&log).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find communication log by message id: %w", err)
	}

	return &log, nil
}

// ListByCampaign retrieves a campaign's logs with customers preloaded, newest first
func (r *CommunicationLogRepositoryImpl) ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.CommunicationLog, error) {
	db := r.getDB(ctx)

	query := db.Where("campaign_id = ?", campaignID).
		Order("created_at DESC").
		Preload("Customer")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var logs []*models.CommunicationLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list communication logs by campaign: %w", err)
	}

	return logs, nil
}

// ListByCustomer retrieves a customer's logs with campaigns preloaded, newest first
func (r *CommunicationLogRepositoryImpl) ListByCustomer(ctx context.Context, customerID uint, limit, offset int) ([]*models.CommunicationLog, error) {
	db := r.getDB(ctx)

	query := db.Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Preload("Campaign")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var logs []*models.CommunicationLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list communication logs by customer: %w", err)
	}

	return logs, nil
}

// MarkDeliveryResult records the provider outcome for a single message
func (r *CommunicationLogRepositoryImpl) MarkDeliveryResult(ctx context.Context, messageID string, status models.DeliveryStatus, at time.Time) error {
	db := r.getDB(ctx)

	err := db.Model(&models.CommunicationLog{}).
		Where("message_id = ?", messageID).
		Updates(map[string]any{
			"status":            status,
			"status_updated_at": at,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark delivery result: %w", err)
	}

	return nil
}

// BulkMarkFailed marks every given message as FAILED in one statement
func (r *CommunicationLogRepositoryImpl) BulkMarkFailed(ctx context.Context, messageIDs []string, at time.Time) error {
	if len(messageIDs) == 0 {
		return nil
	}

	db := r.getDB(ctx)

	err := db.Model(&models.CommunicationLog{}).
		Where("message_id IN ?", messageIDs).
		Updates(map[string]any{
			"status":            models.DeliveryStatusFailed,
			"status_updated_at": at,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to bulk mark communication logs failed: %w", err)
	}

	return nil
}

// UpdateStatusByMessageID locks the log row, applies the new status and
// returns the observed transition. Callers run this inside WithTransaction
// so the row lock covers the follow-up counter adjustment.
func (r *CommunicationLogRepositoryImpl) UpdateStatusByMessageID(ctx context.Context, messageID string, status models.DeliveryStatus, at time.Time) (*StatusTransition, error) {
	db := r.getDB(ctx)

	var log models.CommunicationLog
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("message_id = ?", messageID).
		First(&log).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock communication log by message id: %w", err)
	}

	err = db.Model(&models.CommunicationLog{}).
		Where("id = ?", log.ID).
		Updates(map[string]any{
			"status":            status,
			"status_updated_at": at,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update communication log status: %w", err)
	}

	return &StatusTransition{
		LogID:      log.ID,
		CampaignID: log.CampaignID,
		Old:        log.Status,
		New:        status,
	}, nil
}

// DeleteByCampaign removes every log belonging to a campaign
func (r *CommunicationLogRepositoryImpl) DeleteByCampaign(ctx context.Context, campaignID uint) error {
	db := r.getDB(ctx)

	err := db.Where("campaign_id = ?", campaignID).Delete(&models.CommunicationLog{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete communication logs by campaign: %w", err)
	}

	return nil
}
