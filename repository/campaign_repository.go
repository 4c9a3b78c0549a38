package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/Kitsune-CRM/models"
	"github.com/amirphl/Kitsune-CRM/utils"
	"gorm.io/gorm"
)

// CampaignRepositoryImpl implements CampaignRepository interface
type CampaignRepositoryImpl struct {
	*BaseRepository[models.Campaign, models.CampaignFilter]
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Campaign, models.CampaignFilter](db),
	}
}

func (r *CampaignRepositoryImpl) applyFilter(db *gorm.DB, f models.CampaignFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.Name != nil {
		db = db.Where("name = ?", *f.Name)
	}
	if f.SegmentID != nil {
		db = db.Where("segment_id = ?", *f.SegmentID)
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

// ByFilter retrieves campaigns matching the filter criteria
func (r *CampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	db := r.getDB(ctx)

	query := r.applyFilter(db.Model(&models.Campaign{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var campaigns []*models.Campaign
	if err := query.Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to find campaigns by filter: %w", err)
	}

	return campaigns, nil
}

// Count returns the number of campaigns matching the filter
func (r *CampaignRepositoryImpl) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.Campaign{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count campaigns: %w", err)
	}

	return count, nil
}

// Exists checks if any campaign matching the filter exists
func (r *CampaignRepositoryImpl) Exists(ctx context.Context, filter models.CampaignFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ByUUID retrieves a campaign by UUID
func (r *CampaignRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Campaign, error) {
	db := r.getDB(ctx)

	var campaign models.Campaign
	err := db.Where("uuid = ?", uuid).Preload("Segment").First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find campaign by uuid: %w", err)
	}

	return &campaign, nil
}

// ListWithSegment retrieves campaigns with their segments preloaded, newest first
func (r *CampaignRepositoryImpl) ListWithSegment(ctx context.Context, limit, offset int) ([]*models.Campaign, error) {
	db := r.getDB(ctx)

	query := db.Preload("Segment").Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var campaigns []*models.Campaign
	if err := query.Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to list campaigns with segment: %w", err)
	}

	return campaigns, nil
}

// ListBySegment retrieves every campaign referencing a segment
func (r *CampaignRepositoryImpl) ListBySegment(ctx context.Context, segmentID uint) ([]*models.Campaign, error) {
	db := r.getDB(ctx)

	var campaigns []*models.Campaign
	if err := db.Where("segment_id = ?", segmentID).Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to list campaigns by segment: %w", err)
	}

	return campaigns, nil
}

// CompareAndSetStatus transitions a campaign between statuses atomically.
// The status check and write happen in one UPDATE so concurrent executors
// cannot both win.
func (r *CampaignRepositoryImpl) CompareAndSetStatus(ctx context.Context, campaignID uint, from, to models.CampaignStatus, updates map[string]any) (bool, error) {
	db := r.getDB(ctx)

	values := map[string]any{
		"status":     to,
		"updated_at": utils.UTCNow(),
	}
	for k, v := range updates {
		values[k] = v
	}

	result := db.Model(&models.Campaign{}).
		Where("id = ? AND status = ?", campaignID, from).
		Updates(values)
	if result.Error != nil {
		return false, fmt.Errorf("failed to compare-and-set campaign status: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

// UpdateStatus sets a campaign status unconditionally
func (r *CampaignRepositoryImpl) UpdateStatus(ctx context.Context, campaignID uint, to models.CampaignStatus, updates map[string]any) error {
	db := r.getDB(ctx)

	values := map[string]any{
		"status":     to,
		"updated_at": utils.UTCNow(),
	}
	for k, v := range updates {
		values[k] = v
	}

	err := db.Model(&models.Campaign{}).Where("id = ?", campaignID).Updates(values).Error
	if err != nil {
		return fmt.Errorf("failed to update campaign status: %w", err)
	}

	return nil
}

// UpdateCounters overwrites the running delivery totals
func (r *CampaignRepositoryImpl) UpdateCounters(ctx context.Context, campaignID uint, sentCount, failedCount int) error {
	db := r.getDB(ctx)

	err := db.Model(&models.Campaign{}).Where("id = ?", campaignID).Updates(map[string]any{
		"sent_count":   sentCount,
		"failed_count": failedCount,
		"updated_at":   utils.UTCNow(),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to update campaign counters: %w", err)
	}

	return nil
}

// ApplyCounterDelta adjusts the delivery totals relative to their current values
func (r *CampaignRepositoryImpl) ApplyCounterDelta(ctx context.Context, campaignID uint, sentDelta, failedDelta int) error {
	if sentDelta == 0 && failedDelta == 0 {
		return nil
	}

	db := r.getDB(ctx)

	err := db.Model(&models.Campaign{}).Where("id = ?", campaignID).Updates(map[string]any{
		"sent_count":   gorm.Expr("sent_count + ?", sentDelta),
		"failed_count": gorm.Expr("failed_count + ?", failedDelta),
		"updated_at":   utils.UTCNow(),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to apply campaign counter delta: %w", err)
	}

	return nil
}

// Update persists changes to an existing campaign
func (r *CampaignRepositoryImpl) Update(ctx context.Context, campaign *models.Campaign) error {
	db := r.getDB(ctx)

	campaign.UpdatedAt = utils.UTCNow()
	if err := db.Save(campaign).Error; err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}

	return nil
}

// Delete removes a campaign
func (r *CampaignRepositoryImpl) Delete(ctx context.Context, campaignID uint) error {
	db := r.getDB(ctx)

	if err := db.Delete(&models.Campaign{}, campaignID).Error; err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}

	return nil
}
