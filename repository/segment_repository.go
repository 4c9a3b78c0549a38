package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/Kitsune-CRM/models"
	"github.com/amirphl/Kitsune-CRM/utils"
	"gorm.io/gorm"
)

// SegmentRepositoryImpl implements SegmentRepository interface
type SegmentRepositoryImpl struct {
	*BaseRepository[models.Segment, models.SegmentFilter]
}

// NewSegmentRepository creates a new segment repository
func NewSegmentRepository(db *gorm.DB) SegmentRepository {
	return &SegmentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Segment, models.SegmentFilter](db),
	}
}

func (r *SegmentRepositoryImpl) applyFilter(db *gorm.DB, f models.SegmentFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.Name != nil {
		db = db.Where("name = ?", *f.Name)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *f.CreatedBefore)
	}
	return db
}

// ByFilter retrieves segments matching the filter criteria
func (r *SegmentRepositoryImpl) ByFilter(ctx context.Context, filter models.SegmentFilter, orderBy string, limit, offset int) ([]*models.Segment, error) {
	db := r.getDB(ctx)

	query := r.applyFilter(db.Model(&models.Segment{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var segments []*models.Segment
	if err := query.Find(&segments).Error; err != nil {
		return nil, fmt.Errorf("failed to find segments by filter: %w", err)
	}

	return segments, nil
}

// Count returns the number of segments matching the filter
func (r *SegmentRepositoryImpl) Count(ctx context.Context, filter models.SegmentFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.Segment{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count segments: %w", err)
	}

	return count, nil
}

// Exists checks if any segment matching the filter exists
func (r *SegmentRepositoryImpl) Exists(ctx context.Context, filter models.SegmentFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ByUUID retrieves a segment by UUID
func (r *SegmentRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Segment, error) {
	db := r.getDB(ctx)

	var segment models.Segment
	err := db.Where("uuid = ?", uuid).First(&segment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find segment by uuid: %w", err)
	}

	return &segment, nil
}

// Update persists changes to an existing segment
func (r *SegmentRepositoryImpl) Update(ctx context.Context, segment *models.Segment) error {
	db := r.getDB(ctx)

	segment.UpdatedAt = utils.UTCNow()
	if err := db.Save(segment).Error; err != nil {
		return fmt.Errorf("failed to update segment: %w", err)
	}

	return nil
}

// Delete removes a segment
func (r *SegmentRepositoryImpl) Delete(ctx context.Context, segmentID uint) error {
	db := r.getDB(ctx)

	if err := db.Delete(&models.Segment{}, segmentID).Error; err != nil {
		return fmt.Errorf("failed to delete segment: %w", err)
	}

	return nil
}
