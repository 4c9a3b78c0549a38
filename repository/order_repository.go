package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/Kitsune-CRM/models"
	"github.com/amirphl/Kitsune-CRM/utils"
	"gorm.io/gorm"
)

// OrderRepositoryImpl implements OrderRepository interface
type OrderRepositoryImpl struct {
	*BaseRepository[models.Order, models.OrderFilter]
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &OrderRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Order, models.OrderFilter](db),
	}
}

func (r *OrderRepositoryImpl) applyFilter(db *gorm.DB, f models.OrderFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.CustomerID != nil {
		db = db.Where("customer_id = ?", *f.CustomerID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.MinAmount != nil {
		db = db.Where("amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		db = db.Where("amount <= ?", *f.MaxAmount)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *f.CreatedBefore)
	}
	return db
}

// ByFilter retrieves orders matching the filter criteria
func (r *OrderRepositoryImpl) ByFilter(ctx context.Context, filter models.OrderFilter, orderBy string, limit, offset int) ([]*models.Order, error) {
	db := r.getDB(ctx)

	query := r.applyFilter(db.Model(&models.Order{}), filter).Preload("Customer")
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var orders []*models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to find orders by filter: %w", err)
	}

	return orders, nil
}

// Count returns the number of orders matching the filter
func (r *OrderRepositoryImpl) Count(ctx context.Context, filter models.OrderFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.Order{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}

	return count, nil
}

// Exists checks if any order matching the filter exists
func (r *OrderRepositoryImpl) Exists(ctx context.Context, filter models.OrderFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ByUUID retrieves an order by UUID
func (r *OrderRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Order, error) {
	db := r.getDB(ctx)

	var order models.Order
	err := db.Where("uuid = ?", uuid).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find order by uuid: %w", err)
	}

	return &order, nil
}

// ListByCustomer retrieves a customer's orders, newest first
func (r *OrderRepositoryImpl) ListByCustomer(ctx context.Context, customerID uint, limit, offset int) ([]*models.Order, error) {
	db := r.getDB(ctx)

	query := db.Where("customer_id = ?", customerID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var orders []*models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders by customer: %w", err)
	}

	return orders, nil
}

// Update persists changes to an existing order
func (r *OrderRepositoryImpl) Update(ctx context.Context, order *models.Order) error {
	db := r.getDB(ctx)

	order.UpdatedAt = utils.UTCNow()
	if err := db.Save(order).Error; err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	return nil
}

// Delete removes an order
func (r *OrderRepositoryImpl) Delete(ctx context.Context, orderID uint) error {
	db := r.getDB(ctx)

	if err := db.Delete(&models.Order{}, orderID).Error; err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}

	return nil
}
