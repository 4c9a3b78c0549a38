// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/Kitsune-CRM/models"
	"github.com/amirphl/Kitsune-CRM/utils"
	"gorm.io/gorm"
)

// CustomerRepositoryImpl implements CustomerRepository interface
type CustomerRepositoryImpl struct {
	*BaseRepository[models.Customer, models.CustomerFilter]
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &CustomerRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Customer, models.CustomerFilter](db),
	}
}

func (r *CustomerRepositoryImpl) applyFilter(db *gorm.DB, f models.CustomerFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.Email != nil {
		db = db.Where("email = ?", *f.Email)
	}
	if f.Name != nil {
		db = db.Where("name = ?", *f.Name)
	}
	if f.MinTotalSpend != nil {
		db = db.Where("total_spend >= ?", *f.MinTotalSpend)
	}
	if f.MaxTotalSpend != nil {
		db = db.Where("total_spend <= ?", *f.MaxTotalSpend)
	}
	if f.PurchasedAfter != nil {
		db = db.Where("last_purchase >= ?", *f.PurchasedAfter)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *f.CreatedBefore)
	}
	return db
}

// ByFilter retrieves customers matching the filter criteria
func (r *CustomerRepositoryImpl) ByFilter(ctx context.Context, filter models.CustomerFilter, orderBy string, limit, offset int) ([]*models.Customer, error) {
	db := r.getDB(ctx)

	query := r.applyFilter(db.Model(&models.Customer{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var customers []*models.Customer
	if err := query.Find(&customers).Error; err != nil {
		return nil, fmt.Errorf("failed to find customers by filter: %w", err)
	}

	return customers, nil
}

// Count returns the number of customers matching the filter
func (r *CustomerRepositoryImpl) Count(ctx context.Context, filter models.CustomerFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	if err := r.applyFilter(db.Model(&models.Customer{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count customers: %w", err)
	}

	return count, nil
}

// Exists checks if any customer matching the filter exists
func (r *CustomerRepositoryImpl) Exists(ctx context.Context, filter models.CustomerFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ByEmail retrieves a customer by email address
func (r *CustomerRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.Customer, error) {
	db := r.getDB(ctx)

	var customer models.Customer
	err := db.Where("email = ?", email).First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find customer by email: %w", err)
	}

	return &customer, nil
}

// ByUUID retrieves a customer by UUID
func (r *CustomerRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Customer, error) {
	db := r.getDB(ctx)

	var customer models.Customer
	err := db.Where("uuid = ?", uuid).First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find customer by uuid: %w", err)
	}

	return &customer, nil
}

// ListByRules retrieves customers matching a compiled segment rule tree.
// A non-positive limit returns the whole audience.
func (r *CustomerRepositoryImpl) ListByRules(ctx context.Context, rules models.RuleTree, limit int) ([]*models.Customer, error) {
	db := r.getDB(ctx)

	query := CompileRules(rules, utils.UTCNow()).Apply(db.Model(&models.Customer{})).Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var customers []*models.Customer
	if err := query.Find(&customers).Error; err != nil {
		return nil, fmt.Errorf("failed to list customers by rules: %w", err)
	}

	return customers, nil
}

// CountByRules counts customers matching a compiled segment rule tree
func (r *CustomerRepositoryImpl) CountByRules(ctx context.Context, rules models.RuleTree) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	err := CompileRules(rules, utils.UTCNow()).Apply(db.Model(&models.Customer{})).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count customers by rules: %w", err)
	}

	return count, nil
}

// ApplyPurchaseDelta adjusts a customer's spend total and optionally stamps
// the last purchase time. Deltas may be negative (order update or removal).
func (r *CustomerRepositoryImpl) ApplyPurchaseDelta(ctx context.Context, customerID uint, spendDelta float64, lastPurchase *time.Time) error {
	db := r.getDB(ctx)

	updates := map[string]any{
		"total_spend": gorm.Expr("total_spend + ?", spendDelta),
		"updated_at":  utils.UTCNow(),
	}
	if lastPurchase != nil {
		updates["last_purchase"] = *lastPurchase
	}

	result := db.Model(&models.Customer{}).Where("id = ?", customerID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to apply purchase delta: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("customer %d not found for purchase delta", customerID)
	}

	return nil
}

// Update persists changes to an existing customer
func (r *CustomerRepositoryImpl) Update(ctx context.Context, customer *models.Customer) error {
	db := r.getDB(ctx)

	customer.UpdatedAt = utils.UTCNow()
	if err := db.Save(customer).Error; err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}

	return nil
}

// Delete removes a customer
func (r *CustomerRepositoryImpl) Delete(ctx context.Context, customerID uint) error {
	db := r.getDB(ctx)

	if err := db.Delete(&models.Customer{}, customerID).Error; err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}

	return nil
}
