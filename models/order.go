package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

type Order struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_orders_uuid" json:"uuid"`

	CustomerID uint      `gorm:"not null;index:idx_orders_customer_id" json:"customer_id"`
	Customer   *Customer `gorm:"foreignKey:CustomerID;references:ID" json:"customer,omitempty"`

	Amount float64        `gorm:"type:numeric(14,2);not null" json:"amount"`
	Items  pq.StringArray `gorm:"type:text[]" json:"items"`
	Status string         `gorm:"size:20;not null;default:'completed';index:idx_orders_status" json:"status"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_orders_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderFilter represents filter criteria for order queries
type OrderFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	CustomerID    *uint
	Status        *string
	MinAmount     *float64
	MaxAmount     *float64
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (o *Order) IsCompleted() bool {
	return o.Status == OrderStatusCompleted
}
