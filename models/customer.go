// Package models contains domain entities and business models for the CRM system
package models

import (
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_customers_uuid" json:"uuid"`

	Name  string  `gorm:"size:255;not null" json:"name"`
	Email string  `gorm:"size:255;not null;uniqueIndex:idx_customers_email" json:"email"`
	Phone *string `gorm:"size:20" json:"phone,omitempty"`

	// Purchase aggregates maintained by the order flow
	TotalSpend   float64    `gorm:"type:numeric(14,2);not null;default:0;index:idx_customers_total_spend" json:"total_spend"`
	VisitCount   int        `gorm:"not null;default:0" json:"visit_count"`
	LastPurchase *time.Time `gorm:"index:idx_customers_last_purchase" json:"last_purchase,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_customers_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	Orders            []Order            `gorm:"foreignKey:CustomerID" json:"orders,omitempty"`
	CommunicationLogs []CommunicationLog `gorm:"foreignKey:CustomerID" json:"-"`
}

func (Customer) TableName() string {
	return "customers"
}

// CustomerFilter represents filter criteria for customer queries
type CustomerFilter struct {
	ID             *uint
	UUID           *uuid.UUID
	Email          *string
	Name           *string
	MinTotalSpend  *float64
	MaxTotalSpend  *float64
	PurchasedAfter *time.Time
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
}

func (c *Customer) HasPurchased() bool {
	return c.LastPurchase != nil
}
