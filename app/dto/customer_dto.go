package dto

import (
	"time"
)

// CreateCustomerRequest represents the request to create a new customer
type CreateCustomerRequest struct {
	Name  string  `json:"name" validate:"required,min=1,max=255"`
	Email string  `json:"email" validate:"required,email"`
	Phone *string `json:"phone,omitempty" validate:"omitempty,max=20"`
}

// UpdateCustomerRequest represents the request to update an existing customer
type UpdateCustomerRequest struct {
	UUID       string  `json:"-"`
	Name       *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Email      *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone      *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	VisitCount *int    `json:"visit_count,omitempty" validate:"omitempty,min=0"`
}

// CustomerResponse represents a customer in API responses
type CustomerResponse struct {
	ID           uint       `json:"id"`
	UUID         string     `json:"uuid"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        *string    `json:"phone,omitempty"`
	TotalSpend   float64    `json:"total_spend"`
	VisitCount   int        `json:"visit_count"`
	LastPurchase *time.Time `json:"last_purchase,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ListCustomersRequest represents the request to list customers
type ListCustomersRequest struct {
	Page     int `json:"page" validate:"omitempty,min=1"`
	PageSize int `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListCustomersResponse represents the paginated customer list
type ListCustomersResponse struct {
	Customers  []CustomerResponse `json:"customers"`
	Pagination Pagination         `json:"pagination"`
}
