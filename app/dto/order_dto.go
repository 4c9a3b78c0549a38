package dto

import (
	"time"
)

// CreateOrderRequest represents the request to record a new order
type CreateOrderRequest struct {
	CustomerUUID string   `json:"customer_uuid" validate:"required,uuid4"`
	Amount       float64  `json:"amount" validate:"required,gt=0"`
	Items        []string `json:"items,omitempty" validate:"omitempty,dive,min=1"`
	Status       *string  `json:"status,omitempty" validate:"omitempty,oneof=pending completed cancelled"`
}

// UpdateOrderRequest represents the request to update an existing order
type UpdateOrderRequest struct {
	UUID   string   `json:"-"`
	Amount *float64 `json:"amount,omitempty" validate:"omitempty,gt=0"`
	Items  []string `json:"items,omitempty" validate:"omitempty,dive,min=1"`
	Status *string  `json:"status,omitempty" validate:"omitempty,oneof=pending completed cancelled"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID         uint      `json:"id"`
	UUID       string    `json:"uuid"`
	CustomerID uint      `json:"customer_id"`
	Amount     float64   `json:"amount"`
	Items      []string  `json:"items"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ListOrdersRequest represents the request to list orders
type ListOrdersRequest struct {
	CustomerUUID *string `json:"customer_uuid,omitempty" validate:"omitempty,uuid4"`
	Page         int     `json:"page" validate:"omitempty,min=1"`
	PageSize     int     `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListOrdersResponse represents the paginated order list
type ListOrdersResponse struct {
	Orders     []OrderResponse `json:"orders"`
	Pagination Pagination      `json:"pagination"`
}
