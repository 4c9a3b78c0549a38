// Package businessflow contains the core business logic and use cases for CRM workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Auth errors
	ErrIncorrectCredentials = errors.New("incorrect email or password")

	// Customer-related errors
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrEmailAlreadyExists = errors.New("email already exists")

	// Order-related errors
	ErrOrderNotFound = errors.New("order not found")

	// Segment-related errors
	ErrSegmentNotFound = errors.New("segment not found")
	ErrSegmentInUse    = errors.New("segment is referenced by campaigns")

	// Campaign-related errors
	ErrCampaignNotFound     = errors.New("campaign not found")
	ErrCampaignNotEditable  = errors.New("campaign can no longer be edited")
	ErrCampaignNotDeletable = errors.New("campaign cannot be deleted while in progress")
	ErrCampaignConflict     = errors.New("campaign is not in a runnable state")

	// Delivery-related errors
	ErrCommunicationLogNotFound = errors.New("communication log not found")
	ErrUnknownDeliveryStatus    = errors.New("unknown delivery status")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsIncorrectCredentials(err error) bool {
	return errors.Is(err, ErrIncorrectCredentials)
}

func IsCustomerNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound)
}

func IsEmailAlreadyExists(err error) bool {
	return errors.Is(err, ErrEmailAlreadyExists)
}

func IsOrderNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound)
}

func IsSegmentNotFound(err error) bool {
	return errors.Is(err, ErrSegmentNotFound)
}

func IsSegmentInUse(err error) bool {
	return errors.Is(err, ErrSegmentInUse)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignNotEditable(err error) bool {
	return errors.Is(err, ErrCampaignNotEditable)
}

func IsCampaignNotDeletable(err error) bool {
	return errors.Is(err, ErrCampaignNotDeletable)
}

func IsCampaignConflict(err error) bool {
	return errors.Is(err, ErrCampaignConflict)
}

func IsCommunicationLogNotFound(err error) bool {
	return errors.Is(err, ErrCommunicationLogNotFound)
}

func IsUnknownDeliveryStatus(err error) bool {
	return errors.Is(err, ErrUnknownDeliveryStatus)
}
