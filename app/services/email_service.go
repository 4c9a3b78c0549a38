// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/amirphl/Kitsune-CRM/config"
	"github.com/amirphl/Kitsune-CRM/utils"
)

// EmailMessage is a single outbound email addressed to one recipient
type EmailMessage struct {
	To        string
	Subject   string
	Body      string
	MessageID string // correlation id echoed back by delivery receipts
}

// DeliveryResult reports the provider's accept/reject decision for one message
type DeliveryResult struct {
	Success    bool
	ProviderID string
	Error      string
}

// EmailService handles outbound email delivery
type EmailService interface {
	Send(ctx context.Context, msg EmailMessage) (*DeliveryResult, error)
}

// EmailServiceImpl implements EmailService against an HTTP mail provider
type EmailServiceImpl struct {
	config *config.EmailConfig
	client *http.Client
}

// EmailRequest represents the request payload for the mail provider API
type EmailRequest struct {
	FromEmail string `json:"fromEmail"`
	FromName  string `json:"fromName"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	MessageID string `json:"messageId"`
}

// EmailResponse represents the mail provider API response
type EmailResponse struct {
	ProviderID string `json:"providerId"`
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message,omitempty"`
}

// NewEmailService creates a new email service instance
func NewEmailService(cfg *config.EmailConfig) EmailService {
	return &EmailServiceImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Send submits one message to the provider. A non-accepted provider status
// comes back as an unsuccessful result rather than an error so callers can
// account for it per recipient.
func (s *EmailServiceImpl) Send(ctx context.Context, msg EmailMessage) (*DeliveryResult, error) {
	request := EmailRequest{
		FromEmail: s.config.FromEmail,
		FromName:  s.config.FromName,
		To:        msg.To,
		Subject:   msg.Subject,
		Body:      msg.Body,
		MessageID: msg.MessageID,
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal email request: %w", err)
	}

	url := fmt.Sprintf("https://%s/api/v1/send", s.config.ProviderDomain)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send email request: %w", err)
	}
	defer resp.Body.Close()

	var result EmailResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode email response: %w", err)
	}

	if result.StatusCode != 200 || result.Status != "ACCEPTED" {
		return &DeliveryResult{
			Success: false,
			Error:   fmt.Sprintf("email delivery rejected for %s: %s (%d)", msg.To, result.Status, result.StatusCode),
		}, nil
	}

	return &DeliveryResult{
		Success:    true,
		ProviderID: result.ProviderID,
	}, nil
}

// MockEmailService implements EmailService for testing and local runs
type MockEmailService struct {
	mu           sync.Mutex
	SentMessages []MockEmailMessage

	// FailureRate simulates provider rejects: fraction of sends in [0,1)
	// reported as unsuccessful.
	FailureRate float64

	// FailFor forces unsuccessful results for specific recipients.
	FailFor map[string]bool

	// Err, when set, is returned from every Send call.
	Err error

	rng *rand.Rand
}

// MockEmailMessage represents a recorded mock send
type MockEmailMessage struct {
	To        string
	Subject   string
	Body      string
	MessageID string
	SentAt    time.Time
}

// NewMockEmailService creates a new mock email service
func NewMockEmailService(failureRate float64) *MockEmailService {
	return &MockEmailService{
		SentMessages: make([]MockEmailMessage, 0),
		FailureRate:  failureRate,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Send records the message and simulates the provider decision
func (m *MockEmailService) Send(ctx context.Context, msg EmailMessage) (*DeliveryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	m.SentMessages = append(m.SentMessages, MockEmailMessage{
		To:        msg.To,
		Subject:   msg.Subject,
		Body:      msg.Body,
		MessageID: msg.MessageID,
		SentAt:    utils.UTCNow(),
	})

	if m.FailFor[msg.To] || (m.FailureRate > 0 && m.rng.Float64() < m.FailureRate) {
		return &DeliveryResult{
			Success: false,
			Error:   fmt.Sprintf("simulated delivery failure for %s", msg.To),
		}, nil
	}

	return &DeliveryResult{
		Success:    true,
		ProviderID: fmt.Sprintf("mock-%d", len(m.SentMessages)),
	}, nil
}

// Sent returns a copy of the recorded messages
func (m *MockEmailService) Sent() []MockEmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]MockEmailMessage, len(m.SentMessages))
	copy(out, m.SentMessages)
	return out
}
