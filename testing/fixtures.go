// Package testing provides test utilities and database setup for testing the CRM system
package testing

import (
	"fmt"
	"math/rand"

	"github.com/amirphl/Kitsune-CRM/models"
	"github.com/amirphl/Kitsune-CRM/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestCustomer creates a customer with randomized contact details
func (tf *TestFixtures) CreateTestCustomer(name string) (*models.Customer, error) {
	randomDigits := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)
	phone := fmt.Sprintf("+1555%s", randomDigits[:7])

	customer := &models.Customer{
		UUID:  uuid.New(),
		Name:  name,
		Email: fmt.Sprintf("%s.%s@example.com", name, randomDigits),
		Phone: &phone,
	}

	if err := tf.DB.DB.Create(customer).Error; err != nil {
		return nil, fmt.Errorf("failed to create test customer: %w", err)
	}

	return customer, nil
}

// CreateTestOrder creates a completed order for the given customer and rolls
// the purchase aggregates forward the way the order flow does
func (tf *TestFixtures) CreateTestOrder(customerID uint, amount float64, items ...string) (*models.Order, error) {
	order := &models.Order{
		UUID:       uuid.New(),
		CustomerID: customerID,
		Amount:     amount,
		Items:      pq.StringArray(items),
		Status:     models.OrderStatusCompleted,
	}

	if err := tf.DB.DB.Create(order).Error; err != nil {
		return nil, fmt.Errorf("failed to create test order: %w", err)
	}

	err := tf.DB.DB.Model(&models.Customer{}).
		Where("id = ?", customerID).
		Updates(map[string]any{
			"total_spend":   gorm.Expr("total_spend + ?", amount),
			"visit_count":   gorm.Expr("visit_count + 1"),
			"last_purchase": utils.UTCNow(),
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update customer aggregates: %w", err)
	}

	return order, nil
}

// CreateTestSegment creates a segment with a single minimum-spend rule
func (tf *TestFixtures) CreateTestSegment(name string, minSpend string) (*models.Segment, error) {
	segment := &models.Segment{
		UUID: uuid.New(),
		Name: name,
		Rules: models.RuleTree{
			Conditions: []models.RuleCondition{
				{
					Type:     models.RuleTypeMinimumSpent,
					Operator: models.RuleOperatorGreaterThan,
					Value:    models.SingleRuleValue(minSpend),
				},
			},
			LogicType: models.RuleLogicAll,
		},
	}

	if err := tf.DB.DB.Create(segment).Error; err != nil {
		return nil, fmt.Errorf("failed to create test segment: %w", err)
	}

	return segment, nil
}

// CreateTestCampaign creates a scheduled campaign over the given segment
func (tf *TestFixtures) CreateTestCampaign(segmentID uint, name, template string) (*models.Campaign, error) {
	campaign := &models.Campaign{
		UUID:            uuid.New(),
		Name:            name,
		SegmentID:       segmentID,
		MessageTemplate: template,
		Status:          models.CampaignStatusScheduled,
	}

	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}

	return campaign, nil
}

// CreateTestCommunicationLog creates a delivery log entry in the given status
func (tf *TestFixtures) CreateTestCommunicationLog(campaignID, customerID uint, status models.DeliveryStatus) (*models.CommunicationLog, error) {
	logEntry := &models.CommunicationLog{
		CampaignID: campaignID,
		CustomerID: customerID,
		MessageID:  uuid.NewString(),
		Content:    "Hi there, check out our latest offer!",
		Status:     status,
	}

	if status != models.DeliveryStatusPending {
		logEntry.StatusUpdatedAt = utils.UTCNowPtr()
	}

	if err := tf.DB.DB.Create(logEntry).Error; err != nil {
		return nil, fmt.Errorf("failed to create test communication log: %w", err)
	}

	return logEntry, nil
}

// CreateTestAuditLog creates a test audit log entry
func (tf *TestFixtures) CreateTestAuditLog(action string, success bool) (*models.AuditLog, error) {
	description := fmt.Sprintf("Test %s action", action)
	ipAddress := "127.0.0.1"
	userAgent := "Test User Agent"

	audit := &models.AuditLog{
		Action:      action,
		Description: &description,
		Success:     &success,
		IPAddress:   &ipAddress,
		UserAgent:   &userAgent,
	}

	if !success {
		errorMessage := "Test failed action"
		audit.ErrorMessage = &errorMessage
	}

	if err := tf.DB.DB.Create(audit).Error; err != nil {
		return nil, fmt.Errorf("failed to create test audit log: %w", err)
	}

	return audit, nil
}

// CreateSegmentAudience seeds several customers whose spend clears the given
// threshold, so a minimum-spend segment resolves to them
func (tf *TestFixtures) CreateSegmentAudience(count int, spendAbove float64) ([]*models.Customer, error) {
	var customers []*models.Customer
	for i := 0; i < count; i++ {
		customer, err := tf.CreateTestCustomer(fmt.Sprintf("audience%d", i+1))
		if err != nil {
			return nil, err
		}

		now := utils.UTCNow()
		err = tf.DB.DB.Model(customer).Updates(map[string]any{
			"total_spend":   spendAbove + float64(i+1),
			"visit_count":   i + 1,
			"last_purchase": now,
		}).Error
		if err != nil {
			return nil, fmt.Errorf("failed to seed customer aggregates: %w", err)
		}

		customers = append(customers, customer)
	}
	return customers, nil
}
