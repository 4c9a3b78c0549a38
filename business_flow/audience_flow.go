package businessflow

import (
	"context"

	"github.com/amirphl/Kitsune-CRM/models"
	"github.com/amirphl/Kitsune-CRM/repository"
)

// AudienceResolver evaluates segment rule trees against the customer store.
// Resolve propagates failures; Count does too, and callers that can degrade
// (segment create/update) substitute 0 and log instead of failing.
type AudienceResolver interface {
	Resolve(ctx context.Context, rules models.RuleTree, limit int) ([]*models.Customer, error)
	Count(ctx context.Context, rules models.RuleTree) (int64, error)
}

// AudienceResolverImpl implements AudienceResolver over the customer repository
type AudienceResolverImpl struct {
	customerRepo repository.CustomerRepository
}

// NewAudienceResolver creates a new audience resolver
func NewAudienceResolver(customerRepo repository.CustomerRepository) AudienceResolver {
	return &AudienceResolverImpl{customerRepo: customerRepo}
}

// Resolve returns the matching customers in the store's default order.
// A non-positive limit returns the entire audience; Count never limits.
func (r *AudienceResolverImpl) Resolve(ctx context.Context, rules models.RuleTree, limit int) ([]*models.Customer, error) {
	return r.customerRepo.ListByRules(ctx, rules, limit)
}

// Count returns the matching customer count
func (r *AudienceResolverImpl) Count(ctx context.Context, rules models.RuleTree) (int64, error) {
	return r.customerRepo.CountByRules(ctx, rules)
}
