package businessflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/amirphl/Kitsune-CRM/models"
	"github.com/amirphl/Kitsune-CRM/repository"
)

// identityTxRunner runs the function directly, standing in for a database
// transaction in tests.
func identityTxRunner(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type fakeAudienceResolver struct {
	customers  []*models.Customer
	resolveErr error
	countErr   error
}

func (f *fakeAudienceResolver) Resolve(ctx context.Context, rules models.RuleTree, limit int) ([]*models.Customer, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	if limit > 0 && limit < len(f.customers) {
		return f.customers[:limit], nil
	}
	return f.customers, nil
}

func (f *fakeAudienceResolver) Count(ctx context.Context, rules models.RuleTree) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.customers)), nil
}

type fakeCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[uint]*models.Campaign

	counterUpdates []counterUpdate
	counterDeltas  []counterUpdate
	casErr         error
	// when set, casErr only fires for transitions into this status
	casErrTo models.CampaignStatus
}

type counterUpdate struct {
	campaignID uint
	sent       int
	failed     int
}

func newFakeCampaignRepo(campaigns ...*models.Campaign) *fakeCampaignRepo {
	repo := &fakeCampaignRepo{campaigns: make(map[uint]*models.Campaign)}
	for _, campaign := range campaigns {
		repo.campaigns[campaign.ID] = campaign
	}
	return repo
}

func (f *fakeCampaignRepo) ByID(ctx context.Context, id uint) (*models.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.campaigns[id], nil
}

func (f *fakeCampaignRepo) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Campaign, 0, len(f.campaigns))
	for _, campaign := range f.campaigns {
		out = append(out, campaign)
	}
	return out, nil
}

func (f *fakeCampaignRepo) Save(ctx context.Context, campaign *models.Campaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if campaign.ID == 0 {
		campaign.ID = uint(len(f.campaigns) + 1)
	}
	f.campaigns[campaign.ID] = campaign
	return nil
}

func (f *fakeCampaignRepo) SaveBatch(ctx context.Context, campaigns []*models.Campaign) error {
	for _, campaign := range campaigns {
		if err := f.Save(ctx, campaign); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeCampaignRepo) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.campaigns)), nil
}

func (f *fakeCampaignRepo) Exists(ctx context.Context, filter models.CampaignFilter) (bool, error) {
	count, _ := f.Count(ctx, filter)
	return count > 0, nil
}

func (f *fakeCampaignRepo) ByUUID(ctx context.Context, uuid string) (*models.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, campaign := range f.campaigns {
		if campaign.UUID.String() == uuid {
			return campaign, nil
		}
	}
	return nil, nil
}

func (f *fakeCampaignRepo) ListWithSegment(ctx context.Context, limit, offset int) ([]*models.Campaign, error) {
	return f.ByFilter(ctx, models.CampaignFilter{}, "", limit, offset)
}

func (f *fakeCampaignRepo) ListBySegment(ctx context.Context, segmentID uint) ([]*models.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Campaign
	for _, campaign := range f.campaigns {
		if campaign.SegmentID == segmentID {
			out = append(out, campaign)
		}
	}
	return out, nil
}

func (f *fakeCampaignRepo) CompareAndSetStatus(ctx context.Context, campaignID uint, from, to models.CampaignStatus, updates map[string]any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.casErr != nil && (f.casErrTo == "" || f.casErrTo == to) {
		return false, f.casErr
	}
	campaign, ok := f.campaigns[campaignID]
	if !ok || campaign.Status != from {
		return false, nil
	}
	campaign.Status = to
	f.applyUpdates(campaign, updates)
	return true, nil
}

func (f *fakeCampaignRepo) UpdateStatus(ctx context.Context, campaignID uint, to models.CampaignStatus, updates map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	campaign, ok := f.campaigns[campaignID]
	if !ok {
		return errors.New("campaign not found")
	}
	campaign.Status = to
	f.applyUpdates(campaign, updates)
	return nil
}

func (f *fakeCampaignRepo) applyUpdates(campaign *models.Campaign, updates map[string]any) {
	for column, value := range updates {
		switch column {
		case "started_at":
			if at, ok := value.(time.Time); ok {
				campaign.StartedAt = &at
			}
		case "completed_at":
			if at, ok := value.(time.Time); ok {
				campaign.CompletedAt = &at
			}
		case "sent_count":
			if n, ok := value.(int); ok {
				campaign.SentCount = n
			}
		case "failed_count":
			if n, ok := value.(int); ok {
				campaign.FailedCount = n
			}
		}
	}
}

func (f *fakeCampaignRepo) UpdateCounters(ctx context.Context, campaignID uint, sentCount, failedCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	campaign, ok := f.campaigns[campaignID]
	if !ok {
		return errors.New("campaign not found")
	}
	campaign.SentCount = sentCount
	campaign.FailedCount = failedCount
	f.counterUpdates = append(f.counterUpdates, counterUpdate{campaignID, sentCount, failedCount})
	return nil
}

func (f *fakeCampaignRepo) ApplyCounterDelta(ctx context.Context, campaignID uint, sentDelta, failedDelta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	campaign, ok := f.campaigns[campaignID]
	if !ok {
		return errors.New("campaign not found")
	}
	campaign.SentCount += sentDelta
	campaign.FailedCount += failedDelta
	f.counterDeltas = append(f.counterDeltas, counterUpdate{campaignID, sentDelta, failedDelta})
	return nil
}

func (f *fakeCampaignRepo) Update(ctx context.Context, campaign *models.Campaign) error {
	return f.Save(ctx, campaign)
}

func (f *fakeCampaignRepo) Delete(ctx context.Context, campaignID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.campaigns, campaignID)
	return nil
}

type fakeCommLogRepo struct {
	mu   sync.Mutex
	logs map[string]*models.CommunicationLog

	saveBatchErr     error
	saveBatchErrOnce bool
	markResultErrFor map[uint]error
	bulkFailed       [][]string
	deletedCampaigns []uint
}

func newFakeCommLogRepo() *fakeCommLogRepo {
	return &fakeCommLogRepo{logs: make(map[string]*models.CommunicationLog)}
}

func (f *fakeCommLogRepo) ByID(ctx context.Context, id uint) (*models.CommunicationLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, logEntry := range f.logs {
		if logEntry.ID == id {
			return logEntry, nil
		}
	}
	return nil, nil
}

func (f *fakeCommLogRepo) ByFilter(ctx context.Context, filter models.CommunicationLogFilter, orderBy string, limit, offset int) ([]*models.CommunicationLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.CommunicationLog, 0, len(f.logs))
	for _, logEntry := range f.logs {
		out = append(out, logEntry)
	}
	return out, nil
}

func (f *fakeCommLogRepo) Save(ctx context.Context, logEntry *models.CommunicationLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if logEntry.ID == 0 {
		logEntry.ID = uint(len(f.logs) + 1)
	}
	f.logs[logEntry.MessageID] = logEntry
	return nil
}

func (f *fakeCommLogRepo) SaveBatch(ctx context.Context, logs []*models.CommunicationLog) error {
	f.mu.Lock()
	if f.saveBatchErr != nil {
		err := f.saveBatchErr
		if f.saveBatchErrOnce {
			f.saveBatchErr = nil
		}
		f.mu.Unlock()
		return err
	}
	f.mu.Unlock()
	for _, logEntry := range logs {
		if err := f.Save(ctx, logEntry); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeCommLogRepo) Count(ctx context.Context, filter models.CommunicationLogFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.logs)), nil
}

func (f *fakeCommLogRepo) Exists(ctx context.Context, filter models.CommunicationLogFilter) (bool, error) {
	count, _ := f.Count(ctx, filter)
	return count > 0, nil
}

func (f *fakeCommLogRepo) ByMessageID(ctx context.Context, messageID string) (*models.CommunicationLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logs[messageID], nil
}

func (f *fakeCommLogRepo) ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.CommunicationLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.CommunicationLog
	for _, logEntry := range f.logs {
		if logEntry.CampaignID == campaignID {
			out = append(out, logEntry)
		}
	}
	return out, nil
}

func (f *fakeCommLogRepo) ListByCustomer(ctx context.Context, customerID uint, limit, offset int) ([]*models.CommunicationLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.CommunicationLog
	for _, logEntry := range f.logs {
		if logEntry.CustomerID == customerID {
			out = append(out, logEntry)
		}
	}
	return out, nil
}

func (f *fakeCommLogRepo) MarkDeliveryResult(ctx context.Context, messageID string, status models.DeliveryStatus, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	logEntry, ok := f.logs[messageID]
	if !ok {
		return errors.New("log not found")
	}
	if err, ok := f.markResultErrFor[logEntry.CustomerID]; ok {
		return err
	}
	logEntry.Status = status
	logEntry.StatusUpdatedAt = &at
	return nil
}

func (f *fakeCommLogRepo) BulkMarkFailed(ctx context.Context, messageIDs []string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkFailed = append(f.bulkFailed, messageIDs)
	for _, messageID := range messageIDs {
		if logEntry, ok := f.logs[messageID]; ok {
			logEntry.Status = models.DeliveryStatusFailed
			logEntry.StatusUpdatedAt = &at
		}
	}
	return nil
}

func (f *fakeCommLogRepo) UpdateStatusByMessageID(ctx context.Context, messageID string, status models.DeliveryStatus, at time.Time) (*repository.StatusTransition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	logEntry, ok := f.logs[messageID]
	if !ok {
		return nil, nil
	}
	transition := &repository.StatusTransition{
		LogID:      logEntry.ID,
		CampaignID: logEntry.CampaignID,
		Old:        logEntry.Status,
		New:        status,
	}
	logEntry.Status = status
	logEntry.StatusUpdatedAt = &at
	return transition, nil
}

func (f *fakeCommLogRepo) DeleteByCampaign(ctx context.Context, campaignID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedCampaigns = append(f.deletedCampaigns, campaignID)
	for messageID, logEntry := range f.logs {
		if logEntry.CampaignID == campaignID {
			delete(f.logs, messageID)
		}
	}
	return nil
}

type fakeSegmentRepo struct {
	mu       sync.Mutex
	segments map[uint]*models.Segment
	saveErr  error
}

func newFakeSegmentRepo(segments ...*models.Segment) *fakeSegmentRepo {
	repo := &fakeSegmentRepo{segments: make(map[uint]*models.Segment)}
	for _, segment := range segments {
		repo.segments[segment.ID] = segment
	}
	return repo
}

func (f *fakeSegmentRepo) ByID(ctx context.Context, id uint) (*models.Segment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.segments[id], nil
}

func (f *fakeSegmentRepo) ByFilter(ctx context.Context, filter models.SegmentFilter, orderBy string, limit, offset int) ([]*models.Segment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Segment, 0, len(f.segments))
	for _, segment := range f.segments {
		out = append(out, segment)
	}
	return out, nil
}

func (f *fakeSegmentRepo) Save(ctx context.Context, segment *models.Segment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if segment.ID == 0 {
		segment.ID = uint(len(f.segments) + 1)
	}
	f.segments[segment.ID] = segment
	return nil
}

func (f *fakeSegmentRepo) SaveBatch(ctx context.Context, segments []*models.Segment) error {
	for _, segment := range segments {
		if err := f.Save(ctx, segment); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeSegmentRepo) Count(ctx context.Context, filter models.SegmentFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.segments)), nil
}

func (f *fakeSegmentRepo) Exists(ctx context.Context, filter models.SegmentFilter) (bool, error) {
	count, _ := f.Count(ctx, filter)
	return count > 0, nil
}

func (f *fakeSegmentRepo) ByUUID(ctx context.Context, uuid string) (*models.Segment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, segment := range f.segments {
		if segment.UUID.String() == uuid {
			return segment, nil
		}
	}
	return nil, nil
}

func (f *fakeSegmentRepo) Update(ctx context.Context, segment *models.Segment) error {
	return f.Save(ctx, segment)
}

func (f *fakeSegmentRepo) Delete(ctx context.Context, segmentID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.segments, segmentID)
	return nil
}

type purchaseDelta struct {
	customerID     uint
	spend          float64
	stampsPurchase bool
}

type fakeCustomerRepo struct {
	mu        sync.Mutex
	customers map[uint]*models.Customer

	purchaseDeltas []purchaseDelta
}

func newFakeCustomerRepo(customers ...*models.Customer) *fakeCustomerRepo {
	repo := &fakeCustomerRepo{customers: make(map[uint]*models.Customer)}
	for _, customer := range customers {
		repo.customers[customer.ID] = customer
	}
	return repo
}

func (f *fakeCustomerRepo) ByID(ctx context.Context, id uint) (*models.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.customers[id], nil
}

func (f *fakeCustomerRepo) ByFilter(ctx context.Context, filter models.CustomerFilter, orderBy string, limit, offset int) ([]*models.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Customer, 0, len(f.customers))
	for _, customer := range f.customers {
		out = append(out, customer)
	}
	return out, nil
}

func (f *fakeCustomerRepo) Save(ctx context.Context, customer *models.Customer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if customer.ID == 0 {
		customer.ID = uint(len(f.customers) + 1)
	}
	f.customers[customer.ID] = customer
	return nil
}

func (f *fakeCustomerRepo) SaveBatch(ctx context.Context, customers []*models.Customer) error {
	for _, customer := range customers {
		if err := f.Save(ctx, customer); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeCustomerRepo) Count(ctx context.Context, filter models.CustomerFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.customers)), nil
}

func (f *fakeCustomerRepo) Exists(ctx context.Context, filter models.CustomerFilter) (bool, error) {
	count, _ := f.Count(ctx, filter)
	return count > 0, nil
}

func (f *fakeCustomerRepo) ByEmail(ctx context.Context, email string) (*models.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, customer := range f.customers {
		if customer.Email == email {
			return customer, nil
		}
	}
	return nil, nil
}

func (f *fakeCustomerRepo) ByUUID(ctx context.Context, uuid string) (*models.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, customer := range f.customers {
		if customer.UUID.String() == uuid {
			return customer, nil
		}
	}
	return nil, nil
}

func (f *fakeCustomerRepo) ListByRules(ctx context.Context, rules models.RuleTree, limit int) ([]*models.Customer, error) {
	return f.ByFilter(ctx, models.CustomerFilter{}, "", limit, 0)
}

func (f *fakeCustomerRepo) CountByRules(ctx context.Context, rules models.RuleTree) (int64, error) {
	return f.Count(ctx, models.CustomerFilter{})
}

func (f *fakeCustomerRepo) ApplyPurchaseDelta(ctx context.Context, customerID uint, spendDelta float64, lastPurchase *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	customer, ok := f.customers[customerID]
	if !ok {
		return errors.New("customer not found")
	}
	customer.TotalSpend += spendDelta
	if lastPurchase != nil {
		customer.VisitCount++
		customer.LastPurchase = lastPurchase
	}
	f.purchaseDeltas = append(f.purchaseDeltas, purchaseDelta{customerID, spendDelta, lastPurchase != nil})
	return nil
}

func (f *fakeCustomerRepo) Update(ctx context.Context, customer *models.Customer) error {
	return f.Save(ctx, customer)
}

func (f *fakeCustomerRepo) Delete(ctx context.Context, customerID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.customers, customerID)
	return nil
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[uint]*models.Order
}

func newFakeOrderRepo(orders ...*models.Order) *fakeOrderRepo {
	repo := &fakeOrderRepo{orders: make(map[uint]*models.Order)}
	for _, order := range orders {
		repo.orders[order.ID] = order
	}
	return repo
}

func (f *fakeOrderRepo) ByID(ctx context.Context, id uint) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id], nil
}

func (f *fakeOrderRepo) ByFilter(ctx context.Context, filter models.OrderFilter, orderBy string, limit, offset int) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Order
	for _, order := range f.orders {
		if filter.CustomerID != nil && order.CustomerID != *filter.CustomerID {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

func (f *fakeOrderRepo) Save(ctx context.Context, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if order.ID == 0 {
		order.ID = uint(len(f.orders) + 1)
	}
	f.orders[order.ID] = order
	return nil
}

func (f *fakeOrderRepo) SaveBatch(ctx context.Context, orders []*models.Order) error {
	for _, order := range orders {
		if err := f.Save(ctx, order); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeOrderRepo) Count(ctx context.Context, filter models.OrderFilter) (int64, error) {
	orders, _ := f.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(orders)), nil
}

func (f *fakeOrderRepo) Exists(ctx context.Context, filter models.OrderFilter) (bool, error) {
	count, _ := f.Count(ctx, filter)
	return count > 0, nil
}

func (f *fakeOrderRepo) ByUUID(ctx context.Context, uuid string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, order := range f.orders {
		if order.UUID.String() == uuid {
			return order, nil
		}
	}
	return nil, nil
}

func (f *fakeOrderRepo) ListByCustomer(ctx context.Context, customerID uint, limit, offset int) ([]*models.Order, error) {
	return f.ByFilter(ctx, models.OrderFilter{CustomerID: &customerID}, "", limit, offset)
}

func (f *fakeOrderRepo) Update(ctx context.Context, order *models.Order) error {
	return f.Save(ctx, order)
}

func (f *fakeOrderRepo) Delete(ctx context.Context, orderID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.orders, orderID)
	return nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (f *fakeAuditRepo) ByID(ctx context.Context, id uint) (*models.AuditLog, error) {
	return nil, nil
}

func (f *fakeAuditRepo) ByFilter(ctx context.Context, filter models.AuditLogFilter, orderBy string, limit, offset int) ([]*models.AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.AuditLog(nil), f.entries...), nil
}

func (f *fakeAuditRepo) Save(ctx context.Context, entry *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditRepo) SaveBatch(ctx context.Context, entries []*models.AuditLog) error {
	for _, entry := range entries {
		if err := f.Save(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeAuditRepo) Count(ctx context.Context, filter models.AuditLogFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.entries)), nil
}

func (f *fakeAuditRepo) Exists(ctx context.Context, filter models.AuditLogFilter) (bool, error) {
	count, _ := f.Count(ctx, filter)
	return count > 0, nil
}

func (f *fakeAuditRepo) ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.AuditLog
	for _, entry := range f.entries {
		if entry.Action == action {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fakeAuditRepo) ListFailedActions(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.AuditLog
	for _, entry := range f.entries {
		if entry.Success != nil && !*entry.Success {
			out = append(out, entry)
		}
	}
	return out, nil
}
