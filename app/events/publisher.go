// Package events carries asynchronous plumbing between the API, the mail
// provider and the delivery reconciler: a redis event publisher, the receipt
// pub/sub consumer and the receipt batcher in front of the reconciliation flow.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/amirphl/Kitsune-CRM/utils"
	"github.com/redis/go-redis/v9"
)

// Event channel names
const (
	SegmentCreatedChannel   = "events:segment:created"
	CampaignCreatedChannel  = "events:campaign:created"
	CampaignFinishedChannel = "events:campaign:finished"
)

// Event is the envelope published on every channel
type Event struct {
	Type       string    `json:"type"`
	EntityUUID string    `json:"entity_uuid"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher emits domain events for downstream consumers (dashboards,
// webhooks). Publishing is best-effort: a nil client or a redis outage only
// logs.
type Publisher struct {
	rc     *redis.Client
	logger *log.Logger
}

// NewPublisher creates a new event publisher. A nil redis client disables it.
func NewPublisher(rc *redis.Client, logger *log.Logger) *Publisher {
	return &Publisher{rc: rc, logger: logger}
}

// Publish emits one event on the given channel
func (p *Publisher) Publish(ctx context.Context, channel, eventType, entityUUID string) {
	if p == nil || p.rc == nil {
		return
	}

	payload, err := json.Marshal(Event{
		Type:       eventType,
		EntityUUID: entityUUID,
		OccurredAt: utils.UTCNow(),
	})
	if err != nil {
		p.logger.Printf("event marshal failed: %v", err)
		return
	}

	if err := p.rc.Publish(ctx, channel, payload).Err(); err != nil {
		p.logger.Printf("event publish on %s failed: %v", channel, err)
	}
}

// SegmentCreated announces a new segment
func (p *Publisher) SegmentCreated(ctx context.Context, segmentUUID string) {
	p.Publish(ctx, SegmentCreatedChannel, "segment.created", segmentUUID)
}

// CampaignCreated announces a new campaign
func (p *Publisher) CampaignCreated(ctx context.Context, campaignUUID string) {
	p.Publish(ctx, CampaignCreatedChannel, "campaign.created", campaignUUID)
}

// CampaignFinished announces a campaign run reaching a terminal state
func (p *Publisher) CampaignFinished(ctx context.Context, campaignUUID string) {
	p.Publish(ctx, CampaignFinishedChannel, "campaign.finished", campaignUUID)
}
