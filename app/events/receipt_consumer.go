package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/amirphl/Kitsune-CRM/app/dto"
	"github.com/redis/go-redis/v9"
)

// ReceiptConsumer subscribes to the provider's delivery receipt channel and
// feeds receipts through the batcher into the reconciliation flow. It is the
// asynchronous sibling of the receipt HTTP endpoint; both converge on
// DeliveryStatusFlow.ApplyReceipt.
type ReceiptConsumer struct {
	rc      *redis.Client
	channel string
	batcher *ReceiptBatcher
	logger  *log.Logger
}

// NewReceiptConsumer wires a consumer for the given channel around an
// existing batcher
func NewReceiptConsumer(rc *redis.Client, channel string, batcher *ReceiptBatcher, logger *log.Logger) *ReceiptConsumer {
	return &ReceiptConsumer{
		rc:      rc,
		channel: channel,
		batcher: batcher,
		logger:  logger,
	}
}

// Start subscribes and consumes until the context is cancelled. The returned
// stop function unsubscribes and flushes the batcher.
func (c *ReceiptConsumer) Start(ctx context.Context) func() {
	consumerCtx, cancel := context.WithCancel(ctx)
	sub := c.rc.Subscribe(consumerCtx, c.channel)

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-consumerCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				c.consume(consumerCtx, msg.Payload)
			}
		}
	}()

	return func() {
		cancel()
		_ = sub.Close()
		c.batcher.Close(context.Background())
	}
}

func (c *ReceiptConsumer) consume(ctx context.Context, payload string) {
	var receipt dto.DeliveryReceiptRequest
	if err := json.Unmarshal([]byte(payload), &receipt); err != nil {
		c.logger.Printf("malformed delivery receipt dropped: %v", err)
		return
	}
	if receipt.MessageID == "" {
		c.logger.Printf("delivery receipt without message id dropped")
		return
	}

	c.batcher.Push(ctx, receipt)
}
