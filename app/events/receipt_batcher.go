package events

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/amirphl/Kitsune-CRM/app/dto"
)

// ReceiptHandler applies one delivery receipt. The batcher calls it once per
// receipt so partial failures inside a batch don't discard the rest.
type ReceiptHandler func(ctx context.Context, receipt dto.DeliveryReceiptRequest)

// ReceiptBatcher buffers delivery receipts and flushes them when the buffer
// fills or the flush interval elapses, whichever comes first. Providers burst
// receipts after campaign runs, so batching keeps reconciliation from issuing
// one transaction per HTTP callback under load.
type ReceiptBatcher struct {
	handler       ReceiptHandler
	batchSize     int
	flushInterval time.Duration
	logger        *log.Logger

	mu      sync.Mutex
	pending []dto.DeliveryReceiptRequest
	timer   *time.Timer
	closed  bool
}

// NewReceiptBatcher creates a batcher. batchSize and flushInterval must be
// positive.
func NewReceiptBatcher(handler ReceiptHandler, batchSize int, flushInterval time.Duration, logger *log.Logger) *ReceiptBatcher {
	return &ReceiptBatcher{
		handler:       handler,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
	}
}

// Push buffers one receipt. The batch flushes inline when it reaches the size
// threshold; otherwise a timer covers the interval threshold.
func (b *ReceiptBatcher) Push(ctx context.Context, receipt dto.DeliveryReceiptRequest) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}

	b.pending = append(b.pending, receipt)

	if len(b.pending) >= b.batchSize {
		batch := b.takeLocked()
		b.mu.Unlock()
		b.apply(ctx, batch)
		return
	}

	if b.timer == nil {
		b.timer = time.AfterFunc(b.flushInterval, func() {
			b.Flush(context.Background())
		})
	}
	b.mu.Unlock()
}

// Flush applies everything currently buffered
func (b *ReceiptBatcher) Flush(ctx context.Context) {
	b.mu.Lock()
	batch := b.takeLocked()
	b.mu.Unlock()

	b.apply(ctx, batch)
}

// Close flushes the remaining receipts and rejects further pushes
func (b *ReceiptBatcher) Close(ctx context.Context) {
	b.mu.Lock()
	b.closed = true
	batch := b.takeLocked()
	b.mu.Unlock()

	b.apply(ctx, batch)
}

// takeLocked drains the buffer and stops the pending timer. Callers hold b.mu.
func (b *ReceiptBatcher) takeLocked() []dto.DeliveryReceiptRequest {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	batch := b.pending
	b.pending = nil
	return batch
}

func (b *ReceiptBatcher) apply(ctx context.Context, batch []dto.DeliveryReceiptRequest) {
	if len(batch) == 0 {
		return
	}

	b.logger.Printf("flushing %d delivery receipt(s)", len(batch))
	for _, receipt := range batch {
		b.handler(ctx, receipt)
	}
}
