package events

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/Kitsune-CRM/app/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type receiptRecorder struct {
	mu       sync.Mutex
	received []dto.DeliveryReceiptRequest
}

func (r *receiptRecorder) handle(ctx context.Context, receipt dto.DeliveryReceiptRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, receipt)
}

func (r *receiptRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.received)
}

func testReceipt(messageID string) dto.DeliveryReceiptRequest {
	return dto.DeliveryReceiptRequest{MessageID: messageID, Status: "SENT"}
}

func TestReceiptBatcher_FlushesOnSizeThreshold(t *testing.T) {
	recorder := &receiptRecorder{}
	batcher := NewReceiptBatcher(recorder.handle, 3, time.Minute, log.New(io.Discard, "", 0))

	ctx := context.Background()
	batcher.Push(ctx, testReceipt("m1"))
	batcher.Push(ctx, testReceipt("m2"))
	assert.Equal(t, 0, recorder.count())

	batcher.Push(ctx, testReceipt("m3"))
	assert.Equal(t, 3, recorder.count())

	// Next receipt starts a fresh batch.
	batcher.Push(ctx, testReceipt("m4"))
	assert.Equal(t, 3, recorder.count())
}

func TestReceiptBatcher_FlushesOnInterval(t *testing.T) {
	recorder := &receiptRecorder{}
	batcher := NewReceiptBatcher(recorder.handle, 100, 20*time.Millisecond, log.New(io.Discard, "", 0))

	batcher.Push(context.Background(), testReceipt("m1"))
	assert.Equal(t, 0, recorder.count())

	require.Eventually(t, func() bool {
		return recorder.count() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestReceiptBatcher_ManualFlush(t *testing.T) {
	recorder := &receiptRecorder{}
	batcher := NewReceiptBatcher(recorder.handle, 100, time.Minute, log.New(io.Discard, "", 0))

	ctx := context.Background()
	batcher.Push(ctx, testReceipt("m1"))
	batcher.Push(ctx, testReceipt("m2"))
	batcher.Flush(ctx)

	assert.Equal(t, 2, recorder.count())

	// Flushing an empty buffer is a no-op.
	batcher.Flush(ctx)
	assert.Equal(t, 2, recorder.count())
}

func TestReceiptBatcher_CloseFlushesAndRejects(t *testing.T) {
	recorder := &receiptRecorder{}
	batcher := NewReceiptBatcher(recorder.handle, 100, time.Minute, log.New(io.Discard, "", 0))

	ctx := context.Background()
	batcher.Push(ctx, testReceipt("m1"))
	batcher.Close(ctx)
	assert.Equal(t, 1, recorder.count())

	batcher.Push(ctx, testReceipt("m2"))
	batcher.Flush(ctx)
	assert.Equal(t, 1, recorder.count())
}

func TestReceiptBatcher_SizeFlushCancelsTimer(t *testing.T) {
	recorder := &receiptRecorder{}
	batcher := NewReceiptBatcher(recorder.handle, 2, 20*time.Millisecond, log.New(io.Discard, "", 0))

	ctx := context.Background()
	batcher.Push(ctx, testReceipt("m1"))
	batcher.Push(ctx, testReceipt("m2"))
	assert.Equal(t, 2, recorder.count())

	// No stray timer flush after the size-triggered one.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, recorder.count())
}
