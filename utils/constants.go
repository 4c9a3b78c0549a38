package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// AccessTokenTTLSeconds is the time-to-live for access tokens in seconds (86400 seconds = 24 hours)
	AccessTokenTTLSeconds = 86400

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Campaign delivery constants
const (
	// DefaultCampaignBatchSize is the number of recipients handled per send batch
	DefaultCampaignBatchSize = 50

	// DefaultBatchDelay is the pause between consecutive send batches
	DefaultBatchDelay = 2000 * time.Millisecond

	// ReceiptBatchSize is the number of buffered delivery receipts that forces a flush
	ReceiptBatchSize = 100

	// ReceiptFlushInterval is the maximum time a delivery receipt stays buffered
	ReceiptFlushInterval = 5 * time.Second

	// SegmentPreviewLimit is the number of sample customers returned by segment preview
	SegmentPreviewLimit = 10
)
