package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Campaign execution and delivery reconciliation metrics
var (
	campaignRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_campaign_runs_total",
		Help: "Campaign executions by terminal outcome",
	}, []string{"outcome"})

	campaignEmailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_campaign_emails_total",
		Help: "Emails processed by campaign runs, by provider decision",
	}, []string{"result"})

	campaignBatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crm_campaign_batches_total",
		Help: "Audience batches processed by campaign runs",
	})

	deliveryReceiptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_delivery_receipts_total",
		Help: "Delivery receipts applied, by resulting status",
	}, []string{"status"})
)
