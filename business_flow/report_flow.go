package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/Kitsune-CRM/models"
	"github.com/amirphl/Kitsune-CRM/repository"
	"github.com/xuri/excelize/v2"
)

// ReportFlow exports campaign delivery data for offline analysis
type ReportFlow interface {
	// ExportCampaignDeliveryReport builds an Excel workbook of a campaign's
	// per-recipient delivery logs and returns (filename, content).
	ExportCampaignDeliveryReport(ctx context.Context, campaignUUID string) (string, []byte, error)
}

// ReportFlowImpl implements ReportFlow
type ReportFlowImpl struct {
	campaignRepo repository.CampaignRepository
	commLogRepo  repository.CommunicationLogRepository
	customerRepo repository.CustomerRepository
}

// NewReportFlow creates a new report flow
func NewReportFlow(
	campaignRepo repository.CampaignRepository,
	commLogRepo repository.CommunicationLogRepository,
	customerRepo repository.CustomerRepository,
) ReportFlow {
	return &ReportFlowImpl{
		campaignRepo: campaignRepo,
		commLogRepo:  commLogRepo,
		customerRepo: customerRepo,
	}
}

// ExportCampaignDeliveryReport builds the workbook: a summary sheet with the
// campaign totals and a deliveries sheet with one row per recipient
func (s *ReportFlowImpl) ExportCampaignDeliveryReport(ctx context.Context, campaignUUID string) (string, []byte, error) {
	campaign, err := s.campaignRepo.ByUUID(ctx, campaignUUID)
	if err != nil {
		return "", nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to look up campaign", err)
	}
	if campaign == nil {
		return "", nil, NewBusinessError("NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}

	logs, err := s.commLogRepo.ListByCampaign(ctx, campaign.ID, 0, 0)
	if err != nil {
		return "", nil, NewBusinessError("REPORT_EXPORT_FAILED", "Failed to load delivery logs", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	summarySheet := "Summary"
	xl.SetSheetName(xl.GetSheetName(0), summarySheet)

	segmentName := ""
	if campaign.Segment != nil {
		segmentName = campaign.Segment.Name
	}
	summaryRows := [][]any{
		{"campaign", campaign.Name},
		{"uuid", campaign.UUID.String()},
		{"segment", segmentName},
		{"status", campaign.Status.String()},
		{"audience_size", campaign.AudienceSize},
		{"sent_count", campaign.SentCount},
		{"failed_count", campaign.FailedCount},
	}
	if campaign.StartedAt != nil {
		summaryRows = append(summaryRows, []any{"started_at", campaign.StartedAt.Format("2006-01-02 15:04:05")})
	}
	if campaign.CompletedAt != nil {
		summaryRows = append(summaryRows, []any{"completed_at", campaign.CompletedAt.Format("2006-01-02 15:04:05")})
	}
	for i, row := range summaryRows {
		cellRef, _ := excelize.CoordinatesToCellName(1, i+1)
		_ = xl.SetSheetRow(summarySheet, cellRef, &row)
	}

	deliverySheet := "Deliveries"
	_, _ = xl.NewSheet(deliverySheet)

	header := []string{"message_id", "customer_id", "customer_email", "status", "status_updated_at", "created_at"}
	_ = xl.SetSheetRow(deliverySheet, "A1", &header)

	for i, logEntry := range logs {
		email := s.customerEmail(ctx, logEntry)
		statusUpdatedAt := ""
		if logEntry.StatusUpdatedAt != nil {
			statusUpdatedAt = logEntry.StatusUpdatedAt.Format("2006-01-02 15:04:05")
		}

		record := []any{
			logEntry.MessageID,
			logEntry.CustomerID,
			email,
			logEntry.Status.String(),
			statusUpdatedAt,
			logEntry.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = xl.SetSheetRow(deliverySheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	filename := fmt.Sprintf("campaign_%s_deliveries.xlsx", campaign.UUID)
	return filename, buf.Bytes(), nil
}

func (s *ReportFlowImpl) customerEmail(ctx context.Context, logEntry *models.CommunicationLog) string {
	if logEntry.Customer != nil {
		return logEntry.Customer.Email
	}
	customer, err := s.customerRepo.ByID(ctx, logEntry.CustomerID)
	if err != nil || customer == nil {
		return ""
	}
	return customer.Email
}
