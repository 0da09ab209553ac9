package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ReportPublisher writes a table to a named tab, replacing any previous contents
type ReportPublisher interface {
	PublishTable(spreadsheetID, tabTitle string, header []string, rows [][]interface{}) error
}

// CampReport is the tabular form of the camp dashboard
type CampReport struct {
	TabTitle string
	Header   []string
	Rows     [][]interface{}
}

var campReportHeader = []string{
	"Date", "Start", "Camp", "Location", "Status", "Max donors", "Registered",
	"Attended", "Donations", "Attendance %", "Utilization %", "Score", "Urgency",
}

// BuildCampReport builds one row per camp whose attendance can still be managed
func BuildCampReport(ctx context.Context, catalog *CampCatalog, views *StatisticsViews, logger *zap.Logger) (*CampReport, error) {
	camps, err := catalog.ListAttendanceEligible(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list camps for report: %w", err)
	}

	report := &CampReport{
		TabTitle: "Camp report " + dateOf(views.now()).Format(dateLayout),
		Header:   campReportHeader,
		Rows:     make([][]interface{}, 0, len(camps)),
	}

	for i := range camps {
		p, err := views.performance(ctx, &camps[i])
		if err != nil {
			return nil, err
		}
		report.Rows = append(report.Rows, []interface{}{
			p.Camp.Date.Format("Mon Jan 02 2006"),
			p.Camp.StartTime,
			p.Camp.Name,
			p.Camp.Location,
			string(p.Status),
			p.Camp.MaxDonors,
			p.RegisteredCount,
			p.AttendeeCount,
			p.DonationCount,
			p.AttendanceRate,
			p.CapacityUtilization,
			p.Score,
			string(p.Urgency),
		})
	}

	logger.Debug("Built camp report", zap.String("tab", report.TabTitle), zap.Int("rows", len(report.Rows)))
	return report, nil
}

// PublishCampReport builds the camp report and writes it to the report spreadsheet
func PublishCampReport(
	ctx context.Context,
	catalog *CampCatalog,
	views *StatisticsViews,
	publisher ReportPublisher,
	spreadsheetID string,
	logger *zap.Logger,
) (*CampReport, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("report spreadsheet ID is not configured")
	}

	start := time.Now()
	report, err := BuildCampReport(ctx, catalog, views, logger)
	if err != nil {
		return nil, err
	}

	if err := publisher.PublishTable(spreadsheetID, report.TabTitle, report.Header, report.Rows); err != nil {
		return nil, fmt.Errorf("failed to publish camp report: %w", err)
	}

	logger.Info("Camp report published",
		zap.String("tab", report.TabTitle),
		zap.Int("rows", len(report.Rows)),
		zap.Duration("elapsed", time.Since(start)))
	return report, nil
}
