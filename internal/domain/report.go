package domain

import (
	"encoding/json"
	"time"
)

// ReportPeriod selects the sales window of a report.
type ReportPeriod string

const (
	PeriodDay    ReportPeriod = "day"
	PeriodWeek   ReportPeriod = "week"
	PeriodMonth  ReportPeriod = "month"
	PeriodCustom ReportPeriod = "custom"
)

// Report combines the sales of a window with the current inventory.
type Report struct {
	Period    ReportPeriod     `json:"period"`
	StartDate time.Time        `json:"start_date"`
	EndDate   time.Time        `json:"end_date"`
	Sales     SalesSummary     `json:"sales_summary"`
	Inventory InventorySummary `json:"inventory_summary"`
}

type reportFields Report

func (r Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		reportFields
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}{reportFields(r), r.StartDate.Format(DateLayout), r.EndDate.Format(DateLayout)})
}
