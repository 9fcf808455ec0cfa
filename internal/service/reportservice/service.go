package reportservice

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"stockledger/internal/domain"
)

type SalesSummarizer interface {
	GetSalesSummary(ctx context.Context, w domain.SalesWindow) (domain.SalesSummary, error)
}

type InventorySummarizer interface {
	GetInventorySummary(ctx context.Context) (domain.InventorySummary, error)
}

// Service builds period reports out of the ledger and catalog summaries.
type Service struct {
	sales     SalesSummarizer
	inventory InventorySummarizer
	today     func() time.Time
}

func NewService(sales SalesSummarizer, inventory InventorySummarizer) *Service {
	return &Service{sales: sales, inventory: inventory, today: today}
}

func today() time.Time {
	y, m, d := time.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Window resolves a period to its date bounds. Unknown periods are treated as custom;
// a custom window defaults to the last 7 days.
func (s *Service) Window(period domain.ReportPeriod, start, end *time.Time) (domain.ReportPeriod, time.Time, time.Time) {
	now := s.today()
	switch period {
	case domain.PeriodDay:
		return period, now, now
	case domain.PeriodWeek:
		return period, now.AddDate(0, 0, -7), now
	case domain.PeriodMonth:
		return period, now.AddDate(0, 0, -30), now
	}

	from, to := now.AddDate(0, 0, -7), now
	if start != nil {
		from = *start
	}
	if end != nil {
		to = *end
	}
	return domain.PeriodCustom, from, to
}

// BuildReport combines the sales summary of the resolved window with the inventory summary.
func (s *Service) BuildReport(ctx context.Context, period domain.ReportPeriod, start, end *time.Time) (domain.Report, error) {
	period, from, to := s.Window(period, start, end)

	var (
		sales     domain.SalesSummary
		inventory domain.InventorySummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sales, err = s.sales.GetSalesSummary(gctx, domain.SalesWindow{Start: &from, End: &to})
		return err
	})
	g.Go(func() error {
		var err error
		inventory, err = s.inventory.GetInventorySummary(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Report{}, err
	}

	return domain.Report{
		Period:    period,
		StartDate: from,
		EndDate:   to,
		Sales:     sales,
		Inventory: inventory,
	}, nil
}
