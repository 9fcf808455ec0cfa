package report

import (
	"context"
	"net/http"
	"time"

	"stockledger/internal/api/response"
	"stockledger/internal/domain"
	"stockledger/internal/pkg/logger"
)

type ReportService interface {
	BuildReport(ctx context.Context, period domain.ReportPeriod, start, end *time.Time) (domain.Report, error)
}

type Handler struct {
	Service ReportService
	Logger  logger.Logger
}

func NewHandler(svc ReportService, log logger.Logger) *Handler {
	return &Handler{Service: svc, Logger: log}
}

// ReportHandler handles GET /v1/reports.
// @Summary Sales and inventory report
// @Description day is today, week the last 7 days, month the last 30 days. custom uses start_date and end_date, each defaulting to the week bounds.
// @Tags reports
// @Produce json
// @Param period query string false "day, week, month or custom" default(week)
// @Param start_date query string false "YYYY-MM-DD, custom only"
// @Param end_date query string false "YYYY-MM-DD, custom only"
// @Success 200 {object} domain.Report
// @Failure 400 {object} domain.ErrorResponse
// @Router /reports [get]
func (h *Handler) ReportHandler(w http.ResponseWriter, r *http.Request) {
	period := domain.ReportPeriod(r.URL.Query().Get("period"))
	if period == "" {
		period = domain.PeriodWeek
	}

	start, err := response.DateQuery(r, "start_date")
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}
	end, err := response.DateQuery(r, "end_date")
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}

	report, err := h.Service.BuildReport(r.Context(), period, start, end)
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}
	response.JSON(w, http.StatusOK, report)
}
