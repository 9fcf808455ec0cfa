package sale

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"stockledger/internal/api/response"
	"stockledger/internal/domain"
	apperror "stockledger/internal/errors"
	"stockledger/internal/pkg/logger"
)

// SaleService is the ledger contract the handlers need.
type SaleService interface {
	RecordSale(ctx context.Context, ns domain.NewSale) (int64, error)
	UpdateSale(ctx context.Context, id int64, ns domain.NewSale) (bool, error)
	DeleteSale(ctx context.Context, id int64) (bool, error)
	GetSalesByDateRange(ctx context.Context, start, end time.Time) ([]domain.SaleRecord, error)
	GetSalesSummary(ctx context.Context, w domain.SalesWindow) (domain.SalesSummary, error)
}

// Handler groups the ledger endpoints.
type Handler struct {
	Service SaleService
	Logger  logger.Logger
	today   func() time.Time
}

func NewHandler(svc SaleService, log logger.Logger) *Handler {
	return &Handler{Service: svc, Logger: log, today: today}
}

func today() time.Time {
	y, m, d := time.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SaleRequest is the body of POST /v1/sales and PUT /v1/sales/{id}.
// An empty sale_date means today.
type SaleRequest struct {
	ProductID int64  `json:"product_id" example:"1"`
	SaleDate  string `json:"sale_date" example:"2024-01-15"`
	Quantity  int    `json:"quantity" example:"5"`
	Platform  string `json:"platform" example:"naver"`
}

// CreatedResponse carries the id of the recorded sale.
type CreatedResponse struct {
	ID int64 `json:"id" example:"1"`
}

func (h *Handler) decodeSale(r *http.Request) (domain.NewSale, error) {
	var req SaleRequest
	if err := response.Decode(r, &req); err != nil {
		return domain.NewSale{}, err
	}

	date := h.today()
	if req.SaleDate != "" {
		d, err := domain.ParseDate(req.SaleDate)
		if err != nil {
			return domain.NewSale{}, err
		}
		date = d
	}

	return domain.NewSale{
		ProductID: req.ProductID,
		SaleDate:  date,
		Quantity:  req.Quantity,
		Platform:  domain.Platform(req.Platform),
	}, nil
}

// ListSalesHandler handles GET /v1/sales. Both bounds default to today.
// @Summary Sales in a date range
// @Tags sales
// @Produce json
// @Param start_date query string false "YYYY-MM-DD, inclusive"
// @Param end_date query string false "YYYY-MM-DD, inclusive"
// @Success 200 {array} domain.SaleRecord
// @Failure 400 {object} domain.ErrorResponse
// @Router /sales [get]
func (h *Handler) ListSalesHandler(w http.ResponseWriter, r *http.Request) {
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

	from, to := h.today(), h.today()
	if start != nil {
		from = *start
	}
	if end != nil {
		to = *end
	}

	records, err := h.Service.GetSalesByDateRange(r.Context(), from, to)
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}
	response.JSON(w, http.StatusOK, records)
}

// RecordSaleHandler handles POST /v1/sales.
// @Summary Record a sale
// @Description Deducts the quantity from stock and fixes revenue and profit from the product's current price and platform margin.
// @Tags sales
// @Accept json
// @Produce json
// @Param sale body SaleRequest true "Sale"
// @Success 201 {object} CreatedResponse
// @Failure 400 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Failure 409 {object} domain.ErrorResponse "Insufficient stock"
// @Router /sales [post]
func (h *Handler) RecordSaleHandler(w http.ResponseWriter, r *http.Request) {
	ns, err := h.decodeSale(r)
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}

	id, err := h.Service.RecordSale(r.Context(), ns)
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}
	response.JSON(w, http.StatusCreated, CreatedResponse{ID: id})
}

// UpdateSaleHandler handles PUT /v1/sales/{id}.
// @Summary Replace a sale
// @Description Restores the previous deduction and applies the new one in one transaction.
// @Tags sales
// @Accept json
// @Param id path int true "Sale id"
// @Param sale body SaleRequest true "Sale"
// @Success 204
// @Failure 404 {object} domain.ErrorResponse
// @Failure 409 {object} domain.ErrorResponse
// @Router /sales/{id} [put]
func (h *Handler) UpdateSaleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := response.IDParam(r, "id")
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}
	ns, err := h.decodeSale(r)
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}

	ok, err := h.Service.UpdateSale(r.Context(), id, ns)
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}
	if !ok {
		response.Error(w, r, h.Logger, apperror.NewNotFoundError(fmt.Sprintf("sale %d does not exist", id)))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSaleHandler handles DELETE /v1/sales/{id}. The sold quantity goes back to stock.
// @Summary Delete a sale
// @Tags sales
// @Param id path int true "Sale id"
// @Success 204
// @Failure 404 {object} domain.ErrorResponse
// @Router /sales/{id} [delete]
func (h *Handler) DeleteSaleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := response.IDParam(r, "id")
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}

	ok, err := h.Service.DeleteSale(r.Context(), id)
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}
	if !ok {
		response.Error(w, r, h.Logger, apperror.NewNotFoundError(fmt.Sprintf("sale %d does not exist", id)))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SummaryHandler handles GET /v1/sales/summary. Each bound is optional.
// @Summary Sales totals, per-platform stats and best sellers
// @Tags sales
// @Produce json
// @Param start_date query string false "YYYY-MM-DD"
// @Param end_date query string false "YYYY-MM-DD"
// @Success 200 {object} domain.SalesSummary
// @Router /sales/summary [get]
func (h *Handler) SummaryHandler(w http.ResponseWriter, r *http.Request) {
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

	summary, err := h.Service.GetSalesSummary(r.Context(), domain.SalesWindow{Start: start, End: end})
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}
	response.JSON(w, http.StatusOK, summary)
}
