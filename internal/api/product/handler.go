package product

import (
	"context"
	"fmt"
	"net/http"

	"stockledger/internal/api/response"
	"stockledger/internal/domain"
	apperror "stockledger/internal/errors"
	"stockledger/internal/pkg/logger"
	"stockledger/internal/pkg/middleware"
)

// ProductService is the catalog contract the handlers need.
type ProductService interface {
	AddProduct(ctx context.Context, np domain.NewProduct) (int64, error)
	GetProduct(ctx context.Context, id int64) (domain.Product, bool, error)
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.ProductListing, error)
	UpdateProduct(ctx context.Context, id int64, upd domain.ProductUpdate) (bool, error)
	DeleteProduct(ctx context.Context, id int64) (bool, error)
	BulkUpdateProducts(ctx context.Context, updates map[int64]domain.ProductUpdate) []domain.BulkUpdateResult
	GetInventorySummary(ctx context.Context) (domain.InventorySummary, error)
}

// SalesHistory lists the sales of one product.
type SalesHistory interface {
	GetProductSalesHistory(ctx context.Context, productID int64) ([]domain.Sale, error)
}

// Handler groups the catalog endpoints.
type Handler struct {
	Service ProductService
	Sales   SalesHistory
	Logger  logger.Logger
}

func NewHandler(svc ProductService, sales SalesHistory, log logger.Logger) *Handler {
	return &Handler{Service: svc, Sales: sales, Logger: log}
}

// CreatedResponse carries the id of a new resource.
type CreatedResponse struct {
	ID int64 `json:"id" example:"1"`
}

// BulkUpdateResponse is the envelope of the bulk update endpoint.
type BulkUpdateResponse struct {
	Success bool                      `json:"success"`
	Result  []domain.BulkUpdateResult `json:"result,omitempty"`
	Error   string                    `json:"error,omitempty"`
}

// ListProductsHandler handles GET /v1/products.
// @Summary List products
// @Tags products
// @Produce json
// @Param search query string false "Substring of the product name"
// @Param sort query string false "name, price, quantity or value"
// @Success 200 {array} domain.ProductListing
// @Failure 401 {object} domain.ErrorResponse
// @Router /products [get]
func (h *Handler) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ProductFilter{Search: q.Get("search"), SortBy: q.Get("sort")}

	products, err := h.Service.ListProducts(r.Context(), filter)
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}
	response.JSON(w, http.StatusOK, products)
}

// CreateProductHandler handles POST /v1/products.
// @Summary Create a product
// @Tags products
// @Accept json
// @Produce json
// @Param product body domain.NewProduct true "New product"
// @Success 201 {object} CreatedResponse
// @Failure 400 {object} domain.ErrorResponse
// @Router /products [post]
func (h *Handler) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	var np domain.NewProduct
	if err := response.Decode(r, &np); err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}

	id, err := h.Service.AddProduct(r.Context(), np)
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}

	if claims, ok := middleware.GetUserClaimsFromContext(r.Context()); ok {
		h.Logger.Info("product created", map[string]interface{}{"product_id": id, "user_id": claims.UserID})
	}
	response.JSON(w, http.StatusCreated, CreatedResponse{ID: id})
}

// GetProductHandler handles GET /v1/products/{id}.
// @Summary Get a product
// @Tags products
// @Produce json
// @Param id path int true "Product id"
// @Success 200 {object} domain.Product
// @Failure 404 {object} domain.ErrorResponse
// @Router /products/{id} [get]
func (h *Handler) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := response.IDParam(r, "id")
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}

	product, found, err := h.Service.GetProduct(r.Context(), id)
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}
	if !found {
		response.Error(w, r, h.Logger, apperror.NewNotFoundError(fmt.Sprintf("product %d does not exist", id)))
		return
	}
	response.JSON(w, http.StatusOK, product)
}

// UpdateProductHandler handles PATCH /v1/products/{id}. Only the fields present in the body change.
// @Summary Partially update a product
// @Tags products
// @Accept json
// @Produce json
// @Param id path int true "Product id"
// @Param update body domain.ProductUpdate true "Fields to change"
// @Success 200 {object} domain.Product
// @Failure 400 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Router /products/{id} [patch]
func (h *Handler) UpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := response.IDParam(r, "id")
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}

	var upd domain.ProductUpdate
	if err := response.Decode(r, &upd); err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}
	if upd.IsEmpty() {
		response.Error(w, r, h.Logger, apperror.NewValidationError("no fields to update"))
		return
	}

	ok, err := h.Service.UpdateProduct(r.Context(), id, upd)
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}
	if !ok {
		response.Error(w, r, h.Logger, apperror.NewNotFoundError(fmt.Sprintf("product %d does not exist", id)))
		return
	}

	product, _, err := h.Service.GetProduct(r.Context(), id)
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}
	response.JSON(w, http.StatusOK, product)
}

// DeleteProductHandler handles DELETE /v1/products/{id}. Sales of the product are kept.
// @Summary Delete a product
// @Tags products
// @Param id path int true "Product id"
// @Success 204
// @Failure 404 {object} domain.ErrorResponse
// @Router /products/{id} [delete]
func (h *Handler) DeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := response.IDParam(r, "id")
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}

	ok, err := h.Service.DeleteProduct(r.Context(), id)
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}
	if !ok {
		response.Error(w, r, h.Logger, apperror.NewNotFoundError(fmt.Sprintf("product %d does not exist", id)))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkUpdateHandler handles POST /v1/products/bulk-update. The body maps product ids to
// partial updates; each entry is applied on its own.
// @Summary Update several products
// @Tags products
// @Accept json
// @Produce json
// @Param updates body map[string]domain.ProductUpdate true "Product id to fields"
// @Success 200 {object} BulkUpdateResponse
// @Failure 400 {object} BulkUpdateResponse
// @Router /products/bulk-update [post]
func (h *Handler) BulkUpdateHandler(w http.ResponseWriter, r *http.Request) {
	var updates map[int64]domain.ProductUpdate
	if err := response.Decode(r, &updates); err != nil {
		response.JSON(w, http.StatusBadRequest, BulkUpdateResponse{Error: err.Error()})
		return
	}
	if len(updates) == 0 {
		response.JSON(w, http.StatusBadRequest, BulkUpdateResponse{Error: "no updates supplied"})
		return
	}

	results := h.Service.BulkUpdateProducts(r.Context(), updates)
	response.JSON(w, http.StatusOK, BulkUpdateResponse{Success: true, Result: results})
}

// SalesHistoryHandler handles GET /v1/products/{id}/sales.
// @Summary Sales of a product
// @Tags products
// @Produce json
// @Param id path int true "Product id"
// @Success 200 {array} domain.Sale
// @Router /products/{id}/sales [get]
func (h *Handler) SalesHistoryHandler(w http.ResponseWriter, r *http.Request) {
	id, err := response.IDParam(r, "id")
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}

	sales, err := h.Sales.GetProductSalesHistory(r.Context(), id)
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}
	response.JSON(w, http.StatusOK, sales)
}

// InventorySummaryHandler handles GET /v1/inventory/summary.
// @Summary Inventory snapshot
// @Tags inventory
// @Produce json
// @Success 200 {object} domain.InventorySummary
// @Router /inventory/summary [get]
func (h *Handler) InventorySummaryHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.GetInventorySummary(r.Context())
	if err != nil {
		response.Error(w, r, h.Logger, err)
		return
	}
	response.JSON(w, http.StatusOK, summary)
}
