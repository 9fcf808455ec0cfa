package saleservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockledger/internal/domain"
	apperror "stockledger/internal/errors"
	"stockledger/internal/pkg/logger"
)

// SaleRepository is the persistence contract of the ledger. Record, Update and Delete
// move stock in the same transaction as the sale row.
type SaleRepository interface {
	Record(ctx context.Context, ns domain.NewSale) (domain.Sale, error)
	Update(ctx context.Context, id int64, ns domain.NewSale) (domain.Sale, error)
	Delete(ctx context.Context, id int64) error
	FindByDateRange(ctx context.Context, start, end time.Time) ([]domain.SaleRecord, error)
	FindByProduct(ctx context.Context, productID int64) ([]domain.Sale, error)
	Summary(ctx context.Context, w domain.SalesWindow) (domain.SalesSummary, error)
}

// Service implements the ledger operations.
type Service struct {
	repo   SaleRepository
	logger logger.Logger
}

func NewService(repo SaleRepository, logger logger.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// normalize validates the request fields that do not need the product.
// The platform itself is checked against the product inside the transaction.
func normalize(ns domain.NewSale) (domain.NewSale, error) {
	if ns.Quantity <= 0 {
		return ns, apperror.NewValidationError("quantity must be positive")
	}
	if ns.SaleDate.IsZero() {
		return ns, apperror.NewValidationError("sale_date is required")
	}
	ns.Platform = domain.NormalizePlatform(string(ns.Platform))
	y, m, d := ns.SaleDate.Date()
	ns.SaleDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return ns, nil
}

// RecordSale records a sale and deducts its quantity from stock, returning the sale id.
func (s *Service) RecordSale(ctx context.Context, ns domain.NewSale) (int64, error) {
	ns, err := normalize(ns)
	if err != nil {
		s.logger.Debug("rejected sale", map[string]interface{}{"product_id": ns.ProductID, "reason": err.Error()})
		return 0, err
	}

	sale, err := s.repo.Record(ctx, ns)
	if err != nil {
		return 0, err
	}
	return sale.ID, nil
}

// UpdateSale replaces a sale and reconciles stock. It returns false when the sale does not exist.
func (s *Service) UpdateSale(ctx context.Context, id int64, ns domain.NewSale) (bool, error) {
	ns, err := normalize(ns)
	if err != nil {
		return false, err
	}

	_, err = s.repo.Update(ctx, id, ns)
	if errors.Is(err, domain.ErrSaleNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteSale removes a sale and restores its stock. It returns false when the sale does not exist.
func (s *Service) DeleteSale(ctx context.Context, id int64) (bool, error) {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, domain.ErrSaleNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) GetSalesByDateRange(ctx context.Context, start, end time.Time) ([]domain.SaleRecord, error) {
	if start.After(end) {
		return nil, apperror.NewValidationError(fmt.Sprintf("start_date %s is after end_date %s",
			start.Format(domain.DateLayout), end.Format(domain.DateLayout)))
	}
	return s.repo.FindByDateRange(ctx, start, end)
}

func (s *Service) GetSalesSummary(ctx context.Context, w domain.SalesWindow) (domain.SalesSummary, error) {
	if w.Start != nil && w.End != nil && w.Start.After(*w.End) {
		return domain.SalesSummary{}, apperror.NewValidationError(fmt.Sprintf("start_date %s is after end_date %s",
			w.Start.Format(domain.DateLayout), w.End.Format(domain.DateLayout)))
	}
	return s.repo.Summary(ctx, w)
}

func (s *Service) GetProductSalesHistory(ctx context.Context, productID int64) ([]domain.Sale, error) {
	return s.repo.FindByProduct(ctx, productID)
}
