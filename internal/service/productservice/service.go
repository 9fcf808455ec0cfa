package productservice

import (
	"context"
	"sort"

	"stockledger/internal/domain"
	apperror "stockledger/internal/errors"
	"stockledger/internal/pkg/logger"
)

// ProductRepository is the persistence contract the catalog needs.
type ProductRepository interface {
	Save(ctx context.Context, product domain.NewProduct) (domain.Product, error)
	FindByID(ctx context.Context, id int64) (domain.Product, error)
	FindAll(ctx context.Context, filter domain.ProductFilter) ([]domain.ProductListing, error)
	Update(ctx context.Context, id int64, upd domain.ProductUpdate) (domain.Product, error)
	Delete(ctx context.Context, id int64) error
	InventorySummary(ctx context.Context) (domain.InventorySummary, error)
}

// Service implements the catalog operations.
type Service struct {
	repo   ProductRepository
	logger logger.Logger
}

func NewService(repo ProductRepository, logger logger.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// AddProduct validates and stores a new product, returning its id.
func (s *Service) AddProduct(ctx context.Context, np domain.NewProduct) (int64, error) {
	if err := np.Validate(); err != nil {
		s.logger.Debug("rejected product", map[string]interface{}{"name": np.Name, "reason": err.Error()})
		return 0, err
	}

	product, err := s.repo.Save(ctx, np)
	if err != nil {
		return 0, err
	}
	return product.ID, nil
}

// GetProduct returns found=false, without error, when the product does not exist.
func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, bool, error) {
	product, err := s.repo.FindByID(ctx, id)
	if apperror.IsNotFound(err) {
		return domain.Product{}, false, nil
	}
	if err != nil {
		return domain.Product{}, false, err
	}
	return product, true, nil
}

func (s *Service) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.ProductListing, error) {
	return s.repo.FindAll(ctx, filter)
}

// UpdateProduct applies a partial update. It returns false when nothing was set or the
// product does not exist. Every set field is validated before anything is written.
func (s *Service) UpdateProduct(ctx context.Context, id int64, upd domain.ProductUpdate) (bool, error) {
	if upd.IsEmpty() {
		return false, nil
	}
	if err := upd.Validate(); err != nil {
		return false, err
	}

	_, err := s.repo.Update(ctx, id, upd)
	if apperror.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteProduct removes a product. Its sales stay in the ledger.
func (s *Service) DeleteProduct(ctx context.Context, id int64) (bool, error) {
	err := s.repo.Delete(ctx, id)
	if apperror.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// BulkUpdateProducts applies each update on its own; one failure does not stop the others.
// Results are ordered by product id.
func (s *Service) BulkUpdateProducts(ctx context.Context, updates map[int64]domain.ProductUpdate) []domain.BulkUpdateResult {
	ids := make([]int64, 0, len(updates))
	for id := range updates {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	results := make([]domain.BulkUpdateResult, 0, len(ids))
	for _, id := range ids {
		upd := updates[id]
		result := domain.BulkUpdateResult{ID: id}

		ok, err := s.UpdateProduct(ctx, id, upd)
		switch {
		case err != nil:
			_, _, result.Error = apperror.MapToHTTPStatus(err)
		case !ok && upd.IsEmpty():
			result.Error = "no fields to update"
		case !ok:
			result.Error = "product not found"
		default:
			result.Success = true
		}
		results = append(results, result)
	}

	s.logger.Info("bulk update finished", map[string]interface{}{"entries": len(results)})
	return results
}

func (s *Service) GetInventorySummary(ctx context.Context) (domain.InventorySummary, error) {
	return s.repo.InventorySummary(ctx)
}
