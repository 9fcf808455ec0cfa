package productservice_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stockledger/internal/domain"
	apperror "stockledger/internal/errors"
	"stockledger/internal/pkg/logger"
	"stockledger/internal/service/productservice"
)

// MockProductRepository is a testify mock of productservice.ProductRepository.
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) Save(ctx context.Context, p domain.NewProduct) (domain.Product, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *MockProductRepository) FindByID(ctx context.Context, id int64) (domain.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *MockProductRepository) FindAll(ctx context.Context, filter domain.ProductFilter) ([]domain.ProductListing, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.ProductListing), args.Error(1)
}

func (m *MockProductRepository) Update(ctx context.Context, id int64, upd domain.ProductUpdate) (domain.Product, error) {
	args := m.Called(ctx, id, upd)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *MockProductRepository) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockProductRepository) InventorySummary(ctx context.Context) (domain.InventorySummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.InventorySummary), args.Error(1)
}

func newService() (*productservice.Service, *MockProductRepository) {
	repo := new(MockProductRepository)
	return productservice.NewService(repo, logger.NewNop()), repo
}

func widget() domain.NewProduct {
	return domain.NewProduct{
		Name:          "Widget",
		Price:         decimal.NewFromInt(10000),
		MarginNaver:   decimal.NewFromInt(10),
		MarginCoupang: decimal.NewFromInt(15),
		MarginSelf:    decimal.NewFromInt(20),
		Quantity:      50,
	}
}

func TestAddProduct_Success(t *testing.T) {
	svc, repo := newService()
	np := widget()
	repo.On("Save", mock.Anything, np).Return(domain.Product{ID: 7, Name: np.Name}, nil)

	id, err := svc.AddProduct(context.Background(), np)

	assert.NoError(t, err)
	assert.Equal(t, int64(7), id)
	repo.AssertExpectations(t)
}

func TestAddProduct_ValidationNeverReachesRepo(t *testing.T) {
	svc, repo := newService()
	np := widget()
	np.MarginSelf = decimal.NewFromInt(101)

	_, err := svc.AddProduct(context.Background(), np)

	var validation *apperror.ValidationError
	assert.True(t, errors.As(err, &validation))
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestGetProduct(t *testing.T) {
	svc, repo := newService()
	repo.On("FindByID", mock.Anything, int64(1)).Return(domain.Product{ID: 1, Name: "Widget"}, nil)
	repo.On("FindByID", mock.Anything, int64(2)).Return(domain.Product{}, apperror.NewNotFoundError("product 2 does not exist"))
	repo.On("FindByID", mock.Anything, int64(3)).Return(domain.Product{}, apperror.NewDBError("boom", errors.New("io")))

	p, found, err := svc.GetProduct(context.Background(), 1)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Widget", p.Name)

	_, found, err = svc.GetProduct(context.Background(), 2)
	assert.NoError(t, err)
	assert.False(t, found)

	_, found, err = svc.GetProduct(context.Background(), 3)
	assert.Error(t, err)
	assert.False(t, found)
}

func TestListProducts_PassesFilter(t *testing.T) {
	svc, repo := newService()
	filter := domain.ProductFilter{Search: "Wid", SortBy: domain.SortByValue}
	repo.On("FindAll", mock.Anything, filter).Return([]domain.ProductListing{{Product: domain.Product{ID: 1}}}, nil)

	got, err := svc.ListProducts(context.Background(), filter)

	assert.NoError(t, err)
	assert.Len(t, got, 1)
	repo.AssertExpectations(t)
}

func TestUpdateProduct(t *testing.T) {
	name := "Gadget"
	negative := -1

	tests := []struct {
		name      string
		upd       domain.ProductUpdate
		repoErr   error
		callsRepo bool
		want      bool
		wantErr   bool
	}{
		{name: "empty update", upd: domain.ProductUpdate{}, want: false},
		{name: "invalid field", upd: domain.ProductUpdate{Quantity: &negative}, wantErr: true},
		{name: "unknown id", upd: domain.ProductUpdate{Name: &name}, callsRepo: true, repoErr: apperror.NewNotFoundError("product 9 does not exist"), want: false},
		{name: "applied", upd: domain.ProductUpdate{Name: &name}, callsRepo: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newService()
			if tt.callsRepo {
				repo.On("Update", mock.Anything, int64(9), tt.upd).Return(domain.Product{ID: 9}, tt.repoErr)
			}

			ok, err := svc.UpdateProduct(context.Background(), 9, tt.upd)

			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.wantErr, err != nil)
			if !tt.callsRepo {
				repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestDeleteProduct(t *testing.T) {
	svc, repo := newService()
	repo.On("Delete", mock.Anything, int64(1)).Return(nil)
	repo.On("Delete", mock.Anything, int64(2)).Return(apperror.NewNotFoundError("product 2 does not exist"))

	ok, err := svc.DeleteProduct(context.Background(), 1)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.DeleteProduct(context.Background(), 2)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestBulkUpdateProducts_IndependentAndSorted(t *testing.T) {
	svc, repo := newService()
	name := "Renamed"
	badPrice := decimal.NewFromInt(-5)

	updates := map[int64]domain.ProductUpdate{
		30: {Name: &name},
		10: {Name: &name},
		20: {Price: &badPrice},
		40: {},
	}
	repo.On("Update", mock.Anything, int64(10), updates[10]).Return(domain.Product{ID: 10}, nil)
	repo.On("Update", mock.Anything, int64(30), updates[30]).Return(domain.Product{}, apperror.NewNotFoundError("product 30 does not exist"))

	results := svc.BulkUpdateProducts(context.Background(), updates)

	require.Len(t, results, 4)
	assert.Equal(t, domain.BulkUpdateResult{ID: 10, Success: true}, results[0])
	assert.Equal(t, int64(20), results[1].ID)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "price must be non-negative")
	assert.Equal(t, domain.BulkUpdateResult{ID: 30, Error: "product not found"}, results[2])
	assert.Equal(t, domain.BulkUpdateResult{ID: 40, Error: "no fields to update"}, results[3])
	repo.AssertExpectations(t)
}

func TestGetInventorySummary(t *testing.T) {
	svc, repo := newService()
	summary := domain.InventorySummary{TotalProducts: 2, ProductDetails: []domain.InventoryDetail{}}
	repo.On("InventorySummary", mock.Anything).Return(summary, nil)

	got, err := svc.GetInventorySummary(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, summary, got)
}
