package productrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"stockledger/internal/domain"
	apperror "stockledger/internal/errors"
	"stockledger/internal/pkg/cache"
	"stockledger/internal/pkg/database"
	"stockledger/internal/pkg/logger"
)

// ProductColumns is the column list every product SELECT scans, in ScanProduct order.
const ProductColumns = `id, name, options, price, margin_naver, margin_coupang, margin_self, quantity, created_at, updated_at`

var sortColumns = map[string]string{
	domain.SortByName:     "name ASC, id ASC",
	domain.SortByPrice:    "price ASC, id ASC",
	domain.SortByQuantity: "quantity ASC, id ASC",
	domain.SortByValue:    "(price * quantity) ASC, id ASC",
}

// ProductRepository persists the catalog. Single-product reads go through the cache.
type ProductRepository struct {
	db       *database.Gateway
	cache    cache.Client
	cacheTTL time.Duration
	logger   logger.Logger
	tracer   trace.Tracer
}

func NewProductRepository(db *database.Gateway, cacheClient cache.Client, cacheTTL time.Duration, log logger.Logger) *ProductRepository {
	return &ProductRepository{
		db:       db,
		cache:    cacheClient,
		cacheTTL: cacheTTL,
		logger:   log,
		tracer:   otel.Tracer("repository/productrepo"),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// ScanProduct reads one row selected with ProductColumns.
func ScanProduct(row rowScanner) (domain.Product, error) {
	var (
		p       domain.Product
		options sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.Name, &options, &p.Price,
		&p.MarginNaver, &p.MarginCoupang, &p.MarginSelf,
		&p.Quantity, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Product{}, err
	}
	if options.Valid {
		p.Options = &options.String
	}
	return p, nil
}

// Now is the timestamp written to created_at / updated_at.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Save inserts a product and returns it with its generated id.
func (r *ProductRepository) Save(ctx context.Context, np domain.NewProduct) (domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Save")
	defer span.End()

	now := Now()
	product := domain.Product{
		Name:          np.Name,
		Options:       np.Options,
		Price:         np.Price,
		MarginNaver:   np.MarginNaver,
		MarginCoupang: np.MarginCoupang,
		MarginSelf:    np.MarginSelf,
		Quantity:      np.Quantity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	const query = `
		INSERT INTO products (name, options, price, margin_naver, margin_coupang, margin_self, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err := r.db.WithConn(ctx, func(ctx context.Context, q database.Querier) error {
		return q.QueryRowContext(ctx, query,
			product.Name, product.Options, product.Price,
			product.MarginNaver, product.MarginCoupang, product.MarginSelf,
			product.Quantity, product.CreatedAt, product.UpdatedAt,
		).Scan(&product.ID)
	})
	if err != nil {
		span.RecordError(err)
		r.logger.Error("failed to insert product", err)
		return domain.Product{}, apperror.NewDBError("failed to insert product", err)
	}

	span.SetAttributes(attribute.Int64("product.id", product.ID))
	r.logger.Info("product created", map[string]interface{}{"product_id": product.ID, "name": product.Name})
	return product, nil
}

// FindByID loads a product, cache-aside. Entries are keyed by the product's cache
// generation, so a row read before an invalidation is never served after it.
func (r *ProductRepository) FindByID(ctx context.Context, id int64) (domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.FindByID")
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", id))

	var product domain.Product

	key := ""
	version, err := cache.ProductVersion(ctx, r.cache, id)
	if err != nil {
		r.logger.Warn("cache read failed", map[string]interface{}{"product_id": id, "error": err.Error()})
	} else {
		key = cache.ProductKey(id, version)
		cached, err := r.cache.Get(ctx, key)
		if err == nil {
			if json.Unmarshal([]byte(cached), &product) == nil {
				return product, nil
			}
			r.logger.Warn("discarding unreadable cached product", map[string]interface{}{"key": key})
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}

	query := `SELECT ` + ProductColumns + ` FROM products WHERE id = $1`
	err = r.db.WithConn(ctx, func(ctx context.Context, q database.Querier) error {
		var scanErr error
		product, scanErr = ScanProduct(q.QueryRowContext(ctx, query, id))
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, apperror.NewNotFoundError(fmt.Sprintf("product %d does not exist", id))
	}
	if err != nil {
		span.RecordError(err)
		r.logger.Error("failed to load product", err)
		return domain.Product{}, apperror.NewDBError("failed to load product", err)
	}

	if key == "" {
		return product, nil
	}
	if payload, marshalErr := json.Marshal(product); marshalErr == nil {
		if setErr := r.cache.Set(ctx, key, payload, r.cacheTTL); setErr != nil {
			r.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": setErr.Error()})
		}
	}

	return product, nil
}

// FindAll lists products filtered by name substring and sorted by the requested key.
func (r *ProductRepository) FindAll(ctx context.Context, filter domain.ProductFilter) ([]domain.ProductListing, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.FindAll")
	defer span.End()

	order, ok := sortColumns[filter.SortBy]
	if !ok {
		order = sortColumns[domain.SortByName]
	}

	var (
		where string
		args  []any
	)
	if filter.Search != "" {
		where = " WHERE " + r.db.Dialect().Contains("name", "$1")
		args = append(args, filter.Search)
	}

	query := `SELECT ` + ProductColumns + ` FROM products` + where + ` ORDER BY ` + order

	listings := make([]domain.ProductListing, 0)
	err := r.db.WithConn(ctx, func(ctx context.Context, q database.Querier) error {
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			p, err := ScanProduct(rows)
			if err != nil {
				return err
			}
			listings = append(listings, domain.ProductListing{Product: p, Value: p.Value()})
		}
		return rows.Err()
	})
	if err != nil {
		span.RecordError(err)
		r.logger.Error("failed to list products", err)
		return nil, apperror.NewDBError("failed to list products", err)
	}

	return listings, nil
}

// Update writes the set fields of upd and returns the refreshed product.
// The caller validates upd; an empty update still refreshes updated_at.
func (r *ProductRepository) Update(ctx context.Context, id int64, upd domain.ProductUpdate) (domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Update")
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", id))

	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Name != nil {
		set("name", *upd.Name)
	}
	if upd.Options != nil {
		set("options", *upd.Options)
	}
	if upd.Price != nil {
		set("price", *upd.Price)
	}
	if upd.MarginNaver != nil {
		set("margin_naver", *upd.MarginNaver)
	}
	if upd.MarginCoupang != nil {
		set("margin_coupang", *upd.MarginCoupang)
	}
	if upd.MarginSelf != nil {
		set("margin_self", *upd.MarginSelf)
	}
	if upd.Quantity != nil {
		set("quantity", *upd.Quantity)
	}
	set("updated_at", Now())

	args = append(args, id)
	update := fmt.Sprintf("UPDATE products SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	selectQuery := `SELECT ` + ProductColumns + ` FROM products WHERE id = $1`

	var product domain.Product
	err := r.db.WithTx(ctx, func(ctx context.Context, q database.Querier) error {
		res, err := q.ExecContext(ctx, update, args...)
		if err != nil {
			return apperror.NewDBError("failed to update product", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return apperror.NewDBError("failed to read affected rows", err)
		}
		if n == 0 {
			return apperror.NewNotFoundError(fmt.Sprintf("product %d does not exist", id))
		}

		product, err = ScanProduct(q.QueryRowContext(ctx, selectQuery, id))
		if err != nil {
			return apperror.NewDBError("failed to reload product", err)
		}
		return nil
	})
	if err != nil {
		if !apperror.IsNotFound(err) {
			span.RecordError(err)
			r.logger.Error("product update failed", err)
		}
		return domain.Product{}, err
	}

	r.Invalidate(ctx, id)
	r.logger.Info("product updated", map[string]interface{}{"product_id": id, "fields": len(sets) - 1})
	return product, nil
}

// Delete removes a product. Its sales are left in place.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Delete")
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", id))

	var affected int64
	err := r.db.WithConn(ctx, func(ctx context.Context, q database.Querier) error {
		res, err := q.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		span.RecordError(err)
		r.logger.Error("failed to delete product", err)
		return apperror.NewDBError("failed to delete product", err)
	}
	if affected == 0 {
		return apperror.NewNotFoundError(fmt.Sprintf("product %d does not exist", id))
	}

	r.Invalidate(ctx, id)
	r.logger.Info("product deleted", map[string]interface{}{"product_id": id})
	return nil
}

// Invalidate retires every cached copy of a product.
func (r *ProductRepository) Invalidate(ctx context.Context, id int64) {
	if err := cache.InvalidateProduct(ctx, r.cache, id); err != nil {
		r.logger.Warn("cache invalidation failed", map[string]interface{}{"product_id": id, "error": err.Error()})
	}
}

// InventorySummary aggregates the catalog.
func (r *ProductRepository) InventorySummary(ctx context.Context) (domain.InventorySummary, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.InventorySummary")
	defer span.End()

	const totalsQuery = `
		SELECT COUNT(*),
		       COALESCE(SUM(quantity), 0),
		       COALESCE(SUM(price * quantity), 0),
		       COALESCE(SUM(price), 0)
		FROM products`
	const detailsQuery = `
		SELECT id, name, quantity, price
		FROM products
		ORDER BY quantity DESC, id ASC`

	summary := domain.InventorySummary{ProductDetails: make([]domain.InventoryDetail, 0)}
	var sumPrice decimal.Decimal

	err := r.db.WithSnapshot(ctx, func(ctx context.Context, q database.Querier) error {
		if err := q.QueryRowContext(ctx, totalsQuery).Scan(
			&summary.TotalProducts, &summary.TotalQuantity, &summary.TotalValue, &sumPrice,
		); err != nil {
			return err
		}

		rows, err := q.QueryContext(ctx, detailsQuery)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				d     domain.InventoryDetail
				price decimal.Decimal
			)
			if err := rows.Scan(&d.ID, &d.Name, &d.Quantity, &price); err != nil {
				return err
			}
			d.Value = price.Mul(decimal.NewFromInt(int64(d.Quantity))).Round(2)
			summary.ProductDetails = append(summary.ProductDetails, d)
		}
		return rows.Err()
	})
	if err != nil {
		span.RecordError(err)
		r.logger.Error("failed to build inventory summary", err)
		return domain.InventorySummary{}, apperror.NewDBError("failed to build inventory summary", err)
	}

	// SQLite hands DECIMAL sums back as floats.
	summary.TotalValue = summary.TotalValue.Round(2)
	summary.AvgPrice = decimal.Zero
	if summary.TotalProducts > 0 {
		summary.AvgPrice = sumPrice.Div(decimal.NewFromInt(summary.TotalProducts)).Round(2)
	}

	total := decimal.NewFromInt(summary.TotalQuantity)
	for i := range summary.ProductDetails {
		ratio := decimal.Zero
		if summary.TotalQuantity > 0 {
			ratio = decimal.NewFromInt(int64(summary.ProductDetails[i].Quantity)).
				Mul(decimal.NewFromInt(100)).
				Div(total).
				Round(2)
		}
		summary.ProductDetails[i].QuantityRatio = ratio
	}

	return summary, nil
}
