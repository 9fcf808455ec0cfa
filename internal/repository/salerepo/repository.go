package salerepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"stockledger/internal/domain"
	apperror "stockledger/internal/errors"
	"stockledger/internal/pkg/cache"
	"stockledger/internal/pkg/database"
	"stockledger/internal/pkg/logger"
	"stockledger/internal/repository/productrepo"
)

const saleColumns = `s.id, s.product_id, s.sale_date, s.quantity, s.platform, s.revenue, s.profit, s.created_at`

const saleOrder = ` ORDER BY s.sale_date DESC, s.created_at DESC, s.id DESC`

// SaleRepository owns the sales ledger and the stock movements that go with it.
type SaleRepository struct {
	db     *database.Gateway
	cache  cache.Client
	logger logger.Logger
	tracer trace.Tracer
}

func NewSaleRepository(db *database.Gateway, cacheClient cache.Client, log logger.Logger) *SaleRepository {
	return &SaleRepository{
		db:     db,
		cache:  cacheClient,
		logger: log,
		tracer: otel.Tracer("repository/salerepo"),
	}
}

func scanSale(row interface{ Scan(dest ...any) error }, extra ...any) (domain.Sale, error) {
	var (
		s        domain.Sale
		platform string
	)
	dest := append([]any{
		&s.ID, &s.ProductID, &s.SaleDate, &s.Quantity, &platform, &s.Revenue, &s.Profit, &s.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.Sale{}, err
	}
	s.Platform = domain.Platform(platform)
	return s, nil
}

// lockProduct loads a product inside a transaction, row-locked where the dialect supports it.
func (r *SaleRepository) lockProduct(ctx context.Context, q database.Querier, id int64) (domain.Product, error) {
	query := `SELECT ` + productrepo.ProductColumns + ` FROM products WHERE id = $1` + r.db.Dialect().ForUpdate()
	p, err := productrepo.ScanProduct(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, apperror.NewNotFoundError(fmt.Sprintf("product %d does not exist", id))
	}
	if err != nil {
		return domain.Product{}, apperror.NewDBError("failed to load product", err)
	}
	return p, nil
}

func (r *SaleRepository) lockSale(ctx context.Context, q database.Querier, id int64) (domain.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales s WHERE s.id = $1` + r.db.Dialect().ForUpdate()
	s, err := scanSale(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Sale{}, fmt.Errorf("sale %d: %w", id, domain.ErrSaleNotFound)
	}
	if err != nil {
		return domain.Sale{}, apperror.NewDBError("failed to load sale", err)
	}
	return s, nil
}

// deductStock decrements stock only if enough is left. A zero-row update means a
// concurrent writer got there first.
func deductStock(ctx context.Context, q database.Querier, p domain.Product, quantity int) error {
	res, err := q.ExecContext(ctx,
		`UPDATE products SET quantity = quantity - $1, updated_at = $2 WHERE id = $3 AND quantity >= $1`,
		quantity, productrepo.Now(), p.ID)
	if err != nil {
		return apperror.NewDBError("failed to decrement stock", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperror.NewDBError("failed to read affected rows", err)
	}
	if n == 0 {
		return apperror.NewInsufficientStockError(p.ID, p.Quantity, quantity)
	}
	return nil
}

// restoreStock puts quantity back on a product. Missing products are skipped.
func restoreStock(ctx context.Context, q database.Querier, productID int64, quantity int) error {
	_, err := q.ExecContext(ctx,
		`UPDATE products SET quantity = quantity + $1, updated_at = $2 WHERE id = $3`,
		quantity, productrepo.Now(), productID)
	if err != nil {
		return apperror.NewDBError("failed to restore stock", err)
	}
	return nil
}

func (r *SaleRepository) invalidate(ctx context.Context, ids ...int64) {
	for _, id := range ids {
		if err := cache.InvalidateProduct(ctx, r.cache, id); err != nil {
			r.logger.Warn("cache invalidation failed", map[string]interface{}{"product_id": id, "error": err.Error()})
		}
	}
}

func (r *SaleRepository) fail(span trace.Span, msg string, err error) {
	var appErr apperror.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus() < 500 {
		r.logger.Warn(msg, map[string]interface{}{"reason": err.Error()})
		return
	}
	span.RecordError(err)
	r.logger.Error(msg, err)
}

// Record writes a sale and deducts its quantity from stock in one transaction.
// Revenue and profit are priced from the product as locked by the transaction.
func (r *SaleRepository) Record(ctx context.Context, ns domain.NewSale) (domain.Sale, error) {
	ctx, span := r.tracer.Start(ctx, "SaleRepository.Record")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("product.id", ns.ProductID),
		attribute.Int("sale.quantity", ns.Quantity),
		attribute.String("sale.platform", string(ns.Platform)),
	)

	sale := domain.Sale{
		ProductID: ns.ProductID,
		SaleDate:  ns.SaleDate,
		Quantity:  ns.Quantity,
		Platform:  ns.Platform,
		CreatedAt: productrepo.Now(),
	}

	err := r.db.WithTx(ctx, func(ctx context.Context, q database.Querier) error {
		product, err := r.lockProduct(ctx, q, ns.ProductID)
		if err != nil {
			return err
		}

		sale.Revenue, sale.Profit, err = product.Quote(ns.Platform, ns.Quantity)
		if err != nil {
			return err
		}

		err = q.QueryRowContext(ctx,
			`INSERT INTO sales (product_id, sale_date, quantity, platform, revenue, profit, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id`,
			sale.ProductID, sale.SaleDate.Format(domain.DateLayout), sale.Quantity, string(sale.Platform),
			sale.Revenue, sale.Profit, sale.CreatedAt,
		).Scan(&sale.ID)
		if err != nil {
			return apperror.NewDBError("failed to insert sale", err)
		}

		return deductStock(ctx, q, product, ns.Quantity)
	})
	if err != nil {
		r.fail(span, "sale not recorded", err)
		return domain.Sale{}, err
	}

	r.invalidate(ctx, ns.ProductID)
	span.SetAttributes(attribute.Int64("sale.id", sale.ID))
	r.logger.Info("sale recorded", map[string]interface{}{
		"sale_id":    sale.ID,
		"product_id": sale.ProductID,
		"quantity":   sale.Quantity,
		"platform":   string(sale.Platform),
	})
	return sale, nil
}

// Update replaces a sale. The previous deduction is restored (when its product still
// exists) before the new one is checked, deducted and re-priced.
func (r *SaleRepository) Update(ctx context.Context, id int64, ns domain.NewSale) (domain.Sale, error) {
	ctx, span := r.tracer.Start(ctx, "SaleRepository.Update")
	defer span.End()
	span.SetAttributes(attribute.Int64("sale.id", id))

	var (
		sale    domain.Sale
		oldProd int64
	)
	err := r.db.WithTx(ctx, func(ctx context.Context, q database.Querier) error {
		old, err := r.lockSale(ctx, q, id)
		if err != nil {
			return err
		}
		oldProd = old.ProductID

		if err := restoreStock(ctx, q, old.ProductID, old.Quantity); err != nil {
			return err
		}

		product, err := r.lockProduct(ctx, q, ns.ProductID)
		if err != nil {
			return err
		}

		sale = domain.Sale{
			ID:        id,
			ProductID: ns.ProductID,
			SaleDate:  ns.SaleDate,
			Quantity:  ns.Quantity,
			Platform:  ns.Platform,
			CreatedAt: old.CreatedAt,
		}
		sale.Revenue, sale.Profit, err = product.Quote(ns.Platform, ns.Quantity)
		if err != nil {
			return err
		}

		if err := deductStock(ctx, q, product, ns.Quantity); err != nil {
			return err
		}

		_, err = q.ExecContext(ctx,
			`UPDATE sales SET product_id = $1, sale_date = $2, quantity = $3, platform = $4, revenue = $5, profit = $6
			 WHERE id = $7`,
			sale.ProductID, sale.SaleDate.Format(domain.DateLayout), sale.Quantity, string(sale.Platform),
			sale.Revenue, sale.Profit, id)
		if err != nil {
			return apperror.NewDBError("failed to update sale", err)
		}
		return nil
	})
	if err != nil {
		r.fail(span, "sale not updated", err)
		return domain.Sale{}, err
	}

	r.invalidate(ctx, oldProd, ns.ProductID)
	r.logger.Info("sale updated", map[string]interface{}{"sale_id": id, "product_id": sale.ProductID, "quantity": sale.Quantity})
	return sale, nil
}

// Delete removes a sale and gives its quantity back to the product, if it still exists.
func (r *SaleRepository) Delete(ctx context.Context, id int64) error {
	ctx, span := r.tracer.Start(ctx, "SaleRepository.Delete")
	defer span.End()
	span.SetAttributes(attribute.Int64("sale.id", id))

	var productID int64
	err := r.db.WithTx(ctx, func(ctx context.Context, q database.Querier) error {
		old, err := r.lockSale(ctx, q, id)
		if err != nil {
			return err
		}
		productID = old.ProductID

		if _, err := q.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id); err != nil {
			return apperror.NewDBError("failed to delete sale", err)
		}
		return restoreStock(ctx, q, old.ProductID, old.Quantity)
	})
	if err != nil {
		r.fail(span, "sale not deleted", err)
		return err
	}

	r.invalidate(ctx, productID)
	r.logger.Info("sale deleted", map[string]interface{}{"sale_id": id, "product_id": productID})
	return nil
}

// FindByDateRange returns the sales dated within [start, end], newest first.
func (r *SaleRepository) FindByDateRange(ctx context.Context, start, end time.Time) ([]domain.SaleRecord, error) {
	ctx, span := r.tracer.Start(ctx, "SaleRepository.FindByDateRange")
	defer span.End()
	span.SetAttributes(
		attribute.String("range.start", start.Format(domain.DateLayout)),
		attribute.String("range.end", end.Format(domain.DateLayout)),
	)

	query := `SELECT ` + saleColumns + `, COALESCE(p.name, '')
		FROM sales s
		LEFT JOIN products p ON p.id = s.product_id
		WHERE s.sale_date >= $1 AND s.sale_date <= $2` + saleOrder

	records := make([]domain.SaleRecord, 0)
	err := r.db.WithConn(ctx, func(ctx context.Context, q database.Querier) error {
		rows, err := q.QueryContext(ctx, query, start.Format(domain.DateLayout), end.Format(domain.DateLayout))
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var name string
			s, err := scanSale(rows, &name)
			if err != nil {
				return err
			}
			records = append(records, domain.SaleRecord{Sale: s, ProductName: name})
		}
		return rows.Err()
	})
	if err != nil {
		span.RecordError(err)
		r.logger.Error("failed to list sales", err)
		return nil, apperror.NewDBError("failed to list sales", err)
	}
	return records, nil
}

// FindByProduct returns the sales history of one product, newest first.
func (r *SaleRepository) FindByProduct(ctx context.Context, productID int64) ([]domain.Sale, error) {
	ctx, span := r.tracer.Start(ctx, "SaleRepository.FindByProduct")
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", productID))

	query := `SELECT ` + saleColumns + ` FROM sales s WHERE s.product_id = $1` + saleOrder

	sales := make([]domain.Sale, 0)
	err := r.db.WithConn(ctx, func(ctx context.Context, q database.Querier) error {
		rows, err := q.QueryContext(ctx, query, productID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			s, err := scanSale(rows)
			if err != nil {
				return err
			}
			sales = append(sales, s)
		}
		return rows.Err()
	})
	if err != nil {
		span.RecordError(err)
		r.logger.Error("failed to load product sales history", err)
		return nil, apperror.NewDBError("failed to load product sales history", err)
	}
	return sales, nil
}

// windowClause renders the optional bounds of a summary as a WHERE clause.
func windowClause(w domain.SalesWindow) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if w.Start != nil {
		args = append(args, w.Start.Format(domain.DateLayout))
		conds = append(conds, fmt.Sprintf("s.sale_date >= $%d", len(args)))
	}
	if w.End != nil {
		args = append(args, w.End.Format(domain.DateLayout))
		conds = append(conds, fmt.Sprintf("s.sale_date <= $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Summary aggregates the sales inside w: totals, per-platform figures and best sellers.
// Best sellers only include products that still exist.
func (r *SaleRepository) Summary(ctx context.Context, w domain.SalesWindow) (domain.SalesSummary, error) {
	ctx, span := r.tracer.Start(ctx, "SaleRepository.Summary")
	defer span.End()

	where, args := windowClause(w)

	totalsQuery := `
		SELECT COUNT(*),
		       COALESCE(SUM(s.quantity), 0),
		       COALESCE(SUM(s.revenue), 0),
		       COALESCE(SUM(s.profit), 0)
		FROM sales s` + where
	platformQuery := `
		SELECT s.platform, COUNT(*), SUM(s.quantity), SUM(s.revenue), SUM(s.profit)
		FROM sales s` + where + `
		GROUP BY s.platform`
	topQuery := fmt.Sprintf(`
		SELECT s.product_id, p.name, SUM(s.quantity) AS total_sold, SUM(s.revenue)
		FROM sales s
		JOIN products p ON p.id = s.product_id%s
		GROUP BY s.product_id, p.name
		ORDER BY total_sold DESC, MIN(s.id) ASC
		LIMIT %d`, where, domain.TopProductsLimit)

	summary := domain.SalesSummary{
		PlatformStats: make(map[domain.Platform]domain.PlatformStats),
		TopProducts:   make([]domain.TopProduct, 0),
	}

	err := r.db.WithSnapshot(ctx, func(ctx context.Context, q database.Querier) error {
		if err := q.QueryRowContext(ctx, totalsQuery, args...).Scan(
			&summary.TotalSales, &summary.TotalQuantity, &summary.TotalRevenue, &summary.TotalProfit,
		); err != nil {
			return err
		}
		// SQLite hands DECIMAL sums back as floats.
		summary.TotalRevenue = summary.TotalRevenue.Round(2)
		summary.TotalProfit = summary.TotalProfit.Round(2)

		rows, err := q.QueryContext(ctx, platformQuery, args...)
		if err != nil {
			return err
		}
		for rows.Next() {
			var (
				platform string
				st       domain.PlatformStats
			)
			if err := rows.Scan(&platform, &st.SalesCount, &st.Quantity, &st.Revenue, &st.Profit); err != nil {
				rows.Close()
				return err
			}
			st.Revenue, st.Profit = st.Revenue.Round(2), st.Profit.Round(2)
			summary.PlatformStats[domain.Platform(platform)] = st
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		rows, err = q.QueryContext(ctx, topQuery, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var tp domain.TopProduct
			if err := rows.Scan(&tp.ProductID, &tp.Name, &tp.QuantitySold, &tp.Revenue); err != nil {
				return err
			}
			tp.Revenue = tp.Revenue.Round(2)
			summary.TopProducts = append(summary.TopProducts, tp)
		}
		return rows.Err()
	})
	if err != nil {
		span.RecordError(err)
		r.logger.Error("failed to build sales summary", err)
		return domain.SalesSummary{}, apperror.NewDBError("failed to build sales summary", err)
	}

	return summary, nil
}
