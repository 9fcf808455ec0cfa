package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperror "stockledger/internal/errors"
)

// DateLayout is the wire and storage format of a sale date.
const DateLayout = "2006-01-02"

// ParseDate reads a calendar date in DateLayout as midnight UTC.
func ParseDate(raw string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, apperror.NewValidationError(fmt.Sprintf("date %q must use the YYYY-MM-DD format", raw))
	}
	return d, nil
}

// Platform is the sales channel a sale is attributed to.
type Platform string

const (
	PlatformNaver   Platform = "naver"
	PlatformCoupang Platform = "coupang"
	PlatformSelf    Platform = "self"
)

// Labels used by the store staff; accepted as aliases of the platform codes.
var platformAliases = map[string]Platform{
	"네이버": PlatformNaver,
	"쿠팡":  PlatformCoupang,
	"자사몰": PlatformSelf,
}

// Platforms lists the recognised platforms in display order.
func Platforms() []Platform {
	return []Platform{PlatformNaver, PlatformCoupang, PlatformSelf}
}

// NormalizePlatform maps a raw value (code in any case, or Korean label) to its Platform.
// Unknown values are returned trimmed so the caller can report them.
func NormalizePlatform(raw string) Platform {
	raw = strings.TrimSpace(raw)
	if p, ok := platformAliases[raw]; ok {
		return p
	}
	p := Platform(strings.ToLower(raw))
	if p.Valid() {
		return p
	}
	return Platform(raw)
}

// Valid reports whether p is one of the recognised platforms.
func (p Platform) Valid() bool {
	switch p {
	case PlatformNaver, PlatformCoupang, PlatformSelf:
		return true
	}
	return false
}

func platformList() string {
	names := make([]string, 0, 3)
	for _, p := range Platforms() {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}

// SaleAmounts computes revenue = price x quantity and profit = revenue x (1 - margin/100),
// both rounded to cents.
func SaleAmounts(price, margin decimal.Decimal, quantity int) (revenue, profit decimal.Decimal) {
	revenue = price.Mul(decimal.NewFromInt(int64(quantity)))
	profit = revenue.Mul(hundred.Sub(margin)).Div(hundred)
	return revenue.Round(2), profit.Round(2)
}

// Sale is a recorded sales transaction. Revenue and profit are fixed when the sale is written.
type Sale struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	SaleDate  time.Time       `json:"sale_date"`
	Quantity  int             `json:"quantity"`
	Platform  Platform        `json:"platform"`
	Revenue   decimal.Decimal `json:"revenue"`
	Profit    decimal.Decimal `json:"profit"`
	CreatedAt time.Time       `json:"created_at"`
}

type saleFields Sale

// MarshalJSON renders sale_date as a calendar date.
func (s Sale) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		saleFields
		SaleDate string `json:"sale_date"`
	}{saleFields(s), s.SaleDate.Format(DateLayout)})
}

// SaleRecord is a sale joined with its product name. The name is empty for orphaned sales.
type SaleRecord struct {
	Sale
	ProductName string `json:"product_name"`
}

func (r SaleRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		saleFields
		SaleDate    string `json:"sale_date"`
		ProductName string `json:"product_name"`
	}{saleFields(r.Sale), r.SaleDate.Format(DateLayout), r.ProductName})
}

// NewSale is the input of RecordSale and UpdateSale.
type NewSale struct {
	ProductID int64     `json:"product_id"`
	SaleDate  time.Time `json:"sale_date"`
	Quantity  int       `json:"quantity"`
	Platform  Platform  `json:"platform"`
}

// SalesWindow bounds a sales summary. Nil bounds are open.
type SalesWindow struct {
	Start *time.Time
	End   *time.Time
}

// PlatformStats aggregates the sales of one platform.
type PlatformStats struct {
	SalesCount int64           `json:"sales_count"`
	Quantity   int64           `json:"quantity"`
	Revenue    decimal.Decimal `json:"revenue"`
	Profit     decimal.Decimal `json:"profit"`
}

// TopProduct is one entry of the best sellers ranking.
type TopProduct struct {
	ProductID    int64           `json:"product_id"`
	Name         string          `json:"name"`
	QuantitySold int64           `json:"quantity_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// SalesSummary aggregates sales over a window.
type SalesSummary struct {
	TotalSales    int64                      `json:"total_sales"`
	TotalQuantity int64                      `json:"total_quantity"`
	TotalRevenue  decimal.Decimal            `json:"total_revenue"`
	TotalProfit   decimal.Decimal            `json:"total_profit"`
	PlatformStats map[Platform]PlatformStats `json:"platform_stats"`
	TopProducts   []TopProduct               `json:"top_products"`
}

// TopProductsLimit is the size of the best sellers ranking.
const TopProductsLimit = 5

// ErrSaleNotFound is wrapped by the ledger when a sale id does not exist.
var ErrSaleNotFound = apperror.NewNotFoundError("sale does not exist")
