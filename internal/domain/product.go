package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	apperror "stockledger/internal/errors"
)

var hundred = decimal.NewFromInt(100)

// Product is a catalog item with its stock level and one margin per sales platform.
type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Options       *string         `json:"options,omitempty"`
	Price         decimal.Decimal `json:"price"`
	MarginNaver   decimal.Decimal `json:"margin_naver"`
	MarginCoupang decimal.Decimal `json:"margin_coupang"`
	MarginSelf    decimal.Decimal `json:"margin_self"`
	Quantity      int             `json:"quantity"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// MarginFor returns the margin (percent) charged by the given platform.
func (p Product) MarginFor(platform Platform) (decimal.Decimal, error) {
	switch platform {
	case PlatformNaver:
		return p.MarginNaver, nil
	case PlatformCoupang:
		return p.MarginCoupang, nil
	case PlatformSelf:
		return p.MarginSelf, nil
	}
	return decimal.Zero, apperror.NewValidationError(fmt.Sprintf("platform must be one of %s, got %q", platformList(), platform))
}

// Quote prices a sale of quantity units on platform against the product's current state.
// The platform is checked before the stock level.
func (p Product) Quote(platform Platform, quantity int) (revenue, profit decimal.Decimal, err error) {
	margin, err := p.MarginFor(platform)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if quantity > p.Quantity {
		return decimal.Zero, decimal.Zero, apperror.NewInsufficientStockError(p.ID, p.Quantity, quantity)
	}
	revenue, profit = SaleAmounts(p.Price, margin, quantity)
	return revenue, profit, nil
}

// Value is the stock valuation of the product (price x quantity).
func (p Product) Value() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// NewProduct is the input of a product creation.
type NewProduct struct {
	Name          string          `json:"name"`
	Options       *string         `json:"options,omitempty"`
	Price         decimal.Decimal `json:"price"`
	MarginNaver   decimal.Decimal `json:"margin_naver"`
	MarginCoupang decimal.Decimal `json:"margin_coupang"`
	MarginSelf    decimal.Decimal `json:"margin_self"`
	Quantity      int             `json:"quantity"`
}

// Validate checks the invariants of a new product.
func (n NewProduct) Validate() error {
	if err := validateName(n.Name); err != nil {
		return err
	}
	if err := validatePrice(n.Price); err != nil {
		return err
	}
	if err := validateMargin("margin_naver", n.MarginNaver); err != nil {
		return err
	}
	if err := validateMargin("margin_coupang", n.MarginCoupang); err != nil {
		return err
	}
	if err := validateMargin("margin_self", n.MarginSelf); err != nil {
		return err
	}
	return validateQuantity(n.Quantity)
}

// ProductUpdate carries the fields of a partial update. Nil fields are left untouched.
type ProductUpdate struct {
	Name          *string          `json:"name,omitempty"`
	Options       *string          `json:"options,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	MarginNaver   *decimal.Decimal `json:"margin_naver,omitempty"`
	MarginCoupang *decimal.Decimal `json:"margin_coupang,omitempty"`
	MarginSelf    *decimal.Decimal `json:"margin_self,omitempty"`
	Quantity      *int             `json:"quantity,omitempty"`
}

// IsEmpty reports whether no field is set.
func (u ProductUpdate) IsEmpty() bool {
	return u.Name == nil && u.Options == nil && u.Price == nil &&
		u.MarginNaver == nil && u.MarginCoupang == nil && u.MarginSelf == nil &&
		u.Quantity == nil
}

// Validate applies the creation rules to every field that is set.
func (u ProductUpdate) Validate() error {
	if u.Name != nil {
		if err := validateName(*u.Name); err != nil {
			return err
		}
	}
	if u.Price != nil {
		if err := validatePrice(*u.Price); err != nil {
			return err
		}
	}
	if u.MarginNaver != nil {
		if err := validateMargin("margin_naver", *u.MarginNaver); err != nil {
			return err
		}
	}
	if u.MarginCoupang != nil {
		if err := validateMargin("margin_coupang", *u.MarginCoupang); err != nil {
			return err
		}
	}
	if u.MarginSelf != nil {
		if err := validateMargin("margin_self", *u.MarginSelf); err != nil {
			return err
		}
	}
	if u.Quantity != nil {
		return validateQuantity(*u.Quantity)
	}
	return nil
}

// BulkUpdateResult reports the outcome of one entry of a bulk update.
type BulkUpdateResult struct {
	ID      int64  `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Sort keys accepted by ProductFilter.
const (
	SortByName     = "name"
	SortByPrice    = "price"
	SortByQuantity = "quantity"
	SortByValue    = "value"
)

// ProductFilter holds the listing parameters.
type ProductFilter struct {
	Search string // case-sensitive substring of the name, empty = all
	SortBy string // one of the SortBy* keys, anything else sorts by name
}

// ProductListing is a product with its derived stock value.
type ProductListing struct {
	Product
	Value decimal.Decimal `json:"value"`
}

// InventorySummary is the aggregate snapshot of the whole catalog.
type InventorySummary struct {
	TotalProducts  int64             `json:"total_products"`
	TotalQuantity  int64             `json:"total_quantity"`
	TotalValue     decimal.Decimal   `json:"total_value"`
	AvgPrice       decimal.Decimal   `json:"avg_price"`
	ProductDetails []InventoryDetail `json:"product_details"`
}

// InventoryDetail is one product line of the inventory summary.
type InventoryDetail struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Quantity      int             `json:"quantity"`
	Value         decimal.Decimal `json:"value"`
	QuantityRatio decimal.Decimal `json:"quantity_ratio"` // percent of total quantity
}

// MaxNameLength matches the products.name column width.
const MaxNameLength = 100

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperror.NewValidationError("name must not be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return apperror.NewValidationError(fmt.Sprintf("name must be at most %d characters", MaxNameLength))
	}
	return nil
}

// MoneyScale is the number of fractional digits stored for prices, margins and amounts.
const MoneyScale = 2

// withinScale accepts 10.5 and 10.500 but not 10.005.
func withinScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyScale))
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return apperror.NewValidationError("price must be non-negative")
	}
	if !withinScale(price) {
		return apperror.NewValidationError(fmt.Sprintf("price must have at most %d decimal places", MoneyScale))
	}
	return nil
}

func validateMargin(field string, margin decimal.Decimal) error {
	if margin.IsNegative() || margin.GreaterThan(hundred) {
		return apperror.NewValidationError(fmt.Sprintf("%s must be between 0 and 100", field))
	}
	if !withinScale(margin) {
		return apperror.NewValidationError(fmt.Sprintf("%s must have at most %d decimal places", field, MoneyScale))
	}
	return nil
}

func validateQuantity(quantity int) error {
	if quantity < 0 {
		return apperror.NewValidationError("quantity must be non-negative")
	}
	return nil
}
