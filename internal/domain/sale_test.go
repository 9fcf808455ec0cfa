package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/domain"
	apperror "stockledger/internal/errors"
)

func TestParseDate(t *testing.T) {
	d, err := domain.ParseDate(" 2024-02-29 ")
	require.NoError(t, err)
	assert.True(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC).Equal(d))

	for _, raw := range []string{"", "2024-02-30", "29/02/2024", "2024-2-9"} {
		_, err := domain.ParseDate(raw)
		assert.IsType(t, &apperror.ValidationError{}, err, raw)
	}
}

func TestSaleRecord_MarshalJSON(t *testing.T) {
	rec := domain.SaleRecord{
		Sale: domain.Sale{
			ID:        3,
			ProductID: 1,
			SaleDate:  time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
			Quantity:  5,
			Platform:  domain.PlatformNaver,
			Revenue:   dec("50000"),
			Profit:    dec("45000"),
		},
		ProductName: "Widget",
	}

	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "2024-01-15", body["sale_date"])
	assert.Equal(t, "Widget", body["product_name"])
	assert.Equal(t, "naver", body["platform"])
	assert.EqualValues(t, 5, body["quantity"])
}
