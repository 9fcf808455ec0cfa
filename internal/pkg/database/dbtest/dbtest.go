// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stockledger/internal/pkg/database"
)

// NewSQLite returns a gateway over a fresh, migrated in-memory SQLite database.
func NewSQLite(t testing.TB) *database.Gateway {
	t.Helper()

	gw, err := database.Open("sqlite://:memory:", 10*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })

	require.NoError(t, gw.Migrate(context.Background()))
	return gw
}
