package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// Migrations returns a goose provider over the embedded migrations of the gateway's dialect.
func (g *Gateway) Migrations() (*goose.Provider, error) {
	sub, err := fs.Sub(migrationsFS, "migrations/"+string(g.dialect))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s migrations: %w", g.dialect, err)
	}

	gooseDialect := goose.DialectSQLite3
	if g.dialect == Postgres {
		gooseDialect = goose.DialectPostgres
	}

	return goose.NewProvider(gooseDialect, g.db, sub)
}

// Migrate applies every pending migration (schema initialisation).
func (g *Gateway) Migrate(ctx context.Context) error {
	provider, err := g.Migrations()
	if err != nil {
		return err
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
