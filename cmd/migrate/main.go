package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"stockledger/config"
	"stockledger/internal/pkg/database"
)

type options struct {
	envFile     string
	databaseURL string
	timeout     time.Duration
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the stockledger database schema",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "", "overrides DATABASE_URL")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", time.Minute, "operation timeout")

	cmd.AddCommand(
		newCommand(opts, "up", "Apply every pending migration", up),
		newCommand(opts, "down", "Roll back the latest migration", down),
		newCommand(opts, "status", "List migrations and whether they are applied", status),
		newCommand(opts, "version", "Print the current schema version", version),
	)
	return cmd
}

func newCommand(opts *options, use, short string, fn func(context.Context, *goose.Provider) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			db, err := open(opts)
			if err != nil {
				return err
			}
			defer db.Close()

			provider, err := db.Migrations()
			if err != nil {
				return err
			}
			return fn(ctx, provider)
		},
	}
}

func open(opts *options) (*database.Gateway, error) {
	if err := godotenv.Load(opts.envFile); err != nil {
		log.Printf("env file %s not loaded, using the environment only", opts.envFile)
	}

	cfg := config.LoadDatabaseConfig()
	if opts.databaseURL != "" {
		cfg.DatabaseURL = opts.databaseURL
	}
	return database.Open(cfg.DatabaseURL, cfg.DBTimeout)
}

func up(ctx context.Context, p *goose.Provider) error {
	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("no pending migrations")
	}
	for _, r := range results {
		fmt.Printf("OK   %05d %s (%s)\n", r.Source.Version, r.Source.Path, r.Duration)
	}
	return nil
}

func down(ctx context.Context, p *goose.Provider) error {
	r, err := p.Down(ctx)
	if err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	fmt.Printf("DOWN %05d %s (%s)\n", r.Source.Version, r.Source.Path, r.Duration)
	return nil
}

func status(ctx context.Context, p *goose.Provider) error {
	statuses, err := p.Status(ctx)
	if err != nil {
		return fmt.Errorf("migrate status: %w", err)
	}
	for _, s := range statuses {
		applied := "pending"
		if s.State == goose.StateApplied {
			applied = s.AppliedAt.Format(time.RFC3339)
		}
		fmt.Printf("%05d %-45s %s\n", s.Source.Version, s.Source.Path, applied)
	}
	return nil
}

func version(ctx context.Context, p *goose.Provider) error {
	v, err := p.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("migrate version: %w", err)
	}
	fmt.Println(v)
	return nil
}
