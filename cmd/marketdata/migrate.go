package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fks/market-data/internal/migrate"
)

var migrationsDir string

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations to the configured database",
		RunE:  runMigrate,
	}
	cmd.Flags().StringVar(&migrationsDir, "dir", "migrations", "directory of ordered .sql migration files")
	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(log.Logger)
	if err != nil {
		return err
	}
	if a.cfg.SkipMigrations {
		log.Warn().Msg("migrate: FKS_SKIP_MIGRATIONS set, skipping")
		return nil
	}
	if a.db == nil {
		return fmt.Errorf("migrate: no database configured (set DATABASE_URL or FKS_DB_URL)")
	}

	runner := migrate.NewRunner(a.db, os.DirFS(migrationsDir), log.Logger)
	applied, err := runner.Apply(context.Background())
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if len(applied) == 0 {
		log.Info().Msg("migrate: nothing to apply")
		return nil
	}
	log.Info().Strs("applied", applied).Msg("migrate: done")
	return nil
}
