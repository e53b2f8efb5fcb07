package eelytics

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	pg "github.com/edgeflare/eelytics/pkg/pgx"
	"github.com/edgeflare/eelytics/pkg/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the readings table if it does not exist",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pg.NewPool(ctx, cfg.Postgres.ConnString, pg.WithMaxConns(1))
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.WaitReady(ctx, pool, cfg.Postgres.ReadyTimeout); err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}
	if err := store.New(pool).Migrate(ctx); err != nil {
		return err
	}
	logger.Info("schema is up to date")
	return nil
}

func migrate(ctx context.Context, s *store.Store) {
	if err := s.Migrate(ctx); err != nil {
		logger.Error("migration failed", zap.Error(err))
		return
	}
	logger.Info("schema is up to date")
}
