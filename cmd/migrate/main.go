// Command migrate applies the embedded Postgres schema and the order routines.
package main

import (
	"context"
	"os"
	"time"

	"github.com/matheusmosca/scm-orders/internal/config"
	"github.com/matheusmosca/scm-orders/internal/store/postgres"
	"github.com/matheusmosca/scm-orders/internal/telemetry"
)

func main() {
	logger := telemetry.NewLogger(os.Stdout, "orders-migrate")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("❌ invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := postgres.Migrate(ctx, cfg.PostgresDSN(), logger); err != nil {
		logger.Error("❌ migration failed", "error", err)
		os.Exit(1)
	}
	logger.Info("✅ database schema is up to date")
}
