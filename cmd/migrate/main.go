package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"propel/internal/config"
	"propel/internal/db"
	"propel/internal/db/migrations"
	pkgdb "propel/pkg/db"
	pkglogger "propel/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := pkglogger.NewLoggerWithLevel(cfg.Log.Level)
	defer log.Sync()

	pool, err := pkgdb.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	applied, err := db.Migrate(ctx, pool, migrations.FS, log)
	if err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}
	log.Info("Migrations complete", zap.Int("applied", applied))
}
