package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"account-service/internal/core/config"
	"account-service/internal/core/database"
	"account-service/internal/core/logger"
)

const usage = `usage: migrate [-config path] <up|down|status|version>`

func main() {
	cfgPath := flag.String("config", "", "config file (default $CONFIG_PATH or ./configs/config.local.yaml)")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage); flag.PrintDefaults() }
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, cleanup := logger.New(logger.FromConfig(cfg.Log))
	defer cleanup()

	if cfg.DB.Driver == "mongodb" {
		zl.Fatal("mongodb has no sql migrations; indexes are created on startup")
	}

	db, err := database.NewGorm(database.Opts{
		Driver:   cfg.DB.Driver,
		DSN:      cfg.DB.DSN,
		Username: cfg.DB.Username,
		Password: cfg.DB.Password,
		LogLevel: cfg.DB.LogLevel,
		Log:      zl,
	})
	if err != nil {
		zl.Fatal("db open", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		zl.Fatal("db handle", zap.Error(err))
	}
	defer sqlDB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = database.MigrateUp(ctx, sqlDB, cfg.DB.Driver, zl)
	case "down":
		err = database.MigrateDown(ctx, sqlDB, cfg.DB.Driver, zl)
	case "status":
		err = database.MigrateStatus(ctx, sqlDB, cfg.DB.Driver, zl)
	case "version":
		var v int64
		if v, err = database.MigrateVersion(ctx, sqlDB, cfg.DB.Driver); err == nil {
			zl.Info("schema version", zap.Int64("version", v))
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		zl.Fatal("migrate "+flag.Arg(0)+" failed", zap.Error(err))
	}
}
