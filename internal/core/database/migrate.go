package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	zlog "account-service/internal/core/logger"
)

//go:embed migrations/*/*.sql
var migrations embed.FS

// goose 的 BaseFS / Dialect 是包级状态
var gooseMu sync.Mutex

func gooseDialect(driver string) (string, error) {
	switch driver {
	case "postgres":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "sqlite":
		return "sqlite3", nil
	}
	return "", fmt.Errorf("%w: %q has no sql migrations", ErrUnsupportedDriver, driver)
}

func withGoose(driver string, l *zap.Logger, fn func(dir string) error) error {
	dialect, err := gooseDialect(driver)
	if err != nil {
		return err
	}
	if l == nil {
		l = zap.NewNop()
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(zlog.ToStdLogger(l.Named("goose"), zapcore.InfoLevel))
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	return fn("migrations/" + driver)
}

// MigrateUp 应用全部未执行的迁移
func MigrateUp(ctx context.Context, db *sql.DB, driver string, l *zap.Logger) error {
	return withGoose(driver, l, func(dir string) error {
		if err := goose.UpContext(ctx, db, dir); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
		return nil
	})
}

// MigrateDown 回滚最近一个版本
func MigrateDown(ctx context.Context, db *sql.DB, driver string, l *zap.Logger) error {
	return withGoose(driver, l, func(dir string) error {
		if err := goose.DownContext(ctx, db, dir); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		return nil
	})
}

func MigrateStatus(ctx context.Context, db *sql.DB, driver string, l *zap.Logger) error {
	return withGoose(driver, l, func(dir string) error {
		return goose.StatusContext(ctx, db, dir)
	})
}

func MigrateVersion(ctx context.Context, db *sql.DB, driver string) (int64, error) {
	var v int64
	err := withGoose(driver, nil, func(string) error {
		var err error
		v, err = goose.GetDBVersionContext(ctx, db)
		return err
	})
	return v, err
}
