package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"account-service/internal/core/config"
	"account-service/internal/domain"
)

func TestMustOpenStore_SQLite(t *testing.T) {
	cfg := &config.Config{}
	cfg.DB.Driver = "sqlite"
	cfg.DB.DSN = "file:" + filepath.Join(t.TempDir(), "api.db") + "?_pragma=busy_timeout(5000)"
	cfg.DB.MaxOpenConns = 1
	cfg.DB.LogLevel = "silent"
	cfg.DB.AutoMigrate = true

	ctx := context.Background()
	store, closeStore := mustOpenStore(ctx, cfg, zap.NewNop())
	defer closeStore()

	require.NoError(t, store.Ping(ctx))
	u := &domain.User{Name: "Alice", Email: "alice@example.com", PasswordHash: "digest"}
	require.NoError(t, store.Create(ctx, u))
	got, err := store.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}
