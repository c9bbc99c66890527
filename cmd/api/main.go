package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"account-service/internal/core/auth"
	"account-service/internal/core/config"
	"account-service/internal/core/database"
	"account-service/internal/core/logger"
	"account-service/internal/core/server"
	"account-service/internal/core/throttle"
	"account-service/internal/domain"
	"account-service/internal/repo"
	"account-service/internal/service"
	"account-service/internal/transport/http/handler"
	"account-service/internal/transport/http/router"
	"account-service/pkg/utils"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, cleanup := logger.New(logger.FromConfig(cfg.Log))
	defer cleanup()
	undo := logger.RedirectStdLog(zl, zap.InfoLevel)
	defer undo()

	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 存储（失败会直接 Fatal）
	store, closeStore := mustOpenStore(ctx, cfg, zl)
	defer closeStore()
	zl.Info("database connected", zap.String("driver", cfg.DB.Driver))

	// 找回密码限频：有 redis 用 redis，否则进程内
	window := time.Duration(cfg.Reset.WindowMin) * time.Minute
	var resetLimiter throttle.Limiter = throttle.NewWindowLimiter(window, cfg.Reset.MaxRequests)
	if cfg.Redis.Addr != "" {
		rdb := throttle.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer func() { _ = rdb.Close() }()
		resetLimiter = throttle.NewRedisLimiter(rdb, cfg.App.Name+":reset:", window, cfg.Reset.MaxRequests, zl.Named("throttle"))
		zl.Info("reset throttle uses redis", zap.String("addr", cfg.Redis.Addr))
	}

	// JWT
	jwter := &auth.JWTer{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute,
	}
	if cfg.IsProd() && cfg.JWT.Secret == "change-me" {
		zl.Warn("jwt.secret is the default value")
	}

	tokens := service.NewResetTokens(store, time.Duration(cfg.Reset.TokenTTLMin)*time.Minute)
	svc := service.NewAccountService(store, utils.NewBcryptHasher(utils.DefaultBcryptCost), tokens,
		service.WithResetLimiter(resetLimiter),
		service.WithLogger(zl.Named("account")),
	)
	accounts := handler.NewAccountHandler(svc, jwter, cfg.App.HTTP.PublicBaseURL, cfg.App.HTTP.RoutePrefix, zl.Named("http"))

	// 路由
	r := router.NewAPIEngine(zl, cfg, jwter, svc, accounts)

	h := cfg.App.HTTP
	addr := server.Addr(h.Host, h.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(h.ReadTimeoutSec)*time.Second,
		time.Duration(h.WriteTimeoutSec)*time.Second,
		time.Duration(h.IdleTimeoutSec)*time.Second,
		zl,
	)

	// 启动日志
	host4human := h.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(h.Port)
	zl.Info("account api starting",
		zap.String("addr", addr),
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("api", baseURL+h.RoutePrefix),
	)

	if err := server.Run(ctx, srv, 10*time.Second, zl); err != nil {
		zl.Fatal("account api FAILED", zap.Error(err))
	}
	zl.Info("account api stopped gracefully")
}

func mustOpenStore(ctx context.Context, cfg *config.Config, l *zap.Logger) (domain.UserStore, func()) {
	if cfg.DB.Driver == "mongodb" {
		client, mdb, err := database.NewMongo(ctx, database.MongoOpts{
			URI:         cfg.DB.DSN,
			Database:    cfg.DB.Name,
			MaxPoolSize: uint64(max(cfg.DB.MaxOpenConns, 0)),
			MinPoolSize: uint64(max(cfg.DB.MaxIdleConns, 0)),
		})
		if err != nil {
			l.Fatal("mongo open", zap.Error(err))
		}
		r := repo.NewMongoUserRepo(mdb)
		if err := r.EnsureIndexes(ctx); err != nil {
			l.Fatal("mongo indexes", zap.Error(err))
		}
		return r, func() { _ = client.Disconnect(context.Background()) }
	}

	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		Log:                l,
	})
	if err != nil {
		l.Fatal("db open", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		l.Fatal("db handle", zap.Error(err))
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		l.Fatal("db ping", zap.Error(err), zap.String("dsn", database.MaskDSN(cfg.DB.DSN)))
	}

	// 自动迁移（goose 版本化 SQL）
	if cfg.DB.AutoMigrate {
		if err := database.MigrateUp(ctx, sqlDB, cfg.DB.Driver, l); err != nil {
			l.Fatal("migrate failed", zap.Error(err))
		}
		l.Info("migrate done")
	}
	return repo.NewUserRepo(db), func() { _ = sqlDB.Close() }
}
