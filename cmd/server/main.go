package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "balkly_rewards/internal/domain/checkin"
	_ "balkly_rewards/internal/domain/common"
	_ "balkly_rewards/internal/domain/partner"
	_ "balkly_rewards/internal/domain/voucher"
	"balkly_rewards/internal/pkg/config"
	"balkly_rewards/internal/pkg/middleware"
	"balkly_rewards/internal/pkg/push"
	"balkly_rewards/internal/pkg/registry"
	"balkly_rewards/internal/pkg/uploader"
	"balkly_rewards/pkg/database"
	"balkly_rewards/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var Version = "dev"

func main() {
	cmd := &cli.Command{
		Name:    "balkly-rewards",
		Usage:   "Partner offers, vouchers and check-ins API",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径，默认按 APP_ENV 查找 ./configs",
				Sources: cli.EnvVars("CONFIG_PATH"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, cmd.String("config"))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func run(parent context.Context, configPath string) error {
	// 1. 配置与日志
	if err := config.LoadConfig(configPath); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := &config.GlobalConfig

	logger.Init(cfg.App.Env, cfg.App.Debug)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. 存储
	db, err := database.InitDatabase(cfg.Database, cfg.App.Debug)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	sqlxDB, err := database.NewSQLX(db)
	if err != nil {
		return fmt.Errorf("init sqlx: %w", err)
	}
	database.NewPoolMonitor(db, 30*time.Second).Start(ctx)

	// Redis 只用于签发锁，不可用时降级
	var rdb *redis.Client
	if client, err := database.InitRedis(cfg.Redis); err != nil {
		logger.Log.Warn("Redis unavailable, continuing without issue lock", zap.Error(err))
	} else {
		rdb = client
		defer rdb.Close()
	}

	// 3. 外部服务，未配置时为 nil
	mctx := &registry.ModuleContext{
		Context: ctx,
		Config:  cfg,
		DB:      db,
		SQL:     sqlxDB,
		Redis:   rdb,
	}
	if up, err := uploader.NewAliyunOSSUploader(cfg.OSS); err != nil {
		logger.Log.Warn("OSS uploader disabled", zap.Error(err))
	} else if up != nil {
		mctx.Uploader = up
	}
	if ps, err := push.NewAliyunPushService(cfg.Push); err != nil {
		logger.Log.Warn("Push service disabled", zap.Error(err))
	} else if ps != nil {
		mctx.Push = ps
	}

	// 4. 路由
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.LoggerMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Trace-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-Trace-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	mctx.Router = r

	if err := registry.InitModules(mctx); err != nil {
		return fmt.Errorf("init modules: %w", err)
	}

	// 5. 启动与优雅关闭
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("HTTP server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logger.Log.Info("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Log.Info("Server exited")
	return nil
}
