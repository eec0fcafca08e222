package voucher

import (
	partnerRepo "balkly_rewards/internal/domain/partner/repository"
	"balkly_rewards/internal/domain/voucher/handler"
	"balkly_rewards/internal/domain/voucher/repository"
	"balkly_rewards/internal/domain/voucher/service"
	"balkly_rewards/internal/pkg/lock"
	"balkly_rewards/internal/pkg/middleware"
	"balkly_rewards/internal/pkg/registry"
	"balkly_rewards/internal/pkg/worker"
	"balkly_rewards/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// VoucherModule 券码签发与核销
type VoucherModule struct{}

func init() {
	registry.Register(&VoucherModule{})
}

func (m *VoucherModule) Name() string {
	return "voucher"
}

func (m *VoucherModule) Priority() int {
	return 10
}

func (m *VoucherModule) Init(ctx *registry.ModuleContext) error {
	cfg := ctx.Config

	// 1. 依赖注入
	vRepo := repository.NewVoucherRepository(ctx.DB)
	catalog := partnerRepo.NewPartnerRepository(ctx.DB)

	opts := service.Options{
		Window:          cfg.Voucher.Window,
		MaxCodeAttempts: cfg.Voucher.MaxCodeAttempts,
		Codes:           service.NewCodeGenerator(cfg.Voucher.CodeLength),
	}
	if ctx.Redis != nil {
		opts.Locker = lock.NewRedisLocker(ctx.Redis, cfg.Voucher.IssueLockTTL, cfg.Voucher.IssueLockWait)
	} else {
		logger.Log.Warn("Redis unavailable, voucher issuance relies on unique index only")
	}
	if ctx.Push != nil {
		pool := worker.NewPushPool(ctx.Push, 2, 256)
		pool.Start()
		go func() {
			<-ctx.Context.Done()
			pool.Stop()
		}()
		opts.Notifier = pool
	}

	vService := service.NewVoucherService(vRepo, catalog, opts)
	vHandler := handler.NewVoucherHandler(vService)

	// 2. 过期落库任务
	if cfg.Sweeper.Enabled {
		worker.NewExpirySweeper(vRepo, cfg.Sweeper.Interval, cfg.Sweeper.BatchSize).Start(ctx.Context)
	}

	// 3. 路由注册
	limiter := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimit.QPS), cfg.RateLimit.Burst)
	setupRoutes(ctx.Router, vHandler, cfg.JWT.Secret, limiter)

	return nil
}

func setupRoutes(r *gin.Engine, h *handler.VoucherHandler, secret string, limiter *middleware.IPRateLimiter) {
	vouchers := r.Group("/vouchers")
	// 券码可被枚举，查询与核销都限流
	vouchers.Use(middleware.RateLimitMiddleware(limiter))
	{
		vouchers.GET("/:code", h.GetVoucher)

		auth := vouchers.Group("")
		auth.Use(middleware.AuthMiddleware(secret))
		{
			auth.POST("", h.IssueVoucher)
			auth.GET("/mine", h.ListMine)
			auth.POST("/:code/redeem", middleware.StaffMiddleware(), h.Redeem)
		}
	}
}
