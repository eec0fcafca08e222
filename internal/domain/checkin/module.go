package checkin

import (
	"balkly_rewards/internal/domain/checkin/handler"
	"balkly_rewards/internal/domain/checkin/repository"
	"balkly_rewards/internal/domain/checkin/service"
	partnerRepo "balkly_rewards/internal/domain/partner/repository"
	"balkly_rewards/internal/pkg/lock"
	"balkly_rewards/internal/pkg/middleware"
	"balkly_rewards/internal/pkg/registry"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// CheckInModule 商户二维码到店打卡
type CheckInModule struct{}

func init() {
	registry.Register(&CheckInModule{})
}

func (m *CheckInModule) Name() string {
	return "checkin"
}

func (m *CheckInModule) Priority() int {
	return 20
}

func (m *CheckInModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	cRepo := repository.NewCheckInRepository(ctx.DB)
	statsRepo := repository.NewStatsRepository(ctx.SQL)
	partners := partnerRepo.NewPartnerRepository(ctx.DB)
	var locker lock.Locker
	if ctx.Redis != nil {
		locker = lock.NewRedisLocker(ctx.Redis, ctx.Config.Voucher.IssueLockTTL, ctx.Config.Voucher.IssueLockWait)
	}
	cService := service.NewCheckInService(cRepo, statsRepo, partners, service.DedupPolicy(ctx.Config.CheckIn.Dedup), locker)
	cHandler := handler.NewCheckInHandler(cService)

	// 2. 路由注册
	limiter := middleware.NewIPRateLimiter(rate.Limit(ctx.Config.RateLimit.QPS), ctx.Config.RateLimit.Burst)
	setupRoutes(ctx.Router, cHandler, ctx.Config.JWT.Secret, limiter)

	return nil
}

func setupRoutes(r *gin.Engine, h *handler.CheckInHandler, secret string, limiter *middleware.IPRateLimiter) {
	checkin := r.Group("/checkin")
	checkin.Use(middleware.RateLimitMiddleware(limiter))
	{
		checkin.GET("/:trackingCode", h.GetPartner)
		checkin.POST("/:trackingCode", middleware.AuthMiddleware(secret), h.RecordCheckIn)
	}

	admin := r.Group("/partners")
	admin.Use(middleware.AuthMiddleware(secret), middleware.AdminMiddleware())
	{
		admin.GET("/:id/checkins/stats", h.DailyStats)
	}
}
