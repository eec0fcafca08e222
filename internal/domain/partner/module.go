package partner

import (
	"balkly_rewards/internal/domain/partner/handler"
	"balkly_rewards/internal/domain/partner/repository"
	"balkly_rewards/internal/domain/partner/service"
	"balkly_rewards/internal/pkg/middleware"
	"balkly_rewards/internal/pkg/registry"
	"balkly_rewards/pkg/cache"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// PartnerModule 合作商户与优惠目录
type PartnerModule struct{}

func init() {
	registry.Register(&PartnerModule{})
}

func (m *PartnerModule) Name() string {
	return "partner"
}

func (m *PartnerModule) Priority() int {
	// 券码、打卡模块都依赖商户目录
	return 1
}

func (m *PartnerModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	pRepo := repository.NewPartnerRepository(ctx.DB)
	pService := service.NewPartnerService(pRepo, ctx.Uploader)
	if ctx.Redis != nil && ctx.Config.Catalog.CacheTTL > 0 {
		pService = service.NewCachedPartnerService(pService, cache.NewRedisCache(ctx.Redis, "balkly:"), ctx.Config.Catalog.CacheTTL)
	}
	pHandler := handler.NewPartnerHandler(pService)

	// 2. 路由注册
	limiter := middleware.NewIPRateLimiter(rate.Limit(ctx.Config.RateLimit.QPS), ctx.Config.RateLimit.Burst)
	setupRoutes(ctx.Router, pHandler, ctx.Config.JWT.Secret, limiter)

	return nil
}

func setupRoutes(r *gin.Engine, h *handler.PartnerHandler, secret string, limiter *middleware.IPRateLimiter) {
	public := r.Group("")
	public.Use(middleware.RateLimitMiddleware(limiter))
	{
		public.GET("/partners/:id/offers", h.ListOffers)
		// 商户二维码上的优惠落地页
		public.GET("/p/:trackingCode/offers", h.ListOffersByTrackingCode)
	}

	admin := r.Group("/partners")
	admin.Use(middleware.AuthMiddleware(secret), middleware.AdminMiddleware())
	{
		admin.POST("/:id/logo", h.UploadLogo)
	}
}
