package common

import (
	_ "balkly_rewards/docs"
	commonHandler "balkly_rewards/internal/pkg/common"
	"balkly_rewards/internal/pkg/registry"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// CommonModule 通用功能模块
type CommonModule struct{}

func init() {
	registry.Register(&CommonModule{})
}

func (m *CommonModule) Name() string {
	return "common"
}

func (m *CommonModule) Priority() int {
	return 100 // 最后初始化
}

func (m *CommonModule) Init(ctx *registry.ModuleContext) error {
	health := commonHandler.NewHealthHandler(ctx.DB, ctx.Redis)
	setupRoutes(ctx.Router, health, ctx.Config.App.Env)
	return nil
}

func setupRoutes(r *gin.Engine, h *commonHandler.HealthHandler, env string) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 生产环境不暴露接口文档
	if env != "prod" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}
