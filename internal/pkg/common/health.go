package handler

import (
	"context"
	"net/http"
	"time"

	"balkly_rewards/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthHandler 探活：数据库必须可用，Redis 只上报状态
type HealthHandler struct {
	db  *gorm.DB
	rdb *redis.Client
}

func NewHealthHandler(db *gorm.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, rdb: rdb}
}

// Health 健康检查
// @Summary 健康检查
// @Tags Common
// @Produce json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"database": "up", "redis": "disabled"}

	dbUp := h.pingDB(ctx)
	if !dbUp {
		status["database"] = "down"
	}
	if h.rdb != nil {
		status["redis"] = "up"
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			status["redis"] = "down"
		}
	}

	if !dbUp {
		response.ErrorWithData(c, http.StatusServiceUnavailable, response.ErrServerInternal, "unhealthy", status)
		return
	}
	response.Success(c, status)
}

func (h *HealthHandler) pingDB(ctx context.Context) bool {
	if h.db == nil {
		return false
	}
	sqlDB, err := h.db.DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(ctx) == nil
}
