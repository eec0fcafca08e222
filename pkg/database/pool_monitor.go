package database

import (
	"context"
	"database/sql"
	"time"

	"balkly_rewards/pkg/logger"
	"balkly_rewards/pkg/metrics"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PoolMonitor 定时把连接池状态写入 Prometheus，等待连接过多时告警
type PoolMonitor struct {
	db       *gorm.DB
	interval time.Duration
	last     sql.DBStats
}

func NewPoolMonitor(db *gorm.DB, interval time.Duration) *PoolMonitor {
	return &PoolMonitor{db: db, interval: interval}
}

// Start 后台运行直到 ctx 取消
func (pm *PoolMonitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(pm.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				pm.collectStats()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// collectStats 收集统计信息
func (pm *PoolMonitor) collectStats() {
	sqlDB, err := pm.db.DB()
	if err != nil {
		logger.Log.Warn("Failed to get database connection", zap.Error(err))
		return
	}
	pm.observe(sqlDB.Stats())
}

func (pm *PoolMonitor) observe(stats sql.DBStats) (waited int64) {
	metrics.RecordDBPool(stats)

	// 本周期内新增的等待次数
	waited = stats.WaitCount - pm.last.WaitCount
	if waited > 0 && stats.InUse >= stats.MaxOpenConnections && stats.MaxOpenConnections > 0 {
		logger.Log.Warn("Database pool saturated",
			zap.Int("in_use", stats.InUse),
			zap.Int("max_open", stats.MaxOpenConnections),
			zap.Int64("waited", waited),
			zap.Duration("wait_duration", stats.WaitDuration-pm.last.WaitDuration),
		)
	}
	pm.last = stats
	return waited
}
