package worker

import (
	"context"
	"time"

	"balkly_rewards/pkg/logger"
	"balkly_rewards/pkg/metrics"
	"balkly_rewards/pkg/utils"

	"go.uber.org/zap"
)

// StaleExpirer 把已过期但仍为 issued 的券批量落库为 expired
type StaleExpirer interface {
	ExpireStale(ctx context.Context, now time.Time, limit int) (int64, error)
}

// ExpirySweeper 定时落库过期状态，仅用于报表；读写路径本身按时间判断过期
type ExpirySweeper struct {
	repo      StaleExpirer
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewExpirySweeper(repo StaleExpirer, interval time.Duration, batchSize int) *ExpirySweeper {
	return &ExpirySweeper{
		repo:      repo,
		interval:  interval,
		batchSize: batchSize,
		now:       utils.NowUTC,
	}
}

// Start 后台运行直到 ctx 取消
func (s *ExpirySweeper) Start(ctx context.Context) {
	go s.run(ctx)
	logger.Log.Info("Expiry sweeper started",
		zap.Duration("interval", s.interval),
		zap.Int("batch_size", s.batchSize),
	)
}

func (s *ExpirySweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("Expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				logger.Log.Error("Expiry sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce 分批处理，直到某一批不足 batchSize
func (s *ExpirySweeper) SweepOnce(ctx context.Context) (int64, error) {
	now := s.now()
	var total int64

	for {
		n, err := s.repo.ExpireStale(ctx, now, s.batchSize)
		if err != nil {
			return total, err
		}
		total += n
		metrics.VouchersSwept(n)

		if n < int64(s.batchSize) {
			break
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}

	if total > 0 {
		logger.Log.Info("Expired stale vouchers", zap.Int64("count", total))
	}
	return total, nil
}
