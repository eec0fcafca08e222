package repository

import (
	"context"
	"fmt"
	"time"

	"balkly_rewards/internal/domain/checkin/model"

	"github.com/jmoiron/sqlx"
)

// StatsRepository 报表查询，直接写 SQL
type StatsRepository interface {
	DailyCounts(ctx context.Context, partnerID string, since time.Time) ([]model.DailyStat, error)
}

type statsRepository struct {
	db *sqlx.DB
}

func NewStatsRepository(db *sqlx.DB) StatsRepository {
	return &statsRepository{db: db}
}

const dailyCountsQuery = `
SELECT date_trunc('day', checked_in_at AT TIME ZONE 'UTC') AS day, COUNT(*) AS count
FROM check_ins
WHERE partner_id = $1 AND checked_in_at >= $2
GROUP BY day
ORDER BY day`

func (r *statsRepository) DailyCounts(ctx context.Context, partnerID string, since time.Time) ([]model.DailyStat, error) {
	stats := make([]model.DailyStat, 0)
	if err := r.db.SelectContext(ctx, &stats, dailyCountsQuery, partnerID, since); err != nil {
		return nil, fmt.Errorf("daily check-in counts: %w", err)
	}
	return stats, nil
}
