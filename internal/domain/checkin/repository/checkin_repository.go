package repository

import (
	"context"
	"time"

	"balkly_rewards/internal/domain/checkin/model"

	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

type CheckInRepository interface {
	Create(ctx context.Context, checkIn *model.CheckIn) error
	// FindSince 返回 since 之后最近一条记录，不存在时返回 gorm.ErrRecordNotFound
	FindSince(ctx context.Context, userID, partnerID string, since time.Time) (*model.CheckIn, error)
}

type checkInRepository struct {
	db *gorm.DB
}

func NewCheckInRepository(db *gorm.DB) CheckInRepository {
	return &checkInRepository{db: db}
}

func (r *checkInRepository) Create(ctx context.Context, checkIn *model.CheckIn) error {
	return r.db.WithContext(ctx).Create(checkIn).Error
}

func (r *checkInRepository) FindSince(ctx context.Context, userID, partnerID string, since time.Time) (*model.CheckIn, error) {
	var checkIn model.CheckIn
	// 去重判断要看到刚写入的记录，走主库
	err := r.db.WithContext(ctx).Clauses(dbresolver.Write).
		Where("user_id = ? AND partner_id = ? AND checked_in_at >= ?", userID, partnerID, since).
		Order("checked_in_at DESC").
		First(&checkIn).Error
	if err != nil {
		return nil, err
	}
	return &checkIn, nil
}
