package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"balkly_rewards/internal/domain/checkin/model"
	"balkly_rewards/internal/domain/checkin/repository"
	partnerModel "balkly_rewards/internal/domain/partner/model"
	"balkly_rewards/internal/pkg/lock"
	"balkly_rewards/pkg/logger"
	"balkly_rewards/pkg/metrics"
	"balkly_rewards/pkg/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrUnauthenticated = errors.New("user not authenticated")
	ErrPartnerNotFound = errors.New("partner not found")
)

// DedupPolicy 同一用户重复扫码的处理方式
type DedupPolicy string

const (
	DedupNone  DedupPolicy = "none"  // 每次扫码都记录
	DedupDaily DedupPolicy = "daily" // 同一 UTC 自然日只记一次
)

// 统计最多回看的天数
const maxStatsDays = 90

// PartnerLookup 打卡只需要按追踪码/ID 查商户
type PartnerLookup interface {
	GetByID(ctx context.Context, id string) (*partnerModel.Partner, error)
	GetByTrackingCode(ctx context.Context, code string) (*partnerModel.Partner, error)
}

type CheckInService interface {
	GetPartnerByTrackingCode(ctx context.Context, trackingCode string) (*partnerModel.PartnerInfo, error)
	RecordCheckIn(ctx context.Context, userID, trackingCode string) (*model.CheckInResult, error)
	// DailyStats 最近 days 天（含今天）的每日打卡数
	DailyStats(ctx context.Context, partnerID string, days int) ([]model.DailyStat, error)
}

type checkInService struct {
	repo     repository.CheckInRepository
	stats    repository.StatsRepository
	partners PartnerLookup
	dedup    DedupPolicy
	locker   lock.Locker
	now      func() time.Time
}

// NewCheckInService locker 用于 daily 去重时串行化同一用户同一商户的扫码，可为 nil
func NewCheckInService(repo repository.CheckInRepository, stats repository.StatsRepository, partners PartnerLookup, dedup DedupPolicy, locker lock.Locker) CheckInService {
	if dedup == "" {
		dedup = DedupNone
	}
	if locker == nil {
		locker = lock.NopLocker{}
	}
	return &checkInService{
		repo:     repo,
		stats:    stats,
		partners: partners,
		dedup:    dedup,
		locker:   locker,
		now:      utils.NowUTC,
	}
}

func dailyKey(userID, partnerID string, day time.Time) string {
	return fmt.Sprintf("checkin:daily:%s:%s:%s", userID, partnerID, day.Format("2006-01-02"))
}

func (s *checkInService) activePartner(ctx context.Context, trackingCode string) (*partnerModel.Partner, error) {
	partner, err := s.partners.GetByTrackingCode(ctx, trackingCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPartnerNotFound
		}
		return nil, err
	}
	if !partner.Active {
		return nil, ErrPartnerNotFound
	}
	return partner, nil
}

func (s *checkInService) GetPartnerByTrackingCode(ctx context.Context, trackingCode string) (*partnerModel.PartnerInfo, error) {
	partner, err := s.activePartner(ctx, trackingCode)
	if err != nil {
		return nil, err
	}
	info := partner.Info()
	return &info, nil
}

func (s *checkInService) RecordCheckIn(ctx context.Context, userID, trackingCode string) (*model.CheckInResult, error) {
	if userID == "" {
		metrics.CheckIn("rejected")
		return nil, ErrUnauthenticated
	}

	partner, err := s.activePartner(ctx, trackingCode)
	if err != nil {
		metrics.CheckIn("rejected")
		return nil, err
	}

	now := s.now()
	if s.dedup == DedupDaily {
		dayStart := now.Truncate(24 * time.Hour)

		// 先查后写，需持锁；锁不可用时退化为尽力去重
		key := dailyKey(userID, partner.ID, dayStart)
		release, err := s.locker.Acquire(ctx, key)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger.Log.Warn("Check-in lock unavailable, dedup is best-effort", zap.String("key", key), zap.Error(err))
			release = func() {}
		}
		defer release()

		existing, err := s.repo.FindSince(ctx, userID, partner.ID, dayStart)
		if err == nil {
			metrics.CheckIn("duplicate")
			return &model.CheckInResult{CheckIn: existing, Partner: partner.Info(), Duplicate: true}, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	checkIn := &model.CheckIn{
		UserID:      userID,
		PartnerID:   partner.ID,
		CheckedInAt: now,
	}
	if err := s.repo.Create(ctx, checkIn); err != nil {
		return nil, err
	}

	metrics.CheckIn("recorded")
	logger.Log.Info("Check-in recorded",
		zap.String("user_id", userID),
		zap.String("partner_id", partner.ID),
	)
	return &model.CheckInResult{CheckIn: checkIn, Partner: partner.Info()}, nil
}

func (s *checkInService) DailyStats(ctx context.Context, partnerID string, days int) ([]model.DailyStat, error) {
	if !partnerModel.ValidID(partnerID) {
		return nil, ErrPartnerNotFound
	}
	if _, err := s.partners.GetByID(ctx, partnerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPartnerNotFound
		}
		return nil, err
	}

	if days <= 0 {
		days = 7
	}
	if days > maxStatsDays {
		days = maxStatsDays
	}
	since := s.now().Truncate(24*time.Hour).AddDate(0, 0, -(days - 1))
	return s.stats.DailyCounts(ctx, partnerID, since)
}
