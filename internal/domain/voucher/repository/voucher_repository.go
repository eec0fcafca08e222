package repository

import (
	"context"
	"errors"
	"time"

	"balkly_rewards/internal/domain/voucher/model"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

// 唯一约束名，与 migrations 保持一致
const (
	constraintCode        = "uq_vouchers_code"
	constraintActiveClaim = "uq_vouchers_active_claim"
	pgUniqueViolation     = "23505"
)

var (
	// ErrDuplicateCode 券码撞车，调用方重新生成
	ErrDuplicateCode = errors.New("voucher code already exists")
	// ErrDuplicateActive 并发领取时同一 (user, partner, offer) 已有有效券
	ErrDuplicateActive = errors.New("active voucher already exists for claim")
)

// VoucherRepository 券码读写均走主库，过期判断依赖最新状态
type VoucherRepository interface {
	Create(ctx context.Context, voucher *model.Voucher) error
	GetByCode(ctx context.Context, code string) (*model.Voucher, error)
	FindActive(ctx context.Context, userID, partnerID string, offerID *string) (*model.Voucher, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	MarkRedeemed(ctx context.Context, code, redeemedBy string, at time.Time) (bool, error)
	MarkExpired(ctx context.Context, code string, now time.Time) (bool, error)
	ExpireStale(ctx context.Context, now time.Time, limit int) (int64, error)
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.Voucher, int64, error)
}

type voucherRepository struct {
	db *gorm.DB
}

func NewVoucherRepository(db *gorm.DB) VoucherRepository {
	return &voucherRepository{db: db}
}

func (r *voucherRepository) primary(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Clauses(dbresolver.Write)
}

func (r *voucherRepository) Create(ctx context.Context, voucher *model.Voucher) error {
	err := r.db.WithContext(ctx).Create(voucher).Error
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch pgErr.ConstraintName {
		case constraintCode:
			return ErrDuplicateCode
		case constraintActiveClaim:
			return ErrDuplicateActive
		}
	}
	return err
}

func (r *voucherRepository) GetByCode(ctx context.Context, code string) (*model.Voucher, error) {
	var voucher model.Voucher
	if err := r.primary(ctx).Where("code = ?", code).First(&voucher).Error; err != nil {
		return nil, err
	}
	return &voucher, nil
}

// FindActive 最近一张仍为 issued 的券（可能已逻辑过期，由调用方判断）
func (r *voucherRepository) FindActive(ctx context.Context, userID, partnerID string, offerID *string) (*model.Voucher, error) {
	q := r.primary(ctx).Where("user_id = ? AND partner_id = ? AND status = ?", userID, partnerID, model.StatusIssued)
	if offerID == nil {
		q = q.Where("offer_id IS NULL")
	} else {
		q = q.Where("offer_id = ?", *offerID)
	}

	var voucher model.Voucher
	if err := q.Order("issued_at DESC").First(&voucher).Error; err != nil {
		return nil, err
	}
	return &voucher, nil
}

func (r *voucherRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.primary(ctx).Model(&model.Voucher{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

// MarkRedeemed 条件更新：仅 issued 且未过期时生效，返回是否由本次调用完成核销
func (r *voucherRepository) MarkRedeemed(ctx context.Context, code, redeemedBy string, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":      model.StatusRedeemed,
		"redeemed_at": at,
	}
	if redeemedBy != "" {
		updates["redeemed_by"] = redeemedBy
	}

	result := r.db.WithContext(ctx).Model(&model.Voucher{}).
		Where("code = ? AND status = ? AND expires_at >= ?", code, model.StatusIssued, at).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkExpired 条件更新：仅 issued 且已过期时落库 expired，不会覆盖核销
func (r *voucherRepository) MarkExpired(ctx context.Context, code string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Voucher{}).
		Where("code = ? AND status = ? AND expires_at < ?", code, model.StatusIssued, now).
		Update("status", model.StatusExpired)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ExpireStale 批量落库过期状态，供报表使用
func (r *voucherRepository) ExpireStale(ctx context.Context, now time.Time, limit int) (int64, error) {
	stale := r.db.Model(&model.Voucher{}).
		Select("id").
		Where("status = ? AND expires_at < ?", model.StatusIssued, now).
		Order("expires_at ASC").
		Limit(limit)

	result := r.db.WithContext(ctx).Model(&model.Voucher{}).
		Where("id IN (?) AND status = ? AND expires_at < ?", stale, model.StatusIssued, now).
		Update("status", model.StatusExpired)
	return result.RowsAffected, result.Error
}

func (r *voucherRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.Voucher, int64, error) {
	vouchers := make([]model.Voucher, 0)
	var total int64

	byUser := func() *gorm.DB {
		return r.primary(ctx).Model(&model.Voucher{}).Where("user_id = ?", userID)
	}
	if err := byUser().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := byUser().Order("issued_at DESC").Offset(offset).Limit(limit).Find(&vouchers).Error; err != nil {
		return nil, 0, err
	}
	return vouchers, total, nil
}
