package repository

import (
	"context"

	"balkly_rewards/internal/domain/partner/model"

	"gorm.io/gorm"
)

// PartnerRepository 合作商户与优惠的读取；未找到时返回 gorm.ErrRecordNotFound
type PartnerRepository interface {
	GetByID(ctx context.Context, id string) (*model.Partner, error)
	GetByTrackingCode(ctx context.Context, code string) (*model.Partner, error)
	GetOffer(ctx context.Context, id string) (*model.Offer, error)
	ListActiveOffers(ctx context.Context, partnerID string) ([]model.Offer, error)
	UpdateLogo(ctx context.Context, partnerID, logoURL string) error
}

type partnerRepository struct {
	db *gorm.DB
}

func NewPartnerRepository(db *gorm.DB) PartnerRepository {
	return &partnerRepository{db: db}
}

func (r *partnerRepository) GetByID(ctx context.Context, id string) (*model.Partner, error) {
	var partner model.Partner
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&partner).Error; err != nil {
		return nil, err
	}
	return &partner, nil
}

func (r *partnerRepository) GetByTrackingCode(ctx context.Context, code string) (*model.Partner, error) {
	var partner model.Partner
	if err := r.db.WithContext(ctx).Where("tracking_code = ?", code).First(&partner).Error; err != nil {
		return nil, err
	}
	return &partner, nil
}

func (r *partnerRepository) GetOffer(ctx context.Context, id string) (*model.Offer, error) {
	var offer model.Offer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&offer).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

// ListActiveOffers 按创建时间排序，id 作为同一时刻的稳定次序
func (r *partnerRepository) ListActiveOffers(ctx context.Context, partnerID string) ([]model.Offer, error) {
	offers := make([]model.Offer, 0)
	err := r.db.WithContext(ctx).
		Where("partner_id = ? AND active = ?", partnerID, true).
		Order("created_at ASC, id ASC").
		Find(&offers).Error
	return offers, err
}

func (r *partnerRepository) UpdateLogo(ctx context.Context, partnerID, logoURL string) error {
	result := r.db.WithContext(ctx).Model(&model.Partner{}).
		Where("id = ?", partnerID).
		Update("company_logo", logoURL)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
