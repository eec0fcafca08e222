package model

import (
	"time"

	partnerModel "balkly_rewards/internal/domain/partner/model"
	baseModel "balkly_rewards/pkg/model"
)

// Status 券码状态；redeemed 与 expired 为终态
type Status string

const (
	StatusIssued   Status = "issued"
	StatusRedeemed Status = "redeemed"
	StatusExpired  Status = "expired"
)

// Voucher 用户对某个商户优惠的一次领取
type Voucher struct {
	baseModel.BaseModel
	Code       string     `gorm:"type:varchar(32);not null;uniqueIndex:uq_vouchers_code" json:"code"`
	UserID     string     `gorm:"type:varchar(64);not null;index" json:"userId"`
	PartnerID  string     `gorm:"type:uuid;not null;index" json:"partnerId"`
	OfferID    *string    `gorm:"type:uuid" json:"offerId"` // 为空表示商户级券
	Status     Status     `gorm:"type:varchar(16);not null;default:issued" json:"status"`
	IssuedAt   time.Time  `gorm:"not null" json:"issuedAt"`
	ExpiresAt  time.Time  `gorm:"not null;index" json:"expiresAt"`
	RedeemedAt *time.Time `json:"redeemedAt"`
	RedeemedBy *string    `gorm:"type:varchar(64)" json:"-"`
}

// EffectiveStatus 过期按当前时间计算，不依赖是否已落库
func (v *Voucher) EffectiveStatus(now time.Time) Status {
	if v.RedeemedAt != nil || v.Status == StatusRedeemed {
		return StatusRedeemed
	}
	if v.Status == StatusExpired || now.After(v.ExpiresAt) {
		return StatusExpired
	}
	return StatusIssued
}

// VoucherView 券码公开详情，用于二维码页和核销页
type VoucherView struct {
	Code       string                   `json:"code"`
	Status     Status                   `json:"status"`
	IssuedAt   time.Time                `json:"issuedAt"`
	ExpiresAt  time.Time                `json:"expiresAt"`
	RedeemedAt *time.Time               `json:"redeemedAt"`
	Partner    partnerModel.PartnerInfo `json:"partner"`
	Offer      *OfferView               `json:"offer"`
}

type OfferView struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Terms   string `json:"terms"`
}

// NewVoucherView status 由调用方按同一时刻计算后传入
func NewVoucherView(v *Voucher, status Status, partner *partnerModel.Partner, offer *partnerModel.Offer) *VoucherView {
	view := &VoucherView{
		Code:       v.Code,
		Status:     status,
		IssuedAt:   v.IssuedAt,
		ExpiresAt:  v.ExpiresAt,
		RedeemedAt: v.RedeemedAt,
		Partner:    partnerModel.PartnerInfo{ID: v.PartnerID},
	}
	if partner != nil {
		view.Partner = partner.Info()
	}
	if offer != nil {
		view.Offer = &OfferView{
			ID:      offer.ID,
			Title:   offer.Title,
			Summary: offer.Summary(),
			Terms:   offer.Terms,
		}
	}
	return view
}
