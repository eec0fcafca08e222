package model

import (
	baseModel "balkly_rewards/pkg/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BenefitType 优惠类型
type BenefitType string

const (
	BenefitPercentOff BenefitType = "percent_off" // BenefitValue 为折扣百分比
	BenefitFixedOff   BenefitType = "fixed_off"   // BenefitValue 为立减金额
	BenefitFreeItem   BenefitType = "free_item"   // BenefitValue 为赠品数量
)

func (t BenefitType) Valid() bool {
	switch t {
	case BenefitPercentOff, BenefitFixedOff, BenefitFreeItem:
		return true
	}
	return false
}

// Partner 合作商户
type Partner struct {
	baseModel.SoftDeleteModel
	CompanyName  string `gorm:"type:varchar(150);not null" json:"companyName"`
	CompanyLogo  string `gorm:"type:varchar(500)" json:"companyLogo"`
	TrackingCode string `gorm:"type:varchar(64);uniqueIndex;not null" json:"trackingCode"`
	Active       bool   `gorm:"not null;default:true" json:"active"`
}

// ValidID 商户主键为 UUID，格式不对的 ID 不会存在
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Info 公开展示字段（打卡落地页、券码详情）
func (p *Partner) Info() PartnerInfo {
	return PartnerInfo{
		ID:           p.ID,
		CompanyName:  p.CompanyName,
		CompanyLogo:  p.CompanyLogo,
		TrackingCode: p.TrackingCode,
	}
}

type PartnerInfo struct {
	ID           string `json:"id"`
	CompanyName  string `json:"companyName"`
	CompanyLogo  string `json:"companyLogo"`
	TrackingCode string `json:"trackingCode"`
}

// Offer 商户发布的优惠，券码流程中只读
type Offer struct {
	baseModel.SoftDeleteModel
	PartnerID    string              `gorm:"type:uuid;index;not null" json:"partnerId"`
	Title        string              `gorm:"type:varchar(200);not null" json:"title"`
	Description  string              `gorm:"type:text" json:"description"`
	BenefitType  BenefitType         `gorm:"type:varchar(20);not null" json:"benefitType"`
	BenefitValue decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"benefitValue"`
	MinPurchase  decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"minPurchase"`
	Terms        string              `gorm:"type:text" json:"terms"`
	Active       bool                `gorm:"not null;default:true" json:"active"`
}

// Summary 券面展示文案，例如 "20% off"、"10.50 off"
func (o *Offer) Summary() string {
	switch o.BenefitType {
	case BenefitPercentOff:
		return o.BenefitValue.String() + "% off"
	case BenefitFixedOff:
		return o.BenefitValue.StringFixed(2) + " off"
	case BenefitFreeItem:
		if o.BenefitValue.GreaterThan(decimal.NewFromInt(1)) {
			return o.BenefitValue.String() + " free items"
		}
		return "free item"
	}
	return o.Title
}
