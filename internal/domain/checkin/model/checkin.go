package model

import (
	"time"

	partnerModel "balkly_rewards/internal/domain/partner/model"
	baseModel "balkly_rewards/pkg/model"
)

// CheckIn 用户扫描商户二维码的到店记录，只追加不修改
type CheckIn struct {
	baseModel.BaseModel
	UserID      string    `gorm:"type:varchar(64);not null;index:idx_check_ins_user_partner" json:"userId"`
	PartnerID   string    `gorm:"type:uuid;not null;index:idx_check_ins_user_partner;index:idx_check_ins_partner_time" json:"partnerId"`
	CheckedInAt time.Time `gorm:"not null;index:idx_check_ins_partner_time" json:"checkedInAt"`
}

func (CheckIn) TableName() string {
	return "check_ins"
}

// CheckInResult Duplicate 为 true 表示按去重策略返回了当天已有的记录
type CheckInResult struct {
	CheckIn   *CheckIn                 `json:"checkIn"`
	Partner   partnerModel.PartnerInfo `json:"partner"`
	Duplicate bool                     `json:"duplicate"`
}

// DailyStat 按 UTC 自然日聚合的打卡数
type DailyStat struct {
	Day   time.Time `db:"day" json:"day"`
	Count int64     `db:"count" json:"count"`
}
