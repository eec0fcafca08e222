package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	partnerModel "balkly_rewards/internal/domain/partner/model"
	"balkly_rewards/internal/domain/voucher/model"
	"balkly_rewards/internal/domain/voucher/repository"
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
	ErrOfferNotFound   = errors.New("offer not found")
	ErrInvalidOffer    = errors.New("offer is inactive or belongs to another partner")
	ErrVoucherNotFound = errors.New("voucher not found")
	ErrAlreadyRedeemed = errors.New("voucher already redeemed")
	ErrExpired         = errors.New("voucher expired")
	// ErrConflict 条件更新未命中且重读后仍无法判定终态
	ErrConflict       = errors.New("voucher state changed concurrently")
	ErrIssuanceFailed = errors.New("could not issue voucher")
)

// Catalog 券码流程对商户目录的只读依赖
type Catalog interface {
	GetByID(ctx context.Context, id string) (*partnerModel.Partner, error)
	GetOffer(ctx context.Context, id string) (*partnerModel.Offer, error)
}

type VoucherService interface {
	// IssueVoucher 返回的 bool 表示是否新建；已有未过期的券时原样返回
	IssueVoucher(ctx context.Context, userID, partnerID string, offerID *string) (*model.Voucher, bool, error)
	GetVoucher(ctx context.Context, code string) (*model.VoucherView, error)
	// Redeem 已核销/已过期时同时返回券码详情与错误，便于前端展示核销时间
	Redeem(ctx context.Context, code, staffID string) (*model.VoucherView, error)
	ListMine(ctx context.Context, userID string, offset, limit int) ([]model.Voucher, int64, error)
}

// RedemptionNotifier 核销成功后通知券码持有人，实现方需异步且不阻塞
type RedemptionNotifier interface {
	NotifyRedeemed(userID, code, partnerName string)
}

// Options 签发策略与可替换依赖
type Options struct {
	Window          time.Duration
	MaxCodeAttempts int
	Codes           CodeGenerator
	Locker          lock.Locker        // nil 时只依赖唯一索引
	Notifier        RedemptionNotifier // nil 时不推送
	Now             func() time.Time
}

type voucherService struct {
	repo    repository.VoucherRepository
	catalog Catalog
	opts    Options
}

func NewVoucherService(repo repository.VoucherRepository, catalog Catalog, opts Options) VoucherService {
	if opts.Window <= 0 {
		opts.Window = 24 * time.Hour
	}
	if opts.MaxCodeAttempts <= 0 {
		opts.MaxCodeAttempts = 5
	}
	if opts.Codes == nil {
		opts.Codes = NewCodeGenerator(16)
	}
	if opts.Locker == nil {
		opts.Locker = lock.NopLocker{}
	}
	if opts.Now == nil {
		opts.Now = utils.NowUTC
	}

	return &voucherService{repo: repo, catalog: catalog, opts: opts}
}

func claimKey(userID, partnerID string, offerID *string) string {
	offer := "-"
	if offerID != nil {
		offer = *offerID
	}
	return fmt.Sprintf("voucher:claim:%s:%s:%s", userID, partnerID, offer)
}

func (s *voucherService) IssueVoucher(ctx context.Context, userID, partnerID string, offerID *string) (*model.Voucher, bool, error) {
	if userID == "" {
		return nil, false, ErrUnauthenticated
	}

	// 1. 校验商户与优惠
	if !partnerModel.ValidID(partnerID) {
		return nil, false, ErrPartnerNotFound
	}
	partner, err := s.catalog.GetByID(ctx, partnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrPartnerNotFound
		}
		return nil, false, err
	}
	if !partner.Active {
		return nil, false, ErrPartnerNotFound
	}

	if offerID != nil {
		if !partnerModel.ValidID(*offerID) {
			return nil, false, ErrOfferNotFound
		}
		offer, err := s.catalog.GetOffer(ctx, *offerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, false, ErrOfferNotFound
			}
			return nil, false, err
		}
		if !offer.Active || offer.PartnerID != partner.ID {
			return nil, false, ErrInvalidOffer
		}
	}

	// 2. 同一领取 key 串行化；锁不可用时由唯一索引兜底
	key := claimKey(userID, partnerID, offerID)
	release, err := s.opts.Locker.Acquire(ctx, key)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}
		logger.Log.Warn("Issue lock unavailable, relying on unique index", zap.String("key", key), zap.Error(err))
		release = func() {}
	}
	defer release()

	// 3. 已有未过期的券直接返回
	now := s.opts.Now()
	existing, err := s.repo.FindActive(ctx, userID, partnerID, offerID)
	switch {
	case err == nil:
		if existing.EffectiveStatus(now) == model.StatusIssued {
			metrics.VoucherIssued("reused")
			return existing, false, nil
		}
		// 逻辑已过期但仍为 issued，先落库 expired 释放唯一索引
		if _, err := s.repo.MarkExpired(ctx, existing.Code, now); err != nil {
			return nil, false, fmt.Errorf("expire stale voucher: %w", err)
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, err
	}

	// 4. 新建
	return s.create(ctx, userID, partnerID, offerID, now)
}

func (s *voucherService) create(ctx context.Context, userID, partnerID string, offerID *string, now time.Time) (*model.Voucher, bool, error) {
	for attempt := 1; attempt <= s.opts.MaxCodeAttempts; attempt++ {
		code, err := s.opts.Codes()
		if err != nil {
			return nil, false, err
		}

		exists, err := s.repo.CodeExists(ctx, code)
		if err != nil {
			return nil, false, err
		}
		if exists {
			continue
		}

		voucher := &model.Voucher{
			Code:      code,
			UserID:    userID,
			PartnerID: partnerID,
			OfferID:   offerID,
			Status:    model.StatusIssued,
			IssuedAt:  now,
			ExpiresAt: now.Add(s.opts.Window),
		}

		err = s.repo.Create(ctx, voucher)
		switch {
		case err == nil:
			metrics.VoucherIssued("created")
			logger.Log.Info("Voucher issued",
				zap.String("user_id", userID),
				zap.String("partner_id", partnerID),
				zap.Time("expires_at", voucher.ExpiresAt),
			)
			return voucher, true, nil
		case errors.Is(err, repository.ErrDuplicateCode):
			continue
		case errors.Is(err, repository.ErrDuplicateActive):
			// 并发请求先插入成功，返回对方创建的券
			active, ferr := s.repo.FindActive(ctx, userID, partnerID, offerID)
			if ferr != nil {
				return nil, false, fmt.Errorf("%w: %v", ErrConflict, ferr)
			}
			metrics.VoucherIssued("reused")
			return active, false, nil
		default:
			return nil, false, err
		}
	}

	logger.Log.Error("Voucher code generation exhausted",
		zap.String("user_id", userID),
		zap.Int("attempts", s.opts.MaxCodeAttempts),
	)
	return nil, false, ErrIssuanceFailed
}

func (s *voucherService) GetVoucher(ctx context.Context, code string) (*model.VoucherView, error) {
	code = NormalizeCode(code)
	v, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}

	// 只读：过期只体现在返回状态上
	return s.buildView(ctx, v, v.EffectiveStatus(s.opts.Now()))
}

func (s *voucherService) Redeem(ctx context.Context, code, staffID string) (*model.VoucherView, error) {
	code = NormalizeCode(code)
	v, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.VoucherRedemption("not_found")
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}

	now := s.opts.Now()
	if view, err := s.terminal(ctx, v, now); err != nil {
		return view, err
	}

	ok, err := s.repo.MarkRedeemed(ctx, code, staffID, now)
	if err != nil {
		return nil, fmt.Errorf("redeem voucher: %w", err)
	}
	if !ok {
		return s.resolveLostRace(ctx, code)
	}

	v.Status = model.StatusRedeemed
	v.RedeemedAt = &now
	if staffID != "" {
		v.RedeemedBy = &staffID
	}
	metrics.VoucherRedemption("redeemed")
	logger.Log.Info("Voucher redeemed",
		zap.String("partner_id", v.PartnerID),
		zap.String("staff_id", staffID),
	)

	view := s.viewOrPartial(ctx, v, model.StatusRedeemed)
	s.notifyRedeemed(v.UserID, v.Code, view.Partner.CompanyName)
	return view, nil
}

// terminal 已核销或已过期时返回对应错误；仍可核销时返回 (nil, nil)
func (s *voucherService) terminal(ctx context.Context, v *model.Voucher, now time.Time) (*model.VoucherView, error) {
	switch v.EffectiveStatus(now) {
	case model.StatusRedeemed:
		metrics.VoucherRedemption("already_redeemed")
		return s.viewOrPartial(ctx, v, model.StatusRedeemed), ErrAlreadyRedeemed
	case model.StatusExpired:
		if err := s.persistExpired(ctx, v, now); err != nil {
			return nil, err
		}
		metrics.VoucherRedemption("expired")
		return s.viewOrPartial(ctx, v, model.StatusExpired), ErrExpired
	}
	return nil, nil
}

// resolveLostRace 条件更新未命中：重读一次映射为已核销/已过期，不重试写入
func (s *voucherService) resolveLostRace(ctx context.Context, code string) (*model.VoucherView, error) {
	fresh, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConflict, err)
	}

	if view, err := s.terminal(ctx, fresh, s.opts.Now()); err != nil {
		return view, err
	}
	metrics.VoucherRedemption("conflict")
	return nil, ErrConflict
}

func (s *voucherService) persistExpired(ctx context.Context, v *model.Voucher, now time.Time) error {
	if v.Status != model.StatusIssued {
		return nil
	}
	if _, err := s.repo.MarkExpired(ctx, v.Code, now); err != nil {
		return fmt.Errorf("expire voucher: %w", err)
	}
	v.Status = model.StatusExpired
	return nil
}

func (s *voucherService) ListMine(ctx context.Context, userID string, offset, limit int) ([]model.Voucher, int64, error) {
	if userID == "" {
		return nil, 0, ErrUnauthenticated
	}

	vouchers, total, err := s.repo.ListByUser(ctx, userID, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	// 只在返回值上体现过期，不落库
	now := s.opts.Now()
	for i := range vouchers {
		vouchers[i].Status = vouchers[i].EffectiveStatus(now)
	}
	return vouchers, total, nil
}

// buildView 商户/优惠已下架时仍返回券码本身的信息
func (s *voucherService) buildView(ctx context.Context, v *model.Voucher, status model.Status) (*model.VoucherView, error) {
	partner, err := s.catalog.GetByID(ctx, v.PartnerID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		partner = nil
	}

	var offer *partnerModel.Offer
	if v.OfferID != nil {
		offer, err = s.catalog.GetOffer(ctx, *v.OfferID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
			offer = nil
		}
	}

	return model.NewVoucherView(v, status, partner, offer), nil
}

// viewOrPartial 核销结果已确定，展示信息查询失败不影响返回
func (s *voucherService) viewOrPartial(ctx context.Context, v *model.Voucher, status model.Status) *model.VoucherView {
	view, err := s.buildView(ctx, v, status)
	if err != nil {
		logger.Log.Warn("Voucher view lookup failed", zap.String("partner_id", v.PartnerID), zap.Error(err))
		return model.NewVoucherView(v, status, nil, nil)
	}
	return view
}

func (s *voucherService) notifyRedeemed(userID, code, partnerName string) {
	if s.opts.Notifier == nil {
		return
	}
	s.opts.Notifier.NotifyRedeemed(userID, code, partnerName)
}
