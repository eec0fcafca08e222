package service

import (
	"context"
	"errors"
	"io"
	"time"

	"balkly_rewards/internal/domain/partner/model"
	"balkly_rewards/pkg/cache"
	"balkly_rewards/pkg/logger"

	"go.uber.org/zap"
)

// CachedPartnerService 优惠目录读缓存，缓存故障时直接回源
type CachedPartnerService struct {
	PartnerService
	cache cache.CacheService
	ttl   time.Duration
}

func NewCachedPartnerService(svc PartnerService, c cache.CacheService, ttl time.Duration) PartnerService {
	return &CachedPartnerService{
		PartnerService: svc,
		cache:          c,
		ttl:            ttl,
	}
}

type trackingCodeEntry struct {
	Partner model.PartnerInfo `json:"partner"`
	Offers  []model.Offer     `json:"offers"`
}

func offersKey(partnerID string) string {
	return "partner:offers:" + partnerID
}

func trackingCodeKey(trackingCode string) string {
	return "partner:tracking:" + trackingCode
}

func (s *CachedPartnerService) ListOffers(ctx context.Context, partnerID string) ([]model.Offer, error) {
	key := offersKey(partnerID)

	var offers []model.Offer
	if err := s.cache.Get(ctx, key, &offers); err == nil {
		return offers, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Log.Warn("Catalog cache read failed", zap.String("key", key), zap.Error(err))
	}

	offers, err := s.PartnerService.ListOffers(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, offers)
	return offers, nil
}

func (s *CachedPartnerService) ListOffersByTrackingCode(ctx context.Context, trackingCode string) (*model.PartnerInfo, []model.Offer, error) {
	key := trackingCodeKey(trackingCode)

	var entry trackingCodeEntry
	if err := s.cache.Get(ctx, key, &entry); err == nil {
		return &entry.Partner, entry.Offers, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Log.Warn("Catalog cache read failed", zap.String("key", key), zap.Error(err))
	}

	info, offers, err := s.PartnerService.ListOffersByTrackingCode(ctx, trackingCode)
	if err != nil {
		return nil, nil, err
	}
	s.store(ctx, key, trackingCodeEntry{Partner: *info, Offers: offers})
	return info, offers, nil
}

// UploadLogo logo 变更后清掉该商户的目录缓存，落地页缓存等 TTL 过期
func (s *CachedPartnerService) UploadLogo(ctx context.Context, partnerID, filename string, body io.Reader) (string, error) {
	url, err := s.PartnerService.UploadLogo(ctx, partnerID, filename, body)
	if err != nil {
		return "", err
	}

	if err := s.cache.Delete(ctx, offersKey(partnerID)); err != nil {
		logger.Log.Warn("Catalog cache invalidation failed", zap.String("partner_id", partnerID), zap.Error(err))
	}
	return url, nil
}

func (s *CachedPartnerService) store(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		logger.Log.Warn("Catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}
