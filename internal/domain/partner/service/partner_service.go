package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"balkly_rewards/internal/domain/partner/model"
	"balkly_rewards/internal/domain/partner/repository"
	"balkly_rewards/internal/pkg/uploader"

	"gorm.io/gorm"
)

var (
	ErrPartnerNotFound    = errors.New("partner not found")
	ErrUploadUnavailable  = errors.New("object storage is not configured")
	ErrUnsupportedLogoExt = errors.New("logo must be a png, jpg, webp or svg image")
)

var logoExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".webp": true, ".svg": true}

type PartnerService interface {
	ListOffers(ctx context.Context, partnerID string) ([]model.Offer, error)
	ListOffersByTrackingCode(ctx context.Context, trackingCode string) (*model.PartnerInfo, []model.Offer, error)
	UploadLogo(ctx context.Context, partnerID, filename string, body io.Reader) (string, error)
}

type partnerService struct {
	repo     repository.PartnerRepository
	uploader uploader.Uploader
}

// NewPartnerService up 可为 nil，此时上传 logo 返回 ErrUploadUnavailable
func NewPartnerService(repo repository.PartnerRepository, up uploader.Uploader) PartnerService {
	return &partnerService{repo: repo, uploader: up}
}

// ListOffers 商户不存在或已停用时返回 ErrPartnerNotFound
func (s *partnerService) ListOffers(ctx context.Context, partnerID string) ([]model.Offer, error) {
	if !model.ValidID(partnerID) {
		return nil, ErrPartnerNotFound
	}
	partner, err := s.repo.GetByID(ctx, partnerID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if !partner.Active {
		return nil, ErrPartnerNotFound
	}
	return s.repo.ListActiveOffers(ctx, partner.ID)
}

func (s *partnerService) ListOffersByTrackingCode(ctx context.Context, trackingCode string) (*model.PartnerInfo, []model.Offer, error) {
	partner, err := s.repo.GetByTrackingCode(ctx, trackingCode)
	if err != nil {
		return nil, nil, mapNotFound(err)
	}
	if !partner.Active {
		return nil, nil, ErrPartnerNotFound
	}

	offers, err := s.repo.ListActiveOffers(ctx, partner.ID)
	if err != nil {
		return nil, nil, err
	}
	info := partner.Info()
	return &info, offers, nil
}

func (s *partnerService) UploadLogo(ctx context.Context, partnerID, filename string, body io.Reader) (string, error) {
	if s.uploader == nil {
		return "", ErrUploadUnavailable
	}
	if !logoExtensions[strings.ToLower(path.Ext(filename))] {
		return "", ErrUnsupportedLogoExt
	}

	if !model.ValidID(partnerID) {
		return "", ErrPartnerNotFound
	}
	if _, err := s.repo.GetByID(ctx, partnerID); err != nil {
		return "", mapNotFound(err)
	}

	url, err := s.uploader.Upload("partners/logo", filename, body)
	if err != nil {
		return "", fmt.Errorf("upload logo: %w", err)
	}

	if err := s.repo.UpdateLogo(ctx, partnerID, url); err != nil {
		return "", mapNotFound(err)
	}
	return url, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrPartnerNotFound
	}
	return err
}
