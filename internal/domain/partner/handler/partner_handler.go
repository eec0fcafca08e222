package handler

import (
	"errors"
	"net/http"

	"balkly_rewards/internal/domain/partner/model"
	"balkly_rewards/internal/domain/partner/service"
	"balkly_rewards/pkg/response"

	"github.com/gin-gonic/gin"
)

// maxLogoSize 2MB
const maxLogoSize = 2 << 20

type PartnerHandler struct {
	service service.PartnerService
}

func NewPartnerHandler(service service.PartnerService) *PartnerHandler {
	return &PartnerHandler{service: service}
}

// partnerURI 路径中的商户 ID，非 UUID 按商户不存在处理
type partnerURI struct {
	ID string `uri:"id" binding:"required,uuid"`
}

func bindPartnerID(c *gin.Context) (string, bool) {
	var uri partnerURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, http.StatusNotFound, response.ErrPartnerNotFound, "Partner not found")
		return "", false
	}
	return uri.ID, true
}

// OfferView 在 Offer 基础上附带券面文案
type OfferView struct {
	model.Offer
	Summary string `json:"summary"`
}

func toOfferViews(offers []model.Offer) []OfferView {
	views := make([]OfferView, 0, len(offers))
	for i := range offers {
		views = append(views, OfferView{Offer: offers[i], Summary: offers[i].Summary()})
	}
	return views
}

// ListOffers 商户的有效优惠
// @Summary 商户优惠列表
// @Tags Partner
// @Produce json
// @Param id path string true "Partner ID"
// @Success 200 {object} response.Response{data=[]OfferView}
// @Router /partners/{id}/offers [get]
func (h *PartnerHandler) ListOffers(c *gin.Context) {
	partnerID, ok := bindPartnerID(c)
	if !ok {
		return
	}
	offers, err := h.service.ListOffers(c.Request.Context(), partnerID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, toOfferViews(offers))
}

// ListOffersByTrackingCode 扫码落地页展示商户及优惠
// @Summary 按追踪码查询商户优惠
// @Tags Partner
// @Produce json
// @Param trackingCode path string true "Tracking code"
// @Success 200 {object} response.Response
// @Router /p/{trackingCode}/offers [get]
func (h *PartnerHandler) ListOffersByTrackingCode(c *gin.Context) {
	info, offers, err := h.service.ListOffersByTrackingCode(c.Request.Context(), c.Param("trackingCode"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"partner": info,
		"offers":  toOfferViews(offers),
	})
}

// UploadLogo 上传商户 logo (管理员)
// @Summary 上传商户 logo
// @Tags Partner
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Partner ID"
// @Param file formData file true "Logo"
// @Success 200 {object} response.Response{data=string} "URL"
// @Router /partners/{id}/logo [post]
func (h *PartnerHandler) UploadLogo(c *gin.Context) {
	partnerID, ok := bindPartnerID(c)
	if !ok {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "No file uploaded")
		return
	}
	if file.Size > maxLogoSize {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Logo exceeds 2MB")
		return
	}

	src, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Invalid form data")
		return
	}
	defer src.Close()

	url, err := h.service.UploadLogo(c.Request.Context(), partnerID, file.Filename, src)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, url)
}

func (h *PartnerHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPartnerNotFound):
		response.Error(c, http.StatusNotFound, response.ErrPartnerNotFound, "Partner not found")
	case errors.Is(err, service.ErrUnsupportedLogoExt):
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
	case errors.Is(err, service.ErrUploadUnavailable):
		response.Error(c, http.StatusServiceUnavailable, response.ErrUploadFailed, err.Error())
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Internal server error")
	}
}
