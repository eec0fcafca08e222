package handler

import (
	"errors"
	"net/http"

	"balkly_rewards/internal/domain/voucher/service"
	"balkly_rewards/internal/pkg/middleware"
	"balkly_rewards/pkg/response"
	"balkly_rewards/pkg/utils"

	"github.com/gin-gonic/gin"
)

type VoucherHandler struct {
	service service.VoucherService
}

func NewVoucherHandler(service service.VoucherService) *VoucherHandler {
	return &VoucherHandler{service: service}
}

type IssueVoucherRequest struct {
	PartnerID string  `json:"partnerId" binding:"required,uuid"`
	OfferID   *string `json:"offerId" binding:"omitempty,uuid"`
}

// IssueVoucher 领取券码；已有未过期券码时原样返回 (200)，新建返回 201
// @Summary 领取券码
// @Tags Voucher
// @Accept json
// @Produce json
// @Security Bearer
// @Param body body IssueVoucherRequest true "Claim"
// @Success 201 {object} response.Response
// @Success 200 {object} response.Response
// @Router /vouchers [post]
func (h *VoucherHandler) IssueVoucher(c *gin.Context) {
	var req IssueVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	userID, _ := middleware.CurrentUserID(c)
	voucher, created, err := h.service.IssueVoucher(c.Request.Context(), userID, req.PartnerID, req.OfferID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	if created {
		response.Created(c, voucher)
		return
	}
	response.Success(c, voucher)
}

// GetVoucher 券码详情（二维码页、核销前预览）
// @Summary 查询券码
// @Tags Voucher
// @Produce json
// @Param code path string true "Voucher code"
// @Success 200 {object} response.Response
// @Router /vouchers/{code} [get]
func (h *VoucherHandler) GetVoucher(c *gin.Context) {
	view, err := h.service.GetVoucher(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, view)
}

// Redeem 店员扫码核销
// @Summary 核销券码
// @Tags Voucher
// @Produce json
// @Security Bearer
// @Param code path string true "Voucher code"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 410 {object} response.Response
// @Router /vouchers/{code}/redeem [post]
func (h *VoucherHandler) Redeem(c *gin.Context) {
	staffID, _ := middleware.CurrentUserID(c)
	view, err := h.service.Redeem(c.Request.Context(), c.Param("code"), staffID)
	if err != nil {
		// 已核销/已过期时仍带上券码详情
		switch {
		case errors.Is(err, service.ErrAlreadyRedeemed):
			response.ErrorWithData(c, http.StatusConflict, response.ErrVoucherRedeemed, "Voucher already redeemed", view)
			return
		case errors.Is(err, service.ErrExpired):
			response.ErrorWithData(c, http.StatusGone, response.ErrVoucherExpired, "Voucher expired", view)
			return
		}
		h.handleError(c, err)
		return
	}
	response.Success(c, view)
}

// ListMine 我的券码
// @Summary 我的券码
// @Tags Voucher
// @Produce json
// @Security Bearer
// @Param page query int false "Page"
// @Param limit query int false "Limit"
// @Success 200 {object} response.Response{data=utils.PageResult}
// @Router /vouchers/mine [get]
func (h *VoucherHandler) ListMine(c *gin.Context) {
	var p utils.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	offset, limit := p.GetPageOffset()

	userID, _ := middleware.CurrentUserID(c)
	list, total, err := h.service.ListMine(c.Request.Context(), userID, offset, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, utils.NewPageResult(list, total, p))
}

func (h *VoucherHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Authentication required")
	case errors.Is(err, service.ErrVoucherNotFound):
		response.Error(c, http.StatusNotFound, response.ErrVoucherNotFound, "Voucher not found")
	case errors.Is(err, service.ErrPartnerNotFound):
		response.Error(c, http.StatusNotFound, response.ErrPartnerNotFound, "Partner not found")
	case errors.Is(err, service.ErrOfferNotFound):
		response.Error(c, http.StatusNotFound, response.ErrOfferInvalid, "Offer not found")
	case errors.Is(err, service.ErrInvalidOffer):
		response.Error(c, http.StatusUnprocessableEntity, response.ErrOfferInvalid, "Offer is not available for this partner")
	case errors.Is(err, service.ErrConflict):
		response.Error(c, http.StatusConflict, response.ErrVoucherConflict, "Voucher was modified concurrently, please retry")
	case errors.Is(err, service.ErrIssuanceFailed):
		response.Error(c, http.StatusServiceUnavailable, response.ErrVoucherIssueFailed, "Could not issue voucher, please retry")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Internal server error")
	}
}
