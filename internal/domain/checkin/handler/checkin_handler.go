package handler

import (
	"errors"
	"net/http"
	"strconv"

	"balkly_rewards/internal/domain/checkin/service"
	"balkly_rewards/internal/pkg/middleware"
	"balkly_rewards/pkg/response"

	"github.com/gin-gonic/gin"
)

type CheckInHandler struct {
	service service.CheckInService
}

func NewCheckInHandler(service service.CheckInService) *CheckInHandler {
	return &CheckInHandler{service: service}
}

// partnerURI 统计接口的商户 ID，非 UUID 按商户不存在处理
type partnerURI struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// GetPartner 扫码落地页
// @Summary 按追踪码查询商户
// @Tags CheckIn
// @Produce json
// @Param trackingCode path string true "Tracking code"
// @Success 200 {object} response.Response
// @Router /checkin/{trackingCode} [get]
func (h *CheckInHandler) GetPartner(c *gin.Context) {
	info, err := h.service.GetPartnerByTrackingCode(c.Request.Context(), c.Param("trackingCode"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Success(c, info)
}

// RecordCheckIn 到店打卡
// @Summary 到店打卡
// @Tags CheckIn
// @Produce json
// @Security Bearer
// @Param trackingCode path string true "Tracking code"
// @Success 201 {object} response.Response
// @Success 200 {object} response.Response "当天已打卡"
// @Router /checkin/{trackingCode} [post]
func (h *CheckInHandler) RecordCheckIn(c *gin.Context) {
	userID, _ := middleware.CurrentUserID(c)
	result, err := h.service.RecordCheckIn(c.Request.Context(), userID, c.Param("trackingCode"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	if result.Duplicate {
		response.Success(c, result)
		return
	}
	response.Created(c, result)
}

// DailyStats 商户每日打卡数 (管理员)
// @Summary 商户打卡统计
// @Tags CheckIn
// @Produce json
// @Security Bearer
// @Param id path string true "Partner ID"
// @Param days query int false "Days (default 7, max 90)"
// @Success 200 {object} response.Response
// @Router /partners/{id}/checkins/stats [get]
func (h *CheckInHandler) DailyStats(c *gin.Context) {
	var uri partnerURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.Error(c, http.StatusNotFound, response.ErrPartnerNotFound, "Partner not found")
		return
	}

	days := 7
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "days must be a positive integer")
			return
		}
		days = n
	}

	stats, err := h.service.DailyStats(c.Request.Context(), uri.ID, days)
	if err != nil {
		if errors.Is(err, service.ErrPartnerNotFound) {
			response.Error(c, http.StatusNotFound, response.ErrPartnerNotFound, "Partner not found")
			return
		}
		h.handleError(c, err)
		return
	}
	response.Success(c, stats)
}

func (h *CheckInHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Authentication required")
	case errors.Is(err, service.ErrPartnerNotFound):
		response.Error(c, http.StatusNotFound, response.ErrTrackingCodeInvalid, "Unknown tracking code")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, "Internal server error")
	}
}
