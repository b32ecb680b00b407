package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saveyours/booking-api/internal/dto"
	"github.com/saveyours/booking-api/internal/models"
	appErrors "github.com/saveyours/booking-api/pkg/errors"
	"github.com/saveyours/booking-api/pkg/response"
)

type voucherService interface {
	List(ctx context.Context, sessionID, status string) ([]models.Voucher, error)
	Stats(ctx context.Context, sessionID string) (models.VoucherStats, error)
	Add(ctx context.Context, sessionID string, req dto.AddVouchersRequest) (*dto.AddVouchersResponse, error)
	Backfill(ctx context.Context, sessionID string) (*dto.BackfillResult, error)
	Get(ctx context.Context, id string) (*models.Voucher, error)
	UpdateURL(ctx context.Context, id string, req dto.UpdateVoucherRequest) (*models.Voucher, error)
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, req dto.DeleteVouchersRequest) (int, error)
	Release(ctx context.Context, id string) (*models.Voucher, error)
	Assign(ctx context.Context, id string, req dto.AssignVoucherRequest) (*models.Voucher, error)
}

// VoucherHandler manages per-session pools of online course access URLs.
type VoucherHandler struct {
	vouchers voucherService
	logger   *zap.Logger
}

// NewVoucherHandler constructs VoucherHandler.
func NewVoucherHandler(vouchers voucherService, logger *zap.Logger) *VoucherHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VoucherHandler{vouchers: vouchers, logger: logger}
}

// List godoc
// @Summary List a session's vouchers
// @Tags Vouchers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param status query string false "available or assigned"
// @Success 200 {object} response.Envelope
// @Router /admin/sessions/{id}/vouchers [get]
func (h *VoucherHandler) List(c *gin.Context) {
	items, err := h.vouchers.List(c.Request.Context(), c.Param("id"), c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Stats godoc
// @Summary Voucher pool counts
// @Tags Vouchers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /admin/sessions/{id}/vouchers/stats [get]
func (h *VoucherHandler) Stats(c *gin.Context) {
	stats, err := h.vouchers.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Add godoc
// @Summary Import voucher URLs
// @Description Blank lines are skipped; URLs already in the pool are imported and reported as duplicates
// @Tags Vouchers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param payload body dto.AddVouchersRequest true "URLs"
// @Success 201 {object} response.Envelope
// @Router /admin/sessions/{id}/vouchers [post]
func (h *VoucherHandler) Add(c *gin.Context) {
	var req dto.AddVouchersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid voucher payload"))
		return
	}
	res, err := h.vouchers.Add(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Backfill godoc
// @Summary Assign vouchers to enrollments that are missing one
// @Tags Vouchers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /admin/sessions/{id}/vouchers/backfill [post]
func (h *VoucherHandler) Backfill(c *gin.Context) {
	res, err := h.vouchers.Backfill(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Get godoc
// @Summary Get a voucher
// @Tags Vouchers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Voucher ID"
// @Success 200 {object} response.Envelope
// @Router /admin/vouchers/{id} [get]
func (h *VoucherHandler) Get(c *gin.Context) {
	voucher, err := h.vouchers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, voucher, nil)
}

// Update godoc
// @Summary Replace a voucher URL
// @Tags Vouchers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Voucher ID"
// @Param payload body dto.UpdateVoucherRequest true "New URL"
// @Success 200 {object} response.Envelope
// @Router /admin/vouchers/{id} [put]
func (h *VoucherHandler) Update(c *gin.Context) {
	var req dto.UpdateVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid voucher payload"))
		return
	}
	voucher, err := h.vouchers.UpdateURL(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, voucher, nil)
}

// Delete godoc
// @Summary Delete a voucher
// @Tags Vouchers
// @Security BearerAuth
// @Param id path string true "Voucher ID"
// @Success 204
// @Router /admin/vouchers/{id} [delete]
func (h *VoucherHandler) Delete(c *gin.Context) {
	if err := h.vouchers.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteMany godoc
// @Summary Delete several vouchers
// @Tags Vouchers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.DeleteVouchersRequest true "Voucher IDs"
// @Success 200 {object} response.Envelope
// @Router /admin/vouchers/delete [post]
func (h *VoucherHandler) DeleteMany(c *gin.Context) {
	var req dto.DeleteVouchersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid delete payload"))
		return
	}
	deleted, err := h.vouchers.DeleteMany(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": deleted}, nil)
}

// Release godoc
// @Summary Return a voucher to the pool
// @Tags Vouchers
// @Produce json
// @Security BearerAuth
// @Param id path string true "Voucher ID"
// @Success 200 {object} response.Envelope
// @Router /admin/vouchers/{id}/release [post]
func (h *VoucherHandler) Release(c *gin.Context) {
	voucher, err := h.vouchers.Release(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, voucher, nil)
}

// Assign godoc
// @Summary Assign a voucher by hand
// @Tags Vouchers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Voucher ID"
// @Param payload body dto.AssignVoucherRequest true "Buyer"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/vouchers/{id}/assign [post]
func (h *VoucherHandler) Assign(c *gin.Context) {
	var req dto.AssignVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	voucher, err := h.vouchers.Assign(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("voucher assigned manually", zap.String("voucher_id", voucher.ID), zap.String("admin", actorEmail(c)))
	response.JSON(c, http.StatusOK, voucher, nil)
}
