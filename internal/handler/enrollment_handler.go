package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saveyours/booking-api/internal/dto"
	"github.com/saveyours/booking-api/internal/models"
	appErrors "github.com/saveyours/booking-api/pkg/errors"
	"github.com/saveyours/booking-api/pkg/response"
)

type enrollmentService interface {
	List(ctx context.Context, query dto.EnrollmentQuery) ([]models.EnrollmentDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Complete(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	SetOnlineCourse(ctx context.Context, id string, req dto.OnlineCourseRequest) (*models.EnrollmentDetail, error)
	Cancel(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Restore(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}

// EnrollmentHandler exposes enrollment administration endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param session_id query string false "Filter by session"
// @Param status query string false "pending, confirmed, completed or cancelled"
// @Param email query string false "Filter by customer email"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	var query dto.EnrollmentQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid enrollment filters"))
		return
	}
	items, pagination, err := h.enrollments.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get an enrollment
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /admin/enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	h.respond(c, h.enrollments.Get)
}

// Complete godoc
// @Summary Mark attendance complete
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/enrollments/{id}/complete [post]
func (h *EnrollmentHandler) Complete(c *gin.Context) {
	h.respond(c, h.enrollments.Complete)
}

// SetOnlineCourse godoc
// @Summary Record online course completion
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Param payload body dto.OnlineCourseRequest true "Completion flag"
// @Success 200 {object} response.Envelope
// @Router /admin/enrollments/{id}/online-course [put]
func (h *EnrollmentHandler) SetOnlineCourse(c *gin.Context) {
	var req dto.OnlineCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid online course payload"))
		return
	}
	item, err := h.enrollments.SetOnlineCourse(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Cancel godoc
// @Summary Cancel an enrollment
// @Description Releases the seat held by the enrollment
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /admin/enrollments/{id}/cancel [post]
func (h *EnrollmentHandler) Cancel(c *gin.Context) {
	h.respond(c, h.enrollments.Cancel)
}

// Restore godoc
// @Summary Restore a cancelled enrollment
// @Description Re-takes a seat; fails with 409 when the session is full or cancelled
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/enrollments/{id}/restore [post]
func (h *EnrollmentHandler) Restore(c *gin.Context) {
	h.respond(c, h.enrollments.Restore)
}

func (h *EnrollmentHandler) respond(c *gin.Context, action func(context.Context, string) (*models.EnrollmentDetail, error)) {
	item, err := action(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}
