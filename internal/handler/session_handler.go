package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/saveyours/booking-api/internal/dto"
	"github.com/saveyours/booking-api/internal/middleware"
	"github.com/saveyours/booking-api/internal/models"
	"github.com/saveyours/booking-api/internal/service"
	appErrors "github.com/saveyours/booking-api/pkg/errors"
	"github.com/saveyours/booking-api/pkg/response"
)

type sessionService interface {
	ListPublic(ctx context.Context, classID string, page, pageSize int) ([]models.SessionDetail, *models.Pagination, bool, error)
	List(ctx context.Context, query dto.SessionQuery) ([]models.SessionDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.SessionDetail, error)
	Create(ctx context.Context, req dto.CreateSessionRequest) (*models.SessionDetail, error)
	Update(ctx context.Context, id string, req dto.UpdateSessionRequest) (*models.SessionDetail, error)
	Cancel(ctx context.Context, id string) (*dto.CancelSessionResponse, error)
}

type rosterExporter interface {
	SessionRoster(ctx context.Context, sessionID, format string) (*service.ExportResult, error)
}

// SessionHandler exposes the storefront calendar and session administration.
type SessionHandler struct {
	sessions sessionService
	exports  rosterExporter
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(sessions sessionService, exports rosterExporter) *SessionHandler {
	return &SessionHandler{sessions: sessions, exports: exports}
}

// ListPublic godoc
// @Summary List bookable sessions
// @Description Upcoming scheduled sessions with remaining seats, for the storefront calendar
// @Tags Sessions
// @Produce json
// @Param class_id query string false "Filter by class"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) ListPublic(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	sessions, pagination, cacheHit, err := h.sessions.ListPublic(c.Request.Context(), strings.TrimSpace(c.Query("class_id")), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, sessions, pagination, middleware.ExtractMeta(c))
}

// GetPublic godoc
// @Summary Get a session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetPublic(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if session.Status == models.SessionStatusCancelled {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "session not found"))
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// List godoc
// @Summary List sessions (admin)
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param class_id query string false "Filter by class"
// @Param status query string false "scheduled, full or cancelled"
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	var query dto.SessionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session filters"))
		return
	}

	sessions, pagination, err := h.sessions.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, pagination)
}

// Get godoc
// @Summary Get a session (admin)
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /admin/sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Create godoc
// @Summary Schedule a session
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Router /admin/sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}
	session, err := h.sessions.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Update godoc
// @Summary Update a session
// @Description Capacity may not drop below the seats already booked
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param payload body dto.UpdateSessionRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/sessions/{id} [patch]
func (h *SessionHandler) Update(c *gin.Context) {
	var req dto.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}
	session, err := h.sessions.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Cancel godoc
// @Summary Cancel a session
// @Description Cancels the session and every active enrollment in it
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /admin/sessions/{id}/cancel [post]
func (h *SessionHandler) Cancel(c *gin.Context) {
	res, err := h.sessions.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Roster godoc
// @Summary Download a session roster
// @Tags Sessions
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /admin/sessions/{id}/roster [get]
func (h *SessionHandler) Roster(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "roster export unavailable"))
		return
	}
	result, err := h.exports.SessionRoster(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Body)
}
