package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/naufal-dev/fyp-api/internal/models"
	"github.com/naufal-dev/fyp-api/internal/service"
	appErrors "github.com/naufal-dev/fyp-api/pkg/errors"
	"github.com/naufal-dev/fyp-api/pkg/response"
)

type requestService interface {
	Create(ctx context.Context, studentID string, payload service.CreateRequestPayload) (*models.SupervisorRequest, error)
	Accept(ctx context.Context, requestID, actingTeacherID string) (*models.SupervisorRequest, error)
	Reject(ctx context.Context, requestID, actingTeacherID string, reason *string) (*models.SupervisorRequest, error)
	AdminApprove(ctx context.Context, requestID, adminID string) (*models.SupervisorRequest, error)
	AdminReject(ctx context.Context, requestID, adminID string, reason *string) (*models.SupervisorRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.SupervisorRequestDetail, *models.Pagination, error)
	Get(ctx context.Context, requestID string) (*models.SupervisorRequest, error)
}

type studentLookup interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

// RequestHandler exposes the supervision request lifecycle over HTTP.
type RequestHandler struct {
	requests requestService
	users    studentLookup
}

// NewRequestHandler constructs a new RequestHandler.
func NewRequestHandler(requests requestService, users studentLookup) *RequestHandler {
	return &RequestHandler{requests: requests, users: users}
}

type rejectPayload struct {
	Reason *string `json:"reason"`
}

// Create godoc
// @Summary Request supervision from a teacher
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body service.CreateRequestPayload true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload service.CreateRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return
	}

	// Supervised students are bounced here, before the service ever
	// sees the request; the service only dedupes the exact pair.
	student, err := h.users.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if student.SupervisorID != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrConflict, "you already have a supervisor"))
		return
	}

	request, err := h.requests.Create(c.Request.Context(), claims.UserID, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// List godoc
// @Summary List supervision requests
// @Tags Requests
// @Produce json
// @Param status query string false "Filter by status"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.RequestFilter{}
	if raw := c.Query("status"); raw != "" {
		status := models.RequestStatus(raw)
		filter.Status = &status
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	switch claims.Role {
	case models.RoleStudent:
		filter.StudentID = claims.UserID
	case models.RoleTeacher:
		filter.SupervisorID = claims.UserID
	default:
		filter.StudentID = c.Query("student")
		filter.SupervisorID = c.Query("supervisor")
	}

	requests, pagination, err := h.requests.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Get godoc
// @Summary Get a supervision request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.requests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if claims.Role != models.RoleAdmin && request.StudentID != claims.UserID && request.SupervisorID != claims.UserID {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "request belongs to another user"))
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Accept godoc
// @Summary Accept a pending request addressed to the acting teacher
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/accept [post]
func (h *RequestHandler) Accept(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.requests.Accept(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Reject godoc
// @Summary Reject a pending request addressed to the acting teacher
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body rejectPayload false "Optional reason"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/reject [post]
func (h *RequestHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload rejectPayload
	_ = c.ShouldBindJSON(&payload)
	request, err := h.requests.Reject(c.Request.Context(), c.Param("id"), claims.UserID, payload.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// AdminApprove godoc
// @Summary Approve a pending request on behalf of the supervisor
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/approve [post]
func (h *RequestHandler) AdminApprove(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.requests.AdminApprove(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// AdminReject godoc
// @Summary Reject a pending request on behalf of the supervisor
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body rejectPayload false "Optional reason"
// @Success 200 {object} response.Envelope
// @Router /requests/{id}/decline [post]
func (h *RequestHandler) AdminReject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload rejectPayload
	_ = c.ShouldBindJSON(&payload)
	request, err := h.requests.AdminReject(c.Request.Context(), c.Param("id"), claims.UserID, payload.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}
