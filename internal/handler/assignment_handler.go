package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/naufal-dev/fyp-api/internal/service"
	appErrors "github.com/naufal-dev/fyp-api/pkg/errors"
	"github.com/naufal-dev/fyp-api/pkg/response"
)

// AssignmentHandler exposes the admin direct-assignment endpoint.
type AssignmentHandler struct {
	assignments *service.AssignmentService
	metrics     *service.MetricsService
}

// NewAssignmentHandler constructs a new AssignmentHandler.
func NewAssignmentHandler(assignments *service.AssignmentService, metrics *service.MetricsService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments, metrics: metrics}
}

type directAssignPayload struct {
	StudentID    string `json:"student_id" binding:"required"`
	SupervisorID string `json:"supervisor_id" binding:"required"`
}

// DirectAssign godoc
// @Summary Directly assign a supervisor to a student
// @Description Admin-only path that bypasses the request workflow. The
// @Description student must hold an approved, unsupervised project and the
// @Description supervisor must have spare capacity.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body directAssignPayload true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) DirectAssign(c *gin.Context) {
	var payload directAssignPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	project, err := h.assignments.DirectAssign(c.Request.Context(), payload.StudentID, payload.SupervisorID)
	if err != nil {
		if h.metrics != nil {
			h.metrics.ObserveAssignment("rejected")
		}
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveAssignment("assigned")
	}
	response.JSON(c, http.StatusOK, project, nil)
}
