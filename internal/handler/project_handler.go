package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/naufal-dev/fyp-api/internal/models"
	"github.com/naufal-dev/fyp-api/internal/service"
	appErrors "github.com/naufal-dev/fyp-api/pkg/errors"
	"github.com/naufal-dev/fyp-api/pkg/response"
)

// ProjectHandler wires the project lifecycle to HTTP routes.
type ProjectHandler struct {
	projects *service.ProjectService
}

// NewProjectHandler constructs a new ProjectHandler.
func NewProjectHandler(projects *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

type deadlinePayload struct {
	Deadline time.Time `json:"deadline" binding:"required"`
}

type attachFilePayload struct {
	FileName  string `json:"file_name" binding:"required"`
	FilePath  string `json:"file_path" binding:"required"`
	SizeBytes int64  `json:"size_bytes"`
}

// Submit godoc
// @Summary Submit a project proposal
// @Tags Projects
// @Accept json
// @Produce json
// @Param payload body service.SubmitProjectRequest true "Proposal payload"
// @Success 201 {object} response.Envelope
// @Router /projects [post]
func (h *ProjectHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SubmitProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid proposal payload"))
		return
	}
	project, err := h.projects.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, project)
}

// Get godoc
// @Summary Get project detail with files and feedback
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id} [get]
func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.projects.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// List godoc
// @Summary List projects
// @Tags Projects
// @Produce json
// @Param status query string false "Filter by status"
// @Param student query string false "Filter by student id"
// @Param supervisor query string false "Filter by supervisor id"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /projects [get]
func (h *ProjectHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.ProjectFilter{
		StudentID:    c.Query("student"),
		SupervisorID: c.Query("supervisor"),
		SortBy:       c.Query("sort"),
		SortOrder:    c.Query("order"),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.ProjectStatus(raw)
		filter.Status = &status
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	// Students and teachers only ever see their own slice.
	switch claims.Role {
	case models.RoleStudent:
		filter.StudentID = claims.UserID
	case models.RoleTeacher:
		filter.SupervisorID = claims.UserID
	}

	projects, pagination, err := h.projects.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, projects, pagination)
}

// Approve godoc
// @Summary Approve a pending proposal
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/approve [post]
func (h *ProjectHandler) Approve(c *gin.Context) {
	project, err := h.projects.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// Reject godoc
// @Summary Reject a pending proposal
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/reject [post]
func (h *ProjectHandler) Reject(c *gin.Context) {
	project, err := h.projects.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// Complete godoc
// @Summary Mark an approved project completed
// @Tags Projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/complete [post]
func (h *ProjectHandler) Complete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	project, err := h.projects.Complete(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// SetDeadline godoc
// @Summary Set the project deadline
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param payload body deadlinePayload true "Deadline payload"
// @Success 200 {object} response.Envelope
// @Router /projects/{id}/deadline [put]
func (h *ProjectHandler) SetDeadline(c *gin.Context) {
	var req deadlinePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid deadline payload"))
		return
	}
	project, err := h.projects.SetDeadline(c.Request.Context(), c.Param("id"), req.Deadline)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

// AddFeedback godoc
// @Summary Leave supervisor feedback on a project
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param payload body service.AddFeedbackRequest true "Feedback payload"
// @Success 201 {object} response.Envelope
// @Router /projects/{id}/feedback [post]
func (h *ProjectHandler) AddFeedback(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.AddFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid feedback payload"))
		return
	}
	feedback, err := h.projects.AddFeedback(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, feedback)
}

// AttachFile godoc
// @Summary Register an uploaded deliverable on a project
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param payload body attachFilePayload true "File metadata"
// @Success 201 {object} response.Envelope
// @Router /projects/{id}/files [post]
func (h *ProjectHandler) AttachFile(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req attachFilePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid file payload"))
		return
	}
	file := &models.ProjectFile{
		FileName:  req.FileName,
		FilePath:  req.FilePath,
		SizeBytes: req.SizeBytes,
	}
	file, err := h.projects.AttachFile(c.Request.Context(), c.Param("id"), claims.UserID, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, file)
}
