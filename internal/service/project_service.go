package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/naufal-dev/fyp-api/internal/models"
	appErrors "github.com/naufal-dev/fyp-api/pkg/errors"
)

type projectRepo interface {
	Create(ctx context.Context, project *models.Project) error
	FindByID(ctx context.Context, id string) (*models.Project, error)
	FindActiveByStudent(ctx context.Context, studentID string) (*models.Project, error)
	UpdateStatus(ctx context.Context, id string, status models.ProjectStatus) error
	SetDeadline(ctx context.Context, id string, deadline time.Time) error
	AddFile(ctx context.Context, file *models.ProjectFile) error
	AddFeedback(ctx context.Context, feedback *models.ProjectFeedback) error
	ListFiles(ctx context.Context, projectID string) ([]models.ProjectFile, error)
	ListFeedback(ctx context.Context, projectID string) ([]models.ProjectFeedback, error)
	List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, int, error)
}

// SubmitProjectRequest is a student's proposal payload.
type SubmitProjectRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=200"`
	Description string `json:"description" validate:"required,min=10"`
}

// AddFeedbackRequest is a supervisor comment payload.
type AddFeedbackRequest struct {
	Comment string `json:"comment" validate:"required,min=3"`
}

// ProjectService manages the proposal lifecycle that gates supervision:
// PENDING -> APPROVED | REJECTED by an admin, APPROVED -> COMPLETED by
// the assigned supervisor. Rejected proposals are resubmitted as new
// records, never reused.
type ProjectService struct {
	projects  projectRepo
	users     userReader
	notifier  Notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProjectService creates a service instance.
func NewProjectService(projects projectRepo, users userReader, notifier Notifier, validate *validator.Validate, logger *zap.Logger) *ProjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectService{projects: projects, users: users, notifier: notifier, validator: validate, logger: logger}
}

// Submit files a new proposal for the student. A student holds at most
// one active (non-rejected) project at a time.
func (s *ProjectService) Submit(ctx context.Context, studentID string, req SubmitProjectRequest) (*models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid proposal payload")
	}

	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.IsStudent() {
		return nil, appErrors.Clone(appErrors.ErrInvalidRole, "only students can submit proposals")
	}

	if _, err := s.projects.FindActiveByStudent(ctx, studentID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has an active project")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active project")
	}

	project := &models.Project{
		StudentID:   studentID,
		Title:       req.Title,
		Description: req.Description,
		Status:      models.ProjectPending,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create project")
	}
	return project, nil
}

// Approve moves a pending proposal to APPROVED (admin review).
func (s *ProjectService) Approve(ctx context.Context, projectID string) (*models.Project, error) {
	return s.review(ctx, projectID, models.ProjectApproved, "Your project proposal %q was approved")
}

// Reject moves a pending proposal to REJECTED (admin review). The
// student may resubmit a fresh proposal afterwards.
func (s *ProjectService) Reject(ctx context.Context, projectID string) (*models.Project, error) {
	return s.review(ctx, projectID, models.ProjectRejected, "Your project proposal %q was rejected")
}

func (s *ProjectService) review(ctx context.Context, projectID string, status models.ProjectStatus, notice string) (*models.Project, error) {
	project, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.Status != models.ProjectPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("only pending projects can be reviewed (current status: %s)", project.Status))
	}
	if err := s.projects.UpdateStatus(ctx, projectID, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update project status")
	}
	project.Status = status

	s.notifier.Dispatch(models.Notification{
		UserID:   project.StudentID,
		Message:  fmt.Sprintf(notice, project.Title),
		Category: models.CategoryProject,
		Link:     "/projects/" + project.ID,
		Priority: models.PriorityLow,
	})
	return project, nil
}

// Complete marks an approved project as finished. Only the assigned
// supervisor may complete it.
func (s *ProjectService) Complete(ctx context.Context, projectID, actingTeacherID string) (*models.Project, error) {
	project, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.SupervisorID == nil || *project.SupervisorID != actingTeacherID {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "only the assigned supervisor can complete this project")
	}
	if project.Status != models.ProjectApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("only approved projects can be completed (current status: %s)", project.Status))
	}
	if err := s.projects.UpdateStatus(ctx, projectID, models.ProjectCompleted); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete project")
	}
	project.Status = models.ProjectCompleted

	s.notifier.Dispatch(models.Notification{
		UserID:   project.StudentID,
		Message:  fmt.Sprintf("Your project %q was marked completed", project.Title),
		Category: models.CategoryProject,
		Link:     "/projects/" + project.ID,
		Priority: models.PriorityHigh,
	})
	return project, nil
}

// SetDeadline stores the submission deadline (admin action).
func (s *ProjectService) SetDeadline(ctx context.Context, projectID string, deadline time.Time) (*models.Project, error) {
	project, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !project.Status.Active() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "cannot set a deadline on a rejected project")
	}
	if err := s.projects.SetDeadline(ctx, projectID, deadline); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set deadline")
	}
	project.Deadline = &deadline

	s.notifier.Dispatch(models.Notification{
		UserID:   project.StudentID,
		Message:  fmt.Sprintf("Deadline for %q set to %s", project.Title, deadline.Format("2006-01-02")),
		Category: models.CategoryProject,
		Link:     "/projects/" + project.ID,
		Priority: models.PriorityLow,
	})
	return project, nil
}

// AddFeedback records a comment from the assigned supervisor.
func (s *ProjectService) AddFeedback(ctx context.Context, projectID, authorID string, req AddFeedbackRequest) (*models.ProjectFeedback, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}
	project, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.SupervisorID == nil || *project.SupervisorID != authorID {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "only the assigned supervisor can leave feedback")
	}

	feedback := &models.ProjectFeedback{
		ProjectID: projectID,
		AuthorID:  authorID,
		Comment:   req.Comment,
	}
	if err := s.projects.AddFeedback(ctx, feedback); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add feedback")
	}

	s.notifier.Dispatch(models.Notification{
		UserID:   project.StudentID,
		Message:  fmt.Sprintf("New feedback on %q", project.Title),
		Category: models.CategoryProject,
		Link:     "/projects/" + project.ID,
		Priority: models.PriorityLow,
	})
	return feedback, nil
}

// AttachFile records an uploaded deliverable. Only the owning student
// may attach files, and only while the project is active.
func (s *ProjectService) AttachFile(ctx context.Context, projectID, studentID string, file *models.ProjectFile) (*models.ProjectFile, error) {
	project, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "only the project owner can upload deliverables")
	}
	if !project.Status.Active() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "cannot upload to a rejected project")
	}
	file.ProjectID = projectID
	if err := s.projects.AddFile(ctx, file); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach file")
	}
	return file, nil
}

// Get returns a project with its attachments and feedback.
func (s *ProjectService) Get(ctx context.Context, projectID string) (*models.ProjectDetail, error) {
	project, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	files, err := s.projects.ListFiles(ctx, projectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list files")
	}
	feedback, err := s.projects.ListFeedback(ctx, projectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list feedback")
	}
	return &models.ProjectDetail{Project: *project, Files: files, Feedback: feedback}, nil
}

// List returns projects matching the filter.
func (s *ProjectService) List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, *models.Pagination, error) {
	projects, total, err := s.projects.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list projects")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return projects, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

func (s *ProjectService) load(ctx context.Context, id string) (*models.Project, error) {
	project, err := s.projects.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	return project, nil
}
