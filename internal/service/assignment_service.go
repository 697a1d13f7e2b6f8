package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/naufal-dev/fyp-api/internal/models"
	"github.com/naufal-dev/fyp-api/internal/repository"
	appErrors "github.com/naufal-dev/fyp-api/pkg/errors"
)

// Notifier dispatches a dashboard notification. Delivery is best effort
// and must never fail the operation that triggered it.
type Notifier interface {
	Dispatch(n models.Notification)
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type projectReader interface {
	FindActiveByStudent(ctx context.Context, studentID string) (*models.Project, error)
}

type supervisorAssigner interface {
	AssignSupervisor(ctx context.Context, studentID, teacherID string, fallbackCapacity int) (*models.Project, error)
}

// AssignmentService enforces the supervision invariants: a teacher's
// load never exceeds capacity, a student holds at most one supervisor,
// and assignment requires an approved project. The actual mutation runs
// inside a single transaction owned by the assignment repository.
type AssignmentService struct {
	users            userReader
	projects         projectReader
	assignments      supervisorAssigner
	notifier         Notifier
	fallbackCapacity int
	logger           *zap.Logger
}

// NewAssignmentService creates a service instance.
func NewAssignmentService(users userReader, projects projectReader, assignments supervisorAssigner, notifier Notifier, fallbackCapacity int, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fallbackCapacity <= 0 {
		fallbackCapacity = 4
	}
	return &AssignmentService{
		users:            users,
		projects:         projects,
		assignments:      assignments,
		notifier:         notifier,
		fallbackCapacity: fallbackCapacity,
		logger:           logger,
	}
}

// Assign performs the capacity-checked assignment without any
// notification side effects. Preconditions are validated up front so
// failures carry a message naming the exact reason; the transaction
// re-validates everything under row locks before writing.
func (s *AssignmentService) Assign(ctx context.Context, studentID, supervisorID string) (*models.Project, error) {
	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.IsStudent() {
		return nil, appErrors.Clone(appErrors.ErrInvalidRole, "user is not a student")
	}
	if student.SupervisorID != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "student already has a supervisor")
	}

	supervisor, err := s.users.FindByID(ctx, supervisorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "supervisor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load supervisor")
	}
	if !supervisor.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrInvalidRole, "user is not a teacher")
	}

	project, err := s.projects.FindActiveByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "student has no active project")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if project.Status != models.ProjectApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("project must be approved before assignment (current status: %s)", project.Status))
	}
	if project.SupervisorID != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "project already has a supervisor")
	}

	updated, err := s.assignments.AssignSupervisor(ctx, studentID, supervisorID, s.fallbackCapacity)
	if err != nil {
		return nil, s.mapAssignmentError(err)
	}
	return updated, nil
}

// DirectAssign is the admin path: assignment plus low-priority
// notifications to both parties.
func (s *AssignmentService) DirectAssign(ctx context.Context, studentID, supervisorID string) (*models.Project, error) {
	project, err := s.Assign(ctx, studentID, supervisorID)
	if err != nil {
		return nil, err
	}

	student, serr := s.users.FindByID(ctx, studentID)
	supervisor, terr := s.users.FindByID(ctx, supervisorID)
	if serr != nil || terr != nil {
		s.logger.Warn("assignment committed but participant lookup for notification failed",
			zap.String("student_id", studentID), zap.String("supervisor_id", supervisorID))
		return project, nil
	}

	s.notifier.Dispatch(models.Notification{
		UserID:   student.ID,
		Message:  fmt.Sprintf("You have been assigned to supervisor %s", supervisor.FullName),
		Category: models.CategoryAssignment,
		Link:     "/projects/" + project.ID,
		Priority: models.PriorityLow,
	})
	s.notifier.Dispatch(models.Notification{
		UserID:   supervisor.ID,
		Message:  fmt.Sprintf("You have been assigned to supervise project %q by %s", project.Title, student.FullName),
		Category: models.CategoryAssignment,
		Link:     "/projects/" + project.ID,
		Priority: models.PriorityLow,
	})

	return project, nil
}

func (s *AssignmentService) mapAssignmentError(err error) error {
	switch {
	case errors.Is(err, repository.ErrStudentNotFound):
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	case errors.Is(err, repository.ErrTeacherNotFound):
		return appErrors.Clone(appErrors.ErrNotFound, "supervisor not found")
	case errors.Is(err, repository.ErrStudentAlreadySupervised):
		return appErrors.Clone(appErrors.ErrInvalidState, "student already has a supervisor")
	case errors.Is(err, repository.ErrProjectNotAssignable):
		return appErrors.Clone(appErrors.ErrInvalidState, "student must have an approved project without a supervisor")
	case errors.Is(err, repository.ErrTeacherAtCapacity):
		return appErrors.Clone(appErrors.ErrCapacityExceeded, "supervisor has reached maximum student capacity")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign supervisor")
	}
}
