package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/naufal-dev/fyp-api/internal/models"
	appErrors "github.com/naufal-dev/fyp-api/pkg/errors"
	"github.com/naufal-dev/fyp-api/pkg/mailer"
)

type requestRepo interface {
	Create(ctx context.Context, request *models.SupervisorRequest) error
	FindByID(ctx context.Context, id string) (*models.SupervisorRequest, error)
	ExistsPending(ctx context.Context, studentID, supervisorID string) (bool, error)
	Decide(ctx context.Context, id string, status models.RequestStatus, decidedBy string, reason *string) error
	List(ctx context.Context, filter models.RequestFilter) ([]models.SupervisorRequestDetail, int, error)
}

type assignmentEngine interface {
	Assign(ctx context.Context, studentID, supervisorID string) (*models.Project, error)
}

// CreateRequestPayload describes a student's supervision request.
type CreateRequestPayload struct {
	SupervisorID string `json:"supervisor_id" validate:"required"`
	Message      string `json:"message" validate:"required,min=3"`
}

const acceptedMailTemplate = `Hello {{.StudentName}},

{{.SupervisorName}} has accepted your supervision request. Your project is
now supervised; check your dashboard for next steps.
`

const rejectedMailTemplate = `Hello {{.StudentName}},

Your supervision request to {{.SupervisorName}} was declined.
{{if .Reason}}Reason: {{.Reason}}
{{end}}You can submit a request to another supervisor from your dashboard.
`

// RequestService drives the supervision request ledger. PENDING requests
// transition once to APPROVED or REJECTED and never re-open.
type RequestService struct {
	requests  requestRepo
	users     userReader
	projects  projectReader
	engine    assignmentEngine
	notifier  Notifier
	mail      mailer.Service
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRequestService creates a service instance.
func NewRequestService(
	requests requestRepo,
	users userReader,
	projects projectReader,
	engine assignmentEngine,
	notifier Notifier,
	mail mailer.Service,
	validate *validator.Validate,
	logger *zap.Logger,
) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{
		requests:  requests,
		users:     users,
		projects:  projects,
		engine:    engine,
		notifier:  notifier,
		mail:      mail,
		validator: validate,
		logger:    logger,
	}
}

// Create files a new pending request from a student to a teacher. The
// duplicate guard covers the exact (student, supervisor) pair only;
// parallel pending requests to different teachers are allowed, and the
// already-has-a-supervisor check lives in the HTTP handler.
func (s *RequestService) Create(ctx context.Context, studentID string, payload CreateRequestPayload) (*models.SupervisorRequest, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}

	student, err := s.loadUser(ctx, studentID, "student")
	if err != nil {
		return nil, err
	}
	if !student.IsStudent() {
		return nil, appErrors.Clone(appErrors.ErrInvalidRole, "only students can request supervision")
	}

	supervisor, err := s.loadUser(ctx, payload.SupervisorID, "supervisor")
	if err != nil {
		return nil, err
	}
	if !supervisor.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrInvalidRole, "requested supervisor is not a teacher")
	}

	exists, err := s.requests.ExistsPending(ctx, studentID, payload.SupervisorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a pending request to this supervisor already exists")
	}

	request := &models.SupervisorRequest{
		StudentID:    studentID,
		SupervisorID: payload.SupervisorID,
		Message:      payload.Message,
		Status:       models.RequestPending,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}

	s.notifier.Dispatch(models.Notification{
		UserID:   supervisor.ID,
		Message:  fmt.Sprintf("%s requested your supervision: %q", student.FullName, payload.Message),
		Category: models.CategoryRequest,
		Link:     "/requests/" + request.ID,
		Priority: models.PriorityLow,
	})

	return request, nil
}

// Accept is the teacher-initiated approval. The acting teacher must be
// the request's named supervisor and the student's project must already
// be approved. The assignment commits first; only then is the request
// marked decided, so a failed assignment leaves the request pending and
// retryable.
func (s *RequestService) Accept(ctx context.Context, requestID, actingTeacherID string) (*models.SupervisorRequest, error) {
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.RequestPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("request already %s", request.Status))
	}
	if request.SupervisorID != actingTeacherID {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "request is addressed to another supervisor")
	}

	project, err := s.projects.FindActiveByStudent(ctx, request.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "student must have an approved project")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if project.Status != models.ProjectApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "student must have an approved project")
	}

	if _, err := s.engine.Assign(ctx, request.StudentID, request.SupervisorID); err != nil {
		return nil, err
	}

	if err := s.decide(ctx, request, models.RequestApproved, actingTeacherID, nil); err != nil {
		return nil, err
	}

	s.notifyDecision(ctx, request, acceptedMailTemplate, "Supervision request accepted",
		fmt.Sprintf("Your supervision request was accepted by %s", s.userName(ctx, request.SupervisorID)))

	return request, nil
}

// Reject is the teacher-initiated rejection. Ownership and state rules
// match Accept; no project or capacity side effects occur.
func (s *RequestService) Reject(ctx context.Context, requestID, actingTeacherID string, reason *string) (*models.SupervisorRequest, error) {
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.RequestPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("request already %s", request.Status))
	}
	if request.SupervisorID != actingTeacherID {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "request is addressed to another supervisor")
	}

	if err := s.decide(ctx, request, models.RequestRejected, actingTeacherID, reason); err != nil {
		return nil, err
	}

	s.notifyDecision(ctx, request, rejectedMailTemplate, "Supervision request declined",
		fmt.Sprintf("Your supervision request was declined by %s", s.userName(ctx, request.SupervisorID)))

	return request, nil
}

// AdminApprove is the admin-mediated approval path. It guards that the
// student has no current supervisor before approving; the approved
// project requirement is still enforced by the assignment transaction.
func (s *RequestService) AdminApprove(ctx context.Context, requestID, adminID string) (*models.SupervisorRequest, error) {
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.RequestPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("request already %s", request.Status))
	}

	student, err := s.loadUser(ctx, request.StudentID, "student")
	if err != nil {
		return nil, err
	}
	if student.SupervisorID != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "student already has a supervisor")
	}

	if _, err := s.engine.Assign(ctx, request.StudentID, request.SupervisorID); err != nil {
		return nil, err
	}

	if err := s.decide(ctx, request, models.RequestApproved, adminID, nil); err != nil {
		return nil, err
	}

	s.notifyDecision(ctx, request, acceptedMailTemplate, "Supervision request approved",
		fmt.Sprintf("Your supervision request was approved; %s is now your supervisor", s.userName(ctx, request.SupervisorID)))

	return request, nil
}

// AdminReject is the admin-mediated rejection path.
func (s *RequestService) AdminReject(ctx context.Context, requestID, adminID string, reason *string) (*models.SupervisorRequest, error) {
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.RequestPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("request already %s", request.Status))
	}

	if err := s.decide(ctx, request, models.RequestRejected, adminID, reason); err != nil {
		return nil, err
	}

	s.notifyDecision(ctx, request, rejectedMailTemplate, "Supervision request declined",
		"Your supervision request was declined by the FYP office")

	return request, nil
}

// List returns requests visible to the given filter.
func (s *RequestService) List(ctx context.Context, filter models.RequestFilter) ([]models.SupervisorRequestDetail, *models.Pagination, error) {
	requests, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return requests, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a request by id, restricted by the repository filters at
// the handler level.
func (s *RequestService) Get(ctx context.Context, requestID string) (*models.SupervisorRequest, error) {
	return s.loadRequest(ctx, requestID)
}

func (s *RequestService) loadRequest(ctx context.Context, id string) (*models.SupervisorRequest, error) {
	request, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return request, nil
}

func (s *RequestService) loadUser(ctx context.Context, id, label string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, label+" not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+label)
	}
	return user, nil
}

func (s *RequestService) decide(ctx context.Context, request *models.SupervisorRequest, status models.RequestStatus, decidedBy string, reason *string) error {
	if err := s.requests.Decide(ctx, request.ID, status, decidedBy, reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidState, "request was already decided")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request")
	}
	request.Status = status
	request.DecidedBy = &decidedBy
	request.Reason = reason
	return nil
}

// notifyDecision fans out the high-priority dashboard notification and
// the templated email to the student. Both are best effort.
func (s *RequestService) notifyDecision(ctx context.Context, request *models.SupervisorRequest, tmpl, subject, message string) {
	s.notifier.Dispatch(models.Notification{
		UserID:   request.StudentID,
		Message:  message,
		Category: models.CategoryRequest,
		Link:     "/requests/" + request.ID,
		Priority: models.PriorityHigh,
	})

	if s.mail == nil {
		return
	}
	student, err := s.users.FindByID(ctx, request.StudentID)
	if err != nil {
		s.logger.Warn("skipping decision email, student lookup failed", zap.String("request_id", request.ID), zap.Error(err))
		return
	}
	data := struct {
		StudentName    string
		SupervisorName string
		Reason         string
	}{
		StudentName:    student.FullName,
		SupervisorName: s.userName(ctx, request.SupervisorID),
	}
	if request.Reason != nil {
		data.Reason = *request.Reason
	}
	body, err := mailer.Render(tmpl, data)
	if err != nil {
		s.logger.Warn("skipping decision email, template render failed", zap.String("request_id", request.ID), zap.Error(err))
		return
	}
	s.mail.Send(mailer.Message{
		ToName:    student.FullName,
		ToAddress: student.Email,
		Subject:   subject,
		Body:      body,
	})
}

func (s *RequestService) userName(ctx context.Context, id string) string {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return "your supervisor"
	}
	return user.FullName
}
