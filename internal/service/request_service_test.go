package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/naufal-dev/fyp-api/internal/models"
	appErrors "github.com/naufal-dev/fyp-api/pkg/errors"
)

type requestRepoStub struct {
	requests    map[string]*models.SupervisorRequest
	pending     bool
	pendingErr  error
	created     []*models.SupervisorRequest
	decideErr   error
	decideCalls int
}

func (s *requestRepoStub) Create(ctx context.Context, request *models.SupervisorRequest) error {
	request.ID = "request-new"
	s.created = append(s.created, request)
	return nil
}

func (s *requestRepoStub) FindByID(ctx context.Context, id string) (*models.SupervisorRequest, error) {
	if request, ok := s.requests[id]; ok {
		return request, nil
	}
	return nil, sql.ErrNoRows
}

func (s *requestRepoStub) ExistsPending(ctx context.Context, studentID, supervisorID string) (bool, error) {
	return s.pending, s.pendingErr
}

func (s *requestRepoStub) Decide(ctx context.Context, id string, status models.RequestStatus, decidedBy string, reason *string) error {
	s.decideCalls++
	return s.decideErr
}

func (s *requestRepoStub) List(ctx context.Context, filter models.RequestFilter) ([]models.SupervisorRequestDetail, int, error) {
	return nil, 0, nil
}

type engineStub struct {
	err   error
	calls int
}

func (s *engineStub) Assign(ctx context.Context, studentID, supervisorID string) (*models.Project, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	supervisor := supervisorID
	return &models.Project{ID: "project-1", StudentID: studentID, SupervisorID: &supervisor, Status: models.ProjectApproved}, nil
}

func pendingRequest() *models.SupervisorRequest {
	return &models.SupervisorRequest{
		ID:           "request-1",
		StudentID:    "student-1",
		SupervisorID: "teacher-1",
		Message:      "Please supervise my project",
		Status:       models.RequestPending,
	}
}

func newRequestService(requests *requestRepoStub, users userReaderStub, projects projectReaderStub, engine *engineStub, notifier *notifierStub) *RequestService {
	return NewRequestService(requests, users, projects, engine, notifier, nil, nil, zap.NewNop())
}

func TestRequestServiceCreate(t *testing.T) {
	users, projects := assignmentFixture()
	requests := &requestRepoStub{}
	notifier := &notifierStub{}
	svc := newRequestService(requests, users, projects, &engineStub{}, notifier)

	request, err := svc.Create(context.Background(), "student-1", CreateRequestPayload{SupervisorID: "teacher-1", Message: "Please supervise my project"})
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, request.Status)
	require.Len(t, requests.created, 1)

	// The teacher gets a dashboard ping; the student gets nothing yet.
	require.Len(t, notifier.dispatched, 1)
	assert.Equal(t, "teacher-1", notifier.dispatched[0].UserID)
	assert.Equal(t, models.PriorityLow, notifier.dispatched[0].Priority)
}

func TestRequestServiceCreateDuplicatePending(t *testing.T) {
	users, projects := assignmentFixture()
	requests := &requestRepoStub{pending: true}
	svc := newRequestService(requests, users, projects, &engineStub{}, &notifierStub{})

	_, err := svc.Create(context.Background(), "student-1", CreateRequestPayload{SupervisorID: "teacher-1", Message: "Please supervise my project"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, requests.created)
}

func TestRequestServiceCreateTargetNotTeacher(t *testing.T) {
	users, projects := assignmentFixture()
	users.users["student-2"] = &models.User{ID: "student-2", Role: models.RoleStudent}
	svc := newRequestService(&requestRepoStub{}, users, projects, &engineStub{}, &notifierStub{})

	_, err := svc.Create(context.Background(), "student-1", CreateRequestPayload{SupervisorID: "student-2", Message: "Please supervise my project"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidRole.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceAcceptAssignsAndDecides(t *testing.T) {
	users, projects := assignmentFixture()
	requests := &requestRepoStub{requests: map[string]*models.SupervisorRequest{"request-1": pendingRequest()}}
	engine := &engineStub{}
	notifier := &notifierStub{}
	svc := newRequestService(requests, users, projects, engine, notifier)

	request, err := svc.Accept(context.Background(), "request-1", "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, request.Status)
	assert.Equal(t, 1, engine.calls)
	assert.Equal(t, 1, requests.decideCalls)

	require.Len(t, notifier.dispatched, 1)
	assert.Equal(t, "student-1", notifier.dispatched[0].UserID)
	assert.Equal(t, models.PriorityHigh, notifier.dispatched[0].Priority)
}

func TestRequestServiceAcceptAlreadyDecided(t *testing.T) {
	users, projects := assignmentFixture()
	decided := pendingRequest()
	decided.Status = models.RequestApproved
	requests := &requestRepoStub{requests: map[string]*models.SupervisorRequest{"request-1": decided}}
	engine := &engineStub{}
	svc := newRequestService(requests, users, projects, engine, &notifierStub{})

	_, err := svc.Accept(context.Background(), "request-1", "teacher-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, engine.calls)
}

func TestRequestServiceAcceptForeignTeacher(t *testing.T) {
	users, projects := assignmentFixture()
	requests := &requestRepoStub{requests: map[string]*models.SupervisorRequest{"request-1": pendingRequest()}}
	svc := newRequestService(requests, users, projects, &engineStub{}, &notifierStub{})

	_, err := svc.Accept(context.Background(), "request-1", "teacher-9")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceAcceptRequiresApprovedProject(t *testing.T) {
	users, projects := assignmentFixture()
	projects.projects["student-1"].Status = models.ProjectPending
	requests := &requestRepoStub{requests: map[string]*models.SupervisorRequest{"request-1": pendingRequest()}}
	engine := &engineStub{}
	svc := newRequestService(requests, users, projects, engine, &notifierStub{})

	_, err := svc.Accept(context.Background(), "request-1", "teacher-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, engine.calls)
}

func TestRequestServiceAcceptFailedAssignmentLeavesPending(t *testing.T) {
	users, projects := assignmentFixture()
	requests := &requestRepoStub{requests: map[string]*models.SupervisorRequest{"request-1": pendingRequest()}}
	engine := &engineStub{err: appErrors.Clone(appErrors.ErrCapacityExceeded, "supervisor has reached maximum student capacity")}
	svc := newRequestService(requests, users, projects, engine, &notifierStub{})

	_, err := svc.Accept(context.Background(), "request-1", "teacher-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCapacityExceeded.Code, appErrors.FromError(err).Code)
	// The request is not decided, so it can be retried once capacity frees up.
	assert.Equal(t, 0, requests.decideCalls)
	assert.Equal(t, models.RequestPending, requests.requests["request-1"].Status)
}

func TestRequestServiceAcceptLostDecisionRace(t *testing.T) {
	users, projects := assignmentFixture()
	requests := &requestRepoStub{
		requests:  map[string]*models.SupervisorRequest{"request-1": pendingRequest()},
		decideErr: sql.ErrNoRows,
	}
	svc := newRequestService(requests, users, projects, &engineStub{}, &notifierStub{})

	_, err := svc.Accept(context.Background(), "request-1", "teacher-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceRejectKeepsAssignmentUntouched(t *testing.T) {
	users, projects := assignmentFixture()
	requests := &requestRepoStub{requests: map[string]*models.SupervisorRequest{"request-1": pendingRequest()}}
	engine := &engineStub{}
	notifier := &notifierStub{}
	svc := newRequestService(requests, users, projects, engine, notifier)

	reason := "full this term"
	request, err := svc.Reject(context.Background(), "request-1", "teacher-1", &reason)
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, request.Status)
	require.NotNil(t, request.Reason)
	assert.Equal(t, "full this term", *request.Reason)
	assert.Equal(t, 0, engine.calls)
	require.Len(t, notifier.dispatched, 1)
}

func TestRequestServiceAdminApprove(t *testing.T) {
	users, projects := assignmentFixture()
	requests := &requestRepoStub{requests: map[string]*models.SupervisorRequest{"request-1": pendingRequest()}}
	engine := &engineStub{}
	svc := newRequestService(requests, users, projects, engine, &notifierStub{})

	request, err := svc.AdminApprove(context.Background(), "request-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, request.Status)
	require.NotNil(t, request.DecidedBy)
	assert.Equal(t, "admin-1", *request.DecidedBy)
	assert.Equal(t, 1, engine.calls)
}

func TestRequestServiceAdminApproveTwiceIsTerminal(t *testing.T) {
	state := newFacultyState()
	state.addTeacher("teacher-1", "Dr. Hartono", 6)
	state.addStudent("student-1", "Amira Rahma")
	state.addProject("student-1", models.ProjectApproved)

	_, requests := newFlowServices(state, &notifierStub{})

	request, err := requests.Create(context.Background(), "student-1", CreateRequestPayload{
		SupervisorID: "teacher-1",
		Message:      "please supervise",
	})
	require.NoError(t, err)

	decided, err := requests.AdminApprove(context.Background(), request.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestApproved, decided.Status)
	require.NotNil(t, state.users["student-1"].SupervisorID)

	// A second approval is refused and nothing moves.
	_, err = requests.AdminApprove(context.Background(), request.ID, "admin-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	stored := state.requests[request.ID]
	assert.Equal(t, models.RequestApproved, stored.Status)
	require.NotNil(t, stored.DecidedBy)
	assert.Equal(t, "admin-1", *stored.DecidedBy)
	assert.Equal(t, "teacher-1", *state.users["student-1"].SupervisorID)
}

func TestRequestServiceAdminApproveStudentAlreadySupervised(t *testing.T) {
	users, projects := assignmentFixture()
	users.users["student-1"].SupervisorID = strPtr("teacher-9")
	requests := &requestRepoStub{requests: map[string]*models.SupervisorRequest{"request-1": pendingRequest()}}
	engine := &engineStub{}
	svc := newRequestService(requests, users, projects, engine, &notifierStub{})

	_, err := svc.AdminApprove(context.Background(), "request-1", "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, engine.calls)
}

func TestRequestServiceAdminRejectWithoutAssignmentChecks(t *testing.T) {
	users, projects := assignmentFixture()
	requests := &requestRepoStub{requests: map[string]*models.SupervisorRequest{"request-1": pendingRequest()}}
	engine := &engineStub{err: errors.New("should not be called")}
	svc := newRequestService(requests, users, projects, engine, &notifierStub{})

	request, err := svc.AdminReject(context.Background(), "request-1", "admin-1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, request.Status)
	assert.Equal(t, 0, engine.calls)
}

func TestRequestServiceGetNotFound(t *testing.T) {
	users, projects := assignmentFixture()
	svc := newRequestService(&requestRepoStub{}, users, projects, &engineStub{}, &notifierStub{})

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
