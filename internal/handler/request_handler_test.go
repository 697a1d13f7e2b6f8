package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naufal-dev/fyp-api/internal/middleware"
	"github.com/naufal-dev/fyp-api/internal/models"
	"github.com/naufal-dev/fyp-api/internal/service"
	appErrors "github.com/naufal-dev/fyp-api/pkg/errors"
)

type requestServiceMock struct {
	createResp   *models.SupervisorRequest
	createErr    error
	acceptResp   *models.SupervisorRequest
	acceptErr    error
	createCalled bool
	acceptCalled bool
	lastFilter   models.RequestFilter
}

func (m *requestServiceMock) Create(ctx context.Context, studentID string, payload service.CreateRequestPayload) (*models.SupervisorRequest, error) {
	m.createCalled = true
	return m.createResp, m.createErr
}

func (m *requestServiceMock) Accept(ctx context.Context, requestID, actingTeacherID string) (*models.SupervisorRequest, error) {
	m.acceptCalled = true
	return m.acceptResp, m.acceptErr
}

func (m *requestServiceMock) Reject(ctx context.Context, requestID, actingTeacherID string, reason *string) (*models.SupervisorRequest, error) {
	return nil, nil
}

func (m *requestServiceMock) AdminApprove(ctx context.Context, requestID, adminID string) (*models.SupervisorRequest, error) {
	return nil, nil
}

func (m *requestServiceMock) AdminReject(ctx context.Context, requestID, adminID string, reason *string) (*models.SupervisorRequest, error) {
	return nil, nil
}

func (m *requestServiceMock) List(ctx context.Context, filter models.RequestFilter) ([]models.SupervisorRequestDetail, *models.Pagination, error) {
	m.lastFilter = filter
	return nil, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (m *requestServiceMock) Get(ctx context.Context, requestID string) (*models.SupervisorRequest, error) {
	return nil, sql.ErrNoRows
}

type studentLookupMock struct {
	user *models.User
	err  error
}

func (m studentLookupMock) Get(ctx context.Context, id string) (*models.User, error) {
	return m.user, m.err
}

func TestRequestHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &requestServiceMock{
		createResp: &models.SupervisorRequest{ID: "request-1", Status: models.RequestPending},
	}
	handler := NewRequestHandler(mockSvc, studentLookupMock{user: &models.User{ID: "student-1", Role: models.RoleStudent}})

	payload, _ := json.Marshal(service.CreateRequestPayload{SupervisorID: "teacher-1", Message: "Please supervise my project"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/requests", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.createCalled)
}

func TestRequestHandlerCreateAlreadySupervised(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &requestServiceMock{}
	supervisor := "teacher-9"
	handler := NewRequestHandler(mockSvc, studentLookupMock{user: &models.User{ID: "student-1", Role: models.RoleStudent, SupervisorID: &supervisor}})

	payload, _ := json.Marshal(service.CreateRequestPayload{SupervisorID: "teacher-1", Message: "Please supervise my project"})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/requests", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Create(c)
	// Bounced before the service sees it.
	require.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, mockSvc.createCalled)
}

func TestRequestHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRequestHandler(&requestServiceMock{}, studentLookupMock{user: &models.User{ID: "student-1"}})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/requests", bytes.NewBufferString(`{"supervisor_id":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestHandlerAcceptCapacityConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &requestServiceMock{acceptErr: appErrors.ErrCapacityExceeded}
	handler := NewRequestHandler(mockSvc, studentLookupMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/requests/request-1/accept", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "request-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})

	handler.Accept(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.True(t, mockSvc.acceptCalled)
}

func TestRequestHandlerListScopesTeacher(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &requestServiceMock{}
	handler := NewRequestHandler(mockSvc, studentLookupMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/requests?status=PENDING", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "teacher-1", mockSvc.lastFilter.SupervisorID)
	assert.Empty(t, mockSvc.lastFilter.StudentID)
	require.NotNil(t, mockSvc.lastFilter.Status)
	assert.Equal(t, models.RequestPending, *mockSvc.lastFilter.Status)
}

func TestRequestHandlerGetMissingClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRequestHandler(&requestServiceMock{}, studentLookupMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/requests/request-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "request-1"}}

	handler.Get(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
