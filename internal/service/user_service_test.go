package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/naufal-dev/fyp-api/internal/models"
	"github.com/naufal-dev/fyp-api/pkg/config"
	appErrors "github.com/naufal-dev/fyp-api/pkg/errors"
)

type userRepoStub struct {
	users        map[string]*models.User
	emailTaken   bool
	supervisees  int
	created      []*models.User
	capacitySet  []int
	deactivated  []string
	listResult   []models.User
	listTotal    int
	superviseeRs []models.User
}

func (s *userRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (s *userRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *userRepoStub) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	return s.emailTaken, nil
}

func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	user.ID = "user-new"
	s.created = append(s.created, user)
	return nil
}

func (s *userRepoStub) Update(ctx context.Context, user *models.User) error { return nil }

func (s *userRepoStub) UpdateCapacity(ctx context.Context, teacherID string, maxStudents int) error {
	s.capacitySet = append(s.capacitySet, maxStudents)
	return nil
}

func (s *userRepoStub) Deactivate(ctx context.Context, id string) error {
	s.deactivated = append(s.deactivated, id)
	return nil
}

func (s *userRepoStub) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	return s.listResult, s.listTotal, nil
}

func (s *userRepoStub) CountSupervisees(ctx context.Context, teacherID string) (int, error) {
	return s.supervisees, nil
}

func (s *userRepoStub) ListSupervisees(ctx context.Context, teacherID string) ([]models.User, error) {
	return s.superviseeRs, nil
}

func newUserService(repo *userRepoStub, projects projectReaderStub) *UserService {
	cfg := config.SupervisionConfig{DefaultMaxStudents: 4, MinMaxStudents: 1, MaxMaxStudents: 6}
	return NewUserService(repo, projects, cfg, nil, zap.NewNop())
}

func TestUserServiceRegisterHashesPassword(t *testing.T) {
	repo := &userRepoStub{users: map[string]*models.User{}}
	svc := newUserService(repo, projectReaderStub{})

	user, err := svc.Register(context.Background(), RegisterRequest{Email: "amira@example.edu", Password: "sup3rsecret", FullName: "Amira Rahma"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.True(t, user.Active)
	assert.Nil(t, user.MaxStudents)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("sup3rsecret")))
}

func TestUserServiceRegisterDuplicateEmail(t *testing.T) {
	repo := &userRepoStub{users: map[string]*models.User{}, emailTaken: true}
	svc := newUserService(repo, projectReaderStub{})

	_, err := svc.Register(context.Background(), RegisterRequest{Email: "amira@example.edu", Password: "sup3rsecret", FullName: "Amira Rahma"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateTeacherGetsDefaultCapacity(t *testing.T) {
	repo := &userRepoStub{users: map[string]*models.User{}}
	svc := newUserService(repo, projectReaderStub{})

	user, err := svc.Create(context.Background(), CreateUserRequest{Email: "hartono@example.edu", Password: "sup3rsecret", FullName: "Dr. Hartono", Role: "teacher"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, user.Role)
	require.NotNil(t, user.MaxStudents)
	assert.Equal(t, 4, *user.MaxStudents)
}

func TestUserServiceCreateRejectsUnknownRole(t *testing.T) {
	repo := &userRepoStub{users: map[string]*models.User{}}
	svc := newUserService(repo, projectReaderStub{})

	_, err := svc.Create(context.Background(), CreateUserRequest{Email: "x@example.edu", Password: "sup3rsecret", FullName: "Nobody", Role: "DEAN"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateTeacherCapacityOutOfBounds(t *testing.T) {
	repo := &userRepoStub{users: map[string]*models.User{}}
	svc := newUserService(repo, projectReaderStub{})

	for _, capacity := range []int{0, 7} {
		_, err := svc.Create(context.Background(), CreateUserRequest{Email: "x@example.edu", Password: "sup3rsecret", FullName: "Dr. Hartono", Role: "TEACHER", MaxStudents: intPtr(capacity)})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
	assert.Empty(t, repo.created)
}

func TestUserServiceUpdateCapacity(t *testing.T) {
	repo := &userRepoStub{
		users:       map[string]*models.User{"teacher-1": {ID: "teacher-1", Role: models.RoleTeacher, MaxStudents: intPtr(4)}},
		supervisees: 3,
	}
	svc := newUserService(repo, projectReaderStub{})

	user, err := svc.UpdateCapacity(context.Background(), "teacher-1", UpdateCapacityRequest{MaxStudents: 6})
	require.NoError(t, err)
	require.NotNil(t, user.MaxStudents)
	assert.Equal(t, 6, *user.MaxStudents)
	assert.Equal(t, []int{6}, repo.capacitySet)
}

func TestUserServiceUpdateCapacityBelowCurrentLoad(t *testing.T) {
	repo := &userRepoStub{
		users:       map[string]*models.User{"teacher-1": {ID: "teacher-1", Role: models.RoleTeacher, MaxStudents: intPtr(6)}},
		supervisees: 5,
	}
	svc := newUserService(repo, projectReaderStub{})

	_, err := svc.UpdateCapacity(context.Background(), "teacher-1", UpdateCapacityRequest{MaxStudents: 3})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.capacitySet)
}

func TestUserServiceUpdateCapacityOnStudent(t *testing.T) {
	repo := &userRepoStub{
		users: map[string]*models.User{"student-1": {ID: "student-1", Role: models.RoleStudent}},
	}
	svc := newUserService(repo, projectReaderStub{})

	_, err := svc.UpdateCapacity(context.Background(), "student-1", UpdateCapacityRequest{MaxStudents: 3})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidRole.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeactivateTeacherWithSupervisees(t *testing.T) {
	repo := &userRepoStub{
		users:       map[string]*models.User{"teacher-1": {ID: "teacher-1", Role: models.RoleTeacher}},
		supervisees: 2,
	}
	svc := newUserService(repo, projectReaderStub{})

	err := svc.Deactivate(context.Background(), "teacher-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deactivated)
}

func TestUserServiceDeactivateStudentWithActiveProject(t *testing.T) {
	repo := &userRepoStub{
		users: map[string]*models.User{"student-1": {ID: "student-1", Role: models.RoleStudent}},
	}
	projects := projectReaderStub{projects: map[string]*models.Project{
		"student-1": {ID: "project-1", StudentID: "student-1", Status: models.ProjectApproved},
	}}
	svc := newUserService(repo, projects)

	err := svc.Deactivate(context.Background(), "student-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeactivateIdleStudent(t *testing.T) {
	repo := &userRepoStub{
		users: map[string]*models.User{"student-1": {ID: "student-1", Role: models.RoleStudent}},
	}
	svc := newUserService(repo, projectReaderStub{projects: map[string]*models.Project{}})

	err := svc.Deactivate(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"student-1"}, repo.deactivated)
}

func TestUserServiceSuperviseesRequiresTeacher(t *testing.T) {
	repo := &userRepoStub{
		users: map[string]*models.User{"student-1": {ID: "student-1", Role: models.RoleStudent}},
	}
	svc := newUserService(repo, projectReaderStub{})

	_, err := svc.Supervisees(context.Background(), "student-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidRole.Code, appErrors.FromError(err).Code)
}
