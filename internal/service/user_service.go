package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/naufal-dev/fyp-api/internal/models"
	"github.com/naufal-dev/fyp-api/pkg/config"
	appErrors "github.com/naufal-dev/fyp-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdateCapacity(ctx context.Context, teacherID string, maxStudents int) error
	Deactivate(ctx context.Context, id string) error
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	CountSupervisees(ctx context.Context, teacherID string) (int, error)
	ListSupervisees(ctx context.Context, teacherID string) ([]models.User, error)
}

// RegisterRequest is the student self-registration payload.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"required,min=2"`
}

// CreateUserRequest is the admin account-creation payload.
type CreateUserRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	FullName    string `json:"full_name" validate:"required,min=2"`
	Role        string `json:"role" validate:"required"`
	MaxStudents *int   `json:"max_students,omitempty"`
}

// UpdateUserRequest mutates profile fields.
type UpdateUserRequest struct {
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	FullName *string `json:"full_name,omitempty" validate:"omitempty,min=2"`
	Active   *bool   `json:"active,omitempty"`
}

// UpdateCapacityRequest sets a teacher's supervision limit.
type UpdateCapacityRequest struct {
	MaxStudents int `json:"max_students" validate:"required"`
}

// UserService manages the user directory. Supervisor references are
// mutated exclusively by the assignment engine, never here.
type UserService struct {
	repo        userRepository
	projects    projectReader
	supervision config.SupervisionConfig
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewUserService creates a service instance.
func NewUserService(repo userRepository, projects projectReader, supervision config.SupervisionConfig, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if supervision.MinMaxStudents <= 0 {
		supervision.MinMaxStudents = 1
	}
	if supervision.MaxMaxStudents <= 0 {
		supervision.MaxMaxStudents = 6
	}
	if supervision.DefaultMaxStudents <= 0 {
		supervision.DefaultMaxStudents = 4
	}
	return &UserService{repo: repo, projects: projects, supervision: supervision, validator: validate, logger: logger}
}

// Register creates a student account from self-registration.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	return s.create(ctx, req.Email, req.Password, req.FullName, models.RoleStudent, nil)
}

// Create provisions an account with any role (admin action). Teachers
// receive the default capacity unless one is supplied.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	role, ok := models.ParseRole(req.Role)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown role %q", req.Role))
	}

	var maxStudents *int
	if role == models.RoleTeacher {
		capacity := s.supervision.DefaultMaxStudents
		if req.MaxStudents != nil {
			capacity = *req.MaxStudents
		}
		if err := s.checkCapacityBounds(capacity); err != nil {
			return nil, err
		}
		maxStudents = &capacity
	}

	return s.create(ctx, req.Email, req.Password, req.FullName, role, maxStudents)
}

func (s *UserService) create(ctx context.Context, email, password, fullName string, role models.UserRole, maxStudents *int) (*models.User, error) {
	exists, err := s.repo.ExistsByEmail(ctx, email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email is already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
		Role:         role,
		Active:       true,
		MaxStudents:  maxStudents,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	return user, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.load(ctx, id)
}

// List returns users matching the filter.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Update mutates profile fields.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Email != nil && *req.Email != user.Email {
		exists, err := s.repo.ExistsByEmail(ctx, *req.Email, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email is already registered")
		}
		user.Email = *req.Email
	}
	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	return user, nil
}

// UpdateCapacity sets a teacher's max_students within the configured
// bounds and never below the teacher's current load.
func (s *UserService) UpdateCapacity(ctx context.Context, teacherID string, req UpdateCapacityRequest) (*models.User, error) {
	user, err := s.load(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if !user.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrInvalidRole, "capacity applies to teachers only")
	}
	if err := s.checkCapacityBounds(req.MaxStudents); err != nil {
		return nil, err
	}

	current, err := s.repo.CountSupervisees(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count supervisees")
	}
	if req.MaxStudents < current {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("capacity %d is below the current load of %d students", req.MaxStudents, current))
	}

	if err := s.repo.UpdateCapacity(ctx, teacherID, req.MaxStudents); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update capacity")
	}
	user.MaxStudents = &req.MaxStudents
	return user, nil
}

// Deactivate disables an account. Users referenced by active
// supervisions or projects are never deactivated.
func (s *UserService) Deactivate(ctx context.Context, id string) error {
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	switch user.Role {
	case models.RoleTeacher:
		count, err := s.repo.CountSupervisees(ctx, id)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count supervisees")
		}
		if count > 0 {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("teacher still supervises %d students", count))
		}
	case models.RoleStudent:
		if _, err := s.projects.FindActiveByStudent(ctx, id); err == nil {
			return appErrors.Clone(appErrors.ErrInvalidState, "student still has an active project")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active project")
		}
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate user")
	}
	return nil
}

// Supervisees lists the students currently supervised by the teacher.
func (s *UserService) Supervisees(ctx context.Context, teacherID string) ([]models.User, error) {
	user, err := s.load(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if !user.IsTeacher() {
		return nil, appErrors.Clone(appErrors.ErrInvalidRole, "user is not a teacher")
	}
	supervisees, err := s.repo.ListSupervisees(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list supervisees")
	}
	return supervisees, nil
}

func (s *UserService) load(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

func (s *UserService) checkCapacityBounds(capacity int) error {
	if capacity < s.supervision.MinMaxStudents || capacity > s.supervision.MaxMaxStudents {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("max_students must be between %d and %d", s.supervision.MinMaxStudents, s.supervision.MaxMaxStudents))
	}
	return nil
}
