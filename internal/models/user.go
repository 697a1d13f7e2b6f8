package models

import (
	"strings"
	"time"
)

// UserRole represents the available roles in the platform.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// ParseRole normalises a raw role string into a UserRole. Normalisation
// happens here once; the rest of the codebase compares typed values only.
func ParseRole(raw string) (UserRole, bool) {
	switch UserRole(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleTeacher:
		return RoleTeacher, true
	case RoleStudent:
		return RoleStudent, true
	}
	return "", false
}

// User represents an application user stored in the users table.
// Teachers carry a supervision capacity; students carry a nullable
// reference to their current supervisor. The supervisee count is always
// recomputed from the supervisor_id relation, never cached on the row.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	MaxStudents  *int       `db:"max_students" json:"max_students,omitempty"`
	SupervisorID *string    `db:"supervisor_id" json:"supervisor_id,omitempty"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// IsTeacher reports whether the user holds the teacher role.
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }

// IsStudent reports whether the user holds the student role.
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

// Capacity returns the effective max_students value for a teacher.
func (u *User) Capacity(fallback int) int {
	if u.MaxStudents != nil && *u.MaxStudents > 0 {
		return *u.MaxStudents
	}
	return fallback
}

// TeacherLoad pairs a teacher with their current supervision load.
type TeacherLoad struct {
	TeacherID   string `db:"teacher_id" json:"teacher_id"`
	FullName    string `db:"full_name" json:"full_name"`
	Email       string `db:"email" json:"email"`
	MaxStudents int    `db:"max_students" json:"max_students"`
	Assigned    int    `db:"assigned" json:"assigned"`
}

// Remaining returns the free supervision slots.
func (l TeacherLoad) Remaining() int {
	if r := l.MaxStudents - l.Assigned; r > 0 {
		return r
	}
	return 0
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
