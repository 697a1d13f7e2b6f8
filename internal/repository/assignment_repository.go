package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/naufal-dev/fyp-api/internal/models"
)

// Sentinel errors returned by the assignment transaction. The service
// layer maps them onto the API error taxonomy.
var (
	ErrStudentNotFound          = errors.New("student not found")
	ErrTeacherNotFound          = errors.New("teacher not found")
	ErrStudentAlreadySupervised = errors.New("student already has a supervisor")
	ErrProjectNotAssignable     = errors.New("student has no approved project without a supervisor")
	ErrTeacherAtCapacity        = errors.New("teacher is at maximum supervision capacity")
)

// AssignmentRepository executes the capacity-checked supervisor
// assignment as a single database transaction.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

type lockedUser struct {
	ID           string  `db:"id"`
	Role         string  `db:"role"`
	Active       bool    `db:"active"`
	MaxStudents  *int    `db:"max_students"`
	SupervisorID *string `db:"supervisor_id"`
}

// AssignSupervisor links a student to a teacher. Both user rows and the
// student's approved project row are locked for the duration of the
// transaction, the supervisee count is recomputed under the lock, and
// users.supervisor_id plus projects.supervisor_id are written together.
// Either every write commits or none does.
func (r *AssignmentRepository) AssignSupervisor(ctx context.Context, studentID, teacherID string, fallbackCapacity int) (updated *models.Project, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin assignment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Teacher row is the contended one; locking it first keeps concurrent
	// assignments against the same teacher serialised in one order.
	var teacher lockedUser
	const teacherQuery = `SELECT id, role, active, max_students, supervisor_id FROM users WHERE id = $1 AND role = 'TEACHER' FOR UPDATE`
	if err = tx.GetContext(ctx, &teacher, teacherQuery, teacherID); err != nil {
		if err == sql.ErrNoRows {
			err = ErrTeacherNotFound
			return nil, err
		}
		return nil, fmt.Errorf("lock teacher row: %w", err)
	}

	var student lockedUser
	const studentQuery = `SELECT id, role, active, max_students, supervisor_id FROM users WHERE id = $1 AND role = 'STUDENT' FOR UPDATE`
	if err = tx.GetContext(ctx, &student, studentQuery, studentID); err != nil {
		if err == sql.ErrNoRows {
			err = ErrStudentNotFound
			return nil, err
		}
		return nil, fmt.Errorf("lock student row: %w", err)
	}
	if student.SupervisorID != nil {
		err = ErrStudentAlreadySupervised
		return nil, err
	}

	var project models.Project
	const projectQuery = `SELECT id, student_id, title, description, supervisor_id, status, deadline, created_at, updated_at
		FROM projects WHERE student_id = $1 AND status = 'APPROVED' AND supervisor_id IS NULL
		ORDER BY created_at DESC LIMIT 1 FOR UPDATE`
	if err = tx.GetContext(ctx, &project, projectQuery, studentID); err != nil {
		if err == sql.ErrNoRows {
			err = ErrProjectNotAssignable
			return nil, err
		}
		return nil, fmt.Errorf("lock project row: %w", err)
	}

	capacity := fallbackCapacity
	if teacher.MaxStudents != nil && *teacher.MaxStudents > 0 {
		capacity = *teacher.MaxStudents
	}

	var assigned int
	const countQuery = `SELECT COUNT(*) FROM users WHERE supervisor_id = $1`
	if err = tx.GetContext(ctx, &assigned, countQuery, teacherID); err != nil {
		return nil, fmt.Errorf("count supervisees: %w", err)
	}
	if assigned >= capacity {
		err = ErrTeacherAtCapacity
		return nil, err
	}

	now := time.Now().UTC()
	const updateStudent = `UPDATE users SET supervisor_id = $2, updated_at = $3 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateStudent, studentID, teacherID, now); err != nil {
		return nil, fmt.Errorf("set student supervisor: %w", err)
	}

	const updateProject = `UPDATE projects SET supervisor_id = $2, updated_at = $3 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateProject, project.ID, teacherID, now); err != nil {
		return nil, fmt.Errorf("set project supervisor: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit assignment: %w", err)
	}

	project.SupervisorID = &teacherID
	project.UpdatedAt = now
	return &project, nil
}
