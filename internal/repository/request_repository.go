package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/naufal-dev/fyp-api/internal/models"
)

const requestColumns = `id, student_id, supervisor_id, message, status, reason, decided_by, decided_at, created_at, updated_at`

// RequestRepository persists the supervision request ledger.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new pending request.
func (r *RequestRepository) Create(ctx context.Context, request *models.SupervisorRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	request.CreatedAt = now
	request.UpdatedAt = now
	if request.Status == "" {
		request.Status = models.RequestPending
	}
	const query = `INSERT INTO supervisor_requests (id, student_id, supervisor_id, message, status, created_at, updated_at)
		VALUES (:id, :student_id, :supervisor_id, :message, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create supervisor request: %w", err)
	}
	return nil
}

// FindByID returns a request by identifier.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.SupervisorRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM supervisor_requests WHERE id = $1 LIMIT 1`, requestColumns)
	var request models.SupervisorRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find supervisor request: %w", err)
	}
	return &request, nil
}

// ExistsPending checks the duplicate guard for a (student, supervisor) pair.
func (r *RequestRepository) ExistsPending(ctx context.Context, studentID, supervisorID string) (bool, error) {
	const query = `SELECT 1 FROM supervisor_requests WHERE student_id = $1 AND supervisor_id = $2 AND status = 'PENDING' LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, supervisorID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check pending request: %w", err)
	}
	return true, nil
}

// Decide transitions a pending request to a terminal status. The WHERE
// clause guards the transition so a request decided concurrently is
// reported as sql.ErrNoRows rather than silently overwritten.
func (r *RequestRepository) Decide(ctx context.Context, id string, status models.RequestStatus, decidedBy string, reason *string) error {
	now := time.Now().UTC()
	const query = `UPDATE supervisor_requests
		SET status = $2, decided_by = $3, reason = $4, decided_at = $5, updated_at = $5
		WHERE id = $1 AND status = 'PENDING'`
	result, err := r.db.ExecContext(ctx, query, id, status, decidedBy, reason, now)
	if err != nil {
		return fmt.Errorf("decide supervisor request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check decided rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns requests matching the filter with display names joined in.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.SupervisorRequestDetail, int, error) {
	baseQuery := `FROM supervisor_requests sr
JOIN users st ON st.id = sr.student_id
JOIN users sp ON sp.id = sr.supervisor_id
WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("sr.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SupervisorID != "" {
		conditions = append(conditions, fmt.Sprintf("sr.supervisor_id = $%d", len(args)+1))
		args = append(args, filter.SupervisorID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("sr.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	countQuery := `SELECT COUNT(*) ` + baseQuery
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count supervisor requests: %w", err)
	}

	listQuery := fmt.Sprintf(`SELECT sr.id, sr.student_id, sr.supervisor_id, sr.message, sr.status, sr.reason, sr.decided_by, sr.decided_at, sr.created_at, sr.updated_at,
       st.full_name AS student_name, sp.full_name AS supervisor_name
%s ORDER BY sr.created_at DESC LIMIT $%d OFFSET $%d`, baseQuery, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	var requests []models.SupervisorRequestDetail
	if err := r.db.SelectContext(ctx, &requests, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list supervisor requests: %w", err)
	}
	return requests, total, nil
}
