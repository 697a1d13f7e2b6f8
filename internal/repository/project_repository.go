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

const projectColumns = `id, student_id, title, description, supervisor_id, status, deadline, created_at, updated_at`

// ProjectRepository persists project proposals and deliverables.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository constructs the repository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts a new project proposal.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now
	if project.Status == "" {
		project.Status = models.ProjectPending
	}
	const query = `INSERT INTO projects (id, student_id, title, description, supervisor_id, status, deadline, created_at, updated_at)
		VALUES (:id, :student_id, :title, :description, :supervisor_id, :status, :deadline, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, project); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// FindByID returns a project by identifier.
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*models.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE id = $1 LIMIT 1`, projectColumns)
	var project models.Project
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find project by id: %w", err)
	}
	return &project, nil
}

// FindActiveByStudent returns the student's current non-rejected project.
func (r *ProjectRepository) FindActiveByStudent(ctx context.Context, studentID string) (*models.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE student_id = $1 AND status <> 'REJECTED' ORDER BY created_at DESC LIMIT 1`, projectColumns)
	var project models.Project
	if err := r.db.GetContext(ctx, &project, query, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find active project: %w", err)
	}
	return &project, nil
}

// UpdateStatus transitions the project lifecycle state.
func (r *ProjectRepository) UpdateStatus(ctx context.Context, id string, status models.ProjectStatus) error {
	const query = `UPDATE projects SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update project status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check project status rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetDeadline stores the project deadline.
func (r *ProjectRepository) SetDeadline(ctx context.Context, id string, deadline time.Time) error {
	const query = `UPDATE projects SET deadline = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, deadline, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set project deadline: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deadline rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AddFile attaches an uploaded deliverable to a project.
func (r *ProjectRepository) AddFile(ctx context.Context, file *models.ProjectFile) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO project_files (id, project_id, file_name, file_path, size_bytes, created_at)
		VALUES (:id, :project_id, :file_name, :file_path, :size_bytes, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("add project file: %w", err)
	}
	return nil
}

// AddFeedback records a supervisor comment.
func (r *ProjectRepository) AddFeedback(ctx context.Context, feedback *models.ProjectFeedback) error {
	if feedback.ID == "" {
		feedback.ID = uuid.NewString()
	}
	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO project_feedback (id, project_id, author_id, comment, created_at)
		VALUES (:id, :project_id, :author_id, :comment, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, feedback); err != nil {
		return fmt.Errorf("add project feedback: %w", err)
	}
	return nil
}

// ListFiles returns a project's attachments.
func (r *ProjectRepository) ListFiles(ctx context.Context, projectID string) ([]models.ProjectFile, error) {
	const query = `SELECT id, project_id, file_name, file_path, size_bytes, created_at FROM project_files WHERE project_id = $1 ORDER BY created_at DESC`
	var files []models.ProjectFile
	if err := r.db.SelectContext(ctx, &files, query, projectID); err != nil {
		return nil, fmt.Errorf("list project files: %w", err)
	}
	return files, nil
}

// ListFeedback returns a project's feedback trail.
func (r *ProjectRepository) ListFeedback(ctx context.Context, projectID string) ([]models.ProjectFeedback, error) {
	const query = `SELECT id, project_id, author_id, comment, created_at FROM project_feedback WHERE project_id = $1 ORDER BY created_at ASC`
	var feedback []models.ProjectFeedback
	if err := r.db.SelectContext(ctx, &feedback, query, projectID); err != nil {
		return nil, fmt.Errorf("list project feedback: %w", err)
	}
	return feedback, nil
}

// List returns projects matching the filter with a total count.
func (r *ProjectRepository) List(ctx context.Context, filter models.ProjectFilter) ([]models.Project, int, error) {
	baseQuery := `FROM projects WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SupervisorID != "" {
		conditions = append(conditions, fmt.Sprintf("supervisor_id = $%d", len(args)+1))
		args = append(args, filter.SupervisorID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	switch sortBy {
	case "title", "status", "created_at", "deadline":
	default:
		sortBy = "created_at"
	}
	sortOrder := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		sortOrder = "ASC"
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
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}

	listQuery := fmt.Sprintf(`SELECT %s %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		projectColumns, baseQuery, sortBy, sortOrder, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	var projects []models.Project
	if err := r.db.SelectContext(ctx, &projects, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}
	return projects, total, nil
}
