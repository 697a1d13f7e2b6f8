package models

import "time"

// ProjectStatus is the lifecycle state of a project proposal.
type ProjectStatus string

const (
	ProjectPending   ProjectStatus = "PENDING"
	ProjectApproved  ProjectStatus = "APPROVED"
	ProjectRejected  ProjectStatus = "REJECTED"
	ProjectCompleted ProjectStatus = "COMPLETED"
)

// Active reports whether the status counts against the one-active-project
// rule. Rejected proposals may be resubmitted as a new record.
func (s ProjectStatus) Active() bool {
	return s != ProjectRejected
}

// Project is a student's proposal and deliverable record. SupervisorID
// mirrors the owning student's supervisor and is written in the same
// transaction as the user row.
type Project struct {
	ID           string        `db:"id" json:"id"`
	StudentID    string        `db:"student_id" json:"student_id"`
	Title        string        `db:"title" json:"title"`
	Description  string        `db:"description" json:"description"`
	SupervisorID *string       `db:"supervisor_id" json:"supervisor_id,omitempty"`
	Status       ProjectStatus `db:"status" json:"status"`
	Deadline     *time.Time    `db:"deadline" json:"deadline,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// ProjectFile is an uploaded deliverable attached to a project.
type ProjectFile struct {
	ID        string    `db:"id" json:"id"`
	ProjectID string    `db:"project_id" json:"project_id"`
	FileName  string    `db:"file_name" json:"file_name"`
	FilePath  string    `db:"file_path" json:"file_path"`
	SizeBytes int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ProjectFeedback is a supervisor comment on a project.
type ProjectFeedback struct {
	ID        string    `db:"id" json:"id"`
	ProjectID string    `db:"project_id" json:"project_id"`
	AuthorID  string    `db:"author_id" json:"author_id"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ProjectDetail is a project with its attachments and feedback trail.
type ProjectDetail struct {
	Project
	Files    []ProjectFile     `json:"files"`
	Feedback []ProjectFeedback `json:"feedback"`
}

// ProjectFilter captures list filters for projects.
type ProjectFilter struct {
	StudentID    string
	SupervisorID string
	Status       *ProjectStatus
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
