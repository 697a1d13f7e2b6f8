package models

import "time"

// RequestStatus is the lifecycle state of a supervision request.
// Decided requests are terminal and never re-open.
type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestRejected RequestStatus = "REJECTED"
)

// SupervisorRequest records a student's ask to be supervised by a
// specific teacher. At most one PENDING row may exist per
// (student, supervisor) pair.
type SupervisorRequest struct {
	ID           string        `db:"id" json:"id"`
	StudentID    string        `db:"student_id" json:"student_id"`
	SupervisorID string        `db:"supervisor_id" json:"supervisor_id"`
	Message      string        `db:"message" json:"message"`
	Status       RequestStatus `db:"status" json:"status"`
	Reason       *string       `db:"reason" json:"reason,omitempty"`
	DecidedBy    *string       `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt    *time.Time    `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// SupervisorRequestDetail joins the request with display names.
type SupervisorRequestDetail struct {
	SupervisorRequest
	StudentName    string `db:"student_name" json:"student_name"`
	SupervisorName string `db:"supervisor_name" json:"supervisor_name"`
}

// RequestFilter captures list filters for supervision requests.
type RequestFilter struct {
	StudentID    string
	SupervisorID string
	Status       *RequestStatus
	Page         int
	PageSize     int
}
