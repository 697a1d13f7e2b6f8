package models

import "time"

// NotificationPriority orders notifications on the dashboard.
type NotificationPriority string

const (
	PriorityLow  NotificationPriority = "LOW"
	PriorityHigh NotificationPriority = "HIGH"
)

// Notification categories used by the supervision workflow.
const (
	CategoryAssignment = "ASSIGNMENT"
	CategoryRequest    = "REQUEST"
	CategoryProject    = "PROJECT"
)

// Notification is a best-effort message delivered to a user's dashboard.
type Notification struct {
	ID        string               `db:"id" json:"id"`
	UserID    string               `db:"user_id" json:"user_id"`
	Message   string               `db:"message" json:"message"`
	Category  string               `db:"category" json:"category"`
	Link      string               `db:"link" json:"link"`
	Priority  NotificationPriority `db:"priority" json:"priority"`
	IsRead    bool                 `db:"is_read" json:"is_read"`
	CreatedAt time.Time            `db:"created_at" json:"created_at"`
}
