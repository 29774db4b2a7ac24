package entity

import "time"

// Notification is an in-app inbox row produced by the post-commit fan-out.
// RoleTag records which inbox the row targets; a user acting under two roles
// sees each inbox separately.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	RequestID int64     `json:"request_id"`
	RoleTag   string    `json:"role_tag"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
