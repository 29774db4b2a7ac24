package entity

import "github.com/primar/rendiciones/internal/domain/workflow"

// User is the read-only view of an account as the identity provider exposes
// it. The engine only queries users: for profile snapshots at submission and
// for role recipient lists at fan-out time.
type User struct {
	ID         int64         `json:"id"`
	FirstName  string        `json:"first_name"`
	LastName   string        `json:"last_name"`
	TaxID      string        `json:"tax_id"`
	Email      string        `json:"email"`
	Phone      string        `json:"phone"`
	Role       workflow.Role `json:"role"`
	JobTitle   string        `json:"job_title"`
	Department string        `json:"department"`
	Active     bool          `json:"active"`
}

// FullName returns the user's display name
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
