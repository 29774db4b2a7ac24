package workflow

import "strings"

// Role identifies the actor class a transition or view is restricted to.
// It is a closed enumeration; free-form role strings from the transport are
// normalized once through ParseRole and never compared as raw text again.
type Role int

const (
	RoleUnknown Role = iota
	RoleEmployee
	RoleApprover1
	RoleApprover2
)

// ParseRole maps the canonical role aliases onto the enumeration.
// Unrecognized input yields RoleUnknown.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "empleado", "employee":
		return RoleEmployee
	case "aprobador1", "supervisor":
		return RoleApprover1
	case "aprobador2", "gerente":
		return RoleApprover2
	default:
		return RoleUnknown
	}
}

// String returns the canonical name for the role. The same names are used
// as notification role tags.
func (r Role) String() string {
	switch r {
	case RoleEmployee:
		return "empleado"
	case RoleApprover1:
		return "aprobador1"
	case RoleApprover2:
		return "aprobador2"
	default:
		return "unknown"
	}
}

// IsValid returns true for every role except RoleUnknown
func (r Role) IsValid() bool {
	return r == RoleEmployee || r == RoleApprover1 || r == RoleApprover2
}
