package workflow

import "testing"

func TestParseRole(t *testing.T) {
	tests := []struct {
		input string
		want  Role
	}{
		{"empleado", RoleEmployee},
		{"employee", RoleEmployee},
		{"EMPLEADO", RoleEmployee},
		{"aprobador1", RoleApprover1},
		{"supervisor", RoleApprover1},
		{"  Supervisor  ", RoleApprover1},
		{"aprobador2", RoleApprover2},
		{"gerente", RoleApprover2},
		{"Gerente", RoleApprover2},
		{"", RoleUnknown},
		{"admin", RoleUnknown},
	}

	for _, tt := range tests {
		if got := ParseRole(tt.input); got != tt.want {
			t.Errorf("ParseRole(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestRoleString(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleEmployee, "empleado"},
		{RoleApprover1, "aprobador1"},
		{RoleApprover2, "aprobador2"},
		{RoleUnknown, "unknown"},
	}

	for _, tt := range tests {
		if got := tt.role.String(); got != tt.want {
			t.Errorf("Role(%d).String() = %q, want %q", tt.role, got, tt.want)
		}
	}
}

func TestRoleIsValid(t *testing.T) {
	if RoleUnknown.IsValid() {
		t.Error("RoleUnknown should not be valid")
	}
	for _, r := range []Role{RoleEmployee, RoleApprover1, RoleApprover2} {
		if !r.IsValid() {
			t.Errorf("%v should be valid", r)
		}
	}
}
