package model

import "strconv"

// Role is the fixed role enumeration known to the kiosk.
type Role int

const (
	RoleDirector       Role = 1
	RoleAdministrative Role = 2
	RoleStudent        Role = 3
	RoleTeacher        Role = 4
)

// Roles lists every role in selection order.
var Roles = []Role{RoleDirector, RoleAdministrative, RoleStudent, RoleTeacher}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r >= RoleDirector && r <= RoleTeacher
}

// Name returns the display name of the role.
func (r Role) Name() string {
	switch r {
	case RoleDirector:
		return "Director"
	case RoleAdministrative:
		return "Administrative staff"
	case RoleStudent:
		return "Student"
	case RoleTeacher:
		return "Teacher"
	}
	return "Unknown role"
}

// ParseRole converts a form value such as "3" into a Role. Unknown or
// malformed values yield 0 and false.
func ParseRole(s string) (Role, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	r := Role(n)
	return r, r.Valid()
}
