package domain

import (
	"fmt"
	"strings"
)

// Role identifies what kind of user a profile belongs to.
// The set is closed: every switch over Role must handle all values below.
type Role string

const (
	RolePatient      Role = "patient"
	RoleDoctor       Role = "doctor"
	RoleNutritionist Role = "nutritionist"
	RoleAdmin        Role = "admin"
)

// AllRoles returns every supported role in a stable order.
func AllRoles() []Role {
	return []Role{RolePatient, RoleDoctor, RoleNutritionist, RoleAdmin}
}

// ParseRole converts a string into a Role, rejecting anything unknown.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleNutritionist, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsProvider reports whether the role delivers care (doctor or nutritionist).
func (r Role) IsProvider() bool {
	return r == RoleDoctor || r == RoleNutritionist
}

func (r Role) String() string {
	return string(r)
}
