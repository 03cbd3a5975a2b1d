package auth

import (
	"strings"

	"github.com/google/uuid"
)

// Role is the closed set of caller roles known to the booking service.
type Role int

const (
	RoleCustomer Role = iota
	RoleEmployee
	RoleAdmin
)

// Role names as stored in the roles table.
const (
	RoleNameUser     = "user"
	RoleNameEmployee = "employee"
	RoleNameAdmin    = "admin"
)

// ParseRole maps a roles.name value to a Role. Names outside the known set
// map to RoleCustomer with ok=false.
func ParseRole(name string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case RoleNameUser:
		return RoleCustomer, true
	case RoleNameEmployee:
		return RoleEmployee, true
	case RoleNameAdmin:
		return RoleAdmin, true
	default:
		return RoleCustomer, false
	}
}

func (r Role) String() string {
	switch r {
	case RoleEmployee:
		return RoleNameEmployee
	case RoleAdmin:
		return RoleNameAdmin
	default:
		return RoleNameUser
	}
}

// IsStaff reports whether the role books on behalf of clients and manages
// the appointment lifecycle.
func (r Role) IsStaff() bool {
	return r == RoleEmployee || r == RoleAdmin
}

// Caller is the authenticated identity behind a request.
type Caller struct {
	ID   uuid.UUID
	Role Role
}

func (c Caller) IsStaff() bool { return c.Role.IsStaff() }
