package authz

import (
	"fmt"
	"strings"
)

// Role is the closed set of privilege levels. The numeric value is the
// rank: a higher value always means more privilege.
type Role int

const (
	RoleUser Role = iota
	RoleSeller
	RoleAdmin
	RoleSuperAdmin
)

var roleNames = [...]string{
	RoleUser:       "user",
	RoleSeller:     "seller",
	RoleAdmin:      "admin",
	RoleSuperAdmin: "superadmin",
}

func (r Role) String() string {
	if !r.Valid() {
		return fmt.Sprintf("role(%d)", int(r))
	}
	return roleNames[r]
}

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	return r >= RoleUser && r <= RoleSuperAdmin
}

// Rank returns the position of r in the privilege order.
func (r Role) Rank() int { return int(r) }

// CanManage reports whether a holder of r may assign or act on the
// target role. Equal rank is allowed: an admin manages other admins of
// its own company.
func (r Role) CanManage(target Role) bool {
	return r.Valid() && target.Valid() && r.Rank() >= target.Rank()
}

// ParseRole decodes a stored or transmitted role name. Unknown names are
// rejected rather than mapped to a default, so a typo can never grant or
// strip privilege silently.
func ParseRole(s string) (Role, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "user":
		return RoleUser, nil
	case "seller":
		return RoleSeller, nil
	case "admin":
		return RoleAdmin, nil
	case "superadmin":
		return RoleSuperAdmin, nil
	default:
		return Role(-1), fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
}

// Roles lists every member of the closed set in rank order.
func Roles() []Role {
	return []Role{RoleUser, RoleSeller, RoleAdmin, RoleSuperAdmin}
}

// MarshalJSON encodes the role by name so API payloads and stored rows
// share one representation.
func (r Role) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: role %d", ErrInvalidInput, int(r))
	}
	return []byte(`"` + roleNames[r] + `"`), nil
}

// UnmarshalJSON decodes a role name, rejecting unknown values.
func (r *Role) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
