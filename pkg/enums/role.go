package enums

// Role is the storefront role carried in access tokens.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

var validRoles = []Role{RoleCustomer, RoleAdmin}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known role.
func (r Role) IsValid() bool {
	return known(r, validRoles)
}

// ParseRole converts raw input into Role.
func ParseRole(value string) (Role, error) {
	return parse(value, validRoles, "role")
}
