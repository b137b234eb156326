package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent        UserRole = "student"
	RoleProgramOfficer UserRole = "program_officer"
	RoleAdmin          UserRole = "admin"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleProgramOfficer, RoleAdmin:
		return true
	}
	return false
}

// RequiresDepartment reports whether users of this role belong to a department.
func (r UserRole) RequiresDepartment() bool {
	return r == RoleStudent || r == RoleProgramOfficer
}

// User represents an application user stored in the users table. Department
// is empty for admins.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"fullName"`
	RollNumber   string     `db:"roll_number" json:"rollNumber,omitempty"`
	Role         UserRole   `db:"role" json:"role"`
	Department   Department `db:"department" json:"department,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role       *UserRole
	Department Department
	Search     string
	Page       int
	PageSize   int
}

// RoleDepartment addresses every user holding a role inside one department.
type RoleDepartment struct {
	Role       UserRole
	Department Department
}

// AudienceFilter selects users by explicit id, by role, or by role within a
// department. A user matching any clause is selected.
type AudienceFilter struct {
	UserIDs         []string
	Roles           []UserRole
	RoleDepartments []RoleDepartment
}

// Empty reports whether the filter selects nobody.
func (f AudienceFilter) Empty() bool {
	return len(f.UserIDs) == 0 && len(f.Roles) == 0 && len(f.RoleDepartments) == 0
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
