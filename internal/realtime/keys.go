package realtime

import "github.com/noah-isme/docflow-api/internal/models"

// UserKey is the room holding every connection of one user.
func UserKey(userID string) string {
	return "user:" + userID
}

// RoleKey is the room of every connection with the role.
func RoleKey(role models.UserRole) string {
	return "role:" + string(role)
}

// DepartmentKey is the room of every connection in the department.
func DepartmentKey(dept models.Department) string {
	return "department:" + string(dept)
}

// RoleDepartmentKey narrows RoleKey to one department.
func RoleDepartmentKey(role models.UserRole, dept models.Department) string {
	return "role:" + string(role) + ":department:" + string(dept)
}
