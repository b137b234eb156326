package models

// Department identifies an academic or operational unit.
type Department string

const (
	DepartmentCS     Department = "CS"
	DepartmentSE     Department = "SE"
	DepartmentIT     Department = "IT"
	DepartmentPHY    Department = "PHY"
	DepartmentMATH   Department = "MATH"
	DepartmentFin    Department = "Fin"
	DepartmentExam   Department = "Exam"
	DepartmentHostel Department = "Hostel"
)

// DepartmentKind separates departments that own files from those that review them.
type DepartmentKind string

const (
	DepartmentKindOrigin DepartmentKind = "origin"
	DepartmentKindReview DepartmentKind = "review"
)

// DepartmentInfo is one row of the department table.
type DepartmentInfo struct {
	Code Department     `json:"code"`
	Name string         `json:"name"`
	Kind DepartmentKind `json:"kind"`
}

// departmentTable is the single source for department membership and display
// names. Authorization and recipient resolution both read from it.
var departmentTable = []DepartmentInfo{
	{Code: DepartmentCS, Name: "Computer Science", Kind: DepartmentKindOrigin},
	{Code: DepartmentSE, Name: "Software Engineering", Kind: DepartmentKindOrigin},
	{Code: DepartmentIT, Name: "Information Technology", Kind: DepartmentKindOrigin},
	{Code: DepartmentPHY, Name: "Physics", Kind: DepartmentKindOrigin},
	{Code: DepartmentMATH, Name: "Mathematics", Kind: DepartmentKindOrigin},
	{Code: DepartmentFin, Name: "Finance", Kind: DepartmentKindReview},
	{Code: DepartmentExam, Name: "Examination", Kind: DepartmentKindReview},
	{Code: DepartmentHostel, Name: "Hostel", Kind: DepartmentKindReview},
}

var departmentIndex = func() map[Department]DepartmentInfo {
	idx := make(map[Department]DepartmentInfo, len(departmentTable))
	for _, info := range departmentTable {
		idx[info.Code] = info
	}
	return idx
}()

// Departments returns a copy of the department table in display order.
func Departments() []DepartmentInfo {
	out := make([]DepartmentInfo, len(departmentTable))
	copy(out, departmentTable)
	return out
}

// DepartmentsOfKind lists department codes of one kind.
func DepartmentsOfKind(kind DepartmentKind) []Department {
	out := make([]Department, 0, len(departmentTable))
	for _, info := range departmentTable {
		if info.Kind == kind {
			out = append(out, info.Code)
		}
	}
	return out
}

// LookupDepartment finds a department by code.
func LookupDepartment(code Department) (DepartmentInfo, bool) {
	info, ok := departmentIndex[code]
	return info, ok
}

// Valid reports whether d is a known department.
func (d Department) Valid() bool {
	_, ok := departmentIndex[d]
	return ok
}

// IsOrigin reports whether d owns files.
func (d Department) IsOrigin() bool {
	info, ok := departmentIndex[d]
	return ok && info.Kind == DepartmentKindOrigin
}

// IsReview reports whether files can be forwarded to d.
func (d Department) IsReview() bool {
	info, ok := departmentIndex[d]
	return ok && info.Kind == DepartmentKindReview
}

// DisplayName returns the human name, or the raw code for unknown departments.
func (d Department) DisplayName() string {
	if info, ok := departmentIndex[d]; ok {
		return info.Name
	}
	return string(d)
}
