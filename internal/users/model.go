package users

const (
	TypeStudent   = "Student"
	TypeTeacher   = "Teacher"
	TypeAssistant = "Assistant"
)

type Borrower struct {
	BorrowerID int64
	Rut        string
	Name       string
	Mail       *string
	Phone      *string
	Type       string
	Active     bool
}

// BorrowerDetail carries the type-specific satellite columns alongside the
// base record. DegreeCode is set for students, Role for assistants.
type BorrowerDetail struct {
	Borrower
	DegreeCode *string
	Role       *string
}

type Degree struct {
	Code string
	Name string
}

func validType(t string) bool {
	switch t {
	case TypeStudent, TypeTeacher, TypeAssistant:
		return true
	}
	return false
}
