package lending

import "time"

// Lifecycle states. Pending moves to Active on approval or is hard-deleted
// on rejection; Active moves to Finalized or Inactive. Finalized and
// Inactive are terminal.
const (
	StateActive    = "Active"
	StatePending   = "Pending"
	StateFinalized = "Finalized"
	StateInactive  = "Inactive"
)

type Lending struct {
	LendingID    int64
	LendingULID  string
	BorrowerID   int64
	TeacherID    *int64
	State        string
	Comments     *string
	CreatedAt    time.Time
	FinalizedAt  *time.Time
	EliminatedAt *time.Time
}

// LineItem is one requested product row of a lending.
type LineItem struct {
	ProductID int64
	Amount    int
}

// LineDetail is a persisted line joined with the product columns that
// restock decisions need.
type LineDetail struct {
	ProductID int64
	Amount    int
	Name      string
	Fungible  bool
}

// LendingSummary backs the list endpoints: the row plus borrower and
// teacher display names.
type LendingSummary struct {
	Lending
	BorrowerName string
	TeacherName  *string
}

// LendingDetail is the full fetch-by-id shape.
type LendingDetail struct {
	Lending
	BorrowerName string
	BorrowerRut  string
	TeacherName  *string
	Lines        []LineDetail
}

func isOpen(state string) bool {
	return state == StateActive || state == StatePending
}
