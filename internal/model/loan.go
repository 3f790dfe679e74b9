package model

import (
	"slices"
	"time"
)

// LoanStatus is the lifecycle state of an equipment loan.
type LoanStatus string

// Loan statuses.
const (
	LoanPending   LoanStatus = "pending"
	LoanActive    LoanStatus = "active"
	LoanRejected  LoanStatus = "rejected"
	LoanReturned  LoanStatus = "returned"
	LoanOverdue   LoanStatus = "overdue"
	LoanCancelled LoanStatus = "cancelled"
)

// LoanApproved is accepted as an alias for LoanActive: approval activates a
// loan immediately.
const LoanApproved LoanStatus = "approved"

// Caller-invoked edges. active -> overdue is made only by the overdue sweep.
var loanNext = map[LoanStatus]map[LoanStatus]bool{
	LoanPending: {
		LoanActive:    true,
		LoanRejected:  true,
		LoanCancelled: true,
	},
	LoanActive:    {LoanReturned: true},
	LoanOverdue:   {LoanReturned: true},
	LoanRejected:  {},
	LoanReturned:  {},
	LoanCancelled: {},
}

// ParseLoanStatus normalizes a caller-supplied target status.
func ParseLoanStatus(s string) LoanStatus {
	if LoanStatus(s) == LoanApproved {
		return LoanActive
	}
	return LoanStatus(s)
}

// Valid reports whether s is a known loan status.
func (s LoanStatus) Valid() bool {
	_, ok := loanNext[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s LoanStatus) Terminal() bool {
	return s.Valid() && len(loanNext[s]) == 0
}

var openLoanStatuses = []LoanStatus{LoanPending, LoanActive, LoanOverdue}

// Open reports whether the loan still holds or may still hold stock.
func (s LoanStatus) Open() bool {
	return slices.Contains(openLoanStatuses, s)
}

// OpenLoanStatuses lists every status for which Open is true.
func OpenLoanStatuses() []LoanStatus {
	return slices.Clone(openLoanStatuses)
}

// CanTransitionLoan reports whether from -> to is a caller-invoked edge.
func CanTransitionLoan(from, to LoanStatus) bool {
	return loanNext[from][to]
}

// Loan is a time-boxed borrowing of one or more items.
type Loan struct {
	ID           string     `json:"id" db:"id"`
	BorrowerID   int64      `json:"borrower_id" db:"borrower_id"`
	BorrowerName string     `json:"borrower_name" db:"borrower_name"`
	Purpose      string     `json:"purpose" db:"purpose"`
	Status       LoanStatus `json:"status" db:"status"`
	StartDate    time.Time  `json:"start_date" db:"start_date"`
	EndDate      time.Time  `json:"end_date" db:"end_date"`
	ApprovedBy   *int64     `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	ReturnedAt   *time.Time `json:"returned_at,omitempty" db:"returned_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	Items        []LineItem `json:"items" db:"-"`
}
