package model

import "testing"

func TestRequestTransitions(t *testing.T) {
	targets := []RequestStatus{RequestApproved, RequestDenied, RequestFulfilled, RequestOutOfStock}
	for _, to := range targets {
		if !CanTransitionRequest(RequestPending, to) {
			t.Errorf("expected pending -> %s to be legal", to)
		}
		for _, from := range targets {
			if CanTransitionRequest(from, to) {
				t.Errorf("expected %s -> %s to be illegal", from, to)
			}
		}
		if !to.Terminal() {
			t.Errorf("expected %s to be terminal", to)
		}
	}

	if CanTransitionRequest(RequestPending, "shipped") {
		t.Error("expected unknown target to be illegal")
	}
	if CanTransitionRequest(RequestPending, RequestPending) {
		t.Error("expected pending -> pending to be illegal")
	}
	if RequestPending.Terminal() {
		t.Error("pending must not be terminal")
	}
}

func TestLoanTransitions(t *testing.T) {
	tests := []struct {
		from, to LoanStatus
		want     bool
	}{
		{LoanPending, LoanActive, true},
		{LoanPending, LoanRejected, true},
		{LoanPending, LoanCancelled, true},
		{LoanPending, LoanReturned, false},
		{LoanActive, LoanReturned, true},
		{LoanOverdue, LoanReturned, true},
		{LoanActive, LoanOverdue, false},
		{LoanActive, LoanCancelled, false},
		{LoanReturned, LoanReturned, false},
		{LoanRejected, LoanActive, false},
		{LoanCancelled, LoanActive, false},
	}

	for _, tt := range tests {
		if got := CanTransitionLoan(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransitionLoan(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestParseLoanStatus(t *testing.T) {
	if got := ParseLoanStatus("approved"); got != LoanActive {
		t.Errorf("expected approved to map to active, got %q", got)
	}
	if got := ParseLoanStatus("returned"); got != LoanReturned {
		t.Errorf("expected returned, got %q", got)
	}
	if ParseLoanStatus("lost").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}

func TestLoanOpen(t *testing.T) {
	open := map[LoanStatus]bool{}
	for _, s := range OpenLoanStatuses() {
		open[s] = true
	}
	for s := range loanNext {
		if s.Open() != open[s] {
			t.Errorf("%s: Open() = %v, listed = %v", s, s.Open(), open[s])
		}
		if s.Open() && s.Terminal() {
			t.Errorf("%s is both open and terminal", s)
		}
	}
	if !LoanOverdue.Open() || LoanReturned.Open() {
		t.Error("expected overdue to be open and returned to be closed")
	}
}
