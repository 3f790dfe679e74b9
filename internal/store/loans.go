package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gudangmitra/gudang/internal/apperr"
	"github.com/gudangmitra/gudang/internal/model"
)

const loanSelect = `SELECT l.id, l.borrower_id, COALESCE(u.name, '') AS borrower_name, l.purpose, l.status,
       l.start_date, l.end_date, l.approved_by, l.approved_at, l.returned_at, l.created_at, l.updated_at
FROM loans l
LEFT JOIN users u ON u.id = l.borrower_id`

const loanLines = `SELECT li.loan_id AS parent_id, li.item_id, i.name AS item_name, i.unit, li.quantity
FROM loan_items li
JOIN items i ON i.id = li.item_id
WHERE li.loan_id IN (?)
ORDER BY li.item_id`

// LoanInput holds the fields of a new loan. A zero StartDate means now.
type LoanInput struct {
	BorrowerID int64
	Purpose    string
	StartDate  time.Time
	EndDate    time.Time
	Items      []model.LineItem
}

// LoanFilter narrows ListLoans. Zero values match everything.
type LoanFilter struct {
	BorrowerID int64
	Status     string
}

// CreateLoan records a pending loan.
func CreateLoan(ctx context.Context, db *sqlx.DB, in LoanInput) (*model.Loan, error) {
	if err := validateLines(in.Items); err != nil {
		return nil, err
	}
	if in.StartDate.IsZero() {
		in.StartDate = time.Now()
	}
	if in.EndDate.IsZero() {
		return nil, apperr.Validationf("end_date required")
	}
	if !in.EndDate.After(in.StartDate) {
		return nil, apperr.Validationf("end_date must be after start_date")
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkParties(ctx, tx, in.BorrowerID, in.Items); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if _, err := exec(ctx, tx,
		`INSERT INTO loans (id, borrower_id, purpose, start_date, end_date) VALUES (?, ?, ?, ?, ?)`,
		id, in.BorrowerID, strings.TrimSpace(in.Purpose), in.StartDate.UTC(), in.EndDate.UTC(),
	); err != nil {
		return nil, fmt.Errorf("creating loan: %w", err)
	}
	for _, l := range in.Items {
		if _, err := exec(ctx, tx,
			`INSERT INTO loan_items (loan_id, item_id, quantity) VALUES (?, ?, ?)`,
			id, l.ItemID, l.Quantity,
		); err != nil {
			return nil, fmt.Errorf("adding loan item %d: %w", l.ItemID, err)
		}
	}

	loan, err := getLoan(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing loan: %w", err)
	}
	return loan, nil
}

// GetLoan returns a loan with its line items.
func GetLoan(ctx context.Context, db *sqlx.DB, id string) (*model.Loan, error) {
	return getLoan(ctx, db, id)
}

func getLoan(ctx context.Context, q sqlx.ExtContext, id string) (*model.Loan, error) {
	loan := &model.Loan{}
	err := get(ctx, q, loan, loanSelect+` WHERE l.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting loan: %w", err)
	}

	lines, err := loadLines(ctx, q, loanLines, []string{id})
	if err != nil {
		return nil, err
	}
	loan.Items = withLines(lines[id])
	return loan, nil
}

// ListLoans returns loans newest first, each with its line items.
func ListLoans(ctx context.Context, db *sqlx.DB, f LoanFilter) ([]model.Loan, error) {
	query := loanSelect + ` WHERE 1=1`
	var args []any

	if f.BorrowerID > 0 {
		query += ` AND l.borrower_id = ?`
		args = append(args, f.BorrowerID)
	}
	if f.Status != "" {
		query += ` AND l.status = ?`
		args = append(args, string(model.ParseLoanStatus(f.Status)))
	}
	query += ` ORDER BY l.created_at DESC, l.id`

	var loans []model.Loan
	if err := selectAll(ctx, db, &loans, query, args...); err != nil {
		return nil, fmt.Errorf("listing loans: %w", err)
	}
	if len(loans) == 0 {
		return loans, nil
	}

	ids := make([]string, len(loans))
	for i, l := range loans {
		ids[i] = l.ID
	}
	lines, err := loadLines(ctx, db, loanLines, ids)
	if err != nil {
		return nil, err
	}
	for i := range loans {
		loans[i].Items = withLines(lines[loans[i].ID])
	}
	return loans, nil
}

// TransitionLoan moves a loan to target. Activation takes the loaned
// quantities out of stock and return puts them back, all or nothing.
func TransitionLoan(ctx context.Context, db *sqlx.DB, id string, target model.LoanStatus, actorID int64) (*model.Loan, error) {
	target = model.ParseLoanStatus(string(target))
	if !target.Valid() {
		return nil, apperr.Validationf("invalid status %q", target)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var current model.LoanStatus
	err = get(ctx, tx, &current, `SELECT status FROM loans WHERE id = ?`+forUpdate(tx), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("loan %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("locking loan: %w", err)
	}

	if current == model.LoanReturned && target == model.LoanReturned {
		return nil, apperr.AlreadyReturnedf("loan %s already returned", id)
	}
	if !model.CanTransitionLoan(current, target) {
		return nil, apperr.InvalidTransitionf("cannot move loan from %s to %s", current, target)
	}

	now := time.Now().UTC()
	update := `UPDATE loans SET status = ?, updated_at = CURRENT_TIMESTAMP`
	args := []any{string(target)}

	switch target {
	case model.LoanActive:
		lines, err := loadLines(ctx, tx, loanLines, []string{id})
		if err != nil {
			return nil, err
		}
		if err := consumeLines(ctx, tx, lines[id]); err != nil {
			return nil, err
		}
		update += `, approved_by = ?, approved_at = ?`
		args = append(args, actorRef(actorID), now)
	case model.LoanRejected:
		update += `, approved_by = ?, approved_at = ?`
		args = append(args, actorRef(actorID), now)
	case model.LoanReturned:
		lines, err := loadLines(ctx, tx, loanLines, []string{id})
		if err != nil {
			return nil, err
		}
		if err := restockLines(ctx, tx, lines[id]); err != nil {
			return nil, err
		}
		update += `, returned_at = ?`
		args = append(args, now)
	}

	update += ` WHERE id = ? AND status = ?`
	args = append(args, id, string(current))

	res, err := exec(ctx, tx, update, args...)
	if err != nil {
		return nil, fmt.Errorf("updating loan status: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return nil, apperr.Conflictf("loan %s changed concurrently", id)
	}

	loan, err := getLoan(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing loan transition: %w", err)
	}
	return loan, nil
}

// MarkOverdueLoans moves every active loan whose end date is before now to
// overdue and returns the loans it moved.
func MarkOverdueLoans(ctx context.Context, db *sqlx.DB, now time.Time) ([]model.Loan, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var active []struct {
		ID      string    `db:"id"`
		EndDate time.Time `db:"end_date"`
	}
	if err := selectAll(ctx, tx, &active,
		`SELECT id, end_date FROM loans WHERE status = 'active'`+forUpdate(tx),
	); err != nil {
		return nil, fmt.Errorf("listing active loans: %w", err)
	}

	var moved []model.Loan
	for _, l := range active {
		if !l.EndDate.Before(now) {
			continue
		}
		if _, err := exec(ctx, tx,
			`UPDATE loans SET status = 'overdue', updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = 'active'`,
			l.ID,
		); err != nil {
			return nil, fmt.Errorf("marking loan %s overdue: %w", l.ID, err)
		}
		loan, err := getLoan(ctx, tx, l.ID)
		if err != nil {
			return nil, err
		}
		moved = append(moved, *loan)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing overdue sweep: %w", err)
	}
	return moved, nil
}
