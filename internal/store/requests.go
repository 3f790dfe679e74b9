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

const requestSelect = `SELECT r.id, r.requester_id, COALESCE(u.name, '') AS requester_name, r.reason,
       r.status, r.decided_by, r.decided_at, r.created_at, r.updated_at
FROM requests r
LEFT JOIN users u ON u.id = r.requester_id`

const requestLines = `SELECT ri.request_id AS parent_id, ri.item_id, i.name AS item_name, i.unit, ri.quantity
FROM request_items ri
JOIN items i ON i.id = ri.item_id
WHERE ri.request_id IN (?)
ORDER BY ri.item_id`

// RequestFilter narrows ListRequests. Zero values match everything.
type RequestFilter struct {
	RequesterID int64
	Status      string
}

// CreateRequest records a pending request for the given line items. The
// requester must be an active user and every item must be active.
func CreateRequest(ctx context.Context, db *sqlx.DB, requesterID int64, reason string, lines []model.LineItem) (*model.Request, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkParties(ctx, tx, requesterID, lines); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if _, err := exec(ctx, tx,
		`INSERT INTO requests (id, requester_id, reason) VALUES (?, ?, ?)`,
		id, requesterID, strings.TrimSpace(reason),
	); err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for _, l := range lines {
		if _, err := exec(ctx, tx,
			`INSERT INTO request_items (request_id, item_id, quantity) VALUES (?, ?, ?)`,
			id, l.ItemID, l.Quantity,
		); err != nil {
			return nil, fmt.Errorf("adding request item %d: %w", l.ItemID, err)
		}
	}

	r, err := getRequest(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing request: %w", err)
	}
	return r, nil
}

// checkParties verifies that userID is an active user and that every line
// names an active item.
func checkParties(ctx context.Context, tx *sqlx.Tx, userID int64, lines []model.LineItem) error {
	u, err := activeUser(ctx, tx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return apperr.Validationf("user %d not found", userID)
	}

	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.ItemID
	}
	query, args, err := sqlx.In(`SELECT id FROM items WHERE is_active = TRUE AND id IN (?)`, ids)
	if err != nil {
		return fmt.Errorf("building item query: %w", err)
	}
	var found []int64
	if err := selectAll(ctx, tx, &found, query, args...); err != nil {
		return fmt.Errorf("checking items: %w", err)
	}
	have := make(map[int64]bool, len(found))
	for _, id := range found {
		have[id] = true
	}
	for _, id := range ids {
		if !have[id] {
			return apperr.Validationf("item %d not found", id)
		}
	}
	return nil
}

// GetRequest returns a request with its line items.
func GetRequest(ctx context.Context, db *sqlx.DB, id string) (*model.Request, error) {
	return getRequest(ctx, db, id)
}

func getRequest(ctx context.Context, q sqlx.ExtContext, id string) (*model.Request, error) {
	r := &model.Request{}
	err := get(ctx, q, r, requestSelect+` WHERE r.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting request: %w", err)
	}

	lines, err := loadLines(ctx, q, requestLines, []string{id})
	if err != nil {
		return nil, err
	}
	r.Items = withLines(lines[id])
	return r, nil
}

// ListRequests returns requests newest first, each with its line items.
func ListRequests(ctx context.Context, db *sqlx.DB, f RequestFilter) ([]model.Request, error) {
	query := requestSelect + ` WHERE 1=1`
	var args []any

	if f.RequesterID > 0 {
		query += ` AND r.requester_id = ?`
		args = append(args, f.RequesterID)
	}
	if f.Status != "" {
		query += ` AND r.status = ?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY r.created_at DESC, r.id`

	var requests []model.Request
	if err := selectAll(ctx, db, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	if len(requests) == 0 {
		return requests, nil
	}

	ids := make([]string, len(requests))
	for i, r := range requests {
		ids[i] = r.ID
	}
	lines, err := loadLines(ctx, db, requestLines, ids)
	if err != nil {
		return nil, err
	}
	for i := range requests {
		requests[i].Items = withLines(lines[requests[i].ID])
	}
	return requests, nil
}

// DeleteRequest removes a request and its line items. Stock already taken
// by an approved request stays taken.
func DeleteRequest(ctx context.Context, db *sqlx.DB, id string) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := exec(ctx, tx, `DELETE FROM request_items WHERE request_id = ?`, id); err != nil {
		return fmt.Errorf("deleting request items: %w", err)
	}
	res, err := exec(ctx, tx, `DELETE FROM requests WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("request %s not found", id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing request delete: %w", err)
	}
	return nil
}

// WithdrawRequest deletes a request on behalf of its requester. Only the
// owner's pending request qualifies, and the check and the delete share one
// transaction, so a concurrent approval either wins or finds no request.
func WithdrawRequest(ctx context.Context, db *sqlx.DB, id string, requesterID int64) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var cur struct {
		RequesterID int64               `db:"requester_id"`
		Status      model.RequestStatus `db:"status"`
	}
	err = get(ctx, tx, &cur, `SELECT requester_id, status FROM requests WHERE id = ?`+forUpdate(tx), id)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFoundf("request %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("locking request: %w", err)
	}
	if cur.RequesterID != requesterID {
		return apperr.Forbiddenf("not your request")
	}
	if cur.Status != model.RequestPending {
		return apperr.Forbiddenf("only pending requests can be withdrawn")
	}

	// Line items go with the request (ON DELETE CASCADE).
	res, err := exec(ctx, tx,
		`DELETE FROM requests WHERE id = ? AND requester_id = ? AND status = ?`,
		id, requesterID, string(model.RequestPending),
	)
	if err != nil {
		return fmt.Errorf("withdrawing request: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return apperr.Conflictf("request %s changed concurrently", id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing request withdrawal: %w", err)
	}
	return nil
}

// TransitionRequest moves a pending request to target. Approval takes every
// line's quantity out of stock; if any line cannot be satisfied nothing
// changes.
func TransitionRequest(ctx context.Context, db *sqlx.DB, id string, target model.RequestStatus, actorID int64) (*model.Request, error) {
	if !target.Valid() {
		return nil, apperr.Validationf("invalid status %q", target)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var current model.RequestStatus
	err = get(ctx, tx, &current, `SELECT status FROM requests WHERE id = ?`+forUpdate(tx), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("request %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("locking request: %w", err)
	}

	if !model.CanTransitionRequest(current, target) {
		return nil, apperr.InvalidTransitionf("cannot move request from %s to %s", current, target)
	}

	if target == model.RequestApproved {
		lines, err := loadLines(ctx, tx, requestLines, []string{id})
		if err != nil {
			return nil, err
		}
		if err := consumeLines(ctx, tx, lines[id]); err != nil {
			return nil, err
		}
	}

	res, err := exec(ctx, tx,
		`UPDATE requests SET status = ?, decided_by = ?, decided_at = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		string(target), actorRef(actorID), time.Now().UTC(), id, string(current),
	)
	if err != nil {
		return nil, fmt.Errorf("updating request status: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return nil, apperr.Conflictf("request %s changed concurrently", id)
	}

	r, err := getRequest(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing request transition: %w", err)
	}
	return r, nil
}

// loadLines runs a line query over parent ids and groups the rows by parent.
func loadLines(ctx context.Context, q sqlx.ExtContext, lineQuery string, ids []string) (map[string][]model.LineItem, error) {
	query, args, err := sqlx.In(lineQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("building line query: %w", err)
	}
	var rows []model.LineItem
	if err := selectAll(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("loading line items: %w", err)
	}
	byParent := make(map[string][]model.LineItem, len(ids))
	for _, l := range rows {
		byParent[l.ParentID] = append(byParent[l.ParentID], l)
	}
	return byParent, nil
}

func withLines(lines []model.LineItem) []model.LineItem {
	if lines == nil {
		return []model.LineItem{}
	}
	return lines
}

// actorRef maps a zero actor ID to NULL.
func actorRef(id int64) any {
	if id <= 0 {
		return nil
	}
	return id
}
