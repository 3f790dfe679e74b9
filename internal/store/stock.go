package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/gudangmitra/gudang/internal/apperr"
	"github.com/gudangmitra/gudang/internal/ledger"
	"github.com/gudangmitra/gudang/internal/model"
)

// stockRow is the part of an item a ledger movement reads.
type stockRow struct {
	ID          int64  `db:"id"`
	Name        string `db:"name"`
	Quantity    int    `db:"quantity"`
	MinQuantity int    `db:"min_quantity"`
	IsActive    bool   `db:"is_active"`
}

// lockItem reads an item's stock inside tx, taking a row lock where the
// driver supports one. It returns nil if the item does not exist.
func lockItem(ctx context.Context, tx *sqlx.Tx, id int64) (*stockRow, error) {
	row := &stockRow{}
	err := get(ctx, tx, row,
		`SELECT id, name, quantity, min_quantity, is_active FROM items WHERE id = ?`+forUpdate(tx), id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("locking item %d: %w", id, err)
	}
	return row, nil
}

// writeStock stores a ledger result for row. The write only lands if the
// quantity is still the one row was read with.
func writeStock(ctx context.Context, tx *sqlx.Tx, row *stockRow, r ledger.Result) error {
	res, err := exec(ctx, tx,
		`UPDATE items SET quantity = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND quantity = ?`,
		r.Quantity, string(r.Status), row.ID, row.Quantity,
	)
	if err != nil {
		return fmt.Errorf("updating stock of item %d: %w", row.ID, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return apperr.Conflictf("stock of %s changed concurrently", row.Name)
	}
	row.Quantity = r.Quantity
	return nil
}

// consumeLines takes every line's quantity out of stock. Any missing,
// inactive or short item fails the whole call; the caller rolls back.
func consumeLines(ctx context.Context, tx *sqlx.Tx, lines []model.LineItem) error {
	for _, l := range byItemID(lines) {
		row, err := lockItem(ctx, tx, l.ItemID)
		if err != nil {
			return err
		}
		if row == nil || !row.IsActive {
			return apperr.NotFoundf("item %d not found", l.ItemID)
		}
		if row.Quantity < l.Quantity {
			return apperr.Conflictf("insufficient stock for %s: have %d, need %d", row.Name, row.Quantity, l.Quantity)
		}
		if err := writeStock(ctx, tx, row, ledger.Apply(row.Quantity, row.MinQuantity, -l.Quantity)); err != nil {
			return err
		}
	}
	return nil
}

// restockLines puts every line's quantity back into stock.
func restockLines(ctx context.Context, tx *sqlx.Tx, lines []model.LineItem) error {
	for _, l := range byItemID(lines) {
		row, err := lockItem(ctx, tx, l.ItemID)
		if err != nil {
			return err
		}
		if row == nil {
			return apperr.NotFoundf("item %d not found", l.ItemID)
		}
		if err := writeStock(ctx, tx, row, ledger.Apply(row.Quantity, row.MinQuantity, l.Quantity)); err != nil {
			return err
		}
	}
	return nil
}

// byItemID returns lines sorted by item ID so concurrent transactions lock
// rows in the same order.
func byItemID(lines []model.LineItem) []model.LineItem {
	sorted := make([]model.LineItem, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ItemID < sorted[j].ItemID })
	return sorted
}

// validateLines checks a new request's or loan's line items.
func validateLines(lines []model.LineItem) error {
	if len(lines) == 0 {
		return apperr.Validationf("at least one item required")
	}
	seen := make(map[int64]bool, len(lines))
	for _, l := range lines {
		if l.ItemID <= 0 {
			return apperr.Validationf("item_id required")
		}
		if l.Quantity <= 0 {
			return apperr.Validationf("quantity for item %d must be positive", l.ItemID)
		}
		if seen[l.ItemID] {
			return apperr.Validationf("item %d listed more than once", l.ItemID)
		}
		seen[l.ItemID] = true
	}
	return nil
}
