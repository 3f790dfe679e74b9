package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/gudangmitra/gudang/internal/apperr"
	"github.com/gudangmitra/gudang/internal/ledger"
	"github.com/gudangmitra/gudang/internal/model"
)

// BulkItem is one row of a stock import. A nil Quantity or MinQuantity means
// the submitted value was not a number.
type BulkItem struct {
	Name        string
	Description string
	Category    string
	Unit        string
	Quantity    *int
	MinQuantity *int
}

// StockCount is one row of a stock count: the absolute on-hand quantity an
// item was counted at. A nil Quantity means the value was not a number.
type StockCount struct {
	ItemID   int64
	Quantity *int
}

// RowError reports why one input row was skipped.
type RowError struct {
	Index   int    `json:"index"`
	ItemID  int64  `json:"item_id,omitempty"`
	Message string `json:"message"`
}

// BulkCreateResult is the outcome of BulkCreateItems.
type BulkCreateResult struct {
	Count  int          `json:"count"`
	Items  []model.Item `json:"items"`
	Errors []RowError   `json:"errors"`
}

// StockResult describes one applied stock count.
type StockResult struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	OldQuantity int           `json:"old_quantity"`
	NewQuantity int           `json:"new_quantity"`
	Status      ledger.Status `json:"status"`
}

// StockUpdateResult is the outcome of BulkUpdateStock.
type StockUpdateResult struct {
	Results      []StockResult `json:"results"`
	Errors       []RowError    `json:"errors"`
	SuccessCount int           `json:"success_count"`
	ErrorCount   int           `json:"error_count"`
}

// BulkCreateItems imports items in one transaction. Invalid rows are
// reported and skipped; the valid ones are committed together.
func BulkCreateItems(ctx context.Context, db *sqlx.DB, rows []BulkItem) (*BulkCreateResult, error) {
	if len(rows) == 0 {
		return nil, apperr.Validationf("at least one item required")
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result := &BulkCreateResult{Items: []model.Item{}, Errors: []RowError{}}
	var ids []int64

	for i, row := range rows {
		in, msg := bulkItemInput(row)
		if msg != "" {
			result.Errors = append(result.Errors, RowError{Index: i, Message: msg})
			continue
		}

		if category := strings.TrimSpace(row.Category); category != "" {
			cid, err := ensureCategory(ctx, tx, category)
			if err != nil {
				return nil, err
			}
			in.CategoryID = &cid
		}

		id, err := insertItem(ctx, tx, in)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	for _, id := range ids {
		item, err := getItem(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, *item)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing bulk create: %w", err)
	}

	result.Count = len(result.Items)
	return result, nil
}

func bulkItemInput(row BulkItem) (ItemInput, string) {
	if row.Quantity == nil {
		return ItemInput{}, "quantity must be a number"
	}
	if row.MinQuantity == nil {
		return ItemInput{}, "min_quantity must be a number"
	}
	in := ItemInput{
		Name:        row.Name,
		Description: row.Description,
		Unit:        row.Unit,
		Quantity:    *row.Quantity,
		MinQuantity: *row.MinQuantity,
	}
	if err := in.normalize(); err != nil {
		return ItemInput{}, apperr.Message(err)
	}
	return in, ""
}

// BulkUpdateStock applies a stock count in one transaction. Each row sets
// the item's quantity to the counted value through the ledger. Rows naming
// unknown items or carrying bad quantities are reported and skipped.
func BulkUpdateStock(ctx context.Context, db *sqlx.DB, counts []StockCount) (*StockUpdateResult, error) {
	if len(counts) == 0 {
		return nil, apperr.Validationf("at least one item required")
	}

	// Lock rows in item order; results are reported in input order.
	order := make([]int, len(counts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return counts[order[a]].ItemID < counts[order[b]].ItemID
	})

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	applied := make(map[int]StockResult, len(counts))
	failed := make(map[int]RowError)

	for _, i := range order {
		c := counts[i]
		switch {
		case c.Quantity == nil:
			failed[i] = RowError{Index: i, ItemID: c.ItemID, Message: "quantity must be a number"}
			continue
		case *c.Quantity < 0:
			failed[i] = RowError{Index: i, ItemID: c.ItemID, Message: "quantity must not be negative"}
			continue
		}

		row, err := lockItem(ctx, tx, c.ItemID)
		if err != nil {
			return nil, err
		}
		if row == nil || !row.IsActive {
			failed[i] = RowError{Index: i, ItemID: c.ItemID, Message: fmt.Sprintf("item %d not found", c.ItemID)}
			continue
		}

		old := row.Quantity
		next := ledger.Apply(old, row.MinQuantity, *c.Quantity-old)
		if err := writeStock(ctx, tx, row, next); err != nil {
			return nil, err
		}
		applied[i] = StockResult{
			ID:          row.ID,
			Name:        row.Name,
			OldQuantity: old,
			NewQuantity: next.Quantity,
			Status:      next.Status,
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing stock update: %w", err)
	}

	result := &StockUpdateResult{Results: []StockResult{}, Errors: []RowError{}}
	for i := range counts {
		if r, ok := applied[i]; ok {
			result.Results = append(result.Results, r)
		} else {
			result.Errors = append(result.Errors, failed[i])
		}
	}
	result.SuccessCount = len(result.Results)
	result.ErrorCount = len(result.Errors)
	return result, nil
}
