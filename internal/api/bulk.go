package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gudangmitra/gudang/internal/store"
)

// bulkItemRow is one submitted import row. Numbers may arrive as JSON
// numbers or numeric strings, as spreadsheets export them.
type bulkItemRow struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Unit        string          `json:"unit"`
	Quantity    json.RawMessage `json:"quantity"`
	MinQuantity json.RawMessage `json:"min_quantity"`
}

type stockCountRow struct {
	ID       json.RawMessage `json:"id"`
	Quantity json.RawMessage `json:"quantity"`
}

// decodeRows accepts a bare JSON array or an object wrapping it under "items".
func decodeRows(r *http.Request, target any) bool {
	defer r.Body.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var wrapped struct {
			Items json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return false
		}
		raw = bytes.TrimSpace(wrapped.Items)
	}
	if len(raw) == 0 || raw[0] != '[' {
		return false
	}
	return json.Unmarshal(raw, target) == nil
}

// intField reads a whole number. Absent or null yields def; anything that
// is not a whole number yields nil.
func intField(raw json.RawMessage, def *int) *int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return def
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return nil
		}
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return nil
	}
	n := int(f)
	return &n
}

// BulkCreate handles POST /api/items/bulk.
func (h *ItemsHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var rows []bulkItemRow
	if !decodeRows(r, &rows) || len(rows) == 0 {
		jsonError(w, http.StatusBadRequest, "items must be a non-empty array")
		return
	}

	zero := 0
	in := make([]store.BulkItem, len(rows))
	for i, row := range rows {
		in[i] = store.BulkItem{
			Name:        row.Name,
			Description: row.Description,
			Category:    row.Category,
			Unit:        row.Unit,
			Quantity:    intField(row.Quantity, &zero),
			MinQuantity: intField(row.MinQuantity, &zero),
		}
	}

	result, err := store.BulkCreateItems(r.Context(), h.DB, in)
	if err != nil {
		h.fail(w, r, "failed to import items", err)
		return
	}

	slog.Info("items imported", "user", GetClaims(r.Context()).Email, "count", result.Count, "errors", len(result.Errors))
	ok(w, http.StatusCreated, "items imported", result)
}

// BulkUpdateStock handles POST /api/items/bulk-update-stock.
func (h *ItemsHandler) BulkUpdateStock(w http.ResponseWriter, r *http.Request) {
	var rows []stockCountRow
	if !decodeRows(r, &rows) || len(rows) == 0 {
		jsonError(w, http.StatusBadRequest, "items must be a non-empty array")
		return
	}

	counts := make([]store.StockCount, len(rows))
	for i, row := range rows {
		var id int64
		if n := intField(row.ID, nil); n != nil {
			id = int64(*n)
		}
		counts[i] = store.StockCount{ItemID: id, Quantity: intField(row.Quantity, nil)}
	}

	result, err := store.BulkUpdateStock(r.Context(), h.DB, counts)
	if err != nil {
		h.fail(w, r, "failed to update stock", err)
		return
	}

	slog.Info("stock counted", "user", GetClaims(r.Context()).Email, "updated", result.SuccessCount, "errors", result.ErrorCount)
	ok(w, http.StatusOK, "stock updated", result)
}
