package store

import (
	"context"
	"testing"

	"github.com/gudangmitra/gudang/internal/db"
	"github.com/gudangmitra/gudang/internal/ledger"
)

func intp(v int) *int { return &v }

func TestBulkCreateItems(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	res, err := BulkCreateItems(ctx, database, []BulkItem{
		{Name: "Pencil", Category: "Stationery", Quantity: intp(20), MinQuantity: intp(5)},
		{Name: "", Quantity: intp(1), MinQuantity: intp(0)},
		{Name: "Eraser", Category: "stationery", Quantity: intp(2), MinQuantity: intp(5)},
		{Name: "Ruler", Quantity: nil, MinQuantity: intp(0)},
		{Name: "Glue", Quantity: intp(-3), MinQuantity: intp(0)},
	})
	if err != nil {
		t.Fatalf("BulkCreateItems: %v", err)
	}

	if res.Count != 2 || len(res.Items) != 2 {
		t.Fatalf("expected 2 created items, got count=%d items=%d", res.Count, len(res.Items))
	}
	if len(res.Errors) != 3 {
		t.Fatalf("expected 3 row errors, got %+v", res.Errors)
	}
	wantIdx := []int{1, 3, 4}
	for i, e := range res.Errors {
		if e.Index != wantIdx[i] {
			t.Errorf("error %d: expected index %d, got %d", i, wantIdx[i], e.Index)
		}
		if e.Message == "" {
			t.Errorf("error %d: expected a message", i)
		}
	}

	if res.Items[1].Status != ledger.LowStock {
		t.Errorf("expected Eraser to be low-stock, got %s", res.Items[1].Status)
	}

	// Both rows share one category, matched without regard to case.
	cats, _ := ListCategories(ctx, database)
	if len(cats) != 1 || cats[0].ItemCount != 2 {
		t.Errorf("expected one category with 2 items, got %+v", cats)
	}
}

func TestBulkUpdateStock(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := seedItem(t, database, "Tape", 10, 3)
	b := seedItem(t, database, "Scissors", 1, 3)

	res, err := BulkUpdateStock(ctx, database, []StockCount{
		{ItemID: a.ID, Quantity: intp(2)},
		{ItemID: 999, Quantity: intp(5)},
		{ItemID: b.ID, Quantity: intp(8)},
	})
	if err != nil {
		t.Fatalf("BulkUpdateStock: %v", err)
	}

	if res.ErrorCount != 1 || res.SuccessCount != 2 {
		t.Fatalf("expected 2 successes and 1 error, got %d/%d", res.SuccessCount, res.ErrorCount)
	}
	if res.Errors[0].Index != 1 || res.Errors[0].ItemID != 999 {
		t.Errorf("unexpected error row: %+v", res.Errors[0])
	}

	first := res.Results[0]
	if first.ID != a.ID || first.OldQuantity != 10 || first.NewQuantity != 2 || first.Status != ledger.LowStock {
		t.Errorf("unexpected result for Tape: %+v", first)
	}

	gotA, _ := GetItem(ctx, database, a.ID)
	gotB, _ := GetItem(ctx, database, b.ID)
	if gotA.Quantity != 2 || gotB.Quantity != 8 {
		t.Errorf("expected valid rows to commit, got Tape=%d Scissors=%d", gotA.Quantity, gotB.Quantity)
	}
	if gotB.Status != ledger.InStock {
		t.Errorf("expected Scissors in-stock, got %s", gotB.Status)
	}
}

func TestBulkUpdateStockBadQuantities(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	a := seedItem(t, database, "Tape", 10, 3)

	res, err := BulkUpdateStock(ctx, database, []StockCount{
		{ItemID: a.ID, Quantity: nil},
		{ItemID: a.ID, Quantity: intp(-1)},
	})
	if err != nil {
		t.Fatalf("BulkUpdateStock: %v", err)
	}
	if res.ErrorCount != 2 || res.SuccessCount != 0 {
		t.Errorf("expected 2 errors, got %+v", res)
	}

	got, _ := GetItem(ctx, database, a.ID)
	if got.Quantity != 10 {
		t.Errorf("expected quantity unchanged, got %d", got.Quantity)
	}
}

func TestBulkRejectsEmptyInput(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := BulkCreateItems(ctx, database, nil); err == nil {
		t.Error("expected error for empty bulk create")
	}
	if _, err := BulkUpdateStock(ctx, database, nil); err == nil {
		t.Error("expected error for empty stock update")
	}
}
