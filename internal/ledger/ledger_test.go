package ledger

import "testing"

func TestApplyClampsAndPartitions(t *testing.T) {
	for q := 0; q <= 12; q++ {
		for minQ := 0; minQ <= 6; minQ++ {
			for delta := -15; delta <= 15; delta++ {
				got := Apply(q, minQ, delta)

				want := q + delta
				if want < 0 {
					want = 0
				}
				if got.Quantity != want {
					t.Fatalf("Apply(%d, %d, %d).Quantity = %d, want %d", q, minQ, delta, got.Quantity, want)
				}

				matches := 0
				if got.Quantity == 0 && got.Status == OutOfStock {
					matches++
				}
				if got.Quantity > 0 && got.Quantity <= minQ && got.Status == LowStock {
					matches++
				}
				if got.Quantity > minQ && got.Status == InStock {
					matches++
				}
				if matches != 1 {
					t.Fatalf("Apply(%d, %d, %d) = %+v does not fall in exactly one partition", q, minQ, delta, got)
				}
			}
		}
	}
}

func TestApplyScenario(t *testing.T) {
	if s := StatusOf(5, 5); s != LowStock {
		t.Fatalf("expected low-stock for {5,5}, got %q", s)
	}

	r := Apply(5, 5, -5)
	if r.Quantity != 0 || r.Status != OutOfStock {
		t.Fatalf("after -5 expected {0 out-of-stock}, got %+v", r)
	}

	r = Apply(r.Quantity, 5, 2)
	if r.Quantity != 2 || r.Status != LowStock {
		t.Fatalf("after +2 expected {2 low-stock}, got %+v", r)
	}
}

func TestZeroMinimumIsNeverLow(t *testing.T) {
	for q := 1; q < 5; q++ {
		if s := StatusOf(q, 0); s != InStock {
			t.Errorf("StatusOf(%d, 0) = %q, want in-stock", q, s)
		}
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{InStock, LowStock, OutOfStock} {
		if !s.Valid() {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if Status("active").Valid() {
		t.Error("expected unknown status to be invalid")
	}
}
