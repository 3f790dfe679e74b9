// Package ledger maps an item's on-hand quantity and a signed delta to the
// new quantity and its derived stock status.
package ledger

// Status is the derived stock status of an item.
type Status string

// Stock statuses.
const (
	InStock    Status = "in-stock"
	LowStock   Status = "low-stock"
	OutOfStock Status = "out-of-stock"
)

// Result is the outcome of applying a delta.
type Result struct {
	Quantity int
	Status   Status
}

// Apply adds delta to current and clamps the result at zero.
// Callers that must not over-consume check availability before calling.
func Apply(current, minQuantity, delta int) Result {
	q := current + delta
	if q < 0 {
		q = 0
	}
	return Result{Quantity: q, Status: StatusOf(q, minQuantity)}
}

// StatusOf derives the status for a quantity and reorder threshold.
func StatusOf(quantity, minQuantity int) Status {
	switch {
	case quantity <= 0:
		return OutOfStock
	case quantity <= minQuantity:
		return LowStock
	default:
		return InStock
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == InStock || s == LowStock || s == OutOfStock
}
