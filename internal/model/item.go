package model

import (
	"time"

	"github.com/gudangmitra/gudang/internal/ledger"
)

// Item is a stock-keeping unit tracked by on-hand quantity.
// Status is a projection of Quantity and MinQuantity and is rewritten with
// every quantity change.
type Item struct {
	ID          int64         `json:"id" db:"id"`
	Name        string        `json:"name" db:"name"`
	Description string        `json:"description" db:"description"`
	CategoryID  *int64        `json:"category_id" db:"category_id"`
	Category    string        `json:"category" db:"category"`
	Unit        string        `json:"unit" db:"unit"`
	Quantity    int           `json:"quantity" db:"quantity"`
	MinQuantity int           `json:"min_quantity" db:"min_quantity"`
	Status      ledger.Status `json:"status" db:"status"`
	IsActive    bool          `json:"is_active" db:"is_active"`
	HasImage    bool          `json:"has_image" db:"has_image"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

// DefaultUnit is used when an item is created without a unit.
const DefaultUnit = "pcs"
