package model

import "time"

// Category groups items.
type Category struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	ItemCount   int       `json:"item_count" db:"item_count"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
