package model

import "time"

// RequestStatus is the lifecycle state of a stock request.
type RequestStatus string

// Request statuses. Every status other than pending is terminal.
const (
	RequestPending    RequestStatus = "pending"
	RequestApproved   RequestStatus = "approved"
	RequestDenied     RequestStatus = "denied"
	RequestFulfilled  RequestStatus = "fulfilled"
	RequestOutOfStock RequestStatus = "out_of_stock"
)

var requestNext = map[RequestStatus]map[RequestStatus]bool{
	RequestPending: {
		RequestApproved:   true,
		RequestDenied:     true,
		RequestFulfilled:  true,
		RequestOutOfStock: true,
	},
	RequestApproved:   {},
	RequestDenied:     {},
	RequestFulfilled:  {},
	RequestOutOfStock: {},
}

// Valid reports whether s is a known request status.
func (s RequestStatus) Valid() bool {
	_, ok := requestNext[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s RequestStatus) Terminal() bool {
	return s.Valid() && len(requestNext[s]) == 0
}

// CanTransitionRequest reports whether from -> to is a legal edge.
func CanTransitionRequest(from, to RequestStatus) bool {
	return requestNext[from][to]
}

// Request is one user's ask to take items out of stock.
type Request struct {
	ID            string        `json:"id" db:"id"`
	RequesterID   int64         `json:"requester_id" db:"requester_id"`
	RequesterName string        `json:"requester_name" db:"requester_name"`
	Reason        string        `json:"reason" db:"reason"`
	Status        RequestStatus `json:"status" db:"status"`
	DecidedBy     *int64        `json:"decided_by,omitempty" db:"decided_by"`
	DecidedAt     *time.Time    `json:"decided_at,omitempty" db:"decided_at"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
	Items         []LineItem    `json:"items" db:"-"`
}

// LineItem is one (item, quantity) pair of a request or loan.
type LineItem struct {
	ParentID string `json:"-" db:"parent_id"`
	ItemID   int64  `json:"item_id" db:"item_id"`
	ItemName string `json:"item_name" db:"item_name"`
	Unit     string `json:"unit" db:"unit"`
	Quantity int    `json:"quantity" db:"quantity"`
}
