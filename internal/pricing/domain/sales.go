package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalesState is the current sales picture of an item as seen by the pricing
// engine: nominal price, sell-through and start time.
type SalesState struct {
	ItemID           string          `json:"item_id" db:"id"`
	BasePrice        decimal.Decimal `json:"base_price" db:"base_price"`
	Currency         string          `json:"currency" db:"currency"`
	CurrentAttendees int             `json:"current_attendees" db:"current_attendees"`
	MaxAttendees     int             `json:"max_attendees" db:"max_attendees"`
	StartsAt         time.Time       `json:"starts_at" db:"starts_at"`
}

// PriceChange is emitted to subscribers and downstream sinks every time an
// item's published price moves.
type PriceChange struct {
	ItemID        string          `json:"item_id"`
	Currency      string          `json:"currency,omitempty"`
	PreviousPrice decimal.Decimal `json:"previous_price"`
	Snapshot      PriceSnapshot   `json:"snapshot"`
	Conditions    []string        `json:"conditions"`
}
