package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Line is one selected product with the price shown when it was selected.
type Line struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Subtotal returns price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Receipt is the client-side record of a charge the backend confirmed.
type Receipt struct {
	Identity  Identity        `json:"identity"`
	SessionID string          `json:"session_id"`
	Lines     []Line          `json:"lines"`
	Total     decimal.Decimal `json:"total"`
	Order     json.RawMessage `json:"order,omitempty"`
	PaidAt    time.Time       `json:"paid_at"`
}

// Summary lists purchased lines as "name × qty", one per line.
func (r Receipt) Summary() string {
	parts := make([]string, 0, len(r.Lines))
	for _, l := range r.Lines {
		parts = append(parts, fmt.Sprintf("%s × %d", l.Name, l.Quantity))
	}
	return strings.Join(parts, "\n")
}

// Confirmation is the time-limited paid notice shown after a successful checkout.
type Confirmation struct {
	ID        string    `json:"id"`
	Receipt   Receipt   `json:"receipt"`
	ShownAt   time.Time `json:"shown_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
