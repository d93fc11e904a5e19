package terminal

import (
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/events"
	"github.com/shopspring/decimal"
)

// View is everything a front-end needs to draw the active screen.
type View struct {
	Screen            domain.ScreenKind `json:"screen"`
	Category          domain.Category   `json:"category,omitempty"`
	Identity          domain.Identity   `json:"identity,omitempty"`
	Balance           *BalanceView      `json:"balance,omitempty"`
	Session           *SessionView      `json:"session,omitempty"`
	Placeholder       bool              `json:"scan_required"`
	Products          []ProductRow      `json:"products"`
	Total             decimal.Decimal   `json:"total"`
	Projected         decimal.Decimal   `json:"projected_balance"`
	InsufficientFunds bool              `json:"insufficient_funds"`
	CheckoutInFlight  bool              `json:"checkout_in_flight"`
	CashierEnabled    bool              `json:"cashier_enabled"`
	WineEnabled       bool              `json:"wine_enabled"`
	Confirmation      *ConfirmationView `json:"confirmation,omitempty"`
	Notice            *NoticeView       `json:"notice,omitempty"`
}

type BalanceView struct {
	Identity domain.Identity `json:"identity"`
	Amount   decimal.Decimal `json:"amount"`
	Error    bool            `json:"error"`
}

type SessionView struct {
	ID               string    `json:"id"`
	ExpiresAt        time.Time `json:"expires_at"`
	RemainingSeconds int       `json:"remaining_seconds"`
}

type ProductRow struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

type ConfirmationView struct {
	Summary   string          `json:"summary"`
	Lines     []domain.Line   `json:"lines"`
	Total     decimal.Decimal `json:"total"`
	ExpiresAt time.Time       `json:"expires_at"`
}

type NoticeView struct {
	Level   events.Level `json:"level"`
	Message string       `json:"message"`
	Kind    domain.Kind  `json:"kind,omitempty"`
	At      time.Time    `json:"at"`
}

// view builds the snapshot. Runs on the loop.
func (t *Terminal) view() View {
	now := t.clock.Now()
	screen := t.nav.Screen()
	sc := t.sessions.Context()

	v := View{
		Screen:         screen.Kind,
		Category:       screen.Category,
		Identity:       sc.Identity,
		Placeholder:    t.nav.Placeholder(),
		Products:       []ProductRow{},
		CashierEnabled: t.nav.CashierEnabled(),
		WineEnabled:    t.nav.WineEnabled(),
	}

	if b := t.balances.Current(); !b.Identity.IsZero() {
		v.Balance = &BalanceView{Identity: b.Identity, Amount: b.Amount, Error: b.LastError}
	}
	if sc.Session != nil && !sc.Session.Expired(now) {
		v.Session = &SessionView{
			ID:               sc.Session.ID,
			ExpiresAt:        sc.Session.ExpiresAt,
			RemainingSeconds: int(sc.Session.Remaining(now).Seconds()),
		}
	}

	if screen.IsCheckout() {
		if !v.Placeholder {
			for _, r := range t.cart.Rows() {
				v.Products = append(v.Products, ProductRow{
					ID:       r.Product.ID,
					Name:     r.Product.Name,
					Price:    r.Product.Price,
					Quantity: r.Quantity,
				})
			}
		}
		balance := t.orch.Available()
		v.Total = t.cart.Total()
		v.Projected = t.cart.ProjectedBalance(balance)
		v.InsufficientFunds = t.cart.Insufficient(balance)
		v.CheckoutInFlight = t.orch.InFlight()
	}

	if c, ok := t.orch.Confirmation(); ok {
		v.Confirmation = &ConfirmationView{
			Summary:   c.Receipt.Summary(),
			Lines:     c.Receipt.Lines,
			Total:     c.Receipt.Total,
			ExpiresAt: c.ExpiresAt,
		}
	}
	if t.notice != nil {
		v.Notice = &NoticeView{
			Level:   t.notice.Level,
			Message: t.notice.Message,
			Kind:    t.notice.Kind,
			At:      t.notice.At,
		}
	}
	return v
}
