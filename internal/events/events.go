package events

import (
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/shopspring/decimal"
)

// Event is anything published on the Bus.
type Event interface {
	Name() string
}

type ClearReason string

const (
	ReasonExpired     ClearReason = "expired"
	ReasonConsumed    ClearReason = "consumed"
	ReasonCancelled   ClearReason = "cancelled"
	ReasonInvalidated ClearReason = "invalidated"
	ReasonReplaced    ClearReason = "replaced"
	ReasonRenewed     ClearReason = "renewed"
	ReasonNavigation  ClearReason = "navigation"
)

type SessionOpened struct {
	Session domain.ScanSession
}

type SessionCleared struct {
	SessionID string
	Identity  domain.Identity
	Reason    ClearReason
}

// CatalogLoaded follows every successful session open. Err is set when the catalog could
// not be fetched but the session was kept.
type CatalogLoaded struct {
	SessionID string
	Products  []domain.Product
	Err       error
}

type BalanceUpdated struct {
	Balance domain.BalanceView
}

type ScreenChanged struct {
	From domain.Screen
	To   domain.Screen
}

type CartChanged struct {
	Total decimal.Decimal
}

type CheckoutSucceeded struct {
	Confirmation domain.Confirmation
}

type CheckoutFailed struct {
	SessionID string
	Err       error
}

type ConfirmationCleared struct {
	ID string
}

type TillOperation string

const (
	TillLoad   TillOperation = "load"
	TillRefund TillOperation = "refund"
)

// TillCompleted follows a load or refund the backend accepted.
type TillCompleted struct {
	Identity  domain.Identity
	Operation TillOperation
}

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notice is a short message for the operator, e.g. a toast.
type Notice struct {
	Level   Level
	Message string
	Kind    domain.Kind
	At      time.Time
}

func (SessionOpened) Name() string       { return "session.opened" }
func (SessionCleared) Name() string      { return "session.cleared" }
func (CatalogLoaded) Name() string       { return "catalog.loaded" }
func (BalanceUpdated) Name() string      { return "balance.updated" }
func (ScreenChanged) Name() string       { return "screen.changed" }
func (CartChanged) Name() string         { return "cart.changed" }
func (CheckoutSucceeded) Name() string   { return "checkout.succeeded" }
func (CheckoutFailed) Name() string      { return "checkout.failed" }
func (ConfirmationCleared) Name() string { return "confirmation.cleared" }
func (TillCompleted) Name() string       { return "till.completed" }
func (Notice) Name() string              { return "notice" }
