package domain

import "errors"

// Error kinds. Every error produced by the terminal core wraps exactly one of these.
var (
	ErrTransport      = errors.New("transport failure")
	ErrRejected       = errors.New("backend rejected request")
	ErrPrecondition   = errors.New("precondition violated")
	ErrSessionExpired = errors.New("scan session expired")
)

var (
	ErrEmptySelection    = preconditionError("no products selected")
	ErrInsufficientFunds = preconditionError("insufficient chips")
	ErrNoSession         = preconditionError("no scan session, scan tag first")
	ErrNoIdentity        = preconditionError("no tag scanned")
	ErrInvalidIdentity   = preconditionError("invalid uid")
	ErrInvalidAmount     = preconditionError("amount must be a positive whole number")
	ErrCheckoutInFlight  = preconditionError("checkout already in progress")
	ErrCategoryDisabled  = preconditionError("category is disabled")
	ErrUnknownCategory   = preconditionError("unknown category")
	ErrIllegalTransition = preconditionError("illegal screen transition")
	ErrWrongScreen       = preconditionError("operation not available on this screen")
	ErrMissingName       = preconditionError("snapshot name is required")
	ErrUnknownProduct    = preconditionError("product is not offered here")
	ErrSessionOpenFailed = errors.New("scan session could not be opened")
)

type wrappedKind struct {
	msg  string
	kind error
}

func (e *wrappedKind) Error() string { return e.msg }
func (e *wrappedKind) Unwrap() error { return e.kind }

func preconditionError(msg string) error {
	return &wrappedKind{msg: msg, kind: ErrPrecondition}
}

// Kind classifies errors for the display layer.
type Kind string

const (
	KindNone           Kind = ""
	KindTransport      Kind = "transport_failure"
	KindRejected       Kind = "backend_rejection"
	KindPrecondition   Kind = "precondition_violation"
	KindSessionExpired Kind = "session_expired"
	KindUnknown        Kind = "unknown"
)

// KindOf reports which error kind err belongs to.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrPrecondition):
		return KindPrecondition
	case errors.Is(err, ErrRejected):
		return KindRejected
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrSessionExpired):
		return KindSessionExpired
	default:
		return KindUnknown
	}
}
