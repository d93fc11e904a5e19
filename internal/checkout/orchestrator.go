package checkout

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fjod/go_pos/internal/backend"
	"github.com/fjod/go_pos/internal/cart"
	"github.com/fjod/go_pos/internal/dispatch"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/events"
	"github.com/fjod/go_pos/internal/session"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const DefaultConfirmationTTL = 2 * time.Minute

var tracer = otel.Tracer("github.com/fjod/go_pos/internal/checkout")

type API interface {
	Charge(ctx context.Context, sessionID string, req backend.ChargeRequest) (json.RawMessage, error)
	Load(ctx context.Context, uid domain.Identity, amount int64) error
	Refund(ctx context.Context, uid domain.Identity) error
}

type Sessions interface {
	Context() session.Context
	Consume()
}

type Balances interface {
	Current() domain.BalanceView
	RefreshAfterChange(id domain.Identity)
}

type Config struct {
	ConfirmationTTL time.Duration
}

// Orchestrator submits charges and till operations. Success clears local checkout state;
// failure keeps it so the operator can retry. All methods must run on the event loop.
type Orchestrator struct {
	loop     *dispatch.Loop
	clock    dispatch.Clock
	api      API
	sessions Sessions
	cart     *cart.Engine
	balances Balances
	bus      *events.Bus
	logger   *zap.Logger
	cfg      Config

	inFlight     bool
	confirmation *domain.Confirmation
	dismiss      dispatch.Task
}

func NewOrchestrator(loop *dispatch.Loop, clock dispatch.Clock, api API, sessions Sessions, engine *cart.Engine, balances Balances, bus *events.Bus, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.ConfirmationTTL <= 0 {
		cfg.ConfirmationTTL = DefaultConfirmationTTL
	}
	return &Orchestrator{
		loop:     loop,
		clock:    clock,
		api:      api,
		sessions: sessions,
		cart:     engine,
		balances: balances,
		bus:      bus,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "checkout")),
	}
}

// InFlight reports whether a charge is waiting for the backend.
func (o *Orchestrator) InFlight() bool {
	return o.inFlight
}

// Confirmation returns the paid notice currently shown, if any.
func (o *Orchestrator) Confirmation() (domain.Confirmation, bool) {
	if o.confirmation == nil {
		return domain.Confirmation{}, false
	}
	return *o.confirmation, true
}

// Checkout charges the current selection against the bound session. Precondition failures
// are returned immediately and nothing is sent. Otherwise done runs on the loop with the
// receipt or the backend error.
func (o *Orchestrator) Checkout(done func(domain.Receipt, error)) error {
	if o.inFlight {
		return domain.ErrCheckoutInFlight
	}
	total := o.cart.Total()
	if !total.IsPositive() {
		return domain.ErrEmptySelection
	}
	sc := o.sessions.Context()
	if total.GreaterThan(o.available(sc)) {
		return domain.ErrInsufficientFunds
	}
	if !sc.HasSession() {
		return domain.ErrNoSession
	}
	if sc.Session.Expired(o.clock.Now()) {
		return domain.ErrSessionExpired
	}
	if done == nil {
		done = func(domain.Receipt, error) {}
	}

	s := *sc.Session
	lines := o.cart.Snapshot()
	req := backend.NewChargeRequest(lines, total)
	o.inFlight = true

	dispatch.Submit(o.loop, func(ctx context.Context) (json.RawMessage, error) {
		ctx, span := tracer.Start(ctx, "checkout.charge", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()
		span.SetAttributes(
			attribute.String("scan_session.id", s.ID),
			attribute.Int("checkout.lines", len(lines)),
			attribute.String("checkout.amount", total.String()),
		)
		order, err := o.api.Charge(ctx, s.ID, req)
		if err != nil {
			span.RecordError(err)
		}
		return order, err
	}, func(order json.RawMessage, err error) {
		o.inFlight = false
		if err != nil {
			o.logger.Warn("charge failed", zap.String("session_id", s.ID), zap.Error(err))
			o.bus.Publish(events.CheckoutFailed{SessionID: s.ID, Err: err})
			o.notify(events.LevelError, "Payment failed: "+backend.Message(err), err)
			done(domain.Receipt{}, err)
			return
		}

		receipt := domain.Receipt{
			Identity:  s.Identity,
			SessionID: s.ID,
			Lines:     lines,
			Total:     total,
			Order:     order,
			PaidAt:    o.clock.Now(),
		}
		o.logger.Info("charge succeeded",
			zap.String("session_id", s.ID),
			zap.String("uid", s.Identity.String()),
			zap.String("total", total.String()),
		)

		// a renewed session of the same identity still holds the paid cart
		if cur := o.sessions.Context(); cur.HasSession() && cur.Session.Identity == s.Identity {
			o.sessions.Consume()
			o.cart.Clear()
			o.bus.Publish(events.CartChanged{Total: o.cart.Total()})
		}
		if o.balances.Current().Identity == s.Identity {
			o.balances.RefreshAfterChange(s.Identity)
		}
		o.confirm(receipt)
		done(receipt, nil)
	})
	return nil
}

// Available returns the chips the bound session can spend. A balance fetched for another
// identity counts as zero.
func (o *Orchestrator) Available() decimal.Decimal {
	return o.available(o.sessions.Context())
}

func (o *Orchestrator) available(sc session.Context) decimal.Decimal {
	b := o.balances.Current()
	if sc.HasSession() && b.Identity != sc.Session.Identity {
		return decimal.Zero
	}
	return b.Amount
}

func (o *Orchestrator) confirm(receipt domain.Receipt) {
	if o.dismiss != nil {
		o.dismiss.Cancel()
	}
	now := o.clock.Now()
	c := domain.Confirmation{
		ID:        uuid.NewString(),
		Receipt:   receipt,
		ShownAt:   now,
		ExpiresAt: now.Add(o.cfg.ConfirmationTTL),
	}
	o.confirmation = &c
	id := c.ID
	o.dismiss = o.clock.AfterFunc(o.cfg.ConfirmationTTL, func() { o.dismissID(id) })
	o.bus.Publish(events.CheckoutSucceeded{Confirmation: c})
}

// DismissConfirmation hides the paid notice before its timeout.
func (o *Orchestrator) DismissConfirmation() {
	if o.confirmation == nil {
		return
	}
	o.dismissID(o.confirmation.ID)
}

func (o *Orchestrator) dismissID(id string) {
	if o.confirmation == nil || o.confirmation.ID != id {
		return
	}
	if o.dismiss != nil {
		o.dismiss.Cancel()
		o.dismiss = nil
	}
	o.confirmation = nil
	o.bus.Publish(events.ConfirmationCleared{ID: id})
}

// LoadTokens adds amount chips to id. Till operations need no scan session.
func (o *Orchestrator) LoadTokens(id domain.Identity, amount int64, done func(error)) error {
	if id.IsZero() {
		return domain.ErrNoIdentity
	}
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	o.till(id, events.TillLoad, func(ctx context.Context) error {
		return o.api.Load(ctx, id, amount)
	}, done)
	return nil
}

// Refund pays out the whole balance of id.
func (o *Orchestrator) Refund(id domain.Identity, done func(error)) error {
	if id.IsZero() {
		return domain.ErrNoIdentity
	}
	o.till(id, events.TillRefund, func(ctx context.Context) error {
		return o.api.Refund(ctx, id)
	}, done)
	return nil
}

func (o *Orchestrator) till(id domain.Identity, op events.TillOperation, call func(ctx context.Context) error, done func(error)) {
	if done == nil {
		done = func(error) {}
	}
	dispatch.Submit(o.loop, func(ctx context.Context) (struct{}, error) {
		ctx, span := tracer.Start(ctx, "till."+string(op), trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()
		return struct{}{}, call(ctx)
	}, func(_ struct{}, err error) {
		o.balances.RefreshAfterChange(id)
		if err != nil {
			o.logger.Warn("till operation failed", zap.String("op", string(op)), zap.String("uid", id.String()), zap.Error(err))
			o.notify(events.LevelError, "Error: "+backend.Message(err), err)
			done(err)
			return
		}
		o.logger.Info("till operation succeeded", zap.String("op", string(op)), zap.String("uid", id.String()))
		o.bus.Publish(events.TillCompleted{Identity: id, Operation: op})
		if op == events.TillLoad {
			o.notify(events.LevelInfo, "Chips loaded", nil)
		} else {
			o.notify(events.LevelInfo, "Refund completed", nil)
		}
		done(nil)
	})
}

func (o *Orchestrator) notify(level events.Level, msg string, err error) {
	o.bus.Publish(events.Notice{
		Level:   level,
		Message: msg,
		Kind:    domain.KindOf(err),
		At:      o.clock.Now(),
	})
}
