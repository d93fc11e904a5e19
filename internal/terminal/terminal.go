package terminal

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_pos/internal/admin"
	"github.com/fjod/go_pos/internal/balance"
	"github.com/fjod/go_pos/internal/cart"
	"github.com/fjod/go_pos/internal/checkout"
	"github.com/fjod/go_pos/internal/dispatch"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/events"
	"github.com/fjod/go_pos/internal/navigation"
	"github.com/fjod/go_pos/internal/reader"
	"github.com/fjod/go_pos/internal/session"
	"github.com/fjod/go_pos/internal/settings"
	"go.uber.org/zap"
)

// Backend is every remote call the terminal makes.
type Backend interface {
	session.API
	checkout.API
	balance.Fetcher
	admin.API
}

type Config struct {
	PosID           string
	SessionTTL      time.Duration
	ConfirmationTTL time.Duration
	HistoryLimit    int
}

type Option func(*Terminal)

// WithClock replaces the wall clock, e.g. with a dispatch.ManualClock in tests.
func WithClock(newClock func(*dispatch.Loop) dispatch.Clock) Option {
	return func(t *Terminal) {
		t.clock = newClock(t.loop)
	}
}

// Terminal wires the components together and serializes every call onto one event loop.
// Its exported methods are safe for concurrent use.
type Terminal struct {
	loop     *dispatch.Loop
	clock    dispatch.Clock
	bus      *events.Bus
	store    settings.Store
	logger   *zap.Logger
	sessions *session.Controller
	cart     *cart.Engine
	balances *balance.Synchronizer
	nav      *navigation.Machine
	orch     *checkout.Orchestrator
	reports  *admin.Reports

	notice *events.Notice
}

func New(cfg Config, api Backend, store settings.Store, logger *zap.Logger, opts ...Option) *Terminal {
	if logger == nil {
		logger = zap.NewNop()
	}
	loop := dispatch.NewLoop(logger)
	t := &Terminal{
		loop:   loop,
		clock:  dispatch.NewClock(loop),
		bus:    events.NewBus(),
		store:  store,
		logger: logger.With(zap.String("component", "terminal")),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.cart = cart.NewEngine()
	t.sessions = session.NewController(loop, t.clock, api, t.bus, session.Config{PosID: cfg.PosID, TTL: cfg.SessionTTL}, logger)
	t.balances = balance.NewSynchronizer(loop, t.clock, api, t.bus, logger)
	t.nav = navigation.NewMachine(t.clock, t.bus, t.sessions, t.cart, t.balances, logger)
	t.orch = checkout.NewOrchestrator(loop, t.clock, api, t.sessions, t.cart, t.balances, t.bus, checkout.Config{ConfirmationTTL: cfg.ConfirmationTTL}, logger)
	t.reports = admin.NewReports(api, cfg.HistoryLimit, logger)

	events.On(t.bus, func(n events.Notice) { t.notice = &n })
	events.On(t.bus, func(events.ScreenChanged) { t.notice = nil })
	return t
}

// Run loads persisted settings and processes events until ctx is cancelled.
func (t *Terminal) Run(ctx context.Context) {
	wine, err := t.store.WineEnabled(ctx)
	if err != nil {
		t.logger.Warn("could not load settings, using defaults", zap.Error(err))
	}
	t.loop.Post(func() { t.nav.SetWineEnabled(wine) })
	t.logger.Info("terminal started")
	t.loop.Run(ctx)
	t.logger.Info("terminal stopped")
}

// Loop exposes the event loop, mainly so tests can wait for it to go idle.
func (t *Terminal) Loop() *dispatch.Loop {
	return t.loop
}

func (t *Terminal) Reports() *admin.Reports {
	return t.reports
}

// Subscribe registers fn for every event. fn runs on the event loop and must not block.
func (t *Terminal) Subscribe(fn func(events.Event)) func() {
	return t.bus.Subscribe(fn)
}

// Scan feeds a tag read into the terminal.
// A counter scan is refused while a charge is waiting for the backend.
func (t *Terminal) Scan(ctx context.Context, id domain.Identity) error {
	if id.IsZero() {
		return domain.ErrInvalidIdentity
	}
	return t.call(ctx, func() error {
		if t.nav.Screen().IsCheckout() && t.orch.InFlight() {
			return domain.ErrCheckoutInFlight
		}
		t.nav.Scan(id)
		return nil
	})
}

// EnterIdentity handles a manually typed UID the same way as a scan.
func (t *Terminal) EnterIdentity(ctx context.Context, raw string) (domain.Identity, error) {
	id, err := reader.NormalizeManual(raw)
	if err != nil {
		return "", err
	}
	return id, t.Scan(ctx, id)
}

func (t *Terminal) Navigate(ctx context.Context, to domain.Screen) error {
	return t.call(ctx, func() error { return t.nav.Navigate(to) })
}

func (t *Terminal) Back(ctx context.Context) error {
	return t.call(ctx, func() error { return t.nav.Back() })
}

func (t *Terminal) Screen(ctx context.Context) (domain.Screen, error) {
	return dispatch.Query(ctx, t.loop, t.nav.Screen)
}

func (t *Terminal) Increment(ctx context.Context, productID int64) error {
	return t.call(ctx, func() error {
		if err := t.editable(); err != nil {
			return err
		}
		if !t.cart.Increment(productID) {
			return domain.ErrUnknownProduct
		}
		t.bus.Publish(events.CartChanged{Total: t.cart.Total()})
		return nil
	})
}

// Decrement removes one unit. At zero it is a no-op, not an error.
func (t *Terminal) Decrement(ctx context.Context, productID int64) error {
	return t.call(ctx, func() error {
		if err := t.editable(); err != nil {
			return err
		}
		if t.cart.Decrement(productID) {
			t.bus.Publish(events.CartChanged{Total: t.cart.Total()})
			return nil
		}
		for _, r := range t.cart.Rows() {
			if r.Product.ID == productID {
				return nil
			}
		}
		return domain.ErrUnknownProduct
	})
}

func (t *Terminal) editable() error {
	if !t.nav.Screen().IsCheckout() {
		return domain.ErrWrongScreen
	}
	if t.nav.Placeholder() {
		return domain.ErrNoSession
	}
	return nil
}

// Checkout charges the current selection and waits for the backend's answer.
func (t *Terminal) Checkout(ctx context.Context) (domain.Receipt, error) {
	type result struct {
		receipt domain.Receipt
		err     error
	}
	ch := make(chan result, 1)
	err := t.call(ctx, func() error {
		if !t.nav.Screen().IsCheckout() {
			return domain.ErrWrongScreen
		}
		return t.orch.Checkout(func(r domain.Receipt, err error) {
			ch <- result{receipt: r, err: err}
		})
	})
	if err != nil {
		return domain.Receipt{}, err
	}
	select {
	case res := <-ch:
		return res.receipt, res.err
	case <-ctx.Done():
		return domain.Receipt{}, ctx.Err()
	}
}

// Cancel abandons the counter checkout and hides the paid notice.
func (t *Terminal) Cancel(ctx context.Context) error {
	return t.call(ctx, func() error {
		t.orch.DismissConfirmation()
		return t.nav.Cancel()
	})
}

// LoadTokens loads chips onto the identity scanned at the till.
func (t *Terminal) LoadTokens(ctx context.Context, amount int64) error {
	return t.tillOp(ctx, func(id domain.Identity, done func(error)) error {
		return t.orch.LoadTokens(id, amount, done)
	})
}

// Refund pays out the balance of the identity scanned at the till.
func (t *Terminal) Refund(ctx context.Context) error {
	return t.tillOp(ctx, func(id domain.Identity, done func(error)) error {
		return t.orch.Refund(id, done)
	})
}

func (t *Terminal) tillOp(ctx context.Context, op func(domain.Identity, func(error)) error) error {
	ch := make(chan error, 1)
	err := t.call(ctx, func() error {
		if t.nav.Screen().Kind != domain.ScreenCashier {
			return domain.ErrWrongScreen
		}
		if !t.nav.CashierEnabled() {
			return domain.ErrNoIdentity
		}
		return op(t.sessions.Context().Identity, func(err error) { ch <- err })
	})
	if err != nil {
		return err
	}
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Terminal) Snapshot(ctx context.Context) (View, error) {
	return dispatch.Query(ctx, t.loop, t.view)
}

func (t *Terminal) WineEnabled(ctx context.Context) (bool, error) {
	return dispatch.Query(ctx, t.loop, t.nav.WineEnabled)
}

// SetWineEnabled persists the toggle first and applies it only if that succeeded.
func (t *Terminal) SetWineEnabled(ctx context.Context, enabled bool) error {
	if err := t.store.SetWineEnabled(ctx, enabled); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return t.loop.Call(ctx, func() { t.nav.SetWineEnabled(enabled) })
}

// call runs fn on the loop and returns its error, or the loop's if fn never reported back.
func (t *Terminal) call(ctx context.Context, fn func() error) error {
	res, err := dispatch.Query(ctx, t.loop, fn)
	if err != nil {
		return err
	}
	return res
}
