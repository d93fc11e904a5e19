package navigation

import (
	"errors"
	"fmt"

	"github.com/fjod/go_pos/internal/backend"
	"github.com/fjod/go_pos/internal/cart"
	"github.com/fjod/go_pos/internal/dispatch"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/events"
	"github.com/fjod/go_pos/internal/session"
	"go.uber.org/zap"
)

type Sessions interface {
	Context() session.Context
	Opening() bool
	SetIdentity(id domain.Identity)
	ClearIdentity()
	Open(id domain.Identity, done func(error))
	Cancel(done func(error))
	ClearLocal(reason events.ClearReason)
}

type Balances interface {
	Refresh(id domain.Identity)
}

// Machine tracks the active screen and keeps cart, session and balance consistent with
// it. All methods must run on the event loop.
type Machine struct {
	clock    dispatch.Clock
	bus      *events.Bus
	sessions Sessions
	cart     *cart.Engine
	balances Balances
	logger   *zap.Logger

	screen         domain.Screen
	cashierEnabled bool
	wineEnabled    bool
	catalogErr     error
	rebuild        func()
	unsubscribe    []func()
}

func NewMachine(clock dispatch.Clock, bus *events.Bus, sessions Sessions, engine *cart.Engine, balances Balances, logger *zap.Logger) *Machine {
	m := &Machine{
		clock:    clock,
		bus:      bus,
		sessions: sessions,
		cart:     engine,
		balances: balances,
		logger:   logger.With(zap.String("component", "navigation")),
		screen:   domain.Home,
	}
	m.unsubscribe = append(m.unsubscribe,
		events.On(bus, m.onSessionCleared),
		events.On(bus, m.onTillCompleted),
	)
	return m
}

// Close drops every bus subscription.
func (m *Machine) Close() {
	m.dropRebuild()
	for _, u := range m.unsubscribe {
		u()
	}
	m.unsubscribe = nil
}

func (m *Machine) Screen() domain.Screen {
	return m.screen
}

// CashierEnabled reports whether load and refund are available.
func (m *Machine) CashierEnabled() bool {
	return m.screen.Kind == domain.ScreenCashier && m.cashierEnabled
}

// Placeholder reports whether the counter screen shows "scan required" instead of products.
func (m *Machine) Placeholder() bool {
	return m.screen.IsCheckout() && (!m.sessions.Context().HasSession() || !m.cart.HasCatalog())
}

// CatalogError is the last catalog fetch failure of the current session, if any.
func (m *Machine) CatalogError() error {
	return m.catalogErr
}

func (m *Machine) WineEnabled() bool {
	return m.wineEnabled
}

// SetWineEnabled updates the wine toggle. Disabling it while the wine counter is active
// returns to the category selection.
func (m *Machine) SetWineEnabled(enabled bool) {
	m.wineEnabled = enabled
	if !enabled && m.screen.IsCheckout() && m.screen.Category == domain.CategoryWine {
		m.enter(domain.Screen{Kind: domain.ScreenCounterSelect})
	}
}

// Navigate moves to screen to. PIN checks happen before this is called.
func (m *Machine) Navigate(to domain.Screen) error {
	if !domain.CanTransitionTo(m.screen, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, m.screen, to)
	}
	if to.Kind == domain.ScreenCounterActive {
		switch to.Category {
		case domain.CategoryDrinks, domain.CategoryFood:
		case domain.CategoryWine:
			if !m.wineEnabled {
				return domain.ErrCategoryDisabled
			}
		default:
			return domain.ErrUnknownCategory
		}
	}
	m.enter(to)
	return nil
}

// Back follows the back action of the current screen. On Home it does nothing.
func (m *Machine) Back() error {
	to, ok := domain.BackTarget(m.screen)
	if !ok {
		return nil
	}
	return m.Navigate(to)
}

func (m *Machine) enter(to domain.Screen) {
	from := m.screen
	m.leave(from)
	m.screen = to

	switch to.Kind {
	case domain.ScreenCounterSelect:
		m.resetCounter(events.ReasonNavigation)
	case domain.ScreenCounterActive:
		m.resetCounter(events.ReasonNavigation)
		m.cart.Reset(to.Category)
		m.rebuild = events.On(m.bus, m.onCatalogLoaded)
	case domain.ScreenCashier:
		m.cashierEnabled = false
	}

	m.logger.Debug("screen changed", zap.Stringer("from", from), zap.Stringer("to", to))
	m.bus.Publish(events.ScreenChanged{From: from, To: to})
}

func (m *Machine) leave(from domain.Screen) {
	if from.Kind == domain.ScreenCashier {
		m.cashierEnabled = false
	}
}

// resetCounter clears the cart, the catalog, the local session and any pending rebuild.
func (m *Machine) resetCounter(reason events.ClearReason) {
	m.dropRebuild()
	m.cart.DropCatalog()
	m.catalogErr = nil
	m.sessions.ClearLocal(reason)
	m.bus.Publish(events.CartChanged{Total: m.cart.Total()})
}

func (m *Machine) dropRebuild() {
	if m.rebuild != nil {
		m.rebuild()
		m.rebuild = nil
	}
}

// Scan handles a tag read on whatever screen is active.
func (m *Machine) Scan(id domain.Identity) {
	switch m.screen.Kind {
	case domain.ScreenCounterActive:
		m.scanAtCounter(id)
	case domain.ScreenCashier:
		m.sessions.SetIdentity(id)
		m.cashierEnabled = true
		m.balances.Refresh(id)
	default:
		m.sessions.SetIdentity(id)
		m.balances.Refresh(id)
	}
}

func (m *Machine) scanAtCounter(id domain.Identity) {
	cur := m.sessions.Context()
	bound := cur.Identity
	if cur.Session != nil {
		bound = cur.Session.Identity
	}
	if bound != id && (cur.HasSession() || m.sessions.Opening()) {
		m.logger.Info("scan of another identity, resetting counter", zap.String("uid", id.String()))
		m.cart.DropCatalog()
		m.catalogErr = nil
		m.sessions.ClearLocal(events.ReasonReplaced)
		m.bus.Publish(events.CartChanged{Total: m.cart.Total()})
	}
	if m.rebuild == nil {
		m.rebuild = events.On(m.bus, m.onCatalogLoaded)
	}

	m.balances.Refresh(id)
	m.sessions.Open(id, func(err error) {
		if err == nil || errors.Is(err, session.ErrSuperseded) {
			return
		}
		m.notify(events.LevelError, "Scan failed: "+backend.Message(err), err)
	})
}

// onCatalogLoaded rebuilds the product rows after every successful open, including the
// first one.
func (m *Machine) onCatalogLoaded(e events.CatalogLoaded) {
	if !m.screen.IsCheckout() {
		return
	}
	if e.Err != nil {
		m.catalogErr = e.Err
		m.notify(events.LevelError, "Products could not be loaded: "+backend.Message(e.Err), e.Err)
		return
	}
	m.catalogErr = nil
	m.cart.SetCatalog(e.Products, m.screen.Category)
	m.bus.Publish(events.CartChanged{Total: m.cart.Total()})
}

func (m *Machine) onSessionCleared(e events.SessionCleared) {
	if !m.screen.IsCheckout() {
		return
	}
	switch e.Reason {
	case events.ReasonRenewed, events.ReasonNavigation, events.ReasonReplaced:
		return
	case events.ReasonExpired:
		m.notify(events.LevelInfo, "Scan session expired, scan again", domain.ErrSessionExpired)
	case events.ReasonInvalidated:
		m.notify(events.LevelError, "Scan session is no longer valid, scan again", nil)
	}
	m.cart.DropCatalog()
	m.catalogErr = nil
	m.bus.Publish(events.CartChanged{Total: m.cart.Total()})
}

// onTillCompleted disables the till until the next scan.
func (m *Machine) onTillCompleted(e events.TillCompleted) {
	m.cashierEnabled = false
	m.sessions.ClearIdentity()
}

// Cancel abandons the counter checkout: the session is cancelled, the cart emptied and
// the placeholder shown again.
func (m *Machine) Cancel() error {
	if !m.screen.IsCheckout() {
		return domain.ErrWrongScreen
	}
	m.sessions.Cancel(nil)
	m.cart.DropCatalog()
	m.catalogErr = nil
	m.bus.Publish(events.CartChanged{Total: m.cart.Total()})
	return nil
}

func (m *Machine) notify(level events.Level, msg string, err error) {
	m.bus.Publish(events.Notice{
		Level:   level,
		Message: msg,
		Kind:    domain.KindOf(err),
		At:      m.clock.Now(),
	})
}
