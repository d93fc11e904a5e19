package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_pos/internal/backend"
	"github.com/fjod/go_pos/internal/dispatch"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var start = time.Date(2025, 6, 1, 21, 0, 0, 0, time.UTC)

type MockAPI struct {
	mu         sync.Mutex
	next       int
	openErr    error
	openGate   chan struct{}
	productErr error
	products   []domain.Product
	cancelErr  error
	cancelGate chan struct{}
	opened     []domain.Identity
	cancelled  []string
}

func (m *MockAPI) OpenSession(ctx context.Context, uid domain.Identity, posID string) (string, error) {
	m.mu.Lock()
	gate := m.openGate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = append(m.opened, uid)
	if m.openErr != nil {
		return "", m.openErr
	}
	m.next++
	return fmt.Sprintf("s-%d", m.next), nil
}

func (m *MockAPI) Products(ctx context.Context, sessionID string) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.productErr != nil {
		return nil, m.productErr
	}
	return m.products, nil
}

func (m *MockAPI) CancelSession(ctx context.Context, sessionID string) error {
	if m.cancelGate != nil {
		<-m.cancelGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, sessionID)
	return m.cancelErr
}

func (m *MockAPI) cancelledIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.cancelled...)
}

type fixture struct {
	loop   *dispatch.Loop
	clock  *dispatch.ManualClock
	api    *MockAPI
	ctrl   *Controller
	events []events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loop := dispatch.NewLoop(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	<-loop.Ready()
	t.Cleanup(cancel)

	f := &fixture{
		loop:  loop,
		clock: dispatch.NewManualClock(loop, start),
		api: &MockAPI{products: []domain.Product{
			{ID: 1, Name: "Beer", Price: decimal.RequireFromString("2.5"), InDrinks: true},
		}},
	}
	bus := events.NewBus()
	bus.Subscribe(func(e events.Event) { f.events = append(f.events, e) })
	f.ctrl = NewController(loop, f.clock, f.api, bus, Config{PosID: "POS-GO-1"}, zap.NewNop())
	return f
}

// do runs fn on the loop and waits for all follow-up work to settle.
func (f *fixture) do(t *testing.T, fn func()) {
	t.Helper()
	require.NoError(t, f.loop.Call(context.Background(), fn))
	f.settle(t)
}

func (f *fixture) settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.loop.WaitIdle(ctx))
}

func (f *fixture) names() []string {
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Name())
	}
	return out
}

func (f *fixture) current(t *testing.T) (domain.ScanSession, bool) {
	t.Helper()
	var s domain.ScanSession
	var ok bool
	f.do(t, func() { s, ok = f.ctrl.Current() })
	return s, ok
}

func TestOpen_InstallsSessionAndLoadsCatalog(t *testing.T) {
	f := newFixture(t)

	var openErr error = errors.New("not called")
	f.do(t, func() { f.ctrl.Open("AB", func(err error) { openErr = err }) })

	require.NoError(t, openErr)
	s, ok := f.current(t)
	require.True(t, ok)
	assert.Equal(t, "s-1", s.ID)
	assert.Equal(t, domain.Identity("AB"), s.Identity)
	assert.Equal(t, start.Add(DefaultTTL), s.ExpiresAt)
	assert.Equal(t, []string{"session.opened", "catalog.loaded"}, f.names())

	loaded := f.events[1].(events.CatalogLoaded)
	assert.NoError(t, loaded.Err)
	assert.Len(t, loaded.Products, 1)
}

func TestOpen_FailureLeavesNoSession(t *testing.T) {
	f := newFixture(t)
	f.api.openErr = &backend.RejectionError{Op: "open session", Status: 404, Message: "unknown uid"}

	var openErr error
	f.do(t, func() { f.ctrl.Open("AB", func(err error) { openErr = err }) })

	assert.ErrorIs(t, openErr, domain.ErrSessionOpenFailed)
	assert.Equal(t, domain.KindRejected, domain.KindOf(openErr))
	_, ok := f.current(t)
	assert.False(t, ok)
	assert.Empty(t, f.events)
}

func TestExpire_ClearsSessionWithoutInteraction(t *testing.T) {
	f := newFixture(t)
	f.do(t, func() { f.ctrl.Open("AB", nil) })

	f.clock.Advance(DefaultTTL - time.Second)
	f.settle(t)
	_, ok := f.current(t)
	assert.True(t, ok)

	f.clock.Advance(time.Second)
	f.settle(t)

	_, ok = f.current(t)
	assert.False(t, ok)
	last := f.events[len(f.events)-1].(events.SessionCleared)
	assert.Equal(t, events.ReasonExpired, last.Reason)
	assert.Equal(t, "s-1", last.SessionID)
}

func TestCancel_WithoutSessionIsNoop(t *testing.T) {
	f := newFixture(t)

	called := false
	f.do(t, func() { f.ctrl.Cancel(func(err error) { called = err == nil }) })

	assert.True(t, called)
	assert.Empty(t, f.api.cancelledIDs())
	assert.Empty(t, f.events)
}

func TestCancel_ClearsLocallyBeforeBackendAnswers(t *testing.T) {
	f := newFixture(t)
	f.do(t, func() { f.ctrl.Open("AB", nil) })
	f.api.cancelGate = make(chan struct{})
	f.api.cancelErr = &backend.TransportError{Op: "cancel session", Err: errors.New("timeout")}

	var hasSession bool
	require.NoError(t, f.loop.Call(context.Background(), func() {
		f.ctrl.Cancel(nil)
		hasSession = f.ctrl.Context().HasSession()
	}))
	assert.False(t, hasSession)

	close(f.api.cancelGate)
	f.settle(t)

	_, ok := f.current(t)
	assert.False(t, ok)
	assert.Equal(t, []string{"s-1"}, f.api.cancelledIDs())
	assert.Equal(t, 0, f.clock.Scheduled())
}

func TestOpen_DifferentIdentityReplacesSession(t *testing.T) {
	f := newFixture(t)
	f.do(t, func() { f.ctrl.Open("AB", nil) })

	f.do(t, func() { f.ctrl.Open("CD", nil) })

	s, ok := f.current(t)
	require.True(t, ok)
	assert.Equal(t, domain.Identity("CD"), s.Identity)
	assert.Equal(t, []string{
		"session.opened", "catalog.loaded",
		"session.cleared",
		"session.opened", "catalog.loaded",
	}, f.names())
	assert.Equal(t, events.ReasonReplaced, f.events[2].(events.SessionCleared).Reason)
	assert.Equal(t, 1, f.clock.Scheduled(), "only the new session has an expiry task")
}

func TestOpen_SameIdentityRenewsSession(t *testing.T) {
	f := newFixture(t)
	f.do(t, func() { f.ctrl.Open("AB", nil) })
	f.clock.Advance(time.Minute)
	f.settle(t)

	f.do(t, func() { f.ctrl.Open("AB", nil) })

	s, ok := f.current(t)
	require.True(t, ok)
	assert.Equal(t, "s-2", s.ID)
	assert.Equal(t, start.Add(time.Minute).Add(DefaultTTL), s.ExpiresAt)
	assert.Equal(t, events.ReasonRenewed, f.events[2].(events.SessionCleared).Reason)
	assert.Equal(t, 1, f.clock.Scheduled())
}

func TestOpen_SupersededResultIsCancelled(t *testing.T) {
	f := newFixture(t)
	f.api.openGate = make(chan struct{})

	var openErr error
	require.NoError(t, f.loop.Call(context.Background(), func() {
		f.ctrl.Open("AB", func(err error) { openErr = err })
		f.ctrl.Cancel(nil)
	}))
	close(f.api.openGate)
	f.settle(t)

	assert.ErrorIs(t, openErr, ErrSuperseded)
	_, ok := f.current(t)
	assert.False(t, ok)
	assert.Equal(t, []string{"s-1"}, f.api.cancelledIDs())
	assert.Empty(t, f.events)
}

func TestCatalogRejection_InvalidatesSession(t *testing.T) {
	f := newFixture(t)
	f.api.productErr = &backend.RejectionError{Op: "fetch products", Status: 401, Message: "invalid session"}

	f.do(t, func() { f.ctrl.Open("AB", nil) })

	_, ok := f.current(t)
	assert.False(t, ok)
	assert.Equal(t, []string{"session.opened", "session.cleared"}, f.names())
	assert.Equal(t, events.ReasonInvalidated, f.events[1].(events.SessionCleared).Reason)
}

func TestCatalogTransportFailure_KeepsSession(t *testing.T) {
	f := newFixture(t)
	f.api.productErr = &backend.TransportError{Op: "fetch products", Err: errors.New("timeout")}

	f.do(t, func() { f.ctrl.Open("AB", nil) })

	_, ok := f.current(t)
	assert.True(t, ok)
	loaded := f.events[1].(events.CatalogLoaded)
	assert.ErrorIs(t, loaded.Err, domain.ErrTransport)
}

func TestConsume_ClearsSessionAndTask(t *testing.T) {
	f := newFixture(t)
	f.do(t, func() { f.ctrl.Open("AB", nil) })

	f.do(t, func() { f.ctrl.Consume() })

	_, ok := f.current(t)
	assert.False(t, ok)
	assert.Equal(t, 0, f.clock.Scheduled())
	assert.Equal(t, events.ReasonConsumed, f.events[len(f.events)-1].(events.SessionCleared).Reason)

	f.clock.Advance(DefaultTTL)
	f.settle(t)
	assert.Len(t, f.events, 3, "a consumed session does not expire again")
}

func TestAtMostOneSession(t *testing.T) {
	f := newFixture(t)

	open := 0
	f.do(t, func() {
		events.On(f.bus(), func(events.SessionOpened) {
			open++
			assert.Equal(t, 1, open)
		})
		events.On(f.bus(), func(events.SessionCleared) { open-- })
	})

	for _, id := range []domain.Identity{"AB", "CD", "CD", "EF", "AB"} {
		id := id
		f.do(t, func() { f.ctrl.Open(id, nil) })
	}
	f.do(t, func() { f.ctrl.Cancel(nil) })

	assert.Zero(t, open)
}

func (f *fixture) bus() *events.Bus {
	return f.ctrl.bus
}
