package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_pos/internal/dispatch"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/events"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const DefaultTTL = 120 * time.Second

// ErrSuperseded is passed to an Open callback whose result arrived after a newer open,
// a cancel or a local clear.
var ErrSuperseded = errors.New("session open superseded")

var tracer = otel.Tracer("github.com/fjod/go_pos/internal/session")

type API interface {
	OpenSession(ctx context.Context, uid domain.Identity, posID string) (string, error)
	Products(ctx context.Context, sessionID string) ([]domain.Product, error)
	CancelSession(ctx context.Context, sessionID string) error
}

// Context is the explicit identity and session state shared with other components.
type Context struct {
	Identity domain.Identity
	Session  *domain.ScanSession
}

// HasSession reports whether a session is bound.
func (c Context) HasSession() bool {
	return c.Session != nil
}

type Config struct {
	PosID string
	TTL   time.Duration
}

// Controller owns the single scan session. All methods must run on the event loop.
type Controller struct {
	loop   *dispatch.Loop
	clock  dispatch.Clock
	api    API
	bus    *events.Bus
	logger *zap.Logger
	cfg    Config

	state      Context
	expiry     dispatch.Task
	generation uint64
	opening    bool
}

func NewController(loop *dispatch.Loop, clock dispatch.Clock, api API, bus *events.Bus, cfg Config, logger *zap.Logger) *Controller {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Controller{
		loop:   loop,
		clock:  clock,
		api:    api,
		bus:    bus,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "session")),
	}
}

// Context returns a copy of the current identity and session.
func (c *Controller) Context() Context {
	out := Context{Identity: c.state.Identity}
	if c.state.Session != nil {
		s := *c.state.Session
		out.Session = &s
	}
	return out
}

func (c *Controller) Identity() domain.Identity {
	return c.state.Identity
}

// Current returns the bound session, if any.
func (c *Controller) Current() (domain.ScanSession, bool) {
	if c.state.Session == nil {
		return domain.ScanSession{}, false
	}
	return *c.state.Session, true
}

// Opening reports whether an open request is in flight.
func (c *Controller) Opening() bool {
	return c.opening
}

// SetIdentity records the identity of the last scan. It never touches the session.
func (c *Controller) SetIdentity(id domain.Identity) {
	c.state.Identity = id
}

func (c *Controller) ClearIdentity() {
	c.state.Identity = ""
}

// Open requests a session for id. done runs on the loop once the open call resolved:
// with nil after the session was installed, with an error wrapping
// domain.ErrSessionOpenFailed on failure, or with ErrSuperseded. The catalog is fetched
// afterwards and announced with events.CatalogLoaded.
func (c *Controller) Open(id domain.Identity, done func(error)) {
	if done == nil {
		done = func(error) {}
	}
	if cur := c.state.Session; cur != nil && cur.Identity != id {
		// never rebind silently
		c.ClearLocal(events.ReasonReplaced)
	}
	c.state.Identity = id
	c.generation++
	gen := c.generation
	c.opening = true

	dispatch.Submit(c.loop, func(ctx context.Context) (string, error) {
		ctx, span := tracer.Start(ctx, "session.open")
		defer span.End()
		span.SetAttributes(attribute.String("pos.id", c.cfg.PosID))
		return c.api.OpenSession(ctx, id, c.cfg.PosID)
	}, func(sessionID string, err error) {
		if gen != c.generation {
			if err == nil {
				c.logger.Info("discarding superseded session", zap.String("session_id", sessionID))
				c.cancelRemote(sessionID)
			}
			done(ErrSuperseded)
			return
		}
		c.opening = false
		if err != nil {
			c.logger.Warn("open session failed", zap.String("uid", id.String()), zap.Error(err))
			done(fmt.Errorf("%w: %w", domain.ErrSessionOpenFailed, err))
			return
		}
		c.install(id, sessionID, gen)
		done(nil)
	})
}

func (c *Controller) install(id domain.Identity, sessionID string, gen uint64) {
	if c.expiry != nil {
		c.expiry.Cancel()
	}
	if old := c.state.Session; old != nil {
		// a rescan of the same identity renews the session; the backend lets the old one time out
		c.state.Session = nil
		c.bus.Publish(events.SessionCleared{SessionID: old.ID, Identity: old.Identity, Reason: events.ReasonRenewed})
	}
	now := c.clock.Now()
	s := domain.ScanSession{
		ID:        sessionID,
		Identity:  id,
		OpenedAt:  now,
		ExpiresAt: now.Add(c.cfg.TTL),
	}
	c.state.Session = &s
	c.expiry = c.clock.AfterFunc(c.cfg.TTL, func() { c.expire(sessionID) })

	c.logger.Info("session opened", zap.String("session_id", sessionID), zap.String("uid", id.String()))
	c.bus.Publish(events.SessionOpened{Session: s})
	c.fetchCatalog(sessionID, gen)
}

func (c *Controller) fetchCatalog(sessionID string, gen uint64) {
	dispatch.Submit(c.loop, func(ctx context.Context) ([]domain.Product, error) {
		return c.api.Products(ctx, sessionID)
	}, func(products []domain.Product, err error) {
		if gen != c.generation {
			return
		}
		switch {
		case errors.Is(err, domain.ErrRejected):
			c.logger.Warn("catalog rejected, session invalid", zap.String("session_id", sessionID), zap.Error(err))
			c.ClearLocal(events.ReasonInvalidated)
		case err != nil:
			c.logger.Warn("catalog fetch failed", zap.String("session_id", sessionID), zap.Error(err))
			c.bus.Publish(events.CatalogLoaded{SessionID: sessionID, Err: err})
		default:
			c.bus.Publish(events.CatalogLoaded{SessionID: sessionID, Products: products})
		}
	})
}

// Cancel clears the session locally and tells the backend without waiting for it. Without
// a session it only discards a pending open. done, when given, runs on the loop after the
// backend answered or failed; its error is always nil.
func (c *Controller) Cancel(done func(error)) {
	cur := c.state.Session
	c.ClearLocal(events.ReasonCancelled)
	if cur == nil {
		if done != nil {
			done(nil)
		}
		return
	}
	dispatch.Submit(c.loop, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.api.CancelSession(ctx, cur.ID)
	}, func(_ struct{}, err error) {
		if err != nil {
			c.logger.Info("backend cancel failed, local session already cleared", zap.String("session_id", cur.ID), zap.Error(err))
		}
		if done != nil {
			done(nil)
		}
	})
}

// Consume clears the session after the backend confirmed a charge on it.
func (c *Controller) Consume() {
	c.ClearLocal(events.ReasonConsumed)
}

func (c *Controller) expire(sessionID string) {
	if c.state.Session == nil || c.state.Session.ID != sessionID {
		return
	}
	c.logger.Info("session expired locally", zap.String("session_id", sessionID))
	c.ClearLocal(events.ReasonExpired)
}

// ClearLocal drops the session, its expiry task and any pending open without calling the
// backend. SessionCleared is published only if a session was bound.
func (c *Controller) ClearLocal(reason events.ClearReason) {
	c.generation++
	c.opening = false
	if c.expiry != nil {
		c.expiry.Cancel()
		c.expiry = nil
	}
	cur := c.state.Session
	if cur == nil {
		return
	}
	c.state.Session = nil
	c.bus.Publish(events.SessionCleared{SessionID: cur.ID, Identity: cur.Identity, Reason: reason})
}

func (c *Controller) cancelRemote(sessionID string) {
	dispatch.Submit(c.loop, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.api.CancelSession(ctx, sessionID)
	}, func(_ struct{}, err error) {
		if err != nil {
			c.logger.Info("cancel of superseded session failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	})
}
