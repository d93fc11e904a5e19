package balance

import (
	"context"

	"github.com/fjod/go_pos/internal/dispatch"
	"github.com/fjod/go_pos/internal/domain"
	"github.com/fjod/go_pos/internal/events"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Fetcher interface {
	Balance(ctx context.Context, uid domain.Identity) (decimal.Decimal, error)
}

// Synchronizer keeps the last known balance of the current identity. The value is only
// ever replaced by a fetch result, never adjusted locally.
type Synchronizer struct {
	loop    *dispatch.Loop
	clock   dispatch.Clock
	fetcher Fetcher
	bus     *events.Bus
	logger  *zap.Logger

	sfg singleflight.Group // joins concurrent fetches of the same uid

	current domain.BalanceView
	seq     uint64
}

func NewSynchronizer(loop *dispatch.Loop, clock dispatch.Clock, fetcher Fetcher, bus *events.Bus, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		loop:    loop,
		clock:   clock,
		fetcher: fetcher,
		bus:     bus,
		logger:  logger.With(zap.String("component", "balance")),
	}
}

// Refresh fetches the balance of id. A fetch for the same uid already in flight is joined.
func (s *Synchronizer) Refresh(id domain.Identity) {
	s.refresh(id, false)
}

// RefreshAfterChange fetches the balance after a state-changing operation. It never joins
// a fetch that may have started before the change.
func (s *Synchronizer) RefreshAfterChange(id domain.Identity) {
	s.refresh(id, true)
}

func (s *Synchronizer) refresh(id domain.Identity, fresh bool) {
	if id.IsZero() {
		return
	}
	s.seq++
	seq := s.seq
	if s.current.Identity != id {
		s.current = domain.BalanceView{Identity: id}
	}
	key := id.String()
	if fresh {
		s.sfg.Forget(key)
	}

	dispatch.Submit(s.loop, func(ctx context.Context) (decimal.Decimal, error) {
		v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
			return s.fetcher.Balance(ctx, id)
		})
		if err != nil {
			return decimal.Zero, err
		}
		return v.(decimal.Decimal), nil
	}, func(amount decimal.Decimal, err error) {
		if seq != s.seq {
			return
		}
		s.apply(id, amount, err)
	})
}

func (s *Synchronizer) apply(id domain.Identity, amount decimal.Decimal, err error) {
	view := domain.BalanceView{Identity: id, Amount: amount, FetchedAt: s.clock.Now()}
	if err != nil {
		s.logger.Warn("balance fetch failed", zap.String("uid", id.String()), zap.Error(err))
		view.Amount = decimal.Zero
		view.LastError = true
	}
	s.current = view
	s.bus.Publish(events.BalanceUpdated{Balance: view})
}

func (s *Synchronizer) Current() domain.BalanceView {
	return s.current
}

// Clear forgets the balance and discards fetches still in flight.
func (s *Synchronizer) Clear() {
	s.seq++
	s.current = domain.BalanceView{}
	s.bus.Publish(events.BalanceUpdated{Balance: s.current})
}
