package events

import (
	"testing"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()

	var got []string
	bus.Subscribe(func(e Event) { got = append(got, "first:"+e.Name()) })
	bus.Subscribe(func(e Event) { got = append(got, "second:"+e.Name()) })

	bus.Publish(SessionOpened{})

	assert.Equal(t, []string{"first:session.opened", "second:session.opened"}, got)
}

func TestOn_FiltersByType(t *testing.T) {
	bus := NewBus()

	var cleared []ClearReason
	On(bus, func(e SessionCleared) { cleared = append(cleared, e.Reason) })

	bus.Publish(SessionOpened{Session: domain.ScanSession{ID: "s-1"}})
	bus.Publish(SessionCleared{SessionID: "s-1", Reason: ReasonExpired})

	assert.Equal(t, []ClearReason{ReasonExpired}, cleared)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	unsubscribe := bus.Subscribe(func(Event) { calls++ })
	bus.Publish(CartChanged{})
	unsubscribe()
	unsubscribe()
	bus.Publish(CartChanged{})

	assert.Equal(t, 1, calls)
}

func TestBus_UnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus()

	secondCalls := 0
	var unsubscribeSecond func()
	bus.Subscribe(func(Event) { unsubscribeSecond() })
	unsubscribeSecond = bus.Subscribe(func(Event) { secondCalls++ })

	bus.Publish(CatalogLoaded{})
	bus.Publish(CatalogLoaded{})

	assert.Zero(t, secondCalls)
}
