// Package events is the in-memory event bus the tracker publishes state
// changes on. A presentation layer subscribes here; the daemon itself
// wires a logging subscriber.
package events

import (
	"context"
	"time"

	"token-tracker/internal/domain"
)

// EventType identifies the kind of an event.
type EventType string

const (
	EventAlertTriggered   EventType = "alert.triggered"
	EventPriceUpdated     EventType = "price.updated"
	EventWatchlistChanged EventType = "watchlist.changed"
)

// Event is anything published on the bus.
type Event interface {
	Type() EventType
	Occurred() time.Time
}

// Handler processes published events.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription allows a handler to be removed from the bus.
type Subscription interface {
	Unsubscribe()
}

// AlertTriggered is published when an alert rule fires.
type AlertTriggered struct {
	Alert        domain.PriceAlert
	CurrentPrice float64
	Timestamp    time.Time
}

func (e AlertTriggered) Type() EventType     { return EventAlertTriggered }
func (e AlertTriggered) Occurred() time.Time { return e.Timestamp }

// PriceUpdated is published on every successful poll of a tracked token.
type PriceUpdated struct {
	TokenAddress string
	TokenSymbol  string
	PriceUSD     float64
	Change24h    float64
	Timestamp    time.Time
}

func (e PriceUpdated) Type() EventType     { return EventPriceUpdated }
func (e PriceUpdated) Occurred() time.Time { return e.Timestamp }

// WatchlistChanged is published after a watchlist mutation.
type WatchlistChanged struct {
	TokenAddress string
	Added        bool
	Timestamp    time.Time
}

func (e WatchlistChanged) Type() EventType     { return EventWatchlistChanged }
func (e WatchlistChanged) Occurred() time.Time { return e.Timestamp }
