// Package alert implements the rule engine that compares live prices
// against user-defined alert rules and drives notification delivery.
package alert

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"token-tracker/internal/bridge"
	"token-tracker/internal/domain"
	"token-tracker/internal/events"
	"token-tracker/internal/notify"
	"token-tracker/internal/store"
)

// Notifier delivers a formatted notification, reporting whether an
// attempt was made.
type Notifier interface {
	Send(ctx context.Context, p bridge.Payload) bool
}

// Publisher receives engine events; nil disables publishing.
type Publisher interface {
	Publish(event events.Event) error
}

// Engine evaluates alert rules against price ticks. It owns no state of
// its own: rules live in the injected alert store, and every state
// mutation is persisted by the store before any delivery is attempted.
type Engine struct {
	alerts     *store.AlertStore
	dispatcher Notifier
	bus        Publisher
	logger     *zap.Logger
}

// NewEngine creates an alert engine. bus may be nil.
func NewEngine(alerts *store.AlertStore, dispatcher Notifier, bus Publisher, logger *zap.Logger) *Engine {
	return &Engine{
		alerts:     alerts,
		dispatcher: dispatcher,
		bus:        bus,
		logger:     logger.Named("alert_engine"),
	}
}

// CheckAlerts evaluates every candidate rule for tokenAddress against
// currentPrice and returns the alerts that fired. Candidates are the
// active, untriggered rules for the token, evaluated independently in
// insertion order. Each fired alert has its triggeredAt stamped and
// persisted before its notification is dispatched, so a failure during
// dispatch cannot re-fire the alert on the next tick. Delivery failures
// are logged and do not stop the rest of the batch.
func (e *Engine) CheckAlerts(ctx context.Context, tokenAddress string, currentPrice float64) []domain.PriceAlert {
	candidates := e.alerts.Candidates(tokenAddress)
	if len(candidates) == 0 {
		return nil
	}

	var fired []domain.PriceAlert
	now := time.Now()

	for _, a := range candidates {
		if !shouldTrigger(&a, currentPrice) {
			continue
		}

		e.alerts.MarkTriggered(a.ID, now)
		t := now
		a.TriggeredAt = &t
		fired = append(fired, a)

		e.logger.Info("Alert triggered",
			zap.String("id", a.ID),
			zap.String("token", a.TokenSymbol),
			zap.String("type", string(a.AlertType)),
			zap.Float64("price", currentPrice))

		if e.bus != nil {
			_ = e.bus.Publish(events.AlertTriggered{
				Alert:        a,
				CurrentPrice: currentPrice,
				Timestamp:    now,
			})
		}

		if e.alerts.NotificationsEnabled() {
			payload := notify.FormatAlert(a, currentPrice)
			if ok := e.dispatcher.Send(ctx, payload); !ok {
				e.logger.Warn("Notification not sent",
					zap.String("alert_id", a.ID),
					zap.String("title", payload.Title))
			}
		}
	}

	return fired
}

// shouldTrigger applies the rule semantics for one alert. Above/below
// rules never fire without a target price. Change rules measure the
// absolute percentage move from a reference price: basePrice when
// recorded, else targetPrice, else the current price itself (which makes
// the first delta zero when neither reference exists; behavior kept as
// shipped).
func shouldTrigger(a *domain.PriceAlert, currentPrice float64) bool {
	switch a.AlertType {
	case domain.AlertAbove:
		return a.TargetPrice != nil && currentPrice >= *a.TargetPrice
	case domain.AlertBelow:
		return a.TargetPrice != nil && currentPrice <= *a.TargetPrice
	case domain.AlertChange:
		if a.ChangePercentage == nil {
			return false
		}
		reference := currentPrice
		if a.BasePrice != nil {
			reference = *a.BasePrice
		} else if a.TargetPrice != nil {
			reference = *a.TargetPrice
		}
		change := (currentPrice - reference) / reference * 100
		return math.Abs(change) >= math.Abs(*a.ChangePercentage)
	}
	return false
}
