package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Bus is an in-memory event bus. Publish is asynchronous with a bounded
// buffer; a full buffer drops the event rather than blocking a
// publisher.
type Bus struct {
	mu        sync.RWMutex
	handlers  map[EventType]map[string]Handler
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	eventChan chan Event
}

// NewBus creates and starts an event bus.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	bus := &Bus{
		handlers:  make(map[EventType]map[string]Handler),
		logger:    logger.Named("event_bus"),
		ctx:       ctx,
		cancel:    cancel,
		eventChan: make(chan Event, bufferSize),
	}

	bus.wg.Add(1)
	go bus.processEvents()

	return bus
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[string]Handler)
	}
	b.handlers[eventType][id] = handler

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))

	return &subscription{id: id, bus: b, typ: eventType}
}

// SubscribeFunc is a convenience wrapper around Subscribe.
func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// Publish enqueues an event for asynchronous delivery.
func (b *Bus) Publish(event Event) error {
	select {
	case <-b.ctx.Done():
		return fmt.Errorf("event bus is shutting down")
	case b.eventChan <- event:
		return nil
	default:
		b.logger.Warn("Event channel full, dropping event",
			zap.String("event_type", string(event.Type())))
		return fmt.Errorf("event channel full")
	}
}

// PublishSync delivers an event to all handlers before returning.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := make(map[string]Handler, len(b.handlers[event.Type()]))
	for id, h := range b.handlers[event.Type()] {
		handlers[id] = h
	}
	b.mu.RUnlock()

	var errs []error
	for id, handler := range handlers {
		if err := handler.Handle(ctx, event); err != nil {
			b.logger.Error("Handler error",
				zap.String("event_type", string(event.Type())),
				zap.String("handler_id", id),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("handlers failed: %v", errs)
	}
	return nil
}

// Close stops the bus, draining already queued events.
func (b *Bus) Close() {
	b.cancel()
	b.wg.Wait()
}

func (b *Bus) processEvents() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			for {
				select {
				case event := <-b.eventChan:
					_ = b.PublishSync(context.Background(), event)
				default:
					return
				}
			}
		case event := <-b.eventChan:
			if err := b.PublishSync(b.ctx, event); err != nil {
				b.logger.Debug("Event delivery finished with errors",
					zap.String("event_type", string(event.Type())))
			}
		}
	}
}

type subscription struct {
	id  string
	bus *Bus
	typ EventType
}

func (s *subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.handlers[s.typ], s.id)
}
