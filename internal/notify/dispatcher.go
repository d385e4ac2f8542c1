// Package notify delivers alert notifications. Delivery precedence: a
// probed host bridge channel first, then the local fallback channel when
// permission was granted, then log-only. "Sent" means an attempt was
// made, never that the notification was seen.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"token-tracker/internal/bridge"
)

// HostChannel is the subset of the bridge handle the dispatcher needs.
type HostChannel interface {
	Send(ctx context.Context, p bridge.Payload) error
}

// LocalChannel is the fallback notification facility.
type LocalChannel interface {
	Granted() bool
	Notify(p bridge.Payload) error
}

// Dispatcher routes notification payloads to the best available channel.
type Dispatcher struct {
	mu      sync.RWMutex
	enabled bool
	host    HostChannel
	local   LocalChannel
	logger  *zap.Logger
}

// NewDispatcher creates a dispatcher. host may be nil when no bridge was
// probed; it can be attached later once the async probe completes.
func NewDispatcher(enabled bool, host HostChannel, local LocalChannel, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		enabled: enabled,
		host:    host,
		local:   local,
		logger:  logger.Named("notify"),
	}
}

// SetHost attaches a host channel after a late successful probe.
func (d *Dispatcher) SetHost(host HostChannel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.host = host
}

// SetEnabled flips the global notification switch.
func (d *Dispatcher) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = enabled
}

// Send attempts delivery of p and reports whether an attempt was made.
// When globally disabled it returns false; an unviewable notification
// (no host, no granted local channel) is logged and still reported true.
func (d *Dispatcher) Send(ctx context.Context, p bridge.Payload) bool {
	d.mu.RLock()
	enabled, host, local := d.enabled, d.host, d.local
	d.mu.RUnlock()

	if !enabled {
		d.logger.Debug("Notifications disabled, dropping payload", zap.String("title", p.Title))
		return false
	}

	if host != nil {
		if err := host.Send(ctx, p); err == nil {
			d.logger.Info("Notification sent via host bridge", zap.String("title", p.Title))
			return true
		} else {
			d.logger.Warn("Host bridge delivery failed, falling back", zap.Error(err))
		}
	}

	if local != nil && local.Granted() {
		if err := local.Notify(p); err == nil {
			d.logger.Info("Notification sent via local channel", zap.String("title", p.Title))
			return true
		} else {
			d.logger.Warn("Local notification failed", zap.Error(err))
		}
	}

	// No usable channel: the attempt still counts, log-only.
	d.logger.Info("Notification logged (no delivery channel)",
		zap.String("title", p.Title),
		zap.String("body", p.Body))
	return true
}
