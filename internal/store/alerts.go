package store

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"token-tracker/internal/domain"
)

const (
	alertsFile          = "alerts.json"
	alertsSchemaVersion = 2
)

type alertsState struct {
	Version              int                 `json:"version"`
	Alerts               []domain.PriceAlert `json:"alerts"`
	NotificationsEnabled *bool               `json:"notificationsEnabled"`
}

// AlertStore is the durable collection of price alert rules plus the
// store-level notifications toggle.
type AlertStore struct {
	mu                   sync.RWMutex
	path                 string
	alerts               []domain.PriceAlert
	notificationsEnabled bool
	logger               *zap.Logger
}

// OpenAlerts loads the alert collection from dataDir, migrating older
// schema versions. A missing file yields an empty store with
// notifications enabled.
func OpenAlerts(dataDir string, logger *zap.Logger) (*AlertStore, error) {
	s := &AlertStore{
		path:   filepath.Join(dataDir, alertsFile),
		logger: logger.Named("alerts"),
	}

	var state alertsState
	err := readStateFile(s.path, &state)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		state = alertsState{Version: alertsSchemaVersion}
	case err != nil:
		return nil, fmt.Errorf("open alerts: %w", err)
	}

	s.alerts, s.notificationsEnabled = migrateAlerts(state, s.logger)
	s.logger.Info("Alerts loaded",
		zap.Int("alerts", len(s.alerts)),
		zap.Bool("notifications_enabled", s.notificationsEnabled))
	return s, nil
}

// migrateAlerts upgrades a stored record to the current schema: absent
// collections become empty and an absent notifications flag defaults to
// enabled.
func migrateAlerts(state alertsState, logger *zap.Logger) ([]domain.PriceAlert, bool) {
	if state.Version < alertsSchemaVersion {
		logger.Info("Migrating alerts schema",
			zap.Int("from", state.Version),
			zap.Int("to", alertsSchemaVersion))
	}
	alerts := state.Alerts
	if alerts == nil {
		alerts = []domain.PriceAlert{}
	}
	enabled := true
	if state.NotificationsEnabled != nil {
		enabled = *state.NotificationsEnabled
	}
	return alerts, enabled
}

// Add creates a new alert rule from a. ID and CreatedAt are assigned by
// the store. Structurally invalid rules are rejected with a logged
// warning and a nil return.
func (s *AlertStore) Add(a domain.PriceAlert) *domain.PriceAlert {
	if a.TokenAddress == "" || !a.AlertType.Valid() {
		s.logger.Warn("Invalid alert data",
			zap.String("token_address", a.TokenAddress),
			zap.String("alert_type", string(a.AlertType)))
		return nil
	}
	switch a.AlertType {
	case domain.AlertAbove, domain.AlertBelow:
		if a.TargetPrice == nil {
			s.logger.Warn("Alert missing target price", zap.String("alert_type", string(a.AlertType)))
			return nil
		}
	case domain.AlertChange:
		if a.ChangePercentage == nil {
			s.logger.Warn("Change alert missing percentage")
			return nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = fmt.Sprintf("alert-%s", uuid.New().String())
	a.CreatedAt = time.Now()
	a.TriggeredAt = nil
	s.alerts = append(s.alerts, a)
	s.save()

	s.logger.Info("Alert created",
		zap.String("id", a.ID),
		zap.String("token", a.TokenSymbol),
		zap.String("type", string(a.AlertType)))
	return &a
}

// Remove deletes the alert with the given id; unknown ids are a no-op.
func (s *AlertStore) Remove(id string) {
	if id == "" {
		s.logger.Warn("Invalid alert id provided for removal")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts = append(s.alerts[:i], s.alerts[i+1:]...)
			s.save()
			s.logger.Info("Alert removed", zap.String("id", id))
			return
		}
	}
}

// AlertPatch is a partial alert update.
type AlertPatch struct {
	TargetPrice      *float64
	ChangePercentage *float64
	BasePrice        *float64
	IsActive         *bool
}

// Update merges patch into the alert with the given id; unknown ids are
// a no-op.
func (s *AlertStore) Update(id string, patch AlertPatch) {
	if id == "" {
		s.logger.Warn("Invalid alert id provided for update")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID != id {
			continue
		}
		if patch.TargetPrice != nil {
			s.alerts[i].TargetPrice = patch.TargetPrice
		}
		if patch.ChangePercentage != nil {
			s.alerts[i].ChangePercentage = patch.ChangePercentage
		}
		if patch.BasePrice != nil {
			s.alerts[i].BasePrice = patch.BasePrice
		}
		if patch.IsActive != nil {
			s.alerts[i].IsActive = *patch.IsActive
		}
		s.save()
		return
	}
}

// Toggle flips the active flag of the alert with the given id.
func (s *AlertStore) Toggle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].IsActive = !s.alerts[i].IsActive
			s.save()
			return
		}
	}
}

// MarkTriggered stamps the alert's triggeredAt, removing it from future
// candidate sets until manually cleared.
func (s *AlertStore) MarkTriggered(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == id {
			t := at
			s.alerts[i].TriggeredAt = &t
			s.save()
			return
		}
	}
}

// ClearTriggered reactivates a fired alert by clearing its triggeredAt.
func (s *AlertStore) ClearTriggered(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].TriggeredAt = nil
			s.save()
			return
		}
	}
}

// Alerts returns a copy of all alerts in insertion order.
func (s *AlertStore) Alerts() []domain.PriceAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	alerts := make([]domain.PriceAlert, len(s.alerts))
	copy(alerts, s.alerts)
	return alerts
}

// Active returns all alerts whose active flag is set.
func (s *AlertStore) Active() []domain.PriceAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []domain.PriceAlert
	for i := range s.alerts {
		if s.alerts[i].IsActive {
			active = append(active, s.alerts[i])
		}
	}
	return active
}

// Candidates returns the alerts eligible for evaluation against a price
// tick for tokenAddress: active, untriggered, in insertion order.
func (s *AlertStore) Candidates(tokenAddress string) []domain.PriceAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.PriceAlert
	for i := range s.alerts {
		a := &s.alerts[i]
		if a.TokenAddress == tokenAddress && a.IsActive && a.TriggeredAt == nil {
			out = append(out, *a)
		}
	}
	return out
}

// Get returns the alert with the given id.
func (s *AlertStore) Get(id string) (domain.PriceAlert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			return s.alerts[i], true
		}
	}
	return domain.PriceAlert{}, false
}

// NotificationsEnabled reports whether firing alerts should attempt
// delivery.
func (s *AlertStore) NotificationsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notificationsEnabled
}

// ToggleNotifications flips the store-level notifications flag.
func (s *AlertStore) ToggleNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notificationsEnabled = !s.notificationsEnabled
	s.save()
	s.logger.Info("Notifications toggled", zap.Bool("enabled", s.notificationsEnabled))
}

func (s *AlertStore) save() {
	enabled := s.notificationsEnabled
	state := alertsState{
		Version:              alertsSchemaVersion,
		Alerts:               s.alerts,
		NotificationsEnabled: &enabled,
	}
	if err := writeFileAtomic(s.path, state); err != nil {
		s.logger.Error("Failed to persist alerts", zap.Error(err))
	}
}
