package store

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"token-tracker/internal/domain"
)

const (
	watchlistFile          = "watchlist.json"
	watchlistSchemaVersion = 2
)

type watchlistState struct {
	Version   int                    `json:"version"`
	Watchlist []domain.WatchlistItem `json:"watchlist"`
}

// WatchlistStore is the durable collection of tracked tokens. At most one
// item exists per token address. All mutations are flushed to disk before
// returning.
type WatchlistStore struct {
	mu     sync.RWMutex
	path   string
	items  []domain.WatchlistItem
	logger *zap.Logger
}

// OpenWatchlist loads the watchlist from dataDir, migrating older schema
// versions. A missing file yields an empty store.
func OpenWatchlist(dataDir string, logger *zap.Logger) (*WatchlistStore, error) {
	s := &WatchlistStore{
		path:   filepath.Join(dataDir, watchlistFile),
		logger: logger.Named("watchlist"),
	}

	var state watchlistState
	err := readStateFile(s.path, &state)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		state = watchlistState{Version: watchlistSchemaVersion}
	case err != nil:
		return nil, fmt.Errorf("open watchlist: %w", err)
	}

	s.items = migrateWatchlist(state, s.logger)
	s.logger.Info("Watchlist loaded", zap.Int("items", len(s.items)))
	return s, nil
}

// migrateWatchlist upgrades a stored record to the current schema,
// backfilling absent fields with defaults.
func migrateWatchlist(state watchlistState, logger *zap.Logger) []domain.WatchlistItem {
	if state.Version < watchlistSchemaVersion {
		logger.Info("Migrating watchlist schema",
			zap.Int("from", state.Version),
			zap.Int("to", watchlistSchemaVersion))
	}
	if state.Watchlist == nil {
		return []domain.WatchlistItem{}
	}
	return state.Watchlist
}

// Add appends a new watchlist item for token. It is a no-op when the
// token is invalid or an item for the same address already exists; the
// created item is returned otherwise.
func (s *WatchlistStore) Add(token domain.Token, notes string) *domain.WatchlistItem {
	if token.Address == "" || token.Symbol == "" {
		s.logger.Warn("Invalid token data provided to watchlist",
			zap.String("address", token.Address),
			zap.String("symbol", token.Symbol))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].Token.Address == token.Address {
			return nil // already tracked
		}
	}

	now := time.Now()
	item := domain.WatchlistItem{
		ID:      fmt.Sprintf("%s-%d", token.Address, now.UnixMilli()),
		Token:   token,
		AddedAt: now,
		Notes:   notes,
	}
	s.items = append(s.items, item)
	s.save()

	s.logger.Info("Token added to watchlist",
		zap.String("address", token.Address),
		zap.String("symbol", token.Symbol))
	return &item
}

// Remove deletes the item tracking tokenAddress. Unknown addresses and
// empty input leave the collection unchanged.
func (s *WatchlistStore) Remove(tokenAddress string) {
	if tokenAddress == "" {
		s.logger.Warn("Invalid token address provided for removal")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].Token.Address == tokenAddress {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.save()
			s.logger.Info("Token removed from watchlist", zap.String("address", tokenAddress))
			return
		}
	}
}

// ItemPatch is a partial watchlist item update.
type ItemPatch struct {
	Notes *string
	Token *domain.Token
}

// Update merges patch into the item with the given id. Unknown ids and
// empty input are no-ops.
func (s *WatchlistStore) Update(id string, patch ItemPatch) {
	if id == "" {
		s.logger.Warn("Invalid parameters provided for watchlist update")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if patch.Notes != nil {
			s.items[i].Notes = *patch.Notes
		}
		if patch.Token != nil {
			s.items[i].Token = *patch.Token
		}
		s.save()
		return
	}
}

// RefreshToken replaces the cached token snapshot for tokenAddress with
// freshly fetched market data. The item identity (id, addedAt, notes) is
// preserved.
func (s *WatchlistStore) RefreshToken(tokenAddress string, token domain.Token) {
	if tokenAddress == "" || token.Address != tokenAddress {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].Token.Address == tokenAddress {
			s.items[i].Token = token
			s.save()
			return
		}
	}
}

// Contains reports whether tokenAddress is tracked.
func (s *WatchlistStore) Contains(tokenAddress string) bool {
	if tokenAddress == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.items {
		if s.items[i].Token.Address == tokenAddress {
			return true
		}
	}
	return false
}

// Get returns the item tracking tokenAddress.
func (s *WatchlistStore) Get(tokenAddress string) (domain.WatchlistItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.items {
		if s.items[i].Token.Address == tokenAddress {
			return s.items[i], true
		}
	}
	return domain.WatchlistItem{}, false
}

// Items returns a copy of the watchlist in insertion order.
func (s *WatchlistStore) Items() []domain.WatchlistItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]domain.WatchlistItem, len(s.items))
	copy(items, s.items)
	return items
}

// save flushes the collection to disk. Persistence failures are logged
// and never surfaced to mutators: the in-memory state stays authoritative
// for the rest of the session.
func (s *WatchlistStore) save() {
	state := watchlistState{
		Version:   watchlistSchemaVersion,
		Watchlist: s.items,
	}
	if err := writeFileAtomic(s.path, state); err != nil {
		s.logger.Error("Failed to persist watchlist", zap.Error(err))
	}
}
