// Package monitor runs the polling lifecycle: one cancellable periodic
// session per tracked token, a finer-grained session for the focused
// token, and the debounced search front end. No polling happens for
// tokens without a running session.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"token-tracker/internal/domain"
)

// Config holds the service-level polling intervals.
type Config struct {
	WatchInterval  time.Duration // per watchlist item
	DetailInterval time.Duration // focused token
}

// Service manages polling sessions. Watch sessions are keyed by token
// address; at most one detail session runs at a time.
type Service struct {
	mu       sync.Mutex
	cfg      Config
	market   PairSource
	engine   AlertSink
	refresh  TokenRefresher
	bus      Publisher
	logger   *zap.Logger
	sessions map[string]*Session
	detail   *Session
	detailID string
}

// NewService creates the polling service.
func NewService(cfg Config, market PairSource, engine AlertSink, refresh TokenRefresher, bus Publisher, logger *zap.Logger) *Service {
	if cfg.WatchInterval <= 0 {
		cfg.WatchInterval = 60 * time.Second
	}
	if cfg.DetailInterval <= 0 {
		cfg.DetailInterval = 30 * time.Second
	}
	return &Service{
		cfg:      cfg,
		market:   market,
		engine:   engine,
		refresh:  refresh,
		bus:      bus,
		logger:   logger.Named("monitor"),
		sessions: make(map[string]*Session),
	}
}

// Watch starts a polling session for token at the watchlist interval.
// A session already running for the same address is an error.
func (s *Service) Watch(ctx context.Context, token domain.Token) error {
	if token.Address == "" {
		return fmt.Errorf("token address cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[token.Address]; exists {
		return fmt.Errorf("polling session already exists for token %s", token.Address)
	}

	session := NewSession(SessionConfig{
		Token:     token,
		Interval:  s.cfg.WatchInterval,
		Market:    s.market,
		Engine:    s.engine,
		Watchlist: s.refresh,
		Bus:       s.bus,
		Logger:    s.logger,
	})
	session.Start(ctx)
	s.sessions[token.Address] = session

	s.logger.Info("Watch session started",
		zap.String("token", token.Address),
		zap.String("symbol", token.Symbol))
	return nil
}

// Unwatch stops and removes the session for tokenAddress.
func (s *Service) Unwatch(tokenAddress string) error {
	s.mu.Lock()
	session, exists := s.sessions[tokenAddress]
	if exists {
		delete(s.sessions, tokenAddress)
	}
	s.mu.Unlock()

	if !exists {
		return fmt.Errorf("no polling session for token %s", tokenAddress)
	}

	session.Stop()
	s.logger.Info("Watch session stopped", zap.String("token", tokenAddress))
	return nil
}

// Focus starts the detail session for token, replacing any previous
// focus. The detail session polls at the finer detail interval and does
// not touch the watchlist cache.
func (s *Service) Focus(ctx context.Context, token domain.Token) error {
	if token.Address == "" {
		return fmt.Errorf("token address cannot be empty")
	}

	s.mu.Lock()
	previous := s.detail
	s.detail = nil
	s.mu.Unlock()

	if previous != nil {
		previous.Stop()
	}

	session := NewSession(SessionConfig{
		Token:    token,
		Interval: s.cfg.DetailInterval,
		Market:   s.market,
		Engine:   s.engine,
		Bus:      s.bus,
		Logger:   s.logger,
	})
	session.Start(ctx)

	s.mu.Lock()
	s.detail = session
	s.detailID = token.Address
	s.mu.Unlock()

	s.logger.Info("Detail session started", zap.String("token", token.Address))
	return nil
}

// Blur stops the detail session, if any.
func (s *Service) Blur() {
	s.mu.Lock()
	session := s.detail
	s.detail = nil
	s.detailID = ""
	s.mu.Unlock()

	if session != nil {
		session.Stop()
	}
}

// Focused returns the address of the token with a running detail
// session, empty when none.
func (s *Service) Focused() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detailID
}

// Watching returns the addresses with a running watch session.
func (s *Service) Watching() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	addrs := make([]string, 0, len(s.sessions))
	for addr := range s.sessions {
		addrs = append(addrs, addr)
	}
	return addrs
}

// Shutdown stops every session concurrently and waits for their
// goroutines, bounded by ctx.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions)+1)
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	if s.detail != nil {
		sessions = append(sessions, s.detail)
	}
	s.sessions = make(map[string]*Session)
	s.detail = nil
	s.detailID = ""
	s.mu.Unlock()

	s.logger.Info("Shutting down polling service", zap.Int("sessions", len(sessions)))

	g, _ := errgroup.WithContext(ctx)
	for _, session := range sessions {
		session := session
		g.Go(func() error {
			session.Stop()
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
