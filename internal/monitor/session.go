package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"token-tracker/internal/domain"
	"token-tracker/internal/events"
	"token-tracker/internal/market"
)

// PairSource fetches current market data for a token.
type PairSource interface {
	BestPair(ctx context.Context, chainID, address string) (*market.TokenPair, error)
}

// AlertSink receives price ticks for evaluation.
type AlertSink interface {
	CheckAlerts(ctx context.Context, tokenAddress string, currentPrice float64) []domain.PriceAlert
}

// TokenRefresher receives refreshed token snapshots from polling.
type TokenRefresher interface {
	RefreshToken(tokenAddress string, token domain.Token)
}

// SessionConfig bundles the collaborators of one polling session.
type SessionConfig struct {
	Token     domain.Token
	Interval  time.Duration
	Market    PairSource
	Engine    AlertSink
	Watchlist TokenRefresher // nil for detail sessions not backed by the watchlist
	Bus       Publisher      // nil disables event publishing
	Logger    *zap.Logger
}

// Publisher receives session events.
type Publisher interface {
	Publish(event events.Event) error
}

// Session polls market data for one token on a fixed interval, feeding
// each observed price into the alert engine and refreshing the cached
// watchlist snapshot. Its lifetime is bound to the context it was
// started with; Stop releases the ticker deterministically.
type Session struct {
	cfg    SessionConfig
	cancel context.CancelFunc
	done   chan struct{}
	logger *zap.Logger
}

// NewSession creates a polling session; Start launches it.
func NewSession(cfg SessionConfig) *Session {
	return &Session{
		cfg:    cfg,
		done:   make(chan struct{}),
		logger: cfg.Logger.Named("session").With(zap.String("token", cfg.Token.Address)),
	}
}

// Start begins polling. The first poll happens immediately, then on
// every interval tick until Stop or context cancellation.
func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

// Stop cancels the session and waits for the polling goroutine to
// finish. It is safe to call more than once.
func (s *Session) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Debug("Polling session started", zap.Duration("interval", s.cfg.Interval))

	s.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Polling session stopped")
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

// poll fetches the best pair for the token and feeds the result forward.
// Fetch failures leave the previous cached data in place; the worst
// outcome of a bad poll is stale market data.
func (s *Session) poll(ctx context.Context) {
	token := s.cfg.Token
	pair, err := s.cfg.Market.BestPair(ctx, token.ChainID, token.Address)
	if err != nil {
		s.logger.Warn("Price poll failed", zap.Error(err))
		return
	}
	if pair == nil {
		s.logger.Debug("No pairs found for token")
		return
	}

	snapshot := pair.BaseTokenSnapshot()
	if s.cfg.Watchlist != nil {
		s.cfg.Watchlist.RefreshToken(token.Address, snapshot)
	}

	price, ok := pair.PriceUSDFloat()
	if !ok {
		s.logger.Debug("Pair has no parseable USD price", zap.String("pair", pair.PairAddress))
		return
	}

	if s.cfg.Bus != nil {
		_ = s.cfg.Bus.Publish(events.PriceUpdated{
			TokenAddress: token.Address,
			TokenSymbol:  snapshot.Symbol,
			PriceUSD:     price,
			Change24h:    snapshot.PriceChange24h,
			Timestamp:    time.Now(),
		})
	}

	fired := s.cfg.Engine.CheckAlerts(ctx, token.Address, price)
	if len(fired) > 0 {
		s.logger.Info("Alerts fired from poll",
			zap.Int("count", len(fired)),
			zap.Float64("price", price))
	}
}
