// Package app wires the tracker components together and runs the
// polling daemon.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"token-tracker/internal/alert"
	"token-tracker/internal/bridge"
	"token-tracker/internal/config"
	"token-tracker/internal/events"
	"token-tracker/internal/export"
	"token-tracker/internal/market"
	"token-tracker/internal/monitor"
	"token-tracker/internal/notify"
	"token-tracker/internal/store"
)

// App is the composition root of the tracker daemon.
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	watchlist  *store.WatchlistStore
	alerts     *store.AlertStore
	market     *market.Client
	dispatcher *notify.Dispatcher
	bus        *events.Bus
	engine     *alert.Engine
	monitor    *monitor.Service
	exporter   *export.Exporter
	search     *monitor.DebouncedSearch
	shutdownCh chan os.Signal
}

// New builds the application from config. The host bridge is probed
// asynchronously during Run, so construction never blocks on the host.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	watchlist, err := store.OpenWatchlist(cfg.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open watchlist store: %w", err)
	}

	alerts, err := store.OpenAlerts(cfg.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open alert store: %w", err)
	}

	marketClient := market.NewClient(market.ClientConfig{
		BaseURL:   cfg.MarketBaseURL,
		Chains:    cfg.Chains,
		Timeout:   time.Duration(cfg.RequestTimeout) * time.Second,
		RateLimit: cfg.RateLimit,
		Retries:   cfg.Retries,
	}, logger)

	local := bridge.NewLocalNotifier(cfg.DataDir, cfg.LocalNotifications, logger)
	dispatcher := notify.NewDispatcher(cfg.NotificationsEnabled, nil, local, logger)

	bus := events.NewBus(logger, 64)
	engine := alert.NewEngine(alerts, dispatcher, bus, logger)

	monitorSvc := monitor.NewService(monitor.Config{
		WatchInterval:  time.Duration(cfg.WatchInterval) * time.Second,
		DetailInterval: time.Duration(cfg.DetailInterval) * time.Second,
	}, marketClient, engine, watchlist, bus, logger)

	search := monitor.NewDebouncedSearch(marketClient,
		time.Duration(cfg.SearchDebounceMs)*time.Millisecond, logger)

	return &App{
		cfg:        cfg,
		logger:     logger,
		watchlist:  watchlist,
		alerts:     alerts,
		market:     marketClient,
		dispatcher: dispatcher,
		bus:        bus,
		engine:     engine,
		monitor:    monitorSvc,
		exporter:   export.NewExporter(logger),
		search:     search,
		shutdownCh: make(chan os.Signal, 1),
	}, nil
}

// Watchlist exposes the watchlist store.
func (a *App) Watchlist() *store.WatchlistStore { return a.watchlist }

// Alerts exposes the alert store.
func (a *App) Alerts() *store.AlertStore { return a.alerts }

// Market exposes the market data client.
func (a *App) Market() *market.Client { return a.market }

// Search exposes the debounced search helper.
func (a *App) Search() *monitor.DebouncedSearch { return a.search }

// Bus exposes the event bus for subscribers.
func (a *App) Bus() *events.Bus { return a.bus }

// Exporter exposes the snapshot exporter.
func (a *App) Exporter() *export.Exporter { return a.exporter }

// ExportAlerts writes the current alert collection to the configured
// export directory.
func (a *App) ExportAlerts(opts export.Options) (string, error) {
	if opts.OutputDir == "" {
		opts.OutputDir = a.cfg.ExportDir
	}
	return a.exporter.ExportAlerts(a.alerts.Alerts(), opts)
}

// ExportWatchlist writes the current watchlist to the configured export
// directory.
func (a *App) ExportWatchlist(opts export.Options) (string, error) {
	if opts.OutputDir == "" {
		opts.OutputDir = a.cfg.ExportDir
	}
	return a.exporter.ExportWatchlist(a.watchlist.Items(), opts)
}

// Run starts the daemon: seeds the watchlist, probes the host bridge,
// launches a polling session per watchlist item and blocks until a
// shutdown signal arrives.
func (a *App) Run(ctx context.Context) error {
	signal.Notify(a.shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case sig := <-a.shutdownCh:
			a.logger.Info("📡 Signal received: " + sig.String())
			cancel()
		case <-runCtx.Done():
		}
	}()

	a.seedWatchlist()
	go a.probeBridge(runCtx)
	a.subscribeLogging()

	for _, item := range a.watchlist.Items() {
		if err := a.monitor.Watch(runCtx, item.Token); err != nil {
			a.logger.Warn("Failed to start watch session",
				zap.String("token", item.Token.Address),
				zap.Error(err))
		}
	}
	a.logger.Info("🚀 Tracker running",
		zap.Int("watched", len(a.watchlist.Items())),
		zap.Int("active_alerts", len(a.alerts.Active())))

	<-runCtx.Done()
	return a.shutdown()
}

// seedWatchlist loads the optional seed file and adds its tokens. Seeds
// already present are skipped by the store's duplicate check.
func (a *App) seedWatchlist() {
	if a.cfg.SeedFile == "" {
		return
	}

	seeds, err := store.LoadSeed(a.cfg.SeedFile, a.logger)
	if err != nil {
		a.logger.Warn("Failed to load seed file",
			zap.String("path", a.cfg.SeedFile),
			zap.Error(err))
		return
	}

	added := 0
	for _, seed := range seeds {
		if a.watchlist.Add(seed.Token, seed.Notes) != nil {
			added++
		}
	}
	if added > 0 {
		a.logger.Info("📋 Watchlist seeded", zap.Int("added", added))
	}
}

// probeBridge discovers the host notification bridge. Absence of a host
// is expected outside the hosted environment; the dispatcher keeps
// using the local fallback until a handle attaches.
func (a *App) probeBridge(ctx context.Context) {
	if a.cfg.BridgeURL == "" {
		a.logger.Debug("No bridge URL configured, running standalone")
		return
	}

	handle, err := bridge.Probe(ctx, a.cfg.BridgeURL, a.logger)
	if err != nil {
		a.logger.Info("Host bridge unavailable, using local notifications",
			zap.Error(err))
		return
	}

	if err := handle.Ready(ctx); err != nil {
		a.logger.Warn("Bridge ready signal failed", zap.Error(err))
	}
	a.dispatcher.SetHost(handle)

	user, err := handle.User(ctx)
	if err != nil {
		user = bridge.MockUser()
		a.logger.Debug("Host returned no user, using mock", zap.Error(err))
	}
	a.logger.Info("✅ Host bridge connected",
		zap.Int64("fid", user.FID),
		zap.String("username", user.Username))
}

// subscribeLogging attaches a subscriber that logs bus traffic, so the
// daemon leaves a trace even with no presentation layer attached.
func (a *App) subscribeLogging() {
	a.bus.SubscribeFunc(events.EventAlertTriggered, func(_ context.Context, e events.Event) error {
		if evt, ok := e.(events.AlertTriggered); ok {
			a.logger.Info("🔔 Alert fired",
				zap.String("token", evt.Alert.TokenSymbol),
				zap.String("type", string(evt.Alert.AlertType)),
				zap.Float64("price", evt.CurrentPrice))
		}
		return nil
	})
}

func (a *App) shutdown() error {
	a.logger.Info("👋 Tracker shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.monitor.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("Monitor shutdown incomplete", zap.Error(err))
	}
	a.bus.Close()
	a.market.Close()
	return nil
}
