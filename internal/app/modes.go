package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	s3blob "github.com/chainedmetrics/kpimarkets/internal/blob/s3"
	"github.com/chainedmetrics/kpimarkets/internal/chain"
	"github.com/chainedmetrics/kpimarkets/internal/platform/polygonscan"
	"github.com/chainedmetrics/kpimarkets/internal/server"
	"github.com/chainedmetrics/kpimarkets/internal/server/handler"
	"github.com/chainedmetrics/kpimarkets/internal/server/ws"
	"github.com/chainedmetrics/kpimarkets/internal/service"
	"github.com/chainedmetrics/kpimarkets/internal/worker"
)

// services bundles the domain services built on top of the wired
// infrastructure. Every mode builds the set it needs from here.
type services struct {
	analytics *service.AnalyticsService
	markets   *service.MarketService
	auth      *service.AuthService
	faucet    *service.FaucetService
}

// buildServices constructs the service layer shared by all modes.
func (a *App) buildServices(deps *Dependencies) *services {
	fetcher := polygonscan.NewClient(
		a.cfg.Polygonscan.BaseURL,
		a.cfg.Polygonscan.APIKey,
		a.cfg.Polygonscan.Timeout.Duration,
		a.cfg.Polygonscan.MaxRetries,
		a.cfg.Polygonscan.RetryBackoff.Duration,
	)

	analyticsSvc := service.NewAnalyticsService(
		deps.MarketStore,
		fetcher,
		deps.SeriesCache,
		deps.SignalBus,
		a.cfg.Chain.CollateralAddress,
		a.cfg.Chain.NullAddress,
		a.logger,
	)

	return &services{
		analytics: analyticsSvc,
		markets:   service.NewMarketService(deps.MarketStore, analyticsSvc, a.logger),
		auth: service.NewAuthService(
			deps.UserStore,
			deps.AccessRequestStore,
			deps.Notifier,
			a.cfg.Auth.JWTSecret,
			a.cfg.Auth.TokenTTL.Duration,
			a.cfg.Auth.BcryptCost,
			a.logger,
		),
		faucet: service.NewFaucetService(deps.FaucetQueue, deps.Notifier, a.logger),
	}
}

// ServerMode runs the HTTP + WebSocket API.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)
	a.startHTTPServer(ctx, g, deps, svcs)

	return g.Wait()
}

// WorkerMode runs the faucet payout worker.
func (a *App) WorkerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting worker mode")

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startFaucetWorker(ctx, g, deps); err != nil {
		return fmt.Errorf("worker mode: %w", err)
	}

	return g.Wait()
}

// ArchiveMode periodically snapshots every market's price series to object
// storage.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)
	if err := a.startArchiver(ctx, g, deps, svcs); err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}

	return g.Wait()
}

// FullMode runs the API server, the faucet worker, and, when enabled, the
// price-series archiver in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	a.startHTTPServer(ctx, g, deps, svcs)

	if err := a.startFaucetWorker(ctx, g, deps); err != nil {
		return fmt.Errorf("full mode: %w", err)
	}

	if a.cfg.Archive.Enabled {
		if err := a.startArchiver(ctx, g, deps, svcs); err != nil {
			return fmt.Errorf("full mode: %w", err)
		}
	}

	return g.Wait()
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
		},
		server.Handlers{
			Health:    handler.NewHealthHandler(a.logger),
			Markets:   handler.NewMarketHandler(svcs.markets, a.logger),
			Analytics: handler.NewAnalyticsHandler(svcs.analytics, a.logger),
			Auth:      handler.NewAuthHandler(svcs.auth, a.logger),
			Faucet:    handler.NewFaucetHandler(svcs.faucet, a.logger),
		},
		svcs.auth,
		deps.RateLimiter,
		hub,
		a.logger,
	)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startFaucetWorker builds the payout wallet client and adds the queue drain
// loop to the errgroup.
func (a *App) startFaucetWorker(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	payer, err := chain.NewPayer(
		ctx,
		a.cfg.Chain.RPCURL,
		a.cfg.Faucet.PrivateKey,
		a.cfg.Chain.ChainID,
		a.cfg.Faucet.GasLimit,
		a.logger,
	)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, payer.Close)

	w := worker.NewFaucetWorker(
		deps.FaucetQueue,
		payer,
		deps.Notifier,
		a.cfg.Faucet.PayoutMatic,
		a.cfg.Faucet.PollInterval.Duration,
		a.logger,
	)
	g.Go(func() error {
		err := w.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
	return nil
}

// startArchiver adds the periodic price-series snapshot loop to the errgroup.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) error {
	if deps.BlobWriter == nil {
		return fmt.Errorf("archiver requires object storage (set archive.enabled and the s3 section)")
	}

	archiver := s3blob.NewArchiver(deps.BlobWriter, deps.MarketStore, svcs.analytics, a.cfg.Archive.Prefix)

	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		runOnce := func() {
			archived, skipped, err := archiver.ArchiveAll(ctx, time.Now())
			if err != nil {
				a.logger.ErrorContext(ctx, "series archival failed", slog.Any("error", err))
				return
			}
			a.logger.InfoContext(ctx, "series archival complete",
				slog.Int("archived", archived),
				slog.Int("skipped", skipped),
			)
		}

		runOnce()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				runOnce()
			}
		}
	})

	a.logger.InfoContext(ctx, "archiver started", slog.Duration("interval", interval))
	return nil
}
