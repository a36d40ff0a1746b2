package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openmint/auctionhouse/internal/server"
	"github.com/openmint/auctionhouse/internal/server/handler"
	"github.com/openmint/auctionhouse/internal/server/ws"
	"github.com/openmint/auctionhouse/internal/service"
)

// ServeMode runs the full daemon: the auction service on top of Postgres,
// the Redis signal bus feeding the WebSocket hub, the HTTP API, and the
// optional S3 archiver.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	svc, err := a.buildService(ctx, deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		archiver := service.NewArchiveService(
			deps.Archiver,
			deps.LockManager,
			a.cfg.Archive.Interval.Duration,
			a.logger,
		)
		g.Go(func() error {
			return archiver.Run(ctx)
		})
	}

	a.startHTTPServer(ctx, g, svc, deps, hub)

	return g.Wait()
}

// StandaloneMode runs the auction service against in-memory stores with no
// external dependencies. Useful for demos and local development.
func (a *App) StandaloneMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting standalone mode")

	svc, err := a.buildService(ctx, deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, svc, deps, nil)

	return g.Wait()
}

// buildService assembles the AuctionService and restores state from the
// configured stores.
func (a *App) buildService(ctx context.Context, deps *Dependencies) (*service.AuctionService, error) {
	svc, err := service.New(service.Config{
		Owner:    deps.Owner,
		Tokens:   deps.Tokens,
		Bank:     deps.Bank,
		Auctions: deps.AuctionStore,
		Pending:  deps.PendingStore,
		Events:   deps.EventStore,
		Bus:      deps.SignalBus,
		Notifier: deps.Notifier,
		Logger:   a.logger,
	})
	if err != nil {
		return nil, err
	}
	if err := svc.Restore(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

// startHTTPServer adds the HTTP server goroutines to the given errgroup. The
// server is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	svc *service.AuctionService,
	deps *Dependencies,
	hub *ws.Hub,
) {
	defaultDuration := time.Duration(a.cfg.House.DefaultDurationSeconds) * time.Second

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			APIKey:      a.cfg.Server.APIKey,
			CORSOrigins: a.cfg.Server.CORSOrigins,
		},
		server.Handlers{
			Health:   handler.NewHealthHandler(svc, deps.Bank, a.logger),
			Auctions: handler.NewAuctionHandler(svc, defaultDuration, a.logger),
			Bids:     handler.NewBidHandler(svc, a.logger),
			Pending:  handler.NewPendingHandler(svc, a.logger),
			Tokens:   handler.NewTokenHandler(svc, a.logger),
		},
		hub,
		a.logger,
	)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
