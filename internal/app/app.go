// Package app provides top-level application lifecycle management for the
// auction daemon. It wires together all dependencies (stores, cache, blob
// storage, services, and notifications) and starts the appropriate goroutines
// based on the configured operating mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmint/auctionhouse/internal/config"
	"github.com/openmint/auctionhouse/internal/crypto"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, selects the
// operating mode, starts the corresponding goroutines, and blocks until the
// context is cancelled. On return it runs all registered cleanup functions.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	mode := strings.ToLower(a.cfg.Mode)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch mode {
	case "serve":
		return a.ServeMode(ctx, deps)
	case "standalone":
		return a.StandaloneMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// ownerAddress resolves the auction owner's address from the configured key
// material. A bare address is accepted when no key is configured.
func ownerAddress(cfg *config.Config) (common.Address, error) {
	if cfg.Owner.PrivateKey != "" || cfg.Owner.EncryptedKeyPath != "" {
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Owner.PrivateKey,
			EncryptedKeyPath: cfg.Owner.EncryptedKeyPath,
			KeyPassword:      cfg.Owner.KeyPassword,
		})
		if err != nil {
			return common.Address{}, fmt.Errorf("load owner key: %w", err)
		}
		return crypto.OwnerAddress(keyHex)
	}
	if !common.IsHexAddress(cfg.Owner.Address) {
		return common.Address{}, fmt.Errorf("owner address %q is not valid", cfg.Owner.Address)
	}
	return common.HexToAddress(cfg.Owner.Address), nil
}
