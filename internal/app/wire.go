package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openmint/auctionhouse/internal/bank"
	s3blob "github.com/openmint/auctionhouse/internal/blob/s3"
	"github.com/openmint/auctionhouse/internal/cache/redis"
	"github.com/openmint/auctionhouse/internal/config"
	"github.com/openmint/auctionhouse/internal/domain"
	"github.com/openmint/auctionhouse/internal/notify"
	"github.com/openmint/auctionhouse/internal/store/memory"
	"github.com/openmint/auctionhouse/internal/store/postgres"
	"github.com/openmint/auctionhouse/internal/token"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	Owner  common.Address
	Bank   *bank.AccountBank
	Tokens *token.Ledger

	// Stores
	AuctionStore domain.AuctionStore
	PendingStore domain.PendingStore
	EventStore   domain.EventStore

	// Redis-backed coordination (serve mode only)
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage (serve mode with archive enabled)
	BlobWriter domain.BlobWriter
	Archiver   *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	owner, err := ownerAddress(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: %w", err)
	}

	deps := &Dependencies{
		Owner:  owner,
		Tokens: token.NewLedger(),
	}

	// --- Bank ledger, seeded from configured balances ---
	deps.Bank = bank.NewAccountBank()
	for addr, wei := range cfg.Bank.Accounts {
		amount, ok := new(big.Int).SetString(wei, 10)
		if !ok {
			cleanup()
			return nil, nil, fmt.Errorf("wire: bank balance %q for %s is not a wei amount", wei, addr)
		}
		deps.Bank.Deposit(common.HexToAddress(addr), amount)
	}

	serve := strings.ToLower(cfg.Mode) == "serve"

	// --- Stores: PostgreSQL in serve mode, in-memory otherwise ---
	if serve {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.AuctionStore = postgres.NewAuctionStore(pool)
		deps.PendingStore = postgres.NewPendingStore(pool)
		deps.EventStore = postgres.NewEventStore(pool)
	} else {
		deps.AuctionStore = memory.NewAuctionStore()
		deps.PendingStore = memory.NewPendingStore()
		deps.EventStore = memory.NewEventStore()
	}

	// --- Redis (serve mode only) ---
	if serve {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	// --- S3 blob storage (serve mode with archival enabled) ---
	if serve && cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.AuctionStore, deps.EventStore)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
