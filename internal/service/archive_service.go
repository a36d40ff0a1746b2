package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/openmint/auctionhouse/internal/domain"
)

// archiveLockKey is the distributed-lock key guarding the archive job so at
// most one instance snapshots per interval.
const archiveLockKey = "auction:archiver"

// Snapshotter uploads settled auctions and trailing events to blob storage.
type Snapshotter interface {
	ArchiveSettled(ctx context.Context, asOf time.Time) (int64, error)
	ArchiveEvents(ctx context.Context, before time.Time) (int64, error)
}

// ArchiveService periodically snapshots settled auctions to blob storage.
type ArchiveService struct {
	snap     Snapshotter
	locks    domain.LockManager
	interval time.Duration
	logger   *slog.Logger
}

// NewArchiveService creates an ArchiveService that runs every interval.
// locks may be nil when the deployment is single-instance.
func NewArchiveService(snap Snapshotter, locks domain.LockManager, interval time.Duration, logger *slog.Logger) *ArchiveService {
	return &ArchiveService{
		snap:     snap,
		locks:    locks,
		interval: interval,
		logger:   logger.With(slog.String("component", "archive_service")),
	}
}

// Run blocks until the context is cancelled, archiving on each tick.
func (s *ArchiveService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *ArchiveService) runOnce(ctx context.Context) {
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, archiveLockKey, s.interval)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				s.logger.DebugContext(ctx, "archive lock held elsewhere, skipping")
				return
			}
			s.logger.ErrorContext(ctx, "acquire archive lock", slog.String("error", err.Error()))
			return
		}
		defer unlock()
	}

	now := time.Now().UTC()

	settled, err := s.snap.ArchiveSettled(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "archive settled auctions", slog.String("error", err.Error()))
	}
	events, err := s.snap.ArchiveEvents(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "archive events", slog.String("error", err.Error()))
	}

	if settled > 0 || events > 0 {
		s.logger.InfoContext(ctx, "archive snapshot complete",
			slog.Int64("settled_auctions", settled),
			slog.Int64("events", events),
		)
	}
}
