package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openmint/auctionhouse/internal/domain"
)

type fakeSnapshotter struct {
	settled atomic.Int64
	events  atomic.Int64
}

func (s *fakeSnapshotter) ArchiveSettled(context.Context, time.Time) (int64, error) {
	s.settled.Add(1)
	return 1, nil
}

func (s *fakeSnapshotter) ArchiveEvents(context.Context, time.Time) (int64, error) {
	s.events.Add(1)
	return 1, nil
}

type fakeLocks struct {
	held     bool
	acquires atomic.Int64
}

func (l *fakeLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	l.acquires.Add(1)
	if l.held {
		return nil, domain.ErrLockHeld
	}
	return func() {}, nil
}

func TestArchiveServiceTicks(t *testing.T) {
	snap := &fakeSnapshotter{}
	svc := NewArchiveService(snap, nil, 10*time.Millisecond, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		return snap.settled.Load() >= 2 && snap.events.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestArchiveServiceSkipsWhenLockHeld(t *testing.T) {
	snap := &fakeSnapshotter{}
	locks := &fakeLocks{held: true}
	svc := NewArchiveService(snap, locks, 10*time.Millisecond, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		return locks.acquires.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	require.Zero(t, snap.settled.Load())
}
