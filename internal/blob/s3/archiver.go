package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openmint/auctionhouse/internal/domain"
)

// Archiver snapshots settled auctions and the trailing audit log to blob
// storage as JSONL. Nothing is deleted from the primary store; the archive
// is a durable copy, not a purge.
type Archiver struct {
	writer   domain.BlobWriter
	auctions domain.AuctionStore
	events   domain.EventStore
}

// NewArchiver creates an Archiver over the given stores.
func NewArchiver(writer domain.BlobWriter, auctions domain.AuctionStore, events domain.EventStore) *Archiver {
	return &Archiver{
		writer:   writer,
		auctions: auctions,
		events:   events,
	}
}

// ArchiveSettled uploads every settled auction record to
// archive/auctions/YYYY-MM.jsonl, partitioned by the snapshot time. It
// returns the number of archived records; zero records means no upload.
func (a *Archiver) ArchiveSettled(ctx context.Context, asOf time.Time) (int64, error) {
	settled, err := a.auctions.ListSettled(ctx, domain.ListOpts{})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settled query: %w", err)
	}
	if len(settled) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(settled)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settled marshal: %w", err)
	}

	path := archivePath("auctions", asOf)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive settled upload: %w", err)
	}
	return int64(len(settled)), nil
}

// ArchiveEvents uploads all events recorded strictly before the cutoff to
// archive/events/YYYY-MM.jsonl and returns the archived count.
func (a *Archiver) ArchiveEvents(ctx context.Context, before time.Time) (int64, error) {
	events, err := a.events.List(ctx, domain.ListOpts{Until: &before})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events query: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(events)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events marshal: %w", err)
	}

	path := archivePath("events", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive events upload: %w", err)
	}
	return int64(len(events)), nil
}

// archivePath builds the S3 key for an archive file, partitioned by
// year-month.
//
//	archive/auctions/2025-06.jsonl
//	archive/events/2025-06.jsonl
func archivePath(kind string, at time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, at.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON, one
// compact line per element.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
