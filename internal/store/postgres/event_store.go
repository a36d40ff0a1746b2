package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openmint/auctionhouse/internal/domain"
)

// EventStore implements domain.EventStore as an append-only audit log.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Append inserts one event. Events are never updated or deleted.
func (s *EventStore) Append(ctx context.Context, e domain.Event) error {
	var tokenID *int64
	if e.TokenID != nil {
		v := int64(*e.TokenID)
		tokenID = &v
	}
	var account *string
	if e.Account != nil {
		v := e.Account.Hex()
		account = &v
	}
	var amount *string
	if e.Amount != nil {
		v := e.Amount.String()
		amount = &v
	}
	var remainingSecs *int64
	if e.Remaining != nil {
		v := int64(*e.Remaining / time.Second)
		remainingSecs = &v
	}

	const query = `
		INSERT INTO auction_events (
			id, event_type, token_id, account, amount,
			remaining_seconds, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		e.ID, string(e.Type), tokenID, account, amount, remainingSecs, e.At,
	)
	if err != nil {
		return fmt.Errorf("postgres: append event %s: %w", e.ID, err)
	}
	return nil
}

const eventSelectCols = `id, event_type, token_id, account, amount,
	remaining_seconds, occurred_at`

func scanEventRows(rows pgx.Rows) ([]domain.Event, error) {
	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var typ string
		var tokenID, remainingSecs *int64
		var account, amount *string

		err := rows.Scan(&e.ID, &typ, &tokenID, &account, &amount, &remainingSecs, &e.At)
		if err != nil {
			return nil, err
		}

		e.Type = domain.EventType(typ)
		if tokenID != nil {
			v := uint64(*tokenID)
			e.TokenID = &v
		}
		if account != nil {
			addr := common.HexToAddress(*account)
			e.Account = &addr
		}
		if amount != nil {
			e.Amount, _ = new(big.Int).SetString(*amount, 10)
			if e.Amount == nil {
				return nil, fmt.Errorf("bad amount %q in event %s", *amount, e.ID)
			}
		}
		if remainingSecs != nil {
			d := time.Duration(*remainingSecs) * time.Second
			e.Remaining = &d
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// List returns events newest first with time filtering and pagination.
func (s *EventStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	return s.list(ctx, `SELECT `+eventSelectCols+` FROM auction_events WHERE TRUE`, nil, opts)
}

// ListByToken returns a token's events newest first.
func (s *EventStore) ListByToken(ctx context.Context, tokenID uint64, opts domain.ListOpts) ([]domain.Event, error) {
	return s.list(ctx,
		`SELECT `+eventSelectCols+` FROM auction_events WHERE token_id = $1`,
		[]any{int64(tokenID)}, opts)
}

func (s *EventStore) list(ctx context.Context, query string, args []any, opts domain.ListOpts) ([]domain.Event, error) {
	argIdx := len(args) + 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND occurred_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND occurred_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY occurred_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	defer rows.Close()

	events, err := scanEventRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan events: %w", err)
	}
	return events, nil
}

// Compile-time interface check.
var _ domain.EventStore = (*EventStore)(nil)
