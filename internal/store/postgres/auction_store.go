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

// AuctionStore implements domain.AuctionStore using PostgreSQL.
type AuctionStore struct {
	pool *pgxpool.Pool
}

// NewAuctionStore creates a new AuctionStore backed by the given connection
// pool.
func NewAuctionStore(pool *pgxpool.Pool) *AuctionStore {
	return &AuctionStore{pool: pool}
}

// Upsert writes the full auction record, inserting on first sight of the
// token id. Wei amounts are stored as decimal text; NUMERIC would also fit
// but text round-trips big.Int exactly and needs no driver mapping.
func (s *AuctionStore) Upsert(ctx context.Context, a domain.Auction) error {
	var bidder *string
	if a.CurrentBidder != nil {
		v := a.CurrentBidder.Hex()
		bidder = &v
	}

	const query = `
		INSERT INTO auctions (
			token_id, owner, current_bid, current_bidder, auction_start,
			duration_seconds, metadata_uri, settled, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (token_id) DO UPDATE SET
			owner = EXCLUDED.owner,
			current_bid = EXCLUDED.current_bid,
			current_bidder = EXCLUDED.current_bidder,
			auction_start = EXCLUDED.auction_start,
			duration_seconds = EXCLUDED.duration_seconds,
			metadata_uri = EXCLUDED.metadata_uri,
			settled = EXCLUDED.settled,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		int64(a.TokenID), a.Owner.Hex(), a.CurrentBid.String(), bidder, a.AuctionStart,
		int64(a.AuctionDuration/time.Second), a.MetadataURI, a.Settled,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert auction %d: %w", a.TokenID, err)
	}
	return nil
}

const auctionSelectCols = `token_id, owner, current_bid, current_bidder,
	auction_start, duration_seconds, metadata_uri, settled`

func scanAuctionFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.Auction, error) {
	var a domain.Auction
	var tokenID, durationSecs int64
	var tokenOwner, bid string
	var bidder *string

	err := scanner.Scan(
		&tokenID, &tokenOwner, &bid, &bidder,
		&a.AuctionStart, &durationSecs, &a.MetadataURI, &a.Settled,
	)
	if err != nil {
		return domain.Auction{}, err
	}

	a.TokenID = uint64(tokenID)
	a.Owner = common.HexToAddress(tokenOwner)
	a.AuctionDuration = time.Duration(durationSecs) * time.Second
	a.CurrentBid, _ = new(big.Int).SetString(bid, 10)
	if a.CurrentBid == nil {
		return domain.Auction{}, fmt.Errorf("bad current_bid %q", bid)
	}
	if bidder != nil {
		addr := common.HexToAddress(*bidder)
		a.CurrentBidder = &addr
	}
	return a, nil
}

func scanAuctionRows(rows pgx.Rows) ([]domain.Auction, error) {
	var auctions []domain.Auction
	for rows.Next() {
		a, err := scanAuctionFromRow(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, a)
	}
	return auctions, rows.Err()
}

// GetByTokenID retrieves a single auction record.
func (s *AuctionStore) GetByTokenID(ctx context.Context, tokenID uint64) (domain.Auction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+auctionSelectCols+` FROM auctions WHERE token_id = $1`,
		int64(tokenID))

	a, err := scanAuctionFromRow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Auction{}, domain.ErrUnknownToken
		}
		return domain.Auction{}, fmt.Errorf("postgres: get auction %d: %w", tokenID, err)
	}
	return a, nil
}

// List returns auction records ordered by token id with pagination.
func (s *AuctionStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Auction, error) {
	return s.list(ctx, `SELECT `+auctionSelectCols+` FROM auctions`, nil, opts)
}

// ListSettled returns records that went through acceptance, for archival.
func (s *AuctionStore) ListSettled(ctx context.Context, opts domain.ListOpts) ([]domain.Auction, error) {
	return s.list(ctx,
		`SELECT `+auctionSelectCols+` FROM auctions WHERE settled`, nil, opts)
}

func (s *AuctionStore) list(ctx context.Context, query string, args []any, opts domain.ListOpts) ([]domain.Auction, error) {
	query += " ORDER BY token_id"
	argIdx := len(args) + 1

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
		return nil, fmt.Errorf("postgres: list auctions: %w", err)
	}
	defer rows.Close()

	auctions, err := scanAuctionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan auctions: %w", err)
	}
	return auctions, nil
}

// Count returns the number of stored auction records.
func (s *AuctionStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM auctions`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count auctions: %w", err)
	}
	return n, nil
}

// Compile-time interface check.
var _ domain.AuctionStore = (*AuctionStore)(nil)
