package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openmint/auctionhouse/internal/domain"
)

// PendingStore implements domain.PendingStore using PostgreSQL.
type PendingStore struct {
	pool *pgxpool.Pool
}

// NewPendingStore creates a new PendingStore backed by the given connection
// pool.
func NewPendingStore(pool *pgxpool.Pool) *PendingStore {
	return &PendingStore{pool: pool}
}

// Set writes the account's full pull-payment balance.
func (s *PendingStore) Set(ctx context.Context, account common.Address, balance *big.Int) error {
	const query = `
		INSERT INTO pending_returns (account, balance, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (account) DO UPDATE SET
			balance = EXCLUDED.balance,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query, account.Hex(), balance.String())
	if err != nil {
		return fmt.Errorf("postgres: set pending for %s: %w", account.Hex(), err)
	}
	return nil
}

// Get returns the account's balance, zero when the account is unknown.
func (s *PendingStore) Get(ctx context.Context, account common.Address) (*big.Int, error) {
	var raw string
	err := s.pool.QueryRow(ctx,
		`SELECT balance FROM pending_returns WHERE account = $1`,
		account.Hex()).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return new(big.Int), nil
		}
		return nil, fmt.Errorf("postgres: get pending for %s: %w", account.Hex(), err)
	}

	bal, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("postgres: bad pending balance %q for %s", raw, account.Hex())
	}
	return bal, nil
}

// All returns the whole pull-payment ledger.
func (s *PendingStore) All(ctx context.Context) (map[common.Address]*big.Int, error) {
	rows, err := s.pool.Query(ctx, `SELECT account, balance FROM pending_returns`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pending: %w", err)
	}
	defer rows.Close()

	out := make(map[common.Address]*big.Int)
	for rows.Next() {
		var acct, raw string
		if err := rows.Scan(&acct, &raw); err != nil {
			return nil, fmt.Errorf("postgres: scan pending: %w", err)
		}
		bal, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return nil, fmt.Errorf("postgres: bad pending balance %q for %s", raw, acct)
		}
		out[common.HexToAddress(acct)] = bal
	}
	return out, rows.Err()
}

// Compile-time interface check.
var _ domain.PendingStore = (*PendingStore)(nil)
