package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/refnet-platform/walletops/internal/domain"
)

// WalletService covers direct wallet administration. Locked funds never
// reach the spendable balance implicitly; this release is the only path.
type WalletService struct {
	db     *pgxpool.Pool
	logger zerolog.Logger
}

func NewWalletService(db *pgxpool.Pool, logger zerolog.Logger) *WalletService {
	return &WalletService{db: db, logger: logger}
}

// ReleaseLocked moves funds from the locked wallet into balance under the
// account row lock.
func (s *WalletService) ReleaseLocked(ctx context.Context, accountID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.InvariantErr("release amount %d must be positive", amount)
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("%w: tx begin: %v", domain.ErrTransient, err)
	}
	defer tx.Rollback(ctx)

	var locked int64
	err = tx.QueryRow(ctx,
		`SELECT locked_wallet FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, classify(err)
	}
	if locked < amount {
		return 0, fmt.Errorf("%w: locked wallet %d below release %d", domain.ErrIneligible, locked, amount)
	}

	var balance int64
	err = tx.QueryRow(ctx,
		`UPDATE accounts SET locked_wallet = locked_wallet - $1, balance = balance + $1
		 WHERE id = $2 RETURNING balance`,
		amount, accountID).Scan(&balance)
	if err != nil {
		return 0, classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: tx commit: %v", domain.ErrTransient, classify(err))
	}

	s.logger.Info().
		Int64("account_id", accountID).
		Int64("amount", amount).
		Msg("locked wallet released")
	return balance, nil
}
