package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/refnet-platform/walletops/internal/domain"
	"github.com/refnet-platform/walletops/internal/notify"
	"github.com/refnet-platform/walletops/internal/observability"
)

// WithdrawalService settles withdrawal requests. A request leaves pending
// exactly once; the balance debit rides the same transaction as the state
// flip, so a double approval can never debit twice.
type WithdrawalService struct {
	db     *pgxpool.Pool
	sink   notify.Sink
	logger zerolog.Logger
}

func NewWithdrawalService(db *pgxpool.Pool, sink notify.Sink, logger zerolog.Logger) *WithdrawalService {
	return &WithdrawalService{db: db, sink: sink, logger: logger}
}

// Create opens a pending request. The partial unique index on
// (account_id) WHERE status='pending' enforces one open request per
// account.
func (s *WithdrawalService) Create(ctx context.Context, accountID, amount, fee int64, address, chain string) (*domain.WithdrawalRequest, error) {
	if amount <= 0 {
		return nil, domain.InvariantErr("withdrawal amount %d must be positive", amount)
	}
	if fee < 0 {
		return nil, domain.InvariantErr("negative withdrawal fee %d", fee)
	}

	req := &domain.WithdrawalRequest{
		Reference: uuid.New(),
		AccountID: accountID,
		Amount:    amount,
		Fee:       fee,
		Address:   address,
		Chain:     chain,
		Status:    domain.WithdrawalPending,
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO withdrawal_requests (reference, account_id, amount, fee, address, chain)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		req.Reference, accountID, amount, fee, address, chain).Scan(&req.ID, &req.CreatedAt)
	if err != nil {
		return nil, classify(err)
	}
	return req, nil
}

// Approve flips a pending request to approved and debits the account,
// atomically. Passing the expected account and amount guards against
// settling a request the admin was not looking at.
func (s *WithdrawalService) Approve(ctx context.Context, requestID, accountID, amount int64, reviewer string) (*domain.WithdrawalRequest, error) {
	if amount <= 0 {
		return nil, domain.InvariantErr("withdrawal amount %d must be positive", amount)
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("%w: tx begin: %v", domain.ErrTransient, err)
	}
	defer tx.Rollback(ctx)

	req, err := s.lockPending(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if req.AccountID != accountID || req.Amount != amount {
		return nil, domain.InvariantErr(
			"request %d is for account %d amount %d, settlement asked for account %d amount %d",
			requestID, req.AccountID, req.Amount, accountID, amount)
	}

	processedAt := time.Now().UTC()
	_, err = tx.Exec(ctx,
		`UPDATE withdrawal_requests SET status = $1, reviewed_by = $2, processed_at = $3 WHERE id = $4`,
		domain.WithdrawalApproved, reviewer, processedAt, requestID)
	if err != nil {
		return nil, classify(err)
	}

	var balance int64
	err = tx.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, req.AccountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.InvariantErr("request %d references missing account %d", requestID, req.AccountID)
		}
		return nil, classify(err)
	}
	if balance < amount {
		return nil, fmt.Errorf("%w: balance %d below withdrawal %d", domain.ErrIneligible, balance, amount)
	}

	_, err = tx.Exec(ctx,
		`UPDATE accounts SET
			balance = balance - $1,
			total_withdrawn = total_withdrawn + $1,
			withdrawal_count = withdrawal_count + 1
		 WHERE id = $2`,
		amount, req.AccountID)
	if err != nil {
		return nil, classify(err)
	}

	n, err := insertNotification(ctx, tx, req.AccountID, domain.NotifyWithdrawalApproved,
		fmt.Sprintf("Withdrawal of %d approved", amount))
	if err != nil {
		return nil, classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: tx commit: %v", domain.ErrTransient, classify(err))
	}

	s.sink.Publish(ctx, n)
	observability.WithdrawalSettlements.WithLabelValues("approved").Inc()
	s.logger.Info().
		Int64("request_id", requestID).
		Int64("account_id", req.AccountID).
		Int64("amount", amount).
		Str("reviewer", reviewer).
		Msg("withdrawal approved")

	req.Status = domain.WithdrawalApproved
	req.ReviewedBy = reviewer
	req.ProcessedAt = &processedAt
	return req, nil
}

// Reject marks a pending request rejected with a displayable reason. No
// balance effect; the account may open a new request afterwards.
func (s *WithdrawalService) Reject(ctx context.Context, requestID, accountID int64, reviewer, reason string) (*domain.WithdrawalRequest, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("%w: tx begin: %v", domain.ErrTransient, err)
	}
	defer tx.Rollback(ctx)

	req, err := s.lockPending(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if req.AccountID != accountID {
		return nil, domain.InvariantErr("request %d is not for account %d", requestID, accountID)
	}

	processedAt := time.Now().UTC()
	_, err = tx.Exec(ctx,
		`UPDATE withdrawal_requests SET status = $1, reviewed_by = $2, review_note = $3, processed_at = $4 WHERE id = $5`,
		domain.WithdrawalRejected, reviewer, reason, processedAt, requestID)
	if err != nil {
		return nil, classify(err)
	}

	n, err := insertNotification(ctx, tx, req.AccountID, domain.NotifyWithdrawalRejected,
		fmt.Sprintf("Withdrawal of %d rejected: %s", req.Amount, reason))
	if err != nil {
		return nil, classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: tx commit: %v", domain.ErrTransient, classify(err))
	}

	s.sink.Publish(ctx, n)
	observability.WithdrawalSettlements.WithLabelValues("rejected").Inc()
	s.logger.Info().
		Int64("request_id", requestID).
		Int64("account_id", req.AccountID).
		Str("reason", reason).
		Msg("withdrawal rejected")

	req.Status = domain.WithdrawalRejected
	req.ReviewedBy = reviewer
	req.ReviewNote = reason
	req.ProcessedAt = &processedAt
	return req, nil
}

// Delete removes a request outright. Only permitted while still pending;
// settled requests are part of the ledger history.
func (s *WithdrawalService) Delete(ctx context.Context, requestID, accountID int64) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM withdrawal_requests WHERE id = $1 AND account_id = $2 AND status = $3`,
		requestID, accountID, domain.WithdrawalPending)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		var status string
		err := s.db.QueryRow(ctx,
			`SELECT status FROM withdrawal_requests WHERE id = $1 AND account_id = $2`,
			requestID, accountID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return classify(err)
		}
		return domain.ErrAlreadyProcessed
	}
	observability.WithdrawalSettlements.WithLabelValues("deleted").Inc()
	return nil
}

// lockPending locks the request row and verifies it has not left pending.
// A request already settled surfaces as AlreadyProcessed, a missing one
// as NotFound; neither causes any debit.
func (s *WithdrawalService) lockPending(ctx context.Context, tx pgx.Tx, requestID int64) (*domain.WithdrawalRequest, error) {
	var req domain.WithdrawalRequest
	err := tx.QueryRow(ctx,
		`SELECT id, reference, account_id, amount, fee, address, chain, status, created_at
		 FROM withdrawal_requests WHERE id = $1 FOR UPDATE`,
		requestID).Scan(&req.ID, &req.Reference, &req.AccountID, &req.Amount, &req.Fee,
		&req.Address, &req.Chain, &req.Status, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, classify(err)
	}
	if req.Status != domain.WithdrawalPending {
		return nil, domain.ErrAlreadyProcessed
	}
	return &req, nil
}
