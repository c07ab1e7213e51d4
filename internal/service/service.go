// Package service holds the ledger engines. Every mutating operation is
// one pgx transaction: acquire the account row lock, re-check the
// predicate under it, mutate, append, commit. Nothing read before the
// lock is trusted for a decision.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/refnet-platform/walletops/internal/domain"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// classify maps storage errors onto the domain taxonomy. Unique-index
// collisions are the database backstop for at-most-once paths;
// serialization failures and deadlocks are retryable in full.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return domain.ErrAlreadyProcessed
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %s", domain.ErrTransient, pgErr.Code)
		}
	}
	return err
}

// insertNotification appends a notification row inside the caller's
// transaction. The row commits or rolls back with the ledger mutation it
// describes; broker publishing happens after commit.
func insertNotification(ctx context.Context, tx pgx.Tx, accountID int64, kind, message string) (domain.Notification, error) {
	n := domain.Notification{
		EventID:   uuid.New(),
		AccountID: accountID,
		Kind:      kind,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	err := tx.QueryRow(ctx,
		`INSERT INTO notifications (event_id, account_id, kind, message, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		n.EventID, n.AccountID, n.Kind, n.Message, n.CreatedAt).Scan(&n.ID)
	return n, err
}
