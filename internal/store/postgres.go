package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/refnet-platform/walletops/internal/domain"
)

type Store struct {
	Db *pgxpool.Pool
}

func NewStore(connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{Db: pool}, nil
}

func (s *Store) Close() {
	s.Db.Close()
}

const accountColumns = `id, upline_id, status, balance, locked_wallet, web_wallet,
	all_credits_earned, week_credit, month_credit, level, team_size,
	total_withdrawn, withdrawal_count, created_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.UplineID, &a.Status, &a.Balance, &a.LockedWallet,
		&a.WebWallet, &a.AllCreditsEarned, &a.WeekCredit, &a.MonthCredit,
		&a.Level, &a.TeamSize, &a.TotalWithdrawn, &a.WithdrawalCount, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// GetAccount retrieves a single account by ID.
func (s *Store) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	row := s.Db.QueryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = $1", id)
	return scanAccount(row)
}

// CreateAccount creates a pending account under an optional upline.
func (s *Store) CreateAccount(ctx context.Context, uplineID *int64) (int64, error) {
	var id int64
	err := s.Db.QueryRow(ctx,
		"INSERT INTO accounts (upline_id) VALUES ($1) RETURNING id", uplineID).Scan(&id)
	return id, err
}

// GetThresholds loads all level threshold rows, highest team-size first,
// the order the promotion engine evaluates them in.
func (s *Store) GetThresholds(ctx context.Context) ([]domain.LevelThreshold, error) {
	rows, err := s.Db.Query(ctx,
		`SELECT level, min_team, quota, monthly_salary, week_payout_day, month_payout_day
		 FROM level_thresholds ORDER BY min_team DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LevelThreshold
	for rows.Next() {
		var th domain.LevelThreshold
		if err := rows.Scan(&th.Level, &th.MinTeam, &th.Quota, &th.MonthlySalary,
			&th.WeekPayoutDay, &th.MonthPayoutDay); err != nil {
			return nil, err
		}
		out = append(out, th)
	}
	return out, rows.Err()
}

// ListNotifications returns an account's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, accountID int64, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Db.Query(ctx,
		`SELECT id, event_id, account_id, kind, message, created_at
		 FROM notifications WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2`,
		accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.EventID, &n.AccountID, &n.Kind, &n.Message, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// ListWithdrawals returns withdrawal requests, optionally filtered by status.
func (s *Store) ListWithdrawals(ctx context.Context, status string, limit int) ([]domain.WithdrawalRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.Db.Query(ctx,
		`SELECT id, reference, account_id, amount, fee, address, chain, status,
		        COALESCE(reviewed_by, ''), COALESCE(review_note, ''), created_at, processed_at
		 FROM withdrawal_requests
		 WHERE ($1 = '' OR status = $1)
		 ORDER BY created_at DESC LIMIT $2`,
		status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.WithdrawalRequest
	for rows.Next() {
		var w domain.WithdrawalRequest
		if err := rows.Scan(&w.ID, &w.Reference, &w.AccountID, &w.Amount, &w.Fee,
			&w.Address, &w.Chain, &w.Status, &w.ReviewedBy, &w.ReviewNote,
			&w.CreatedAt, &w.ProcessedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// GetJoiningFee reads the single global joining fee constant.
func (s *Store) GetJoiningFee(ctx context.Context) (int64, error) {
	var fee int64
	err := s.Db.QueryRow(ctx,
		"SELECT value FROM settings WHERE key = 'joining_fee'").Scan(&fee)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return fee, nil
}
