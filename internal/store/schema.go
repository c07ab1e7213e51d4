package store

import "context"

// Schema DDL. Applied explicitly by the seeder and by integration tests;
// production deployments run it once at provision time.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id               BIGSERIAL PRIMARY KEY,
		upline_id        BIGINT REFERENCES accounts(id),
		status           TEXT NOT NULL DEFAULT 'pending',
		balance          BIGINT NOT NULL DEFAULT 0,
		locked_wallet    BIGINT NOT NULL DEFAULT 0,
		web_wallet       BIGINT NOT NULL DEFAULT 0,
		all_credits_earned BIGINT NOT NULL DEFAULT 0,
		week_credit      BIGINT NOT NULL DEFAULT 0,
		month_credit     BIGINT NOT NULL DEFAULT 0,
		level            INT NOT NULL DEFAULT 0,
		team_size        INT NOT NULL DEFAULT 0,
		total_withdrawn  BIGINT NOT NULL DEFAULT 0,
		withdrawal_count INT NOT NULL DEFAULT 0,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_upline ON accounts(upline_id)`,

	`CREATE TABLE IF NOT EXISTS commission_rates (
		depth       INT PRIMARY KEY,
		direct_bp   BIGINT NOT NULL DEFAULT 0,
		indirect_bp BIGINT NOT NULL DEFAULT 0,
		week_bp     BIGINT NOT NULL DEFAULT 0,
		web_bp      BIGINT NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS level_thresholds (
		level            INT PRIMARY KEY,
		min_team         INT NOT NULL,
		quota            INT NOT NULL DEFAULT 0,
		monthly_salary   BIGINT NOT NULL DEFAULT 0,
		week_payout_day  INT NOT NULL DEFAULT 0,
		month_payout_day INT NOT NULL DEFAULT 1
	)`,

	`CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value BIGINT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS period_recruits (
		account_id BIGINT NOT NULL REFERENCES accounts(id),
		period_id  TEXT NOT NULL,
		count      INT NOT NULL DEFAULT 0,
		PRIMARY KEY (account_id, period_id)
	)`,

	`CREATE TABLE IF NOT EXISTS weekly_payouts (
		id         BIGSERIAL PRIMARY KEY,
		account_id BIGINT NOT NULL REFERENCES accounts(id),
		level      INT NOT NULL,
		amount     BIGINT NOT NULL,
		period_id  TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_weekly_payouts_once
		ON weekly_payouts(account_id, period_id)`,

	`CREATE TABLE IF NOT EXISTS monthly_payouts (
		id         BIGSERIAL PRIMARY KEY,
		account_id BIGINT NOT NULL REFERENCES accounts(id),
		level      INT NOT NULL,
		amount     BIGINT NOT NULL,
		period_id  TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_monthly_payouts_once
		ON monthly_payouts(account_id, period_id)`,

	`CREATE TABLE IF NOT EXISTS withdrawal_requests (
		id           BIGSERIAL PRIMARY KEY,
		reference    UUID NOT NULL,
		account_id   BIGINT NOT NULL REFERENCES accounts(id),
		amount       BIGINT NOT NULL,
		fee          BIGINT NOT NULL DEFAULT 0,
		address      TEXT NOT NULL,
		chain        TEXT NOT NULL DEFAULT '',
		status       TEXT NOT NULL DEFAULT 'pending',
		reviewed_by  TEXT,
		review_note  TEXT,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		processed_at TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_withdrawals_one_pending
		ON withdrawal_requests(account_id) WHERE status = 'pending'`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id         BIGSERIAL PRIMARY KEY,
		event_id   UUID NOT NULL,
		account_id BIGINT NOT NULL REFERENCES accounts(id),
		kind       TEXT NOT NULL,
		message    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_account
		ON notifications(account_id, created_at DESC)`,
}

// InitSchema creates all tables and indexes if absent.
func (s *Store) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.Db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
