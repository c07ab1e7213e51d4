package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/refnet-platform/walletops/internal/domain"
	"github.com/refnet-platform/walletops/internal/notify"
	"github.com/refnet-platform/walletops/internal/observability"
)

// variant parameterizes the one collection state machine over the weekly
// and monthly period shapes. The two share the algorithm; only the period
// key, the day gate, the payout source, and the ledger table differ.
type variant struct {
	name         string
	table        string
	periodID     func(time.Time) string
	gateOpen     func(time.Time, domain.LevelThreshold, bool) bool
	nextPayout   func(time.Time, domain.LevelThreshold, bool, bool) time.Time
	payout       func(*domain.Account, domain.LevelThreshold, bool) (int64, bool)
	zeroesBucket bool
}

var weeklyVariant = variant{
	name:  "weekly",
	table: "weekly_payouts",
	periodID: func(t time.Time) string {
		return domain.WeekPeriodID(t)
	},
	gateOpen: func(t time.Time, th domain.LevelThreshold, ok bool) bool {
		return ok && domain.WeekGateOpen(t, th.WeekPayoutDay)
	},
	nextPayout: func(t time.Time, th domain.LevelThreshold, ok, collected bool) time.Time {
		if !ok {
			return t
		}
		return domain.NextWeekPayout(t, th.WeekPayoutDay, collected)
	},
	// The weekly engine pays out the accrual bucket itself.
	payout: func(a *domain.Account, _ domain.LevelThreshold, _ bool) (int64, bool) {
		return a.WeekCredit, true
	},
	zeroesBucket: true,
}

var monthlyVariant = variant{
	name:  "monthly",
	table: "monthly_payouts",
	periodID: func(t time.Time) string {
		return domain.MonthPeriodID(t)
	},
	gateOpen: func(t time.Time, th domain.LevelThreshold, ok bool) bool {
		return ok && domain.MonthGateOpen(t, th.MonthPayoutDay)
	},
	nextPayout: func(t time.Time, th domain.LevelThreshold, ok, collected bool) time.Time {
		if !ok {
			return t
		}
		return domain.NextMonthPayout(t, th.MonthPayoutDay, collected)
	},
	// The monthly engine pays the level's fixed salary, not a bucket, and
	// requires a configured non-zero level.
	payout: func(a *domain.Account, th domain.LevelThreshold, ok bool) (int64, bool) {
		return th.MonthlySalary, ok && a.Level > 0
	},
	zeroesBucket: false,
}

func variantFor(g domain.Granularity) (variant, error) {
	switch g {
	case domain.Weekly:
		return weeklyVariant, nil
	case domain.Monthly:
		return monthlyVariant, nil
	default:
		return variant{}, domain.InvariantErr("unknown period granularity %q", g)
	}
}

// CollectionService is the periodic eligibility and collection engine.
type CollectionService struct {
	db     *pgxpool.Pool
	sink   notify.Sink
	logger zerolog.Logger
	now    func() time.Time
}

func NewCollectionService(db *pgxpool.Pool, sink notify.Sink, logger zerolog.Logger) *CollectionService {
	return &CollectionService{db: db, sink: sink, logger: logger, now: time.Now}
}

// CollectResult reports a committed payout.
type CollectResult struct {
	AccountID  int64  `json:"account_id"`
	Amount     int64  `json:"amount"`
	PeriodID   string `json:"period_id"`
	NewBalance int64  `json:"new_balance"`
}

// Status evaluates the predicate read-only. The snapshot is advisory: a
// later Collect re-evaluates everything under the account lock.
func (s *CollectionService) Status(ctx context.Context, accountID int64, g domain.Granularity) (*domain.EligibilitySnapshot, error) {
	v, err := variantFor(g)
	if err != nil {
		return nil, err
	}

	acct, err := s.loadAccount(ctx, s.db, accountID, false)
	if err != nil {
		return nil, err
	}
	snap, err := s.evaluate(ctx, s.db, v, acct, s.now())
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Collect runs the collection transaction: lock the account row, re-run
// the full predicate, credit the balance, zero the bucket (weekly only),
// append the ledger entry, commit. Two concurrent calls for one account
// and period yield exactly one success; the loser sees AlreadyProcessed.
func (s *CollectionService) Collect(ctx context.Context, accountID int64, g domain.Granularity) (*CollectResult, error) {
	v, err := variantFor(g)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("%w: tx begin: %v", domain.ErrTransient, err)
	}
	defer tx.Rollback(ctx)

	acct, err := s.loadAccount(ctx, tx, accountID, true)
	if err != nil {
		return nil, err
	}

	now := s.now()
	snap, err := s.evaluate(ctx, tx, v, acct, now)
	if err != nil {
		return nil, err
	}

	if !snap.Eligible {
		observability.Collections.WithLabelValues(v.name, string(snap.Reason)).Inc()
		if snap.Reason == domain.ReasonAlreadyCollected {
			return nil, domain.ErrAlreadyProcessed
		}
		return nil, domain.Ineligible(snap.Reason, s.reasonDetail(snap.Reason, snap))
	}

	var newBalance int64
	if v.zeroesBucket {
		err = tx.QueryRow(ctx,
			`UPDATE accounts SET balance = balance + $1, week_credit = 0 WHERE id = $2 RETURNING balance`,
			snap.Amount, accountID).Scan(&newBalance)
	} else {
		err = tx.QueryRow(ctx,
			`UPDATE accounts SET balance = balance + $1 WHERE id = $2 RETURNING balance`,
			snap.Amount, accountID).Scan(&newBalance)
	}
	if err != nil {
		return nil, classify(err)
	}

	// The unique (account, period) index backstops the predicate.
	_, err = tx.Exec(ctx,
		`INSERT INTO `+v.table+` (account_id, level, amount, period_id) VALUES ($1, $2, $3, $4)`,
		accountID, acct.Level, snap.Amount, snap.PeriodID)
	if err != nil {
		return nil, classify(err)
	}

	n, err := insertNotification(ctx, tx, accountID, domain.NotifyPayout,
		fmt.Sprintf("%s payout of %d collected for %s", v.name, snap.Amount, snap.PeriodID))
	if err != nil {
		return nil, classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: tx commit: %v", domain.ErrTransient, classify(err))
	}

	s.sink.Publish(ctx, n)
	observability.Collections.WithLabelValues(v.name, "collected").Inc()
	s.logger.Info().
		Int64("account_id", accountID).
		Str("period", v.name).
		Str("period_id", snap.PeriodID).
		Int64("amount", snap.Amount).
		Msg("payout collected")

	return &CollectResult{
		AccountID:  accountID,
		Amount:     snap.Amount,
		PeriodID:   snap.PeriodID,
		NewBalance: newBalance,
	}, nil
}

// querier lets evaluate run against the pool (status) or a transaction
// (collection).
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *CollectionService) loadAccount(ctx context.Context, q querier, id int64, forUpdate bool) (*domain.Account, error) {
	sql := `SELECT id, upline_id, status, balance, locked_wallet, web_wallet,
			all_credits_earned, week_credit, month_credit, level, team_size,
			total_withdrawn, withdrawal_count, created_at
		FROM accounts WHERE id = $1`
	if forUpdate {
		sql += " FOR UPDATE"
	}
	var a domain.Account
	err := q.QueryRow(ctx, sql, id).Scan(&a.ID, &a.UplineID, &a.Status, &a.Balance,
		&a.LockedWallet, &a.WebWallet, &a.AllCreditsEarned, &a.WeekCredit, &a.MonthCredit,
		&a.Level, &a.TeamSize, &a.TotalWithdrawn, &a.WithdrawalCount, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, classify(err)
	}
	return &a, nil
}

// evaluate assembles the predicate input and snapshot from the rows
// visible to q. Under Collect, q is the transaction holding the account
// lock, so every read here is current.
func (s *CollectionService) evaluate(ctx context.Context, q querier, v variant, acct *domain.Account, now time.Time) (*domain.EligibilitySnapshot, error) {
	periodID := v.periodID(now)

	var alreadyCollected bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM `+v.table+` WHERE account_id = $1 AND period_id = $2)`,
		acct.ID, periodID).Scan(&alreadyCollected)
	if err != nil {
		return nil, classify(err)
	}

	// The most recent ledger entry carries the level the last payout was
	// taken at; a differing current level grants the quota exemption.
	var lastLevel int
	hasPrior := true
	err = q.QueryRow(ctx,
		`SELECT level FROM `+v.table+` WHERE account_id = $1 ORDER BY id DESC LIMIT 1`,
		acct.ID).Scan(&lastLevel)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, classify(err)
		}
		hasPrior = false
	}

	var recruits int
	err = q.QueryRow(ctx,
		`SELECT count FROM period_recruits WHERE account_id = $1 AND period_id = $2`,
		acct.ID, periodID).Scan(&recruits)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, classify(err)
	}

	th, thFound, err := s.thresholdForLevel(ctx, q, acct.Level)
	if err != nil {
		return nil, err
	}

	amount, configured := v.payout(acct, th, thFound)
	in := domain.EligibilityInput{
		Level:            acct.Level,
		LastEntryLevel:   lastLevel,
		HasPriorEntry:    hasPrior,
		AlreadyCollected: alreadyCollected,
		RecruitCount:     recruits,
		Quota:            th.Quota,
		DayGateOpen:      v.gateOpen(now, th, thFound),
		Payout:           amount,
		LevelConfigured:  configured,
	}

	eligible, reason := domain.Evaluate(in)
	remaining := 0
	if !in.QuotaExempt() && recruits < th.Quota {
		remaining = th.Quota - recruits
	}
	snap := &domain.EligibilitySnapshot{
		Eligible:          eligible,
		Reason:            reason,
		PeriodID:          periodID,
		Amount:            amount,
		Quota:             th.Quota,
		Recruits:          recruits,
		RecruitsRemaining: remaining,
		QuotaExempt:       in.QuotaExempt(),
		NextPayoutDate:    v.nextPayout(now, th, thFound, alreadyCollected),
		Level:             acct.Level,
	}
	return snap, nil
}

func (s *CollectionService) thresholdForLevel(ctx context.Context, q querier, level int) (domain.LevelThreshold, bool, error) {
	var th domain.LevelThreshold
	err := q.QueryRow(ctx,
		`SELECT level, min_team, quota, monthly_salary, week_payout_day, month_payout_day
		 FROM level_thresholds WHERE level = $1`, level).Scan(
		&th.Level, &th.MinTeam, &th.Quota, &th.MonthlySalary,
		&th.WeekPayoutDay, &th.MonthPayoutDay)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LevelThreshold{}, false, nil
		}
		return th, false, classify(err)
	}
	return th, true, nil
}

func (s *CollectionService) reasonDetail(reason domain.Reason, snap *domain.EligibilitySnapshot) string {
	switch reason {
	case domain.ReasonDayNotReached:
		return fmt.Sprintf("next payout on %s", snap.NextPayoutDate.Format("2006-01-02"))
	case domain.ReasonQuotaUnmet:
		return fmt.Sprintf("%d more recruits needed", snap.RecruitsRemaining)
	case domain.ReasonNothingToCollect:
		return "no payout available for the current level"
	default:
		return ""
	}
}
