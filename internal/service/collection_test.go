package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/refnet-platform/walletops/internal/domain"
	"github.com/refnet-platform/walletops/internal/testutil"
)

// 2026-08-31 is a Monday (weekday 1).
var testMonday = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func mustExec(t *testing.T, db *pgxpool.Pool, sql string, args ...any) {
	t.Helper()
	if _, err := db.Exec(context.Background(), sql, args...); err != nil {
		t.Fatalf("exec: %v", err)
	}
}

func TestVariantFor_UnknownGranularity(t *testing.T) {
	_, err := variantFor(domain.Granularity("hourly"))
	if !errors.Is(err, domain.ErrInvariant) {
		t.Fatalf("got %v, want ErrInvariant", err)
	}
}

func TestCollect_WeeklyPaysAccrualBucket(t *testing.T) {
	st := testutil.SetupTestDB(t)
	testutil.SeedThreshold(t, st, domain.LevelThreshold{Level: 1, MinTeam: 3, Quota: 0, WeekPayoutDay: 1})

	acct := testutil.CreateAccount(t, st, nil, domain.StatusApproved)
	mustExec(t, st.Db, `UPDATE accounts SET level = 1, week_credit = 500 WHERE id = $1`, acct)

	svc := NewCollectionService(st.Db, newTestSink(), zerolog.Nop())
	svc.now = func() time.Time { return testMonday }

	res, err := svc.Collect(context.Background(), acct, domain.Weekly)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if res.Amount != 500 {
		t.Errorf("amount: got %d, want 500", res.Amount)
	}
	if res.PeriodID != "2026-W36" {
		t.Errorf("period: got %q, want 2026-W36", res.PeriodID)
	}
	if res.NewBalance != 500 {
		t.Errorf("new balance: got %d, want 500", res.NewBalance)
	}

	after := testutil.MustAccount(t, st, acct)
	if after.WeekCredit != 0 {
		t.Errorf("week credit must be zeroed, got %d", after.WeekCredit)
	}
	if after.Balance != 500 {
		t.Errorf("balance: got %d, want 500", after.Balance)
	}
}

func TestCollect_SecondAttemptAlreadyProcessed(t *testing.T) {
	st := testutil.SetupTestDB(t)
	testutil.SeedThreshold(t, st, domain.LevelThreshold{Level: 1, MinTeam: 3, WeekPayoutDay: 1})

	acct := testutil.CreateAccount(t, st, nil, domain.StatusApproved)
	mustExec(t, st.Db, `UPDATE accounts SET level = 1, week_credit = 500 WHERE id = $1`, acct)

	svc := NewCollectionService(st.Db, newTestSink(), zerolog.Nop())
	svc.now = func() time.Time { return testMonday }

	if _, err := svc.Collect(context.Background(), acct, domain.Weekly); err != nil {
		t.Fatalf("first collect: %v", err)
	}
	_, err := svc.Collect(context.Background(), acct, domain.Weekly)
	if !errors.Is(err, domain.ErrAlreadyProcessed) {
		t.Fatalf("second collect: got %v, want ErrAlreadyProcessed", err)
	}
}

func TestCollect_WeeklyDayGateRequiresExactWeekday(t *testing.T) {
	st := testutil.SetupTestDB(t)
	testutil.SeedThreshold(t, st, domain.LevelThreshold{Level: 1, MinTeam: 3, WeekPayoutDay: 1})

	acct := testutil.CreateAccount(t, st, nil, domain.StatusApproved)
	mustExec(t, st.Db, `UPDATE accounts SET level = 1, week_credit = 500 WHERE id = $1`, acct)

	svc := NewCollectionService(st.Db, newTestSink(), zerolog.Nop())
	svc.now = func() time.Time { return testMonday.AddDate(0, 0, 1) } // Tuesday

	_, err := svc.Collect(context.Background(), acct, domain.Weekly)
	var inel *domain.IneligibleError
	if !errors.As(err, &inel) || inel.Reason != domain.ReasonDayNotReached {
		t.Fatalf("got %v, want day_not_reached", err)
	}
}

func TestCollect_QuotaUnmetAtEstablishedLevel(t *testing.T) {
	st := testutil.SetupTestDB(t)
	testutil.SeedThreshold(t, st, domain.LevelThreshold{Level: 1, MinTeam: 3, Quota: 2, WeekPayoutDay: 1})

	acct := testutil.CreateAccount(t, st, nil, domain.StatusApproved)
	mustExec(t, st.Db, `UPDATE accounts SET level = 1, week_credit = 500 WHERE id = $1`, acct)
	// A prior entry at the same level: the new-level exemption does not
	// apply, so the quota binds.
	mustExec(t, st.Db,
		`INSERT INTO weekly_payouts (account_id, level, amount, period_id) VALUES ($1, 1, 100, '2026-W35')`,
		acct)

	svc := NewCollectionService(st.Db, newTestSink(), zerolog.Nop())
	svc.now = func() time.Time { return testMonday }

	_, err := svc.Collect(context.Background(), acct, domain.Weekly)
	var inel *domain.IneligibleError
	if !errors.As(err, &inel) || inel.Reason != domain.ReasonQuotaUnmet {
		t.Fatalf("got %v, want quota_unmet", err)
	}
}

func TestCollect_FirstCollectionAtNewLevelExemptsQuota(t *testing.T) {
	st := testutil.SetupTestDB(t)
	testutil.SeedThreshold(t, st, domain.LevelThreshold{Level: 2, MinTeam: 8, Quota: 5, WeekPayoutDay: 1})

	acct := testutil.CreateAccount(t, st, nil, domain.StatusApproved)
	mustExec(t, st.Db, `UPDATE accounts SET level = 2, week_credit = 300 WHERE id = $1`, acct)
	// Last entry was taken at level 1.
	mustExec(t, st.Db,
		`INSERT INTO weekly_payouts (account_id, level, amount, period_id) VALUES ($1, 1, 100, '2026-W35')`,
		acct)

	svc := NewCollectionService(st.Db, newTestSink(), zerolog.Nop())
	svc.now = func() time.Time { return testMonday }

	// Zero recruits this period, quota 5: eligible through the exemption.
	if _, err := svc.Collect(context.Background(), acct, domain.Weekly); err != nil {
		t.Fatalf("exempt collect: %v", err)
	}

	// Only once: the period gate still applies.
	_, err := svc.Collect(context.Background(), acct, domain.Weekly)
	if !errors.Is(err, domain.ErrAlreadyProcessed) {
		t.Fatalf("second collect: got %v, want ErrAlreadyProcessed", err)
	}
}

func TestCollect_MonthlyPaysFixedSalary(t *testing.T) {
	st := testutil.SetupTestDB(t)
	testutil.SeedThreshold(t, st, domain.LevelThreshold{Level: 1, MinTeam: 3, MonthlySalary: 50000, MonthPayoutDay: 5})

	acct := testutil.CreateAccount(t, st, nil, domain.StatusApproved)
	mustExec(t, st.Db, `UPDATE accounts SET level = 1, week_credit = 200 WHERE id = $1`, acct)

	svc := NewCollectionService(st.Db, newTestSink(), zerolog.Nop())
	svc.now = func() time.Time { return testMonday } // day 31, gate open since day 5

	res, err := svc.Collect(context.Background(), acct, domain.Monthly)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if res.Amount != 50000 {
		t.Errorf("amount: got %d, want the fixed salary 50000", res.Amount)
	}
	if res.PeriodID != "2026-08" {
		t.Errorf("period: got %q, want 2026-08", res.PeriodID)
	}

	// Monthly pays a configured amount; the weekly accrual bucket is not
	// touched.
	if got := testutil.MustAccount(t, st, acct).WeekCredit; got != 200 {
		t.Errorf("week credit: got %d, want 200 untouched", got)
	}
}

func TestCollect_MonthlyRequiresNonZeroLevel(t *testing.T) {
	st := testutil.SetupTestDB(t)
	testutil.SeedThreshold(t, st, domain.LevelThreshold{Level: 0, MinTeam: 0, MonthPayoutDay: 1})

	acct := testutil.CreateAccount(t, st, nil, domain.StatusApproved)

	svc := NewCollectionService(st.Db, newTestSink(), zerolog.Nop())
	svc.now = func() time.Time { return testMonday }

	_, err := svc.Collect(context.Background(), acct, domain.Monthly)
	var inel *domain.IneligibleError
	if !errors.As(err, &inel) || inel.Reason != domain.ReasonNothingToCollect {
		t.Fatalf("got %v, want nothing_to_collect", err)
	}
}

func TestCollect_ConcurrentAttemptsExactlyOneSucceeds(t *testing.T) {
	st := testutil.SetupTestDB(t)
	testutil.SeedThreshold(t, st, domain.LevelThreshold{Level: 1, MinTeam: 3, WeekPayoutDay: 1})

	acct := testutil.CreateAccount(t, st, nil, domain.StatusApproved)
	mustExec(t, st.Db, `UPDATE accounts SET level = 1, week_credit = 500 WHERE id = $1`, acct)

	svc := NewCollectionService(st.Db, newTestSink(), zerolog.Nop())
	svc.now = func() time.Time { return testMonday }

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Collect(context.Background(), acct, domain.Weekly)
		}(i)
	}
	wg.Wait()

	var successes, collisions int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrAlreadyProcessed):
			collisions++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || collisions != 1 {
		t.Fatalf("got %d successes and %d collisions, want exactly 1 and 1", successes, collisions)
	}

	var entries int
	if err := st.Db.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM weekly_payouts WHERE account_id = $1 AND period_id = '2026-W36'`,
		acct).Scan(&entries); err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if entries != 1 {
		t.Fatalf("ledger entries: got %d, want exactly 1", entries)
	}

	after := testutil.MustAccount(t, st, acct)
	if after.Balance != 500 || after.WeekCredit != 0 {
		t.Fatalf("balance %d / week credit %d, want 500 / 0 (exactly one payout)", after.Balance, after.WeekCredit)
	}
}

func TestCollect_MonthlyQuotaCountsApprovals(t *testing.T) {
	st := testutil.SetupTestDB(t)
	testutil.SeedFee(t, st, 100)
	testutil.SeedThreshold(t, st, domain.LevelThreshold{
		Level: 1, MinTeam: 3, Quota: 2, MonthlySalary: 50000, WeekPayoutDay: 1, MonthPayoutDay: 1,
	})

	sponsor := testutil.CreateAccount(t, st, nil, domain.StatusApproved)
	mustExec(t, st.Db, `UPDATE accounts SET level = 1 WHERE id = $1`, sponsor)
	// A prior entry at the same level: the quota binds, the exemption
	// does not.
	mustExec(t, st.Db,
		`INSERT INTO monthly_payouts (account_id, level, amount, period_id) VALUES ($1, 1, 50000, '2026-07')`,
		sponsor)

	approvals := NewApprovalService(st.Db, newTestSink(), zerolog.Nop())
	approvals.now = func() time.Time { return testMonday }
	collections := NewCollectionService(st.Db, newTestSink(), zerolog.Nop())
	collections.now = func() time.Time { return testMonday }

	first := testutil.CreateAccount(t, st, &sponsor, domain.StatusPending)
	if _, err := approvals.OnUserApproved(context.Background(), first); err != nil {
		t.Fatalf("first approval: %v", err)
	}

	_, err := collections.Collect(context.Background(), sponsor, domain.Monthly)
	var inel *domain.IneligibleError
	if !errors.As(err, &inel) || inel.Reason != domain.ReasonQuotaUnmet {
		t.Fatalf("one recruit of two: got %v, want quota_unmet", err)
	}

	second := testutil.CreateAccount(t, st, &sponsor, domain.StatusPending)
	if _, err := approvals.OnUserApproved(context.Background(), second); err != nil {
		t.Fatalf("second approval: %v", err)
	}

	res, err := collections.Collect(context.Background(), sponsor, domain.Monthly)
	if err != nil {
		t.Fatalf("collect with quota met: %v", err)
	}
	if res.Amount != 50000 {
		t.Errorf("amount: got %d, want 50000", res.Amount)
	}
	if res.PeriodID != "2026-08" {
		t.Errorf("period: got %q, want 2026-08", res.PeriodID)
	}
}

func TestStatus_AfterCollectionPointsToNextPeriod(t *testing.T) {
	st := testutil.SetupTestDB(t)
	testutil.SeedThreshold(t, st, domain.LevelThreshold{Level: 1, MinTeam: 3, WeekPayoutDay: 1, MonthPayoutDay: 1})

	acct := testutil.CreateAccount(t, st, nil, domain.StatusApproved)
	mustExec(t, st.Db, `UPDATE accounts SET level = 1, week_credit = 500 WHERE id = $1`, acct)

	svc := NewCollectionService(st.Db, newTestSink(), zerolog.Nop())
	svc.now = func() time.Time { return testMonday }

	if _, err := svc.Collect(context.Background(), acct, domain.Weekly); err != nil {
		t.Fatalf("collect: %v", err)
	}

	snap, err := svc.Status(context.Background(), acct, domain.Weekly)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if snap.Reason != domain.ReasonAlreadyCollected {
		t.Errorf("reason: got %s, want already_collected", snap.Reason)
	}
	nextMonday := testMonday.AddDate(0, 0, 7)
	if snap.NextPayoutDate.YearDay() != nextMonday.YearDay() {
		t.Errorf("next payout: got %s, want %s (a week ahead, not today)",
			snap.NextPayoutDate.Format("2006-01-02"), nextMonday.Format("2006-01-02"))
	}
}

func TestStatus_ReportsQuotaProgress(t *testing.T) {
	st := testutil.SetupTestDB(t)
	testutil.SeedThreshold(t, st, domain.LevelThreshold{Level: 1, MinTeam: 3, Quota: 5, WeekPayoutDay: 1})

	acct := testutil.CreateAccount(t, st, nil, domain.StatusApproved)
	mustExec(t, st.Db, `UPDATE accounts SET level = 1, week_credit = 500 WHERE id = $1`, acct)
	mustExec(t, st.Db,
		`INSERT INTO weekly_payouts (account_id, level, amount, period_id) VALUES ($1, 1, 100, '2026-W35')`,
		acct)
	mustExec(t, st.Db,
		`INSERT INTO period_recruits (account_id, period_id, count) VALUES ($1, '2026-W36', 2)`,
		acct)

	svc := NewCollectionService(st.Db, newTestSink(), zerolog.Nop())
	svc.now = func() time.Time { return testMonday }

	snap, err := svc.Status(context.Background(), acct, domain.Weekly)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if snap.Eligible {
		t.Error("should not be eligible with 2 of 5 recruits")
	}
	if snap.Reason != domain.ReasonQuotaUnmet {
		t.Errorf("reason: got %s, want quota_unmet", snap.Reason)
	}
	if snap.Recruits != 2 || snap.Quota != 5 || snap.RecruitsRemaining != 3 {
		t.Errorf("quota progress: got %d/%d remaining %d, want 2/5 remaining 3",
			snap.Recruits, snap.Quota, snap.RecruitsRemaining)
	}
}
