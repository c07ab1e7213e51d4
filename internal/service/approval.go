package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/refnet-platform/walletops/internal/domain"
	"github.com/refnet-platform/walletops/internal/notify"
	"github.com/refnet-platform/walletops/internal/observability"
)

// ApprovalService runs the approval workflow's ledger side: upline
// commission propagation, sponsor level promotion, and the recruitment
// counter upsert, all inside one transaction.
type ApprovalService struct {
	db     *pgxpool.Pool
	sink   notify.Sink
	logger zerolog.Logger
	now    func() time.Time
}

func NewApprovalService(db *pgxpool.Pool, sink notify.Sink, logger zerolog.Logger) *ApprovalService {
	return &ApprovalService{db: db, sink: sink, logger: logger, now: time.Now}
}

// ApprovalResult summarizes the committed approval.
type ApprovalResult struct {
	AccountID       int64  `json:"account_id"`
	SponsorID       *int64 `json:"sponsor_id,omitempty"`
	AncestorsPaid   int    `json:"ancestors_paid"`
	TotalCommission int64  `json:"total_commission"`
	SponsorLevel    int    `json:"sponsor_level"`
	SponsorTeamSize int    `json:"sponsor_team_size"`
}

// OnUserApproved transitions the account to approved and cascades the
// effects up the referral chain. The pending-to-approved flip doubles as
// the once-per-approval guard: a second call returns ErrAlreadyProcessed
// and touches nothing.
func (s *ApprovalService) OnUserApproved(ctx context.Context, accountID int64) (*ApprovalResult, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("%w: tx begin: %v", domain.ErrTransient, err)
	}
	defer tx.Rollback(ctx)

	var uplineID *int64
	err = tx.QueryRow(ctx,
		`UPDATE accounts SET status = $1 WHERE id = $2 AND status = $3 RETURNING upline_id`,
		domain.StatusApproved, accountID, domain.StatusPending).Scan(&uplineID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.approvalConflict(ctx, tx, accountID)
		}
		return nil, classify(err)
	}

	fee, err := s.joiningFee(ctx, tx)
	if err != nil {
		return nil, err
	}

	result := &ApprovalResult{AccountID: accountID, SponsorID: uplineID}
	var pending []domain.Notification

	total, paid, err := s.propagate(ctx, tx, uplineID, fee)
	if err != nil {
		return nil, err
	}
	result.TotalCommission = total
	result.AncestorsPaid = paid

	if uplineID != nil {
		ns, err := s.promoteSponsor(ctx, tx, *uplineID, result)
		if err != nil {
			return nil, err
		}
		pending = append(pending, ns...)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: tx commit: %v", domain.ErrTransient, classify(err))
	}

	for _, n := range pending {
		s.sink.Publish(ctx, n)
	}

	s.logger.Info().
		Int64("account_id", accountID).
		Int("ancestors_paid", paid).
		Int64("total_commission", total).
		Msg("approval processed")
	return result, nil
}

// propagate walks the upline chain, crediting each ancestor by its depth
// rate. Ancestor locks are taken one at a time in increasing depth order
// and the walk stops at the root or at the depth cap, whichever is first.
func (s *ApprovalService) propagate(ctx context.Context, tx pgx.Tx, uplineID *int64, fee int64) (int64, int, error) {
	var total int64
	paid := 0

	parent := uplineID
	for depth := 0; parent != nil && depth < domain.MaxDepth; depth++ {
		var nextParent *int64
		err := tx.QueryRow(ctx,
			`SELECT upline_id FROM accounts WHERE id = $1 FOR UPDATE`, *parent).Scan(&nextParent)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, 0, domain.InvariantErr("upline %d missing at depth %d", *parent, depth)
			}
			return 0, 0, classify(err)
		}

		rate, err := s.rateForDepth(ctx, tx, depth)
		if err != nil {
			return 0, 0, err
		}

		bonus := domain.ComputeBonus(rate, fee)
		if bonus.Total() > 0 {
			_, err = tx.Exec(ctx,
				`UPDATE accounts SET
					balance = balance + $1,
					locked_wallet = locked_wallet + $2,
					web_wallet = web_wallet + $3,
					week_credit = week_credit + $4,
					all_credits_earned = all_credits_earned + $5
				 WHERE id = $6`,
				bonus.Direct, bonus.Indirect, bonus.Web, bonus.Week, bonus.Total(), *parent)
			if err != nil {
				return 0, 0, classify(err)
			}
			observability.CommissionsCredited.WithLabelValues(strconv.Itoa(depth)).Inc()
			observability.CommissionAmount.Add(float64(bonus.Total()))
			total += bonus.Total()
		}

		paid++
		parent = nextParent
	}
	return total, paid, nil
}

// promoteSponsor recomputes the direct sponsor's team size and level,
// upserts the weekly recruitment counter, and queues the resulting
// notifications. The sponsor row is already locked: it is the depth-0
// ancestor of the walk.
func (s *ApprovalService) promoteSponsor(ctx context.Context, tx pgx.Tx, sponsorID int64, result *ApprovalResult) ([]domain.Notification, error) {
	var teamSize, curLevel int
	err := tx.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM accounts WHERE upline_id = $1 AND status = $2), level
		 FROM accounts WHERE id = $1`,
		sponsorID, domain.StatusApproved).Scan(&teamSize, &curLevel)
	if err != nil {
		return nil, classify(err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET team_size = $1 WHERE id = $2`, teamSize, sponsorID); err != nil {
		return nil, classify(err)
	}

	thresholds, err := s.thresholds(ctx, tx)
	if err != nil {
		return nil, err
	}

	var pending []domain.Notification

	candidate, changed := domain.SelectLevel(thresholds, curLevel, teamSize)
	if changed {
		if _, err := tx.Exec(ctx,
			`UPDATE accounts SET level = $1 WHERE id = $2`, candidate, sponsorID); err != nil {
			return nil, classify(err)
		}
		if candidate > curLevel {
			observability.Promotions.Inc()
			n, err := insertNotification(ctx, tx, sponsorID, domain.NotifyPromotion,
				fmt.Sprintf("Congratulations, you reached level %d", candidate))
			if err != nil {
				return nil, classify(err)
			}
			pending = append(pending, n)
		}
	}
	newLevel := candidate

	// One recruit feeds both counters: the weekly and monthly engines
	// read the same table under their own period keys.
	now := s.now()
	recruits, err := s.bumpRecruits(ctx, tx, sponsorID, domain.WeekPeriodID(now))
	if err != nil {
		return nil, err
	}
	if _, err := s.bumpRecruits(ctx, tx, sponsorID, domain.MonthPeriodID(now)); err != nil {
		return nil, err
	}

	// Quota is evaluated against the level that just took effect.
	if th, ok := domain.ThresholdFor(thresholds, newLevel); ok && th.Quota > 0 && recruits >= th.Quota {
		n, err := insertNotification(ctx, tx, sponsorID, domain.NotifyQuotaMet,
			fmt.Sprintf("Weekly recruitment quota met: %d of %d", recruits, th.Quota))
		if err != nil {
			return nil, classify(err)
		}
		pending = append(pending, n)
	}

	n, err := insertNotification(ctx, tx, sponsorID, domain.NotifyTeamJoin,
		fmt.Sprintf("A new member joined your team (account %d)", result.AccountID))
	if err != nil {
		return nil, classify(err)
	}
	pending = append(pending, n)

	result.SponsorLevel = newLevel
	result.SponsorTeamSize = teamSize
	return pending, nil
}

func (s *ApprovalService) bumpRecruits(ctx context.Context, tx pgx.Tx, accountID int64, periodID string) (int, error) {
	var count int
	err := tx.QueryRow(ctx,
		`INSERT INTO period_recruits (account_id, period_id, count) VALUES ($1, $2, 1)
		 ON CONFLICT (account_id, period_id) DO UPDATE SET count = period_recruits.count + 1
		 RETURNING count`,
		accountID, periodID).Scan(&count)
	if err != nil {
		return 0, classify(err)
	}
	return count, nil
}

func (s *ApprovalService) rateForDepth(ctx context.Context, tx pgx.Tx, depth int) (domain.CommissionRate, error) {
	rate := domain.CommissionRate{Depth: depth}
	err := tx.QueryRow(ctx,
		`SELECT direct_bp, indirect_bp, week_bp, web_bp FROM commission_rates WHERE depth = $1`,
		depth).Scan(&rate.DirectBp, &rate.IndirectBp, &rate.WeekBp, &rate.WebBp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Unconfigured depth pays nothing; the walk continues.
			return domain.CommissionRate{Depth: depth}, nil
		}
		return rate, classify(err)
	}
	if err := domain.ValidateRate(rate); err != nil {
		return rate, err
	}
	return rate, nil
}

func (s *ApprovalService) thresholds(ctx context.Context, tx pgx.Tx) ([]domain.LevelThreshold, error) {
	rows, err := tx.Query(ctx,
		`SELECT level, min_team, quota, monthly_salary, week_payout_day, month_payout_day
		 FROM level_thresholds ORDER BY min_team DESC`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []domain.LevelThreshold
	for rows.Next() {
		var th domain.LevelThreshold
		if err := rows.Scan(&th.Level, &th.MinTeam, &th.Quota, &th.MonthlySalary,
			&th.WeekPayoutDay, &th.MonthPayoutDay); err != nil {
			return nil, classify(err)
		}
		out = append(out, th)
	}
	return out, rows.Err()
}

func (s *ApprovalService) joiningFee(ctx context.Context, tx pgx.Tx) (int64, error) {
	var fee int64
	err := tx.QueryRow(ctx, `SELECT value FROM settings WHERE key = 'joining_fee'`).Scan(&fee)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.InvariantErr("joining fee not configured")
		}
		return 0, classify(err)
	}
	if fee < 0 {
		return 0, domain.InvariantErr("negative joining fee %d", fee)
	}
	return fee, nil
}

func (s *ApprovalService) approvalConflict(ctx context.Context, tx pgx.Tx, accountID int64) error {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM accounts WHERE id = $1`, accountID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return classify(err)
	}
	return domain.ErrAlreadyProcessed
}
