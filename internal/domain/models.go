package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
)

// Withdrawal request statuses.
const (
	WithdrawalPending  = "pending"
	WithdrawalApproved = "approved"
	WithdrawalRejected = "rejected"
)

// Account is a member's wallet row. All amounts are int64 minor units.
type Account struct {
	ID               int64     `json:"id"`
	UplineID         *int64    `json:"upline_id,omitempty"`
	Status           string    `json:"status"`
	Balance          int64     `json:"balance"`
	LockedWallet     int64     `json:"locked_wallet"`
	WebWallet        int64     `json:"web_wallet"`
	AllCreditsEarned int64     `json:"all_credits_earned"`
	WeekCredit       int64     `json:"week_credit"`
	MonthCredit      int64     `json:"month_credit"`
	Level            int       `json:"level"`
	TeamSize         int       `json:"team_size"`
	TotalWithdrawn   int64     `json:"total_withdrawn"`
	WithdrawalCount  int       `json:"withdrawal_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// CommissionRate holds the four bonus components for one referral depth.
// Rates are basis points (1000 = 10%) applied against the joining fee.
type CommissionRate struct {
	Depth      int   `json:"depth"`
	DirectBp   int64 `json:"direct_bp"`
	IndirectBp int64 `json:"indirect_bp"`
	WeekBp     int64 `json:"week_bp"`
	WebBp      int64 `json:"web_bp"`
}

// LevelThreshold configures one tier: the team size that earns it, the
// recruitment quota for periodic payouts, the monthly salary, and the
// payout days for both period variants.
type LevelThreshold struct {
	Level          int   `json:"level"`
	MinTeam        int   `json:"min_team"`
	Quota          int   `json:"quota"`
	MonthlySalary  int64 `json:"monthly_salary"`
	WeekPayoutDay  int   `json:"week_payout_day"`  // 0=Sunday .. 6=Saturday
	MonthPayoutDay int   `json:"month_payout_day"` // 1..31
}

// PayoutEntry is one append-only payout ledger row. The unique
// (account, period) pair is the source of truth for "already collected".
type PayoutEntry struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	Level     int       `json:"level"`
	Amount    int64     `json:"amount"`
	PeriodID  string    `json:"period_id"`
	CreatedAt time.Time `json:"created_at"`
}

// WithdrawalRequest is an admin-settled payout request.
type WithdrawalRequest struct {
	ID          int64      `json:"id"`
	Reference   uuid.UUID  `json:"reference"`
	AccountID   int64      `json:"account_id"`
	Amount      int64      `json:"amount"`
	Fee         int64      `json:"fee"`
	Address     string     `json:"address"`
	Chain       string     `json:"chain"`
	Status      string     `json:"status"`
	ReviewedBy  string     `json:"reviewed_by,omitempty"`
	ReviewNote  string     `json:"review_note,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// Notification kinds emitted by the engines.
const (
	NotifyTeamJoin           = "team_join"
	NotifyPromotion          = "promotion"
	NotifyQuotaMet           = "quota_met"
	NotifyPayout             = "payout"
	NotifyWithdrawalApproved = "withdrawal_approved"
	NotifyWithdrawalRejected = "withdrawal_rejected"
)

// Notification is a fire-and-forget message to an account.
type Notification struct {
	ID        int64     `json:"id,omitempty"`
	EventID   uuid.UUID `json:"event_id"`
	AccountID int64     `json:"account_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
