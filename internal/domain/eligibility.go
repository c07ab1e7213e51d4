package domain

import "time"

// EligibilityInput is the state the collection predicate runs over. The
// service fills it twice: once read-only for status queries and once more
// under the account row lock before mutating anything — the second read is
// the one that counts.
type EligibilityInput struct {
	Level            int
	LastEntryLevel   int  // level stamped on the most recent ledger entry
	HasPriorEntry    bool // false when the account has never collected
	AlreadyCollected bool // an entry exists for the current period
	RecruitCount     int  // new approved downline this period
	Quota            int  // the level's recruitment quota
	DayGateOpen      bool
	Payout           int64 // weekly: accrual bucket; monthly: level salary
	LevelConfigured  bool  // a threshold row exists for the level
}

// EligibilitySnapshot is the evaluation result, shaped for the caller UI:
// the reason is specific, never generic, and the quota numbers let the
// caller render remaining-recruits-needed.
type EligibilitySnapshot struct {
	Eligible          bool      `json:"eligible"`
	Reason            Reason    `json:"reason"`
	PeriodID          string    `json:"period_id"`
	Amount            int64     `json:"amount"`
	Quota             int       `json:"quota"`
	Recruits          int       `json:"recruits"`
	RecruitsRemaining int       `json:"recruits_remaining"`
	QuotaExempt       bool      `json:"quota_exempt"`
	NextPayoutDate    time.Time `json:"next_payout_date"`
	Level             int       `json:"level"`
}

// QuotaExempt reports the first-collection-at-a-new-level exemption: the
// quota is waived when the current level differs from the level on the
// latest ledger entry, or when no entry exists yet. The exemption waives
// the quota only, never the day or period gates.
func (in EligibilityInput) QuotaExempt() bool {
	return !in.HasPriorEntry || in.LastEntryLevel != in.Level
}

// Evaluate runs the collection predicate. Check order matches the reasons
// callers must see: already collected, then the day gate, then the quota,
// then whether anything is payable.
func Evaluate(in EligibilityInput) (bool, Reason) {
	if in.AlreadyCollected {
		return false, ReasonAlreadyCollected
	}
	if !in.DayGateOpen {
		return false, ReasonDayNotReached
	}
	if !in.QuotaExempt() && in.RecruitCount < in.Quota {
		return false, ReasonQuotaUnmet
	}
	if !in.LevelConfigured || in.Payout <= 0 {
		return false, ReasonNothingToCollect
	}
	return true, ReasonEligible
}
