package domain_test

import (
	"testing"

	"github.com/refnet-platform/walletops/internal/domain"
)

// base is a fully eligible input; cases mutate one dimension at a time.
func base() domain.EligibilityInput {
	return domain.EligibilityInput{
		Level:            1,
		LastEntryLevel:   1,
		HasPriorEntry:    true,
		AlreadyCollected: false,
		RecruitCount:     3,
		Quota:            2,
		DayGateOpen:      true,
		Payout:           500,
		LevelConfigured:  true,
	}
}

func TestEvaluate_Eligible(t *testing.T) {
	ok, reason := domain.Evaluate(base())
	if !ok || reason != domain.ReasonEligible {
		t.Fatalf("got (%v, %s), want eligible", ok, reason)
	}
}

func TestEvaluate_AlreadyCollectedWinsOverEverything(t *testing.T) {
	in := base()
	in.AlreadyCollected = true
	ok, reason := domain.Evaluate(in)
	if ok || reason != domain.ReasonAlreadyCollected {
		t.Fatalf("got (%v, %s), want already_collected", ok, reason)
	}
}

func TestEvaluate_DayGateClosed(t *testing.T) {
	in := base()
	in.DayGateOpen = false
	ok, reason := domain.Evaluate(in)
	if ok || reason != domain.ReasonDayNotReached {
		t.Fatalf("got (%v, %s), want day_not_reached", ok, reason)
	}
}

func TestEvaluate_QuotaUnmet(t *testing.T) {
	in := base()
	in.RecruitCount = 1
	ok, reason := domain.Evaluate(in)
	if ok || reason != domain.ReasonQuotaUnmet {
		t.Fatalf("got (%v, %s), want quota_unmet", ok, reason)
	}
}

func TestEvaluate_NewLevelExemptsQuota(t *testing.T) {
	// The level changed since the last collection: quota is waived.
	in := base()
	in.RecruitCount = 0
	in.LastEntryLevel = 0
	ok, reason := domain.Evaluate(in)
	if !ok || reason != domain.ReasonEligible {
		t.Fatalf("got (%v, %s), want eligible via exemption", ok, reason)
	}
}

func TestEvaluate_FirstEverCollectionExemptsQuota(t *testing.T) {
	in := base()
	in.RecruitCount = 0
	in.HasPriorEntry = false
	ok, reason := domain.Evaluate(in)
	if !ok || reason != domain.ReasonEligible {
		t.Fatalf("got (%v, %s), want eligible via exemption", ok, reason)
	}
}

func TestEvaluate_ExemptionDoesNotBypassDayGate(t *testing.T) {
	in := base()
	in.RecruitCount = 0
	in.HasPriorEntry = false
	in.DayGateOpen = false
	ok, reason := domain.Evaluate(in)
	if ok || reason != domain.ReasonDayNotReached {
		t.Fatalf("got (%v, %s), want day_not_reached", ok, reason)
	}
}

func TestEvaluate_ExemptionDoesNotBypassPeriodGate(t *testing.T) {
	in := base()
	in.RecruitCount = 0
	in.LastEntryLevel = 0
	in.AlreadyCollected = true
	ok, reason := domain.Evaluate(in)
	if ok || reason != domain.ReasonAlreadyCollected {
		t.Fatalf("got (%v, %s), want already_collected", ok, reason)
	}
}

func TestEvaluate_NothingToCollect(t *testing.T) {
	in := base()
	in.Payout = 0
	ok, reason := domain.Evaluate(in)
	if ok || reason != domain.ReasonNothingToCollect {
		t.Fatalf("got (%v, %s), want nothing_to_collect", ok, reason)
	}

	in = base()
	in.LevelConfigured = false
	ok, reason = domain.Evaluate(in)
	if ok || reason != domain.ReasonNothingToCollect {
		t.Fatalf("got (%v, %s), want nothing_to_collect", ok, reason)
	}
}

func TestQuotaExempt(t *testing.T) {
	in := base()
	if in.QuotaExempt() {
		t.Error("same level with a prior entry is not exempt")
	}
	in.LastEntryLevel = 0
	if !in.QuotaExempt() {
		t.Error("changed level is exempt")
	}
	in = base()
	in.HasPriorEntry = false
	if !in.QuotaExempt() {
		t.Error("first collection ever is exempt")
	}
}
