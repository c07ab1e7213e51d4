package domain_test

import (
	"testing"

	"github.com/refnet-platform/walletops/internal/domain"
)

func tiers() []domain.LevelThreshold {
	return []domain.LevelThreshold{
		{Level: 3, MinTeam: 15, Quota: 5},
		{Level: 2, MinTeam: 8, Quota: 3},
		{Level: 1, MinTeam: 3, Quota: 2},
		{Level: 0, MinTeam: 0, Quota: 0},
	}
}

func TestSelectLevel_Thresholds(t *testing.T) {
	tests := []struct {
		teamSize  int
		wantLevel int
	}{
		{0, 0},
		{4, 1},
		{9, 2},
		{20, 3},
	}
	for _, tt := range tests {
		got, _ := domain.SelectLevel(tiers(), 0, tt.teamSize)
		if got != tt.wantLevel {
			t.Errorf("team size %d: got level %d, want %d", tt.teamSize, got, tt.wantLevel)
		}
	}
}

func TestSelectLevel_ExactThreshold(t *testing.T) {
	got, changed := domain.SelectLevel(tiers(), 0, 3)
	if got != 1 || !changed {
		t.Errorf("team size 3 should reach level 1, got %d (changed=%v)", got, changed)
	}
}

func TestSelectLevel_NoChange(t *testing.T) {
	got, changed := domain.SelectLevel(tiers(), 1, 4)
	if got != 1 || changed {
		t.Errorf("level 1 at team 4 should be unchanged, got %d (changed=%v)", got, changed)
	}
}

func TestSelectLevel_NoThresholdMet(t *testing.T) {
	// Without a zero-threshold tier, a small team matches nothing and the
	// level stays as is.
	ths := []domain.LevelThreshold{{Level: 1, MinTeam: 3}}
	got, changed := domain.SelectLevel(ths, 0, 1)
	if got != 0 || changed {
		t.Errorf("got %d (changed=%v), want 0 unchanged", got, changed)
	}
}

func TestSelectLevel_NeverDemotes(t *testing.T) {
	got, changed := domain.SelectLevel(tiers(), 3, 0)
	if got != 3 || changed {
		t.Errorf("level 3 must never drop, got %d (changed=%v)", got, changed)
	}
}

func TestThresholdFor(t *testing.T) {
	th, ok := domain.ThresholdFor(tiers(), 2)
	if !ok || th.Quota != 3 {
		t.Errorf("got %+v (ok=%v), want level 2 quota 3", th, ok)
	}
	if _, ok := domain.ThresholdFor(tiers(), 9); ok {
		t.Error("unknown level must not resolve")
	}
}
