package domain

// MaxDepth caps the upline walk. An upline chain is acyclic by
// construction, but the cap bounds the walk against malformed graphs.
const MaxDepth = 7

// BpDenominator converts basis points to amounts: 1000 bp = 10%.
const BpDenominator = 10000

// Bonus is the per-ancestor breakdown of one joining fee at one depth.
type Bonus struct {
	Direct   int64 // credited to spendable balance
	Indirect int64 // credited to the locked wallet
	Week     int64 // accrues toward the next weekly payout
	Web      int64 // accrues in the web lock bucket
}

// Total is the amount added to the ancestor's lifetime earnings.
func (b Bonus) Total() int64 {
	return b.Direct + b.Indirect + b.Week + b.Web
}

// ComputeBonus applies a depth rate against the joining fee. Integer
// basis-point math, truncating toward zero.
func ComputeBonus(rate CommissionRate, joiningFee int64) Bonus {
	return Bonus{
		Direct:   joiningFee * rate.DirectBp / BpDenominator,
		Indirect: joiningFee * rate.IndirectBp / BpDenominator,
		Week:     joiningFee * rate.WeekBp / BpDenominator,
		Web:      joiningFee * rate.WebBp / BpDenominator,
	}
}

// ValidateRate rejects malformed rate rows before they reach the walk.
func ValidateRate(rate CommissionRate) error {
	if rate.Depth < 0 || rate.Depth >= MaxDepth {
		return InvariantErr("commission rate depth %d out of range [0,%d)", rate.Depth, MaxDepth)
	}
	if rate.DirectBp < 0 || rate.IndirectBp < 0 || rate.WeekBp < 0 || rate.WebBp < 0 {
		return InvariantErr("negative rate at depth %d", rate.Depth)
	}
	return nil
}
