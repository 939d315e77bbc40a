package vault

import (
	"fmt"
	"sort"
)

const (
	// Day is one day in seconds.
	Day uint64 = 24 * 60 * 60

	// BasisPoints is the denominator of every fraction in a Schedule.
	BasisPoints uint64 = 10_000
)

// Tier is a time-bounded regime, active from From seconds after the last stake
// until the next tier starts.
type Tier struct {
	From        uint64
	WithdrawBps uint64
	TaxBps      uint64
}

// Schedule is an ordered list of tiers starting at zero elapsed time.
type Schedule struct {
	tiers []Tier
}

// DefaultSchedule returns the stock lock schedule with the given tax rates for
// the 4-6 day and 6-8 day tiers.
func DefaultSchedule(tax4dBps, tax6dBps uint64) (Schedule, error) {
	return NewSchedule([]Tier{
		{From: 0, WithdrawBps: 0, TaxBps: BasisPoints},
		{From: 2 * Day, WithdrawBps: 2_500, TaxBps: 7_500},
		{From: 4 * Day, WithdrawBps: 7_500, TaxBps: tax4dBps},
		{From: 6 * Day, WithdrawBps: 7_500, TaxBps: tax6dBps},
		{From: 8 * Day, WithdrawBps: BasisPoints, TaxBps: 0},
	})
}

// MustDefaultSchedule is DefaultSchedule with 50% and 25% intermediate tax.
func MustDefaultSchedule() Schedule {
	s, err := DefaultSchedule(5_000, 2_500)
	if err != nil {
		panic(err)
	}
	return s
}

// NewSchedule validates tiers: the first tier opens at zero and forbids
// withdrawal, caps never shrink, taxes never grow, and the last tier is a
// tax-free full unlock.
func NewSchedule(tiers []Tier) (Schedule, error) {
	if len(tiers) < 2 {
		return Schedule{}, fmt.Errorf("schedule needs at least two tiers")
	}
	sorted := append([]Tier(nil), tiers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].From < sorted[j].From })

	if sorted[0].From != 0 || sorted[0].WithdrawBps != 0 {
		return Schedule{}, fmt.Errorf("first tier must start at zero with withdrawals disabled")
	}
	for i, tier := range sorted {
		if tier.WithdrawBps > BasisPoints || tier.TaxBps > BasisPoints {
			return Schedule{}, fmt.Errorf("tier %d: fraction above %d bps", i, BasisPoints)
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		if tier.From == prev.From {
			return Schedule{}, fmt.Errorf("tier %d: duplicate start %d", i, tier.From)
		}
		if tier.WithdrawBps < prev.WithdrawBps {
			return Schedule{}, fmt.Errorf("tier %d: withdraw cap decreases", i)
		}
		if i > 1 && tier.TaxBps > prev.TaxBps {
			return Schedule{}, fmt.Errorf("tier %d: tax increases", i)
		}
	}
	last := sorted[len(sorted)-1]
	if last.WithdrawBps != BasisPoints || last.TaxBps != 0 {
		return Schedule{}, fmt.Errorf("last tier must unlock everything without tax")
	}
	return Schedule{tiers: sorted}, nil
}

// Tiers returns a copy of the tiers in ascending order.
func (s Schedule) Tiers() []Tier {
	return append([]Tier(nil), s.tiers...)
}

// TierAt returns the tier active after elapsed seconds and its index. A
// boundary belongs to the tier it opens.
func (s Schedule) TierAt(elapsed uint64) (Tier, int) {
	idx := sort.Search(len(s.tiers), func(i int) bool { return s.tiers[i].From > elapsed }) - 1
	if idx < 0 {
		idx = 0
	}
	return s.tiers[idx], idx
}

// Unlock returns the elapsed time at which withdrawals first become possible.
func (s Schedule) Unlock() uint64 {
	for _, tier := range s.tiers {
		if tier.WithdrawBps > 0 {
			return tier.From
		}
	}
	return s.tiers[len(s.tiers)-1].From
}

// nextCapIncrease returns the start of the first later tier with a larger cap.
func (s Schedule) nextCapIncrease(idx int) (uint64, bool) {
	for i := idx + 1; i < len(s.tiers); i++ {
		if s.tiers[i].WithdrawBps > s.tiers[idx].WithdrawBps {
			return s.tiers[i].From, true
		}
	}
	return 0, false
}
