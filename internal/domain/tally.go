package domain

import (
	"cmp"
	"slices"
)

// Tally is the accumulated result of a round, most votes first
type Tally []Result

// Accumulate counts the ballots of a round per nominee. Results are ordered
// by count, descending; equal counts are ordered by name, descending.
func Accumulate(round Round, nominees Nominees) (Tally, error) {
	counts := make(map[uint64]int)
	for _, id := range round {
		counts[id]++
	}

	tally := make(Tally, 0, len(counts))
	for id, count := range counts {
		if count <= 0 {
			continue
		}
		name, err := nominees.Label(id)
		if err != nil {
			return nil, err
		}
		tally = append(tally, Result{Name: name, Count: count})
	}

	slices.SortFunc(tally, func(a, b Result) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(b.Name, a.Name)
	})

	return tally, nil
}

// MaxCount returns the highest count, or 1 for an empty tally so it can be
// used as a divisor.
func (t Tally) MaxCount() int {
	if len(t) == 0 {
		return 1
	}
	highest := t[0].Count
	for _, r := range t[1:] {
		highest = max(highest, r.Count)
	}
	return highest
}

// Winners returns every nominee sharing the highest count, in tally order.
// Ties are reported, not resolved.
func (t Tally) Winners() []string {
	highest := t.MaxCount()
	winners := make([]string, 0, 1)
	for _, r := range t {
		if r.Count == highest {
			winners = append(winners, r.Name)
		}
	}
	return winners
}
