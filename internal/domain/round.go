package domain

import (
	"maps"
	"slices"
)

// Round holds the ballots of one voting round: voter name -> nominee id.
// A voter that votes again replaces their earlier ballot.
type Round map[string]uint64

// NewRound creates an empty round
func NewRound() Round {
	return make(Round)
}

// Put records a ballot, replacing any earlier ballot of the same voter
func (r Round) Put(voter string, nomineeID uint64) {
	r[voter] = nomineeID
}

// Clear removes all ballots
func (r Round) Clear() {
	clear(r)
}

// Voters returns the names of everyone who voted, in ascending order
func (r Round) Voters() []string {
	return slices.Sorted(maps.Keys(r))
}

// Clone returns an independent copy of the round
func (r Round) Clone() Round {
	return maps.Clone(r)
}
