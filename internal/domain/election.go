package domain

import "time"

// Election is one decision process: two voting rounds walked through a fixed
// sequence of phases. It is not safe for concurrent use; the hub serializes
// access to it.
type Election struct {
	id          string
	electedRole string
	phase       Phase
	nominees    Nominees
	firstRound  Round
	secondRound Round
	createdAt   time.Time
}

// NewElection creates an election in the first vote phase with empty rounds
func NewElection(id, electedRole string, rawNominees []string) *Election {
	return &Election{
		id:          id,
		electedRole: electedRole,
		phase:       InitialPhase(),
		nominees:    NewNominees(rawNominees),
		firstRound:  NewRound(),
		secondRound: NewRound(),
		createdAt:   time.Now(),
	}
}

func (e *Election) ID() string           { return e.id }
func (e *Election) ElectedRole() string  { return e.electedRole }
func (e *Election) Phase() Phase         { return e.phase }
func (e *Election) Nominees() Nominees   { return e.nominees }
func (e *Election) CreatedAt() time.Time { return e.createdAt }

// CurrentRoundFor returns which round a phase reads and writes: round 1 for
// the first vote and its tally, round 2 for everything after.
func (e *Election) CurrentRoundFor(p Phase) Round {
	switch p {
	case PhaseFirstVote, PhaseFirstTally:
		return e.firstRound
	default:
		return e.secondRound
	}
}

// CurrentRound returns the round of the current phase
func (e *Election) CurrentRound() Round {
	return e.CurrentRoundFor(e.phase)
}

// CastVote records a ballot in the current round. Outside a vote phase the
// ballot is dropped; the return value reports whether it was recorded.
func (e *Election) CastVote(voter string, nomineeID uint64) bool {
	if !e.phase.IsVoting() {
		return false
	}
	e.CurrentRound().Put(voter, nomineeID)
	return true
}

// Advance moves to the next phase
func (e *Election) Advance() {
	e.phase = e.phase.Next()
}

// Rewind moves to the previous phase
func (e *Election) Rewind() {
	e.phase = e.phase.Prev()
}

// ResetCurrentRound clears the ballots of the current vote phase. It does
// nothing in a tally phase or the safety round.
func (e *Election) ResetCurrentRound() {
	if e.phase.IsVoting() {
		e.CurrentRound().Clear()
	}
}

// Step applies a transition in the given direction
func (e *Election) Step(d Direction) error {
	switch d {
	case DirectionNext:
		e.Advance()
	case DirectionPrev:
		e.Rewind()
	case DirectionReset:
		e.ResetCurrentRound()
	default:
		return ErrInvalidDirection
	}
	return nil
}

// Tally accumulates the ballots of the current round
func (e *Election) Tally() (Tally, error) {
	return Accumulate(e.CurrentRound(), e.nominees)
}

// Voters returns who has voted in the current round, in ascending order
func (e *Election) Voters() []string {
	return e.CurrentRound().Voters()
}

// VoteCount returns the number of ballots in the current round. The safety
// round reports zero: nobody votes there.
func (e *Election) VoteCount() int {
	if e.phase == PhaseSafetyRound {
		return 0
	}
	return len(e.CurrentRound())
}

// SortedNominees returns all nominees ordered by id
func (e *Election) SortedNominees() []Nominee {
	return e.nominees.Sorted()
}

// Snapshot captures the state shown to participants. Results stay hidden
// while the current round is open.
func (e *Election) Snapshot() (*Snapshot, error) {
	view := TallyView{
		Revealed:  !e.phase.IsVoting(),
		VoteCount: e.VoteCount(),
		Voters:    e.Voters(),
		Results:   []Result{},
		MaxCount:  1,
		Winners:   []string{},
	}

	if view.Revealed {
		tally, err := e.Tally()
		if err != nil {
			return nil, err
		}
		view.Results = tally
		view.MaxCount = tally.MaxCount()
		view.Winners = tally.Winners()
	}

	return &Snapshot{
		ID:               e.id,
		ElectedRole:      e.electedRole,
		Phase:            e.phase,
		PhaseTitle:       e.phase.Title(),
		PhaseDescription: e.phase.Description(),
		Nominees:         e.SortedNominees(),
		Tally:            view,
		CreatedAt:        e.createdAt,
	}, nil
}

// Snapshot is a read-only copy of an election's visible state
type Snapshot struct {
	ID               string    `json:"id"`
	ElectedRole      string    `json:"electedRole"`
	Phase            Phase     `json:"phase"`
	PhaseTitle       string    `json:"phaseTitle"`
	PhaseDescription []string  `json:"phaseDescription"`
	Nominees         []Nominee `json:"nominees"`
	Tally            TallyView `json:"tally"`
	CreatedAt        time.Time `json:"createdAt"`
}
