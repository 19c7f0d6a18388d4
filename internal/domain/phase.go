package domain

import (
	"encoding/json"
	"fmt"
)

// Phase represents the current phase of an election
type Phase string

const (
	PhaseFirstVote   Phase = "FirstVote"   // Everyone votes, round 1
	PhaseFirstTally  Phase = "FirstTally"  // Round 1 results, everyone explains their vote
	PhaseSecondVote  Phase = "SecondVote"  // Everyone votes again, round 2
	PhaseSecondTally Phase = "SecondTally" // Round 2 results
	PhaseSafetyRound Phase = "SafetyRound" // Consent check on the round 2 outcome
)

// phases is the fixed order of an election
var phases = [...]Phase{
	PhaseFirstVote,
	PhaseFirstTally,
	PhaseSecondVote,
	PhaseSecondTally,
	PhaseSafetyRound,
}

// InitialPhase returns the phase every election starts in
func InitialPhase() Phase {
	return PhaseFirstVote
}

// Phases returns all phases in order
func Phases() []Phase {
	out := make([]Phase, len(phases))
	copy(out, phases[:])
	return out
}

// ParsePhase parses a canonical phase name
func ParsePhase(label string) (Phase, error) {
	for _, p := range phases {
		if string(p) == label {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPhase, label)
}

// String returns the string representation of the phase
func (p Phase) String() string {
	return string(p)
}

// Index returns the position of the phase in the election order, or -1
func (p Phase) Index() int {
	for i, q := range phases {
		if q == p {
			return i
		}
	}
	return -1
}

// Next returns the following phase. SafetyRound is terminal.
func (p Phase) Next() Phase {
	switch p {
	case PhaseFirstVote:
		return PhaseFirstTally
	case PhaseFirstTally:
		return PhaseSecondVote
	case PhaseSecondVote:
		return PhaseSecondTally
	case PhaseSecondTally, PhaseSafetyRound:
		return PhaseSafetyRound
	default:
		return p
	}
}

// Prev returns the preceding phase. FirstVote has no predecessor.
func (p Phase) Prev() Phase {
	switch p {
	case PhaseFirstVote, PhaseFirstTally:
		return PhaseFirstVote
	case PhaseSecondVote:
		return PhaseFirstTally
	case PhaseSecondTally:
		return PhaseSecondVote
	case PhaseSafetyRound:
		return PhaseSecondTally
	default:
		return p
	}
}

// IsVoting reports whether ballots are accepted in this phase
func (p Phase) IsVoting() bool {
	return p == PhaseFirstVote || p == PhaseSecondVote
}

// Title returns the display title of the phase
func (p Phase) Title() string {
	switch p {
	case PhaseFirstVote:
		return "First Vote"
	case PhaseFirstTally:
		return "Results of First Vote"
	case PhaseSecondVote:
		return "Second Vote"
	case PhaseSecondTally:
		return "Results of Second Vote"
	case PhaseSafetyRound:
		return "Safety Round"
	default:
		return ""
	}
}

// Description returns the paragraphs shown to participants during the phase
func (p Phase) Description() []string {
	switch p {
	case PhaseFirstVote, PhaseSecondVote:
		return []string{"Please vote for your preferred candidate."}
	case PhaseFirstTally:
		return []string{
			"The results of the first vote are in!",
			"Everyone can now explain their vote.",
		}
	case PhaseSecondTally:
		return []string{"The results of the second vote are in!"}
	case PhaseSafetyRound:
		return []string{"Is this decision safe enough to try?"}
	default:
		return nil
	}
}

// UnmarshalJSON only accepts canonical phase names
func (p *Phase) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	parsed, err := ParsePhase(label)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
