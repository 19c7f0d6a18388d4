package domain

import "fmt"

// Direction is a requested phase transition
type Direction string

const (
	DirectionNext  Direction = "next"
	DirectionPrev  Direction = "prev"
	DirectionReset Direction = "reset" // Clear the ballots of the current vote phase
)

// ParseDirection parses a step direction
func ParseDirection(label string) (Direction, error) {
	switch d := Direction(label); d {
	case DirectionNext, DirectionPrev, DirectionReset:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, label)
	}
}

// String returns the string representation of the direction
func (d Direction) String() string {
	return string(d)
}
