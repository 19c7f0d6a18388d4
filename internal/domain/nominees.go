package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Nominee is a candidate for the elected role
type Nominee struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// Nominees maps nominee ids to display names. Ids are dense, starting at 0,
// and never change after creation.
type Nominees struct {
	names []string // index is the nominee id
}

// NewNominees normalizes raw names: blank entries are dropped, the rest are
// sorted and deduplicated, then numbered in sorted order.
func NewNominees(raw []string) Nominees {
	names := make([]string, 0, len(raw))
	for _, n := range raw {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		names = append(names, n)
	}
	slices.Sort(names)
	return Nominees{names: slices.Compact(names)}
}

// Len returns the number of nominees
func (n Nominees) Len() int {
	return len(n.names)
}

// Has reports whether the id belongs to a nominee
func (n Nominees) Has(id uint64) bool {
	return id < uint64(len(n.names))
}

// Label returns the display name of a nominee
func (n Nominees) Label(id uint64) (string, error) {
	if !n.Has(id) {
		return "", fmt.Errorf("%w: %d", ErrUnknownNominee, id)
	}
	return n.names[id], nil
}

// Sorted returns all nominees ordered by id
func (n Nominees) Sorted() []Nominee {
	out := make([]Nominee, len(n.names))
	for i, name := range n.names {
		out[i] = Nominee{ID: uint64(i), Name: name}
	}
	return out
}
