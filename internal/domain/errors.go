package domain

import "errors"

// Domain errors
var (
	ErrElectionNotFound   = errors.New("election not found")
	ErrPhaseConflict      = errors.New("election has moved to another phase")
	ErrUnknownPhase       = errors.New("unknown phase")
	ErrInvalidDirection   = errors.New("invalid step direction")
	ErrUnknownNominee     = errors.New("unknown nominee")
	ErrNoNominees         = errors.New("election needs at least one nominee")
	ErrEmptyVoterName     = errors.New("voter name cannot be empty")
	ErrRegistryFull       = errors.New("no room for another election")
	ErrSubscriptionClosed = errors.New("subscription closed")
)
