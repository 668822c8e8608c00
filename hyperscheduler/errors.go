package hyperscheduler

import "errors"

var (
	// ErrDuplicateProposal is returned when the same chain votes on the
	// same CAT twice (spec §4.4/§7).
	ErrDuplicateProposal = errors.New("duplicate vote from chain for CAT")

	// ErrUnknownConstituent is returned when a vote names a chain that
	// isn't part of the CAT's recorded constituent set.
	ErrUnknownConstituent = errors.New("vote from chain not in CAT's constituent set")
)
