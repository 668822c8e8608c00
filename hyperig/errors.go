package hyperig

import "errors"

var (
	// ErrWrongChainId is returned (fatally, for that subblock) when a
	// HIG is handed a subblock addressed to a different chain: it
	// signals a routing bug upstream (spec §4.2/§7).
	ErrWrongChainId = errors.New("subblock addressed to wrong chain")

	// ErrCATTimeoutContradiction is the fatal contract violation of spec
	// §4.2/§7/§9: a Success status update arrived for a CAT this HIG had
	// already locally timed out to Failure. The spec's own Open Question
	// says this may be surfaced as a structured fatal error rather than
	// a process panic; that is what this package does.
	ErrCATTimeoutContradiction = errors.New("success status update contradicts locally timed-out CAT")

	// errTransactionNotFound is an internal lookup failure, not one of
	// spec §7's named kinds; it is wrapped into context at the call site.
	errTransactionNotFound = errors.New("transaction not found")
)
