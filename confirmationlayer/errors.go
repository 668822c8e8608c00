package confirmationlayer

import "errors"

var (
	// ErrChainAlreadyRegistered is returned by RegisterChain for a chain
	// id that was already registered (spec §4.1/§7).
	ErrChainAlreadyRegistered = errors.New("chain already registered")

	// ErrChainNotFound is returned by SubmitTransaction and GetSubBlock
	// for an unregistered chain id (spec §4.1/§7).
	ErrChainNotFound = errors.New("chain not found")

	// ErrInvalidBlockInterval is returned by SetBlockInterval for a
	// non-positive duration (spec §4.1/§7).
	ErrInvalidBlockInterval = errors.New("block interval must be positive")
)
