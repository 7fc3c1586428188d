package engine

import "errors"

// Error categories. Every error returned by the engine wraps exactly one of
// these, so callers can decide between re-prompting and treating it as a bug.
var (
	// ErrPrecondition marks a caller defect: the operation was invoked in a
	// state where it can never succeed.
	ErrPrecondition = errors.New("precondition violated")
	// ErrRejected marks an expected, recoverable rejection of a player choice.
	// State is untouched and the choice may be retried.
	ErrRejected = errors.New("choice rejected")
	// ErrConfig marks malformed static definitions.
	ErrConfig = errors.New("invalid configuration")
)

var (
	ErrIllegalPlacement    = errors.New("illegal placement")
	ErrPatchNotInMarket    = errors.New("patch not in market")
	ErrNegativeAdvance     = errors.New("marker cannot move backwards")
	ErrWrongPhase          = errors.New("action not allowed in current phase")
	ErrGameOver            = errors.New("game is already over")
	ErrChoiceOutOfRange    = errors.New("choice out of range")
	ErrInsufficientFunds   = errors.New("not enough buttons")
	ErrPatchMismatch       = errors.New("placement does not use the chosen patch")
	ErrMalformedDefinition = errors.New("malformed definition")
	ErrBadMask             = errors.New("bad patch mask")
	ErrUnknownBonus        = errors.New("unknown bonus")
)
