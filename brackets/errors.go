package brackets

import "errors"

var (
	ErrInsufficientParticipants = errors.New("insufficient participants for a bracket (minimum 2)")
	ErrPreconditionViolation    = errors.New("match result precondition violated")
	ErrResultConflict           = errors.New("match already has a different recorded winner")
	ErrMatchOutsideBracket      = errors.New("match position is outside the bracket layout")
)
