package services

import (
	"errors"

	"github.com/Dosada05/tournament-divisions/brackets"
	"github.com/Dosada05/tournament-divisions/divisions"
	"github.com/Dosada05/tournament-divisions/repositories"
)

// Errors used across services and for HTTP mapping. Engine and repository
// sentinels are re-exported so callers only depend on this package.
var (
	ErrNotFound         = errors.New("requested resource not found")
	ErrValidationFailed = errors.New("validation failed")

	ErrDivisionNotFound      = repositories.ErrDivisionNotFound
	ErrMatchNotFound         = repositories.ErrMatchNotFound
	ErrDivisionNameConflict  = repositories.ErrDivisionNameConflict
	ErrMatchPositionConflict = repositories.ErrMatchPositionConflict

	ErrInvalidRuleTable         = divisions.ErrInvalidRuleTable
	ErrInsufficientParticipants = brackets.ErrInsufficientParticipants
	ErrPreconditionViolation    = brackets.ErrPreconditionViolation
	ErrResultConflict           = brackets.ErrResultConflict
)
