package domain

import (
	"errors"
	"net/http"
)

// Error is a client-facing failure carrying a stable machine-readable code.
// Values below are sentinels: compare with errors.Is.
type Error struct {
	Code    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(status int, code, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// AsError unwraps err into a *Error if one is present in its chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Validation errors
var (
	ErrInvalidBody        = newError(http.StatusBadRequest, "invalid_body", "invalid request body")
	ErrInvalidParticipant = newError(http.StatusBadRequest, "invalid_participant", "participant name is missing or invalid")
	ErrInvalidValue       = newError(http.StatusBadRequest, "invalid_value", "value is not a valid non-negative amount")
	ErrBelowThreshold     = newError(http.StatusBadRequest, "below_threshold", "value must be greater than the buy threshold")
	ErrInvalidTeam        = newError(http.StatusBadRequest, "invalid_team", "team reference does not match any team in this phase")
	ErrInvalidPoints      = newError(http.StatusBadRequest, "invalid_points", "points must be an object or a list of team/points pairs")
	ErrNoGuesses          = newError(http.StatusBadRequest, "no_guesses", "the current round has no guesses")
)

// Round errors
var (
	ErrNoRound     = newError(http.StatusConflict, "no_round", "no round has been opened")
	ErrRoundClosed = newError(http.StatusConflict, "round_closed", "the current round is closed")
)

// Tournament errors
var (
	ErrTournamentInactive      = newError(http.StatusConflict, "tournament_inactive", "no tournament is active")
	ErrTournamentAlreadyActive = newError(http.StatusConflict, "tournament_already_active", "a tournament is already active")
	ErrPhaseNotOpen            = newError(http.StatusConflict, "phase_not_open", "the current phase is not open")
	ErrPhaseDecided            = newError(http.StatusConflict, "phase_decided", "the current phase has already been decided")
	ErrPhaseNotDecided         = newError(http.StatusConflict, "phase_not_decided", "the current phase must be decided first")
	ErrNotAlive                = newError(http.StatusForbidden, "not_alive", "participant is not classified for this phase")
)

// Access errors
var (
	ErrUnauthorized   = newError(http.StatusUnauthorized, "unauthorized", "authentication required")
	ErrInvalidCSRF    = newError(http.StatusForbidden, "invalid_csrf", "missing or mismatched CSRF token")
	ErrPublicDisabled = newError(http.StatusForbidden, "public_disabled", "public access is not configured")
	ErrRateLimited    = newError(http.StatusTooManyRequests, "rate_limited", "too many requests, slow down")
)

// ErrInternal is what clients see for anything not listed above.
var ErrInternal = newError(http.StatusInternalServerError, "internal", "internal server error")
