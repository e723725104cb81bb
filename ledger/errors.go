package ledger

import "errors"

// Errors returned by the survey operations. A failed operation never
// changes the survey state.
var (
	ErrNotOwner            = errors.New("caller is not the survey owner")
	ErrAlreadyConfigured   = errors.New("survey already configured")
	ErrTooFewOptions       = errors.New("a survey needs at least two options")
	ErrTooManyOptions      = errors.New("too many survey options")
	ErrSurveyNotConfigured = errors.New("survey not configured")
	ErrSurveyClosed        = errors.New("survey closed")
	ErrAlreadyVoted        = errors.New("voter already submitted a vote")
	ErrInvalidOption       = errors.New("invalid option index")
	ErrInvalidProof        = errors.New("invalid input proof")
	ErrAlreadyFinalized    = errors.New("survey already finalized")
	ErrSurveyNotFound      = errors.New("survey not found")
)
