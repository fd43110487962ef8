package quorum

import "errors"

var (
	// ErrPollNotFound is returned when no pending poll exists under the id.
	ErrPollNotFound = errors.New("poll not found")
	// ErrAlreadyVoted is returned when a voter repeats the same vote.
	ErrAlreadyVoted = errors.New("already voted")
	// ErrNotVoted is returned when retracting a vote that was never cast.
	ErrNotVoted = errors.New("no vote to retract")
	// ErrForbidden is returned when a voter lacks the force privilege.
	ErrForbidden = errors.New("force override not permitted")
	// ErrInvalidTarget is returned when an edit or view target is missing or escapes its folder.
	ErrInvalidTarget = errors.New("invalid file target")
	// ErrTokenNotActive is returned when a token is unknown, consumed or of the wrong type.
	ErrTokenNotActive = errors.New("token is not active")
	// ErrInvalidRequest is returned for malformed requests.
	ErrInvalidRequest = errors.New("invalid request")
)
