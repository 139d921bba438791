package domain

import "errors"

var (
	ErrAlreadyActive   = errors.New("a poll is already active")
	ErrNoActivePoll    = errors.New("no active poll")
	ErrAlreadyAnswered = errors.New("participant has already answered")
	ErrTimeExpired     = errors.New("voting window has closed")
	ErrInvalidOption   = errors.New("invalid option for this poll")
	ErrUnauthorized    = errors.New("not allowed for this role")
	ErrNotFound        = errors.New("participant not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInternal        = errors.New("internal server error")
)

// ErrorKind returns the stable kind string sent to clients in error events.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyActive):
		return "AlreadyActive"
	case errors.Is(err, ErrNoActivePoll):
		return "NoActivePoll"
	case errors.Is(err, ErrAlreadyAnswered):
		return "AlreadyAnswered"
	case errors.Is(err, ErrTimeExpired):
		return "TimeExpired"
	case errors.Is(err, ErrInvalidOption):
		return "InvalidOption"
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrInvalidInput):
		return "InvalidInput"
	default:
		return "Internal"
	}
}
