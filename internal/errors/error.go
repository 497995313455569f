package errors

import "github.com/pkg/errors"

var (
	// common errors
	ErrUserIdRequired    = errors.New("userId is required")
	ErrInvalidInput      = errors.New("invalid input parameters")
	ErrConnectionTimeout = errors.New("connection timeout")

	// error taxonomy of the correlation engine
	ErrTransientIO             = errors.New("transient io failure")
	ErrClassificationAmbiguous = errors.New("message matches no tracking signal")
	ErrAttributionMiss         = errors.New("no sent email matches recipient")
	ErrConfigMissing           = errors.New("no mailbox credentials configured")

	// ledger errors
	ErrSendNotFound = errors.New("sent email not found")

	// poller errors
	ErrParseMessage = errors.New("failed to parse message")
)

// Transient marks err as retryable on the next tick.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{cause: err}
}

type transientError struct {
	cause error
}

func (e *transientError) Error() string {
	return e.cause.Error()
}

func (e *transientError) Unwrap() error {
	return e.cause
}

func (e *transientError) Is(target error) bool {
	return target == ErrTransientIO
}
