package signing

import (
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrAuthorization = errors.New("not authorized")
	ErrInvalidState  = errors.New("invalid state")
	ErrNotFound      = errors.New("not found")
	ErrPersistence   = errors.New("persistence failure")
	ErrNotification  = errors.New("notification failed")

	// ErrNoMarks is returned when a completed document has nothing to flatten.
	ErrNoMarks = fmt.Errorf("%w: no signatures to flatten", ErrNotFound)
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func invalidStatef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// persistence wraps store failures, leaving taxonomy errors untouched.
func persistence(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrValidation, ErrAuthorization, ErrInvalidState, ErrNotFound, ErrPersistence} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
