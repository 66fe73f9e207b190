package firing

import (
	"errors"
	"fmt"

	"kilnworks-backend/internal/capacity"
)

var (
	// ErrKilnBusy is returned when a kiln already has a firing in loading,
	// firing or cooling.
	ErrKilnBusy = errors.New("kiln is busy")
	// ErrInvalidTransition is returned when a firing cannot move from its
	// current status in the requested way.
	ErrInvalidTransition = errors.New("invalid firing status transition")
	// ErrNotFound is returned when a firing or kiln ID cannot be resolved.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest is returned for malformed caller input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidConfiguration is returned for unusable kiln geometry.
	ErrInvalidConfiguration = capacity.ErrInvalidConfiguration
)

// ExternalStoreError wraps a failure reported by the Backend that is not one
// of the lifecycle errors above.
type ExternalStoreError struct {
	Op  string
	Err error
}

func (e *ExternalStoreError) Error() string {
	return fmt.Sprintf("external store: %s: %v", e.Op, e.Err)
}

func (e *ExternalStoreError) Unwrap() error {
	return e.Err
}

// IsExternalStoreError reports whether err came from the Backend itself.
func IsExternalStoreError(err error) bool {
	var e *ExternalStoreError
	return errors.As(err, &e)
}

// storeError passes lifecycle errors from the backend through unchanged and
// wraps everything else.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrKilnBusy) || errors.Is(err, ErrInvalidTransition) {
		return err
	}
	return &ExternalStoreError{Op: op, Err: err}
}
