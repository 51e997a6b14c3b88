package domain

import "fmt"

// StateLoadError reports a persisted blob that is corrupt or does not match the expected layout.
// Callers fall back to freshly initialised state.
type StateLoadError struct {
	Reason string
	Err    error
}

func (e *StateLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("state load failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("state load failed: %s", e.Reason)
}

func (e *StateLoadError) Unwrap() error {
	return e.Err
}

// NewStateLoadError creates a StateLoadError
func NewStateLoadError(reason string, err error) *StateLoadError {
	return &StateLoadError{Reason: reason, Err: err}
}
