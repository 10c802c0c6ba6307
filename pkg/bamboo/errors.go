package bamboo

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNetwork matches every transport or timeout failure talking to the CI server.
	ErrNetwork = errors.New("ci server unreachable")
	// ErrNotFound indicates the CI server has no such plan or result (yet).
	ErrNotFound = errors.New("ci resource not found")
	// ErrArtifactNotFound indicates no downloadable build artifact could be located.
	ErrArtifactNotFound = errors.New("build artifact not found")
	// ErrArtifactTooLarge indicates the artifact exceeds the configured download limit.
	ErrArtifactTooLarge = errors.New("build artifact too large")
)

// NetworkError wraps a transport failure for a single CI operation.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("bamboo %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is lets callers match any network error with errors.Is(err, ErrNetwork).
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// OperationError is returned when the CI server rejects a request.
type OperationError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *OperationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bamboo %s failed with status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("bamboo %s failed with status %d: %s", e.Op, e.StatusCode, e.Message)
}

// AlreadyExists reports whether the CI server refused the request because the target exists.
func (e *OperationError) AlreadyExists() bool {
	return strings.Contains(strings.ToLower(e.Message), "already exists")
}

// IsAlreadyExists reports whether err is an OperationError caused by an existing plan.
func IsAlreadyExists(err error) bool {
	var opErr *OperationError
	return errors.As(err, &opErr) && opErr.AlreadyExists()
}
