package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAlreadyInitialized is returned when Initialize is called on an engine that left the Uninitialized state.
var ErrAlreadyInitialized = errors.New("engine already initialized")

// ErrNotInitialized is returned when an invocation is attempted before the engine is frozen.
var ErrNotInitialized = errors.New("engine not initialized")

// ErrEntryPointNotFound is returned when the script does not define a callable entry point.
var ErrEntryPointNotFound = errors.New("entry point not found")

// ErrInvalidStatus is returned when a commit carries a status outside [100, 599].
var ErrInvalidStatus = errors.New("invalid response status")

// ErrDrainFailure is returned when a deferred task throws during a drain pass.
var ErrDrainFailure = errors.New("deferred task failed")

// ErrUnavailableDuringInit is returned by capabilities that only work while serving requests.
var ErrUnavailableDuringInit = errors.New("capability unavailable during initialization")

// Key-value store errors, mirroring the host error kinds.
var (
	ErrNoSuchStore   = errors.New("no such store")
	ErrAccessDenied  = errors.New("access denied")
	ErrStoreInternal = errors.New("internal store error")
)

// Stage names where a FatalError can originate.
const (
	StageContext    = "creating context"
	StageCapability = "defining capabilities"
	StageCompile    = "compiling script"
	StageEvaluate   = "evaluating script"
	StageDrain      = "running deferred tasks"
)

// FatalError is an unrecoverable failure. The process that owns the engine is expected to
// print it and terminate with a non-zero status.
type FatalError struct {
	Stage       string
	Err         error
	Diagnostics []Diagnostic
}

func (e *FatalError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "fatal error while %s: %v", e.Stage, e.Err)
	if n := len(e.Diagnostics); n > 0 {
		fmt.Fprintf(&b, " (%d diagnostics)", n)
	}
	return b.String()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}
