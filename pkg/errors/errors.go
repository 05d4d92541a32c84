// Package errors provides structured error handling for the weave runtime.
//
// Two disjoint families live here. SuspendedError is recoverable: a build
// returns it when a hook is waiting for external data, and the reconciler
// retries once the attached Waker fires. Everything else in this package
// describes a programming error in a widget or in scheduler usage; those
// values are raised with panic and abort the whole update pass.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindInit indicates an initialization error.
	KindInit
	// KindConfig indicates a configuration error.
	KindConfig
	// KindRender indicates a layout, paint or composite error.
	KindRender
	// KindPanic indicates a recovered panic.
	KindPanic
	// KindBuild indicates a build-time widget error.
	KindBuild
	// KindHook indicates a hook protocol violation.
	KindHook
	// KindProvider indicates a provider lookup failure.
	KindProvider
	// KindScheduler indicates a lane or batch contract violation.
	KindScheduler
)

func (k ErrorKind) String() string {
	switch k {
	case KindInit:
		return "init"
	case KindConfig:
		return "config"
	case KindRender:
		return "render"
	case KindPanic:
		return "panic"
	case KindBuild:
		return "build"
	case KindHook:
		return "hook"
	case KindProvider:
		return "provider"
	case KindScheduler:
		return "scheduler"
	default:
		return "unknown"
	}
}

// WeaveError represents an operational error reported to the global handler.
type WeaveError struct {
	// Op is the operation that failed (e.g., "engine.DrawFrame").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Err is the underlying error.
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *WeaveError) Error() string {
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *WeaveError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "scheduler.Tick").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Waker resumes a suspended build. Wake reports whether this call was the
// one that fired; a waker fires at most once.
type Waker interface {
	Wake() bool
}

// SuspendedError is returned by a build that read an unresolved hook.
// It is never surfaced to the host as a failure.
type SuspendedError struct {
	// Widget is the type name of the suspended widget.
	Widget string
	// Waker fires when the pending data is available.
	Waker Waker
}

func (e *SuspendedError) Error() string {
	return fmt.Sprintf("%s suspended", e.Widget)
}

// IsSuspended reports whether err is, or wraps, a SuspendedError.
func IsSuspended(err error) bool {
	var s *SuspendedError
	return stderrors.As(err, &s)
}

// AsSuspended extracts the SuspendedError from err.
func AsSuspended(err error) (*SuspendedError, bool) {
	var s *SuspendedError
	ok := stderrors.As(err, &s)
	return s, ok
}

// BuildError represents a non-suspension failure returned by a widget build.
type BuildError struct {
	// Widget is the type name of the widget that failed.
	Widget string
	// Recovered is the panic value (nil for regular errors).
	Recovered any
	// Err is the underlying error (nil for panics).
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *BuildError) Error() string {
	if e.Recovered != nil {
		return fmt.Sprintf("panic in %s.Build(): %v", e.Widget, e.Recovered)
	}
	if e.Err != nil {
		return fmt.Sprintf("error in %s.Build(): %v", e.Widget, e.Err)
	}
	return fmt.Sprintf("unknown error in %s.Build()", e.Widget)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// HookMismatchError is raised when a rebuild calls hooks in a different
// order than the build that created the slots.
type HookMismatchError struct {
	Widget   string
	Index    int
	Expected string
	Got      string
}

func (e *HookMismatchError) Error() string {
	return fmt.Sprintf("hook mismatch in %s at slot %d: stored %s, called %s", e.Widget, e.Index, e.Expected, e.Got)
}

// HookOverflowError is raised when a rebuild calls more hooks than the
// element has slots.
type HookOverflowError struct {
	Widget string
	Slots  int
}

func (e *HookOverflowError) Error() string {
	return fmt.Sprintf("hook overflow in %s: rebuild called more than %d hooks", e.Widget, e.Slots)
}

// HookUnderflowError is raised when a rebuild finishes having called fewer
// hooks than the element has slots.
type HookUnderflowError struct {
	Widget string
	Slots  int
	Called int
}

func (e *HookUnderflowError) Error() string {
	return fmt.Sprintf("hook underflow in %s: %d slots, %d called", e.Widget, e.Slots, e.Called)
}

// ProviderMissingError is raised when a consumer has no ancestor provider.
type ProviderMissingError struct {
	Widget string
	Type   string
}

func (e *ProviderMissingError) Error() string {
	return fmt.Sprintf("%s consumes %s but no ancestor provides it", e.Widget, e.Type)
}

// ProviderTypeError is raised when a provided value does not hold the type
// it was registered under.
type ProviderTypeError struct {
	Expected string
	Got      string
}

func (e *ProviderTypeError) Error() string {
	return fmt.Sprintf("provider type mismatch: expected %s, got %s", e.Expected, e.Got)
}

// LaneContractError is raised when a scheduler invariant is violated.
type LaneContractError struct {
	Op     string
	Detail string
}

func (e *LaneContractError) Error() string {
	return fmt.Sprintf("lane contract violated in %s: %s", e.Op, e.Detail)
}

// ErrorHandler receives errors reported by the runtime.
type ErrorHandler interface {
	// HandleError is called when an operational error occurs.
	HandleError(err *WeaveError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
	// HandleBuildError is called when a widget build fails.
	HandleBuildError(err *BuildError)
}
