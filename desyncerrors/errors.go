// Package desyncerrors implements the error taxonomy used across the
// simulator: usage errors (CLI validation), I/O errors, invariant
// violations (fatal to a single instance), and non-convergence (a result,
// not a failure).
package desyncerrors

import (
	"fmt"
	"maps"
	"sync"
)

// Kind classifies a SimError.
type Kind string

const (
	// KindUsage marks CLI/validation errors: missing flags, non-empty output
	// directories, missing files. Reported to stderr, exit code 2.
	KindUsage Kind = "usage_error"
	// KindIO marks unreadable graphs or unwritable logs. Aborts the job.
	KindIO Kind = "io_error"
	// KindInvariant marks a violated simulation invariant (an empty queue
	// pop, an unexpected cancellation state). Fatal to the instance.
	KindInvariant Kind = "invariant_violation"
	// KindNonConvergence is not a failure: the analyzer reports it as +Inf.
	KindNonConvergence Kind = "non_convergence"
)

// SimError is the concrete error type returned across package boundaries in
// this module, carrying enough context to report (graph, seed, algo, kind)
// and the underlying cause alongside a fatal failure.
type SimError struct {
	Kind      Kind
	Operation string
	Message   string
	Cause     error

	context   map[string]any
	contextMu sync.RWMutex
}

func (e *SimError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s failed in %s: %s (caused by: %v)", e.Kind, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s failed in %s: %s", e.Kind, e.Operation, e.Message)
}

func (e *SimError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a SimError with the same Kind/Operation/
// Message, so that a SimError extended via WithContext still satisfies
// errors.Is against the original sentinel.
func (e *SimError) Is(target error) bool {
	other, ok := target.(*SimError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind && e.Operation == other.Operation && e.Message == other.Message
}

// New constructs a SimError of the given kind.
func New(kind Kind, operation, message string, cause error) *SimError {
	return &SimError{Kind: kind, Operation: operation, Message: message, Cause: cause, context: make(map[string]any)}
}

// WithContext returns a copy of e with key/value attached, e.g. graph name,
// seed, or algorithm descriptor.
func (e *SimError) WithContext(key string, value any) *SimError {
	e.contextMu.RLock()
	cloned := maps.Clone(e.context)
	e.contextMu.RUnlock()
	if cloned == nil {
		cloned = make(map[string]any)
	}
	cloned[key] = value
	return &SimError{Kind: e.Kind, Operation: e.Operation, Message: e.Message, Cause: e.Cause, context: cloned}
}

// Context returns a snapshot of the error's attached context.
func (e *SimError) Context() map[string]any {
	e.contextMu.RLock()
	defer e.contextMu.RUnlock()
	return maps.Clone(e.context)
}

// NewUsageError constructs a KindUsage SimError.
func NewUsageError(operation, message string, cause error) *SimError {
	return New(KindUsage, operation, message, cause)
}

// NewIOError constructs a KindIO SimError.
func NewIOError(operation, message string, cause error) *SimError {
	return New(KindIO, operation, message, cause)
}

// NewInvariantViolation constructs a KindInvariant SimError.
func NewInvariantViolation(operation, message string, cause error) *SimError {
	return New(KindInvariant, operation, message, cause)
}

// Sentinel errors for named fatal conditions.
var (
	ErrQueueEmpty     = NewInvariantViolation("pop_task", "event queue is empty", nil)
	ErrNotImplemented = New(KindUsage, "examine_transient_deficit", "semantics are not specified upstream; left unimplemented", nil)
)
