// Package errors wraps github.com/go-errors/errors so every error
// constructed anywhere in canary carries a stack trace, and provides
// the small set of sentinel kinds the dispatcher and queue branch on.
package errors

import (
	goerrors "github.com/go-errors/errors"
	"github.com/hashicorp/go-multierror"
)

// New creates a new stack-trace-carrying error from a message.
func New(msg string) error {
	return goerrors.New(msg)
}

// Errorf creates a new stack-trace-carrying error from a format string.
func Errorf(format string, args ...any) error {
	return goerrors.Errorf(format, args...)
}

// WithStackTrace annotates err with a stack trace if it does not already
// carry one.
func WithStackTrace(err error) error {
	if err == nil {
		return nil
	}

	return goerrors.Wrap(err, 1)
}

// Recover, called via defer, converts a panic in the deferring function
// into an error handed to onPanic instead of unwinding further. Mirrors the teacher's
// errors.Recover used by the old CLI entrypoint.
func Recover(onPanic func(cause error)) {
	if rec := recover(); rec != nil {
		switch v := rec.(type) {
		case error:
			onPanic(WithStackTrace(v))
		default:
			onPanic(Errorf("%v", v))
		}
	}
}

// NewMultiError aggregates independent failures, e.g. the worker pool's
// collected task errors or a batch's per-case submission failures.
func NewMultiError(errs ...error) error {
	var merr *multierror.Error

	for _, err := range errs {
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	if merr == nil {
		return nil
	}

	return merr
}

// ResourceUnsatisfiable is permanent: the request can never be granted by
// the configured pool, regardless of retries. The case should be masked,
// not retried.
type ResourceUnsatisfiable struct {
	Reason string
}

func (e *ResourceUnsatisfiable) Error() string {
	return "resources unsatisfiable: " + e.Reason
}

// ResourceUnavailable is transient: the request could not be granted right
// now but may succeed on a future tick once other acquisitions release.
type ResourceUnavailable struct {
	Reason string
}

func (e *ResourceUnavailable) Error() string {
	return "resources unavailable: " + e.Reason
}

// MissingSource indicates a case asset referenced a source file that does
// not exist on disk; the case becomes skipped rather than failed.
type MissingSource struct {
	Path string
}

func (e *MissingSource) Error() string {
	return "resource file not found: " + e.Path
}

// CaseTimeoutError is raised when a single case's child process exceeded
// its timeout budget.
type CaseTimeoutError struct {
	CaseID  string
	Timeout string
}

func (e *CaseTimeoutError) Error() string {
	return "case " + e.CaseID + " timed out after " + e.Timeout
}

// SessionTimeoutError is raised when the whole session exceeded its
// wall-clock budget; the dispatcher cancels outstanding work.
type SessionTimeoutError struct {
	Timeout string
}

func (e *SessionTimeoutError) Error() string {
	return "session timed out after " + e.Timeout
}

// FailFast is raised by the queue's done() path when a terminal failure
// is observed while fail-fast mode is enabled.
type FailFast struct {
	FailingNames []string
}

func (e *FailFast) Error() string {
	return "fail-fast triggered"
}

// StopExecution requests an orderly exit with a specific process exit
// code and message, bypassing the normal roll-up computation.
type StopExecution struct {
	Code    int
	Message string
}

func (e *StopExecution) Error() string {
	return e.Message
}

// SubmissionFailed indicates an external-scheduler batch could not be
// submitted; every ready/pending case in the batch becomes not_run.
type SubmissionFailed struct {
	BatchID string
	Reason  string
}

func (e *SubmissionFailed) Error() string {
	return "batch " + e.BatchID + " submission failed: " + e.Reason
}

// BrokenWorkerPool indicates the pool lost a worker (panic, process
// death); remaining pending cases move to retry or not_run on ceiling.
type BrokenWorkerPool struct {
	Reason string
}

func (e *BrokenWorkerPool) Error() string {
	return "worker pool broken: " + e.Reason
}

// InvalidPool indicates a resource-pool definition is malformed: a
// duplicate local id within a node+type, or a node missing the required
// cpus resource type.
type InvalidPool struct {
	Reason string
}

func (e *InvalidPool) Error() string {
	return "invalid resource pool: " + e.Reason
}

// IncompatibleSchema indicates a session tree's recorded schema_version
// falls outside the range this build understands.
type IncompatibleSchema struct {
	Recorded   string
	Constraint string
}

func (e *IncompatibleSchema) Error() string {
	return "session tree schema_version " + e.Recorded + " is incompatible with this build (requires " + e.Constraint + ")"
}
