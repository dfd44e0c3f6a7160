// Package wfkerrors is a typed error taxonomy: each error carries a Kind,
// an optional source Position and an optional job/step location so a
// caller can report where in the workflow document or execution a failure
// happened.
package wfkerrors

import (
	"fmt"

	"github.com/sisaku-security/wrkflw/pkg/ast"
)

// Kind distinguishes the taxonomy's error families.
type Kind string

const (
	KindParse      Kind = "parse"
	KindValidation Kind = "validation"
	KindDependency Kind = "dependency"
	KindMatrix     Kind = "matrix"
	KindRuntime    Kind = "runtime"
	KindTimeout    Kind = "timeout"
	KindIO         Kind = "io"
)

// WorkflowError is the common shape every taxonomy member satisfies.
type WorkflowError struct {
	Kind     Kind
	Message  string
	Pos      *ast.Position
	Job      string // empty when not job-scoped
	StepIdx  int    // 1-based; 0 when not step-scoped
	Wrapped  error
}

func (e *WorkflowError) Error() string {
	loc := ""
	if e.Job != "" {
		loc = fmt.Sprintf(" (job %q", e.Job)
		if e.StepIdx > 0 {
			loc += fmt.Sprintf(", step %d", e.StepIdx)
		}
		loc += ")"
	}
	if e.Pos != nil {
		return fmt.Sprintf("%s: %s%s [%s]", e.Pos.String(), e.Message, loc, e.Kind)
	}
	return fmt.Sprintf("%s%s [%s]", e.Message, loc, e.Kind)
}

func (e *WorkflowError) Unwrap() error { return e.Wrapped }

func newErr(kind Kind, pos *ast.Position, format string, args ...any) *WorkflowError {
	return &WorkflowError{Kind: kind, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// ParseError: YAML malformed or violates a normalization precondition.
func ParseError(pos *ast.Position, format string, args ...any) *WorkflowError {
	return newErr(KindParse, pos, format, args...)
}

// DependencyError: undefined `needs` target or a cycle.
func DependencyError(pos *ast.Position, format string, args ...any) *WorkflowError {
	return newErr(KindDependency, pos, format, args...)
}

// MatrixError: empty expansion or invalid parameter shape.
func MatrixError(pos *ast.Position, format string, args ...any) *WorkflowError {
	return newErr(KindMatrix, pos, format, args...)
}

// RuntimeError: driver/engine failure, recorded as a StepResult Failure
// rather than propagated, so callers construct it and hand it to the
// engine instead of returning it up the call stack.
func RuntimeError(format string, args ...any) *WorkflowError {
	return newErr(KindRuntime, nil, format, args...)
}

// TimeoutError is the special RuntimeError carrying exit code -1
// semantics. Callers distinguish it with errors.As.
func TimeoutError(phase string, d any) *WorkflowError {
	return &WorkflowError{Kind: KindTimeout, Message: fmt.Sprintf("%s timed out after %v", phase, d)}
}

// IOError: filesystem failures during workspace setup/copy/delete.
func IOError(format string, args ...any) *WorkflowError {
	return newErr(KindIO, nil, format, args...)
}

// Wrap attaches an underlying error for errors.Unwrap chains, e.g.
// wfkerrors.RuntimeError("pull failed").Wrap(err).
func (e *WorkflowError) Wrap(err error) *WorkflowError {
	e.Wrapped = err
	return e
}

// WithJob / WithStep annotate an error with the (job, step index) location
// it occurred in.
func (e *WorkflowError) WithJob(job string) *WorkflowError {
	e.Job = job
	return e
}

func (e *WorkflowError) WithStep(idx int) *WorkflowError {
	e.StepIdx = idx
	return e
}
