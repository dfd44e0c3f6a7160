// Package validator is a pure function over a Workflow producing an
// ordered list of non-fatal issues. The traversal shape — a TreeVisitor
// interface driven by a SyntaxTreeVisitor that walks workflow -> jobs ->
// steps, with individual checks as BaseRule-embedding Rule implementations
// that accumulate their own errors — lets new checks plug in without
// touching the traversal itself.
package validator

import (
	"github.com/sisaku-security/wrkflw/pkg/ast"
	"github.com/sisaku-security/wrkflw/pkg/wfkerrors"
)

// TreeVisitor is the contract every validation pass implements, specialized
// to this executor's simpler (position-light) AST.
type TreeVisitor interface {
	VisitWorkflowPre(wf *ast.Workflow) error
	VisitJob(job *ast.Job) error
	VisitStep(job *ast.Job, step *ast.Step) error
	VisitWorkflowPost(wf *ast.Workflow) error
}

// Rule is a TreeVisitor that also collects its own issues.
type Rule interface {
	TreeVisitor
	Issues() []*wfkerrors.WorkflowError
	Name() string
}

// BaseRule gives each concrete rule an issue-accumulating helper so
// individual checks don't each reimplement one.
type BaseRule struct {
	ruleName string
	issues   []*wfkerrors.WorkflowError
}

func newBaseRule(name string) BaseRule { return BaseRule{ruleName: name} }

func (b *BaseRule) Name() string { return b.ruleName }

func (b *BaseRule) Issues() []*wfkerrors.WorkflowError { return b.issues }

func (b *BaseRule) issue(pos *ast.Position, format string, args ...any) {
	b.issues = append(b.issues, wfkerrors.ParseError(pos, format, args...))
}

// SyntaxTreeVisitor drives a set of passes over one Workflow in
// Workflow -> Job -> Step order.
type SyntaxTreeVisitor struct {
	passes []TreeVisitor
}

func NewSyntaxTreeVisitor(passes ...TreeVisitor) *SyntaxTreeVisitor {
	return &SyntaxTreeVisitor{passes: passes}
}

func (s *SyntaxTreeVisitor) VisitTree(wf *ast.Workflow) error {
	for _, p := range s.passes {
		if err := p.VisitWorkflowPre(wf); err != nil {
			return err
		}
	}
	for _, job := range wf.JobsInOrder() {
		for _, p := range s.passes {
			if err := p.VisitJob(job); err != nil {
				return err
			}
		}
		for _, step := range job.Steps {
			for _, p := range s.passes {
				if err := p.VisitStep(job, step); err != nil {
					return err
				}
			}
		}
	}
	for _, p := range s.passes {
		if err := p.VisitWorkflowPost(wf); err != nil {
			return err
		}
	}
	return nil
}
