package validator

import (
	"github.com/sisaku-security/wrkflw/pkg/ast"
	"github.com/sisaku-security/wrkflw/pkg/wfkerrors"
)

// Validate runs every structural check over wf and returns the issues in
// rule-declaration order, each rule's own issues kept in traversal order.
// It never returns an error itself: Validate is a pure, always-succeeding
// function over the Model, producing an ordered list of issues.
func Validate(wf *ast.Workflow) []*wfkerrors.WorkflowError {
	rules := []Rule{
		newNameRule(),
		newJobShapeRule(),
		newNeedsRule(),
		newStepRule(),
		newTriggerRule(),
		newMatrixRule(),
	}

	visitors := make([]TreeVisitor, len(rules))
	for i, r := range rules {
		visitors[i] = r
	}
	sv := NewSyntaxTreeVisitor(visitors...)
	_ = sv.VisitTree(wf)

	var out []*wfkerrors.WorkflowError
	for _, r := range rules {
		for _, issue := range r.Issues() {
			issue.Kind = wfkerrors.KindValidation
			out = append(out, issue)
		}
	}
	return out
}
