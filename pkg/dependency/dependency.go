// Package dependency does Kahn-style batch layering over a Workflow's job
// graph, with dangling `needs` and cycle detection reported as
// DependencyErrors. It emits ordered ready-batches rather than a single
// yes/no cyclic verdict, since the execution engine needs the batch
// sequence itself to schedule work.
package dependency

import (
	"github.com/sisaku-security/wrkflw/pkg/ast"
	"github.com/sisaku-security/wrkflw/pkg/wfkerrors"
)

// Resolve builds the batch sequence for wf via Kahn's algorithm. Batches
// are ordered deterministically by job declaration order within each
// batch.
func Resolve(wf *ast.Workflow) ([][]string, error) {
	deps := map[string]map[string]bool{}
	rdeps := map[string][]string{}

	for _, id := range wf.JobOrder {
		deps[id] = map[string]bool{}
	}
	for _, id := range wf.JobOrder {
		job := wf.Jobs[id]
		for _, need := range job.Needs {
			if _, ok := wf.Jobs[need]; !ok {
				return nil, wfkerrors.DependencyError(job.Pos, "job %q needs undefined job %q", id, need).WithJob(id)
			}
			deps[id][need] = true
			rdeps[need] = append(rdeps[need], id)
		}
	}

	delivered := map[string]bool{}
	var batches [][]string

	ready := readyJobs(wf.JobOrder, deps, delivered)
	for len(ready) > 0 {
		batches = append(batches, ready)
		for _, id := range ready {
			delivered[id] = true
		}
		next := map[string]bool{}
		for _, id := range ready {
			for _, dependent := range rdeps[id] {
				delete(deps[dependent], id)
				if len(deps[dependent]) == 0 && !delivered[dependent] {
					next[dependent] = true
				}
			}
		}
		ready = orderedSubset(wf.JobOrder, next)
	}

	if len(delivered) != len(wf.JobOrder) {
		var stuck []string
		for _, id := range wf.JobOrder {
			if !delivered[id] {
				stuck = append(stuck, id)
			}
		}
		return nil, wfkerrors.DependencyError(wf.Pos, "workflow contains a dependency cycle among jobs: %v", stuck)
	}

	return batches, nil
}

func readyJobs(order []string, deps map[string]map[string]bool, delivered map[string]bool) []string {
	set := map[string]bool{}
	for _, id := range order {
		if len(deps[id]) == 0 && !delivered[id] {
			set[id] = true
		}
	}
	return orderedSubset(order, set)
}

func orderedSubset(order []string, set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for _, id := range order {
		if set[id] {
			out = append(out, id)
		}
	}
	return out
}
