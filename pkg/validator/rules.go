package validator

import (
	"os"
	"strings"

	"github.com/sisaku-security/wrkflw/pkg/ast"
	"github.com/sisaku-security/wrkflw/pkg/parser"
)

// noopVisitor lets a rule only override the hooks it cares about.
type noopVisitor struct{}

func (noopVisitor) VisitWorkflowPre(*ast.Workflow) error         { return nil }
func (noopVisitor) VisitJob(*ast.Job) error                      { return nil }
func (noopVisitor) VisitStep(*ast.Job, *ast.Step) error          { return nil }
func (noopVisitor) VisitWorkflowPost(*ast.Workflow) error        { return nil }

// nameRule: a workflow needs a name unless every job is a reusable-workflow
// call.
type nameRule struct {
	BaseRule
	noopVisitor
	anyNonReusable bool
}

func newNameRule() *nameRule { r := &nameRule{BaseRule: newBaseRule("name")}; return r }

func (r *nameRule) VisitJob(job *ast.Job) error {
	if !job.IsReusable() {
		r.anyNonReusable = true
	}
	return nil
}

func (r *nameRule) VisitWorkflowPost(wf *ast.Workflow) error {
	if wf.Name == "" && r.anyNonReusable {
		r.issue(wf.Pos, "workflow is missing a \"name\"")
	}
	return nil
}

// jobShapeRule: runsOn/steps required unless the job is a reusable-workflow
// call.
type jobShapeRule struct {
	BaseRule
	noopVisitor
}

func newJobShapeRule() *jobShapeRule { return &jobShapeRule{BaseRule: newBaseRule("job-shape")} }

func (r *jobShapeRule) VisitJob(job *ast.Job) error {
	if job.IsReusable() {
		return nil
	}
	if job.RunsOn == "" {
		r.issue(job.Pos, "job %q is missing \"runs-on\"", job.ID)
	}
	if len(job.Steps) == 0 {
		r.issue(job.Pos, "job %q has no steps", job.ID)
	}
	return nil
}

// needsRule: needs targets must exist; no self-reference. Cycle detection
// belongs to the DependencyResolver, a separate module from the Validator.
type needsRule struct {
	BaseRule
	noopVisitor
}

func newNeedsRule() *needsRule { return &needsRule{BaseRule: newBaseRule("needs")} }

func (r *needsRule) VisitWorkflowPre(wf *ast.Workflow) error {
	for _, job := range wf.JobsInOrder() {
		for _, need := range job.Needs {
			if need == job.ID {
				r.issue(job.Pos, "job %q lists itself in \"needs\"", job.ID)
				continue
			}
			if _, ok := wf.Jobs[need]; !ok {
				r.issue(job.Pos, "job %q needs undefined job %q", job.ID, need)
			}
		}
	}
	return nil
}

// stepRule: exactly one of uses/run, plus action-reference format checks.
type stepRule struct {
	BaseRule
	noopVisitor
	statOverride func(path string) (bool, error) // tests override to avoid touching the filesystem
}

func newStepRule() *stepRule {
	return &stepRule{BaseRule: newBaseRule("step"), statOverride: defaultStat}
}

func defaultStat(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (r *stepRule) VisitStep(job *ast.Job, step *ast.Step) error {
	if step.Exec.Run != "" && step.Exec.Uses != nil {
		r.issue(step.Pos, "job %q step %d has both \"run\" and \"uses\"", job.ID, step.Index)
		return nil
	}
	if step.Exec.Run == "" && step.Exec.Uses == nil {
		r.issue(step.Pos, "job %q step %d has neither \"run\" nor \"uses\"", job.ID, step.Index)
		return nil
	}
	ref := step.Exec.Uses
	if ref == nil {
		return nil
	}
	switch ref.Kind {
	case ast.ActionGitHub:
		if !strings.Contains(ref.Repository, "/") {
			r.issue(ref.Pos, "job %q step %d action reference %q is not in owner/repo form", job.ID, step.Index, ref.Raw)
		}
		if ref.Version == "" {
			r.issue(ref.Pos, "job %q step %d action reference %q is missing a @version", job.ID, step.Index, ref.Raw)
		}
	case ast.ActionLocal:
		ok, err := r.statOverride(ref.Repository)
		if err != nil || !ok {
			r.issue(ref.Pos, "job %q step %d local action %q may not exist at runtime", job.ID, step.Index, ref.Repository)
		}
	case ast.ActionDocker:
		// No version requirement.
	}
	return nil
}

// triggerRule: closed trigger set; schedule.cron must have exactly five
// whitespace-separated fields.
type triggerRule struct {
	BaseRule
	noopVisitor
}

func newTriggerRule() *triggerRule { return &triggerRule{BaseRule: newBaseRule("trigger")} }

func (r *triggerRule) VisitWorkflowPre(wf *ast.Workflow) error {
	known := parser.KnownTriggers()
	for _, name := range wf.Triggers {
		if !known[name] {
			r.issue(wf.Pos, "unknown trigger event %q", name)
		}
	}
	if raw, ok := wf.RawTriggers["schedule"]; ok {
		r.checkSchedule(wf.Pos, raw)
	}
	return nil
}

func (r *triggerRule) checkSchedule(pos *ast.Position, raw any) {
	entries, ok := raw.([]any)
	if !ok {
		return
	}
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		cron, ok := m["cron"].(string)
		if !ok {
			continue
		}
		if len(strings.Fields(cron)) != 5 {
			r.issue(pos, "schedule cron %q must have exactly five fields", cron)
		}
	}
}

// matrixRule: strategy.max-parallel must be positive, matrix parameter
// values must share a type, and include/exclude entries must be mappings.
type matrixRule struct {
	BaseRule
	noopVisitor
}

func newMatrixRule() *matrixRule { return &matrixRule{BaseRule: newBaseRule("matrix")} }

func (r *matrixRule) VisitJob(job *ast.Job) error {
	mc := job.Matrix
	if mc == nil {
		return nil
	}
	// MaxParallel's zero value means "unset" (no limit), so an explicit
	// max-parallel: 0 is indistinguishable from omission and passes here too.
	if mc.MaxParallel < 0 {
		r.issue(mc.Pos, "job %q strategy.max-parallel must be > 0", job.ID)
	}
	for _, name := range mc.ParameterNames {
		values := mc.Parameters[name]
		if !typeHomogeneous(values) {
			r.issue(mc.Pos, "job %q matrix parameter %q mixes value kinds", job.ID, name)
		}
	}
	for _, combo := range mc.Include {
		if combo == nil {
			r.issue(mc.Pos, "job %q matrix include entry must be a mapping", job.ID)
		}
	}
	for _, combo := range mc.Exclude {
		if combo == nil {
			r.issue(mc.Pos, "job %q matrix exclude entry must be a mapping", job.ID)
		}
	}
	return nil
}

func typeHomogeneous(values []any) bool {
	if len(values) == 0 {
		return true
	}
	kind := valueKind(values[0])
	for _, v := range values[1:] {
		if valueKind(v) != kind {
			return false
		}
	}
	return true
}

func valueKind(v any) string {
	switch v.(type) {
	case bool:
		return "bool"
	case int, int64, float64:
		return "number"
	case string:
		return "string"
	case map[string]any:
		return "object"
	default:
		return "other"
	}
}
