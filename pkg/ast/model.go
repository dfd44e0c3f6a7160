package ast

import "strconv"

// ActionKind tags the three shapes a step's `uses:` reference can take.
// The engine dispatches on this tag instead of carrying driver-specific
// state on the reference itself.
type ActionKind int

const (
	// ActionGitHub is the default kind: "owner/repo[/path]@ref".
	ActionGitHub ActionKind = iota
	// ActionDocker is "docker://image[:tag]".
	ActionDocker
	// ActionLocal is "./path/to/action".
	ActionLocal
)

func (k ActionKind) String() string {
	switch k {
	case ActionDocker:
		return "docker"
	case ActionLocal:
		return "local"
	default:
		return "github"
	}
}

// ActionReference is the classification of a step's `uses:` field.
type ActionReference struct {
	Raw        string
	Kind       ActionKind
	Repository string // part before '@' (github/local); full docker ref for docker
	Version    string // part after '@'; empty when absent
	Pos        *Position
}

// Exec is the step body: exactly one of Run or Uses is expected. The
// parser keeps both when a step declares both, and leaves both empty (with
// a parse error) when a step declares neither; the Validator flags either
// case.
type Exec struct {
	Run  string           // shell script, when the step is a `run:` step
	Uses *ActionReference // action reference, when the step is a `uses:` step
}

func (e Exec) IsRun() bool  { return e.Uses == nil }
func (e Exec) IsUses() bool { return e.Uses != nil }

// Step is the smallest executable unit inside a job.
type Step struct {
	// Index is the 1-based declaration order, used for the default display
	// name "Step N" and for validator issue locations.
	Index           int
	Name            string
	Exec            Exec
	With            map[string]string
	Env             map[string]string
	ContinueOnError bool
	Pos             *Position
}

// DisplayName returns Name, or a "Step N" default when unnamed.
func (s *Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return stepDefaultName(s.Index)
}

func stepDefaultName(index int) string {
	return "Step " + strconv.Itoa(index)
}

// MatrixConfig is a job's `strategy.matrix:` block.
type MatrixConfig struct {
	// ParameterNames preserves declaration order; Parameters is keyed the
	// same way. Keeping both lets MatrixExpander iterate the Cartesian
	// product in declaration order without relying on Go's randomized map
	// iteration.
	ParameterNames []string
	Parameters     map[string][]any

	Include []map[string]any
	Exclude []map[string]any

	MaxParallel int  // 0 means unbounded
	FailFast    bool // default true; see NewMatrixConfig
	Pos         *Position
}

// NewMatrixConfig returns a MatrixConfig with FailFast defaulted to true,
// matching GitHub Actions' own default.
func NewMatrixConfig() *MatrixConfig {
	return &MatrixConfig{
		Parameters: map[string][]any{},
		FailFast:   true,
	}
}

// Job is one schedulable unit of a workflow.
type Job struct {
	ID      string
	RunsOn  string
	Needs   []string
	Env     map[string]string
	Steps   []*Step
	Matrix  *MatrixConfig
	Pos     *Position

	// UsesReusable holds the job-level `uses:` reference for a reusable
	// workflow call. When non-empty, RunsOn/Steps are optional; the
	// Validator checks the job and the engine reports it Skipped without
	// executing it.
	UsesReusable string
}

func (j *Job) IsReusable() bool { return j.UsesReusable != "" }

// Workflow is the root of the normalized model.
type Workflow struct {
	Name string

	// Triggers is the normalized, ordered list of event names produced
	// from the raw `on:` field regardless of whether it arrived as a
	// scalar, a sequence, or a mapping.
	Triggers []string

	// RawTriggers keeps the per-event raw configuration (branch filters,
	// cron strings, workflow_dispatch inputs, ...) for downstream
	// consumers that need it, keyed by event name. It is not interpreted
	// by the core beyond the Validator's cron-shape check.
	RawTriggers map[string]any

	// Jobs preserves declaration order via JobOrder; Jobs is keyed by ID
	// for O(1) lookups during dependency resolution and matrix expansion.
	JobOrder []string
	Jobs     map[string]*Job

	Pos *Position
}

// JobsInOrder returns the Jobs map values walked in declaration order.
func (w *Workflow) JobsInOrder() []*Job {
	out := make([]*Job, 0, len(w.JobOrder))
	for _, id := range w.JobOrder {
		out = append(out, w.Jobs[id])
	}
	return out
}
