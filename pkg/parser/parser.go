// Package parser turns a YAML workflow document into the strict model in
// pkg/ast. The parser struct accumulates *wfkerrors.WorkflowError instead
// of stopping at the first one, uses yaml.Node-level Kind switches for the
// handful of fields that accept more than one shape ("on", "needs"), and a
// small mapping helper that rejects duplicate keys.
package parser

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sisaku-security/wrkflw/pkg/ast"
	"github.com/sisaku-security/wrkflw/pkg/wfkerrors"
)

// knownTriggers is the closed set the Validator checks trigger names
// against, exposed through KnownTriggers.
var knownTriggers = map[string]bool{
	"push": true, "pull_request": true, "pull_request_target": true,
	"workflow_dispatch": true, "workflow_call": true, "workflow_run": true,
	"schedule": true, "repository_dispatch": true, "release": true,
	"issues": true, "issue_comment": true, "create": true, "delete": true,
	"deployment": true, "deployment_status": true, "fork": true, "gollum": true,
	"label": true, "milestone": true, "page_build": true, "project": true,
	"project_card": true, "project_column": true, "public": true,
	"registry_package": true, "status": true, "watch": true, "check_run": true,
	"check_suite": true, "discussion": true, "discussion_comment": true,
}

// KnownTriggers exposes the closed set for the Validator.
func KnownTriggers() map[string]bool { return knownTriggers }

type parser struct {
	errs []*wfkerrors.WorkflowError
}

func (p *parser) errorf(n *yaml.Node, format string, args ...any) {
	p.errs = append(p.errs, wfkerrors.ParseError(posOf(n), format, args...))
}

func posOf(n *yaml.Node) *ast.Position {
	if n == nil {
		return ast.PosOf(0, 0)
	}
	return ast.PosOf(n.Line, n.Column)
}

// Parse decodes a single GitHub Actions workflow YAML document.
func Parse(src []byte) (*ast.Workflow, []*wfkerrors.WorkflowError) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, []*wfkerrors.WorkflowError{wfkerrors.ParseError(nil, "could not parse as YAML: %s", err.Error())}
	}
	if len(doc.Content) == 0 {
		return nil, []*wfkerrors.WorkflowError{wfkerrors.ParseError(nil, "empty workflow")}
	}

	p := &parser{}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		p.errorf(root, "workflow document must be a mapping")
		return nil, p.errs
	}

	wf := &ast.Workflow{
		Jobs:        map[string]*ast.Job{},
		RawTriggers: map[string]any{},
		Pos:         posOf(root),
	}

	kvs, err := p.mapping(root)
	if err != nil {
		return nil, p.errs
	}

	var sawOn, sawJobs bool
	for _, kv := range kvs {
		switch strings.ToLower(kv.key) {
		case "name":
			wf.Name = scalarString(kv.val)
		case "on":
			wf.Triggers, wf.RawTriggers = p.parseOn(kv.val)
			sawOn = true
		case "jobs":
			p.parseJobs(kv.val, wf)
			sawJobs = true
		case "env", "permissions", "defaults", "concurrency", "run-name":
			// Not modeled at the workflow root: these keys, including a
			// workflow-level env, are ignored. Only job and step env reach
			// execution.
		default:
			// Unknown top-level keys are tolerated: upstream structural
			// validation already rejects documents the schema disallows.
		}
	}

	if !sawOn {
		p.errorf(root, `section is missing required key "on"`)
	}
	if !sawJobs {
		p.errorf(root, `section is missing required key "jobs"`)
	}
	return wf, p.errs
}

type kv struct {
	key    string
	keyPos *yaml.Node
	val    *yaml.Node
}

// mapping decodes a YAML mapping node into ordered key/value pairs,
// rejecting duplicate keys.
func (p *parser) mapping(n *yaml.Node) ([]kv, error) {
	if n.Kind != yaml.MappingNode {
		p.errorf(n, "expected a mapping node but found %s", kindName(n.Kind))
		return nil, fmt.Errorf("not a mapping")
	}
	seen := map[string]*yaml.Node{}
	out := make([]kv, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i]
		v := n.Content[i+1]
		name := k.Value
		if prev, ok := seen[strings.ToLower(name)]; ok {
			p.errorf(k, "key %q duplicates a key already defined at %s", name, posOf(prev).String())
			continue
		}
		seen[strings.ToLower(name)] = k
		out = append(out, kv{key: name, keyPos: k, val: v})
	}
	return out, nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}

func scalarString(n *yaml.Node) string {
	if n == nil || n.Kind != yaml.ScalarNode {
		return ""
	}
	return n.Value
}

// parseOn normalizes the `on:` field: scalar -> one-element list,
// sequence -> that order, mapping -> key order with raw config kept
// alongside.
func (p *parser) parseOn(n *yaml.Node) ([]string, map[string]any) {
	raw := map[string]any{}
	switch n.Kind {
	case yaml.ScalarNode:
		raw[n.Value] = nil
		return []string{n.Value}, raw
	case yaml.SequenceNode:
		names := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				p.errorf(c, "event name in \"on\" sequence must be a scalar")
				continue
			}
			names = append(names, c.Value)
			raw[c.Value] = nil
		}
		return names, raw
	case yaml.MappingNode:
		kvs, err := p.mapping(n)
		if err != nil {
			return nil, raw
		}
		names := make([]string, 0, len(kvs))
		for _, e := range kvs {
			names = append(names, e.key)
			var decoded any
			_ = e.val.Decode(&decoded)
			raw[e.key] = decoded
		}
		return names, raw
	default:
		p.errorf(n, "\"on\" must be a scalar, a sequence, or a mapping, but found %s", kindName(n.Kind))
		return nil, raw
	}
}

func (p *parser) parseJobs(n *yaml.Node, wf *ast.Workflow) {
	kvs, err := p.mapping(n)
	if err != nil {
		return
	}
	for _, e := range kvs {
		job := p.parseJob(e.key, e.keyPos, e.val)
		if _, dup := wf.Jobs[job.ID]; dup {
			p.errorf(e.keyPos, "job id %q is already defined", job.ID)
			continue
		}
		wf.Jobs[job.ID] = job
		wf.JobOrder = append(wf.JobOrder, job.ID)
	}
}

func (p *parser) parseJob(id string, idNode, n *yaml.Node) *ast.Job {
	job := &ast.Job{ID: id, Env: map[string]string{}, Pos: posOf(idNode)}
	kvs, err := p.mapping(n)
	if err != nil {
		return job
	}

	for _, e := range kvs {
		switch strings.ToLower(e.key) {
		case "runs-on":
			job.RunsOn = joinRunsOn(e.val)
		case "needs":
			job.Needs = p.parseNeeds(e.val)
		case "env":
			job.Env = p.parseStringMap(e.val)
		case "steps":
			job.Steps = p.parseSteps(e.val)
		case "strategy":
			job.Matrix = p.parseStrategy(e.val)
		case "uses":
			job.UsesReusable = scalarString(e.val)
		case "with", "secrets", "name", "if", "permissions", "timeout-minutes",
			"continue-on-error", "container", "services", "outputs",
			"environment", "concurrency", "defaults":
			// Not part of the executor's hard core; structural shape of
			// these is still schema-validated upstream.
		default:
		}
	}
	return job
}

func joinRunsOn(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Value
	case yaml.SequenceNode:
		labels := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			labels = append(labels, c.Value)
		}
		return strings.Join(labels, ",")
	default:
		return ""
	}
}

func (p *parser) parseNeeds(n *yaml.Node) []string {
	switch n.Kind {
	case yaml.ScalarNode:
		return []string{n.Value}
	case yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				p.errorf(c, "needs entry must be a scalar job id")
				continue
			}
			out = append(out, c.Value)
		}
		return out
	default:
		p.errorf(n, "\"needs\" must be a scalar or a sequence")
		return nil
	}
}

func (p *parser) parseStringMap(n *yaml.Node) map[string]string {
	out := map[string]string{}
	kvs, err := p.mapping(n)
	if err != nil {
		return out
	}
	for _, e := range kvs {
		out[e.key] = scalarString(e.val)
	}
	return out
}

func (p *parser) parseSteps(n *yaml.Node) []*ast.Step {
	if n.Kind != yaml.SequenceNode {
		p.errorf(n, "\"steps\" must be a sequence")
		return nil
	}
	steps := make([]*ast.Step, 0, len(n.Content))
	for i, c := range n.Content {
		steps = append(steps, p.parseStep(i+1, c))
	}
	return steps
}

func (p *parser) parseStep(index int, n *yaml.Node) *ast.Step {
	step := &ast.Step{Index: index, Env: map[string]string{}, Pos: posOf(n)}
	kvs, err := p.mapping(n)
	if err != nil {
		return step
	}

	var runNode, usesNode *yaml.Node
	for _, e := range kvs {
		switch strings.ToLower(e.key) {
		case "name":
			step.Name = scalarString(e.val)
		case "run":
			runNode = e.val
		case "uses":
			usesNode = e.val
		case "with":
			step.With = p.parseStringMap(e.val)
		case "env":
			step.Env = p.parseStringMap(e.val)
		case "continue-on-error":
			step.ContinueOnError = e.val.Value == "true"
		}
	}

	switch {
	case runNode != nil && usesNode != nil:
		// Both are kept so the Validator can report the step by job and index.
		step.Exec = ast.Exec{Run: scalarString(runNode), Uses: classifyActionReference(scalarString(usesNode), posOf(usesNode))}
	case runNode != nil:
		step.Exec = ast.Exec{Run: scalarString(runNode)}
	case usesNode != nil:
		step.Exec = ast.Exec{Uses: classifyActionReference(scalarString(usesNode), posOf(usesNode))}
	default:
		p.errorf(n, "step %d has neither \"run\" nor \"uses\"", index)
	}
	return step
}

// classifyActionReference tags a raw `uses:` string with its ActionKind.
func classifyActionReference(raw string, pos *ast.Position) *ast.ActionReference {
	ref := &ast.ActionReference{Raw: raw, Pos: pos}
	switch {
	case strings.HasPrefix(raw, "docker://"):
		ref.Kind = ast.ActionDocker
		ref.Repository = strings.TrimPrefix(raw, "docker://")
	case strings.HasPrefix(raw, "./"):
		ref.Kind = ast.ActionLocal
		if at := strings.LastIndex(raw, "@"); at >= 0 {
			ref.Repository, ref.Version = raw[:at], raw[at+1:]
		} else {
			ref.Repository = raw
		}
	default:
		ref.Kind = ast.ActionGitHub
		if at := strings.LastIndex(raw, "@"); at >= 0 {
			ref.Repository, ref.Version = raw[:at], raw[at+1:]
		} else {
			ref.Repository = raw
		}
	}
	return ref
}

// ClassifyActionReference is the exported entry point the Validator uses.
func ClassifyActionReference(raw string, pos *ast.Position) *ast.ActionReference {
	return classifyActionReference(raw, pos)
}

func (p *parser) parseStrategy(n *yaml.Node) *ast.MatrixConfig {
	kvs, err := p.mapping(n)
	if err != nil {
		return nil
	}
	var mc *ast.MatrixConfig
	for _, e := range kvs {
		switch strings.ToLower(e.key) {
		case "matrix":
			mc = p.parseMatrix(e.val)
		case "fail-fast":
			if mc == nil {
				mc = ast.NewMatrixConfig()
			}
			mc.FailFast = e.val.Value != "false"
		case "max-parallel":
			if mc == nil {
				mc = ast.NewMatrixConfig()
			}
			var n int
			_ = e.val.Decode(&n)
			mc.MaxParallel = n
		}
	}
	return mc
}

func (p *parser) parseMatrix(n *yaml.Node) *ast.MatrixConfig {
	mc := ast.NewMatrixConfig()
	mc.Pos = posOf(n)
	kvs, err := p.mapping(n)
	if err != nil {
		return mc
	}
	for _, e := range kvs {
		switch strings.ToLower(e.key) {
		case "include":
			mc.Include = p.parseCombinations(e.val)
		case "exclude":
			mc.Exclude = p.parseCombinations(e.val)
		default:
			mc.ParameterNames = append(mc.ParameterNames, e.key)
			mc.Parameters[e.key] = p.parseValueList(e.val)
		}
	}
	return mc
}

func (p *parser) parseValueList(n *yaml.Node) []any {
	if n.Kind != yaml.SequenceNode {
		// A non-sequence value is treated as a one-element sequence.
		var v any
		_ = n.Decode(&v)
		return []any{v}
	}
	out := make([]any, 0, len(n.Content))
	for _, c := range n.Content {
		var v any
		_ = c.Decode(&v)
		out = append(out, v)
	}
	return out
}

func (p *parser) parseCombinations(n *yaml.Node) []map[string]any {
	if n.Kind != yaml.SequenceNode {
		p.errorf(n, "matrix include/exclude must be a sequence of mappings")
		return nil
	}
	out := make([]map[string]any, 0, len(n.Content))
	for _, c := range n.Content {
		if c.Kind != yaml.MappingNode {
			p.errorf(c, "matrix include/exclude entry must be a mapping")
			continue
		}
		m := map[string]any{}
		for i := 0; i+1 < len(c.Content); i += 2 {
			var v any
			_ = c.Content[i+1].Decode(&v)
			m[c.Content[i].Value] = v
		}
		out = append(out, m)
	}
	return out
}

// SortedJobIDs is a small convenience used by tests and the CLI summary
// printer to present jobs deterministically when declaration order isn't
// otherwise available.
func SortedJobIDs(wf *ast.Workflow) []string {
	ids := make([]string, 0, len(wf.Jobs))
	for id := range wf.Jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
