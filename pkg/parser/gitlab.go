package parser

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sisaku-security/wrkflw/pkg/ast"
	"github.com/sisaku-security/wrkflw/pkg/wfkerrors"
)

// gitlabReservedKeys are pipeline-root keys that are not job definitions.
var gitlabReservedKeys = map[string]bool{
	"stages": true, "variables": true, "default": true, "include": true,
	"workflow": true, "image": true, "services": true, "cache": true,
	"before_script": true, "after_script": true, "default_branch": true,
}

// ParseGitLab converts a `.gitlab-ci.yml` document into the same ast.Workflow
// shape the GitHub Actions parser produces, so the rest of the core
// (Validator, MatrixExpander, DependencyResolver, ExecutionEngine) is
// unaware of which CI dialect a job graph came from. `stages:` order
// becomes synthetic `needs` edges for jobs that don't declare
// `needs:`/`dependencies:` explicitly, and before_script/script/
// after_script become ordered run steps.
func ParseGitLab(src []byte) (*ast.Workflow, []*wfkerrors.WorkflowError) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, []*wfkerrors.WorkflowError{wfkerrors.ParseError(nil, "could not parse GitLab pipeline as YAML: %s", err.Error())}
	}
	if len(doc.Content) == 0 {
		return nil, []*wfkerrors.WorkflowError{wfkerrors.ParseError(nil, "empty pipeline")}
	}

	p := &parser{}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		p.errorf(root, "pipeline document must be a mapping")
		return nil, p.errs
	}

	wf := &ast.Workflow{
		Name:        "GitLab CI Pipeline",
		Triggers:    []string{"push"},
		RawTriggers: map[string]any{"push": nil},
		Jobs:        map[string]*ast.Job{},
		Pos:         posOf(root),
	}

	kvs, err := p.mapping(root)
	if err != nil {
		return nil, p.errs
	}

	var stages []string
	globalVars := map[string]string{}
	jobNodes := map[string]*yaml.Node{}
	var jobOrder []string

	for _, e := range kvs {
		key := e.key
		switch {
		case key == "stages":
			stages = p.parseStringSeq(e.val)
		case key == "variables":
			globalVars = p.parseStringMap(e.val)
		case gitlabReservedKeys[key]:
			// Not modeled: cache/include/workflow rules/default image are
			// orchestration concerns this executor's core does not cover.
		case strings.HasPrefix(key, "."):
			// Hidden jobs (templates referenced via `extends:`) are not
			// scheduled directly.
		default:
			jobNodes[key] = e.val
			jobOrder = append(jobOrder, key)
		}
	}

	stageIndex := map[string]int{}
	for i, s := range stages {
		stageIndex[s] = i
	}
	jobsByStage := map[int][]string{}

	for _, name := range jobOrder {
		n := jobNodes[name]
		job := &ast.Job{ID: name, RunsOn: "shell", Env: map[string]string{}, Pos: posOf(n)}
		jkvs, jerr := p.mapping(n)
		if jerr != nil {
			continue
		}

		stage := -1
		var explicitNeeds []string
		var hasExplicitNeeds bool
		var before, script, after []string

		for _, jkv := range jkvs {
			switch jkv.key {
			case "stage":
				stage = stageIndex[scalarString(jkv.val)]
			case "needs", "dependencies":
				explicitNeeds = p.parseStringSeq(jkv.val)
				hasExplicitNeeds = true
			case "variables":
				job.Env = p.parseStringMap(jkv.val)
			case "before_script":
				before = p.parseStringSeq(jkv.val)
			case "script":
				script = p.parseStringSeq(jkv.val)
			case "after_script":
				after = p.parseStringSeq(jkv.val)
			}
		}
		for k, v := range globalVars {
			if _, ok := job.Env[k]; !ok {
				job.Env[k] = v
			}
		}

		idx := 0
		appendSteps := func(prefix string, cmds []string, continueOnError bool) {
			for _, cmd := range cmds {
				idx++
				job.Steps = append(job.Steps, &ast.Step{
					Index:           idx,
					Name:            fmt.Sprintf("%s %d", prefix, idx),
					Exec:            ast.Exec{Run: cmd},
					Env:             map[string]string{},
					ContinueOnError: continueOnError,
					Pos:             posOf(n),
				})
			}
		}
		appendSteps("Before script", before, false)
		appendSteps("Run script line", script, false)
		appendSteps("After script", after, true)

		if hasExplicitNeeds {
			job.Needs = explicitNeeds
		}
		wf.Jobs[name] = job
		wf.JobOrder = append(wf.JobOrder, name)
		if stage >= 0 {
			jobsByStage[stage] = append(jobsByStage[stage], name)
		}
	}

	// Jobs with no explicit needs inherit an edge from every job in the
	// immediately preceding stage, so stage ordering still produces the
	// same batch layering a GitLab runner would observe.
	for _, name := range jobOrder {
		job, ok := wf.Jobs[name]
		if !ok || job.Needs != nil {
			continue
		}
		stage := -1
		for s, names := range jobsByStage {
			for _, n := range names {
				if n == name {
					stage = s
				}
			}
		}
		if stage <= 0 {
			continue
		}
		job.Needs = append(job.Needs, jobsByStage[stage-1]...)
	}

	if len(wf.Jobs) == 0 {
		p.errorf(root, "pipeline must contain at least one job")
	}
	return wf, p.errs
}

func (p *parser) parseStringSeq(n *yaml.Node) []string {
	if n == nil {
		return nil
	}
	if n.Kind == yaml.ScalarNode {
		return []string{n.Value}
	}
	if n.Kind != yaml.SequenceNode {
		p.errorf(n, "expected a sequence")
		return nil
	}
	out := make([]string, 0, len(n.Content))
	for _, c := range n.Content {
		out = append(out, c.Value)
	}
	return out
}
