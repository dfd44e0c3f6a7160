package ast

import "testing"

func TestStepDisplayNameDefaultsToStepN(t *testing.T) {
	s := &Step{Index: 3}
	if got := s.DisplayName(); got != "Step 3" {
		t.Fatalf("got %q, want %q", got, "Step 3")
	}
}

func TestStepDisplayNamePrefersName(t *testing.T) {
	s := &Step{Index: 1, Name: "checkout"}
	if got := s.DisplayName(); got != "checkout" {
		t.Fatalf("got %q, want %q", got, "checkout")
	}
}

func TestExecIsRunIsUses(t *testing.T) {
	run := Exec{Run: "echo hi"}
	if !run.IsRun() || run.IsUses() {
		t.Fatal("run exec misclassified")
	}
	uses := Exec{Uses: &ActionReference{}}
	if uses.IsRun() || !uses.IsUses() {
		t.Fatal("uses exec misclassified")
	}
}

func TestJobIsReusable(t *testing.T) {
	if (&Job{}).IsReusable() {
		t.Fatal("job without UsesReusable reported reusable")
	}
	if !(&Job{UsesReusable: "org/repo/.github/workflows/ci.yml@main"}).IsReusable() {
		t.Fatal("job with UsesReusable reported not reusable")
	}
}

func TestWorkflowJobsInOrderFollowsJobOrder(t *testing.T) {
	wf := &Workflow{
		JobOrder: []string{"b", "a"},
		Jobs: map[string]*Job{
			"a": {ID: "a"},
			"b": {ID: "b"},
		},
	}
	got := wf.JobsInOrder()
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestActionKindString(t *testing.T) {
	cases := map[ActionKind]string{
		ActionGitHub: "github",
		ActionDocker: "docker",
		ActionLocal:  "local",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Fatalf("%v: got %q, want %q", kind, got, want)
		}
	}
}

func TestNewMatrixConfigDefaultsFailFastTrue(t *testing.T) {
	mc := NewMatrixConfig()
	if !mc.FailFast {
		t.Fatal("expected FailFast to default true")
	}
	if mc.Parameters == nil {
		t.Fatal("expected non-nil Parameters map")
	}
}
