package ast

import "testing"

func TestExecutionResultSuccessAllSucceeded(t *testing.T) {
	r := &ExecutionResult{Jobs: []*JobResult{
		{Status: StatusSuccess},
		{Status: StatusSkipped},
	}}
	if !r.Success() {
		t.Fatal("expected success with no failures present")
	}
}

func TestExecutionResultSuccessAnyFailure(t *testing.T) {
	r := &ExecutionResult{Jobs: []*JobResult{
		{Status: StatusSuccess},
		{Status: StatusFailure},
	}}
	if r.Success() {
		t.Fatal("expected failure to make Success() false")
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusSuccess: "success",
		StatusFailure: "failure",
		StatusSkipped: "skipped",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Fatalf("%v: got %q want %q", s, got, want)
		}
	}
}
