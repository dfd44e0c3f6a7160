// Package matrix expands a job's strategy.matrix parameters into the
// Cartesian product, then applies exclude-filtering, then
// include-augmentation, preserving declaration order throughout.
// ParameterNames is kept alongside the Parameters map so iteration never
// depends on Go's randomized map order.
package matrix

import (
	"fmt"
	"strings"

	"github.com/sisaku-security/wrkflw/pkg/ast"
	"github.com/sisaku-security/wrkflw/pkg/wfkerrors"
)

// Instance is one concrete combination of matrix parameter values.
type Instance struct {
	// Values holds one entry per parameter, in the matrix's declared order.
	Values []KeyValue
	// IsIncluded marks an instance appended from strategy.matrix.include,
	// which is never de-duplicated against the Cartesian set.
	IsIncluded bool
}

type KeyValue struct {
	Key   string
	Value any
}

// Get returns the value bound to key and whether it was present.
func (i Instance) Get(key string) (any, bool) {
	for _, kv := range i.Values {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// DisplayName renders "jobId (k1: v1, k2: v2, …)".
func (i Instance) DisplayName(jobID string) string {
	if len(i.Values) == 0 {
		return jobID
	}
	parts := make([]string, 0, len(i.Values))
	for _, kv := range i.Values {
		parts = append(parts, fmt.Sprintf("%s: %s", kv.Key, formatValue(kv.Value)))
	}
	return fmt.Sprintf("%s (%s)", jobID, strings.Join(parts, ", "))
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Expand runs the product-then-exclude-then-include algorithm over mc,
// producing an ordered list of Instances or a MatrixError when the result
// would be empty.
func Expand(jobID string, mc *ast.MatrixConfig) ([]Instance, error) {
	if mc == nil {
		mc = ast.NewMatrixConfig()
	}
	if len(mc.ParameterNames) == 0 && len(mc.Include) == 0 {
		return nil, wfkerrors.MatrixError(matrixPos(mc), "job %q matrix has no parameters and no include entries", jobID)
	}

	combos := cartesianProduct(mc)
	filtered := combos[:0:0]
	for _, c := range combos {
		if !matchesAnyExclude(c, mc.Exclude) {
			filtered = append(filtered, c)
		}
	}

	instances := make([]Instance, 0, len(filtered)+len(mc.Include))
	for _, c := range filtered {
		instances = append(instances, Instance{Values: c})
	}
	for _, inc := range mc.Include {
		instances = append(instances, Instance{Values: toOrderedValues(inc, mc.ParameterNames), IsIncluded: true})
	}

	if len(instances) == 0 {
		return nil, wfkerrors.MatrixError(matrixPos(mc), "job %q matrix expansion produced no instances", jobID)
	}
	return instances, nil
}

func matrixPos(mc *ast.MatrixConfig) *ast.Position {
	if mc == nil {
		return nil
	}
	return mc.Pos
}

// cartesianProduct builds every combination of mc.Parameters, taken in
// mc.ParameterNames order, each combination inheriting that same key order.
func cartesianProduct(mc *ast.MatrixConfig) [][]KeyValue {
	if mc == nil || len(mc.ParameterNames) == 0 {
		return nil
	}
	combos := [][]KeyValue{{}}
	for _, name := range mc.ParameterNames {
		values := mc.Parameters[name]
		next := make([][]KeyValue, 0, len(combos)*len(values))
		for _, base := range combos {
			for _, v := range values {
				entry := make([]KeyValue, len(base), len(base)+1)
				copy(entry, base)
				entry = append(entry, KeyValue{Key: name, Value: v})
				next = append(next, entry)
			}
		}
		combos = next
	}
	return combos
}

// matchesAnyExclude reports whether a combination is excluded: EVERY
// key/value pair of some exclude mapping must be present and equal in the
// combination. A key absent from the combination means that exclude pair
// simply does not match (it does not exclude by omission).
func matchesAnyExclude(combo []KeyValue, excludes []map[string]any) bool {
	for _, ex := range excludes {
		if matchesExclude(combo, ex) {
			return true
		}
	}
	return false
}

func matchesExclude(combo []KeyValue, ex map[string]any) bool {
	if len(ex) == 0 {
		return false
	}
	for key, want := range ex {
		got, ok := comboGet(combo, key)
		if !ok || !equalValue(got, want) {
			return false
		}
	}
	return true
}

func comboGet(combo []KeyValue, key string) (any, bool) {
	for _, kv := range combo {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

func equalValue(a, b any) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// toOrderedValues renders an include/exclude mapping as KeyValues, first in
// the matrix's own declared parameter order, then any extra keys the
// include introduces (a key with no corresponding Cartesian parameter) in
// lexical order.
func toOrderedValues(m map[string]any, order []string) []KeyValue {
	seen := map[string]bool{}
	out := make([]KeyValue, 0, len(m))
	for _, k := range order {
		if v, ok := m[k]; ok {
			out = append(out, KeyValue{Key: k, Value: v})
			seen[k] = true
		}
	}
	extra := make([]string, 0, len(m))
	for k := range m {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	// map iteration order is randomized, and the parser stores each
	// include entry as a map[string]any, so YAML key order is lost. A single
	// deterministic tiebreak (lexical) keeps Expand's output reproducible
	// across runs.
	sortStrings(extra)
	for _, k := range extra {
		out = append(out, KeyValue{Key: k, Value: m[k]})
	}
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
