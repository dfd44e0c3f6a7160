package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sisaku-security/wrkflw/pkg/ast"
)

// os:[ubuntu,windows,macos], node:[14,16], exclude {os:windows,node:14},
// include {os:ubuntu,node:18,experimental:true} -> 6 instances in order
// u14 u16 w16 m14 m16 u18experimental.
func TestExpandWorkedExample(t *testing.T) {
	mc := ast.NewMatrixConfig()
	mc.ParameterNames = []string{"os", "node"}
	mc.Parameters = map[string][]any{
		"os":   {"ubuntu", "windows", "macos"},
		"node": {14, 16},
	}
	mc.Exclude = []map[string]any{{"os": "windows", "node": 14}}
	mc.Include = []map[string]any{{"os": "ubuntu", "node": 18, "experimental": true}}

	instances, err := Expand("t", mc)
	require.NoError(t, err)
	require.Len(t, instances, 6)

	want := [][2]any{
		{"ubuntu", 14}, {"ubuntu", 16}, {"windows", 16}, {"macos", 14}, {"macos", 16}, {"ubuntu", 18},
	}
	for i, w := range want {
		os, ok := instances[i].Get("os")
		require.True(t, ok)
		node, ok := instances[i].Get("node")
		require.True(t, ok)
		assert.Equal(t, w[0], os, "instance %d os", i)
		assert.Equal(t, w[1], node, "instance %d node", i)
	}

	last := instances[5]
	assert.True(t, last.IsIncluded)
	experimental, ok := last.Get("experimental")
	require.True(t, ok)
	assert.Equal(t, true, experimental)

	assert.Equal(t, "t (os: ubuntu, node: 14)", instances[0].DisplayName("t"))
}

func TestExpandEmptyMatrixErrors(t *testing.T) {
	_, err := Expand("t", ast.NewMatrixConfig())
	assert.Error(t, err)
}

func TestExpandNilMatrixErrors(t *testing.T) {
	_, err := Expand("t", nil)
	assert.Error(t, err)
}

func TestExpandNoExcludeOrInclude(t *testing.T) {
	mc := ast.NewMatrixConfig()
	mc.ParameterNames = []string{"os"}
	mc.Parameters = map[string][]any{"os": {"ubuntu", "macos"}}

	instances, err := Expand("t", mc)
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.False(t, instances[0].IsIncluded)
}

func TestExpandExcludeAllProducesErrorWithoutInclude(t *testing.T) {
	mc := ast.NewMatrixConfig()
	mc.ParameterNames = []string{"os"}
	mc.Parameters = map[string][]any{"os": {"ubuntu"}}
	mc.Exclude = []map[string]any{{"os": "ubuntu"}}

	_, err := Expand("t", mc)
	assert.Error(t, err)
}

func TestIncludeExtraKeyOrderIsDeterministic(t *testing.T) {
	mc := ast.NewMatrixConfig()
	mc.ParameterNames = []string{"os"}
	mc.Parameters = map[string][]any{"os": {"ubuntu"}}
	mc.Include = []map[string]any{{"os": "ubuntu", "zeta": 1, "alpha": 2}}

	instances, err := Expand("t", mc)
	require.NoError(t, err)
	// two instances: the cartesian "ubuntu" plus the include "ubuntu"
	require.Len(t, instances, 2)
	extra := instances[1].Values[1:]
	require.Len(t, extra, 2)
	assert.Equal(t, "alpha", extra[0].Key)
	assert.Equal(t, "zeta", extra[1].Key)
}
