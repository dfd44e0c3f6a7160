package substitution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func lookup(values map[string]any) func(string) (any, bool) {
	return func(ident string) (any, bool) {
		v, ok := values[ident]
		return v, ok
	}
}

func TestSubstituteString(t *testing.T) {
	got := Substitute(`run --os ${{ matrix.os }}`, lookup(map[string]any{"os": "ubuntu"}))
	assert.Equal(t, "run --os ubuntu", got)
}

func TestSubstituteBool(t *testing.T) {
	got := Substitute(`--flag=${{ matrix.experimental }}`, lookup(map[string]any{"experimental": true}))
	assert.Equal(t, "--flag=true", got)
}

func TestSubstituteNumber(t *testing.T) {
	got := Substitute(`--node ${{ matrix.node }}`, lookup(map[string]any{"node": 16}))
	assert.Equal(t, "--node 16", got)
}

func TestSubstituteMissingIdentEscapesToken(t *testing.T) {
	got := Substitute(`echo ${{ matrix.missing }}`, lookup(nil))
	assert.Equal(t, `echo \${{ matrix.missing }}`, got)
}

func TestSubstituteTolerantOfExtraWhitespace(t *testing.T) {
	got := Substitute(`${{   matrix.os   }}`, lookup(map[string]any{"os": "macos"}))
	assert.Equal(t, "macos", got)
}

func TestSubstituteMultipleTokens(t *testing.T) {
	got := Substitute(`${{ matrix.os }}-${{ matrix.node }}`, lookup(map[string]any{"os": "ubuntu", "node": 14}))
	assert.Equal(t, "ubuntu-14", got)
}

func TestSubstituteLeavesNonMatrixTokensAlone(t *testing.T) {
	got := Substitute(`${{ github.sha }} ${{ matrix.os }}`, lookup(map[string]any{"os": "ubuntu"}))
	assert.Equal(t, "${{ github.sha }} ubuntu", got)
}
