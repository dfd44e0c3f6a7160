// Package substitution scans a shell command string for
// `${{ matrix.<IDENT> }}` tokens and replaces them with a matrix
// instance's values. Only this one narrow context is evaluated — no
// other expression families (github., env., secrets., steps., ...) — so
// this package is a small regexp-driven scan-and-replace rather than a
// full expression-language engine.
package substitution

import (
	"fmt"
	"regexp"
)

var token = regexp.MustCompile(`\$\{\{\s*matrix\.([A-Za-z0-9_]+)\s*\}\}`)

// Substitute rewrites every `${{ matrix.IDENT }}` token in cmd using get to
// resolve IDENT to a value. get returns (value, true) when the identifier
// is bound in the current matrix instance.
func Substitute(cmd string, get func(ident string) (any, bool)) string {
	return token.ReplaceAllStringFunc(cmd, func(match string) string {
		sub := token.FindStringSubmatch(match)
		ident := sub[1]
		v, ok := get(ident)
		if !ok {
			// Escape the leading '$' so the shell sees a literal token
			// instead of attempting its own expansion.
			return "\\" + match
		}
		return stringify(v)
	})
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int, int64, float64:
		return fmt.Sprintf("%v", t)
	default:
		return shellEscape(fmt.Sprintf("%v", t))
	}
}

// shellEscape wraps an arbitrary re-emitted value in single quotes so it
// cannot be reinterpreted by the shell.
func shellEscape(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\\', '\'', '\'')
			continue
		}
		out = append(out, s[i])
	}
	out = append(out, '\'')
	return string(out)
}
