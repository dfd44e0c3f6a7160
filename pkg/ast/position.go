// Package ast defines the strict, normalized workflow model that the parser
// produces and every other package consumes. It intentionally does not keep
// every byte of the raw YAML surface around; this model keeps only the
// source position needed to report a validator issue or parse error.
package ast

import "fmt"

// Position is a line/column in the source YAML document. Both fields are
// 1-based, matching the convention of gopkg.in/yaml.v3's yaml.Node.
type Position struct {
	Line int
	Col  int
}

func (p *Position) String() string {
	if p == nil {
		return "?:?"
	}
	return fmt.Sprintf("line:%d,col:%d", p.Line, p.Col)
}

// PosOf builds a Position from a yaml.Node-like (line, column) pair, falling
// back to 1,1 for the document root.
func PosOf(line, col int) *Position {
	if line == 0 {
		line = 1
	}
	if col == 0 {
		col = 1
	}
	return &Position{Line: line, Col: col}
}
