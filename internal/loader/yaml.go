package loader

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML accepts either a mapping or the plain "lhs = rhs" string
// shorthand, and records the node position for error reporting.
func (e *EquationDoc) UnmarshalYAML(node *yaml.Node) error {
	pos := Position{Line: node.Line, Column: node.Column}
	if node.Kind == yaml.ScalarNode {
		*e = EquationDoc{Eq: node.Value, pos: pos}
		return nil
	}
	type plain EquationDoc
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*e = EquationDoc(p)
	e.pos = pos
	return nil
}

// DecodeYAML decodes a YAML or JSON model document.
func DecodeYAML(data []byte, filename string) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{
			Code:    ErrCodeLoadFailed,
			Message: fmt.Sprintf("parsing %s: %v", filename, err),
			Pos:     Position{Filename: filename},
			Err:     err,
		}
	}
	doc.setFilename(filename)
	return &doc, nil
}

func (d *Document) setFilename(name string) {
	var walk func([]EquationDoc)
	walk = func(eqs []EquationDoc) {
		for i := range eqs {
			if eqs[i].pos.IsValid() && eqs[i].pos.Filename == "" {
				eqs[i].pos.Filename = name
			}
			walk(eqs[i].Equations)
			walk(eqs[i].Else)
			for j := range eqs[i].Branches {
				walk(eqs[i].Branches[j].Equations)
			}
		}
	}
	walk(d.Equations)
}
