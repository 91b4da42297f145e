package dae

import (
	"encoding/json"
	"fmt"
)

// Section is the equation section an equation was classified into.
type Section int

const (
	SectionContinuous Section = iota
	SectionEvent
	SectionDiscrete
	SectionInitial
)

var sectionNames = [...]string{
	SectionContinuous: "continuous",
	SectionEvent:      "event",
	SectionDiscrete:   "discrete",
	SectionInitial:    "initial",
}

func (s Section) String() string {
	if s < 0 || int(s) >= len(sectionNames) {
		return fmt.Sprintf("section(%d)", int(s))
	}
	return sectionNames[s]
}

// Valid reports whether s is one of the declared sections.
func (s Section) Valid() bool {
	return s >= 0 && int(s) < len(sectionNames)
}

// ParseSection converts a section name to a Section.
func ParseSection(s string) (Section, error) {
	for i, name := range sectionNames {
		if name == s {
			return Section(i), nil
		}
	}
	return 0, fmt.Errorf("unknown equation section %q", s)
}

// MarshalJSON writes the section name.
func (s Section) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON reads a section name.
func (s *Section) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseSection(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Kind is the structural form of an equation.
type Kind int

const (
	KindSimple  Kind = iota // LHS = RHS
	KindFor                 // Body repeated for Index in From..To
	KindIf                  // guarded Branches with optional Else
	KindWhen                // event-triggered Branches
	KindConnect             // connector equation left by the front-end; not analysed
)

var kindNames = [...]string{
	KindSimple:  "simple",
	KindFor:     "for",
	KindIf:      "if",
	KindWhen:    "when",
	KindConnect: "connect",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= 0 && int(k) < len(kindNames)
}

// ParseKind converts a kind name to a Kind.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown equation kind %q", s)
}

// MarshalJSON writes the kind name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Equation is a classified equation. Which fields are meaningful depends on
// Kind; nested equations in Body, Branches and Else inherit the Section of
// their parent.
type Equation struct {
	ID      string  `json:"id"`
	Section Section `json:"section"`
	Kind    Kind    `json:"kind"`

	// KindSimple and KindConnect
	LHS Expr `json:"lhs,omitzero"`
	RHS Expr `json:"rhs,omitzero"`

	// KindFor: inclusive integer range
	Index string     `json:"index,omitempty"`
	From  int        `json:"from,omitempty"`
	To    int        `json:"to,omitempty"`
	Body  []Equation `json:"body,omitempty"`

	// KindIf and KindWhen
	Branches []Branch   `json:"branches,omitempty"`
	Else     []Equation `json:"else,omitempty"`
}

// Branch is one guarded alternative of an if- or when-equation.
type Branch struct {
	Cond Expr       `json:"cond"`
	Body []Equation `json:"body"`
}

// Simple returns the simple equation lhs = rhs.
func Simple(id string, lhs, rhs Expr) Equation {
	return Equation{ID: id, Kind: KindSimple, LHS: lhs, RHS: rhs}
}

// InSection returns a copy of eq placed in section s.
func (eq Equation) InSection(s Section) Equation {
	eq.Section = s
	return eq
}

// String renders simple equations as "lhs = rhs" and other kinds by tag.
func (eq Equation) String() string {
	switch eq.Kind {
	case KindSimple:
		return fmt.Sprintf("%s = %s", eq.LHS, eq.RHS)
	case KindConnect:
		return fmt.Sprintf("connect(%s, %s)", eq.LHS, eq.RHS)
	case KindFor:
		return fmt.Sprintf("for %s in %d:%d (%d equation(s))", eq.Index, eq.From, eq.To, len(eq.Body))
	case KindIf, KindWhen:
		return fmt.Sprintf("%s (%d branch(es))", eq.Kind, len(eq.Branches))
	}
	return eq.Kind.String()
}

func (eq Equation) canonicalValue() map[string]any {
	obj := map[string]any{
		"id":      eq.ID,
		"section": eq.Section.String(),
		"kind":    eq.Kind.String(),
	}
	switch eq.Kind {
	case KindSimple, KindConnect:
		obj["lhs"] = eq.LHS.canonicalValue()
		obj["rhs"] = eq.RHS.canonicalValue()
	case KindFor:
		obj["index"] = eq.Index
		obj["from"] = eq.From
		obj["to"] = eq.To
		obj["body"] = canonicalEquations(eq.Body)
	case KindIf, KindWhen:
		branches := make([]any, len(eq.Branches))
		for i, br := range eq.Branches {
			branches[i] = map[string]any{
				"cond": br.Cond.canonicalValue(),
				"body": canonicalEquations(br.Body),
			}
		}
		obj["branches"] = branches
		if len(eq.Else) > 0 {
			obj["else"] = canonicalEquations(eq.Else)
		}
	}
	return obj
}

func canonicalEquations(eqs []Equation) []any {
	out := make([]any, len(eqs))
	for i, eq := range eqs {
		out[i] = eq.canonicalValue()
	}
	return out
}
