package dae

import (
	"encoding/json"
	"fmt"
)

// Category classifies a variable.
type Category int

const (
	CategoryState Category = iota
	CategoryAlgebraic
	CategoryDiscreteReal
	CategoryDiscreteValued
	CategoryParameter
	CategoryConstant
	CategoryInput
	CategoryOutput
)

var categoryNames = [...]string{
	CategoryState:          "state",
	CategoryAlgebraic:      "algebraic",
	CategoryDiscreteReal:   "discrete_real",
	CategoryDiscreteValued: "discrete_valued",
	CategoryParameter:      "parameter",
	CategoryConstant:       "constant",
	CategoryInput:          "input",
	CategoryOutput:         "output",
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// Valid reports whether c is one of the declared categories.
func (c Category) Valid() bool {
	return c >= 0 && int(c) < len(categoryNames)
}

// ParseCategory converts a category name to a Category.
// Accepts the snake_case names used by the IR plus "discrete-real" spellings.
func ParseCategory(s string) (Category, error) {
	switch s {
	case "state":
		return CategoryState, nil
	case "algebraic":
		return CategoryAlgebraic, nil
	case "discrete_real", "discrete-real", "discrete":
		return CategoryDiscreteReal, nil
	case "discrete_valued", "discrete-valued":
		return CategoryDiscreteValued, nil
	case "parameter":
		return CategoryParameter, nil
	case "constant":
		return CategoryConstant, nil
	case "input":
		return CategoryInput, nil
	case "output":
		return CategoryOutput, nil
	}
	return 0, fmt.Errorf("unknown variable category %q", s)
}

// MarshalJSON writes the category name.
func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON reads a category name.
func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// IsFixed reports whether values of this category are known inputs to the
// analysis rather than unknowns to be solved for.
func (c Category) IsFixed() bool {
	switch c {
	case CategoryParameter, CategoryConstant, CategoryInput:
		return true
	case CategoryState, CategoryAlgebraic, CategoryDiscreteReal, CategoryDiscreteValued, CategoryOutput:
		return false
	}
	return false
}

// Variable is a classified model variable.
type Variable struct {
	Name       string   `json:"name"`
	Category   Category `json:"category"`
	StateIndex *int     `json:"state_index,omitempty"` // states only
	Start      *float64 `json:"start,omitempty"`
	Unit       string   `json:"unit,omitempty"`
	Min        *float64 `json:"min,omitempty"`
	Max        *float64 `json:"max,omitempty"`
}

// IsState reports whether v is a state variable.
func (v Variable) IsState() bool {
	return v.Category == CategoryState
}

func (v Variable) canonicalValue() map[string]any {
	obj := map[string]any{
		"name":     v.Name,
		"category": v.Category.String(),
	}
	if v.StateIndex != nil {
		obj["state_index"] = *v.StateIndex
	}
	if v.Start != nil {
		obj["start"] = *v.Start
	}
	if v.Unit != "" {
		obj["unit"] = v.Unit
	}
	if v.Min != nil {
		obj["min"] = *v.Min
	}
	if v.Max != nil {
		obj["max"] = *v.Max
	}
	return obj
}
