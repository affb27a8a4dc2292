// Package transform applies JMESPath projection expressions to query
// results. Expressions are compiled once when the configuration loads and
// evaluated once per output, so a malformed expression surfaces before any
// backend call is made.
package transform

import (
	"fmt"
	"strings"

	"github.com/jmespath/go-jmespath"
)

// Expression is a compiled transform program. The zero value and a nil
// pointer both behave as the identity transform.
type Expression struct {
	text string
	jp   *jmespath.JMESPath
}

// Compile parses text into an Expression. Empty or blank text compiles to
// the identity expression. Whitespace runs (including newlines from YAML
// block scalars) are collapsed to single spaces before parsing.
func Compile(text string) (*Expression, error) {
	clean := strings.Join(strings.Fields(text), " ")
	if clean == "" {
		return &Expression{}, nil
	}
	jp, err := jmespath.Compile(clean)
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", clean, err)
	}
	return &Expression{text: clean, jp: jp}, nil
}

// MustCompile is Compile for expressions known to be valid, for tests and
// built-in defaults.
func MustCompile(text string) *Expression {
	e, err := Compile(text)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the normalized expression text; empty for identity.
func (e *Expression) String() string {
	if e == nil {
		return ""
	}
	return e.text
}

// IsIdentity reports whether the expression returns its input unchanged.
func (e *Expression) IsIdentity() bool {
	return e == nil || e.jp == nil
}

// Apply evaluates the expression against value and returns the projected
// result. The input is never modified, so the same result set can feed
// multiple outputs: jmespath's sort functions reorder slices in place, which
// is why evaluation runs over a deep copy.
func (e *Expression) Apply(value any) (any, error) {
	if e.IsIdentity() {
		return value, nil
	}
	out, err := e.jp.Search(deepCopy(value))
	if err != nil {
		return nil, fmt.Errorf("evaluate expression %q: %w", e.text, err)
	}
	return out, nil
}

func deepCopy(value any) any {
	switch v := value.(type) {
	case []any:
		out := make([]any, len(v))
		for i, el := range v {
			out[i] = deepCopy(el)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, el := range v {
			out[k] = deepCopy(el)
		}
		return out
	default:
		return v
	}
}
