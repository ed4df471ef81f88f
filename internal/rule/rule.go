// Package rule provides composable validation rules for untyped document
// trees (the map[string]any / []any / scalar values produced by JSON or
// YAML decoders).
//
// Rules are immutable once built and safe for concurrent use. Every rule
// returns the normalized value (defaults applied, integers as int64) and
// the issues found under the given path; validation failures are never
// reported through panics or errors.
package rule

// Rule validates and normalizes a single value.
type Rule interface {
	Check(v any, path Path) (any, Issues)
}

// absentHandler is implemented by wrappers that may accept a missing
// object field; IsOptional decides whether they do. keep reports whether
// value should be stored in the normalized object.
type absentHandler interface {
	onAbsent() (value any, keep bool)
}

// Meta attaches schema metadata to a rule without changing its behavior.
// ID names the definition when the rule is emitted as a shared schema.
type Meta struct {
	Inner       Rule
	ID          string
	Description string
}

// Describe attaches a human-readable description.
func Describe(r Rule, description string) *Meta {
	return &Meta{Inner: r, Description: description}
}

// Define attaches a definition name and description.
func Define(id, description string, r Rule) *Meta {
	return &Meta{Inner: r, ID: id, Description: description}
}

func (m *Meta) Check(v any, path Path) (any, Issues) {
	return m.Inner.Check(v, path)
}

func (m *Meta) onAbsent() (any, bool) {
	if a, ok := m.Inner.(absentHandler); ok {
		return a.onAbsent()
	}
	return nil, false
}

// OptionalRule accepts a missing field; a present value is checked by Inner.
type OptionalRule struct {
	Inner Rule
}

func Optional(r Rule) *OptionalRule {
	return &OptionalRule{Inner: r}
}

func (o *OptionalRule) Check(v any, path Path) (any, Issues) {
	return o.Inner.Check(v, path)
}

// onAbsent delegates to a wrapped default so Optional(Default(x, d))
// still fills d in.
func (o *OptionalRule) onAbsent() (any, bool) {
	if a, ok := o.Inner.(absentHandler); ok {
		return a.onAbsent()
	}
	return nil, false
}

// DefaultRule substitutes Value for a missing field. Value must itself
// satisfy Inner; it is stored as is.
type DefaultRule struct {
	Inner Rule
	Value any
}

func Default(r Rule, value any) *DefaultRule {
	return &DefaultRule{Inner: r, Value: value}
}

func (d *DefaultRule) Check(v any, path Path) (any, Issues) {
	return d.Inner.Check(v, path)
}

func (d *DefaultRule) onAbsent() (any, bool) {
	return d.Value, true
}

// IsOptional reports whether r accepts a missing field.
func IsOptional(r Rule) bool {
	switch t := r.(type) {
	case *OptionalRule, *DefaultRule:
		return true
	case *Meta:
		return IsOptional(t.Inner)
	}
	return false
}

// DefaultOf returns the default value r applies to a missing field.
func DefaultOf(r Rule) (any, bool) {
	if a, ok := r.(absentHandler); ok {
		return a.onAbsent()
	}
	return nil, false
}
