package rule

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// UnionRule accepts a value matching any of Options, tried in order.
// The first accepting alternative wins.
type UnionRule struct {
	Options []Rule
}

func Union(options ...Rule) *UnionRule {
	return &UnionRule{Options: options}
}

func (u *UnionRule) Check(v any, path Path) (any, Issues) {
	alts := make([]Issues, 0, len(u.Options))
	for _, opt := range u.Options {
		out, issues := opt.Check(v, path)
		if len(issues) == 0 {
			return out, nil
		}
		alts = append(alts, issues)
	}
	reasons := make([]string, len(alts))
	for i, a := range alts {
		reasons[i] = a[0].Message
	}
	return nil, Issues{{
		Path:         path,
		Kind:         KindUnionExhausted,
		Message:      "value matches none of the allowed forms: " + strings.Join(reasons, "; "),
		Alternatives: alts,
	}}
}

// ArrayRule validates each element against Elem. All element issues are
// reported in index order.
type ArrayRule struct {
	Elem     Rule
	MinItems int
}

func Array(elem Rule) *ArrayRule {
	return &ArrayRule{Elem: elem}
}

// NonEmptyArray requires at least one element.
func NonEmptyArray(elem Rule) *ArrayRule {
	return &ArrayRule{Elem: elem, MinItems: 1}
}

func (a *ArrayRule) Check(v any, path Path) (any, Issues) {
	items, ok := asSlice(v)
	if !ok {
		return nil, issue(path, KindStructural, "expected array, received %s", typeName(v))
	}
	if len(items) < a.MinItems {
		return nil, issue(path, KindValueConstraint, "array must contain at least %d element(s)", a.MinItems)
	}
	out := make([]any, len(items))
	var issues Issues
	for i, item := range items {
		norm, is := a.Elem.Check(item, path.Index(i))
		issues = append(issues, is...)
		out[i] = norm
	}
	if len(issues) > 0 {
		return nil, issues
	}
	return out, nil
}

// RecordRule validates a string-keyed map whose values match Value.
// Keys are unconstrained; issues are reported in sorted key order.
type RecordRule struct {
	Value Rule
}

func Record(value Rule) *RecordRule {
	return &RecordRule{Value: value}
}

func (r *RecordRule) Check(v any, path Path) (any, Issues) {
	m, ok := asMap(v)
	if !ok {
		return nil, issue(path, KindStructural, "expected object, received %s", typeName(v))
	}
	out := make(map[string]any, len(m))
	var issues Issues
	for _, k := range sortedKeys(m) {
		norm, is := r.Value.Check(m[k], path.Key(k))
		issues = append(issues, is...)
		out[k] = norm
	}
	if len(issues) > 0 {
		return nil, issues
	}
	return out, nil
}

// Field is one declared key of an ObjectRule.
type Field struct {
	Name string
	Rule Rule
}

func F(name string, r Rule) Field {
	return Field{Name: name, Rule: r}
}

// ObjectRule validates an object against a closed field set: unknown keys
// and missing required fields are issues. Fields wrapped in Optional or
// Default may be absent.
type ObjectRule struct {
	Fields []Field
}

func ClosedObject(fields ...Field) *ObjectRule {
	return &ObjectRule{Fields: fields}
}

// Field returns the rule declared for name.
func (o *ObjectRule) Field(name string) (Rule, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f.Rule, true
		}
	}
	return nil, false
}

func (o *ObjectRule) Check(v any, path Path) (any, Issues) {
	m, ok := asMap(v)
	if !ok {
		return nil, issue(path, KindStructural, "expected object, received %s", typeName(v))
	}
	out := make(map[string]any, len(o.Fields))
	known := make(map[string]struct{}, len(o.Fields))
	var issues Issues
	for _, f := range o.Fields {
		known[f.Name] = struct{}{}
		raw, present := m[f.Name]
		if !present {
			if !IsOptional(f.Rule) {
				issues = append(issues, issue(path.Key(f.Name), KindMissingRequired, "required field %q is missing", f.Name)...)
				continue
			}
			if def, keep := DefaultOf(f.Rule); keep {
				out[f.Name] = def
			}
			continue
		}
		norm, is := f.Rule.Check(raw, path.Key(f.Name))
		issues = append(issues, is...)
		out[f.Name] = norm
	}
	for _, k := range sortedKeys(m) {
		if _, ok := known[k]; ok {
			continue
		}
		issues = append(issues, Issue{
			Path:    path,
			Kind:    KindUnknownKey,
			Message: fmt.Sprintf("unrecognized key %q", k),
			Key:     k,
		})
	}
	if len(issues) > 0 {
		return nil, issues
	}
	return out, nil
}

// UniqueRule fails when the array produced by Inner has duplicate elements,
// compared by value.
type UniqueRule struct {
	Inner   Rule
	Message string
}

func Unique(inner Rule, message string) *UniqueRule {
	return &UniqueRule{Inner: inner, Message: message}
}

func (u *UniqueRule) Check(v any, path Path) (any, Issues) {
	out, issues := u.Inner.Check(v, path)
	if len(issues) > 0 {
		return nil, issues
	}
	items, _ := asSlice(out)
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		k := fmt.Sprintf("%T:%v", item, item)
		if _, dup := seen[k]; dup {
			return nil, issue(path, KindValueConstraint, "%s", u.message())
		}
		seen[k] = struct{}{}
	}
	return out, nil
}

func (u *UniqueRule) message() string {
	if u.Message != "" {
		return u.Message
	}
	return "array elements must be unique"
}

// ExcludeRule rejects specific normalized values accepted by Inner.
type ExcludeRule struct {
	Inner   Rule
	Values  []any
	Message string
}

func Exclude(inner Rule, message string, values ...any) *ExcludeRule {
	return &ExcludeRule{Inner: inner, Values: values, Message: message}
}

func (e *ExcludeRule) Check(v any, path Path) (any, Issues) {
	out, issues := e.Inner.Check(v, path)
	if len(issues) > 0 {
		return nil, issues
	}
	for _, x := range e.Values {
		if out == x {
			return nil, issue(path, KindValueConstraint, "%s", e.Message)
		}
	}
	return out, nil
}

func asSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func asMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
