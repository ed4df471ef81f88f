package jsonschema

import (
	"encoding/json"
	"fmt"

	"jsoncal/internal/rule"
)

// Target selects the JSON Schema draft.
type Target string

const (
	Draft202012 Target = "draft-2020-12"
	Draft07     Target = "draft-07"
)

// DraftURI returns the $schema identifier for t.
func (t Target) DraftURI() string {
	if t == Draft07 {
		return "http://json-schema.org/draft-07/schema#"
	}
	return "https://json-schema.org/draft/2020-12/schema"
}

// Reused selects how rules reachable more than once are emitted.
type Reused string

const (
	// ReusedRef emits shared rules once under $defs and references them.
	ReusedRef Reused = "ref"
	// ReusedInline repeats shared rules at every use.
	ReusedInline Reused = "inline"
)

// IO selects which side of normalization the schema describes.
type IO string

const (
	// IOInput describes accepted documents: defaulted fields are optional.
	IOInput IO = "input"
	// IOOutput describes normalized documents: defaulted fields are required.
	IOOutput IO = "output"
)

type Options struct {
	Target Target
	Reused Reused
	IO     IO
}

func (o Options) withDefaults() Options {
	if o.Target == "" {
		o.Target = Draft202012
	}
	if o.Reused == "" {
		o.Reused = ReusedRef
	}
	if o.IO == "" {
		o.IO = IOInput
	}
	return o
}

// Export projects the rule graph rooted at root into a JSON Schema
// document. Rules are never mutated; repeated calls yield equal documents.
func Export(root rule.Rule, opts Options) *Schema {
	e := &exporter{
		opts:  opts.withDefaults(),
		uses:  make(map[rule.Rule]int),
		names: make(map[rule.Rule]string),
		taken: make(map[string]bool),
		defs:  make(map[string]*Schema),
	}
	e.count(root)
	out := e.body(root)
	out.SchemaURI = e.opts.Target.DraftURI()
	if len(e.defs) > 0 {
		if e.opts.Target == Draft07 {
			out.Definitions = e.defs
		} else {
			out.Defs = e.defs
		}
	}
	return out
}

type exporter struct {
	opts  Options
	uses  map[rule.Rule]int
	order []rule.Rule
	names map[rule.Rule]string
	taken map[string]bool
	defs  map[string]*Schema
}

// count records how often each node is reachable. Optional wrappers are
// transparent and never shared.
func (e *exporter) count(r rule.Rule) {
	if o, ok := r.(*rule.OptionalRule); ok {
		e.count(o.Inner)
		return
	}
	e.uses[r]++
	if e.uses[r] > 1 {
		return
	}
	e.order = append(e.order, r)
	for _, child := range children(r) {
		e.count(child)
	}
}

func children(r rule.Rule) []rule.Rule {
	switch t := r.(type) {
	case *rule.Meta:
		return []rule.Rule{t.Inner}
	case *rule.DefaultRule:
		return []rule.Rule{t.Inner}
	case *rule.UnionRule:
		return t.Options
	case *rule.ArrayRule:
		return []rule.Rule{t.Elem}
	case *rule.RecordRule:
		return []rule.Rule{t.Value}
	case *rule.ObjectRule:
		out := make([]rule.Rule, len(t.Fields))
		for i, f := range t.Fields {
			out[i] = f.Rule
		}
		return out
	case *rule.UniqueRule:
		return []rule.Rule{t.Inner}
	case *rule.ExcludeRule:
		return []rule.Rule{t.Inner}
	}
	return nil
}

// node returns either a reference to a shared definition or an inline body.
func (e *exporter) node(r rule.Rule) *Schema {
	if o, ok := r.(*rule.OptionalRule); ok {
		return e.node(o.Inner)
	}
	if e.opts.Reused == ReusedRef && e.uses[r] > 1 {
		return &Schema{Ref: e.define(r)}
	}
	return e.body(r)
}

func (e *exporter) define(r rule.Rule) string {
	prefix := "#/$defs/"
	if e.opts.Target == Draft07 {
		prefix = "#/definitions/"
	}
	if name, ok := e.names[r]; ok {
		return prefix + name
	}
	name := e.nameFor(r)
	e.names[r] = name
	e.defs[name] = e.body(r)
	return prefix + name
}

func (e *exporter) nameFor(r rule.Rule) string {
	base := ""
	if m, ok := r.(*rule.Meta); ok {
		base = m.ID
	}
	if base == "" {
		for i, o := range e.order {
			if o == r {
				base = fmt.Sprintf("__schema%d", i)
				break
			}
		}
	}
	name := base
	for n := 2; e.taken[name]; n++ {
		name = fmt.Sprintf("%s%d", base, n)
	}
	e.taken[name] = true
	return name
}

func (e *exporter) body(r rule.Rule) *Schema {
	switch t := r.(type) {
	case *rule.OptionalRule:
		return e.body(t.Inner)
	case *rule.Meta:
		s := e.node(t.Inner)
		if t.Description != "" {
			s.Description = t.Description
		}
		return s
	case *rule.DefaultRule:
		s := e.node(t.Inner)
		if raw, err := json.Marshal(t.Value); err == nil {
			s.Default = raw
		}
		return s
	case *rule.StringRule:
		s := &Schema{Type: "string", Format: string(t.Format)}
		// Draft-07 validators assert format, and RFC 3339 date-time
		// requires seconds. The pattern alone states what is accepted.
		if e.opts.Target == Draft07 && t.Format == rule.FormatDateTime && t.Pattern != nil {
			s.Format = ""
		}
		if t.MinLength > 0 {
			n := t.MinLength
			s.MinLength = &n
		}
		if t.Pattern != nil {
			s.Pattern = t.Pattern.String()
		}
		return s
	case *rule.IntRule:
		return &Schema{Type: "integer", Minimum: t.Min, Maximum: t.Max}
	case *rule.EnumRule:
		s := &Schema{Type: "string"}
		for _, v := range t.Values {
			s.Enum = append(s.Enum, v)
		}
		return s
	case *rule.BoolRule:
		return &Schema{Type: "boolean"}
	case *rule.AnyRule:
		return &Schema{}
	case *rule.UnionRule:
		s := &Schema{}
		for _, o := range t.Options {
			s.AnyOf = append(s.AnyOf, e.node(o))
		}
		return s
	case *rule.ArrayRule:
		s := &Schema{Type: "array", Items: e.node(t.Elem)}
		if t.MinItems > 0 {
			n := t.MinItems
			s.MinItems = &n
		}
		return s
	case *rule.UniqueRule:
		s := e.node(t.Inner)
		s.UniqueItems = true
		return s
	case *rule.ExcludeRule:
		s := e.node(t.Inner)
		s.Not = excluded(t.Values)
		return s
	case *rule.RecordRule:
		return &Schema{
			Type:                 "object",
			PropertyNames:        &Schema{Type: "string"},
			AdditionalProperties: e.node(t.Value),
		}
	case *rule.ObjectRule:
		s := &Schema{
			Type:                 "object",
			Properties:           make(map[string]*Schema, len(t.Fields)),
			AdditionalProperties: False(),
		}
		for _, f := range t.Fields {
			s.Properties[f.Name] = e.node(f.Rule)
			if e.required(f.Rule) {
				s.Required = append(s.Required, f.Name)
			}
		}
		return s
	}
	// Unknown rule types carry no structural information.
	return &Schema{}
}

func (e *exporter) required(r rule.Rule) bool {
	if !rule.IsOptional(r) {
		return true
	}
	if e.opts.IO != IOOutput {
		return false
	}
	// Normalized documents always carry defaulted fields.
	_, keep := rule.DefaultOf(r)
	return keep
}

func excluded(values []any) *Schema {
	if len(values) == 1 {
		raw, _ := json.Marshal(values[0])
		return &Schema{Const: raw}
	}
	return &Schema{Enum: values}
}
