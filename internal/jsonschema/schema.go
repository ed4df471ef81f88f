// Package jsonschema projects rule graphs into JSON Schema documents and
// checks generated documents against a published contract.
package jsonschema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Schema is a JSON Schema node. Boolean schemas (true/false) are
// represented by Bool.
type Schema struct {
	SchemaURI   string `json:"$schema,omitempty"`
	ID          string `json:"$id,omitempty"`
	Ref         string `json:"$ref,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	// Type holds a single type name. A "type" array decodes into Types
	// instead, unless it has exactly one element.
	Type    string          `json:"type,omitempty"`
	Types   []string        `json:"-"`
	Format  string          `json:"format,omitempty"`
	Pattern string          `json:"pattern,omitempty"`
	Enum    []any           `json:"enum,omitempty"`
	Const   json.RawMessage `json:"const,omitempty"`
	Default json.RawMessage `json:"default,omitempty"`

	MinLength *int   `json:"minLength,omitempty"`
	Minimum   *int64 `json:"minimum,omitempty"`
	Maximum   *int64 `json:"maximum,omitempty"`

	Items       *Schema `json:"items,omitempty"`
	MinItems    *int    `json:"minItems,omitempty"`
	UniqueItems bool    `json:"uniqueItems,omitempty"`

	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	PropertyNames        *Schema            `json:"propertyNames,omitempty"`
	AdditionalProperties *Schema            `json:"additionalProperties,omitempty"`

	AnyOf []*Schema `json:"anyOf,omitempty"`
	Not   *Schema   `json:"not,omitempty"`

	Defs        map[string]*Schema `json:"$defs,omitempty"`
	Definitions map[string]*Schema `json:"definitions,omitempty"`

	// Bool, when set, makes the node the boolean schema true or false.
	Bool *bool `json:"-"`
}

// False returns the boolean schema that rejects everything.
func False() *Schema {
	b := false
	return &Schema{Bool: &b}
}

type schemaAlias Schema

func (s *Schema) MarshalJSON() ([]byte, error) {
	if s.Bool != nil {
		return json.Marshal(*s.Bool)
	}
	if len(s.Types) == 0 {
		return json.Marshal((*schemaAlias)(s))
	}
	return json.Marshal(struct {
		*schemaAlias
		Type []string `json:"type"`
	}{(*schemaAlias)(s), s.Types})
}

func (s *Schema) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch string(trimmed) {
	case "true", "false":
		b := string(trimmed) == "true"
		*s = Schema{Bool: &b}
		return nil
	}

	*s = Schema{}
	aux := struct {
		*schemaAlias
		Type json.RawMessage `json:"type,omitempty"`
	}{schemaAlias: (*schemaAlias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	raw := bytes.TrimSpace(aux.Type)
	switch {
	case len(raw) == 0:
	case raw[0] == '[':
		if err := json.Unmarshal(raw, &s.Types); err != nil {
			return fmt.Errorf("type: %w", err)
		}
		if len(s.Types) == 1 {
			s.Type, s.Types = s.Types[0], nil
		}
	default:
		if err := json.Unmarshal(raw, &s.Type); err != nil {
			return fmt.Errorf("type: %w", err)
		}
	}
	return nil
}

// TypeSet returns the declared type names, nil when the node declares none.
func (s *Schema) TypeSet() []string {
	if len(s.Types) > 0 {
		return s.Types
	}
	if s.Type != "" {
		return []string{s.Type}
	}
	return nil
}

// Resolve follows local $ref pointers (#/$defs/x, #/definitions/x) against
// root until it reaches a node without a $ref. Unresolvable references
// return the referencing node.
func (s *Schema) Resolve(root *Schema) *Schema {
	cur := s
	for i := 0; cur != nil && cur.Ref != "" && i < 32; i++ {
		next := root.lookup(cur.Ref)
		if next == nil {
			return cur
		}
		cur = next
	}
	return cur
}

func (s *Schema) lookup(ref string) *Schema {
	switch {
	case strings.HasPrefix(ref, "#/$defs/"):
		return s.Defs[strings.TrimPrefix(ref, "#/$defs/")]
	case strings.HasPrefix(ref, "#/definitions/"):
		return s.Definitions[strings.TrimPrefix(ref, "#/definitions/")]
	case ref == "#":
		return s
	}
	return nil
}

// JSON renders s as indented JSON.
func (s *Schema) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
