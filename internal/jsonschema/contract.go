package jsonschema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
)

// canonicalJSON is the published contract for JSON Calendar documents.
//
//go:embed schema.json
var canonicalJSON []byte

// Canonical returns the embedded published schema.
func Canonical() (*Schema, error) {
	return Parse(canonicalJSON)
}

// CanonicalJSON returns the embedded published schema bytes.
func CanonicalJSON() []byte {
	return slices.Clone(canonicalJSON)
}

// Parse decodes a schema document.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return &s, nil
}

// LoadFile reads a schema document from disk. "type" may be a single name
// or an array of names.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Mismatch is one incompatibility between a generated schema and the
// contract. Path is a JSON-pointer-like location in the contract.
type Mismatch struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (m Mismatch) String() string {
	return m.Path + ": " + m.Message
}

// CheckContract reports where generated diverges from canonical. Compared
// are the draft identifier, the required set of each object level, property
// presence and the type of each property where both sides declare one.
// Inlined and referenced forms are equivalent: $ref is resolved on both
// sides before comparing.
func CheckContract(generated, canonical *Schema) []Mismatch {
	c := &contractChecker{gen: generated, canon: canonical, seen: make(map[[2]*Schema]bool)}
	if generated.SchemaURI != canonical.SchemaURI {
		c.add("", fmt.Sprintf("draft identifier %q, contract has %q", generated.SchemaURI, canonical.SchemaURI))
	}
	c.compare("", generated, canonical)
	return c.out
}

type contractChecker struct {
	gen, canon *Schema
	seen       map[[2]*Schema]bool
	out        []Mismatch
}

func (c *contractChecker) add(path, msg string) {
	if path == "" {
		path = "/"
	}
	c.out = append(c.out, Mismatch{Path: path, Message: msg})
}

func (c *contractChecker) compare(path string, g, k *Schema) {
	g = g.Resolve(c.gen)
	k = k.Resolve(c.canon)
	if g == nil || k == nil || g.Bool != nil || k.Bool != nil {
		return
	}
	pair := [2]*Schema{g, k}
	if c.seen[pair] {
		return
	}
	c.seen[pair] = true

	if gt, kt := g.TypeSet(), k.TypeSet(); gt != nil && kt != nil && !sameSet(gt, kt) {
		c.add(path, fmt.Sprintf("type %q, contract has %q", strings.Join(sorted(gt), "|"), strings.Join(sorted(kt), "|")))
		return
	}

	if k.Properties != nil || k.Required != nil {
		if !sameSet(g.Required, k.Required) {
			c.add(path+"/required", fmt.Sprintf("required %v, contract has %v", sorted(g.Required), sorted(k.Required)))
		}
		for _, name := range sortedKeys(k.Properties) {
			gp, ok := g.Properties[name]
			if !ok {
				c.add(path+"/properties/"+name, "property missing")
				continue
			}
			c.compare(path+"/properties/"+name, gp, k.Properties[name])
		}
	}
	if g.Items != nil && k.Items != nil {
		c.compare(path+"/items", g.Items, k.Items)
	}
	if g.AdditionalProperties != nil && k.AdditionalProperties != nil {
		c.compare(path+"/additionalProperties", g.AdditionalProperties, k.AdditionalProperties)
	}
}

func sameSet(a, b []string) bool {
	return slices.Equal(sorted(a), sorted(b))
}

func sorted(s []string) []string {
	out := slices.Clone(s)
	slices.Sort(out)
	if out == nil {
		return []string{}
	}
	return out
}

func sortedKeys(m map[string]*Schema) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// FormatMismatches renders mismatches one per line.
func FormatMismatches(ms []Mismatch) string {
	lines := make([]string, len(ms))
	for i, m := range ms {
		lines[i] = m.String()
	}
	return strings.Join(lines, "\n")
}
