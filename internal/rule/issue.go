package rule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind classifies a validation issue.
type Kind string

const (
	// KindStructural: value present but of the wrong shape or type.
	KindStructural Kind = "structural"
	// KindUnknownKey: closed object carries a key outside its field set.
	KindUnknownKey Kind = "unknown_key"
	// KindMissingRequired: required field absent.
	KindMissingRequired Kind = "missing_required"
	// KindValueConstraint: well-shaped value failing a refinement
	// (pattern, range, uniqueness, excluded value, length).
	KindValueConstraint Kind = "value_constraint"
	// KindUnionExhausted: value matched none of the union alternatives.
	KindUnionExhausted Kind = "union_exhausted"
)

// Path locates a value inside a document. Elements are either string
// object keys or int array indexes.
type Path []any

// Key returns a copy of p extended with an object key.
func (p Path) Key(k string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, k)
}

// Index returns a copy of p extended with an array index.
func (p Path) Index(i int) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, i)
}

var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// String renders the path as e.g. events[2].recurrence.byMonthDay.
// Keys that are not identifiers are rendered in bracket form:
// overrides["2024-01-01T09:00:00Z"].
func (p Path) String() string {
	var b strings.Builder
	for _, el := range p {
		switch v := el.(type) {
		case int:
			b.WriteString("[" + strconv.Itoa(v) + "]")
		case string:
			if !identRe.MatchString(v) {
				b.WriteString("[" + strconv.Quote(v) + "]")
				continue
			}
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(v)
		default:
			fmt.Fprintf(&b, "[%v]", v)
		}
	}
	return b.String()
}

func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Issue is a single diagnostic.
type Issue struct {
	Path    Path   `json:"path"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	// Key is the offending key for KindUnknownKey issues.
	Key string `json:"key,omitempty"`
	// Alternatives holds the per-alternative issues of a KindUnionExhausted
	// issue, in the order the alternatives were tried.
	Alternatives []Issues `json:"-"`
}

func (i Issue) Error() string {
	p := i.Path.String()
	if p == "" {
		p = "<root>"
	}
	return p + ": " + i.Message
}

// Issues is an ordered list of diagnostics.
type Issues []Issue

func (is Issues) Messages() []string {
	out := make([]string, len(is))
	for i, issue := range is {
		out[i] = issue.Error()
	}
	return out
}

// At returns the issues whose rendered path equals path.
func (is Issues) At(path string) Issues {
	var out Issues
	for _, issue := range is {
		if issue.Path.String() == path {
			out = append(out, issue)
		}
	}
	return out
}

// ValidationError wraps a non-empty Issues list as an error.
type ValidationError struct {
	Issues Issues
}

func (e *ValidationError) Error() string {
	switch len(e.Issues) {
	case 0:
		return "validation failed"
	case 1:
		return "validation failed: " + e.Issues[0].Error()
	default:
		return fmt.Sprintf("validation failed: %s (and %d more)", e.Issues[0].Error(), len(e.Issues)-1)
	}
}

func issue(path Path, kind Kind, format string, args ...any) Issues {
	return Issues{{Path: path, Kind: kind, Message: fmt.Sprintf(format, args...)}}
}
