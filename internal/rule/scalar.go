package rule

import (
	"encoding/json"
	"math"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Format names a string format understood by the schema exporter.
type Format string

const (
	FormatNone     Format = ""
	FormatDateTime Format = "date-time"
	FormatUUID     Format = "uuid"
)

var (
	// DateTimePattern is the ISO-8601 date-time grammar accepted by
	// DateTime: UTC designator required, seconds and fractions optional.
	DateTimePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T(?:[01]\d|2[0-3]):[0-5]\d(?::[0-5]\d(?:\.\d+)?)?Z$`)
	// DatePattern matches YYYY-MM-DD.
	DatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	// UUIDPattern matches RFC 9562 UUIDs (versions 1-8) plus the nil and
	// max UUIDs, in hyphenated form.
	UUIDPattern = regexp.MustCompile(`^(?:[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-8][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}|00000000-0000-0000-0000-000000000000|[fF]{8}-[fF]{4}-[fF]{4}-[fF]{4}-[fF]{12})$`)
	// HexColorPattern matches #RRGGBB.
	HexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

// formatCheckers run after the pattern matched.
var formatCheckers = map[Format]func(string) bool{
	FormatDateTime: validCalendarDate,
}

// formatNormalizers rewrite an accepted value into its canonical spelling.
var formatNormalizers = map[Format]func(string) string{
	FormatUUID: canonicalUUID,
}

// canonicalUUID lowercases a UUID that already matched UUIDPattern.
func canonicalUUID(s string) string {
	return uuid.MustParse(s).String()
}

// validCalendarDate rejects dates such as 2023-02-30 whose shape is fine.
func validCalendarDate(s string) bool {
	if len(s) < 10 {
		return false
	}
	_, err := time.Parse(time.DateOnly, s[:10])
	return err == nil
}

// StringRule validates strings.
type StringRule struct {
	MinLength int
	Pattern   *regexp.Regexp
	Format    Format
	// Message replaces the default pattern/format failure message.
	Message string
}

func String() *StringRule {
	return &StringRule{}
}

// NonEmptyString requires at least one character.
func NonEmptyString() *StringRule {
	return &StringRule{MinLength: 1}
}

func DateTime() *StringRule {
	return &StringRule{Pattern: DateTimePattern, Format: FormatDateTime, Message: "Invalid ISO-8601 date-time"}
}

func Date() *StringRule {
	return &StringRule{Pattern: DatePattern, Message: "Invalid date format (YYYY-MM-DD)"}
}

func UUID() *StringRule {
	return &StringRule{Pattern: UUIDPattern, Format: FormatUUID, Message: "Invalid UUID"}
}

func HexColor() *StringRule {
	return &StringRule{Pattern: HexColorPattern, Message: "Invalid hex color (#RRGGBB)"}
}

func (s *StringRule) Check(v any, path Path) (any, Issues) {
	str, ok := v.(string)
	if !ok {
		return nil, issue(path, KindStructural, "expected string, received %s", typeName(v))
	}
	if n := utf8.RuneCountInString(str); n < s.MinLength {
		return nil, issue(path, KindValueConstraint, "string must contain at least %d character(s)", s.MinLength)
	}
	if s.Pattern != nil && !s.Pattern.MatchString(str) {
		return nil, issue(path, KindValueConstraint, "%s", s.failure())
	}
	if check := formatCheckers[s.Format]; check != nil && !check(str) {
		return nil, issue(path, KindValueConstraint, "%s", s.failure())
	}
	if norm := formatNormalizers[s.Format]; norm != nil {
		return norm(str), nil
	}
	return str, nil
}

func (s *StringRule) failure() string {
	if s.Message != "" {
		return s.Message
	}
	if s.Format != FormatNone {
		return "Invalid " + string(s.Format)
	}
	return "string does not match pattern " + s.Pattern.String()
}

// IntRule validates integers within optional inclusive bounds. Accepted
// inputs are Go integer types, integral floats and json.Number; the
// normalized value is always int64.
type IntRule struct {
	Min *int64
	Max *int64
}

func Int() *IntRule {
	return &IntRule{}
}

func IntRange(lo, hi int64) *IntRule {
	return &IntRule{Min: &lo, Max: &hi}
}

func IntMin(lo int64) *IntRule {
	return &IntRule{Min: &lo}
}

func (r *IntRule) Check(v any, path Path) (any, Issues) {
	n, kind, ok := toInt64(v)
	if !ok {
		if kind == "number" {
			return nil, issue(path, KindStructural, "expected integer, received number")
		}
		return nil, issue(path, KindStructural, "expected integer, received %s", kind)
	}
	if r.Min != nil && n < *r.Min {
		return nil, issue(path, KindValueConstraint, "number must be greater than or equal to %d", *r.Min)
	}
	if r.Max != nil && n > *r.Max {
		return nil, issue(path, KindValueConstraint, "number must be less than or equal to %d", *r.Max)
	}
	return n, nil
}

func toInt64(v any) (int64, string, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), "", true
	case int64:
		return n, "", true
	case int32:
		return int64(n), "", true
	case float64:
		return floatToInt64(n)
	case float32:
		return floatToInt64(float64(n))
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, "", true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, "number", false
		}
		return floatToInt64(f)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), "", true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Uint() > math.MaxInt64 {
			return 0, "number", false
		}
		return int64(rv.Uint()), "", true
	}
	return 0, typeName(v), false
}

func floatToInt64(f float64) (int64, string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, "number", false
	}
	return int64(f), "", true
}

// EnumRule accepts one of a closed set of strings.
type EnumRule struct {
	Values []string
}

func Enum(values ...string) *EnumRule {
	return &EnumRule{Values: values}
}

func (e *EnumRule) Check(v any, path Path) (any, Issues) {
	str, ok := v.(string)
	if !ok {
		return nil, issue(path, KindStructural, "expected string, received %s", typeName(v))
	}
	if !slices.Contains(e.Values, str) {
		return nil, issue(path, KindValueConstraint, "invalid option: expected one of %s", quoteJoin(e.Values))
	}
	return str, nil
}

// BoolRule and AnyRule are not zero-sized so that every allocation is a
// distinct node in the rule graph.
type BoolRule struct {
	_ byte
}

func Bool() *BoolRule {
	return &BoolRule{}
}

func (*BoolRule) Check(v any, path Path) (any, Issues) {
	b, ok := v.(bool)
	if !ok {
		return nil, issue(path, KindStructural, "expected boolean, received %s", typeName(v))
	}
	return b, nil
}

// AnyRule accepts every value unchanged.
type AnyRule struct {
	_ byte
}

func Any() *AnyRule {
	return &AnyRule{}
}

func (*AnyRule) Check(v any, _ Path) (any, Issues) {
	return v, nil
}

func quoteJoin(values []string) string {
	q := make([]string, len(values))
	for i, v := range values {
		q[i] = `"` + v + `"`
	}
	return strings.Join(q, "|")
}

// typeName names the JSON type of a decoded value, or the Go type of
// anything that is not part of a decoded tree.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64, float32, int, int64, int32, json.Number:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		return "object"
	case reflect.Struct, reflect.Pointer:
		// Typed Go values are not decoded documents.
		return "Go value " + rv.Type().String()
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Uint, reflect.Uint8,
		reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "number"
	}
	return "unknown"
}
