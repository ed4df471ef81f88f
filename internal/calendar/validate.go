package calendar

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"

	"jsoncal/internal/model"
	"jsoncal/internal/rule"
)

// Options controls validation.
type Options struct {
	// FailFast keeps only the first issue. By default every issue is
	// reported in document order.
	FailFast bool
}

// Validate checks an already-decoded document (map[string]any tree) and
// returns the normalized Calendar. Any failure, including a nil or
// non-object input, is reported as a *rule.ValidationError.
func Validate(input any) (*model.Calendar, error) {
	return ValidateWith(input, Options{})
}

// ValidateWith is Validate with explicit options.
func ValidateWith(input any, opts Options) (*model.Calendar, error) {
	doc, err := NormalizeWith(input, opts)
	if err != nil {
		return nil, err
	}
	return decode(doc)
}

// Normalize returns the validated document tree with defaults applied and
// integers normalized to int64.
func Normalize(input any) (map[string]any, error) {
	return NormalizeWith(input, Options{})
}

func NormalizeWith(input any, opts Options) (map[string]any, error) {
	if input == nil {
		return nil, invalid(rule.KindMissingRequired, "document is missing")
	}
	out, issues := Calendar.Check(input, nil)
	if len(issues) > 0 {
		if opts.FailFast {
			issues = issues[:1]
		}
		return nil, &rule.ValidationError{Issues: issues}
	}
	return out.(map[string]any), nil
}

// ValidateJSON decodes and validates a JSON document. Syntax errors are
// reported as a root-level structural issue.
func ValidateJSON(data []byte, opts Options) (*model.Calendar, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, invalid(rule.KindStructural, "invalid JSON: "+err.Error())
	}
	if dec.More() {
		return nil, invalid(rule.KindStructural, "invalid JSON: trailing data after document")
	}
	return ValidateWith(v, opts)
}

// ValidateYAML decodes and validates a YAML document.
func ValidateYAML(data []byte, opts Options) (*model.Calendar, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, invalid(rule.KindStructural, "invalid YAML: "+err.Error())
	}
	return ValidateWith(v, opts)
}

func invalid(kind rule.Kind, message string) error {
	return &rule.ValidationError{Issues: rule.Issues{{Kind: kind, Message: message}}}
}

// decode maps a normalized tree onto the model types. Extension values
// that have no JSON form (e.g. YAML maps with non-string keys) fail here.
func decode(doc map[string]any) (*model.Calendar, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, invalid(rule.KindStructural, "document is not representable as JSON: "+err.Error())
	}
	var cal model.Calendar
	if err := json.Unmarshal(data, &cal); err != nil {
		return nil, invalid(rule.KindStructural, "document does not map onto the calendar model: "+err.Error())
	}
	return &cal, nil
}
