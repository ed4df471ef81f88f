package jsonschema

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"jsoncal/internal/calendar"
	"jsoncal/internal/rule"
)

func exportCalendar(t *testing.T, opts Options) *Schema {
	t.Helper()
	s := Export(calendar.Calendar, opts)
	// Round-trip through JSON so tests see what consumers see.
	data, err := s.JSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return out
}

func TestExportMatchesCanonicalContract(t *testing.T) {
	canonical, err := Canonical()
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	for _, reused := range []Reused{ReusedRef, ReusedInline} {
		t.Run(string(reused), func(t *testing.T) {
			generated := exportCalendar(t, Options{Reused: reused})
			if generated.SchemaURI != canonical.SchemaURI {
				t.Errorf("$schema = %q, want %q", generated.SchemaURI, canonical.SchemaURI)
			}
			if diff := cmp.Diff(canonical.Required, generated.Required); diff != "" {
				t.Errorf("top-level required (-canonical +generated):\n%s", diff)
			}
			for name, want := range canonical.Properties {
				got, ok := generated.Properties[name]
				if !ok {
					t.Errorf("property %q missing", name)
					continue
				}
				if want.Type != "" && got.Type != "" && want.Type != got.Type {
					t.Errorf("property %q type = %q, want %q", name, got.Type, want.Type)
				}
			}
			if ms := CheckContract(generated, canonical); len(ms) != 0 {
				t.Errorf("contract mismatches:\n%s", FormatMismatches(ms))
			}
		})
	}
}

func TestExportIsIdempotent(t *testing.T) {
	a, err := Export(calendar.Calendar, Options{}).JSON()
	if err != nil {
		t.Fatal(err)
	}
	b, err := Export(calendar.Calendar, Options{}).JSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Error("repeated exports differ")
	}
}

func TestExportSharesReusedFragments(t *testing.T) {
	s := exportCalendar(t, Options{})
	for _, name := range []string{"DateTime", "Temporal", "Alarm", "Extensions"} {
		if _, ok := s.Defs[name]; !ok {
			t.Errorf("$defs missing %q; have %v", name, sortedKeys(s.Defs))
		}
	}
	// Used once: inlined.
	for _, name := range []string{"Date", "Event", "RecurrenceRule", "Override"} {
		if _, ok := s.Defs[name]; ok {
			t.Errorf("$defs unexpectedly contains %q", name)
		}
	}

	event := s.Properties["events"].Items
	start := event.Properties["start"]
	if start.Ref != "#/$defs/Temporal" || start.Description != "Event start" {
		t.Errorf("event start = %+v", start)
	}
	if got := event.Properties["alarms"].Items.Ref; got != "#/$defs/Alarm" {
		t.Errorf("event alarm ref = %q", got)
	}

	inline := exportCalendar(t, Options{Reused: ReusedInline})
	if len(inline.Defs) != 0 {
		t.Errorf("inline export has defs %v", sortedKeys(inline.Defs))
	}
	ev := inline.Properties["events"].Items
	if got := len(ev.Properties["start"].AnyOf); got != 2 {
		t.Errorf("inline start anyOf = %d, want 2", got)
	}
	if got := ev.Properties["start"].AnyOf[0].Format; got != "date-time" {
		t.Errorf("first alternative format = %q, want date-time", got)
	}
}

func TestExportObjectLevels(t *testing.T) {
	s := exportCalendar(t, Options{Reused: ReusedInline})

	if s.Type != "object" || s.AdditionalProperties == nil || s.AdditionalProperties.Bool == nil || *s.AdditionalProperties.Bool {
		t.Errorf("root must be a closed object: %+v", s)
	}
	event := s.Properties["events"].Items
	if diff := cmp.Diff([]string{"id", "title", "start", "end"}, event.Required); diff != "" {
		t.Errorf("event required (-want +got):\n%s", diff)
	}
	if string(event.Properties["private"].Default) != "false" {
		t.Errorf("event private default = %s", event.Properties["private"].Default)
	}
	if event.Properties["id"].Format != "uuid" {
		t.Errorf("event id format = %q", event.Properties["id"].Format)
	}

	rec := event.Properties["recurrence"]
	if diff := cmp.Diff([]string{"frequency"}, rec.Required); diff != "" {
		t.Errorf("recurrence required (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"DAILY", "WEEKLY", "MONTHLY", "YEARLY"}, rec.Properties["frequency"].Enum); diff != "" {
		t.Errorf("frequency enum (-want +got):\n%s", diff)
	}
	monthDay := rec.Properties["byMonthDay"]
	if !monthDay.UniqueItems || monthDay.Items.Type != "integer" {
		t.Errorf("byMonthDay = %+v", monthDay)
	}
	if *monthDay.Items.Minimum != -31 || *monthDay.Items.Maximum != 31 || string(monthDay.Items.Not.Const) != "0" {
		t.Errorf("byMonthDay items = %+v", monthDay.Items)
	}
	if string(rec.Properties["interval"].Default) != "1" {
		t.Errorf("interval default = %s", rec.Properties["interval"].Default)
	}

	override := event.Properties["overrides"]
	if override.Type != "object" || override.PropertyNames.Type != "string" {
		t.Errorf("overrides = %+v", override)
	}
	if len(override.AdditionalProperties.Required) != 0 || override.AdditionalProperties.Properties["cancelled"].Type != "boolean" {
		t.Errorf("override = %+v", override.AdditionalProperties)
	}
}

func TestExportOutputIO(t *testing.T) {
	s := exportCalendar(t, Options{IO: IOOutput, Reused: ReusedInline})
	if diff := cmp.Diff([]string{"private", "events"}, s.Required); diff != "" {
		t.Errorf("root required (-want +got):\n%s", diff)
	}
	rec := s.Properties["events"].Items.Properties["recurrence"]
	if diff := cmp.Diff([]string{"frequency", "interval"}, rec.Required); diff != "" {
		t.Errorf("recurrence required (-want +got):\n%s", diff)
	}

	canonical, err := Canonical()
	if err != nil {
		t.Fatal(err)
	}
	if ms := CheckContract(s, canonical); len(ms) == 0 {
		t.Error("output schema should not satisfy the input contract")
	}
}

func TestExportDraft07(t *testing.T) {
	s := exportCalendar(t, Options{Target: Draft07})
	if s.SchemaURI != "http://json-schema.org/draft-07/schema#" {
		t.Errorf("$schema = %q", s.SchemaURI)
	}
	if len(s.Defs) != 0 || len(s.Definitions) == 0 {
		t.Errorf("draft-07 must use definitions: defs=%v definitions=%v", sortedKeys(s.Defs), sortedKeys(s.Definitions))
	}
	start := s.Properties["events"].Items.Properties["start"]
	if start.Ref != "#/definitions/Temporal" {
		t.Errorf("start ref = %q", start.Ref)
	}
	if dt := s.Definitions["DateTime"]; dt == nil || dt.Format != "" || dt.Pattern == "" {
		t.Errorf("draft-07 DateTime = %+v, want pattern without format", dt)
	}

	canonical, err := Canonical()
	if err != nil {
		t.Fatal(err)
	}
	ms := CheckContract(s, canonical)
	if len(ms) != 1 || ms[0].Path != "/" {
		t.Errorf("want a single draft mismatch, got:\n%s", FormatMismatches(ms))
	}
}

func TestExportUnnamedSharedRule(t *testing.T) {
	shared := rule.IntRange(1, 5)
	root := rule.ClosedObject(rule.F("a", shared), rule.F("b", rule.Optional(shared)))
	s := Export(root, Options{})
	if len(s.Defs) != 1 {
		t.Fatalf("defs = %v", sortedKeys(s.Defs))
	}
	ref := s.Properties["a"].Ref
	if ref == "" || ref != s.Properties["b"].Ref {
		t.Errorf("a=%q b=%q should reference the same definition", ref, s.Properties["b"].Ref)
	}
	if diff := cmp.Diff([]string{"a"}, s.Required); diff != "" {
		t.Errorf("required (-want +got):\n%s", diff)
	}
}

func TestCheckContractDetectsChanges(t *testing.T) {
	canonical, err := Canonical()
	if err != nil {
		t.Fatal(err)
	}
	generated := exportCalendar(t, Options{})
	generated.Required = append(generated.Required, "name")
	generated.Properties["color"] = &Schema{Type: "integer"}
	delete(generated.Properties, "extensions")

	got := CheckContract(generated, canonical)
	var paths []string
	for _, m := range got {
		paths = append(paths, m.Path)
	}
	want := []string{"/required", "/properties/color", "/properties/extensions"}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("mismatch paths (-want +got):\n%s", diff)
	}
}

func TestSchemaBooleanRoundTrip(t *testing.T) {
	var s Schema
	if err := json.Unmarshal([]byte(`{"type":"object","additionalProperties":false}`), &s); err != nil {
		t.Fatal(err)
	}
	if s.AdditionalProperties.Bool == nil || *s.AdditionalProperties.Bool {
		t.Fatalf("additionalProperties = %+v", s.AdditionalProperties)
	}
	data, err := json.Marshal(&s)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"type":"object","additionalProperties":false}` {
		t.Errorf("marshal = %s", data)
	}
}

func TestSchemaTypeArray(t *testing.T) {
	canonical, err := Parse([]byte(`{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"properties": {
			"name": {"type": ["string", "null"]},
			"color": {"type": ["string"]},
			"private": {"type": "boolean"}
		}
	}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if diff := cmp.Diff([]string{"string", "null"}, canonical.Properties["name"].TypeSet()); diff != "" {
		t.Errorf("name types (-want +got):\n%s", diff)
	}
	if got := canonical.Properties["color"]; got.Type != "string" || got.Types != nil {
		t.Errorf("single-element array = %+v", got)
	}

	data, err := json.Marshal(canonical.Properties["name"])
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"type":["string","null"]}` {
		t.Errorf("marshal = %s", data)
	}

	generated := &Schema{
		SchemaURI: canonical.SchemaURI,
		Type:      "object",
		Properties: map[string]*Schema{
			"name":    {Types: []string{"null", "string"}},
			"color":   {Type: "string"},
			"private": {Type: "boolean"},
		},
	}
	if ms := CheckContract(generated, canonical); len(ms) != 0 {
		t.Errorf("equal type sets reported: %s", FormatMismatches(ms))
	}

	generated.Properties["name"] = &Schema{Type: "string"}
	ms := CheckContract(generated, canonical)
	want := []Mismatch{{Path: "/properties/name", Message: `type "string", contract has "null|string"`}}
	if diff := cmp.Diff(want, ms); diff != "" {
		t.Errorf("mismatches (-want +got):\n%s", diff)
	}
}
