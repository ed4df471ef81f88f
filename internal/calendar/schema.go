// Package calendar defines the JSON Calendar document schema and validates
// documents against it.
package calendar

import (
	"jsoncal/internal/model"
	"jsoncal/internal/rule"
)

// Shared fragments. Each is referenced from several places in the graph
// and is emitted once by the schema exporter.
var (
	DateTimeValue = rule.Define("DateTime", "ISO-8601 date-time string", rule.DateTime())
	DateValue     = rule.Define("Date", "Date in YYYY-MM-DD format", rule.Date())
	Alarm         = rule.Define("Alarm", "Alarm timestamp", DateTimeValue)

	// TemporalValue tries date-time first, then date.
	TemporalValue = rule.Define("Temporal", "", rule.Union(DateTimeValue, DateValue))

	Extensions = rule.Define("Extensions", "Free-form extension data", rule.Record(rule.Any()))
)

// RecurrenceRule is the RFC 5545 subset accepted in Event.recurrence.
var RecurrenceRule = rule.Define("RecurrenceRule", "Recurrence rule object", rule.ClosedObject(
	rule.F("frequency", rule.Enum(frequencyCodes()...)),
	rule.F("interval", rule.Default(rule.IntMin(1), int64(1))),
	rule.F("byDay", rule.Optional(rule.Unique(
		rule.Array(rule.Enum(weekdayCodes()...)),
		"byDay values must be unique"))),
	// Zero is excluded separately from the range: month-day numbering
	// has no day zero.
	rule.F("byMonthDay", rule.Optional(rule.Unique(
		rule.Array(rule.Exclude(rule.IntRange(-31, 31), "0 is not allowed", int64(0))),
		"byMonthDay values must be unique"))),
	rule.F("byMonth", rule.Optional(rule.Unique(
		rule.Array(rule.IntRange(1, 12)),
		"byMonth values must be unique"))),
	rule.F("count", rule.Optional(rule.IntMin(1))),
	rule.F("until", rule.Optional(TemporalValue)),
))

// Override holds per-instance changes to a recurring event.
var Override = rule.Define("Override", "Per-instance overrides for recurring events", rule.ClosedObject(
	rule.F("cancelled", rule.Optional(rule.Bool())),
	rule.F("title", rule.Optional(rule.String())),
	rule.F("description", rule.Optional(rule.String())),
	rule.F("start", rule.Optional(TemporalValue)),
	rule.F("end", rule.Optional(TemporalValue)),
	rule.F("private", rule.Optional(rule.Bool())),
	rule.F("alarms", rule.Optional(rule.Array(Alarm))),
	rule.F("extensions", rule.Optional(Extensions)),
))

var Event = rule.Define("Event", "Event object", rule.ClosedObject(
	rule.F("id", rule.Describe(rule.UUID(), "Event UUID")),
	rule.F("title", rule.Describe(rule.NonEmptyString(), "Human-readable event title")),
	rule.F("description", rule.Optional(rule.Describe(rule.String(), "Event description"))),
	rule.F("start", rule.Describe(TemporalValue, "Event start")),
	rule.F("end", rule.Describe(TemporalValue, "Event end (exclusive)")),
	rule.F("private", rule.Optional(rule.Default(rule.Bool(), false))),
	rule.F("recurrence", rule.Optional(RecurrenceRule)),
	rule.F("overrides", rule.Optional(rule.Record(Override))),
	rule.F("alarms", rule.Optional(rule.Array(Alarm))),
	rule.F("extensions", rule.Optional(Extensions)),
))

// Calendar is the root document.
var Calendar = rule.Define("Calendar", "JSON Calendar v0.1 root object", rule.ClosedObject(
	rule.F("id", rule.Optional(rule.Describe(rule.UUID(), "Calendar UUID"))),
	rule.F("name", rule.Optional(rule.Describe(rule.NonEmptyString(), "Calendar name"))),
	rule.F("color", rule.Optional(rule.Describe(rule.HexColor(), "Hex color #RRGGBB"))),
	rule.F("private", rule.Optional(rule.Default(rule.Bool(), false))),
	rule.F("events", rule.Describe(rule.NonEmptyArray(Event), "Array of events")),
	rule.F("extensions", rule.Optional(Extensions)),
))

func frequencyCodes() []string {
	out := make([]string, len(model.Frequencies))
	for i, f := range model.Frequencies {
		out[i] = string(f)
	}
	return out
}

func weekdayCodes() []string {
	out := make([]string, len(model.Weekdays))
	for i, d := range model.Weekdays {
		out[i] = string(d)
	}
	return out
}
