package model

import (
	"github.com/google/uuid"
)

// Calendar is the root of a validated JSON Calendar document. Values are
// produced by calendar.Validate with all defaults filled in.
type Calendar struct {
	ID         *uuid.UUID     `json:"id,omitempty"`
	Name       string         `json:"name,omitempty"`
	Color      string         `json:"color,omitempty"` // #RRGGBB
	Private    bool           `json:"private"`
	Events     []Event        `json:"events"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Event is a single (possibly recurring) calendar entry.
//
// End is exclusive. Overrides are keyed by a string naming the recurrence
// instance they modify; the key format is left to producers.
type Event struct {
	ID          uuid.UUID           `json:"id"`
	Title       string              `json:"title"`
	Description *string             `json:"description,omitempty"`
	Start       Temporal            `json:"start"`
	End         Temporal            `json:"end"`
	Private     bool                `json:"private"`
	Recurrence  *RecurrenceRule     `json:"recurrence,omitempty"`
	Overrides   map[string]Override `json:"overrides,omitempty"`
	Alarms      []DateTime          `json:"alarms,omitempty"`
	Extensions  map[string]any      `json:"extensions,omitempty"`
}

// Override replaces fields of one recurrence instance. Nil fields inherit
// from the parent Event.
type Override struct {
	Cancelled   *bool          `json:"cancelled,omitempty"`
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	Start       *Temporal      `json:"start,omitempty"`
	End         *Temporal      `json:"end,omitempty"`
	Private     *bool          `json:"private,omitempty"`
	Alarms      []DateTime     `json:"alarms,omitempty"`
	Extensions  map[string]any `json:"extensions,omitempty"`
}

type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
)

// Weekday is a two-letter RFC 5545 weekday code.
type Weekday string

const (
	Monday    Weekday = "MO"
	Tuesday   Weekday = "TU"
	Wednesday Weekday = "WE"
	Thursday  Weekday = "TH"
	Friday    Weekday = "FR"
	Saturday  Weekday = "SA"
	Sunday    Weekday = "SU"
)

// Frequencies and Weekdays list the allowed codes in canonical order.
var (
	Frequencies = []Frequency{Daily, Weekly, Monthly, Yearly}
	Weekdays    = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
)

// RecurrenceRule is the RFC 5545 RRULE subset carried by events.
// Count of zero means unbounded by count.
type RecurrenceRule struct {
	Frequency  Frequency `json:"frequency"`
	Interval   int       `json:"interval"`
	ByDay      []Weekday `json:"byDay,omitempty"`
	ByMonthDay []int     `json:"byMonthDay,omitempty"`
	ByMonth    []int     `json:"byMonth,omitempty"`
	Count      int       `json:"count,omitempty"`
	Until      *Temporal `json:"until,omitempty"`
}
