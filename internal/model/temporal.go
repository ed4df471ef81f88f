package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// DateTime is an ISO-8601 UTC date-time string, e.g. 2024-01-01T09:00:00Z.
type DateTime string

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
}

// Time parses d.
func (d DateTime) Time() (time.Time, error) {
	var err error
	for _, layout := range dateTimeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, string(d)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// Temporal is a point in time at either date-time or date precision.
// It encodes as the bare string it was decoded from.
type Temporal struct {
	Value    string
	DateOnly bool
}

// NewDate returns a date-precision Temporal (YYYY-MM-DD).
func NewDate(s string) Temporal {
	return Temporal{Value: s, DateOnly: true}
}

// NewDateTime returns a date-time-precision Temporal.
func NewDateTime(s string) Temporal {
	return Temporal{Value: s}
}

// Time parses t. Dates resolve to midnight UTC.
func (t Temporal) Time() (time.Time, error) {
	if t.DateOnly {
		return time.Parse(time.DateOnly, t.Value)
	}
	return DateTime(t.Value).Time()
}

func (t Temporal) String() string {
	return t.Value
}

func (t Temporal) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Value)
}

func (t *Temporal) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return errors.New("temporal value is empty")
	}
	t.Value = s
	t.DateOnly = !strings.Contains(s, "T")
	return nil
}
