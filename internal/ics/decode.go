package ics

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	appLog "jsoncal/internal/log"
	"jsoncal/internal/model"
)

// Decode parses an RFC 5545 payload into a raw JSON Calendar document
// suitable for calendar.Validate. Decode only maps structure; constraint
// checking is left to validation, so e.g. an HOURLY RRULE decodes and is
// then reported as an invalid frequency.
//
//   - UIDs that are not UUIDs map to UUIDv5 in the URL namespace.
//   - VEVENTs carrying RECURRENCE-ID become overrides of the VEVENT with the
//     same UID, keyed by the RECURRENCE-ID value.
//   - RRULE parts the document cannot represent are dropped with a warning.
//   - Only absolute (DATE-TIME) alarm triggers are kept.
func Decode(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	doc := map[string]any{}
	for _, p := range cal.CalendarProperties {
		switch p.IANAToken {
		case string(ical.PropertyXWRCalName):
			doc["name"] = p.Value
		case string(ical.PropertyColor):
			doc["color"] = p.Value
		case string(ical.PropertyXWRCalID):
			doc["id"] = uidToUUID(p.Value)
		case propertyPrivate:
			doc["private"] = strings.EqualFold(p.Value, "TRUE")
		}
	}

	var (
		events   []any
		byUID    = map[string]map[string]any{}
		children []*ical.VEvent
	)
	for _, ve := range cal.Events() {
		if ve.GetProperty(ical.ComponentPropertyRecurrenceId) != nil {
			children = append(children, ve)
			continue
		}
		uid := ve.Id()
		if uid == "" {
			return nil, errors.New("VEVENT without UID")
		}
		ev, err := decodeEvent(ve)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", uid, err)
		}
		byUID[uid] = ev
		events = append(events, ev)
	}

	for _, ve := range children {
		uid := ve.Id()
		parent, ok := byUID[uid]
		if !ok {
			appLog.Warn("ics decode: override without parent event, skipped", "uid", uid)
			continue
		}
		key, err := propTemporal(ve.GetProperty(ical.ComponentPropertyRecurrenceId))
		if err != nil {
			return nil, fmt.Errorf("event %s: RECURRENCE-ID: %w", uid, err)
		}
		ov, err := decodeOverride(ve)
		if err != nil {
			return nil, fmt.Errorf("event %s override %s: %w", uid, key, err)
		}
		overrides, _ := parent["overrides"].(map[string]any)
		if overrides == nil {
			overrides = map[string]any{}
			parent["overrides"] = overrides
		}
		overrides[key] = ov
	}

	if events == nil {
		events = []any{}
	}
	doc["events"] = events
	appLog.Debug("ics decode completed", "event_count", len(events), "override_count", len(children))
	return doc, nil
}

func decodeEvent(ve *ical.VEvent) (map[string]any, error) {
	ev := map[string]any{"id": uidToUUID(ve.Id())}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev["title"] = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		ev["description"] = p.Value
	}

	start, err := propTemporal(ve.GetProperty(ical.ComponentPropertyDtStart))
	if err != nil {
		return nil, fmt.Errorf("DTSTART: %w", err)
	}
	ev["start"] = start

	// Without DTEND a date event lasts one day and a date-time event is
	// instantaneous.
	if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
		end, err := propTemporal(p)
		if err != nil {
			return nil, fmt.Errorf("DTEND: %w", err)
		}
		ev["end"] = end
	} else if t, err := time.Parse(time.DateOnly, start); err == nil {
		ev["end"] = t.AddDate(0, 0, 1).Format(time.DateOnly)
	} else {
		ev["end"] = start
	}

	if p := ve.GetProperty(ical.ComponentPropertyClass); p != nil {
		ev["private"] = strings.EqualFold(p.Value, string(ical.ClassificationPrivate))
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		rec, err := decodeRRule(ve.Id(), p.Value)
		if err != nil {
			return nil, fmt.Errorf("RRULE: %w", err)
		}
		ev["recurrence"] = rec
	}

	if alarms := decodeAlarms(ve); len(alarms) > 0 {
		ev["alarms"] = alarms
	}
	return ev, nil
}

func decodeOverride(ve *ical.VEvent) (map[string]any, error) {
	ov := map[string]any{}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil {
		ov["cancelled"] = strings.EqualFold(p.Value, string(ical.ObjectStatusCancelled))
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ov["title"] = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		ov["description"] = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		v, err := propTemporal(p)
		if err != nil {
			return nil, fmt.Errorf("DTSTART: %w", err)
		}
		ov["start"] = v
	}
	if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
		v, err := propTemporal(p)
		if err != nil {
			return nil, fmt.Errorf("DTEND: %w", err)
		}
		ov["end"] = v
	}
	if p := ve.GetProperty(ical.ComponentPropertyClass); p != nil {
		ov["private"] = strings.EqualFold(p.Value, string(ical.ClassificationPrivate))
	}
	if alarms := decodeAlarms(ve); len(alarms) > 0 {
		ov["alarms"] = alarms
	}
	return ov, nil
}

func decodeAlarms(ve *ical.VEvent) []any {
	var out []any
	for _, a := range ve.Alarms() {
		p := a.GetProperty(ical.ComponentPropertyTrigger)
		if p == nil {
			continue
		}
		if !hasValueType(p, ical.ValueDataTypeDateTime) {
			appLog.Warn("ics decode: relative alarm trigger dropped", "uid", ve.Id(), "trigger", p.Value)
			continue
		}
		t, err := parseICSTime(p.Value, "")
		if err != nil {
			appLog.Warn("ics decode: unreadable alarm trigger dropped", "uid", ve.Id(), "trigger", p.Value)
			continue
		}
		out = append(out, t.UTC().Format(time.RFC3339Nano))
	}
	return out
}

// decodeRRule maps an RRULE value onto the recurrence object. Parts with no
// counterpart in the document are dropped with a warning.
func decodeRRule(uid, value string) (map[string]any, error) {
	opt, err := rrule.StrToROption(value)
	if err != nil {
		return nil, err
	}

	rec := map[string]any{"frequency": opt.Freq.String()}
	// Explicit parts are kept as written, zero included, so that
	// validation rejects them instead of filling the default.
	if rrulePart(value, "INTERVAL") != "" {
		rec["interval"] = opt.Interval
	}
	if rrulePart(value, "COUNT") != "" {
		rec["count"] = opt.Count
	}
	if raw := rrulePart(value, "UNTIL"); raw != "" {
		if len(raw) == len(icalDate) {
			rec["until"] = opt.Until.Format(time.DateOnly)
		} else {
			rec["until"] = opt.Until.UTC().Format(time.RFC3339)
		}
	}
	if len(opt.Byweekday) > 0 {
		days := make([]any, 0, len(opt.Byweekday))
		for _, wd := range opt.Byweekday {
			if wd.N() != 0 {
				appLog.Warn("ics decode: ordinal weekday reduced to plain weekday", "uid", uid, "byday", wd.String())
			}
			days = append(days, string(model.Weekdays[wd.Day()]))
		}
		rec["byDay"] = days
	}
	if len(opt.Bymonthday) > 0 {
		rec["byMonthDay"] = intsToAny(opt.Bymonthday)
	}
	if len(opt.Bymonth) > 0 {
		rec["byMonth"] = intsToAny(opt.Bymonth)
	}

	var dropped []string
	for name, v := range map[string][]int{
		"BYSETPOS":  opt.Bysetpos,
		"BYYEARDAY": opt.Byyearday,
		"BYWEEKNO":  opt.Byweekno,
		"BYHOUR":    opt.Byhour,
		"BYMINUTE":  opt.Byminute,
		"BYSECOND":  opt.Bysecond,
		"BYEASTER":  opt.Byeaster,
	} {
		if len(v) > 0 {
			dropped = append(dropped, name)
		}
	}
	if opt.Wkst != rrule.MO {
		dropped = append(dropped, "WKST")
	}
	if len(dropped) > 0 {
		slices.Sort(dropped)
		appLog.Warn("ics decode: unsupported RRULE parts dropped", "uid", uid, "parts", strings.Join(dropped, ","))
	}
	return rec, nil
}

// rrulePart returns the raw value of one NAME=value part of an RRULE.
func rrulePart(value, name string) string {
	for _, part := range strings.Split(strings.TrimPrefix(value, "RRULE:"), ";") {
		if k, v, ok := strings.Cut(part, "="); ok && k == name {
			return v
		}
	}
	return ""
}

func intsToAny(in []int) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// uidToUUID keeps UUID UIDs (normalized to lower case) and derives a
// stable UUIDv5 for anything else.
func uidToUUID(uid string) string {
	if id, err := uuid.Parse(uid); err == nil {
		return id.String()
	}
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(uid))
	appLog.Debug("ics decode: derived event id from UID", "uid", uid, "id", id.String())
	return id.String()
}

// propTemporal renders a DATE or DATE-TIME property as a document
// temporal string: YYYY-MM-DD or a UTC RFC 3339 date-time.
func propTemporal(p *ical.IANAProperty) (string, error) {
	if p == nil {
		return "", errors.New("missing")
	}
	tzid := ""
	if vs := p.ICalParameters[string(ical.ParameterTzid)]; len(vs) > 0 {
		tzid = vs[0]
	}
	t, err := parseICSTime(p.Value, tzid)
	if err != nil {
		return "", err
	}
	if hasValueType(p, ical.ValueDataTypeDate) || !strings.Contains(p.Value, "T") {
		return t.Format(time.DateOnly), nil
	}
	return t.UTC().Format(time.RFC3339), nil
}

func hasValueType(p *ical.IANAProperty, want ical.ValueDataType) bool {
	vs := p.ICalParameters[string(ical.ParameterValue)]
	return len(vs) > 0 && strings.EqualFold(vs[0], string(want))
}

// parseICSTime parses a basic ICS date/date-time string. Floating times
// (no Z, no TZID) are read as UTC.
func parseICSTime(v, tzid string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	loc := time.UTC
	if tzid != "" {
		l, err := time.LoadLocation(tzid)
		if err != nil {
			return time.Time{}, fmt.Errorf("TZID %q: %w", tzid, err)
		}
		loc = l
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse(icalDateTime, v)
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}

	// Date-only (all-day), e.g., 20250101
	return time.ParseInLocation(icalDate, v, time.UTC)
}
