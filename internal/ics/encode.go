package ics

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "jsoncal/internal/log"
	"jsoncal/internal/model"
)

// DefaultProductID is written as PRODID when EncodeOptions leaves it empty.
const DefaultProductID = "-//jsoncal//EN"

const (
	icalDate     = "20060102"
	icalDateTime = "20060102T150405Z"

	// propertyPrivate carries Calendar.Private, which has no RFC 5545
	// counterpart at the VCALENDAR level.
	propertyPrivate = "X-JSONCAL-PRIVATE"
)

type EncodeOptions struct {
	ProductID string
	// Stamp is written as DTSTAMP on every VEVENT. Zero means time.Now.
	Stamp time.Time
}

// Encode renders a validated calendar as an RFC 5545 VCALENDAR.
//
// Each event becomes one VEVENT. Each override becomes an additional VEVENT
// sharing the parent's UID with RECURRENCE-ID set from the override key;
// keys that are neither a date nor a date-time cannot be expressed and are
// skipped. Extensions are not carried.
func Encode(cal *model.Calendar, opts EncodeOptions) (string, error) {
	if cal == nil {
		return "", errors.New("nil calendar")
	}
	if opts.ProductID == "" {
		opts.ProductID = DefaultProductID
	}
	if opts.Stamp.IsZero() {
		opts.Stamp = time.Now()
	}

	out := ical.NewCalendar()
	out.SetProductId(opts.ProductID)
	out.SetMethod(ical.MethodPublish)
	if cal.ID != nil {
		out.SetXWRCalID(cal.ID.String())
	}
	if cal.Name != "" {
		out.SetXWRCalName(cal.Name)
	}
	if cal.Color != "" {
		out.SetColor(cal.Color)
	}
	if cal.Private {
		out.CalendarProperties = append(out.CalendarProperties, ical.CalendarProperty{
			BaseProperty: ical.BaseProperty{IANAToken: propertyPrivate, Value: "TRUE"},
		})
	}

	for i := range cal.Events {
		if err := encodeEvent(out, &cal.Events[i], opts.Stamp); err != nil {
			return "", fmt.Errorf("events[%d]: %w", i, err)
		}
	}

	return out.Serialize(), nil
}

func encodeEvent(out *ical.Calendar, ev *model.Event, stamp time.Time) error {
	uid := ev.ID.String()
	ve := out.AddEvent(uid)
	ve.SetDtStampTime(stamp)
	ve.SetSummary(ev.Title)
	if ev.Description != nil {
		ve.SetDescription(*ev.Description)
	}
	if err := setTemporal(&ve.ComponentBase, ical.ComponentPropertyDtStart, ev.Start); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if err := setTemporal(&ve.ComponentBase, ical.ComponentPropertyDtEnd, ev.End); err != nil {
		return fmt.Errorf("end: %w", err)
	}
	if ev.Private {
		ve.SetClass(ical.ClassificationPrivate)
	}
	if ev.Recurrence != nil {
		rule, err := ev.Recurrence.RRULE()
		if err != nil {
			return fmt.Errorf("recurrence: %w", err)
		}
		ve.AddRrule(rule)
	}
	if err := addAlarms(ve, ev.Alarms, ev.Title); err != nil {
		return err
	}

	keys := make([]string, 0, len(ev.Overrides))
	for k := range ev.Overrides {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, key := range keys {
		rid, ok := parseTemporal(key)
		if !ok {
			appLog.Warn("ics encode: override key is not a date or date-time, skipped", "uid", uid, "key", key)
			continue
		}
		ov := ev.Overrides[key]
		if err := encodeOverride(out, uid, rid, &ov, stamp); err != nil {
			return fmt.Errorf("overrides[%q]: %w", key, err)
		}
	}
	return nil
}

func encodeOverride(out *ical.Calendar, uid string, rid model.Temporal, ov *model.Override, stamp time.Time) error {
	ve := out.AddEvent(uid)
	ve.SetDtStampTime(stamp)
	if err := setTemporal(&ve.ComponentBase, ical.ComponentPropertyRecurrenceId, rid); err != nil {
		return err
	}
	if ov.Cancelled != nil {
		if *ov.Cancelled {
			ve.SetStatus(ical.ObjectStatusCancelled)
		} else {
			ve.SetStatus(ical.ObjectStatusConfirmed)
		}
	}
	if ov.Title != nil {
		ve.SetSummary(*ov.Title)
	}
	if ov.Description != nil {
		ve.SetDescription(*ov.Description)
	}
	if ov.Start != nil {
		if err := setTemporal(&ve.ComponentBase, ical.ComponentPropertyDtStart, *ov.Start); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}
	if ov.End != nil {
		if err := setTemporal(&ve.ComponentBase, ical.ComponentPropertyDtEnd, *ov.End); err != nil {
			return fmt.Errorf("end: %w", err)
		}
	}
	if ov.Private != nil {
		if *ov.Private {
			ve.SetClass(ical.ClassificationPrivate)
		} else {
			ve.SetClass(ical.ClassificationPublic)
		}
	}
	title := ""
	if ov.Title != nil {
		title = *ov.Title
	}
	return addAlarms(ve, ov.Alarms, title)
}

// addAlarms writes one DISPLAY VALARM per alarm with an absolute trigger.
func addAlarms(ve *ical.VEvent, alarms []model.DateTime, text string) error {
	for i, a := range alarms {
		t, err := a.Time()
		if err != nil {
			return fmt.Errorf("alarms[%d]: %w", i, err)
		}
		alarm := ve.AddAlarm()
		alarm.SetAction(ical.ActionDisplay)
		alarm.SetTrigger(t.UTC().Format(icalDateTime), ical.WithValue(string(ical.ValueDataTypeDateTime)))
		if text == "" {
			text = "Reminder"
		}
		alarm.SetProperty(ical.ComponentPropertyDescription, text)
	}
	return nil
}

func setTemporal(cb *ical.ComponentBase, prop ical.ComponentProperty, v model.Temporal) error {
	t, err := v.Time()
	if err != nil {
		return err
	}
	if v.DateOnly {
		cb.SetProperty(prop, t.Format(icalDate), ical.WithValue(string(ical.ValueDataTypeDate)))
		return nil
	}
	cb.SetProperty(prop, t.UTC().Format(icalDateTime))
	return nil
}

// parseTemporal interprets an override key as a Temporal.
func parseTemporal(s string) (model.Temporal, bool) {
	v := model.NewDateTime(s)
	if !strings.Contains(s, "T") {
		v = model.NewDate(s)
	}
	if _, err := v.Time(); err != nil {
		return model.Temporal{}, false
	}
	return v, true
}
