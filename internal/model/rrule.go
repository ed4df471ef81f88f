package model

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

var rruleFrequencies = map[Frequency]rrule.Frequency{
	Daily:   rrule.DAILY,
	Weekly:  rrule.WEEKLY,
	Monthly: rrule.MONTHLY,
	Yearly:  rrule.YEARLY,
}

var rruleWeekdays = map[Weekday]rrule.Weekday{
	Monday:    rrule.MO,
	Tuesday:   rrule.TU,
	Wednesday: rrule.WE,
	Thursday:  rrule.TH,
	Friday:    rrule.FR,
	Saturday:  rrule.SA,
	Sunday:    rrule.SU,
}

// ROption converts r into rrule-go options. Dtstart is left zero; callers
// expanding occurrences set it from the event start. A date-precision Until
// resolves to midnight UTC.
func (r RecurrenceRule) ROption() (rrule.ROption, error) {
	freq, ok := rruleFrequencies[r.Frequency]
	if !ok {
		return rrule.ROption{}, fmt.Errorf("unsupported frequency %q", r.Frequency)
	}
	opt := rrule.ROption{
		Freq:       freq,
		Interval:   r.Interval,
		Count:      r.Count,
		Bymonthday: r.ByMonthDay,
		Bymonth:    r.ByMonth,
	}
	for _, d := range r.ByDay {
		wd, ok := rruleWeekdays[d]
		if !ok {
			return rrule.ROption{}, fmt.Errorf("unsupported weekday %q", d)
		}
		opt.Byweekday = append(opt.Byweekday, wd)
	}
	if r.Until != nil {
		t, err := r.Until.Time()
		if err != nil {
			return rrule.ROption{}, fmt.Errorf("until: %w", err)
		}
		opt.Until = t
	}
	return opt, nil
}

// RRULE renders r as an RFC 5545 RRULE value without the "RRULE:" prefix.
// A date-precision Until is written as a DATE value.
func (r RecurrenceRule) RRULE() (string, error) {
	opt, err := r.ROption()
	if err != nil {
		return "", err
	}
	if r.Until == nil || !r.Until.DateOnly {
		return opt.RRuleString(), nil
	}
	until := opt.Until
	opt.Until = time.Time{}
	return opt.RRuleString() + ";UNTIL=" + until.Format("20060102"), nil
}
