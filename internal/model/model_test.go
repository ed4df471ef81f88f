package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTemporalJSON(t *testing.T) {
	var got struct {
		A Temporal `json:"a"`
		B Temporal `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a":"2024-01-01","b":"2024-01-01T09:00:00Z"}`), &got); err != nil {
		t.Fatal(err)
	}
	if !got.A.DateOnly || got.B.DateOnly {
		t.Errorf("DateOnly a=%v b=%v", got.A.DateOnly, got.B.DateOnly)
	}
	data, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"a":"2024-01-01","b":"2024-01-01T09:00:00Z"}` {
		t.Errorf("marshal = %s", data)
	}

	var empty Temporal
	if err := json.Unmarshal([]byte(`""`), &empty); err == nil {
		t.Error("empty temporal should not decode")
	}
}

func TestTemporalTime(t *testing.T) {
	tests := []struct {
		in   Temporal
		want time.Time
	}{
		{NewDate("2024-02-29"), time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{NewDateTime("2024-01-01T09:30:00Z"), time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)},
		{NewDateTime("2024-01-01T09:30Z"), time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)},
		{NewDateTime("2024-01-01T09:30:00.250Z"), time.Date(2024, 1, 1, 9, 30, 0, 250e6, time.UTC)},
	}
	for _, tt := range tests {
		got, err := tt.in.Time()
		if err != nil {
			t.Errorf("%s: %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("%s: got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRecurrenceRuleRRULE(t *testing.T) {
	until := NewDate("2024-03-31")
	untilTime := NewDateTime("2024-03-31T12:00:00Z")
	tests := []struct {
		name string
		in   RecurrenceRule
		want string
	}{
		{
			name: "weekly by day",
			in:   RecurrenceRule{Frequency: Weekly, Interval: 1, ByDay: []Weekday{Monday, Wednesday}},
			want: "FREQ=WEEKLY;INTERVAL=1;BYDAY=MO,WE",
		},
		{
			name: "monthly with count",
			in:   RecurrenceRule{Frequency: Monthly, Interval: 2, ByMonthDay: []int{1, -1}, Count: 6},
			want: "FREQ=MONTHLY;INTERVAL=2;COUNT=6;BYMONTHDAY=1,-1",
		},
		{
			name: "date until",
			in:   RecurrenceRule{Frequency: Daily, Interval: 1, Until: &until},
			want: "FREQ=DAILY;INTERVAL=1;UNTIL=20240331",
		},
		{
			name: "date-time until",
			in:   RecurrenceRule{Frequency: Yearly, Interval: 1, ByMonth: []int{12}, Until: &untilTime},
			want: "FREQ=YEARLY;INTERVAL=1;UNTIL=20240331T120000Z;BYMONTH=12",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.RRULE()
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := (RecurrenceRule{Frequency: "HOURLY"}).RRULE(); err == nil {
		t.Error("HOURLY should be rejected")
	}
}
