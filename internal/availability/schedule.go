// Package availability models a business's recurring weekly schedule and
// derives bookable dates and time slots from it.
package availability

import (
	"fmt"
	"strings"
	"time"
)

// SlotStepMinutes is the fixed width of a bookable time window.
const SlotStepMinutes = 30

// DayHours is the open/close record for a single weekday.
type DayHours struct {
	Closed bool   `json:"is_closed"`
	Open   string `json:"open_time"`  // "09:00" in 24-hour format
	Close  string `json:"close_time"` // "18:00" in 24-hour format
}

var dayKeys = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// DayKey returns the lowercase weekday name used to key WeeklyHours records.
func DayKey(w time.Weekday) string {
	return dayKeys[int(w)%7]
}

// Schedule is a read-only weekly open-hours table. A weekday with no record
// is treated as closed.
type Schedule struct {
	days map[string]DayHours
}

// NewSchedule builds a schedule from weekday-keyed hour records. Keys are
// normalized to lowercase; unknown keys are dropped.
func NewSchedule(days map[string]DayHours) *Schedule {
	s := &Schedule{days: make(map[string]DayHours, len(days))}
	for key, h := range days {
		key = strings.ToLower(strings.TrimSpace(key))
		if !isDayKey(key) {
			continue
		}
		s.days[key] = h
	}
	return s
}

// EmptySchedule returns a schedule with every weekday closed.
func EmptySchedule() *Schedule {
	return &Schedule{days: map[string]DayHours{}}
}

// HoursFor returns the record for a weekday, if one exists.
func (s *Schedule) HoursFor(w time.Weekday) (DayHours, bool) {
	h, ok := s.days[DayKey(w)]
	return h, ok
}

// Midnight truncates t to the start of its calendar day.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// IsOpen reports whether date is bookable: not before today's calendar day
// and on a weekday with open hours.
func (s *Schedule) IsOpen(date, today time.Time) bool {
	if beforeDay(date, today) {
		return false
	}
	h, ok := s.HoursFor(date.Weekday())
	if !ok || h.Closed {
		return false
	}
	return true
}

// beforeDay compares calendar days, each read in its own location. Picked
// dates are UTC midnights from "2006-01-02" parsing while the clock runs in
// server-local time; comparing instants would shift "today" across zones.
func beforeDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}

// Slots returns the bookable time labels for date, stepping 30 minutes from
// the open time up to but excluding the close time. An open time at or past
// the close time, or an unparseable record, yields no slots.
func (s *Schedule) Slots(date time.Time) []string {
	h, ok := s.HoursFor(date.Weekday())
	if !ok || h.Closed {
		return nil
	}
	openMin, ok := parseClock(h.Open)
	if !ok {
		return nil
	}
	closeMin, ok := parseClock(h.Close)
	if !ok {
		return nil
	}

	var slots []string
	for m := openMin; m < closeMin; m += SlotStepMinutes {
		slots = append(slots, formatSlot(m))
	}
	return slots
}

// formatSlot renders minutes-since-midnight as a 12-hour clock label,
// matching the display format stored on appointment records.
func formatSlot(minutes int) string {
	hour := minutes / 60
	meridiem := "AM"
	if hour >= 12 {
		meridiem = "PM"
	}
	display := hour % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("%02d:%02d %s", display, minutes%60, meridiem)
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(raw string) (int, bool) {
	var hh, mm int
	if _, err := fmt.Sscanf(strings.TrimSpace(raw), "%d:%d", &hh, &mm); err != nil {
		return 0, false
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, false
	}
	return hh*60 + mm, true
}

func isDayKey(key string) bool {
	for _, k := range dayKeys {
		if k == key {
			return true
		}
	}
	return false
}
