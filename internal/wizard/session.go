// Package wizard manages the linear booking flow: gate, date, time, details,
// confirmation. All state lives on a Session and changes only through its
// transition methods.
package wizard

import (
	"errors"
	"time"

	"github.com/netstudio/booking-engine/internal/availability"
)

// Step identifies the active wizard step.
type Step int

const (
	StepGate Step = iota
	StepChooseDate
	StepChooseTime
	StepEnterDetails
	StepConfirmed
)

func (s Step) String() string {
	switch s {
	case StepGate:
		return "gate"
	case StepChooseDate:
		return "choose_date"
	case StepChooseTime:
		return "choose_time"
	case StepEnterDetails:
		return "enter_details"
	case StepConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

var (
	// ErrBadTransition is returned when an action is not valid for the
	// current step.
	ErrBadTransition = errors.New("wizard: action not valid for current step")
	// ErrDayUnavailable is returned when a selected day is closed or past.
	ErrDayUnavailable = errors.New("wizard: day not open for booking")
	// ErrNothingSelected gates forward transitions that need a selection.
	ErrNothingSelected = errors.New("wizard: no selection made")
	// ErrSlotUnavailable is returned when a selected time is not offered
	// for the selected day.
	ErrSlotUnavailable = errors.New("wizard: time slot not available")
)

// Month is a calendar navigation position, independent of the wizard step.
type Month struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// First returns midnight on the first day of the month, in UTC.
func (m Month) First() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Prev returns the preceding month.
func (m Month) Prev() Month {
	return MonthOf(m.First().AddDate(0, -1, 0))
}

// Next returns the following month.
func (m Month) Next() Month {
	return MonthOf(m.First().AddDate(0, 1, 0))
}

// Session holds the wizard state for one visitor. Not safe for concurrent
// use; the owning engine serializes access.
type Session struct {
	step         Step
	selectedDate time.Time // zero means none
	selectedTime string
	viewMonth    Month
	now          func() time.Time
}

// NewSession creates a session at the gate step viewing the current month.
// A nil clock defaults to time.Now.
func NewSession(now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	s := &Session{now: now}
	s.Reset()
	return s
}

// Step returns the active step.
func (s *Session) Step() Step { return s.step }

// SelectedDate returns the picked day, if any.
func (s *Session) SelectedDate() (time.Time, bool) {
	return s.selectedDate, !s.selectedDate.IsZero()
}

// SelectedTime returns the picked slot label, if any.
func (s *Session) SelectedTime() (string, bool) {
	return s.selectedTime, s.selectedTime != ""
}

// ViewMonth returns the calendar navigation month.
func (s *Session) ViewMonth() Month { return s.viewMonth }

// Today returns the session clock's current day at midnight.
func (s *Session) Today() time.Time {
	return availability.Midnight(s.now())
}

// Reset returns the session to the gate step with nothing selected and the
// view back on the month containing today. Valid from any step; invoked
// whenever the widget is (re)opened.
func (s *Session) Reset() {
	s.step = StepGate
	s.selectedDate = time.Time{}
	s.selectedTime = ""
	s.viewMonth = MonthOf(s.now())
}

// ChooseGuest moves from the gate to date selection.
func (s *Session) ChooseGuest() error {
	if s.step != StepGate {
		return ErrBadTransition
	}
	s.step = StepChooseDate
	return nil
}

// PrevMonth navigates the calendar back one month. Only available while
// choosing a date.
func (s *Session) PrevMonth() error {
	if s.step != StepChooseDate {
		return ErrBadTransition
	}
	s.viewMonth = s.viewMonth.Prev()
	return nil
}

// NextMonth navigates the calendar forward one month.
func (s *Session) NextMonth() error {
	if s.step != StepChooseDate {
		return ErrBadTransition
	}
	s.viewMonth = s.viewMonth.Next()
	return nil
}

// SelectDate picks a day on the calendar. The day must be open per the
// schedule. Picking a day replaces any earlier pick.
func (s *Session) SelectDate(date time.Time, sched *availability.Schedule) error {
	if s.step != StepChooseDate {
		return ErrBadTransition
	}
	if sched == nil || !sched.IsOpen(date, s.now()) {
		return ErrDayUnavailable
	}
	s.selectedDate = availability.Midnight(date)
	return nil
}

// SelectTime picks a slot label. The label must be one the schedule derives
// for the selected day.
func (s *Session) SelectTime(label string, sched *availability.Schedule) error {
	if s.step != StepChooseTime {
		return ErrBadTransition
	}
	if sched == nil {
		return ErrSlotUnavailable
	}
	for _, slot := range sched.Slots(s.selectedDate) {
		if slot == label {
			s.selectedTime = label
			return nil
		}
	}
	return ErrSlotUnavailable
}

// Advance moves forward one step. From date selection it requires a picked
// day and discards any previously picked time; from time selection it
// requires a picked slot.
func (s *Session) Advance() error {
	switch s.step {
	case StepChooseDate:
		if s.selectedDate.IsZero() {
			return ErrNothingSelected
		}
		s.selectedTime = ""
		s.step = StepChooseTime
		return nil
	case StepChooseTime:
		if s.selectedTime == "" {
			return ErrNothingSelected
		}
		s.step = StepEnterDetails
		return nil
	default:
		return ErrBadTransition
	}
}

// Back moves to the previous selection step.
func (s *Session) Back() error {
	switch s.step {
	case StepChooseTime:
		s.step = StepChooseDate
		return nil
	case StepEnterDetails:
		s.step = StepChooseTime
		return nil
	default:
		return ErrBadTransition
	}
}

// Confirm marks the flow complete. Only valid once details are being
// entered; callers invoke it after a successful submission.
func (s *Session) Confirm() error {
	if s.step != StepEnterDetails {
		return ErrBadTransition
	}
	s.step = StepConfirmed
	return nil
}
