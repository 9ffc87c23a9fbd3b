// Package calendar derives displayable day and slot grids from a schedule.
// Everything here is a pure function of its inputs; rendering technology is
// the embedding page's concern.
package calendar

import (
	"time"

	"github.com/netstudio/booking-engine/internal/availability"
	"github.com/netstudio/booking-engine/internal/wizard"
)

// CellKind classifies a day cell.
type CellKind string

const (
	// CellBlank pads the grid for days before the 1st of the month.
	CellBlank CellKind = "blank"
	// CellDisabled marks closed weekdays and days before today.
	CellDisabled CellKind = "disabled"
	// CellSelectable marks an open, bookable day.
	CellSelectable CellKind = "selectable"
	// CellSelected marks the one currently selected day.
	CellSelected CellKind = "selected"
)

// DayCell is one grid position. Day is zero for blanks.
type DayCell struct {
	Day  int      `json:"day,omitempty"`
	Date string   `json:"date,omitempty"` // "2006-01-02"
	Kind CellKind `json:"kind"`
}

// MonthGrid is a full month of day cells plus its display title.
type MonthGrid struct {
	Title string    `json:"title"` // e.g. "March 2026"
	Cells []DayCell `json:"cells"`
}

// SlotCell is one selectable time slot.
type SlotCell struct {
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

// BuildMonth lays out the view month as a seven-column grid: leading blanks
// up to the weekday of the 1st, then one cell per day. At most one cell is
// selected; selecting a new day elsewhere always clears the old highlight
// because the selected date is a single input here.
func BuildMonth(sched *availability.Schedule, view wizard.Month, today, selected time.Time) MonthGrid {
	first := view.First()
	grid := MonthGrid{Title: first.Format("January 2006")}

	for i := 0; i < int(first.Weekday()); i++ {
		grid.Cells = append(grid.Cells, DayCell{Kind: CellBlank})
	}

	daysInMonth := first.AddDate(0, 1, -1).Day()
	selectedDay := availability.Midnight(selected)
	for d := 1; d <= daysInMonth; d++ {
		date := time.Date(view.Year, view.Month, d, 0, 0, 0, 0, time.UTC)
		cell := DayCell{Day: d, Date: date.Format("2006-01-02")}
		switch {
		case !selected.IsZero() && date.Equal(selectedDay):
			cell.Kind = CellSelected
		case sched != nil && sched.IsOpen(date, today):
			cell.Kind = CellSelectable
		default:
			cell.Kind = CellDisabled
		}
		grid.Cells = append(grid.Cells, cell)
	}
	return grid
}

// BuildSlots renders the bookable slots for a day, highlighting at most the
// one matching selectedTime.
func BuildSlots(sched *availability.Schedule, date time.Time, selectedTime string) []SlotCell {
	if sched == nil {
		return nil
	}
	labels := sched.Slots(date)
	cells := make([]SlotCell, 0, len(labels))
	for _, label := range labels {
		cells = append(cells, SlotCell{Label: label, Selected: label == selectedTime})
	}
	return cells
}
