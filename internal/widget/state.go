package widget

import (
	"context"

	"github.com/netstudio/booking-engine/internal/calendar"
	"github.com/netstudio/booking-engine/internal/gateway"
	"github.com/netstudio/booking-engine/internal/wizard"
)

// StaffOption is a dropdown entry for the professional picker.
type StaffOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ServiceOption is a dropdown entry for the service picker.
type ServiceOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// State is the full render input for the embedding page. Exactly one step
// is active; the grid and slot list are present only on the steps that
// show them.
type State struct {
	Step         string              `json:"step"`
	Visible      bool                `json:"visible"`
	BusinessName string              `json:"business_name"`
	Tagline      string              `json:"tagline"`
	PortalURL    string              `json:"portal_url"`
	Calendar     *calendar.MonthGrid `json:"calendar,omitempty"`
	Slots        []calendar.SlotCell `json:"slots,omitempty"`
	SelectedDate string              `json:"selected_date,omitempty"`
	DateLabel    string              `json:"date_label,omitempty"`
	SelectedTime string              `json:"selected_time,omitempty"`
	Staff        []StaffOption       `json:"staff"`
	Services     []ServiceOption     `json:"services"`
	CanContinue  bool                `json:"can_continue"`
	SubmitBusy   bool                `json:"submit_busy"`
	Confirmation string              `json:"confirmation,omitempty"`
}

// Snapshot derives the current render state. It waits on the readiness
// gate so the first paint never races hydration.
func (e *Engine) Snapshot(ctx context.Context) (*State, error) {
	if err := e.Ready(ctx); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	st := &State{
		Step:         e.session.Step().String(),
		Visible:      e.visible,
		BusinessName: businessName(e.business),
		Tagline:      e.business.Tagline(),
		PortalURL:    e.PortalURL(),
		Staff:        staffOptions(e.staff),
		Services:     serviceOptions(e.services),
	}

	selectedDate, hasDate := e.session.SelectedDate()
	selectedTime, hasTime := e.session.SelectedTime()
	if hasDate {
		st.SelectedDate = selectedDate.Format("2006-01-02")
		st.DateLabel = selectedDate.Format("Monday, Jan 2")
	}
	if hasTime {
		st.SelectedTime = selectedTime
	}

	switch e.session.Step() {
	case wizard.StepChooseDate:
		grid := calendar.BuildMonth(e.schedule, e.session.ViewMonth(), e.session.Today(), selectedDate)
		st.Calendar = &grid
		st.CanContinue = hasDate
	case wizard.StepChooseTime:
		st.Slots = calendar.BuildSlots(e.schedule, selectedDate, selectedTime)
		st.CanContinue = hasTime
	case wizard.StepEnterDetails:
		st.SubmitBusy = e.inFlight
	case wizard.StepConfirmed:
		if e.confirmation != nil {
			st.Confirmation = e.confirmation.Summary()
		}
	}
	return st, nil
}

func businessName(b *gateway.Business) string {
	if b == nil || b.Name == "" {
		return "Booking"
	}
	return b.Name
}

func staffOptions(staff []gateway.StaffMember) []StaffOption {
	out := make([]StaffOption, 0, len(staff))
	for _, s := range staff {
		out = append(out, StaffOption{ID: s.ID, Name: s.Name})
	}
	return out
}

func serviceOptions(services []gateway.Service) []ServiceOption {
	out := make([]ServiceOption, 0, len(services))
	for _, s := range services {
		out = append(out, ServiceOption{ID: s.ID, Label: s.Label()})
	}
	return out
}
