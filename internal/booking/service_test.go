package booking

import (
	"context"
	"errors"
	"testing"

	"github.com/netstudio/booking-engine/internal/gateway"
)

type stubCreator struct {
	calls []gateway.Appointment
	err   error
}

func (s *stubCreator) CreateAppointment(ctx context.Context, appt gateway.Appointment) error {
	s.calls = append(s.calls, appt)
	return s.err
}

func validDraft() Draft {
	return Draft{
		BusinessID:  "biz-1",
		ServiceID:   "svc1",
		ClientName:  "Jordan Lee",
		ClientPhone: "555-0100",
		Date:        "2026-04-10",
		Time:        "09:30 AM",
	}
}

func TestSubmitIncompleteDraftNeverCallsGateway(t *testing.T) {
	cases := map[string]func(*Draft){
		"missing service":     func(d *Draft) { d.ServiceID = "" },
		"blank name":          func(d *Draft) { d.ClientName = "   " },
		"blank phone":         func(d *Draft) { d.ClientPhone = "" },
		"whitespace-only all": func(d *Draft) { d.ServiceID = ""; d.ClientName = " "; d.ClientPhone = "\t" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			creator := &stubCreator{}
			svc := NewService(creator, nil)
			draft := validDraft()
			mutate(&draft)

			_, err := svc.Submit(context.Background(), draft)
			if !errors.Is(err, ErrIncompleteDraft) {
				t.Errorf("expected ErrIncompleteDraft, got %v", err)
			}
			if len(creator.calls) != 0 {
				t.Errorf("invalid draft must not reach the gateway, got %d calls", len(creator.calls))
			}
		})
	}
}

func TestSubmitSuccess(t *testing.T) {
	creator := &stubCreator{}
	svc := NewService(creator, nil)

	conf, err := svc.Submit(context.Background(), validDraft())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := conf.Summary(); got != "2026-04-10 @ 09:30 AM" {
		t.Errorf("summary mismatch: %q", got)
	}
	if len(creator.calls) != 1 {
		t.Fatalf("expected exactly one create call, got %d", len(creator.calls))
	}
	if creator.calls[0].TeamMemberID != nil {
		t.Error("empty staff id should serialize as null preference")
	}
	if creator.calls[0].AppointmentTime != "09:30 AM" {
		t.Errorf("time must pass through verbatim, got %q", creator.calls[0].AppointmentTime)
	}
}

func TestSubmitOptionalStaff(t *testing.T) {
	creator := &stubCreator{}
	svc := NewService(creator, nil)

	draft := validDraft()
	draft.StaffID = " s1 "
	if _, err := svc.Submit(context.Background(), draft); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if creator.calls[0].TeamMemberID == nil || *creator.calls[0].TeamMemberID != "s1" {
		t.Errorf("staff id not carried: %+v", creator.calls[0].TeamMemberID)
	}
}

func TestSubmitGatewayFailurePassesThrough(t *testing.T) {
	gatewayErr := errors.New("gateway: create appointment: status 409: duplicate")
	creator := &stubCreator{err: gatewayErr}
	svc := NewService(creator, nil)

	_, err := svc.Submit(context.Background(), validDraft())
	if !errors.Is(err, gatewayErr) {
		t.Errorf("raw gateway error must pass through, got %v", err)
	}
	if len(creator.calls) != 1 {
		t.Errorf("expected a single attempt with no retry, got %d", len(creator.calls))
	}
}

func TestSubmitTrimsClientFields(t *testing.T) {
	creator := &stubCreator{}
	svc := NewService(creator, nil)

	draft := validDraft()
	draft.ClientName = "  Jordan Lee  "
	draft.ClientPhone = " 555-0100 "
	if _, err := svc.Submit(context.Background(), draft); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if creator.calls[0].ClientName != "Jordan Lee" || creator.calls[0].ClientPhone != "555-0100" {
		t.Errorf("fields not trimmed: %+v", creator.calls[0])
	}
}
