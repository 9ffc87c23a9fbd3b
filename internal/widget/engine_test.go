package widget

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/netstudio/booking-engine/internal/booking"
	"github.com/netstudio/booking-engine/internal/gateway"
)

var engineNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC) // Tuesday

func fixedClock() time.Time { return engineNow }

type stubSource struct {
	mu       sync.Mutex
	calls    map[string]int
	business *gateway.Business
	hours    []gateway.HoursRecord
	staff    []gateway.StaffMember
	services []gateway.Service
	hoursErr error
	gate     chan struct{} // when set, GetBusiness blocks until closed
}

func (s *stubSource) count(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[op]++
}

func (s *stubSource) GetBusiness(ctx context.Context, id string) (*gateway.Business, error) {
	s.count("business")
	if s.gate != nil {
		<-s.gate
	}
	return s.business, nil
}

func (s *stubSource) ListHours(ctx context.Context, id string) ([]gateway.HoursRecord, error) {
	s.count("hours")
	return s.hours, s.hoursErr
}

func (s *stubSource) ListStaff(ctx context.Context, id string) ([]gateway.StaffMember, error) {
	s.count("staff")
	return s.staff, nil
}

func (s *stubSource) ListServices(ctx context.Context, id string) ([]gateway.Service, error) {
	s.count("services")
	return s.services, nil
}

func allWeekHours() []gateway.HoursRecord {
	days := []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}
	rows := make([]gateway.HoursRecord, 0, len(days))
	for _, d := range days {
		rows = append(rows, gateway.HoursRecord{DayOfWeek: d, OpenTime: "09:00", CloseTime: "10:30"})
	}
	return rows
}

type blockingCreator struct {
	mu      sync.Mutex
	calls   int
	err     error
	release chan struct{} // when set, CreateAppointment blocks until closed
}

func (c *blockingCreator) CreateAppointment(ctx context.Context, appt gateway.Appointment) error {
	c.mu.Lock()
	c.calls++
	release := c.release
	err := c.err
	c.mu.Unlock()
	if release != nil {
		<-release
	}
	return err
}

func newTestEngine(source *stubSource, creator *blockingCreator) *Engine {
	if creator == nil {
		creator = &blockingCreator{}
	}
	return NewEngine(EngineConfig{
		BusinessID:    "biz-1",
		Source:        source,
		Bookings:      booking.NewService(creator, nil),
		PortalBaseURL: "/customer-portal",
		Now:           fixedClock,
	})
}

func hydrated(t *testing.T, source *stubSource) *Engine {
	t.Helper()
	e := newTestEngine(source, nil)
	e.Hydrate(context.Background())
	return e
}

func defaultSource() *stubSource {
	return &stubSource{
		business: &gateway.Business{Name: "Fade District", ShopBio: "Walk-ins welcome"},
		hours:    allWeekHours(),
		staff:    []gateway.StaffMember{{ID: "s1", Name: "Alex"}},
		services: []gateway.Service{{ID: "svc1", Name: "Haircut", Price: "35"}},
	}
}

func TestSnapshotWaitsForHydration(t *testing.T) {
	source := defaultSource()
	source.gate = make(chan struct{})
	e := newTestEngine(source, nil)
	go e.Hydrate(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := e.Snapshot(ctx); err == nil {
		t.Fatal("snapshot before hydration must wait on the readiness gate")
	}

	close(source.gate)
	st, err := e.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot after hydration: %v", err)
	}
	if st.BusinessName != "Fade District" || st.Tagline != "Walk-ins welcome" {
		t.Errorf("business header not hydrated: %+v", st)
	}
}

func TestOpenCloseSafeBeforeHydration(t *testing.T) {
	source := defaultSource()
	source.gate = make(chan struct{})
	e := newTestEngine(source, nil)

	// Neither touches remote data nor blocks.
	e.Open()
	e.Close()
	e.Open()
	close(source.gate)
}

func TestFullGuestFlow(t *testing.T) {
	e := hydrated(t, defaultSource())
	ctx := context.Background()
	e.Open()

	if err := e.ChooseGuest(); err != nil {
		t.Fatalf("ChooseGuest: %v", err)
	}
	st, _ := e.Snapshot(ctx)
	if st.Step != "choose_date" || st.Calendar == nil {
		t.Fatalf("expected calendar on choose_date, got %+v", st)
	}

	if err := e.SelectDate(ctx, "2026-03-11"); err != nil {
		t.Fatalf("SelectDate: %v", err)
	}
	if err := e.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	st, _ = e.Snapshot(ctx)
	if st.Step != "choose_time" || len(st.Slots) != 3 {
		t.Fatalf("expected 3 slots on choose_time, got %+v", st)
	}

	if err := e.SelectTime(ctx, "09:30 AM"); err != nil {
		t.Fatalf("SelectTime: %v", err)
	}
	if err := e.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	conf, err := e.Submit(ctx, SubmitRequest{
		ServiceID:   "svc1",
		ClientName:  "Jordan Lee",
		ClientPhone: "555-0100",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := conf.Summary(); got != "2026-03-11 @ 09:30 AM" {
		t.Errorf("confirmation summary: %q", got)
	}
	st, _ = e.Snapshot(ctx)
	if st.Step != "confirmed" || st.Confirmation != "2026-03-11 @ 09:30 AM" {
		t.Errorf("confirmed state: %+v", st)
	}
}

func TestSelectDateBadFormat(t *testing.T) {
	e := hydrated(t, defaultSource())
	_ = e.ChooseGuest()
	if err := e.SelectDate(context.Background(), "11/03/2026"); !errors.Is(err, ErrBadDate) {
		t.Errorf("expected ErrBadDate, got %v", err)
	}
}

func TestSelectDateTodayWestOfUTC(t *testing.T) {
	// Dates arrive as UTC midnights; the server clock may sit hours behind.
	west := time.FixedZone("UTC-10", -10*3600)
	localNow := time.Date(2026, time.March, 10, 8, 0, 0, 0, west)
	e := NewEngine(EngineConfig{
		BusinessID:    "biz-1",
		Source:        defaultSource(),
		Bookings:      booking.NewService(&blockingCreator{}, nil),
		PortalBaseURL: "/customer-portal",
		Now:           func() time.Time { return localNow },
	})
	e.Hydrate(context.Background())

	if err := e.ChooseGuest(); err != nil {
		t.Fatalf("ChooseGuest: %v", err)
	}
	if err := e.SelectDate(context.Background(), "2026-03-10"); err != nil {
		t.Fatalf("selecting today must succeed west of UTC: %v", err)
	}
}

func TestSubmitFailureStaysOnDetails(t *testing.T) {
	creator := &blockingCreator{err: errors.New("gateway: create appointment: status 500: boom")}
	source := defaultSource()
	e := newTestEngine(source, creator)
	e.Hydrate(context.Background())
	ctx := context.Background()

	advanceToDetails(t, e)

	_, err := e.Submit(ctx, SubmitRequest{ServiceID: "svc1", ClientName: "J", ClientPhone: "5"})
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("raw gateway message must surface, got %v", err)
	}

	st, _ := e.Snapshot(ctx)
	if st.Step != "enter_details" {
		t.Errorf("failed submit must stay on enter_details, got %s", st.Step)
	}
	if st.SubmitBusy {
		t.Error("submit control must be re-enabled after failure")
	}

	// Recovery: a second attempt succeeds once the gateway does.
	creator.mu.Lock()
	creator.err = nil
	creator.mu.Unlock()
	if _, err := e.Submit(ctx, SubmitRequest{ServiceID: "svc1", ClientName: "J", ClientPhone: "5"}); err != nil {
		t.Errorf("retry after failure: %v", err)
	}
}

func TestSubmitValidationSkipsGateway(t *testing.T) {
	creator := &blockingCreator{}
	e := newTestEngine(defaultSource(), creator)
	e.Hydrate(context.Background())
	advanceToDetails(t, e)

	_, err := e.Submit(context.Background(), SubmitRequest{ServiceID: "", ClientName: " ", ClientPhone: ""})
	if !errors.Is(err, booking.ErrIncompleteDraft) {
		t.Fatalf("expected ErrIncompleteDraft, got %v", err)
	}
	if creator.calls != 0 {
		t.Errorf("validation failure must not reach the gateway, got %d calls", creator.calls)
	}
	if e.session.Step().String() != "enter_details" {
		t.Error("validation failure must leave the wizard unchanged")
	}
}

func TestSubmitSingleFlight(t *testing.T) {
	creator := &blockingCreator{release: make(chan struct{})}
	e := newTestEngine(defaultSource(), creator)
	e.Hydrate(context.Background())
	advanceToDetails(t, e)

	done := make(chan error, 1)
	go func() {
		_, err := e.Submit(context.Background(), SubmitRequest{ServiceID: "svc1", ClientName: "J", ClientPhone: "5"})
		done <- err
	}()

	// Wait for the first submission to be in flight.
	deadline := time.After(time.Second)
	for {
		e.mu.Lock()
		busy := e.inFlight
		e.mu.Unlock()
		if busy {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first submission never went in flight")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if _, err := e.Submit(context.Background(), SubmitRequest{ServiceID: "svc1", ClientName: "J", ClientPhone: "5"}); !errors.Is(err, ErrSubmitBusy) {
		t.Errorf("concurrent submit must be rejected, got %v", err)
	}

	close(creator.release)
	if err := <-done; err != nil {
		t.Fatalf("first submission: %v", err)
	}
	if creator.calls != 1 {
		t.Errorf("expected one create call, got %d", creator.calls)
	}
}

func TestReopenDuringSubmitStaysReset(t *testing.T) {
	creator := &blockingCreator{release: make(chan struct{})}
	e := newTestEngine(defaultSource(), creator)
	e.Hydrate(context.Background())
	advanceToDetails(t, e)

	done := make(chan error, 1)
	go func() {
		_, err := e.Submit(context.Background(), SubmitRequest{ServiceID: "svc1", ClientName: "J", ClientPhone: "5"})
		done <- err
	}()

	deadline := time.After(time.Second)
	for {
		e.mu.Lock()
		busy := e.inFlight
		e.mu.Unlock()
		if busy {
			break
		}
		select {
		case <-deadline:
			t.Fatal("submission never went in flight")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	// Reopen mid-flight, then let the create call finish.
	e.Open()
	close(creator.release)
	if err := <-done; err != nil {
		t.Fatalf("Submit: %v", err)
	}

	st, _ := e.Snapshot(context.Background())
	if st.Step != "gate" {
		t.Errorf("reopened session must stay at gate, got %s", st.Step)
	}

	e.mu.Lock()
	stale := e.confirmation
	e.mu.Unlock()
	if stale != nil {
		t.Errorf("stale confirmation must not survive a reopen, got %q", stale.Summary())
	}
}

func TestReopenResetsFlow(t *testing.T) {
	e := hydrated(t, defaultSource())
	ctx := context.Background()
	e.Open()
	advanceToDetails(t, e)
	if _, err := e.Submit(ctx, SubmitRequest{ServiceID: "svc1", ClientName: "J", ClientPhone: "5"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	e.Open()
	st, _ := e.Snapshot(ctx)
	if st.Step != "gate" {
		t.Errorf("reopen must reset to gate, got %s", st.Step)
	}
	if st.SelectedDate != "" || st.SelectedTime != "" || st.Confirmation != "" {
		t.Errorf("reopen must clear selections, got %+v", st)
	}
	if st.SubmitBusy {
		t.Error("reopen must leave the submit control enabled")
	}
}

func TestHoursFailureDegradesToClosed(t *testing.T) {
	source := defaultSource()
	source.hoursErr = errors.New("gateway: read business_hours: status 500")
	e := hydrated(t, source)
	_ = e.ChooseGuest()

	st, _ := e.Snapshot(context.Background())
	for _, cell := range st.Calendar.Cells {
		if cell.Kind == "selectable" || cell.Kind == "selected" {
			t.Errorf("no day should be bookable without hours, got %s on %s", cell.Kind, cell.Date)
		}
	}
}

func TestPortalURLCarriesBusinessID(t *testing.T) {
	e := newTestEngine(defaultSource(), nil)
	if got := e.PortalURL(); got != "/customer-portal?business_id=biz-1" {
		t.Errorf("portal url: %q", got)
	}
}

func advanceToDetails(t *testing.T, e *Engine) {
	t.Helper()
	ctx := context.Background()
	if e.session.Step().String() == "gate" {
		if err := e.ChooseGuest(); err != nil {
			t.Fatalf("ChooseGuest: %v", err)
		}
	}
	if err := e.SelectDate(ctx, "2026-03-11"); err != nil {
		t.Fatalf("SelectDate: %v", err)
	}
	if err := e.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := e.SelectTime(ctx, "09:00 AM"); err != nil {
		t.Fatalf("SelectTime: %v", err)
	}
	if err := e.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
}

