// Package widget hosts the embeddable booking widget: one engine per
// visitor session owning the wizard state, hydrated business data, and the
// submission flow. State changes only through engine methods; the embedding
// page renders from snapshots.
package widget

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/netstudio/booking-engine/internal/availability"
	"github.com/netstudio/booking-engine/internal/booking"
	"github.com/netstudio/booking-engine/internal/gateway"
	"github.com/netstudio/booking-engine/internal/observability/metrics"
	"github.com/netstudio/booking-engine/internal/wizard"
	"github.com/netstudio/booking-engine/pkg/logging"
)

var (
	// ErrBadDate is returned for dates not in YYYY-MM-DD form.
	ErrBadDate = errors.New("widget: date must be YYYY-MM-DD")
	// ErrSubmitBusy rejects a second submission while one is in flight.
	ErrSubmitBusy = errors.New("widget: submission already in progress")
)

// DataSource is the slice of the data gateway the engine reads from.
type DataSource interface {
	GetBusiness(ctx context.Context, businessID string) (*gateway.Business, error)
	ListHours(ctx context.Context, businessID string) ([]gateway.HoursRecord, error)
	ListStaff(ctx context.Context, businessID string) ([]gateway.StaffMember, error)
	ListServices(ctx context.Context, businessID string) ([]gateway.Service, error)
}

// Submitter issues the create-appointment call.
type Submitter interface {
	Submit(ctx context.Context, draft booking.Draft) (*booking.Confirmation, error)
}

// EngineConfig wires an engine's collaborators.
type EngineConfig struct {
	BusinessID    string
	Source        DataSource
	Bookings      Submitter
	PortalBaseURL string
	Logger        *logging.Logger
	Metrics       *metrics.WidgetMetrics
	Now           func() time.Time
}

// Engine drives one widget session. Identity resolution has already
// happened by the time an engine exists; nothing here runs without a
// business id.
type Engine struct {
	businessID    string
	source        DataSource
	bookings      Submitter
	portalBaseURL string
	logger        *logging.Logger
	metrics       *metrics.WidgetMetrics
	now           func() time.Time

	hydrateOnce sync.Once
	ready       chan struct{}

	mu           sync.Mutex
	business     *gateway.Business
	schedule     *availability.Schedule
	staff        []gateway.StaffMember
	services     []gateway.Service
	session      *wizard.Session
	visible      bool
	inFlight     bool
	confirmation *booking.Confirmation
}

// NewEngine creates an engine for a resolved business.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.BusinessID == "" {
		panic("widget: business id required")
	}
	if cfg.Source == nil {
		panic("widget: data source required")
	}
	if cfg.Bookings == nil {
		panic("widget: booking submitter required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		businessID:    cfg.BusinessID,
		source:        cfg.Source,
		bookings:      cfg.Bookings,
		portalBaseURL: cfg.PortalBaseURL,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		now:           cfg.Now,
		ready:         make(chan struct{}),
		schedule:      availability.EmptySchedule(),
		session:       wizard.NewSession(cfg.Now),
	}
}

// Hydrate fetches the business record, weekly hours, and reference lists.
// It runs once; calendar and slot snapshots wait on the readiness gate it
// closes. A failed read degrades that piece (empty schedule, empty lists)
// rather than failing the session.
func (e *Engine) Hydrate(ctx context.Context) {
	e.hydrateOnce.Do(func() {
		defer close(e.ready)
		start := e.now()

		business := e.timedBusiness(ctx)
		schedule := e.timedHours(ctx)
		staff := e.timedStaff(ctx)
		services := e.timedServices(ctx)

		e.mu.Lock()
		e.business = business
		e.schedule = schedule
		e.staff = staff
		e.services = services
		e.mu.Unlock()

		e.metrics.ObserveHydration(e.now().Sub(start).Seconds())
		e.logger.Info("widget session hydrated",
			"business_id", e.businessID,
			"staff", len(staff),
			"services", len(services),
		)
	})
}

func (e *Engine) timedBusiness(ctx context.Context) *gateway.Business {
	start := e.now()
	biz, err := e.source.GetBusiness(ctx, e.businessID)
	e.metrics.ObserveGatewayLatency("business", e.now().Sub(start).Seconds())
	if err != nil {
		e.logger.Warn("widget: business read failed", "business_id", e.businessID, "error", err)
		return nil
	}
	return biz
}

func (e *Engine) timedHours(ctx context.Context) *availability.Schedule {
	start := e.now()
	rows, err := e.source.ListHours(ctx, e.businessID)
	e.metrics.ObserveGatewayLatency("hours", e.now().Sub(start).Seconds())
	if err != nil {
		e.logger.Warn("widget: hours read failed", "business_id", e.businessID, "error", err)
		return availability.EmptySchedule()
	}
	days := make(map[string]availability.DayHours, len(rows))
	for _, row := range rows {
		days[strings.ToLower(row.DayOfWeek)] = availability.DayHours{
			Closed: row.IsClosed,
			Open:   row.OpenTime,
			Close:  row.CloseTime,
		}
	}
	return availability.NewSchedule(days)
}

func (e *Engine) timedStaff(ctx context.Context) []gateway.StaffMember {
	start := e.now()
	staff, err := e.source.ListStaff(ctx, e.businessID)
	e.metrics.ObserveGatewayLatency("staff", e.now().Sub(start).Seconds())
	if err != nil {
		e.logger.Warn("widget: staff read failed", "business_id", e.businessID, "error", err)
		return nil
	}
	return staff
}

func (e *Engine) timedServices(ctx context.Context) []gateway.Service {
	start := e.now()
	services, err := e.source.ListServices(ctx, e.businessID)
	e.metrics.ObserveGatewayLatency("services", e.now().Sub(start).Seconds())
	if err != nil {
		e.logger.Warn("widget: services read failed", "business_id", e.businessID, "error", err)
		return nil
	}
	return services
}

// Ready blocks until hydration finishes or the context ends.
func (e *Engine) Ready(ctx context.Context) error {
	select {
	case <-e.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Open shows the widget, resetting the flow to the gate. Safe before
// hydration completes; it touches no remote data.
func (e *Engine) Open() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Reset()
	e.confirmation = nil
	e.inFlight = false
	e.visible = true
}

// Close hides the widget. The flow state is kept until the next Open.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.visible = false
}

// ChooseGuest takes the guest path through the gate.
func (e *Engine) ChooseGuest() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.ChooseGuest()
}

// PortalURL is the returning-client redirect target, carrying the business
// id. Leaving through it is not a wizard state.
func (e *Engine) PortalURL() string {
	return e.portalBaseURL + "?" + url.Values{"business_id": {e.businessID}}.Encode()
}

// PrevMonth navigates the calendar back one month.
func (e *Engine) PrevMonth() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.PrevMonth()
}

// NextMonth navigates the calendar forward one month.
func (e *Engine) NextMonth() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.NextMonth()
}

// SelectDate picks a calendar day. Availability checks need the hydrated
// schedule, so this waits on the readiness gate.
func (e *Engine) SelectDate(ctx context.Context, date string) error {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return ErrBadDate
	}
	if err := e.Ready(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.SelectDate(day, e.schedule)
}

// SelectTime picks a slot label for the selected day.
func (e *Engine) SelectTime(ctx context.Context, label string) error {
	if err := e.Ready(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.SelectTime(label, e.schedule)
}

// Advance moves the wizard forward one step.
func (e *Engine) Advance() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Advance()
}

// Back moves the wizard to the previous selection step.
func (e *Engine) Back() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Back()
}

// SubmitRequest carries the details-form fields.
type SubmitRequest struct {
	StaffID     string `json:"staff_id"`
	ServiceID   string `json:"service_id"`
	ClientName  string `json:"client_name"`
	ClientPhone string `json:"client_phone"`
}

// Submit builds the draft from the current selection plus the form fields
// and issues the one create call. While a submission is in flight further
// submissions are rejected, mirroring the disabled confirm control. On
// failure the wizard stays on the details step.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*booking.Confirmation, error) {
	e.mu.Lock()
	if e.session.Step() != wizard.StepEnterDetails {
		e.mu.Unlock()
		return nil, wizard.ErrBadTransition
	}
	if e.inFlight {
		e.mu.Unlock()
		return nil, ErrSubmitBusy
	}
	date, _ := e.session.SelectedDate()
	slot, _ := e.session.SelectedTime()
	e.inFlight = true
	e.mu.Unlock()

	draft := booking.Draft{
		BusinessID:  e.businessID,
		StaffID:     req.StaffID,
		ServiceID:   req.ServiceID,
		ClientName:  req.ClientName,
		ClientPhone: req.ClientPhone,
		Date:        date.Format("2006-01-02"),
		Time:        slot,
	}

	start := e.now()
	conf, err := e.bookings.Submit(ctx, draft)
	e.metrics.ObserveGatewayLatency("create", e.now().Sub(start).Seconds())

	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight = false
	if err != nil {
		if errors.Is(err, booking.ErrIncompleteDraft) {
			e.metrics.ObserveAppointment("invalid")
		} else {
			e.metrics.ObserveAppointment("rejected")
		}
		return nil, err
	}
	e.metrics.ObserveAppointment("confirmed")
	if err := e.session.Confirm(); err != nil {
		// The widget was reopened while the create call was in flight. The
		// appointment exists, but the flow has restarted; leave the fresh
		// session alone instead of resurrecting the confirmation screen.
		e.logger.Warn("widget: session reset during submission",
			"business_id", e.businessID, "date", draft.Date, "time", draft.Time)
		return conf, nil
	}
	e.confirmation = conf
	return conf, nil
}
