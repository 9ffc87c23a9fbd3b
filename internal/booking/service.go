// Package booking validates a completed wizard selection and issues the
// single create-appointment call to the data service.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/netstudio/booking-engine/internal/gateway"
	"github.com/netstudio/booking-engine/pkg/logging"
)

var bookingTracer = otel.Tracer("netstudio.internal.booking")

// ErrIncompleteDraft is returned when required fields are missing. No
// network call is made in that case.
var ErrIncompleteDraft = errors.New("booking: please fill in all details")

// Draft is the not-yet-submitted booking assembled from the wizard state
// and the details form. It is built at submission time and never persisted
// partially.
type Draft struct {
	BusinessID  string
	StaffID     string // optional; empty means "any available"
	ServiceID   string
	ClientName  string
	ClientPhone string
	Date        string // "2006-01-02"
	Time        string // display-formatted slot label
}

// Confirmation is the successful outcome shown to the visitor.
type Confirmation struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// Summary echoes the submitted date and time verbatim.
func (c Confirmation) Summary() string {
	return fmt.Sprintf("%s @ %s", c.Date, c.Time)
}

// Creator is the slice of the data gateway this service needs.
type Creator interface {
	CreateAppointment(ctx context.Context, appt gateway.Appointment) error
}

// Service submits booking drafts.
type Service struct {
	creator Creator
	logger  *logging.Logger
}

// NewService constructs a booking service.
func NewService(creator Creator, logger *logging.Logger) *Service {
	if creator == nil {
		panic("booking: creator required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{creator: creator, logger: logger}
}

// Submit validates the draft and issues exactly one create call. Validation
// failures return ErrIncompleteDraft before any network activity; gateway
// failures pass through unchanged so the raw message can be surfaced. There
// are no retries.
func (s *Service) Submit(ctx context.Context, draft Draft) (*Confirmation, error) {
	draft.ClientName = strings.TrimSpace(draft.ClientName)
	draft.ClientPhone = strings.TrimSpace(draft.ClientPhone)
	if draft.ServiceID == "" || draft.ClientName == "" || draft.ClientPhone == "" {
		return nil, ErrIncompleteDraft
	}

	ctx, span := bookingTracer.Start(ctx, "booking.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.business_id", draft.BusinessID),
		attribute.String("booking.service_id", draft.ServiceID),
	)

	appt := gateway.Appointment{
		BusinessID:      draft.BusinessID,
		ServiceID:       draft.ServiceID,
		ClientName:      draft.ClientName,
		ClientPhone:     draft.ClientPhone,
		AppointmentDate: draft.Date,
		AppointmentTime: draft.Time,
	}
	if staffID := strings.TrimSpace(draft.StaffID); staffID != "" {
		appt.TeamMemberID = &staffID
	}

	if err := s.creator.CreateAppointment(ctx, appt); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.Info("appointment booked",
		"business_id", draft.BusinessID,
		"service_id", draft.ServiceID,
		"date", draft.Date,
		"time", draft.Time,
	)
	return &Confirmation{Date: draft.Date, Time: draft.Time}, nil
}
