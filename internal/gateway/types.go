package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Business is the tenant record shown on the widget header.
type Business struct {
	Name    string `json:"name"`
	Bio     string `json:"bio"`
	ShopBio string `json:"shop_bio"`
}

// Tagline returns the display subtitle, preferring the shop-specific bio.
func (b *Business) Tagline() string {
	if b == nil {
		return ""
	}
	if strings.TrimSpace(b.ShopBio) != "" {
		return b.ShopBio
	}
	return b.Bio
}

// HoursRecord is one weekday row from the business_hours table.
type HoursRecord struct {
	DayOfWeek string `json:"day_of_week"`
	IsClosed  bool   `json:"is_closed"`
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
}

// StaffMember is an active, booking-enabled team member.
type StaffMember struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Service is an active service offering. Price is kept as the raw JSON
// number so display formatting matches what the backend stores.
type Service struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Price json.Number `json:"price"`
}

// Label renders the dropdown text for a service.
func (s Service) Label() string {
	return fmt.Sprintf("%s ($%s)", s.Name, s.Price)
}

// Appointment is the insert payload for a new booking. TeamMemberID is nil
// for "any available". AppointmentTime carries the display-formatted label
// the visitor picked, not a normalized 24-hour time.
type Appointment struct {
	BusinessID      string  `json:"business_id"`
	TeamMemberID    *string `json:"team_member_id"`
	ServiceID       string  `json:"service_id"`
	ClientName      string  `json:"client_name"`
	ClientPhone     string  `json:"client_phone"`
	AppointmentDate string  `json:"appointment_date"` // "2006-01-02"
	AppointmentTime string  `json:"appointment_time"`
}
