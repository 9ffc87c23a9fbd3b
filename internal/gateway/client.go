// Package gateway is the only interface to the hosted data service. It
// speaks PostgREST over HTTP; everything else in the engine works with the
// typed records it returns.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/netstudio/booking-engine/pkg/logging"
)

const (
	defaultTimeout = 20 * time.Second
	restPrefix     = "/rest/v1/"

	// PostgREST media type for single-object responses.
	acceptSingleObject = "application/vnd.pgrst.object+json"
)

// Client is a lightweight PostgREST client scoped to one deployment.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a data service client. Both the endpoint and the access
// key are required.
func NewClient(baseURL, anonKey string, logger *logging.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("gateway: missing endpoint")
	}
	if strings.TrimSpace(anonKey) == "" {
		return nil, fmt.Errorf("gateway: missing access key")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL: baseURL,
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}, nil
}

// GetBusiness reads the tenant record by id.
func (c *Client) GetBusiness(ctx context.Context, businessID string) (*Business, error) {
	q := url.Values{}
	q.Set("id", "eq."+businessID)
	q.Set("select", "name,bio,shop_bio")

	var biz Business
	if err := c.get(ctx, "business", q, true, &biz); err != nil {
		return nil, err
	}
	return &biz, nil
}

// ListHours reads all weekly-hours rows for a business.
func (c *Client) ListHours(ctx context.Context, businessID string) ([]HoursRecord, error) {
	q := url.Values{}
	q.Set("business_id", "eq."+businessID)
	q.Set("select", "day_of_week,is_closed,open_time,close_time")

	var hours []HoursRecord
	if err := c.get(ctx, "business_hours", q, false, &hours); err != nil {
		return nil, err
	}
	return hours, nil
}

// ListStaff reads active, booking-enabled team members ordered by name.
func (c *Client) ListStaff(ctx context.Context, businessID string) ([]StaffMember, error) {
	q := url.Values{}
	q.Set("business_id", "eq."+businessID)
	q.Set("is_active", "eq.true")
	q.Set("accepts_bookings", "eq.true")
	q.Set("select", "id,name")
	q.Set("order", "name")

	var staff []StaffMember
	if err := c.get(ctx, "team_members", q, false, &staff); err != nil {
		return nil, err
	}
	return staff, nil
}

// ListServices reads active services ordered by name.
func (c *Client) ListServices(ctx context.Context, businessID string) ([]Service, error) {
	q := url.Values{}
	q.Set("business_id", "eq."+businessID)
	q.Set("is_active", "eq.true")
	q.Set("select", "id,name,price")
	q.Set("order", "name")

	var services []Service
	if err := c.get(ctx, "services", q, false, &services); err != nil {
		return nil, err
	}
	return services, nil
}

// CreateAppointment inserts one appointment row. Exactly one attempt; the
// caller owns any user-facing recovery.
func (c *Client) CreateAppointment(ctx context.Context, appt Appointment) error {
	// PostgREST inserts take an array of rows.
	body, err := json.Marshal([]Appointment{appt})
	if err != nil {
		return fmt.Errorf("gateway: marshal appointment: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "appointments", nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: create appointment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError("create appointment", resp)
	}
	return nil
}

func (c *Client) get(ctx context.Context, table string, query url.Values, single bool, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, table, query, nil)
	if err != nil {
		return err
	}
	if single {
		req.Header.Set("Accept", acceptSingleObject)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway: read %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError("read "+table, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gateway: decode %s: %w", table, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, table string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + restPrefix + table
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("gateway: create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.anonKey)
	return req, nil
}

func (c *Client) statusError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	msg := string(raw)
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return fmt.Errorf("gateway: %s: status %d: %s", op, resp.StatusCode, msg)
}
