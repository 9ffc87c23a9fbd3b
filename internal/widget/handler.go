package widget

import (
	"context"
	"crypto/rand"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/netstudio/booking-engine/internal/booking"
	"github.com/netstudio/booking-engine/internal/identity"
	"github.com/netstudio/booking-engine/internal/observability/metrics"
	"github.com/netstudio/booking-engine/internal/wizard"
	"github.com/netstudio/booking-engine/pkg/logging"
)

//go:embed assets/widget.js
var widgetJS []byte

// HandlerConfig wires the widget HTTP surface.
type HandlerConfig struct {
	Resolver       *identity.Resolver
	Source         DataSource
	Bookings       Submitter
	PortalBaseURL  string
	SessionMaxIdle time.Duration
	Logger         *logging.Logger
	Metrics        *metrics.WidgetMetrics
	Now            func() time.Time
}

// Handler exposes the widget engine to the loader script: session
// creation, wizard actions, state snapshots, and the script itself.
type Handler struct {
	resolver      *identity.Resolver
	source        DataSource
	bookings      Submitter
	portalBaseURL string
	maxIdle       time.Duration
	logger        *logging.Logger
	metrics       *metrics.WidgetMetrics
	now           func() time.Time

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	engine   *Engine
	lastSeen time.Time
}

// NewHandler creates the widget handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Resolver == nil {
		panic("widget: resolver required")
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
	if cfg.SessionMaxIdle <= 0 {
		cfg.SessionMaxIdle = 30 * time.Minute
	}
	return &Handler{
		resolver:      cfg.Resolver,
		source:        cfg.Source,
		bookings:      cfg.Bookings,
		portalBaseURL: cfg.PortalBaseURL,
		maxIdle:       cfg.SessionMaxIdle,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		now:           cfg.Now,
		sessions:      make(map[string]*sessionEntry),
	}
}

// Routes returns the chi router for the widget API.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/sessions", h.CreateSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/state", h.GetState)
		r.Post("/open", h.OpenWidget)
		r.Post("/close", h.CloseWidget)
		r.Post("/gate", h.Gate)
		r.Post("/month", h.Month)
		r.Post("/date", h.SelectDate)
		r.Post("/time", h.SelectTime)
		r.Post("/continue", h.Continue)
		r.Post("/back", h.Back)
		r.Post("/book", h.Book)
	})
	r.Get("/widget.js", h.WidgetJS)
	return r
}

type createSessionRequest struct {
	Embed identity.EmbedSnapshot `json:"embed"`
}

type createSessionResponse struct {
	SessionID  string `json:"session_id"`
	BusinessID string `json:"business_id"`
}

// CreateSession resolves the business identity from the embed snapshot and
// starts a hydrated engine for it. Unresolvable identity aborts with a
// single diagnostic; no gateway call is ever made for such a session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	businessID, err := h.resolver.Resolve(r.Context(), req.Embed)
	if err != nil {
		h.logger.Error("widget: no business id found in embed, cache, or url")
		writeError(w, http.StatusUnprocessableEntity, "no business id found")
		return
	}

	engine := NewEngine(EngineConfig{
		BusinessID:    businessID,
		Source:        h.source,
		Bookings:      h.bookings,
		PortalBaseURL: h.portalBaseURL,
		Logger:        h.logger,
		Metrics:       h.metrics,
		Now:           h.now,
	})

	sessionID := generateSessionID()
	h.mu.Lock()
	h.pruneLocked()
	h.sessions[sessionID] = &sessionEntry{engine: engine, lastSeen: h.now()}
	h.mu.Unlock()

	// Hydration outlives this request; snapshots wait on its gate.
	go engine.Hydrate(context.WithoutCancel(r.Context()))

	h.metrics.ObserveSessionStarted()
	h.logger.Info("widget session started", "session_id", sessionID, "business_id", businessID)
	writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: sessionID, BusinessID: businessID})
}

// GetState returns the current render snapshot.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.writeState(w, r, engine)
}

// OpenWidget resets the flow and shows the widget.
func (h *Handler) OpenWidget(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.lookup(w, r)
	if !ok {
		return
	}
	engine.Open()
	w.WriteHeader(http.StatusNoContent)
}

// CloseWidget hides the widget.
func (h *Handler) CloseWidget(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.lookup(w, r)
	if !ok {
		return
	}
	engine.Close()
	w.WriteHeader(http.StatusNoContent)
}

// Gate handles the entry choice. Guests continue in the wizard; returning
// clients get the portal redirect and leave the widget.
func (h *Handler) Gate(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Choice string `json:"choice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch req.Choice {
	case "returning":
		writeJSON(w, http.StatusOK, map[string]string{"redirect_url": engine.PortalURL()})
	case "guest":
		if err := engine.ChooseGuest(); err != nil {
			h.writeActionError(w, err)
			return
		}
		h.writeState(w, r, engine)
	default:
		writeError(w, http.StatusBadRequest, "choice must be guest or returning")
	}
}

// Month navigates the calendar.
func (h *Handler) Month(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var err error
	switch req.Direction {
	case "prev":
		err = engine.PrevMonth()
	case "next":
		err = engine.NextMonth()
	default:
		writeError(w, http.StatusBadRequest, "direction must be prev or next")
		return
	}
	if err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeState(w, r, engine)
}

// SelectDate picks a calendar day.
func (h *Handler) SelectDate(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := engine.SelectDate(r.Context(), req.Date); err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeState(w, r, engine)
}

// SelectTime picks a slot.
func (h *Handler) SelectTime(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Time string `json:"time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := engine.SelectTime(r.Context(), req.Time); err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeState(w, r, engine)
}

// Continue advances the wizard.
func (h *Handler) Continue(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := engine.Advance(); err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeState(w, r, engine)
}

// Back returns to the previous step.
func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := engine.Back(); err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeState(w, r, engine)
}

// Book submits the completed draft.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	engine, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := engine.Submit(r.Context(), req); err != nil {
		h.writeActionError(w, err)
		return
	}
	h.writeState(w, r, engine)
}

// WidgetJS serves the embeddable loader script.
func (h *Handler) WidgetJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(widgetJS)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*Engine, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	h.mu.Lock()
	entry, ok := h.sessions[sessionID]
	if ok {
		entry.lastSeen = h.now()
	}
	h.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return nil, false
	}
	return entry.engine, true
}

// pruneLocked drops sessions idle past the limit. Caller holds h.mu.
func (h *Handler) pruneLocked() {
	cutoff := h.now().Add(-h.maxIdle)
	for id, entry := range h.sessions {
		if entry.lastSeen.Before(cutoff) {
			delete(h.sessions, id)
		}
	}
}

func (h *Handler) writeState(w http.ResponseWriter, r *http.Request, engine *Engine) {
	st, err := engine.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "session not ready")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) writeActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, wizard.ErrBadTransition), errors.Is(err, ErrSubmitBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, wizard.ErrDayUnavailable),
		errors.Is(err, wizard.ErrSlotUnavailable),
		errors.Is(err, wizard.ErrNothingSelected),
		errors.Is(err, ErrBadDate),
		errors.Is(err, booking.ErrIncompleteDraft):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "session not ready")
	default:
		// Gateway rejection or network failure: surface the raw message,
		// leave the wizard where it is.
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// generateSessionID creates a random session identifier.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}
