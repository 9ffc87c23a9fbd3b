// Package identity establishes the stable tenant identifier the rest of
// the widget depends on. Resolution follows a fixed precedence: values
// embedded in the host page, then the persistent cache, then the page URL.
package identity

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/netstudio/booking-engine/pkg/logging"
)

// QueryParam is the recognized URL parameter for manual linking.
const QueryParam = "business_id"

// ErrUnresolved means no source produced a business id. Callers must abort
// initialization; nothing downstream may run without a tenant.
var ErrUnresolved = errors.New("identity: no business id found in embed, cache, or url")

// EmbedSnapshot is the typed capture of the page-embedding surface the
// loader script sends when a session starts. The three attribute values
// mirror where the data attribute may live: a dedicated marker element,
// the document body, or any other element carrying it.
type EmbedSnapshot struct {
	MarkerID string `json:"marker_id"`
	BodyID   string `json:"body_id"`
	AnyID    string `json:"any_id"`

	// PageURL is the embedding page's full URL; its business_id query
	// parameter is the last-resort source.
	PageURL string `json:"page_url"`

	// VisitorKey identifies the visitor for the sticky cache. Empty
	// disables caching for this resolution.
	VisitorKey string `json:"visitor_key"`
}

// Resolver resolves and caches business identities.
type Resolver struct {
	cache  Cache
	logger *logging.Logger
}

// NewResolver creates a resolver. A nil cache degrades to in-memory.
func NewResolver(cache Cache, logger *logging.Logger) *Resolver {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{cache: cache, logger: logger}
}

// Resolve returns the business id for a snapshot, writing DOM- and
// URL-sourced values through to the cache so later visits resolve even
// when the page no longer embeds the attribute. Whitespace-only values
// count as absent everywhere.
func (r *Resolver) Resolve(ctx context.Context, snap EmbedSnapshot) (string, error) {
	if id := firstNonEmpty(snap.MarkerID, snap.BodyID, snap.AnyID); id != "" {
		r.writeThrough(ctx, snap.VisitorKey, id)
		return id, nil
	}

	if snap.VisitorKey != "" {
		if id, ok := r.cache.Get(ctx, snap.VisitorKey); ok {
			return id, nil
		}
	}

	if id := queryBusinessID(snap.PageURL); id != "" {
		r.writeThrough(ctx, snap.VisitorKey, id)
		return id, nil
	}

	return "", ErrUnresolved
}

func (r *Resolver) writeThrough(ctx context.Context, key, id string) {
	if key == "" {
		return
	}
	r.cache.Set(ctx, key, id)
}

func queryBusinessID(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(u.Query().Get(QueryParam))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
