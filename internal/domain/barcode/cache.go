package barcode

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultMaxRawPayloadBytes caps the stored provider payload
const DefaultMaxRawPayloadBytes = 64 * 1024

// CacheEntry is a remembered provider answer keyed by barcode
type CacheEntry struct {
	ID                uuid.UUID
	Barcode           string
	Title             string
	Description       string
	Brand             string
	Images            []string
	Source            string
	SuggestedPrice    *decimal.Decimal
	SuggestedCategory string
	RawPayload        json.RawMessage

	Ignored   bool
	IgnoredBy string
	IgnoredAt *time.Time

	UsageCount int
	LastUsedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewCacheEntry builds an entry from a winning candidate
func NewCacheEntry(c *Candidate) *CacheEntry {
	now := time.Now()
	return &CacheEntry{
		ID:                uuid.New(),
		Barcode:           c.Barcode,
		Title:             c.Title,
		Description:       c.Description,
		Brand:             c.Brand,
		Images:            c.Images,
		Source:            c.Source,
		SuggestedPrice:    c.SuggestedPrice,
		SuggestedCategory: c.SuggestedCategory,
		RawPayload:        c.Raw,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// HasCandidate reports whether the entry carries provider data. Stub rows
// written to remember the dismissal of an unknown barcode do not.
func (e *CacheEntry) HasCandidate() bool {
	return e.Title != "" || e.Brand != "" || e.Description != "" || len(e.Images) > 0
}

// Candidate converts the entry back into a candidate
func (e *CacheEntry) Candidate() *Candidate {
	return &Candidate{
		Barcode:           e.Barcode,
		Title:             e.Title,
		Description:       e.Description,
		Brand:             e.Brand,
		Images:            e.Images,
		Source:            e.Source,
		SuggestedPrice:    e.SuggestedPrice,
		SuggestedCategory: e.SuggestedCategory,
	}
}

// maxSummaryKeys caps the key list kept for an oversized payload
const maxSummaryKeys = 32

type payloadSummary struct {
	Truncated     bool     `json:"truncated"`
	OriginalBytes int      `json:"original_bytes"`
	Source        string   `json:"source"`
	Title         string   `json:"title,omitempty"`
	Brand         string   `json:"brand,omitempty"`
	TopLevelKeys  []string `json:"top_level_keys,omitempty"`
}

// BoundPayload returns raw when it fits in max bytes, else a small summary.
// Invalid JSON is replaced by the summary as well, so the stored blob is
// always valid JSON.
func BoundPayload(raw json.RawMessage, max int, e *CacheEntry) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	if max <= 0 {
		max = DefaultMaxRawPayloadBytes
	}
	if len(raw) <= max && json.Valid(raw) {
		return raw
	}

	summary := payloadSummary{
		Truncated:     true,
		OriginalBytes: len(raw),
		Source:        e.Source,
		Title:         e.Title,
		Brand:         e.Brand,
	}
	var top map[string]json.RawMessage
	if json.Unmarshal(raw, &top) == nil && len(top) > 0 {
		keys := make([]string, 0, len(top))
		for k := range top {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > maxSummaryKeys {
			keys = keys[:maxSummaryKeys]
		}
		summary.TopLevelKeys = keys
	}
	out, err := json.Marshal(summary)
	if err != nil || len(out) > max {
		return nil
	}
	return out
}

// CacheRepository persists provider answers
type CacheRepository interface {
	// Find returns the entry regardless of its ignored flag
	Find(ctx context.Context, code string) (*CacheEntry, error)

	// Upsert inserts or updates the entry keyed by barcode. It never clears
	// the ignored flag and never resets the usage counter.
	Upsert(ctx context.Context, entry *CacheEntry) error

	// MarkIgnored flags the barcode as dismissed by actor. Idempotent: the
	// first actor and timestamp are kept.
	MarkIgnored(ctx context.Context, code, actor string) error

	// IsIgnored reports whether the barcode was dismissed
	IsIgnored(ctx context.Context, code string) (bool, error)

	// TouchUsage increments the hit counter and sets last-used time
	TouchUsage(ctx context.Context, code string) error
}
