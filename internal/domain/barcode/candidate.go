package barcode

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Candidate is a product description proposed by a provider, not yet persisted
type Candidate struct {
	Barcode           string
	Title             string
	Description       string
	Brand             string
	Images            []string
	Source            string
	SuggestedPrice    *decimal.Decimal
	SuggestedCategory string
	// Raw is the provider answer, kept for audit only
	Raw json.RawMessage
}

// IsEmpty reports whether the candidate carries nothing usable
func (c *Candidate) IsEmpty() bool {
	return c == nil || (c.Title == "" && c.Brand == "" && c.Description == "")
}

// ResultKind distinguishes a provider that found nothing from one that failed
type ResultKind int

const (
	ResultNotFound ResultKind = iota
	ResultOk
	ResultErr
)

// String returns the string representation of ResultKind
func (k ResultKind) String() string {
	switch k {
	case ResultOk:
		return "ok"
	case ResultErr:
		return "error"
	default:
		return "not_found"
	}
}

// ProviderResult is the outcome of one provider search
type ProviderResult struct {
	Provider  string
	Kind      ResultKind
	Candidate *Candidate
	Err       error
}

// Ok builds a successful result
func Ok(provider string, c *Candidate) ProviderResult {
	return ProviderResult{Provider: provider, Kind: ResultOk, Candidate: c}
}

// NotFound builds an empty result
func NotFound(provider string) ProviderResult {
	return ProviderResult{Provider: provider, Kind: ResultNotFound}
}

// Err builds a failed result
func Err(provider string, err error) ProviderResult {
	return ProviderResult{Provider: provider, Kind: ResultErr, Err: err}
}

// Provider is an external product database searched by barcode.
// Search never panics on network failures; they are returned as ResultErr.
type Provider interface {
	Name() string
	Search(ctx context.Context, code string) ProviderResult
}
