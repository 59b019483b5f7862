package barcode

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/erp/wooerp/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"ean13", "7501031311309", "7501031311309", false},
		{"ean8", "96385074", "96385074", false},
		{"upca", "036000291452", "036000291452", false},
		{"gtin14", "10012345678902", "10012345678902", false},
		{"spaces and dashes", " 750-1031 311309 ", "7501031311309", false},
		{"full width digits", "７５０１０３１３１１３０９", "7501031311309", false},
		{"tab separated", "7501031\t311309", "7501031311309", false},
		{"too short", "1234567", "", true},
		{"nine digits", "123456789", "", true},
		{"fifteen digits", "123456789012345", "", true},
		{"letters", "75010313113A9", "", true},
		{"empty", "  - ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, shared.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_LengthGate(t *testing.T) {
	for n := 1; n <= 20; n++ {
		code := strings.Repeat("1", n)
		_, err := Normalize(code)
		switch n {
		case 8, 12, 13, 14:
			assert.NoError(t, err, "length %d", n)
		default:
			assert.Error(t, err, "length %d", n)
		}
	}
	assert.Equal(t, "EAN-13", Symbology("7501031311309"))
}

func TestBoundPayload(t *testing.T) {
	entry := &CacheEntry{Source: "openfoodfacts", Title: "Cola", Brand: "Acme"}

	t.Run("small payload kept", func(t *testing.T) {
		raw := json.RawMessage(`{"product":{"name":"Cola"}}`)
		assert.Equal(t, raw, BoundPayload(raw, 1024, entry))
	})

	t.Run("oversized payload summarized", func(t *testing.T) {
		raw := json.RawMessage(`{"blob":"` + strings.Repeat("x", 2000) + `","status":1}`)
		out := BoundPayload(raw, 512, entry)
		require.NotNil(t, out)
		assert.LessOrEqual(t, len(out), 512)

		var s payloadSummary
		require.NoError(t, json.Unmarshal(out, &s))
		assert.True(t, s.Truncated)
		assert.Equal(t, len(raw), s.OriginalBytes)
		assert.Equal(t, "Cola", s.Title)
		assert.ElementsMatch(t, []string{"blob", "status"}, s.TopLevelKeys)
	})

	t.Run("invalid json summarized", func(t *testing.T) {
		out := BoundPayload(json.RawMessage(`{broken`), 1024, entry)
		assert.True(t, json.Valid(out))
	})

	t.Run("summary keys are stable and capped", func(t *testing.T) {
		fields := make([]string, 0, 40)
		for i := 39; i >= 0; i-- {
			fields = append(fields, fmt.Sprintf(`"k%02d":"%s"`, i, strings.Repeat("x", 40)))
		}
		raw := json.RawMessage("{" + strings.Join(fields, ",") + "}")

		first := BoundPayload(raw, 1024, entry)
		for i := 0; i < 20; i++ {
			assert.Equal(t, string(first), string(BoundPayload(raw, 1024, entry)))
		}

		var s payloadSummary
		require.NoError(t, json.Unmarshal(first, &s))
		require.Len(t, s.TopLevelKeys, maxSummaryKeys)
		assert.True(t, sort.StringsAreSorted(s.TopLevelKeys))
		assert.Equal(t, "k00", s.TopLevelKeys[0])
		assert.Equal(t, "k31", s.TopLevelKeys[maxSummaryKeys-1])
	})

	t.Run("empty payload", func(t *testing.T) {
		assert.Nil(t, BoundPayload(nil, 1024, entry))
	})

	t.Run("default cap", func(t *testing.T) {
		raw := json.RawMessage(`{"blob":"` + strings.Repeat("x", DefaultMaxRawPayloadBytes) + `"}`)
		out := BoundPayload(raw, 0, entry)
		assert.Less(t, len(out), DefaultMaxRawPayloadBytes)
	})
}

func TestCacheEntry_HasCandidate(t *testing.T) {
	assert.False(t, (&CacheEntry{Barcode: "7501031311309", Source: "manual", Ignored: true}).HasCandidate())
	assert.True(t, (&CacheEntry{Title: "Cola"}).HasCandidate())
	assert.True(t, (&CacheEntry{Images: []string{"https://img/cola.jpg"}}).HasCandidate())
}

func TestCacheEntryRoundTrip(t *testing.T) {
	c := &Candidate{Barcode: "7501031311309", Title: "Cola", Brand: "Acme", Source: "upcitemdb", Images: []string{"a.jpg"}}
	e := NewCacheEntry(c)
	assert.False(t, e.Ignored)
	assert.Zero(t, e.UsageCount)

	back := e.Candidate()
	assert.Equal(t, c.Title, back.Title)
	assert.Equal(t, c.Images, back.Images)
	assert.False(t, back.IsEmpty())
	assert.True(t, (&Candidate{Barcode: "1"}).IsEmpty())
}

func TestProviderResultConstructors(t *testing.T) {
	assert.Equal(t, ResultOk, Ok("p", &Candidate{}).Kind)
	assert.Equal(t, ResultNotFound, NotFound("p").Kind)
	r := Err("p", assert.AnError)
	assert.Equal(t, ResultErr, r.Kind)
	assert.Equal(t, "error", r.Kind.String())
}
