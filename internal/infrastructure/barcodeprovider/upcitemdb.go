package barcodeprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/erp/wooerp/internal/domain/barcode"
	"github.com/erp/wooerp/internal/domain/integration"
)

const (
	UPCItemDBName = "upcitemdb"
	// UPCItemDBTrialURL is the keyless endpoint, limited to 100 requests a day
	UPCItemDBTrialURL = "https://api.upcitemdb.com/prod/trial"
	// UPCItemDBPaidURL is used when a user key is configured
	UPCItemDBPaidURL = "https://api.upcitemdb.com/prod/v1"
)

// UPCItemDB searches the UPCitemdb catalog
type UPCItemDB struct {
	baseURL string
	key     string
	client  *http.Client
}

// NewUPCItemDB creates the UPCitemdb provider. An empty baseURL picks the
// trial or paid endpoint depending on key.
func NewUPCItemDB(client *http.Client, baseURL, key string) *UPCItemDB {
	if baseURL == "" {
		baseURL = UPCItemDBTrialURL
		if key != "" {
			baseURL = UPCItemDBPaidURL
		}
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &UPCItemDB{baseURL: strings.TrimRight(baseURL, "/"), key: key, client: client}
}

// Name returns the provider name
func (p *UPCItemDB) Name() string {
	return UPCItemDBName
}

type upcItemDBResponse struct {
	Code  string `json:"code"`
	Total int    `json:"total"`
	Items []struct {
		Title                string          `json:"title"`
		Description          string          `json:"description"`
		Brand                string          `json:"brand"`
		Category             string          `json:"category"`
		Images               []string        `json:"images"`
		LowestRecordedPrice  integration.FlexDecimal `json:"lowest_recorded_price"`
		HighestRecordedPrice integration.FlexDecimal `json:"highest_recorded_price"`
	} `json:"items"`
}

// Search looks the code up
func (p *UPCItemDB) Search(ctx context.Context, code string) barcode.ProviderResult {
	var header http.Header
	if p.key != "" {
		header = http.Header{}
		header.Set("user_key", p.key)
		header.Set("key_type", "3scale")
	}

	body, err := getJSON(ctx, p.client, UPCItemDBName, p.baseURL+"/lookup?upc="+url.QueryEscape(code), header)
	if errors.Is(err, errNotFound) {
		return barcode.NotFound(UPCItemDBName)
	}
	if err != nil {
		return barcode.Err(UPCItemDBName, err)
	}

	var resp upcItemDBResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return barcode.Err(UPCItemDBName, fmt.Errorf("%s: invalid response: %w", UPCItemDBName, err))
	}
	if resp.Code != "" && resp.Code != "OK" {
		return barcode.Err(UPCItemDBName, fmt.Errorf("%s: api answered %s", UPCItemDBName, resp.Code))
	}
	if len(resp.Items) == 0 {
		return barcode.NotFound(UPCItemDBName)
	}

	item := resp.Items[0]
	candidate := &barcode.Candidate{
		Barcode:           code,
		Title:             strings.TrimSpace(item.Title),
		Description:       strings.TrimSpace(item.Description),
		Brand:             strings.TrimSpace(item.Brand),
		Images:            item.Images,
		SuggestedCategory: lastCategory(item.Category),
		Source:            UPCItemDBName,
		Raw:               body,
	}
	for _, price := range []integration.FlexDecimal{item.LowestRecordedPrice, item.HighestRecordedPrice} {
		if price.Valid && price.Value.IsPositive() {
			candidate.SuggestedPrice = price.Ptr()
			break
		}
	}
	if candidate.IsEmpty() {
		return barcode.NotFound(UPCItemDBName)
	}
	return barcode.Ok(UPCItemDBName, candidate)
}

// lastCategory returns the leaf of a "A > B > C" category path
func lastCategory(path string) string {
	parts := strings.Split(path, ">")
	return strings.TrimSpace(parts[len(parts)-1])
}
