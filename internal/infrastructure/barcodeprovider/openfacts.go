package barcodeprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/erp/wooerp/internal/domain/barcode"
)

// Open Food Facts and Open Beauty Facts share one API
const (
	OpenFoodFactsName       = "openfoodfacts"
	OpenBeautyFactsName     = "openbeautyfacts"
	OpenFoodFactsBaseURL    = "https://world.openfoodfacts.org"
	OpenBeautyFactsBaseURL  = "https://world.openbeautyfacts.org"
	openFactsProductFields  = "product_name,generic_name,brands,image_url,image_front_url,categories"
	openFactsStatusNotFound = 0
)

// OpenFacts searches an Open*Facts database
type OpenFacts struct {
	name    string
	baseURL string
	client  *http.Client
}

// NewOpenFoodFacts creates the Open Food Facts provider. An empty baseURL
// uses the public instance.
func NewOpenFoodFacts(client *http.Client, baseURL string) *OpenFacts {
	return newOpenFacts(OpenFoodFactsName, OpenFoodFactsBaseURL, client, baseURL)
}

// NewOpenBeautyFacts creates the Open Beauty Facts provider
func NewOpenBeautyFacts(client *http.Client, baseURL string) *OpenFacts {
	return newOpenFacts(OpenBeautyFactsName, OpenBeautyFactsBaseURL, client, baseURL)
}

func newOpenFacts(name, defaultURL string, client *http.Client, baseURL string) *OpenFacts {
	if baseURL == "" {
		baseURL = defaultURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenFacts{name: name, baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Name returns the provider name
func (p *OpenFacts) Name() string {
	return p.name
}

type openFactsResponse struct {
	Status  int `json:"status"`
	Product struct {
		ProductName   string `json:"product_name"`
		GenericName   string `json:"generic_name"`
		Brands        string `json:"brands"`
		ImageURL      string `json:"image_url"`
		ImageFrontURL string `json:"image_front_url"`
		Categories    string `json:"categories"`
	} `json:"product"`
}

// Search looks the code up
func (p *OpenFacts) Search(ctx context.Context, code string) barcode.ProviderResult {
	url := fmt.Sprintf("%s/api/v2/product/%s.json?fields=%s", p.baseURL, code, openFactsProductFields)
	body, err := getJSON(ctx, p.client, p.name, url, nil)
	if errors.Is(err, errNotFound) {
		return barcode.NotFound(p.name)
	}
	if err != nil {
		return barcode.Err(p.name, err)
	}

	var resp openFactsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return barcode.Err(p.name, fmt.Errorf("%s: invalid response: %w", p.name, err))
	}
	if resp.Status == openFactsStatusNotFound {
		return barcode.NotFound(p.name)
	}

	product := resp.Product
	candidate := &barcode.Candidate{
		Barcode:           code,
		Title:             strings.TrimSpace(product.ProductName),
		Description:       strings.TrimSpace(product.GenericName),
		Brand:             firstListItem(product.Brands),
		SuggestedCategory: lastListItem(product.Categories),
		Source:            p.name,
		Raw:               body,
	}
	for _, img := range []string{product.ImageFrontURL, product.ImageURL} {
		if img != "" && !contains(candidate.Images, img) {
			candidate.Images = append(candidate.Images, img)
		}
	}
	if candidate.IsEmpty() {
		return barcode.NotFound(p.name)
	}
	return barcode.Ok(p.name, candidate)
}

// firstListItem returns the first entry of a comma-separated tag list
func firstListItem(list string) string {
	first, _, _ := strings.Cut(list, ",")
	return strings.TrimSpace(first)
}

// lastListItem returns the most specific entry of a comma-separated category path
func lastListItem(list string) string {
	parts := strings.Split(list, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(parts[i]); s != "" {
			return s
		}
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
