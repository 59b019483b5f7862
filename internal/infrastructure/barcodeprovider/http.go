// Package barcodeprovider contains the external product databases searched
// by barcode: Open Food Facts, Open Beauty Facts and UPCitemdb.
package barcodeprovider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/erp/wooerp/internal/infrastructure/telemetry"
)

// maxResponseSize caps a provider answer (2MB)
const maxResponseSize = 2 * 1024 * 1024

// userAgent identifies the ERP to the open data APIs, which ask for one
const userAgent = "wooerp-barcode-lookup/1.0"

// errNotFound marks an answer that means "no such product"
var errNotFound = errors.New("barcodeprovider: product not found")

// getJSON performs a GET and returns the body of a 2xx answer. A 404 yields
// errNotFound.
func getJSON(ctx context.Context, client *http.Client, provider, url string, header http.Header) ([]byte, error) {
	ctx, span := telemetry.StartSpan(ctx, "barcode_provider "+provider,
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute("barcode.provider", provider),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", provider, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := client.Do(req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%s: request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%s: failed to read response: %w", provider, err)
	}

	telemetry.SetAttribute(span, "http.status_code", resp.StatusCode)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errNotFound
	case resp.StatusCode >= 300:
		err := fmt.Errorf("%s: HTTP %d", provider, resp.StatusCode)
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)
	return body, nil
}
