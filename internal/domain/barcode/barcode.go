// Package barcode contains the barcode lookup bounded context: the format
// gate, provider results and the lookup cache.
package barcode

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/erp/wooerp/internal/domain/shared"
	"golang.org/x/text/width"
)

// validLengths are EAN-8, UPC-A, EAN-13 and GTIN-14
var validLengths = map[int]string{
	8:  "EAN-8",
	12: "UPC-A",
	13: "EAN-13",
	14: "GTIN-14",
}

// Normalize strips whitespace and dashes and checks the remaining string is
// an all-digit code of a supported length. Full-width digits from scanners
// and input methods are folded first.
func Normalize(raw string) (string, error) {
	folded := width.Narrow.String(raw)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsSpace(r) || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	code := b.String()

	if code == "" {
		return "", shared.NewValidationError("barcode", "barcode is empty")
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", shared.NewValidationError("barcode",
				fmt.Sprintf("barcode %q must contain only digits", raw))
		}
	}
	if _, ok := validLengths[len(code)]; !ok {
		return "", shared.NewValidationError("barcode",
			fmt.Sprintf("barcode %q has %d digits, expected 8, 12, 13 or 14", raw, len(code)))
	}
	return code, nil
}

// Symbology names the format of a normalized code
func Symbology(code string) string {
	return validLengths[len(code)]
}
