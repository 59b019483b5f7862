package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// The storefront is inconsistent about JSON types: ids and quantities may
// arrive as numbers or strings, prices are usually strings and may be "".
// An empty string always means absent, never zero.

// FlexInt decodes an integer sent as a JSON number or string
type FlexInt struct {
	Value int64
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	*f = FlexInt{}
	s, ok := flexScalar(data)
	if !ok {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// "12.0" shows up for quantities
		fl, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("integration: cannot read %s as integer", data)
		}
		n = int64(fl)
	}
	f.Value, f.Valid = n, true
	return nil
}

// MarshalJSON implements json.Marshaler
func (f FlexInt) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(f.Value, 10)), nil
}

// Int returns the value, or 0 when absent
func (f FlexInt) Int() int {
	return int(f.Value)
}

// FlexDecimal decodes a decimal sent as a JSON number or string
type FlexDecimal struct {
	Value decimal.Decimal
	Valid bool
}

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexDecimal) UnmarshalJSON(data []byte) error {
	*f = FlexDecimal{}
	s, ok := flexScalar(data)
	if !ok {
		return nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("integration: cannot read %s as decimal", data)
	}
	f.Value, f.Valid = v, true
	return nil
}

// MarshalJSON implements json.Marshaler
func (f FlexDecimal) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value.String())
}

// Ptr returns nil when absent
func (f FlexDecimal) Ptr() *decimal.Decimal {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// OrZero returns the value, or zero when absent
func (f FlexDecimal) OrZero() decimal.Decimal {
	if !f.Valid {
		return decimal.Zero
	}
	return f.Value
}

// FlexString decodes a string that may arrive as a JSON number
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	s, _ := flexScalar(data)
	*f = FlexString(s)
	return nil
}

// flexScalar returns the textual form of a JSON scalar. ok is false for
// null, "" and non-scalar values.
func flexScalar(data []byte) (string, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", false
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", false
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	case '{', '[':
		return "", false
	case 't', 'f':
		return "", false
	}
	return string(data), true
}
