package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/erp/wooerp/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Action is what an inbound order event asks for
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// IsValid returns true if the action is known
func (a Action) IsValid() bool {
	return a == ActionCreate || a == ActionUpdate || a == ActionDelete
}

// ParseAction reads an action name, defaulting to create
func ParseAction(s string) Action {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if a.IsValid() {
		return a
	}
	return ActionCreate
}

// ActionFromTopic maps a webhook topic such as order.updated to an action
func ActionFromTopic(topic string) Action {
	_, event, _ := strings.Cut(strings.ToLower(strings.TrimSpace(topic)), ".")
	switch event {
	case "updated", "restored":
		return ActionUpdate
	case "deleted", "trashed":
		return ActionDelete
	default:
		return ActionCreate
	}
}

// wrapperKeys are probed in order; the first one holding an object is unwrapped
var wrapperKeys = []string{"order", "data", "payload", "resource"}

// unwrapPayload returns the object nested under the first wrapper key
// present, else the body itself
func unwrapPayload(data []byte) ([]byte, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, shared.NewValidationError("payload", "payload is not a JSON object")
	}
	for _, key := range wrapperKeys {
		inner, ok := top[key]
		if !ok {
			continue
		}
		inner = bytes.TrimSpace(inner)
		if len(inner) > 0 && inner[0] == '{' {
			return inner, nil
		}
	}
	return data, nil
}

// InboundLineItem is one line of an inbound order
type InboundLineItem struct {
	ExternalProductID int64
	SKU               string
	Name              string
	Quantity          int
	Price             *decimal.Decimal
	Total             decimal.Decimal
}

// UnitPrice returns the explicit price, else total divided by quantity.
// A non-positive quantity yields zero.
func (i InboundLineItem) UnitPrice() decimal.Decimal {
	if i.Price != nil {
		return *i.Price
	}
	if i.Quantity <= 0 {
		return decimal.Zero
	}
	return i.Total.Div(decimal.NewFromInt(int64(i.Quantity))).Round(2)
}

// InboundOrder is the normalized form of an order pushed by the storefront
type InboundOrder struct {
	// Test is set for connectivity pings that carry only a webhook id
	Test      bool
	WebhookID string

	ExternalID    int64
	Number        string
	Status        string
	Email         string
	CustomerID    int64
	Billing       Address
	Shipping      Address
	ShippingLine  string
	Items         []InboundLineItem
	ShippingTotal decimal.Decimal
	Total         decimal.Decimal
	CustomerNote  string
	PaymentMethod string

	// PresentKeys lists the top-level keys of the unwrapped payload
	PresentKeys []string
	Raw         json.RawMessage
}

type wireAddress struct {
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Company   string     `json:"company"`
	Address1  string     `json:"address_1"`
	Address2  string     `json:"address_2"`
	City      string     `json:"city"`
	State     string     `json:"state"`
	Postcode  FlexString `json:"postcode"`
	Country   string     `json:"country"`
	Email     string     `json:"email"`
	Phone     FlexString `json:"phone"`
}

func (w wireAddress) toAddress() Address {
	return Address{
		FirstName: w.FirstName,
		LastName:  w.LastName,
		Company:   w.Company,
		Address1:  w.Address1,
		Address2:  w.Address2,
		City:      w.City,
		State:     w.State,
		Postcode:  string(w.Postcode),
		Country:   w.Country,
		Email:     strings.TrimSpace(w.Email),
		Phone:     string(w.Phone),
	}
}

type wireOrder struct {
	ID            FlexInt     `json:"id"`
	Number        FlexString  `json:"number"`
	Status        string      `json:"status"`
	Email         string      `json:"email"`
	CustomerID    FlexInt     `json:"customer_id"`
	Billing       wireAddress `json:"billing"`
	Shipping      wireAddress `json:"shipping"`
	ShippingTotal FlexDecimal `json:"shipping_total"`
	Total         FlexDecimal `json:"total"`
	CustomerNote  string      `json:"customer_note"`
	PaymentMethod string      `json:"payment_method"`
	LineItems     []struct {
		ProductID FlexInt     `json:"product_id"`
		SKU       FlexString  `json:"sku"`
		Name      string      `json:"name"`
		Quantity  FlexInt     `json:"quantity"`
		Price     FlexDecimal `json:"price"`
		Total     FlexDecimal `json:"total"`
	} `json:"line_items"`
	ShippingLines []struct {
		MethodTitle string `json:"method_title"`
	} `json:"shipping_lines"`
}

// DecodeOrderPayload normalizes an inbound order body. It unwraps wrapper
// keys and recognizes connectivity pings, including the form-encoded
// webhook_id=N body the storefront sends when a webhook is saved.
func DecodeOrderPayload(data []byte) (*InboundOrder, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, shared.NewValidationError("payload", "payload is empty")
	}
	if trimmed[0] != '{' {
		if form, err := url.ParseQuery(string(trimmed)); err == nil && form.Get("webhook_id") != "" {
			return &InboundOrder{Test: true, WebhookID: form.Get("webhook_id")}, nil
		}
		return nil, shared.NewValidationError("payload", "payload is not a JSON object")
	}

	body, err := unwrapPayload(trimmed)
	if err != nil {
		return nil, err
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(body, &keys); err != nil {
		return nil, shared.NewValidationError("payload", "payload is not a JSON object")
	}
	present := make([]string, 0, len(keys))
	for k := range keys {
		present = append(present, k)
	}
	sort.Strings(present)

	if _, hasID := keys["id"]; !hasID {
		if hook, ok := keys["webhook_id"]; ok {
			var id FlexString
			_ = json.Unmarshal(hook, &id)
			return &InboundOrder{Test: true, WebhookID: string(id), PresentKeys: present}, nil
		}
	}

	var w wireOrder
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, shared.NewValidationError("payload", fmt.Sprintf("malformed order payload: %v", err))
	}

	o := &InboundOrder{
		ExternalID:    w.ID.Value,
		Number:        strings.TrimSpace(string(w.Number)),
		Status:        strings.TrimSpace(w.Status),
		CustomerID:    w.CustomerID.Value,
		Billing:       w.Billing.toAddress(),
		Shipping:      w.Shipping.toAddress(),
		ShippingTotal: w.ShippingTotal.OrZero(),
		Total:         w.Total.OrZero(),
		CustomerNote:  w.CustomerNote,
		PaymentMethod: w.PaymentMethod,
		PresentKeys:   present,
		Raw:           append(json.RawMessage(nil), body...),
	}
	if o.Number == "" && o.ExternalID > 0 {
		o.Number = strconv.FormatInt(o.ExternalID, 10)
	}
	if len(w.ShippingLines) > 0 {
		o.ShippingLine = w.ShippingLines[0].MethodTitle
	}

	switch {
	case strings.TrimSpace(w.Email) != "":
		o.Email = strings.TrimSpace(w.Email)
	case o.Billing.Email != "":
		o.Email = o.Billing.Email
	case o.CustomerID > 0:
		o.Email = strconv.FormatInt(o.CustomerID, 10)
	}

	for _, li := range w.LineItems {
		o.Items = append(o.Items, InboundLineItem{
			ExternalProductID: li.ProductID.Value,
			SKU:               strings.TrimSpace(string(li.SKU)),
			Name:              li.Name,
			Quantity:          li.Quantity.Int(),
			Price:             li.Price.Ptr(),
			Total:             li.Total.OrZero(),
		})
	}
	return o, nil
}

// Validate checks the fields the action needs. Delete only needs the order id.
func (o *InboundOrder) Validate(action Action) error {
	if o.ExternalID <= 0 {
		return o.missing("id")
	}
	if action == ActionDelete {
		return nil
	}
	if o.Email == "" {
		return o.missing("email")
	}
	if len(o.Items) == 0 {
		return o.missing("line_items")
	}
	return nil
}

func (o *InboundOrder) missing(field string) error {
	return shared.NewValidationError(field,
		fmt.Sprintf("inbound order is missing %s (present keys: %s)", field, strings.Join(o.PresentKeys, ", ")))
}

// SKUs returns the distinct non-empty SKUs of the line items
func (o *InboundOrder) SKUs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	out := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		if it.SKU == "" {
			continue
		}
		if _, ok := seen[it.SKU]; ok {
			continue
		}
		seen[it.SKU] = struct{}{}
		out = append(out, it.SKU)
	}
	return out
}

// IsPing reports whether body is a connectivity ping rather than a resource:
// a form-encoded webhook_id=N, or an object with webhook_id and no id.
func IsPing(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return false
	}
	if trimmed[0] != '{' {
		form, err := url.ParseQuery(string(trimmed))
		return err == nil && form.Get("webhook_id") != ""
	}
	var keys map[string]json.RawMessage
	if json.Unmarshal(trimmed, &keys) != nil {
		return false
	}
	_, hasID := keys["id"]
	_, hasHook := keys["webhook_id"]
	return hasHook && !hasID
}
