package woocommerce

import (
	"github.com/erp/wooerp/internal/domain/integration"
)

// errorResponse is the body of a non-2xx WooCommerce answer
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type idRef struct {
	ID int64 `json:"id"`
}

type imageBody struct {
	ID  int64  `json:"id,omitempty"`
	Src string `json:"src,omitempty"`
}

// productBody is sent on product create and update. Categories is never
// omitted so an empty list clears the association.
type productBody struct {
	SKU           string      `json:"sku"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	RegularPrice  string      `json:"regular_price"`
	ManageStock   bool        `json:"manage_stock"`
	StockQuantity int         `json:"stock_quantity"`
	Status        string      `json:"status,omitempty"`
	Categories    []idRef     `json:"categories"`
	Images        []imageBody `json:"images,omitempty"`
}

func newProductBody(in integration.ProductInput) productBody {
	body := productBody{
		SKU:           in.SKU,
		Name:          in.Name,
		Description:   in.Description,
		RegularPrice:  in.RegularPrice.StringFixed(2),
		ManageStock:   in.ManageStock,
		StockQuantity: in.StockQuantity,
		Status:        in.Status,
		Categories:    make([]idRef, 0, len(in.CategoryIDs)),
	}
	for _, id := range in.CategoryIDs {
		body.Categories = append(body.Categories, idRef{ID: id})
	}
	for _, img := range in.Images {
		// A media id already in the library wins over the source URL
		if img.ID > 0 {
			body.Images = append(body.Images, imageBody{ID: img.ID})
		} else if img.Src != "" {
			body.Images = append(body.Images, imageBody{Src: img.Src})
		}
	}
	return body
}

type stockBody struct {
	ManageStock   bool `json:"manage_stock"`
	StockQuantity int  `json:"stock_quantity"`
}

type addressBody struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company,omitempty"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2,omitempty"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

func newAddressBody(a integration.Address) addressBody {
	return addressBody{
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Company:   a.Company,
		Address1:  a.Address1,
		Address2:  a.Address2,
		City:      a.City,
		State:     a.State,
		Postcode:  a.Postcode,
		Country:   a.Country,
		Email:     a.Email,
		Phone:     a.Phone,
	}
}

type customerBody struct {
	Email     string      `json:"email"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Billing   addressBody `json:"billing"`
}

type customerResponse struct {
	ID        integration.FlexInt `json:"id"`
	Email     string              `json:"email"`
	FirstName string              `json:"first_name"`
	LastName  string              `json:"last_name"`
}

func (c customerResponse) toExternal() *integration.ExternalCustomer {
	return &integration.ExternalCustomer{
		ID:        c.ID.Value,
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
	}
}

type lineItemBody struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Subtotal  string `json:"subtotal"`
	Total     string `json:"total"`
}

type shippingLineBody struct {
	MethodID    string `json:"method_id"`
	MethodTitle string `json:"method_title"`
	Total       string `json:"total"`
}

type metaBody struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type orderBody struct {
	Status             string             `json:"status,omitempty"`
	CustomerID         int64              `json:"customer_id,omitempty"`
	PaymentMethod      string             `json:"payment_method,omitempty"`
	PaymentMethodTitle string             `json:"payment_method_title,omitempty"`
	SetPaid            bool               `json:"set_paid"`
	Billing            addressBody        `json:"billing"`
	Shipping           addressBody        `json:"shipping"`
	LineItems          []lineItemBody     `json:"line_items,omitempty"`
	ShippingLines      []shippingLineBody `json:"shipping_lines,omitempty"`
	CustomerNote       string             `json:"customer_note,omitempty"`
	MetaData           []metaBody         `json:"meta_data,omitempty"`
}

func newOrderBody(in integration.OrderInput) orderBody {
	body := orderBody{
		Status:             in.Status,
		CustomerID:         in.CustomerID,
		PaymentMethod:      in.PaymentMethod,
		PaymentMethodTitle: in.PaymentMethodTitle,
		SetPaid:            in.SetPaid,
		Billing:            newAddressBody(in.Billing),
		Shipping:           newAddressBody(in.Shipping),
		CustomerNote:       in.CustomerNote,
	}
	for _, line := range in.LineItems {
		body.LineItems = append(body.LineItems, lineItemBody{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal.StringFixed(2),
			Total:     line.Total.StringFixed(2),
		})
	}
	if in.ShippingTotal.IsPositive() {
		body.ShippingLines = []shippingLineBody{{
			MethodID:    "flat_rate",
			MethodTitle: "Shipping",
			Total:       in.ShippingTotal.StringFixed(2),
		}}
	}
	for _, m := range in.MetaData {
		body.MetaData = append(body.MetaData, metaBody{Key: m.Key, Value: m.Value})
	}
	return body
}

type orderResponse struct {
	ID     integration.FlexInt    `json:"id"`
	Number integration.FlexString `json:"number"`
	Status string                 `json:"status"`
}

func (o orderResponse) toExternal() *integration.ExternalOrder {
	return &integration.ExternalOrder{
		ID:     o.ID.Value,
		Number: string(o.Number),
		Status: o.Status,
	}
}
