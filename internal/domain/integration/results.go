package integration

import (
	"github.com/erp/wooerp/internal/domain/catalog"
	"github.com/erp/wooerp/internal/domain/trade"
	"github.com/google/uuid"
)

// ProductSyncResult is the outcome of pushing one product
type ProductSyncResult struct {
	ProductID  uuid.UUID
	ExternalID int64
	// Created is true when the storefront product was created by this call
	Created bool
	// Linked is true when an existing storefront product was adopted by SKU
	Linked bool
}

// BulkLinkSummary is the outcome of linking the storefront catalog by SKU
type BulkLinkSummary struct {
	Linked        int
	AlreadyLinked int
	NotFoundInERP int
	SkippedNoSKU  int
	Pages         int
	Errors        []string
}

// ProductEventResult is the outcome of applying an inbound product event
type ProductEventResult struct {
	Product  *catalog.Product
	Created  bool
	Skipped  bool
	Warnings []string
}

// OrderSyncResult is the outcome of pushing an order or sale
type OrderSyncResult struct {
	ExternalID     int64
	ExternalNumber string
	Warnings       []string
}

// IngestResult is the outcome of an inbound order event
type IngestResult struct {
	Action         Action
	Order          *trade.Order
	AlreadyExisted bool
	// Test is set when the event was a connectivity ping
	Test bool
	// DeletedID is the local id of an order removed by a delete event
	DeletedID *uuid.UUID
	Warnings  []string
}
