// Package integration contains the Integration bounded context.
// This context reconciles local state with the WooCommerce storefront.
//
// Key concepts:
//   - Storefront: Port interface for the storefront REST API
//   - InboundOrder: Normalized view of an order event pushed by the storefront
//   - Status vocabularies: fixed mappings between storefront and local order statuses
//   - Sync results: structured outcomes carrying non-fatal warnings
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
