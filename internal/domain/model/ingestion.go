package model

import "time"

// Order is the canonical shape of a sale normalized from a vendor-specific
// POS record.
type Order struct {
	ExternalID     string    `json:"external_id"`
	OrganizationID string    `json:"organization_id"`
	Total          int64     `json:"total"`
	PaymentRef     string    `json:"payment_ref,omitempty"`
	PlacedAt       time.Time `json:"placed_at"`
}

// CatalogItem is the canonical shape of a product normalized from a vendor
// catalog record.
type CatalogItem struct {
	ExternalID     string `json:"external_id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Price          int64  `json:"price"`
	SKU            string `json:"sku,omitempty"`
}

// SyncResult summarizes one ingestion pass. Skipped counts malformed vendor
// records that were dropped without failing the job.
type SyncResult struct {
	Fetched    int `json:"fetched"`
	Normalized int `json:"normalized"`
	Skipped    int `json:"skipped"`
	Enqueued   int `json:"enqueued"`
}
